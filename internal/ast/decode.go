package ast

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// rawNode mirrors the JSON emitted by the template parser.
type rawNode struct {
	Type       string          `json:"type"`
	Start      int             `json:"start"`
	End        int             `json:"end"`
	Name       string          `json:"name,omitempty"`
	Data       string          `json:"data,omitempty"`
	Raw        *string         `json:"raw,omitempty"`
	CodeChunks []string        `json:"codeChunks,omitempty"`
	CodeStart  string          `json:"codeStart,omitempty"`
	CodeEnd    string          `json:"codeEnd,omitempty"`
	Content    json.RawMessage `json:"content,omitempty"`
	Value      json.RawMessage `json:"value,omitempty"`
	Attributes []*rawNode      `json:"attributes,omitempty"`
	Children   []*rawNode      `json:"children,omitempty"`
	Expression *rawNode        `json:"expression,omitempty"`
}

type rawAst struct {
	HTML   *rawNode `json:"html"`
	CSS    *rawNode `json:"css"`
	Module *rawNode `json:"module"`
}

// Decode builds a Tree from parser JSON of the form
// {"html": node, "css": node, "module": node}.
func Decode(data []byte) (*Tree, error) {
	var raw rawAst
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding ast: %w", err)
	}

	t := NewTree(0)
	var err error
	if t.HTML, err = t.addRaw(raw.HTML); err != nil {
		return nil, err
	}
	if t.CSS, err = t.addRaw(raw.CSS); err != nil {
		return nil, err
	}
	if t.Module, err = t.addRaw(raw.Module); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tree) addRaw(r *rawNode) (NodeID, error) {
	if r == nil {
		return NoNode, nil
	}
	n := Node{
		Kind:      Kind(r.Type),
		Start:     r.Start,
		End:       r.End,
		Name:      r.Name,
		Data:      r.Data,
	}
	switch {
	case len(r.CodeChunks) > 0:
		n.CodeChunks = r.CodeChunks
	case r.CodeStart != "" || r.CodeEnd != "":
		n.CodeChunks = []string{r.CodeStart, r.CodeEnd}
	}
	if r.Raw != nil {
		n.Raw, n.HasRaw = *r.Raw, true
	}

	if err := decodeContent(r.Content, &n); err != nil {
		return NoNode, fmt.Errorf("%s node at %d: %w", r.Type, r.Start, err)
	}

	var err error
	if n.Attributes, err = t.addRawList(r.Attributes); err != nil {
		return NoNode, err
	}
	if n.Children, err = t.addRawList(r.Children); err != nil {
		return NoNode, err
	}
	if n.Expression, err = t.addRaw(r.Expression); err != nil {
		return NoNode, err
	}

	if len(r.Value) > 0 {
		switch r.Value[0] {
		case 't':
			n.Boolean = true
		case '[':
			var parts []*rawNode
			if err := json.Unmarshal(r.Value, &parts); err != nil {
				return NoNode, fmt.Errorf("attribute %q value: %w", r.Name, err)
			}
			if n.Value, err = t.addRawList(parts); err != nil {
				return NoNode, err
			}
		}
	}

	return t.Add(n), nil
}

func (t *Tree) addRawList(list []*rawNode) ([]NodeID, error) {
	if len(list) == 0 {
		return nil, nil
	}
	ids := make([]NodeID, 0, len(list))
	for _, r := range list {
		id, err := t.addRaw(r)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// decodeContent accepts either a plain string or {"styles": "..."}.
func decodeContent(raw json.RawMessage, n *Node) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if raw[0] == '"' {
		return json.Unmarshal(raw, &n.Content)
	}
	var styled struct {
		Styles string `json:"styles"`
	}
	if err := json.Unmarshal(raw, &styled); err != nil {
		return err
	}
	n.Content = styled.Styles
	return nil
}
