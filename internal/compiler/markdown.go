package compiler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/conneroisu/astral/internal/errors"
	"github.com/conneroisu/astral/internal/script"
)

// Frontmatter is the YAML header of a markdown page.
type Frontmatter struct {
	// Layout is the layout component specifier, "" when none.
	Layout string
	// Data holds every key of the header, layout included.
	Data map[string]any
}

var fence = []byte("---")

// SplitFrontmatter separates a leading "---" fenced YAML block from the
// markdown body. A source without one yields empty frontmatter.
func SplitFrontmatter(src []byte, filename string) (*Frontmatter, []byte, error) {
	fm := &Frontmatter{Data: map[string]any{}}

	trimmed := bytes.TrimPrefix(src, []byte("\ufeff"))
	if !bytes.HasPrefix(trimmed, fence) {
		return fm, src, nil
	}
	rest := trimmed[len(fence):]
	nl := bytes.IndexByte(rest, '\n')
	if nl < 0 || len(bytes.TrimSpace(rest[:nl])) != 0 {
		return fm, src, nil
	}
	rest = rest[nl+1:]

	end := -1
	for off := 0; off < len(rest); {
		line := rest[off:]
		if i := bytes.IndexByte(line, '\n'); i >= 0 {
			line = line[:i]
		}
		if bytes.Equal(bytes.TrimRight(line, " \t\r"), fence) {
			end = off
			break
		}
		off += len(line) + 1
	}
	if end < 0 {
		return nil, nil, errors.NewParseError("unterminated frontmatter block", nil).WithLocation(filename, 1, 1)
	}

	header := rest[:end]
	body := rest[end:]
	if i := bytes.IndexByte(body, '\n'); i >= 0 {
		body = body[i+1:]
	} else {
		body = nil
	}

	if err := yaml.Unmarshal(header, &fm.Data); err != nil {
		return nil, nil, errors.NewParseError("invalid frontmatter", err).WithLocation(filename, 2, 1)
	}
	if fm.Data == nil {
		fm.Data = map[string]any{}
	}
	if layout, ok := fm.Data["layout"]; ok {
		s, ok := layout.(string)
		if !ok {
			return nil, nil, errors.NewCompileError(errors.ErrCodeParse, "frontmatter layout must be a string").
				WithLocation(filename, 0, 0)
		}
		fm.Layout = s
	}
	return fm, body, nil
}

// Module returns the frontmatter script of a markdown page: the layout
// import and the __content export.
func (fm *Frontmatter) Module(source []byte) (string, error) {
	var b strings.Builder
	if fm.Layout != "" {
		b.WriteString("import {__renderPage as __layout} from " + script.Quote(fm.Layout) + ";\n")
	}

	keys := make([]string, 0, len(fm.Data))
	for k := range fm.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b.WriteString("export const __content = {")
	for _, k := range keys {
		v, err := json.Marshal(fm.Data[k])
		if err != nil {
			return "", fmt.Errorf("encoding frontmatter key %q: %w", k, err)
		}
		b.WriteString(script.Quote(k) + ": " + string(v) + ", ")
	}
	b.WriteString("astro: {source: " + script.Quote(string(source)) + "}};\n")
	return b.String(), nil
}
