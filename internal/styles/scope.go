package styles

import (
	"fmt"
	"io"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

// neverScoped lists tags that never receive the scoped class, in markup or
// in selectors.
var neverScoped = map[string]bool{
	"html":     true,
	"head":     true,
	"body":     true,
	"script":   true,
	"style":    true,
	"link":     true,
	"meta":     true,
	"!doctype": true,
}

// IsNeverScoped reports whether tag is excluded from scoping.
func IsNeverScoped(tag string) bool {
	return neverScoped[strings.ToLower(tag)]
}

var groupRules = map[string]bool{
	"@media":         true,
	"@supports":      true,
	"@document":      true,
	"@-moz-document": true,
	"@layer":         true,
	"@container":     true,
	"@scope":         true,
}

var animationProps = map[string]bool{
	"animation":              true,
	"animation-name":         true,
	"-webkit-animation":      true,
	"-webkit-animation-name": true,
	"-moz-animation":         true,
	"-moz-animation-name":    true,
}

type token struct {
	tt   css.TokenType
	data string
}

type blockKind int

const (
	blockRules blockKind = iota
	blockKeyframes
	blockDeclarations
)

func lex(src string) ([]token, error) {
	l := css.NewLexer(parse.NewInputString(src))
	var out []token
	for {
		tt, data := l.Next()
		if tt == css.ErrorToken {
			if err := l.Err(); err != nil && err != io.EOF {
				return nil, fmt.Errorf("tokenizing css: %w", err)
			}
			return out, nil
		}
		out = append(out, token{tt: tt, data: string(data)})
	}
}

func isKeyframesRule(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), "keyframes")
}

// ScopeCSS qualifies every selector compound in src with .class and
// suffixes @keyframes names (and their animation uses) with -class.
// Selectors wrapped in :global(...) are emitted unscoped.
func ScopeCSS(src, class string) (string, error) {
	toks, err := lex(src)
	if err != nil {
		return "", err
	}
	keyframes := collectKeyframes(toks)

	var b strings.Builder
	b.Grow(len(src) + len(src)/4)

	stack := []blockKind{blockRules}
	prop, expectProp, inValue := "", true, false

	for i := 0; i < len(toks); {
		t := toks[i]
		top := stack[len(stack)-1]

		if top == blockDeclarations {
			switch t.tt {
			case css.RightBraceToken:
				if len(stack) > 1 {
					stack = stack[:len(stack)-1]
				}
				prop, expectProp, inValue = "", true, false
			case css.LeftBraceToken:
				stack = append(stack, blockDeclarations)
				prop, expectProp, inValue = "", true, false
			case css.SemicolonToken:
				prop, expectProp, inValue = "", true, false
			case css.ColonToken:
				if prop != "" {
					inValue = true
				}
			case css.IdentToken:
				if expectProp {
					prop, expectProp = strings.ToLower(t.data), false
				} else if inValue && animationProps[prop] && keyframes[t.data] {
					b.WriteString(t.data + "-" + class)
					i++
					continue
				}
			case css.WhitespaceToken, css.CommentToken:
			default:
				expectProp = false
			}
			b.WriteString(t.data)
			i++
			continue
		}

		switch t.tt {
		case css.WhitespaceToken, css.CommentToken, css.CDOToken, css.CDCToken:
			b.WriteString(t.data)
			i++
			continue
		case css.RightBraceToken:
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
			b.WriteString(t.data)
			i++
			continue
		}

		end := preludeEnd(toks, i)
		prelude := toks[i:end]
		next := blockDeclarations

		switch {
		case t.tt == css.AtKeywordToken && isKeyframesRule(t.data):
			writeKeyframesPrelude(&b, prelude, class)
			next = blockKeyframes
		case t.tt == css.AtKeywordToken:
			writeTokens(&b, prelude)
			if groupRules[strings.ToLower(t.data)] {
				next = blockRules
			}
		case top == blockKeyframes:
			writeTokens(&b, prelude)
		default:
			b.WriteString(scopeSelectors(prelude, class))
		}

		if end < len(toks) {
			b.WriteString(toks[end].data)
			if toks[end].tt == css.LeftBraceToken {
				stack = append(stack, next)
				prop, expectProp, inValue = "", true, false
			}
		}
		i = end + 1
	}

	return b.String(), nil
}

// preludeEnd returns the index of the `{` or `;` that ends the prelude
// starting at i, or len(toks).
func preludeEnd(toks []token, i int) int {
	depth := 0
	for j := i; j < len(toks); j++ {
		switch toks[j].tt {
		case css.LeftBraceToken, css.SemicolonToken:
			if depth == 0 {
				return j
			}
		}
		depth += depthDelta(toks[j])
	}
	return len(toks)
}

func depthDelta(t token) int {
	switch t.tt {
	case css.FunctionToken, css.LeftParenthesisToken, css.LeftBracketToken:
		return 1
	case css.RightParenthesisToken, css.RightBracketToken:
		return -1
	}
	return 0
}

func collectKeyframes(toks []token) map[string]bool {
	names := make(map[string]bool)
	for i, t := range toks {
		if t.tt != css.AtKeywordToken || !isKeyframesRule(t.data) {
			continue
		}
		for j := i + 1; j < len(toks); j++ {
			if toks[j].tt == css.WhitespaceToken {
				continue
			}
			if toks[j].tt == css.IdentToken {
				names[toks[j].data] = true
			}
			break
		}
	}
	return names
}

func writeKeyframesPrelude(b *strings.Builder, prelude []token, class string) {
	renamed := false
	for _, t := range prelude {
		b.WriteString(t.data)
		if !renamed && t.tt == css.IdentToken {
			b.WriteString("-" + class)
			renamed = true
		}
	}
}

func writeTokens(b *strings.Builder, toks []token) {
	for _, t := range toks {
		b.WriteString(t.data)
	}
}

func isCombinator(t token) bool {
	if t.tt != css.DelimToken {
		return false
	}
	switch t.data {
	case ">", "+", "~":
		return true
	}
	return false
}

// scopeSelectors scopes a selector list compound by compound.
func scopeSelectors(prelude []token, class string) string {
	var b strings.Builder
	var compound []token
	depth := 0

	flush := func() {
		b.WriteString(scopeCompound(compound, class))
		compound = compound[:0]
	}

	for _, t := range prelude {
		if depth == 0 {
			switch {
			case t.tt == css.WhitespaceToken, t.tt == css.CommentToken, t.tt == css.CommaToken, isCombinator(t):
				flush()
				b.WriteString(t.data)
				continue
			}
		}
		depth += depthDelta(t)
		compound = append(compound, t)
	}
	flush()
	return b.String()
}

func scopeCompound(toks []token, class string) string {
	if len(toks) == 0 {
		return ""
	}

	if out, ok := unwrapGlobal(toks); ok {
		return out
	}

	if toks[0].tt == css.IdentToken && IsNeverScoped(toks[0].data) {
		return joinTokens(toks)
	}
	if len(toks) == 2 && toks[0].tt == css.ColonToken && strings.EqualFold(toks[1].data, "root") {
		return joinTokens(toks)
	}

	depth := 0
	insertAt := len(toks)
	for i, t := range toks {
		if depth == 0 && t.tt == css.DelimToken && t.data == "." && i+1 < len(toks) && toks[i+1].data == class {
			return joinTokens(toks)
		}
		if depth == 0 && t.tt == css.ColonToken && insertAt == len(toks) {
			insertAt = i
		}
		depth += depthDelta(t)
	}

	return joinTokens(toks[:insertAt]) + "." + class + joinTokens(toks[insertAt:])
}

// unwrapGlobal replaces :global(x) with x. ok is false when the compound
// has no :global.
func unwrapGlobal(toks []token) (string, bool) {
	found := false
	var b strings.Builder
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.tt == css.ColonToken && i+1 < len(toks) && toks[i+1].tt == css.FunctionToken &&
			strings.EqualFold(toks[i+1].data, "global(") {
			found = true
			depth := 1
			j := i + 2
			for ; j < len(toks); j++ {
				depth += depthDelta(toks[j])
				if depth == 0 {
					break
				}
				b.WriteString(toks[j].data)
			}
			i = j
			continue
		}
		b.WriteString(t.data)
	}
	return b.String(), found
}

func joinTokens(toks []token) string {
	var b strings.Builder
	writeTokens(&b, toks)
	return b.String()
}
