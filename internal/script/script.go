// Package script wraps the JavaScript tooling the compiler needs: esbuild
// for TypeScript/JSX lowering and the tdewolff parser for statement level
// analysis of component frontmatter.
package script

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/js"

	astralerrors "github.com/conneroisu/astral/internal/errors"
)

// JSX factory names used by every generated module.
const (
	JSXFactory  = "h"
	JSXFragment = "Fragment"
)

// Node is any AST node that can print itself as JavaScript.
type Node interface {
	JS(io.Writer)
}

// Print returns the JavaScript text of n.
func Print(n Node) string {
	var buf bytes.Buffer
	n.JS(&buf)
	return strings.TrimSpace(buf.String())
}

// Statement prints n terminated by a semicolon.
func Statement(n Node) string {
	s := Print(n)
	if !strings.HasSuffix(s, ";") {
		s += ";"
	}
	return s
}

// Parse parses an ES module.
func Parse(src, filename string) (*js.AST, error) {
	tree, err := js.Parse(parse.NewInputString(src), js.Options{})
	if err != nil {
		pe := astralerrors.NewParseError("parsing frontmatter", err).WithLocation(filename, 0, 0)
		if perr, ok := err.(*parse.Error); ok {
			pe.Message = perr.Message
			pe.Cause = nil
			pe.Line, pe.Column = perr.Line, perr.Column
		}
		return nil, pe
	}
	return tree, nil
}

// esbuildError converts esbuild messages into a parse error located at the
// first message.
func esbuildError(msgs []api.Message, filename string, lineOffset int) error {
	texts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		texts = append(texts, m.Text)
	}
	e := astralerrors.NewParseError(strings.Join(texts, "; "), nil).WithLocation(filename, 0, 0)
	if loc := msgs[0].Location; loc != nil {
		e.Line, e.Column = loc.Line+lineOffset, loc.Column+1
		e.WithContext("line_text", loc.LineText)
	}
	return e
}

// Normalize lowers TypeScript and JSX in frontmatter to plain ES module
// syntax. Imports are kept even when the script never references them,
// since components are referenced only from markup.
func Normalize(src, filename string) (string, error) {
	if strings.TrimSpace(src) == "" {
		return "", nil
	}
	res := api.Transform(src, api.TransformOptions{
		Loader:      api.LoaderTSX,
		JSXFactory:  JSXFactory,
		JSXFragment: JSXFragment,
		Charset:     api.CharsetUTF8,
		Sourcefile:  filename,
		LogLevel:    api.LogLevelSilent,
		TsconfigRaw: `{"compilerOptions":{"verbatimModuleSyntax":true}}`,
	})
	if len(res.Errors) > 0 {
		return "", esbuildError(res.Errors, filename, 0)
	}
	return string(res.Code), nil
}

// CompileExpression compiles one template expression (TSX allowed) into a
// JavaScript expression without a trailing semicolon.
func CompileExpression(raw, filename string, line int) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	res := api.Transform("("+raw+"\n)", api.TransformOptions{
		Loader:      api.LoaderTSX,
		JSXFactory:  JSXFactory,
		JSXFragment: JSXFragment,
		Charset:     api.CharsetUTF8,
		Sourcefile:  filename,
		LogLevel:    api.LogLevelSilent,
	})
	if len(res.Errors) > 0 {
		err := esbuildError(res.Errors, filename, line)
		if ae, ok := err.(*astralerrors.AstralError); ok {
			ae.Code = astralerrors.ErrCodeExpression
		}
		return "", err
	}
	code := strings.TrimSpace(string(res.Code))
	code = strings.TrimSuffix(code, ";")
	return strings.TrimSpace(code), nil
}

// Unquote decodes a single or double quoted JavaScript string literal. ok
// is false for anything else, template literals included.
func Unquote(lit string) (string, bool) {
	if len(lit) < 2 {
		return "", false
	}
	q := lit[0]
	if (q != '\'' && q != '"') || lit[len(lit)-1] != q {
		return "", false
	}
	inner := lit[1 : len(lit)-1]
	var b strings.Builder
	for i := 0; i < len(inner); i++ {
		c := inner[i]
		switch {
		case c == q:
			return "", false
		case c == '\\' && i+1 < len(inner):
			i++
			switch inner[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			default:
				b.WriteByte(inner[i])
			}
		case c == '\\':
			return "", false
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), true
}

// VarName returns the identifier of a simple binding, or "".
func VarName(b js.IBinding) string {
	if v, ok := b.(*js.Var); ok {
		return string(v.Data)
	}
	return ""
}

// DeclKeyword returns "const", "let" or "var" for a declaration.
func DeclKeyword(d *js.VarDecl) string {
	switch d.TokenType {
	case js.LetToken:
		return "let"
	case js.VarToken:
		return "var"
	}
	return "const"
}

// ModulePath strips the quotes the parser keeps around import specifiers.
func ModulePath(spec []byte) string {
	s := string(spec)
	if u, ok := Unquote(s); ok {
		return u
	}
	return s
}

// Quote returns s as a double quoted JavaScript string.
func Quote(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		panic(fmt.Sprintf("script: quoting string: %v", err))
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
