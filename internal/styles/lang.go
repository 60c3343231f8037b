package styles

import (
	"strings"

	"github.com/conneroisu/astral/internal/ast"
	"github.com/conneroisu/astral/internal/errors"
)

// Language is the source language of a <style> block.
type Language string

const (
	LanguageCSS     Language = "css"
	LanguageSCSS    Language = "scss"
	LanguageSass    Language = "sass"
	LanguagePostCSS Language = "postcss"
)

var languages = map[string]Language{
	".css":         LanguageCSS,
	".pcss":        LanguagePostCSS,
	".sass":        LanguageSass,
	".scss":        LanguageSCSS,
	"css":          LanguageCSS,
	"postcss":      LanguagePostCSS,
	"sass":         LanguageSass,
	"scss":         LanguageSCSS,
	"text/css":     LanguageCSS,
	"text/postcss": LanguagePostCSS,
	"text/sass":    LanguageSass,
	"text/scss":    LanguageSCSS,
}

// ParseLanguage maps a lang or type attribute value to a Language.
func ParseLanguage(value string) (Language, bool) {
	l, ok := languages[strings.ToLower(strings.TrimSpace(value))]
	return l, ok
}

// styleLanguage reads lang, then type, and defaults to css.
func styleLanguage(t *ast.Tree, style ast.NodeID, file string) (Language, error) {
	for _, attr := range []string{"lang", "type"} {
		v, ok := t.AttrText(style, attr)
		if !ok || v == "" {
			continue
		}
		l, known := ParseLanguage(v)
		if !known {
			return "", errors.ErrUnsupportedStyle(v, file)
		}
		return l, nil
	}
	return LanguageCSS, nil
}
