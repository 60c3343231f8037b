package build

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// moduleImport matches static and dynamic imports of absolute URLs.
var moduleImport = regexp.MustCompile(`(?:\bfrom\s*|\bimport\s*\(?\s*)["'](/[^"'\s]+)["']`)

// htmlReferences returns the local URLs a page loads: scripts, stylesheets,
// images and the imports of inline module scripts.
func htmlReferences(doc []byte) []string {
	var refs []string
	add := func(raw string) {
		if u, ok := localURL(raw); ok {
			refs = append(refs, u)
		}
	}

	z := html.NewTokenizer(bytes.NewReader(doc))
	inScript := false
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return refs
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.DataAtom {
			case atom.Script:
				inScript = tt == html.StartTagToken
				add(attr(tok, "src"))
			case atom.Link:
				add(attr(tok, "href"))
			case atom.Img, atom.Source:
				add(attr(tok, "src"))
			}
		case html.EndTagToken:
			if tok := z.Token(); tok.DataAtom == atom.Script {
				inScript = false
			}
		case html.TextToken:
			if inScript {
				refs = append(refs, moduleReferences(z.Text())...)
			}
		}
	}
}

// moduleReferences returns the local URLs imported by a JavaScript module.
func moduleReferences(code []byte) []string {
	var refs []string
	for _, m := range moduleImport.FindAllSubmatch(code, -1) {
		if u, ok := localURL(string(m[1])); ok {
			refs = append(refs, u)
		}
	}
	return refs
}

func attr(tok html.Token, name string) string {
	for _, a := range tok.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

// localURL returns the path of a same-origin absolute reference.
func localURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return "", false
	}
	return u.Path, true
}
