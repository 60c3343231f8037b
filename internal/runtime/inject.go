package runtime

import (
	"strings"

	"golang.org/x/net/html"
)

// StylesheetTags renders one link tag per href.
func StylesheetTags(hrefs []string) string {
	var b strings.Builder
	for _, href := range hrefs {
		b.WriteString(`<link rel="stylesheet" type="text/css" href="`)
		b.WriteString(html.EscapeString(href))
		b.WriteString(`">`)
	}
	return b.String()
}

// InjectStylesheets inserts link tags for hrefs before the closing head
// tag of doc, or prepends them when doc has none. Tags inside script and
// style text are not mistaken for the head.
func InjectStylesheets(doc string, hrefs []string) string {
	if len(hrefs) == 0 {
		return doc
	}
	links := StylesheetTags(hrefs)

	z := html.NewTokenizer(strings.NewReader(doc))
	offset := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		size := len(z.Raw())
		if tt == html.EndTagToken {
			if name, _ := z.TagName(); string(name) == "head" {
				return doc[:offset] + links + doc[offset:]
			}
		}
		offset += size
	}
	return links + doc
}
