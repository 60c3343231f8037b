package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInjectStylesheets(t *testing.T) {
	hrefs := []string{"/_astro/src/pages/index.astro.css"}
	link := `<link rel="stylesheet" type="text/css" href="/_astro/src/pages/index.astro.css">`

	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "before closing head",
			doc:  "<!doctype html><html><head><title>x</title></head><body></body></html>",
			want: "<!doctype html><html><head><title>x</title>" + link + "</head><body></body></html>",
		},
		{
			name: "no head",
			doc:  "<div>x</div>",
			want: link + "<div>x</div>",
		},
		{
			name: "head inside script text",
			doc:  `<html><head><script>var s = "</head>";</script></head></html>`,
			want: `<html><head><script>var s = "</head>";</script>` + link + `</head></html>`,
		},
		{
			name: "uppercase head",
			doc:  "<HTML><HEAD></HEAD></HTML>",
			want: "<HTML><HEAD>" + link + "</HEAD></HTML>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InjectStylesheets(tt.doc, hrefs))
		})
	}
}

func TestInjectStylesheetsNoHrefs(t *testing.T) {
	doc := "<html><head></head></html>"
	assert.Equal(t, doc, InjectStylesheets(doc, nil))
}

func TestStylesheetTagsEscapes(t *testing.T) {
	assert.Equal(t, `<link rel="stylesheet" type="text/css" href="/a&#34;b.css">`, StylesheetTags([]string{`/a"b.css`}))
}
