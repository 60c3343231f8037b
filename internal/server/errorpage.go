package server

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/conneroisu/astral/internal/errors"
)

// frameRadius is the number of source lines shown around an error.
const frameRadius = 2

type errorView struct {
	Status   int
	Title    string
	Message  string
	Location string
	Frame    []frameLine
}

type frameLine struct {
	Number int
	Text   string
	Marked bool
}

// newErrorView describes err for the browser. Locations are shown
// relative to root.
func newErrorView(status int, title string, err error, root string) errorView {
	v := errorView{Status: status, Title: title}
	if err == nil {
		return v
	}
	v.Message = err.Error()

	var ae *errors.AstralError
	if !stderrors.As(err, &ae) {
		return v
	}
	v.Message = ae.Message
	if ae.Cause != nil {
		v.Message += ": " + ae.Cause.Error()
	}
	if ae.FilePath == "" {
		return v
	}
	v.Location = ae.FilePath
	if rel, relErr := filepath.Rel(root, ae.FilePath); relErr == nil && !strings.HasPrefix(rel, "..") {
		v.Location = filepath.ToSlash(rel)
	}
	if ae.Line > 0 {
		v.Location += ":" + strconv.Itoa(ae.Line)
		if ae.Column > 0 {
			v.Location += ":" + strconv.Itoa(ae.Column)
		}
		v.Frame = codeFrame(ae.FilePath, ae.Line)
	}
	return v
}

// codeFrame reads the lines around line (1-based) of file. A missing file
// yields no frame.
func codeFrame(file string, line int) []frameLine {
	f, err := os.Open(file)
	if err != nil {
		return nil
	}
	defer f.Close()

	var frame []frameLine
	sc := bufio.NewScanner(f)
	for n := 1; sc.Scan(); n++ {
		if n < line-frameRadius {
			continue
		}
		if n > line+frameRadius {
			break
		}
		frame = append(frame, frameLine{Number: n, Text: sc.Text(), Marked: n == line})
	}
	return frame
}

// errorPage renders v as a standalone HTML document.
func errorPage(v errorView) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString("<!doctype html>\n<html><head><meta charset=\"utf-8\"><title>")
		fmt.Fprintf(&b, "%d %s", v.Status, templ.EscapeString(v.Title))
		b.WriteString("</title><style>")
		b.WriteString("body{font-family:system-ui,sans-serif;margin:2rem;color:#222}")
		b.WriteString("pre{background:#f6f6f6;padding:1rem;overflow:auto}")
		b.WriteString(".marked{background:#fdd}")
		b.WriteString("</style></head><body>")
		fmt.Fprintf(&b, "<h1>%d %s</h1>", v.Status, templ.EscapeString(v.Title))
		if v.Location != "" {
			fmt.Fprintf(&b, "<p class=\"location\"><code>%s</code></p>", templ.EscapeString(v.Location))
		}
		if v.Message != "" {
			fmt.Fprintf(&b, "<pre class=\"message\">%s</pre>", templ.EscapeString(v.Message))
		}
		if len(v.Frame) > 0 {
			b.WriteString("<pre class=\"frame\">")
			for _, l := range v.Frame {
				if l.Marked {
					fmt.Fprintf(&b, "<span class=\"marked\">&gt; %4d | %s</span>\n", l.Number, templ.EscapeString(l.Text))
					continue
				}
				fmt.Fprintf(&b, "  %4d | %s\n", l.Number, templ.EscapeString(l.Text))
			}
			b.WriteString("</pre>")
		}
		b.WriteString("</body></html>\n")
		_, err := io.WriteString(w, b.String())
		return err
	})
}
