package styles

import (
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// prefixEngines are the browsers whose vendor prefixes are added.
var prefixEngines = []api.Engine{
	{Name: api.EngineChrome, Version: "60"},
	{Name: api.EngineEdge, Version: "16"},
	{Name: api.EngineFirefox, Version: "60"},
	{Name: api.EngineIOS, Version: "11"},
	{Name: api.EngineSafari, Version: "11"},
}

// Autoprefix adds the vendor prefixes prefixEngines need.
func Autoprefix(src string, minify bool) (string, error) {
	res := api.Transform(src, api.TransformOptions{
		Loader:           api.LoaderCSS,
		Engines:          prefixEngines,
		MinifyWhitespace: minify,
		MinifySyntax:     minify,
		LogLevel:         api.LogLevelSilent,
		LegalComments:    api.LegalCommentsInline,
	})
	if len(res.Errors) > 0 {
		msgs := make([]string, 0, len(res.Errors))
		for _, m := range res.Errors {
			msgs = append(msgs, m.Text)
		}
		return "", fmt.Errorf("autoprefixing css: %s", strings.Join(msgs, "; "))
	}
	return string(res.Code), nil
}
