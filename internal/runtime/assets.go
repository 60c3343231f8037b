package runtime

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/conneroisu/astral/internal/errors"
	"github.com/conneroisu/astral/internal/wrapper"
)

const (
	contentTypeJS  = "application/javascript; charset=utf-8"
	contentTypeCSS = "text/css; charset=utf-8"
	webModulesPath = "/web_modules/"
	componentPath  = "/_astro/"
)

// StyleHref is the URL a component stylesheet is served under.
func StyleHref(fileID string) string {
	return componentPath + fileID + ".css"
}

// WebModuleURL resolves a package to the /web_modules/ URL Assets serves
// it under. It satisfies wrapper.PackageResolverFunc.
func WebModuleURL(_ context.Context, pkg string) (string, error) {
	if !isBareImport(pkg) {
		return "", errors.NewConfigError(errors.ErrCodeConfigInvalid, "not a package name: "+pkg)
	}
	return webModulesPath + pkg + ".js", nil
}

// Assets serves the generated browser assets of a project: component
// stylesheets, hydrated component modules, installed packages under
// /web_modules/ and the client runtime under /_astro_internal/.
type Assets struct {
	root       string
	astroRoot  string
	internal   fs.FS
	production bool

	mu     sync.RWMutex
	styles map[string]string
	built  map[string]Asset
}

// NewAssets creates the asset server of the project at root.
func NewAssets(root, astroRoot string, production bool) *Assets {
	return &Assets{
		root:       root,
		astroRoot:  astroRoot,
		internal:   Frontend(),
		production: production,
		styles:     make(map[string]string),
		built:      make(map[string]Asset),
	}
}

// AddStyles registers component stylesheets and returns their hrefs.
func (a *Assets) AddStyles(styles []CompiledStyle) []string {
	if len(styles) == 0 {
		return nil
	}
	hrefs := make([]string, 0, len(styles))
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range styles {
		href := StyleHref(s.FileID)
		a.styles[href] = s.CSS
		hrefs = append(hrefs, href)
	}
	return hrefs
}

// Styles returns a copy of the registered stylesheets keyed by href.
func (a *Assets) Styles() map[string]string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]string, len(a.styles))
	for k, v := range a.styles {
		out[k] = v
	}
	return out
}

// Reset drops built browser modules so the next request rebuilds them.
func (a *Assets) Reset() {
	a.mu.Lock()
	a.built = make(map[string]Asset)
	a.mu.Unlock()
}

// LoadAsset implements AssetLoader.
func (a *Assets) LoadAsset(ctx context.Context, p string) (Asset, bool, error) {
	a.mu.RLock()
	css, isStyle := a.styles[p]
	cached, isBuilt := a.built[p]
	a.mu.RUnlock()
	if isStyle {
		return Asset{ContentType: contentTypeCSS, Contents: []byte(css)}, true, nil
	}
	if isBuilt {
		return cached, true, nil
	}

	var opts api.BuildOptions
	switch {
	case strings.HasPrefix(p, wrapper.InternalPrefix):
		name := strings.TrimPrefix(p, wrapper.InternalPrefix)
		if _, err := fs.Stat(a.internal, name); err != nil {
			return Asset{}, false, nil
		}
		opts.EntryPoints = []string{p}
	case strings.HasPrefix(p, webModulesPath) && strings.HasSuffix(p, ".js"):
		pkg := strings.TrimSuffix(strings.TrimPrefix(p, webModulesPath), ".js")
		if !isBareImport(pkg) {
			return Asset{}, false, nil
		}
		opts.Stdin = &api.StdinOptions{
			Contents:   webModuleEntry(pkg),
			ResolveDir: a.root,
			Sourcefile: pkg + ".js",
			Loader:     api.LoaderJS,
		}
	case strings.HasPrefix(p, componentPath) && strings.HasSuffix(p, ".js"):
		src, ok := a.componentSource(strings.TrimPrefix(p, componentPath))
		if !ok {
			return Asset{}, false, nil
		}
		opts.EntryPoints = []string{src}
	default:
		return Asset{}, false, nil
	}

	asset, err := a.build(opts, !strings.HasPrefix(p, webModulesPath))
	if err != nil {
		return Asset{}, false, err
	}
	a.mu.Lock()
	a.built[p] = asset
	a.mu.Unlock()
	return asset, true, nil
}

// componentSource finds the source file of a hydrated component URL.
func (a *Assets) componentSource(rel string) (string, bool) {
	rel = strings.TrimSuffix(rel, ".js")
	candidates := []string{rel + ".jsx", rel + ".tsx", rel + ".js", rel + ".ts"}
	if ext := path.Ext(rel); ext == ".vue" || ext == ".svelte" {
		candidates = []string{rel}
	}
	for _, c := range candidates {
		file := filepath.Join(a.astroRoot, filepath.FromSlash(c))
		if info, err := os.Stat(file); err == nil && !info.IsDir() {
			return file, true
		}
	}
	return "", false
}

// webModuleEntry re-exports a package with a default export, which CommonJS
// packages only expose through the namespace.
func webModuleEntry(pkg string) string {
	q := "'" + pkg + "'"
	return "import * as __pkg from " + q + ";\nexport * from " + q + ";\nexport default (__pkg.default ?? __pkg);\n"
}

// build bundles a browser module. When external is set, package imports
// are rewritten to their /web_modules/ URL.
func (a *Assets) build(opts api.BuildOptions, external bool) (Asset, error) {
	mode := "development"
	if a.production {
		mode = "production"
	}
	opts.Bundle = true
	opts.Write = false
	opts.Format = api.FormatESModule
	opts.Platform = api.PlatformBrowser
	opts.Target = api.ES2020
	opts.AbsWorkingDir = a.root
	opts.Outdir = filepath.Join(a.root, ".astral")
	opts.LogLevel = api.LogLevelSilent
	opts.Define = map[string]string{"process.env.NODE_ENV": `"` + mode + `"`}
	if a.production {
		opts.MinifyWhitespace, opts.MinifyIdentifiers, opts.MinifySyntax = true, true, true
	}
	opts.Plugins = []api.Plugin{{
		Name: "browser",
		Setup: func(build api.PluginBuild) {
			internalPlugin(build, a.internal, a.root)
			if external {
				build.OnResolve(api.OnResolveOptions{Filter: `^[^./]`},
					func(args api.OnResolveArgs) (api.OnResolveResult, error) {
						if args.Namespace != "file" && args.Namespace != internalNamespace {
							return api.OnResolveResult{}, nil
						}
						return api.OnResolveResult{Path: webModulesPath + args.Path + ".js", External: true}, nil
					})
			}
		},
	}}

	result := api.Build(opts)
	if len(result.Errors) > 0 {
		return Asset{}, messageError(result.Errors)
	}
	for _, f := range result.OutputFiles {
		if strings.HasSuffix(f.Path, ".js") {
			return Asset{ContentType: contentTypeJS, Contents: f.Contents}, nil
		}
	}
	return Asset{}, errors.NewInternalError(errors.ErrCodeInternalError, "browser build produced no output", nil)
}

// isBareImport reports whether spec names a package rather than a file.
func isBareImport(spec string) bool {
	if spec == "" || strings.HasPrefix(spec, ".") || strings.HasPrefix(spec, "/") || strings.Contains(spec, ":") {
		return false
	}
	for _, seg := range strings.Split(spec, "/") {
		if seg == "" || seg == ".." || seg == "." {
			return false
		}
	}
	return true
}
