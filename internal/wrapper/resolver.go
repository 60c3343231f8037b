package wrapper

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/conneroisu/astral/internal/errors"
	"github.com/conneroisu/astral/internal/script"
)

// InternalPrefix is where the runtime serves its own helper modules.
const InternalPrefix = "/_astro_internal/"

// svelteRuntimeKey names the svelte hydration runtime in a descriptor.
const svelteRuntimeKey = "astro/frontend/runtime/svelte"

// InternalImport returns the URL of an internal helper module.
func InternalImport(p string) string {
	return InternalPrefix + p
}

// Component is one imported component, keyed by its local name.
type Component struct {
	LocalName string
	// Export is the name the module exports the component under: "default",
	// the imported name of a named import, or "*" for a namespace import.
	Export    string
	Extension string
	Specifier string
	Framework Framework
}

// Member returns the component a namespaced tag such as Ui.Button names
// within the namespace import c.
func (c Component) Member(name string) Component {
	m := c
	m.LocalName = c.LocalName + "." + name
	m.Export = name
	return m
}

func (c Component) export() string {
	if c.Export == "" {
		return "default"
	}
	return c.Export
}

// PackageResolver locates the browser build of an npm package.
type PackageResolver interface {
	ResolvePackage(ctx context.Context, pkg string) (string, error)
}

// PackageResolverFunc adapts a function to PackageResolver.
type PackageResolverFunc func(ctx context.Context, pkg string) (string, error)

func (f PackageResolverFunc) ResolvePackage(ctx context.Context, pkg string) (string, error) {
	return f(ctx, pkg)
}

// AcquireFrameworkURLs resolves the runtime packages of every framework
// in use, once per package.
func AcquireFrameworkURLs(ctx context.Context, frameworks []Framework, resolve PackageResolver) (map[string]string, error) {
	urls := make(map[string]string)
	for _, fw := range frameworks {
		for _, pkg := range fw.Packages() {
			if _, ok := urls[pkg]; ok {
				continue
			}
			if resolve == nil {
				return nil, fmt.Errorf("no package resolver for %s", pkg)
			}
			u, err := resolve.ResolvePackage(ctx, pkg)
			if err != nil {
				return nil, fmt.Errorf("resolving %s: %w", pkg, err)
			}
			urls[pkg] = u
		}
	}
	return urls, nil
}

// Descriptor is the hydration payload handed to the client runtime.
type Descriptor struct {
	ComponentURL    string
	ComponentExport string
	FrameworkURLs   []FrameworkURL
}

// FrameworkURL is one entry of Descriptor.FrameworkURLs.
type FrameworkURL struct {
	Name string
	URL  string
}

// MarshalJSON keeps key order stable so generated modules are
// byte-identical across compiles.
func (d Descriptor) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"componentUrl":`)
	writeJSONString(&buf, d.ComponentURL)
	buf.WriteString(`,"componentExport":`)
	writeJSONString(&buf, d.ComponentExport)
	buf.WriteString(`,"frameworkUrls":{`)
	for i, fu := range d.FrameworkURLs {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeJSONString(&buf, fu.Name)
		buf.WriteByte(':')
		writeJSONString(&buf, fu.URL)
	}
	buf.WriteString("}}")
	return buf.Bytes(), nil
}

func writeJSONString(buf *bytes.Buffer, s string) {
	buf.WriteString(script.Quote(s))
}

// Wrapper is the render-tree callee for one component usage.
type Wrapper struct {
	// Expr is the first argument of the generated h() call.
	Expr string
	// Import is the helper import the expression needs, or "".
	Import string
	// Descriptor is set for hydrated usage.
	Descriptor *Descriptor
}

// Resolver resolves component usages within one file.
type Resolver struct {
	// AstroRoot is the slash-separated source root that component URLs are
	// made relative to.
	AstroRoot string
	// Filename is the slash-separated path of the file being compiled.
	Filename string
	// FrameworkURLs holds resolved runtime packages, see
	// AcquireFrameworkURLs.
	FrameworkURLs map[string]string
}

// Resolve returns the wrapper for rendering c with hydration h.
func (r *Resolver) Resolve(c Component, h Hydration) (Wrapper, error) {
	switch c.Framework {
	case FrameworkAstro:
		if h != HydrationNone {
			return Wrapper{}, errors.NewCompileError(errors.ErrCodeUnsupportedHydration,
				fmt.Sprintf("Astro does not support :%s", h)).
				WithContext("component", c.LocalName).
				WithLocation(r.Filename, 0, 0)
		}
		return Wrapper{Expr: c.LocalName}, nil

	case FrameworkReact, FrameworkPreact, FrameworkVue, FrameworkSvelte:
		fw := c.Framework.String()
		helper := InternalImport("render/" + fw + ".js")
		if h == HydrationNone {
			fn := "__" + fw + "_static"
			return Wrapper{
				Expr:   fn + "(" + c.LocalName + ")",
				Import: importStatement(fn, helper),
			}, nil
		}

		d := &Descriptor{
			ComponentURL:    r.componentURL(c),
			ComponentExport: c.export(),
			FrameworkURLs:   r.frameworkURLs(c.Framework),
		}
		payload, err := d.MarshalJSON()
		if err != nil {
			return Wrapper{}, err
		}
		fn := "__" + fw + "_" + h.String()
		return Wrapper{
			Expr:       fn + "(" + c.LocalName + ", " + string(payload) + ")",
			Import:     importStatement(fn, helper),
			Descriptor: d,
		}, nil

	case FrameworkUnknown:
		return Wrapper{}, errors.ErrNoPlugin(c.Extension, r.Filename)
	}
	panic(fmt.Sprintf("wrapper: invalid framework %d", int(c.Framework)))
}

func (r *Resolver) frameworkURLs(fw Framework) []FrameworkURL {
	if fw == FrameworkSvelte {
		return []FrameworkURL{{Name: svelteRuntimeKey, URL: InternalImport("runtime/svelte.js")}}
	}
	pkgs := fw.Packages()
	out := make([]FrameworkURL, 0, len(pkgs))
	for _, pkg := range pkgs {
		out = append(out, FrameworkURL{Name: pkg, URL: r.FrameworkURLs[pkg]})
	}
	return out
}

// componentURL is /_astro/ plus the component path relative to AstroRoot,
// with the extension swapped for the compiled module's.
func (r *Resolver) componentURL(c Component) string {
	target := c.Specifier
	if !path.IsAbs(target) {
		target = path.Join(path.Dir(r.Filename), target)
	}
	rel := strings.TrimPrefix(path.Clean(target), strings.TrimSuffix(path.Clean(r.AstroRoot), "/")+"/")
	rel = strings.TrimSuffix(rel, path.Ext(rel)) + c.Framework.componentExt()
	return "/_astro/" + rel
}

func importStatement(name, from string) string {
	return "import {" + name + "} from '" + from + "';"
}
