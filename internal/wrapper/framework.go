// Package wrapper maps component usages to the call that renders them.
//
// A component written for another UI framework is rendered through a
// framework specific helper. Unsuffixed usage renders on the server only.
// A :load, :idle or :visible suffix also emits a hydration descriptor so
// the browser can mount the same component.
package wrapper

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/conneroisu/astral/internal/errors"
)

// Framework is the closed set of component plugins.
type Framework int

const (
	FrameworkUnknown Framework = iota
	FrameworkAstro
	FrameworkReact
	FrameworkPreact
	FrameworkVue
	FrameworkSvelte
)

// String returns the plugin name of f.
func (f Framework) String() string {
	switch f {
	case FrameworkAstro:
		return "astro"
	case FrameworkReact:
		return "react"
	case FrameworkPreact:
		return "preact"
	case FrameworkVue:
		return "vue"
	case FrameworkSvelte:
		return "svelte"
	case FrameworkUnknown:
		return "unknown"
	}
	panic(fmt.Sprintf("wrapper: invalid framework %d", int(f)))
}

// ParseFramework converts a plugin name into a Framework.
func ParseFramework(name string) (Framework, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "astro":
		return FrameworkAstro, nil
	case "react":
		return FrameworkReact, nil
	case "preact":
		return FrameworkPreact, nil
	case "vue":
		return FrameworkVue, nil
	case "svelte":
		return FrameworkSvelte, nil
	}
	return FrameworkUnknown, fmt.Errorf("unknown framework plugin %q", name)
}

// Packages lists the npm packages whose browser builds a hydrated
// component of this framework needs.
func (f Framework) Packages() []string {
	switch f {
	case FrameworkReact:
		return []string{"react", "react-dom"}
	case FrameworkPreact:
		return []string{"preact"}
	case FrameworkVue:
		return []string{"vue"}
	case FrameworkAstro, FrameworkSvelte, FrameworkUnknown:
		return nil
	}
	panic(fmt.Sprintf("wrapper: invalid framework %d", int(f)))
}

// componentExt is the extension of the compiled browser module.
func (f Framework) componentExt() string {
	switch f {
	case FrameworkVue:
		return ".vue.js"
	case FrameworkSvelte:
		return ".svelte.js"
	}
	return ".js"
}

// Extensions maps a component file extension to its plugin.
type Extensions map[string]Framework

// DefaultExtensions returns the built-in extension table.
func DefaultExtensions() Extensions {
	return Extensions{
		".astro":  FrameworkAstro,
		".jsx":    FrameworkReact,
		".tsx":    FrameworkReact,
		".vue":    FrameworkVue,
		".svelte": FrameworkSvelte,
	}
}

// WithOverrides returns a copy of e extended by overrides, a map of
// extension to plugin name as it appears in configuration.
func (e Extensions) WithOverrides(overrides map[string]string) (Extensions, error) {
	out := make(Extensions, len(e)+len(overrides))
	for k, v := range e {
		out[k] = v
	}
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, ext := range keys {
		fw, err := ParseFramework(overrides[ext])
		if err != nil {
			return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, err.Error()).
				WithContext("extension", ext)
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out[ext] = fw
	}
	return out, nil
}

// Lookup returns the plugin for a specifier's extension.
func (e Extensions) Lookup(specifier string) (ext string, fw Framework) {
	ext = path.Ext(specifier)
	return ext, e[ext]
}

// Hydration is the usage-site suffix selecting when client JS mounts a
// component.
type Hydration int

const (
	HydrationNone Hydration = iota
	HydrationLoad
	HydrationIdle
	HydrationVisible
)

// String returns the suffix without the colon.
func (h Hydration) String() string {
	switch h {
	case HydrationLoad:
		return "load"
	case HydrationIdle:
		return "idle"
	case HydrationVisible:
		return "visible"
	}
	return ""
}

// ParseHydration parses a suffix such as "load". The empty string is
// HydrationNone.
func ParseHydration(s string) (Hydration, error) {
	switch s {
	case "":
		return HydrationNone, nil
	case "load":
		return HydrationLoad, nil
	case "idle":
		return HydrationIdle, nil
	case "visible":
		return HydrationVisible, nil
	}
	return HydrationNone, errors.NewCompileError(errors.ErrCodeUnsupportedHydration,
		fmt.Sprintf("Unsupported hydration directive :%s", s))
}

// SplitTagName splits "Counter:load" into its component name and directive.
func SplitTagName(tag string) (name string, h Hydration, err error) {
	name, suffix, _ := strings.Cut(tag, ":")
	h, err = ParseHydration(suffix)
	return name, h, err
}
