package runtime

import (
	"context"
	"embed"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/conneroisu/astral/internal/compiler"
	"github.com/conneroisu/astral/internal/errors"
	"github.com/conneroisu/astral/internal/wrapper"
)

//go:embed frontend
var frontendFS embed.FS

// Frontend returns the embedded render runtime served under
// /_astro_internal/.
func Frontend() fs.FS {
	sub, err := fs.Sub(frontendFS, "frontend")
	if err != nil {
		panic(err)
	}
	return sub
}

const internalNamespace = "astro-internal"

// Compiler compiles one source file. *compiler.Session implements it.
type Compiler interface {
	Compile(ctx context.Context, in compiler.Input) (*compiler.Output, error)
}

// CompiledStyle is the CSS of one component in a bundle.
type CompiledStyle struct {
	FileID string
	CSS    string
}

// Bundle is a page module with every local import inlined.
type Bundle struct {
	Code string
	// Styles are sorted by FileID.
	Styles []CompiledStyle
}

// Bundler bundles page modules for server side execution. Packages stay
// external and resolve from the project node_modules.
type Bundler struct {
	compiler Compiler
	root     string
	internal fs.FS
}

// NewBundler creates a bundler compiling through c. root is the project
// root.
func NewBundler(c Compiler, root string) *Bundler {
	return &Bundler{compiler: c, root: root, internal: Frontend()}
}

// Bundle compiles entry and everything it imports into one ES module.
func (b *Bundler) Bundle(ctx context.Context, entry string) (*Bundle, error) {
	var mu sync.Mutex
	var firstErr error
	styles := make(map[string]string)

	plugin := api.Plugin{
		Name: "astro",
		Setup: func(build api.PluginBuild) {
			internalPlugin(build, b.internal, b.root)
			build.OnLoad(api.OnLoadOptions{Filter: `\.(astro|md)$`, Namespace: "file"},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					out, err := b.compileFile(ctx, args.Path)
					if err != nil {
						mu.Lock()
						if firstErr == nil {
							firstErr = err
						}
						mu.Unlock()
						return api.OnLoadResult{}, err
					}
					if out.CSS != "" {
						mu.Lock()
						styles[out.FileID] = out.CSS
						mu.Unlock()
					}
					return api.OnLoadResult{
						Contents:   &out.Contents,
						Loader:     api.LoaderJS,
						ResolveDir: filepath.Dir(args.Path),
					}, nil
				})
		},
	}

	result := api.Build(api.BuildOptions{
		EntryPoints:   []string{entry},
		Bundle:        true,
		Write:         false,
		Format:        api.FormatESModule,
		Platform:      api.PlatformNode,
		Target:        api.ES2020,
		Packages:      api.PackagesExternal,
		AbsWorkingDir: b.root,
		Outdir:        filepath.Join(b.root, ".astral"),
		LogLevel:      api.LogLevelSilent,
		Plugins:       []api.Plugin{plugin},
	})
	if len(result.Errors) > 0 {
		if firstErr != nil {
			return nil, firstErr
		}
		return nil, messageError(result.Errors)
	}
	if len(result.OutputFiles) == 0 {
		return nil, errors.NewInternalError(errors.ErrCodeInternalError, "bundle produced no output", nil).
			WithLocation(entry, 0, 0)
	}

	bundle := &Bundle{}
	for _, f := range result.OutputFiles {
		if strings.HasSuffix(f.Path, ".js") {
			bundle.Code = string(f.Contents)
			break
		}
	}
	for id, css := range styles {
		bundle.Styles = append(bundle.Styles, CompiledStyle{FileID: id, CSS: css})
	}
	sort.Slice(bundle.Styles, func(i, j int) bool { return bundle.Styles[i].FileID < bundle.Styles[j].FileID })
	return bundle, nil
}

func (b *Bundler) compileFile(ctx context.Context, file string) (*compiler.Output, error) {
	src, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileNotFound, "reading component", err).WithLocation(file, 0, 0)
	}
	return b.compiler.Compile(ctx, compiler.Input{Source: src, Filename: file})
}

// internalPlugin serves /_astro_internal/ imports from files. Relative
// imports between internal files stay in the internal namespace.
func internalPlugin(build api.PluginBuild, files fs.FS, resolveDir string) {
	build.OnResolve(api.OnResolveOptions{Filter: "^" + wrapper.InternalPrefix},
		func(args api.OnResolveArgs) (api.OnResolveResult, error) {
			return api.OnResolveResult{
				Path:      strings.TrimPrefix(args.Path, wrapper.InternalPrefix),
				Namespace: internalNamespace,
			}, nil
		})
	build.OnResolve(api.OnResolveOptions{Filter: `^\.\.?/`, Namespace: internalNamespace},
		func(args api.OnResolveArgs) (api.OnResolveResult, error) {
			return api.OnResolveResult{
				Path:      path.Join(path.Dir(args.Importer), args.Path),
				Namespace: internalNamespace,
			}, nil
		})
	build.OnLoad(api.OnLoadOptions{Filter: `.*`, Namespace: internalNamespace},
		func(args api.OnLoadArgs) (api.OnLoadResult, error) {
			data, err := fs.ReadFile(files, args.Path)
			if err != nil {
				return api.OnLoadResult{}, err
			}
			contents := string(data)
			return api.OnLoadResult{Contents: &contents, Loader: api.LoaderJS, ResolveDir: resolveDir}, nil
		})
}

// messageError converts esbuild messages into a parse error located at the
// first message.
func messageError(msgs []api.Message) error {
	texts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		texts = append(texts, m.Text)
	}
	e := errors.NewParseError(strings.Join(texts, "; "), nil)
	if loc := msgs[0].Location; loc != nil {
		e.WithLocation(loc.File, loc.Line, loc.Column+1).WithContext("line_text", loc.LineText)
	}
	return e
}
