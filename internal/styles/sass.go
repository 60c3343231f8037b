package styles

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bep/godartsass/v2"
)

// SassCompiler turns Sass or SCSS source into CSS.
type SassCompiler interface {
	Compile(ctx context.Context, req SassRequest) (string, error)
}

// SassRequest is one compilation.
type SassRequest struct {
	Source       string
	Language     Language
	IncludePaths []string
	Compressed   bool
}

// DartSass runs the dart-sass embedded protocol through godartsass. The
// child process starts on first use and serves every later request.
type DartSass struct {
	// Binary is the dart-sass executable. Empty means "sass" on PATH.
	Binary string

	mu         sync.Mutex
	transpiler *godartsass.Transpiler
}

// NewDartSass creates a compiler that starts binary lazily.
func NewDartSass(binary string) *DartSass {
	return &DartSass{Binary: binary}
}

func (d *DartSass) start() (*godartsass.Transpiler, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.transpiler != nil {
		return d.transpiler, nil
	}
	t, err := godartsass.Start(godartsass.Options{DartSassEmbeddedFilename: d.Binary})
	if err != nil {
		return nil, fmt.Errorf("starting dart-sass: %w", err)
	}
	d.transpiler = t
	return t, nil
}

// Compile implements SassCompiler.
func (d *DartSass) Compile(ctx context.Context, req SassRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	t, err := d.start()
	if err != nil {
		return "", err
	}

	args := godartsass.Args{
		Source:       req.Source,
		SourceSyntax: godartsass.SourceSyntaxSCSS,
		IncludePaths: req.IncludePaths,
		OutputStyle:  godartsass.OutputStyleExpanded,
	}
	if req.Language == LanguageSass {
		args.SourceSyntax = godartsass.SourceSyntaxSASS
	}
	if req.Compressed {
		args.OutputStyle = godartsass.OutputStyleCompressed
	}

	res, err := t.Execute(args)
	if err != nil {
		return "", err
	}
	return res.CSS, nil
}

// Close stops the dart-sass process if it was started.
func (d *DartSass) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.transpiler == nil {
		return nil
	}
	err := d.transpiler.Close()
	d.transpiler = nil
	return err
}

// NodeModulesLocator returns the node_modules directory nearest to a
// source file, or "" when there is none.
type NodeModulesLocator interface {
	NodeModules(filename string) string
}

// FindNodeModules walks up from dir looking for a node_modules directory.
func FindNodeModules(dir string) string {
	dir = filepath.Clean(dir)
	for {
		candidate := filepath.Join(dir, "node_modules")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
