package runtime

import (
	"context"
	"hash/crc32"
	"os"
	"path/filepath"
	"strconv"
)

var crcTable = crc32.MakeTable(crc32.Castagnoli)

// NodeLoader implements ModuleLoader by bundling pages with a Bundler and
// importing the bundle into a NodeRunner.
type NodeLoader struct {
	runner   *NodeRunner
	bundler  *Bundler
	assets   *Assets
	cacheDir string
}

// NewNodeLoader creates a loader writing bundles to cacheDir. The cache
// directory must sit inside the project so package imports resolve from
// its node_modules. assets may be nil.
func NewNodeLoader(runner *NodeRunner, bundler *Bundler, assets *Assets, cacheDir string) *NodeLoader {
	return &NodeLoader{runner: runner, bundler: bundler, assets: assets, cacheDir: cacheDir}
}

// Load implements ModuleLoader.
func (l *NodeLoader) Load(ctx context.Context, file string) (Module, error) {
	b, err := l.bundler.Bundle(ctx, file)
	if err != nil {
		return nil, err
	}
	name, err := l.write(b.Code)
	if err != nil {
		return nil, err
	}

	var ref struct {
		ID            string `json:"id"`
		HasCollection bool   `json:"hasCollection"`
	}
	if err := l.runner.call(ctx, "load", map[string]string{"file": name}, &ref); err != nil {
		return nil, err
	}

	m := &nodeModule{runner: l.runner, id: ref.ID, hasCollection: ref.HasCollection}
	for _, s := range b.Styles {
		m.css = append(m.css, s.CSS)
	}
	if l.assets != nil {
		m.stylesheets = l.assets.AddStyles(b.Styles)
	}
	return m, nil
}

// write stores code under a content addressed name. Identical bundles
// share a file, which node imports once.
func (l *NodeLoader) write(code string) (string, error) {
	sum := crc32.Checksum([]byte(code), crcTable)
	name := filepath.Join(l.cacheDir, strconv.FormatUint(uint64(sum), 16)+"-"+strconv.Itoa(len(code))+".mjs")
	if _, err := os.Stat(name); err == nil {
		return name, nil
	}
	if err := os.MkdirAll(l.cacheDir, 0o755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(l.cacheDir, "bundle-*.tmp")
	if err != nil {
		return "", err
	}
	if _, err := tmp.WriteString(code); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return name, os.Rename(tmp.Name(), name)
}
