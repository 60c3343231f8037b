package build

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/astral/internal/ast"
	"github.com/conneroisu/astral/internal/compiler"
)

type countingCompiler struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]error
}

func newCountingCompiler() *countingCompiler {
	return &countingCompiler{calls: make(map[string]int), fail: make(map[string]error)}
}

func (c *countingCompiler) Compile(_ context.Context, in compiler.Input) (*compiler.Output, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[in.FileID]++
	if err := c.fail[in.FileID]; err != nil {
		return nil, err
	}
	return &compiler.Output{FileID: in.FileID, Contents: "// " + string(in.Source)}, nil
}

func (c *countingCompiler) count(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[id]
}

func TestCachedCompilerMemoryHit(t *testing.T) {
	inner := newCountingCompiler()
	c := NewCachedCompiler(inner, NewMemoryCache(8), nil, "dev", nil)
	in := compiler.Input{Source: []byte("<h1>hi</h1>"), Filename: "/p/a.astro", FileID: "a.astro"}

	first, err := c.Compile(context.Background(), in)
	require.NoError(t, err)
	second, err := c.Compile(context.Background(), in)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, inner.count("a.astro"))
	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestCachedCompilerKeyChangesWithSource(t *testing.T) {
	c := NewCachedCompiler(newCountingCompiler(), NewMemoryCache(8), nil, "dev", nil)
	a := compiler.Input{Source: []byte("a"), FileID: "x.astro"}
	b := compiler.Input{Source: []byte("b"), FileID: "x.astro"}
	assert.NotEqual(t, c.Key(a), c.Key(b))

	other := NewCachedCompiler(nil, NewMemoryCache(8), nil, "prod", nil)
	assert.NotEqual(t, c.Key(a), other.Key(a))
}

func TestCachedCompilerDiskHit(t *testing.T) {
	dir := t.TempDir()
	in := compiler.Input{Source: []byte("<p/>"), Filename: "/p/b.astro", FileID: "b.astro"}

	warm := newCountingCompiler()
	_, err := NewCachedCompiler(warm, NewMemoryCache(8), NewDiskCache(dir), "dev", nil).
		Compile(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, 1, warm.count("b.astro"))

	cold := newCountingCompiler()
	c := NewCachedCompiler(cold, NewMemoryCache(8), NewDiskCache(dir), "dev", nil)
	out, err := c.Compile(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "// <p/>", out.Contents)
	assert.Zero(t, cold.count("b.astro"))

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.DiskHits)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Zero(t, stats.Misses)
}

func TestCachedCompilerBypass(t *testing.T) {
	tests := []struct {
		name string
		in   compiler.Input
	}{
		{
			name: "fetchContent",
			in:   compiler.Input{Source: []byte("---\nconst posts = Astro.fetchContent('./posts/*.md');\n---"), FileID: "f.astro"},
		},
		{
			name: "pre-parsed tree",
			in:   compiler.Input{Source: []byte("<p/>"), FileID: "f.astro", Tree: &ast.Tree{}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := newCountingCompiler()
			c := NewCachedCompiler(inner, NewMemoryCache(8), nil, "dev", nil)
			for i := 0; i < 2; i++ {
				_, err := c.Compile(context.Background(), tt.in)
				require.NoError(t, err)
			}
			assert.Equal(t, 2, inner.count("f.astro"))
			assert.Zero(t, c.Stats().Entries)
		})
	}
}

func TestCachedCompilerErrorsAreNotCached(t *testing.T) {
	inner := newCountingCompiler()
	inner.fail["e.astro"] = assert.AnError
	c := NewCachedCompiler(inner, NewMemoryCache(8), NewDiskCache(t.TempDir()), "dev", nil)
	in := compiler.Input{Source: []byte("<"), FileID: "e.astro"}

	for i := 0; i < 2; i++ {
		_, err := c.Compile(context.Background(), in)
		assert.ErrorIs(t, err, assert.AnError)
	}
	assert.Equal(t, 2, inner.count("e.astro"))
}
