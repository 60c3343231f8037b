package testutils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTempProject(t *testing.T) {
	root := CreateTempProject(t, map[string]string{
		"src/pages/index.astro":    "<h1/>",
		"src/components/Nav.astro": "<nav/>",
	})

	assert.DirExists(t, filepath.Join(root, "src", "pages"))
	assert.DirExists(t, filepath.Join(root, "public"))
	data, err := os.ReadFile(filepath.Join(root, "src", "components", "Nav.astro"))
	require.NoError(t, err)
	assert.Equal(t, "<nav/>", string(data))
}

func TestCreateTestConfig(t *testing.T) {
	root := CreateTempProject(t, nil)
	cfg := CreateTestConfig(t, root)

	assert.Equal(t, root, cfg.Root())
	assert.Equal(t, filepath.Join(root, "src", "pages"), cfg.PagesDir())
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestWaitForFileChange(t *testing.T) {
	root := CreateTempProject(t, map[string]string{"a.txt": "a"})
	p := filepath.Join(root, "a.txt")
	info, err := os.Stat(p)
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		later := info.ModTime().Add(time.Second)
		os.Chtimes(p, later, later)
	}()
	WaitForFileChange(t, p, info.ModTime(), time.Second)
}
