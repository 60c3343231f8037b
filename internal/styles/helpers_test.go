package styles

import (
	"os"
	"path/filepath"
)

func mkdirAll(root, rel string) error {
	return os.MkdirAll(filepath.Join(root, filepath.FromSlash(rel)), 0o755)
}

func joinPath(root, rel string) string {
	return filepath.Join(root, filepath.FromSlash(rel))
}
