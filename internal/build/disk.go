package build

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/conneroisu/astral/internal/compiler"
)

// diskSchemaVersion is bumped whenever diskRecord or compiler.Output
// changes shape.
const diskSchemaVersion uint16 = 1

// DiskCache persists compiled modules between runs, one msgpack file per
// key. It is safe for concurrent use.
type DiskCache struct {
	mu  sync.RWMutex
	dir string
}

type diskRecord struct {
	Schema uint16           `msgpack:"schema"`
	Key    string           `msgpack:"key"`
	Output *compiler.Output `msgpack:"output"`
}

// NewDiskCache stores modules below dir, which is created on first write.
func NewDiskCache(dir string) *DiskCache {
	return &DiskCache{dir: dir}
}

func (c *DiskCache) pathFor(key string) string {
	prefix := "00"
	if len(key) >= 2 {
		prefix = key[:2]
	}
	return filepath.Join(c.dir, "modules", prefix, key+".mp")
}

// Get reads the module stored under key. Records of another schema or key
// are misses.
func (c *DiskCache) Get(key string) (*compiler.Output, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := os.ReadFile(c.pathFor(key))
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var rec diskRecord
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return nil, false, err
	}
	if rec.Schema != diskSchemaVersion || rec.Key != key || rec.Output == nil {
		return nil, false, nil
	}
	return rec.Output, true, nil
}

// Put writes out under key, replacing the file atomically.
func (c *DiskCache) Put(key string, out *compiler.Output) error {
	if c == nil {
		return nil
	}
	data, err := msgpack.Marshal(&diskRecord{Schema: diskSchemaVersion, Key: key, Output: out})
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return err
	}
	if err := os.Rename(f.Name(), p); err != nil {
		os.Remove(f.Name())
		return err
	}
	return nil
}

// DropAll removes every stored module.
func (c *DiskCache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return os.RemoveAll(filepath.Join(c.dir, "modules"))
}
