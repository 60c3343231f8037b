// Package scanner discovers the component sources of a project.
//
// The scanner walks the source directory in lexical order, keeps .astro and
// .md files, and skips everything matched by the exclude globs. Each source
// carries a content hash so callers can detect changes and key caches.
package scanner

import (
	"context"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

var crcTable = crc32.MakeTable(crc32.Castagnoli)

// Kind classifies a source file.
type Kind int

const (
	KindComponent Kind = iota
	KindPage
)

func (k Kind) String() string {
	if k == KindPage {
		return "page"
	}
	return "component"
}

// Source is one compilable file.
type Source struct {
	// Path is the absolute file path.
	Path string
	// FileID is the slash separated path relative to the project root.
	FileID  string
	Kind    Kind
	Hash    string
	Size    int64
	ModTime time.Time
}

// Scanner finds sources below SrcDir.
type Scanner struct {
	root    string
	srcDir  string
	pages   string
	exclude []string
}

// New creates a scanner. root is the project root file IDs are relative to,
// pagesDir marks routed pages, exclude holds doublestar patterns matched
// against slash separated paths relative to srcDir.
func New(root, srcDir, pagesDir string, exclude []string) *Scanner {
	return &Scanner{
		root:    filepath.Clean(root),
		srcDir:  filepath.Clean(srcDir),
		pages:   filepath.Clean(pagesDir),
		exclude: exclude,
	}
}

// IsSource reports whether path has a compilable extension.
func IsSource(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".astro", ".md":
		return true
	}
	return false
}

// Scan returns every source in lexical path order.
func (s *Scanner) Scan(ctx context.Context) ([]Source, error) {
	var sources []Source
	err := filepath.WalkDir(s.srcDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if path != s.srcDir && s.Excluded(path, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !IsSource(path) {
			return nil
		}
		src, err := s.ScanFile(path)
		if err != nil {
			return err
		}
		sources = append(sources, src)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", s.srcDir, err)
	}
	return sources, nil
}

// ScanFile reads one file. It does not apply the exclude patterns.
func (s *Scanner) ScanFile(path string) (Source, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Source{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Source{}, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return Source{}, fmt.Errorf("reading file %s: %w", abs, err)
	}

	src := Source{
		Path:    abs,
		FileID:  s.fileID(abs),
		Kind:    KindComponent,
		Hash:    Hash(data),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
	if s.inPages(abs) {
		src.Kind = KindPage
	}
	return src, nil
}

// Excluded reports whether path matches an exclude pattern.
func (s *Scanner) Excluded(path string, dir bool) bool {
	rel, err := filepath.Rel(s.srcDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return true
	}
	rel = filepath.ToSlash(rel)
	for _, p := range s.exclude {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
		// Directory patterns such as **/node_modules/** match the
		// contents, so test a child path.
		if dir {
			if ok, _ := doublestar.Match(p, rel+"/x"); ok {
				return true
			}
		}
	}
	return false
}

// Contains reports whether path is below the source directory and not
// excluded.
func (s *Scanner) Contains(path string) bool {
	return IsSource(path) && !s.Excluded(path, false)
}

func (s *Scanner) inPages(abs string) bool {
	rel, err := filepath.Rel(s.pages, abs)
	return err == nil && !strings.HasPrefix(rel, "..")
}

func (s *Scanner) fileID(abs string) string {
	rel, err := filepath.Rel(s.root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(rel)
}

// Hash is the content hash used for change detection: a Castagnoli crc32
// plus the length.
func Hash(data []byte) string {
	return strconv.FormatUint(uint64(crc32.Checksum(data, crcTable)), 16) + "-" + strconv.Itoa(len(data))
}
