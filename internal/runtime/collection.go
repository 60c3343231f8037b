// Package runtime serves compiled pages: it maps request paths onto page
// files, runs a page module's collection protocol, paginates the data and
// assembles the final HTML.
package runtime

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/conneroisu/astral/internal/errors"
)

// DefaultPageSize is used when a collection leaves pageSize unset or zero.
const DefaultPageSize = 25

// Params are the route parameters of one collection page.
type Params map[string]any

// DataFunc loads a collection's data for the selected params.
type DataFunc func(ctx context.Context, params Params) (any, error)

// PermalinkFunc computes the base URL of a route.
type PermalinkFunc func(ctx context.Context, params Params) (string, error)

// Collection is what a page module's createCollection returns.
type Collection struct {
	// Keys are the keys of the returned object, in any order.
	Keys []string

	Data      DataFunc
	Routes    []Params
	HasRoutes bool
	Permalink PermalinkFunc
	// PageSize is the declared page size, 0 when unset.
	PageSize int
	// RSS holds the rss options when declared.
	RSS map[string]any
	// RSSItems maps data entries through the rss item function. Nil when
	// the collection declares none.
	RSSItems func(ctx context.Context, data []any) ([]RSSItem, error)
}

var collectionKeys = []string{"data", "routes", "permalink", "pageSize", "rss"}

func collectionError(format string, args ...any) error {
	return errors.NewInternalError(errors.ErrCodeInvalidCollection, fmt.Sprintf(format, args...), nil)
}

// Validate checks the keys and the routes/permalink pairing. It runs before
// any data is loaded.
func (c *Collection) Validate() error {
	for _, key := range c.Keys {
		if !isCollectionKey(key) {
			return collectionError("[createCollection] unknown option: %q. Expected one of %s.",
				key, strings.Join(collectionKeys, ", "))
		}
	}
	if c.Data == nil {
		return collectionError("[createCollection] must return `data()` function to create a collection.")
	}
	if c.HasRoutes && c.Permalink == nil {
		return collectionError("[createCollection] `routes` requires `permalink` as well.")
	}
	if c.Permalink != nil && !c.HasRoutes {
		return collectionError("[createCollection] `permalink` requires `routes` as well.")
	}
	return nil
}

func isCollectionKey(key string) bool {
	for _, k := range collectionKeys {
		if k == key {
			return true
		}
	}
	return false
}

// EffectivePageSize is PageSize or DefaultPageSize when PageSize is not
// positive.
func (c *Collection) EffectivePageSize() int {
	if c.PageSize <= 0 {
		return DefaultPageSize
	}
	return c.PageSize
}

// Paginated reports whether the collection declares a page size. A page
// size of zero counts as undeclared.
func (c *Collection) Paginated() bool {
	return c.PageSize > 0
}

// CollectionInfo is the per-request metadata the static exporter needs.
type CollectionInfo struct {
	// AdditionalURLs are every route permalink and page URL discovered.
	AdditionalURLs []string
	// RSS is set when the collection declares rss.
	RSS *RSSInfo
}

// RSSInfo carries the rss options and the full unpaginated data.
type RSSInfo struct {
	Options map[string]any
	Data    []any
	// Items maps Data to feed items. Nil when the collection has no item
	// function.
	Items func(ctx context.Context) ([]RSSItem, error)
}

// RSSItem is one feed entry as returned by the rss item function.
type RSSItem struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Description string `json:"description"`
	// PubDate is already formatted as an RFC 1123 date.
	PubDate    string `json:"pubDate"`
	CustomData string `json:"customData"`
}

// urlSet is an insertion ordered set.
type urlSet struct {
	seen  map[string]bool
	order []string
}

func newURLSet() *urlSet {
	return &urlSet{seen: make(map[string]bool)}
}

func (s *urlSet) add(u string) {
	if !s.seen[u] {
		s.seen[u] = true
		s.order = append(s.order, u)
	}
}

func (s *urlSet) len() int { return len(s.order) }

func (s *urlSet) sorted() []string {
	out := append([]string(nil), s.order...)
	sort.Strings(out)
	return out
}
