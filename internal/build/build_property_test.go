//go:build property

package build

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestBuildProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("natural order is a strict order", prop.ForAll(
		func(a, b string) bool {
			return !naturalLess(a, a) && !(naturalLess(a, b) && naturalLess(b, a))
		},
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.Property("page numbers sort by value", prop.ForAll(
		func(i, j int) bool {
			a, b := fmt.Sprintf("/posts/%d/", i), fmt.Sprintf("/posts/%d/", j)
			return naturalLess(a, b) == (i < j)
		},
		gen.IntRange(0, 100000),
		gen.IntRange(0, 100000),
	))

	properties.Property("memory cache never exceeds capacity", prop.ForAll(
		func(capacity int, keys []string) bool {
			c := NewMemoryCache(capacity)
			for _, k := range keys {
				c.Set(k, module(k))
				if c.Stats().Entries > capacity {
					return false
				}
			}
			if len(keys) == 0 {
				return true
			}
			last := keys[len(keys)-1]
			got, ok := c.Get(last)
			return ok && got.FileID == last
		},
		gen.IntRange(1, 8),
		gen.SliceOf(gen.Identifier()),
	))

	properties.Property("canonical urls end in a slash or an extension", prop.ForAll(
		func(dir string) bool {
			u, err := CanonicalURL("/"+dir+"/index.html", "https://example.com")
			return err == nil && u == "https://example.com/"+dir+"/"
		},
		gen.Identifier(),
	))

	properties.TestingRun(t)
}
