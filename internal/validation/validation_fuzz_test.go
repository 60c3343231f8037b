package validation

import (
	"path"
	"strings"
	"testing"
)

func FuzzValidateRequestPath(f *testing.F) {
	for _, seed := range []string{"/", "/posts/2", "/../x", "/a/./b", "/a%2f..", ""} {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, p string) {
		if ValidateRequestPath(p) != nil {
			return
		}
		if strings.Contains(p, "..") && strings.Contains(path.Clean(p), "/../") {
			t.Errorf("accepted traversal path %q", p)
		}
		if !strings.HasPrefix(path.Clean(p), "/") {
			t.Errorf("accepted relative path %q", p)
		}
	})
}

func FuzzValidateArgument(f *testing.F) {
	for _, seed := range []string{"--json", "a;b", "$(id)", "`id`"} {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, arg string) {
		if ValidateArgument(arg) != nil {
			return
		}
		for _, c := range shellMeta {
			if strings.Contains(arg, c) {
				t.Errorf("accepted argument %q containing %q", arg, c)
			}
		}
	})
}
