package styles

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// ClassPrefix starts every scoped class.
const ClassPrefix = "astro-"

// ScopedClass returns the class token for a file. It depends only on the
// project relative path, so recompiles of the same file agree and two files
// with identical markup do not.
func ScopedClass(fileID string) string {
	sum := sha256.Sum256([]byte(strings.ReplaceAll(fileID, `\`, "/")))
	encoded := base64.StdEncoding.EncodeToString(sum[:])

	var b strings.Builder
	for _, r := range encoded {
		if b.Len() == 8 {
			break
		}
		if r == '-' || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return ClassPrefix + b.String()
}
