// Package validation checks externally supplied strings before they reach
// a child process or the filesystem.
package validation

import (
	"fmt"
	"path"
	"strings"
)

var shellMeta = []string{";", "&", "|", "$", "`", "<", ">", "\\", "\"", "'", "\n", "\r"}

// ValidateArgument validates a command line argument to prevent injection attacks
func ValidateArgument(arg string) error {
	for _, char := range shellMeta {
		if strings.Contains(arg, char) {
			return fmt.Errorf("contains dangerous character: %q", char)
		}
	}
	return nil
}

// ValidateCommandName validates the executable of a configured command line.
func ValidateCommandName(command string) error {
	if command == "" {
		return fmt.Errorf("command cannot be empty")
	}
	if strings.ContainsAny(command, " \t") {
		return fmt.Errorf("command '%s' contains whitespace", command)
	}
	if err := ValidateArgument(command); err != nil {
		return fmt.Errorf("invalid command '%s': %w", command, err)
	}
	return nil
}

// ValidateRequestPath validates a decoded URL path before it is mapped onto
// the project directory.
func ValidateRequestPath(p string) error {
	if p == "" || p[0] != '/' {
		return fmt.Errorf("path must be absolute: %q", p)
	}
	if strings.ContainsRune(p, 0) {
		return fmt.Errorf("path contains NUL byte")
	}
	if strings.Contains(p, "\\") {
		return fmt.Errorf("path contains backslash: %q", p)
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return fmt.Errorf("path traversal detected: %s", p)
		}
	}
	if path.Clean(p) != p && path.Clean(p)+"/" != p {
		return fmt.Errorf("path is not clean: %s", p)
	}
	return nil
}
