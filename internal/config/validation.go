package config

import (
	"fmt"
	"net"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/conneroisu/astral/internal/errors"
	"github.com/conneroisu/astral/internal/logging"
	"github.com/conneroisu/astral/internal/validation"
	"github.com/conneroisu/astral/internal/wrapper"
)

// ValidationError is a configuration value that failed validation.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

func invalid(field string, value interface{}, format string, args ...interface{}) error {
	ve := &ValidationError{Field: field, Value: value, Message: fmt.Sprintf(format, args...)}
	return &errors.AstralError{
		Type:    errors.ErrorTypeConfig,
		Code:    errors.ErrCodeConfigInvalid,
		Message: "invalid configuration",
		Cause:   ve,
		Context: map[string]interface{}{"field": field},
	}
}

// validateConfig validates configuration values for security and correctness
func validateConfig(cfg *Config) error {
	validators := []func(*Config) error{
		validateProjectConfig,
		validateCompilerConfig,
		validateRuntimeConfig,
		validateServerConfig,
		validateBuildConfig,
		validateLoggingConfig,
	}
	for _, validate := range validators {
		if err := validate(cfg); err != nil {
			return err
		}
	}
	return nil
}

func validateProjectConfig(cfg *Config) error {
	if strings.ContainsRune(cfg.Project.Root, 0) {
		return invalid("project.root", cfg.Project.Root, "path contains NUL byte")
	}
	dirs := []struct {
		field, value string
	}{
		{"project.src", cfg.Project.Src},
		{"project.pages", cfg.Project.Pages},
		{"project.public", cfg.Project.Public},
		{"project.dist", cfg.Project.Dist},
	}
	for _, d := range dirs {
		if err := validateRelativePath(d.value); err != nil {
			return invalid(d.field, d.value, "%v", err)
		}
	}
	return nil
}

func validateCompilerConfig(cfg *Config) error {
	c := &cfg.Compiler
	switch c.Mode {
	case "development", "production":
	default:
		return invalid("compiler.mode", c.Mode, "must be development or production")
	}
	for ext, name := range c.Extensions {
		if ext == "" || strings.ContainsAny(ext, "./\\ ") {
			return invalid("compiler.extensions", ext, "extension must be a bare name such as mdx")
		}
		if _, err := wrapper.ParseFramework(name); err != nil {
			return invalid("compiler.extensions", name, "%v", err)
		}
	}
	if c.ParserCommand != "" {
		fields := strings.Fields(c.ParserCommand)
		if len(fields) == 0 {
			return invalid("compiler.parser_command", c.ParserCommand, "command cannot be empty")
		}
		if err := validation.ValidateCommandName(fields[0]); err != nil {
			return invalid("compiler.parser_command", c.ParserCommand, "%v", err)
		}
		for _, arg := range fields[1:] {
			if err := validation.ValidateArgument(arg); err != nil {
				return invalid("compiler.parser_command", c.ParserCommand, "%v", err)
			}
		}
	}
	if c.SassBinary != "" {
		if err := validation.ValidateArgument(c.SassBinary); err != nil {
			return invalid("compiler.sass_binary", c.SassBinary, "%v", err)
		}
	}
	if c.Workers < 0 {
		return invalid("compiler.workers", c.Workers, "must not be negative")
	}
	return nil
}

func validateRuntimeConfig(cfg *Config) error {
	if cfg.Runtime.Site != "" {
		if err := validation.ValidateSite(cfg.Runtime.Site); err != nil {
			return invalid("runtime.site", cfg.Runtime.Site, "%v", err)
		}
	}
	if err := validation.ValidateCommandName(cfg.Runtime.NodeCommand); err != nil {
		return invalid("runtime.node_command", cfg.Runtime.NodeCommand, "%v", err)
	}
	return nil
}

// validateServerConfig validates server configuration values
func validateServerConfig(cfg *Config) error {
	// 0 lets the system assign a port.
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return invalid("server.port", cfg.Server.Port, "port %d is not in valid range 0-65535", cfg.Server.Port)
	}
	if cfg.Server.Host != "" {
		if err := validateHostname(cfg.Server.Host); err != nil {
			return invalid("server.host", cfg.Server.Host, "%v", err)
		}
	}
	return nil
}

func validateBuildConfig(cfg *Config) error {
	if err := validateRelativePath(cfg.Build.CacheDir); err != nil {
		return invalid("build.cache_dir", cfg.Build.CacheDir, "%v", err)
	}
	if cfg.Build.CacheSize < 0 {
		return invalid("build.cache_size", cfg.Build.CacheSize, "must not be negative")
	}
	for _, pattern := range cfg.Build.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return invalid("build.exclude", pattern, "invalid glob pattern")
		}
	}
	return nil
}

func validateLoggingConfig(cfg *Config) error {
	if _, err := logging.ParseLevel(cfg.Logging.Level); err != nil {
		return invalid("logging.level", cfg.Logging.Level, "%v", err)
	}
	switch cfg.Logging.Format {
	case "text", "json":
	default:
		return invalid("logging.format", cfg.Logging.Format, "must be text or json")
	}
	return nil
}

// validateRelativePath accepts a non-empty path inside the project root.
func validateRelativePath(p string) error {
	if p == "" {
		return fmt.Errorf("empty path")
	}
	if strings.ContainsRune(p, 0) {
		return fmt.Errorf("path contains NUL byte")
	}
	clean := filepath.Clean(filepath.FromSlash(p))
	if filepath.IsAbs(clean) {
		return fmt.Errorf("path should be relative to the project root: %s", p)
	}
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path contains traversal: %s", p)
	}
	return nil
}

var hostnameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

func validateHostname(host string) error {
	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
	for _, char := range dangerousChars {
		if strings.Contains(host, char) {
			return fmt.Errorf("contains dangerous character: %s", char)
		}
	}
	if net.ParseIP(host) != nil {
		return nil
	}
	if !hostnameRegex.MatchString(host) {
		return fmt.Errorf("invalid hostname format")
	}
	return nil
}
