// Package errors provides the structured error types shared by the compiler,
// the runtime page loader, and the CLI.
//
// Every failure that aborts a file's compilation is an *AstralError carrying a
// type tag and a stable code. The runtime uses the type tag to decide whether a
// failure is reported as a "parse-error" (so callers can render a code frame)
// or as a generic "unknown" error.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeParse    ErrorType = "parse-error"
	ErrorTypeCompile  ErrorType = "compile"
	ErrorTypeConfig   ErrorType = "config"
	ErrorTypeIO       ErrorType = "io"
	ErrorTypeNotFound ErrorType = "not-found"
	ErrorTypeUnknown  ErrorType = "unknown"
)

// Common error codes.
const (
	ErrCodeParse                = "ERR_PARSE"
	ErrCodeUnknownComponent     = "ERR_UNKNOWN_COMPONENT"
	ErrCodeUnsupportedStyle     = "ERR_UNSUPPORTED_STYLE"
	ErrCodeDynamicGlob          = "ERR_DYNAMIC_GLOB"
	ErrCodeNoPlugin             = "ERR_NO_PLUGIN"
	ErrCodeUnsupportedHydration = "ERR_UNSUPPORTED_HYDRATION"
	ErrCodeStyleCompile         = "ERR_STYLE_COMPILE"
	ErrCodeExpression           = "ERR_EXPRESSION"
	ErrCodeInvalidCollection    = "ERR_INVALID_COLLECTION"
	ErrCodeConfigInvalid        = "ERR_CONFIG_INVALID"
	ErrCodeFileNotFound         = "ERR_FILE_NOT_FOUND"
	ErrCodeInternalError        = "ERR_INTERNAL"
)

// AstralError is a structured error type with context.
type AstralError struct {
	Type     ErrorType
	Code     string
	Message  string
	Cause    error
	Context  map[string]interface{}
	FilePath string
	Line     int
	Column   int
}

// Error implements the error interface.
func (e *AstralError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.FilePath != "" {
		location := e.FilePath
		if e.Line > 0 {
			location += fmt.Sprintf(":%d", e.Line)
			if e.Column > 0 {
				location += fmt.Sprintf(":%d", e.Column)
			}
		}
		parts = append(parts, location)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *AstralError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison on type and code.
func (e *AstralError) Is(target error) bool {
	var t *AstralError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *AstralError) WithContext(key string, value interface{}) *AstralError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithLocation adds file location information.
func (e *AstralError) WithLocation(filePath string, line, column int) *AstralError {
	e.FilePath = filePath
	e.Line = line
	e.Column = column

	return e
}

// Error creation functions

// NewParseError creates an error for source that could not be parsed.
func NewParseError(message string, cause error) *AstralError {
	return &AstralError{
		Type:    ErrorTypeParse,
		Code:    ErrCodeParse,
		Message: message,
		Cause:   cause,
	}
}

// NewCompileError creates a fatal, file-aborting compile error.
func NewCompileError(code, message string) *AstralError {
	return &AstralError{
		Type:    ErrorTypeCompile,
		Code:    code,
		Message: message,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *AstralError {
	return &AstralError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *AstralError {
	return &AstralError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *AstralError {
	return &AstralError{
		Type:    ErrorTypeUnknown,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// TypeOf reports the type tag of err, or ErrorTypeUnknown for errors that
// were not produced by this package.
func TypeOf(err error) ErrorType {
	var ae *AstralError
	if errors.As(err, &ae) {
		return ae.Type
	}

	return ErrorTypeUnknown
}

// IsParseError checks if an error came from source that failed to parse.
func IsParseError(err error) bool {
	return TypeOf(err) == ErrorTypeParse
}

// IsCompileError checks if an error aborted a file's compilation.
func IsCompileError(err error) bool {
	t := TypeOf(err)
	return t == ErrorTypeCompile || t == ErrorTypeParse
}

// HasCode checks if err carries the given error code.
func HasCode(err error, code string) bool {
	var ae *AstralError
	if errors.As(err, &ae) {
		return ae.Code == code
	}

	return false
}

// Helper functions for common errors

// ErrUnknownComponent creates the error raised when markup references a
// component that has no import.
func ErrUnknownComponent(name, file string) *AstralError {
	return NewCompileError(ErrCodeUnknownComponent, "Unknown Component: "+name).
		WithContext("component", name).
		WithLocation(file, 0, 0)
}

// ErrUnsupportedStyle creates the error raised for an unknown <style lang>.
func ErrUnsupportedStyle(lang, file string) *AstralError {
	return NewCompileError(ErrCodeUnsupportedStyle, fmt.Sprintf("Unsupported: <style lang=%q>", lang)).
		WithLocation(file, 0, 0)
}

// ErrDynamicGlob creates the error raised when Astro.fetchContent receives
// anything other than a string literal.
func ErrDynamicGlob(file string) *AstralError {
	return NewCompileError(
		ErrCodeDynamicGlob,
		"[Astro.fetchContent] Only string literals allowed, ex: `Astro.fetchContent('./post/*.md')`",
	).WithLocation(file, 0, 0)
}

// ErrNoPlugin creates the error raised for a component extension with no
// framework plugin.
func ErrNoPlugin(ext, file string) *AstralError {
	return NewCompileError(ErrCodeNoPlugin, "No supported plugin found for extension "+ext).
		WithLocation(file, 0, 0)
}
