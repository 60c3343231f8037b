package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateArgument(t *testing.T) {
	tests := []struct {
		name    string
		arg     string
		wantErr bool
	}{
		{name: "plain flag", arg: "--json", wantErr: false},
		{name: "relative script", arg: "../parser/index.mjs", wantErr: false},
		{name: "absolute script", arg: "/opt/astro/parser.mjs", wantErr: false},
		{name: "semicolon", arg: "x; rm -rf /", wantErr: true},
		{name: "pipe", arg: "x | cat", wantErr: true},
		{name: "backtick", arg: "x`whoami`", wantErr: true},
		{name: "substitution", arg: "file$(whoami)", wantErr: true},
		{name: "newline", arg: "a\nb", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateArgument(tt.arg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateCommandName(t *testing.T) {
	assert.NoError(t, ValidateCommandName("node"))
	assert.NoError(t, ValidateCommandName("/usr/local/bin/node"))
	assert.Error(t, ValidateCommandName(""))
	assert.Error(t, ValidateCommandName("node -e"))
	assert.Error(t, ValidateCommandName("node;ls"))
}

func TestValidateRequestPath(t *testing.T) {
	tests := []struct {
		path    string
		wantErr bool
	}{
		{"/", false},
		{"/posts", false},
		{"/posts/", false},
		{"/posts/2", false},
		{"/favicon.ico", false},
		{"", true},
		{"posts", true},
		{"/../etc/passwd", true},
		{"/a/../b", true},
		{"/a//b", true},
		{"/a\\b", true},
		{"/a\x00b", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			err := ValidateRequestPath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateSite(t *testing.T) {
	assert.NoError(t, ValidateSite("https://example.com"))
	assert.NoError(t, ValidateSite("http://localhost:3000/blog"))
	assert.Error(t, ValidateSite("ftp://example.com"))
	assert.Error(t, ValidateSite("https://"))
	assert.Error(t, ValidateSite("https://example.com/?q=1"))
	assert.Error(t, ValidateSite("javascript:alert(1)"))
}
