package compiler

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/conneroisu/astral/internal/ast"
	"github.com/conneroisu/astral/internal/errors"
	"github.com/conneroisu/astral/internal/validation"
)

// Parser produces the template tree of a component source.
type Parser interface {
	Parse(ctx context.Context, source []byte, filename string) (*ast.Tree, error)
}

// ParserFunc adapts a function to the Parser interface.
type ParserFunc func(ctx context.Context, source []byte, filename string) (*ast.Tree, error)

// Parse implements Parser.
func (f ParserFunc) Parse(ctx context.Context, source []byte, filename string) (*ast.Tree, error) {
	return f(ctx, source, filename)
}

// CommandParser runs an external parser process. The source is written to
// its stdin and the tree is read from its stdout as JSON.
type CommandParser struct {
	command string
	args    []string
}

// NewCommandParser creates a parser from a command line such as
// "node parser.mjs --json".
func NewCommandParser(commandLine string) (*CommandParser, error) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "parser command cannot be empty")
	}
	p := &CommandParser{command: fields[0], args: fields[1:]}
	if err := p.validateCommand(); err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, err.Error()).
			WithContext("parser_command", commandLine)
	}
	return p, nil
}

// Parse runs the parser once for source. filename is passed as the last
// argument so the parser can report locations.
func (p *CommandParser) Parse(ctx context.Context, source []byte, filename string) (*ast.Tree, error) {
	args := append(append([]string{}, p.args...), filename)
	cmd := exec.CommandContext(ctx, p.command, args...)
	cmd.Stdin = bytes.NewReader(source)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("parser timed out: %w", ctx.Err())
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, errors.NewParseError(msg, nil).WithLocation(filename, 0, 0)
	}

	tree, err := ast.Decode(stdout.Bytes())
	if err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInternalError, "decoding parser output", err).
			WithLocation(filename, 0, 0)
	}
	return tree, nil
}

// validateCommand rejects command lines with shell metacharacters.
func (p *CommandParser) validateCommand() error {
	if err := validation.ValidateCommandName(p.command); err != nil {
		return err
	}
	for _, arg := range p.args {
		if err := validation.ValidateArgument(arg); err != nil {
			return fmt.Errorf("invalid argument '%s': %w", arg, err)
		}
	}
	return nil
}
