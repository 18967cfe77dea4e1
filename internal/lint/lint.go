// Package lint statically checks game source before it is sent to the sandbox.
package lint

import (
	"context"
	"errors"
	"fmt"

	"github.com/dyluth/playbox/internal/sandbox"
	"github.com/dyluth/playbox/internal/tokens"
	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/js"
)

const (
	RuleParse             = "parse"
	RuleRestrictedGlobals = "no-restricted-globals"
)

// DefaultRestricted are the globals a game may not reach for.
var DefaultRestricted = []string{"eval", "Function", "window", "document", "fetch", "XMLHttpRequest"}

// Validator checks a source blob and returns the problems found. An empty result means
// the source may be sent.
type Validator interface {
	Validate(ctx context.Context, source string) ([]sandbox.ErrorEntry, error)
}

// JS validates JavaScript game source.
type JS struct {
	restricted map[string]bool
}

// New creates a validator that rejects the given globals, or DefaultRestricted when none
// are given.
func New(restricted ...string) *JS {
	if len(restricted) == 0 {
		restricted = DefaultRestricted
	}
	v := &JS{restricted: make(map[string]bool, len(restricted))}
	for _, name := range restricted {
		v.restricted[name] = true
	}
	return v
}

// Validate parses source and reports a syntax error, or else every use of a restricted
// global that is not declared by the program itself.
func (v *JS) Validate(ctx context.Context, source string) ([]sandbox.ErrorEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ast, err := js.Parse(parse.NewInputString(source), js.Options{})
	if err != nil {
		return []sandbox.ErrorEntry{parseError(err)}, nil
	}

	free := make(map[string]bool)
	for _, u := range ast.BlockStmt.Scope.Undeclared {
		if name := string(u.Data); v.restricted[name] {
			free[name] = true
		}
	}
	if len(free) == 0 {
		return nil, nil
	}

	return v.scan(ctx, source, free)
}

func parseError(err error) sandbox.ErrorEntry {
	var perr *parse.Error
	if errors.As(err, &perr) {
		return sandbox.ErrorEntry{
			Kind:    RuleParse,
			Message: fmt.Sprintf("%d:%d %s", perr.Line, perr.Column, perr.Message),
		}
	}
	return sandbox.ErrorEntry{Kind: RuleParse, Message: err.Error()}
}

// scan locates each use of the free restricted names, skipping property accesses.
func (v *JS) scan(ctx context.Context, source string, free map[string]bool) ([]sandbox.ErrorEntry, error) {
	var found []sandbox.ErrorEntry
	prev := ""

	err := tokens.Walk(source, func(tok tokens.Token) error {
		if tok.Type == js.IdentifierToken && free[tok.Text] && prev != "." && prev != "?." {
			if err := ctx.Err(); err != nil {
				return err
			}
			found = append(found, sandbox.ErrorEntry{
				Kind:    RuleRestrictedGlobals,
				Message: fmt.Sprintf("%d:%d Unexpected use of '%s'", tok.Line, tok.Col, tok.Text),
			})
		}
		prev = tok.Text
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("tokenize failed: %w", err)
	}
	return found, nil
}
