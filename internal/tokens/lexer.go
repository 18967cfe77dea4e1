package tokens

import (
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/js"
)

// Token is a significant JavaScript token and its 1-based position.
type Token struct {
	Type js.TokenType
	Text string
	Line int
	Col  int
}

// keywordsBeforeExpression are the keywords after which a '/' starts a regular expression.
var keywordsBeforeExpression = map[string]bool{
	"return": true, "typeof": true, "instanceof": true, "in": true, "of": true, "new": true,
	"delete": true, "void": true, "throw": true, "case": true, "do": true, "else": true,
	"yield": true, "await": true, "extends": true,
}

// Walk lexes src and calls fn for every token that is not whitespace, a line terminator or
// a comment. A '/' in a position where an expression may start is read as a regular
// expression literal. Walk stops at the first error returned by fn or by the lexer.
func Walk(src string, fn func(Token) error) error {
	l := js.NewLexer(parse.NewInputString(src))

	line, col := 1, 1
	prevType := js.ErrorToken
	prev := ""
	afterDot := false

	for {
		tt, data := l.Next()
		if tt == js.ErrorToken {
			if err := l.Err(); err != nil && err != io.EOF {
				return err
			}
			return nil
		}

		if (tt == js.DivToken || tt == js.DivEqToken) && startsExpression(prevType, prev, afterDot) {
			if tt, data = l.RegExp(); tt == js.ErrorToken {
				if err := l.Err(); err != nil && err != io.EOF {
					return err
				}
				return fmt.Errorf("unterminated regular expression on line %d and column %d", line, col)
			}
		}

		text := string(data)
		switch tt {
		case js.WhitespaceToken, js.LineTerminatorToken, js.CommentToken, js.CommentLineTerminatorToken:
		default:
			if err := fn(Token{Type: tt, Text: text, Line: line, Col: col}); err != nil {
				return err
			}
			afterDot = prev == "." || prev == "?."
			prevType, prev = tt, text
		}

		if n := strings.Count(text, "\n"); n > 0 {
			line += n
			col = len(text) - strings.LastIndex(text, "\n")
		} else {
			col += utf8.RuneCountInString(text)
		}
	}
}

// startsExpression reports whether the token after prev begins an expression. prevType is
// ErrorToken at the start of the source. afterDot is set when prev followed a member access.
func startsExpression(prevType js.TokenType, prev string, afterDot bool) bool {
	switch prevType {
	case js.ErrorToken:
		return true
	case js.StringToken, js.TemplateToken, js.TemplateEndToken, js.RegExpToken, js.PrivateIdentifierToken:
		return false
	}

	switch prev {
	case ")", "]", "}", "++", "--":
		return false
	}

	r, _ := utf8.DecodeRuneInString(prev)
	switch {
	case unicode.IsDigit(r), r == '.' && len(prev) > 1:
		return false
	case r == '_', r == '$', r == '\\', unicode.IsLetter(r):
		return !afterDot && keywordsBeforeExpression[prev]
	}
	return true
}
