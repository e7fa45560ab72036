// Package token holds the dialect-agnostic intermediate form between a
// statement tree and its SQL text.
package token

import (
	"strconv"
	"strings"

	"db-forge/internal/dialect"
	"db-forge/internal/schema"
)

type Kind int

const (
	Space Kind = iota
	Literal
	Identifier
	Keyword
	Text
	Parameter
	Comment
)

func (k Kind) String() string {
	switch k {
	case Space:
		return "SPACE"
	case Literal:
		return "LITERAL"
	case Identifier:
		return "IDENTIFIER"
	case Keyword:
		return "KEYWORD"
	case Text:
		return "TEXT"
	case Parameter:
		return "PARAMETER"
	case Comment:
		return "COMMENT"
	}
	return "UNKNOWN"
}

// Token is one element of a stream. Keyword tokens carry either a fixed
// spelling in Text or an abstract ID; Parameter tokens carry the logical key
// in Text. Both are spelled by the dialect when the stream is replayed.
type Token struct {
	Kind Kind
	Text string
	ID   dialect.Keyword
	Type schema.DataType
}

// Stream is an ordered token list.
type Stream struct {
	tokens []Token
}

func (s *Stream) push(t Token) *Stream {
	s.tokens = append(s.tokens, t)
	return s
}

func (s *Stream) Space() *Stream { return s.push(Token{Kind: Space}) }

func (s *Stream) Text(text string) *Stream { return s.push(Token{Kind: Text, Text: text}) }

func (s *Stream) Literal(text string) *Stream { return s.push(Token{Kind: Literal, Text: text}) }

// Ident appends an identifier that is already quoted.
func (s *Stream) Ident(quoted string) *Stream { return s.push(Token{Kind: Identifier, Text: quoted}) }

// Keyword appends a keyword with a fixed spelling.
func (s *Stream) Keyword(word string) *Stream { return s.push(Token{Kind: Keyword, Text: word}) }

// KeywordID appends a keyword spelled by the dialect at build time.
func (s *Stream) KeywordID(id dialect.Keyword) *Stream {
	return s.push(Token{Kind: Keyword, ID: id})
}

func (s *Stream) Param(key string, t schema.DataType) *Stream {
	return s.push(Token{Kind: Parameter, Text: key, Type: t})
}

func (s *Stream) Comment(text string) *Stream { return s.push(Token{Kind: Comment, Text: text}) }

// Append moves the tokens of o to the end of s.
func (s *Stream) Append(o *Stream) *Stream {
	s.tokens = append(s.tokens, o.tokens...)
	return s
}

func (s *Stream) Tokens() []Token { return s.tokens }

func (s *Stream) Len() int { return len(s.tokens) }

// String renders a debug form, e.g. KEYWORD(SELECT) SPACE TEXT(*).
func (s *Stream) String() string {
	parts := make([]string, len(s.tokens))
	for i, t := range s.tokens {
		switch {
		case t.Kind == Space:
			parts[i] = "SPACE"
		case t.Kind == Keyword && t.Text == "":
			parts[i] = "KEYWORD#" + strconv.Itoa(int(t.ID))
		default:
			parts[i] = t.Kind.String() + "(" + t.Text + ")"
		}
	}
	return strings.Join(parts, " ")
}
