package token

type TokenType string

const (
	ILLEGAL TokenType = "ILLEGAL"
	EOF     TokenType = "EOF"
	NEWLINE TokenType = "NEWLINE"
	COMMENT TokenType = "COMMENT" // # heading, ##> marker

	IDENT  TokenType = "IDENT"
	NUMBER TokenType = "NUMBER"
	STRING TokenType = "STRING"

	// Operators
	PLUS     TokenType = "+"
	MINUS    TokenType = "-"
	ASTERISK TokenType = "*"
	SLASH    TokenType = "/"
	PERCENT  TokenType = "%"
	EQ       TokenType = "=="
	NOT_EQ   TokenType = "!="
	LT       TokenType = "<"
	GT       TokenType = ">"
	LTE      TokenType = "<="
	GTE      TokenType = ">="
	ARROW    TokenType = "=>"

	// Delimiters
	COLON  TokenType = ":"
	COMMA  TokenType = ","
	DOT    TokenType = "."
	AT     TokenType = "@"
	LPAREN TokenType = "("
	RPAREN TokenType = ")"
	LBRACE TokenType = "{"
	RBRACE TokenType = "}"

	// Keywords
	TRUE  TokenType = "TRUE"
	FALSE TokenType = "FALSE"
	IF    TokenType = "IF"
	THEN  TokenType = "THEN"
	ELSE  TokenType = "ELSE"
)

// Token is a lexeme with its absolute position in the source.
// Offset is a byte offset; Line and Column are 1-based.
type Token struct {
	Type    TokenType
	Lexeme  string
	Literal interface{}
	Offset  int
	Line    int
	Column  int
}

// End returns the byte offset just past the token.
func (t Token) End() int {
	return t.Offset + len(t.Lexeme)
}

// Comment is the literal carried by COMMENT tokens.
type Comment struct {
	Level  int
	Marker bool
	Text   string
}

var keywords = map[string]TokenType{
	"true":  TRUE,
	"false": FALSE,
	"if":    IF,
	"then":  THEN,
	"else":  ELSE,
}

// LookupIdent returns the keyword type for ident, or IDENT.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}

// KeywordText returns the source spelling of a keyword type.
func KeywordText(t TokenType) string {
	for text, kw := range keywords {
		if kw == t {
			return text
		}
	}
	return string(t)
}
