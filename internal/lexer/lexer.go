package lexer

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/smeli-lang/smeli-sub000/internal/diagnostics"
	"github.com/smeli-lang/smeli-sub000/internal/token"
)

type Lexer struct {
	input        string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           rune // current char under examination
	line         int  // current line, 0-based
	lineStart    int  // offset of the first byte of the current line

	tokLine, tokColumn int // 1-based start of the token being read
}

func New(input string) *Lexer {
	return NewAt(input, 0)
}

// NewAt starts lexing input at byte offset. Positions stay absolute, so
// diagnostics for a re-parsed tail point into the whole document.
func NewAt(input string, offset int) *Lexer {
	if offset < 0 {
		offset = 0
	}
	if offset > len(input) {
		offset = len(input)
	}
	l := &Lexer{input: input, readPosition: offset}
	l.line = strings.Count(input[:offset], "\n")
	l.lineStart = strings.LastIndexByte(input[:offset], '\n') + 1
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.lineStart = l.readPosition
	}

	if l.readPosition >= len(l.input) {
		l.ch = 0
		l.position = len(l.input)
		l.readPosition = len(l.input) + 1
		return
	}
	r, w := utf8.DecodeRuneInString(l.input[l.readPosition:])
	l.ch = r
	l.position = l.readPosition
	l.readPosition += w
}

func (l *Lexer) peekChar() rune {
	if l.readPosition >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPosition:])
	return r
}

// Position converts an absolute offset on the current line to 1-based
// line/column.
func (l *Lexer) position1(offset int) (int, int) {
	return l.line + 1, utf8.RuneCountInString(l.input[l.lineStart:offset]) + 1
}

func (l *Lexer) makeToken(t token.TokenType, start int, literal interface{}) token.Token {
	line, col := l.tokLine, l.tokColumn
	end := l.position
	if end > len(l.input) {
		end = len(l.input)
	}
	return token.Token{Type: t, Lexeme: l.input[start:end], Literal: literal, Offset: start, Line: line, Column: col}
}

func (l *Lexer) illegal(start int, code diagnostics.ErrorCode, msg string) token.Token {
	tok := l.makeToken(token.ILLEGAL, start, nil)
	tok.Literal = diagnostics.NewError(code, tok, "%s", msg)
	return tok
}

// NextToken returns the next token. NEWLINE tokens separate statements.
func (l *Lexer) NextToken() token.Token {
	l.skipWhitespace()

	start := l.position
	l.tokLine, l.tokColumn = l.position1(start)
	if l.ch == 0 {
		return l.makeToken(token.EOF, len(l.input), nil)
	}

	two := func(next rune, double token.TokenType, single token.TokenType) token.Token {
		if l.peekChar() == next {
			l.readChar()
			l.readChar()
			return l.makeToken(double, start, nil)
		}
		l.readChar()
		return l.makeToken(single, start, nil)
	}

	switch l.ch {
	case '\n':
		l.readChar()
		return l.makeToken(token.NEWLINE, start, nil)
	case '#':
		return l.readComment()
	case '"':
		return l.readString()
	case '+':
		l.readChar()
		return l.makeToken(token.PLUS, start, nil)
	case '-':
		l.readChar()
		return l.makeToken(token.MINUS, start, nil)
	case '*':
		l.readChar()
		return l.makeToken(token.ASTERISK, start, nil)
	case '/':
		l.readChar()
		return l.makeToken(token.SLASH, start, nil)
	case '%':
		l.readChar()
		return l.makeToken(token.PERCENT, start, nil)
	case '=', '!':
		ch, next := l.ch, l.peekChar()
		switch {
		case ch == '=' && next == '>':
			return two('>', token.ARROW, token.ARROW)
		case ch == '=' && next == '=':
			return two('=', token.EQ, token.EQ)
		case ch == '!' && next == '=':
			return two('=', token.NOT_EQ, token.NOT_EQ)
		}
		l.readChar()
		return l.illegal(start, diagnostics.ErrL001, "unexpected character '"+string(ch)+"'")
	case '<':
		return two('=', token.LTE, token.LT)
	case '>':
		return two('=', token.GTE, token.GT)
	case ':':
		l.readChar()
		return l.makeToken(token.COLON, start, nil)
	case ',':
		l.readChar()
		return l.makeToken(token.COMMA, start, nil)
	case '.':
		l.readChar()
		return l.makeToken(token.DOT, start, nil)
	case '@':
		l.readChar()
		return l.makeToken(token.AT, start, nil)
	case '(':
		l.readChar()
		return l.makeToken(token.LPAREN, start, nil)
	case ')':
		l.readChar()
		return l.makeToken(token.RPAREN, start, nil)
	case '{':
		l.readChar()
		return l.makeToken(token.LBRACE, start, nil)
	case '}':
		l.readChar()
		return l.makeToken(token.RBRACE, start, nil)
	}

	if isLetter(l.ch) {
		ident := l.readIdentifier()
		return l.makeToken(token.LookupIdent(ident), start, ident)
	}
	if isDigit(l.ch) {
		return l.readNumber()
	}

	ch := l.ch
	l.readChar()
	return l.illegal(start, diagnostics.ErrL001, "unexpected character '"+string(ch)+"'")
}

// Tokenize reads the whole input, EOF included.
func (l *Lexer) Tokenize() []token.Token {
	var tokens []token.Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == token.EOF {
			return tokens
		}
	}
}

func (l *Lexer) readComment() token.Token {
	start := l.position
	level := 0
	for l.ch == '#' {
		level++
		l.readChar()
	}
	marker := false
	if l.ch == '>' {
		marker = true
		l.readChar()
	}
	textStart := l.position
	for l.ch != '\n' && l.ch != 0 {
		l.readChar()
	}
	text := strings.TrimSpace(l.input[textStart:min(l.position, len(l.input))])
	return l.makeToken(token.COMMENT, start, token.Comment{Level: level, Marker: marker, Text: text})
}

// readString reads a double-quoted string. There are no escape sequences.
func (l *Lexer) readString() token.Token {
	start := l.position
	l.readChar() // opening quote
	contentStart := l.position
	for l.ch != '"' {
		if l.ch == 0 {
			return l.illegal(start, diagnostics.ErrL002, "unterminated string literal")
		}
		l.readChar()
	}
	content := l.input[contentStart:l.position]
	l.readChar() // closing quote
	return l.makeToken(token.STRING, start, content)
}

func (l *Lexer) readIdentifier() string {
	position := l.position
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[position:l.position]
}

func (l *Lexer) readNumber() token.Token {
	start := l.position
	base := 10

	// Check for base prefixes: 0x, 0b, 0o
	if l.ch == '0' {
		switch l.peekChar() {
		case 'x', 'X':
			base = 16
		case 'b', 'B':
			base = 2
		case 'o', 'O':
			base = 8
		}
		if base != 10 {
			l.readChar()
			l.readChar()
		}
	}

	digitsStart := l.position
	for isDigitInBase(l.ch, base) {
		l.readChar()
	}
	if base != 10 && l.position == digitsStart {
		return l.illegal(start, diagnostics.ErrL003, "missing digits after radix prefix")
	}

	if base == 10 && l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar() // .
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	// 12ab, 0b102 and friends are one malformed token rather than two tokens
	if isLetter(l.ch) || isDigit(l.ch) {
		for isLetter(l.ch) || isDigit(l.ch) {
			l.readChar()
		}
		return l.illegal(start, diagnostics.ErrL003, "malformed number literal '"+l.input[start:l.position]+"'")
	}

	lexeme := l.input[start:l.position]
	value, err := ParseNumber(lexeme)
	if err != nil {
		return l.illegal(start, diagnostics.ErrL003, err.Error())
	}
	return l.makeToken(token.NUMBER, start, value)
}

// ParseNumber converts a number lexeme (decimal or 0b/0o/0x, with an
// optional leading '-') to its value.
func ParseNumber(lexeme string) (float64, error) {
	negative := strings.HasPrefix(lexeme, "-")
	body := strings.TrimSpace(strings.TrimPrefix(lexeme, "-"))
	var value float64
	if len(body) > 1 && body[0] == '0' && strings.ContainsRune("xXbBoO", rune(body[1])) {
		// strconv.ParseInt(s, 0, 64) auto-detects base
		i, err := strconv.ParseInt(body, 0, 64)
		if err != nil {
			return 0, err
		}
		value = float64(i)
	} else {
		f, err := strconv.ParseFloat(body, 64)
		if err != nil {
			return 0, err
		}
		value = f
	}
	if negative {
		value = -value
	}
	return value, nil
}

func isDigitInBase(ch rune, base int) bool {
	switch base {
	case 2:
		return ch == '0' || ch == '1'
	case 8:
		return '0' <= ch && ch <= '7'
	case 16:
		return isDigit(ch) || ('a' <= ch && ch <= 'f') || ('A' <= ch && ch <= 'F')
	}
	return isDigit(ch)
}

func isLetter(ch rune) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_' || (ch >= 0x80 && unicode.IsLetter(ch))
}

func isDigit(ch rune) bool {
	return '0' <= ch && ch <= '9'
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' {
		l.readChar()
	}
}
