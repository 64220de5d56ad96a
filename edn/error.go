package edn

import (
	"fmt"
	"strconv"
)

// Code classifies parse failures.
type Code int

const (
	UnexpectedEOF Code = iota + 1
	InvalidChar
	InvalidEscape
	InvalidKeyword
	InvalidNumber
	InvalidRadix
	UnmatchedDelimiter
	DuplicateMapKey
	DuplicateSetKey
)

var codeNames = map[Code]string{
	UnexpectedEOF:      "unexpected EOF",
	InvalidChar:        "invalid char",
	InvalidEscape:      "invalid escape",
	InvalidKeyword:     "invalid keyword",
	InvalidNumber:      "invalid number",
	InvalidRadix:       "invalid radix",
	UnmatchedDelimiter: "unmatched delimiter",
	DuplicateMapKey:    "duplicate map key",
	DuplicateSetKey:    "duplicate set key",
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return "code(" + strconv.Itoa(int(c)) + ")"
}

// Error describes a parse failure and where in the input it happened.
// Line and Column count from 1; Offset is a byte offset into the input.
// A zero Line means the failure carries no position.
type Error struct {
	Code   Code
	Delim  rune // offending delimiter, set for UnmatchedDelimiter
	Radix  int  // offending radix for InvalidRadix; -1 when the prefix was not a number
	Line   int
	Column int
	Offset int
}

func (e *Error) Error() string {
	b := append([]byte("edn: "), e.Code.String()...)
	switch e.Code {
	case UnmatchedDelimiter:
		b = append(b, ' ')
		b = strconv.AppendQuoteRune(b, e.Delim)
	case InvalidRadix:
		if e.Radix >= 0 {
			b = append(b, ' ')
			b = strconv.AppendInt(b, int64(e.Radix), 10)
		}
	}
	if e.Line > 0 {
		b = fmt.Appendf(b, " at line %d, column %d (offset %d)", e.Line, e.Column, e.Offset)
	}
	return string(b)
}
