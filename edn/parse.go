package edn

import (
	"errors"
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// isDelimiter reports whether r terminates a literal. Hash and quote are
// ordinary literal characters.
func isDelimiter(r rune) bool {
	switch r {
	case ',', ']', '}', ')', ';', '(', '[', '{':
		return true
	}
	return false
}

// walker tracks a byte offset into the input plus the human position
// reported in errors.
type walker struct {
	input  string
	ptr    int
	line   int
	column int
}

func (w *walker) peek() (rune, bool) {
	if w.ptr >= len(w.input) {
		return 0, false
	}
	r, _ := utf8.DecodeRuneInString(w.input[w.ptr:])
	return r, true
}

func (w *walker) next() (rune, bool) {
	if w.ptr >= len(w.input) {
		return 0, false
	}
	r, size := utf8.DecodeRuneInString(w.input[w.ptr:])
	w.ptr += size
	if r == '\n' {
		w.line++
		w.column = 1
	} else {
		w.column++
	}
	return r, true
}

// skipWhitespace stops at the start of the next form. Commas count as
// whitespace.
func (w *walker) skipWhitespace() {
	for {
		r, ok := w.peek()
		if !ok || (r != ',' && !unicode.IsSpace(r)) {
			return
		}
		w.next()
	}
}

// skipComment consumes the rest of the line and any whitespace after it.
func (w *walker) skipComment() {
	if i := strings.IndexByte(w.input[w.ptr:], '\n'); i >= 0 {
		w.ptr += i
	} else {
		w.ptr = len(w.input)
	}
	w.skipWhitespace()
}

// slurpLiteral takes everything up to the next whitespace or delimiter.
func (w *walker) slurpLiteral() string {
	rest := w.input[w.ptr:]
	end := len(rest)
	for i, r := range rest {
		if unicode.IsSpace(r) || isDelimiter(r) {
			end = i
			break
		}
	}
	tok := rest[:end]
	w.ptr += len(tok)
	w.column += len(tok)
	return tok
}

// slurpChar takes a leading backslash plus at least one character, so
// delimiters can appear as chars while \c[ still splits after the c.
func (w *walker) slurpChar() string {
	start := w.ptr
	for {
		r, ok := w.peek()
		if !ok {
			break
		}
		if w.ptr-start > 1 && (unicode.IsSpace(r) || isDelimiter(r)) {
			break
		}
		w.next()
	}
	return w.input[start:w.ptr]
}

// slurpString consumes a double-quoted string, validating escape
// sequences without decoding them.
func (w *walker) slurpString() (Value, error) {
	w.next()
	start := w.ptr
	escaped := false
	for {
		r, ok := w.next()
		if !ok {
			return Value{}, w.errHere(UnexpectedEOF)
		}
		switch {
		case escaped:
			switch r {
			case 't', 'r', 'n', '\\', '"':
			default:
				return Value{}, w.errHere(InvalidEscape)
			}
			escaped = false
		case r == '"':
			return Str(w.input[start : w.ptr-1]), nil
		default:
			escaped = r == '\\'
		}
	}
}

func (w *walker) errHere(code Code) *Error {
	return &Error{Code: code, Line: w.line, Column: w.column, Offset: w.ptr}
}

func readForm(s string) (Value, string, error) {
	w := &walker{input: s, line: 1, column: 1}
	v, _, err := parseForm(w)
	if err != nil {
		return Value{}, "", err
	}
	return v, s[w.ptr:], nil
}

// parseForm reads one form. The ok result is false when the walker
// stopped without producing a value: end of input, or a closing
// delimiter owned by the caller.
func parseForm(w *walker) (Value, bool, error) {
	w.skipWhitespace()
	for {
		r, more := w.peek()
		if !more {
			return Value{}, false, nil
		}
		startLine, startColumn, startPtr := w.line, w.column, w.ptr
		switch r {
		case '\\':
			tok := w.slurpChar()
			v, valid := charValue(tok)
			if !valid {
				return Value{}, false, &Error{Code: InvalidChar, Line: w.line, Column: startColumn, Offset: w.ptr}
			}
			return v, true, nil
		case '"':
			v, err := w.slurpString()
			if err != nil {
				return Value{}, false, err
			}
			return v, true, nil
		case ';':
			w.skipComment()
			continue
		case '[':
			v, err := parseSeq(w, ']')
			return v, err == nil, err
		case '(':
			v, err := parseSeq(w, ')')
			return v, err == nil, err
		case '{':
			v, err := parseMap(w)
			return v, err == nil, err
		case '#':
			w.next()
			v, ok, err := parseTagSetDiscard(w)
			if err != nil {
				return Value{}, false, err
			}
			if ok {
				return v, true, nil
			}
			continue
		default:
			tok := w.slurpLiteral()
			v, ok, err := literalValue(tok)
			if err != nil {
				perr := err.(*Error)
				perr.Line, perr.Column, perr.Offset = startLine, startColumn, startPtr
				return Value{}, false, perr
			}
			if !ok {
				return Value{}, false, nil
			}
			return v, true, nil
		}
	}
}

// parseTagSetDiscard handles the three '#' forms once the hash has been
// consumed: #{...} sets, #_ discards and #tag values.
func parseTagSetDiscard(w *walker) (Value, bool, error) {
	switch r, ok := w.peek(); {
	case ok && r == '{':
		v, err := parseSet(w)
		return v, err == nil, err
	case ok && r == '_':
		return parseDiscard(w)
	default:
		v, err := parseTag(w)
		return v, err == nil, err
	}
}

// parseDiscard drops the form after #_ and yields the one after that.
// Discarding the last form in the input yields nil.
func parseDiscard(w *walker) (Value, bool, error) {
	w.next()
	if _, ok, err := parseForm(w); err != nil {
		return Value{}, false, err
	} else if !ok {
		return Value{}, false, w.errHere(UnexpectedEOF)
	}
	if _, more := w.peek(); !more {
		return Value{}, true, nil
	}
	return parseForm(w)
}

// parseTag reads a tag literal and the value it applies to. Tag text is
// kept as written; there are no custom readers.
func parseTag(w *walker) (Value, error) {
	w.skipWhitespace()
	tag := w.slurpLiteral()
	v, ok, err := parseForm(w)
	if err != nil {
		return Value{}, err
	}
	if !ok {
		return Value{}, w.errHere(UnexpectedEOF)
	}
	return Tagged(tag, v), nil
}

func parseSet(w *walker) (Value, error) {
	w.next()
	var elems []Value
	for {
		r, ok := w.peek()
		if !ok {
			return Value{}, w.errHere(UnexpectedEOF)
		}
		switch r {
		case '}':
			w.next()
			return Value{kind: KindSet, elems: elems}, nil
		case ']', ')':
			return Value{}, &Error{Code: UnmatchedDelimiter, Delim: r, Line: w.line, Column: w.column, Offset: w.ptr}
		}
		v, present, err := parseForm(w)
		if err != nil {
			return Value{}, err
		}
		if !present {
			continue
		}
		var dup bool
		if elems, dup = insertSorted(elems, v); dup {
			return Value{}, w.errHere(DuplicateSetKey)
		}
	}
}

func parseMap(w *walker) (Value, error) {
	w.next()
	var pairs []Value
	for {
		r, ok := w.peek()
		if !ok {
			return Value{}, w.errHere(UnexpectedEOF)
		}
		switch r {
		case '}':
			w.next()
			return Value{kind: KindMap, elems: pairs}, nil
		case ']', ')':
			return Value{}, &Error{Code: UnmatchedDelimiter, Delim: r, Line: w.line, Column: w.column, Offset: w.ptr}
		}
		key, haveKey, err := parseForm(w)
		if err != nil {
			return Value{}, err
		}
		val, haveVal, err := parseForm(w)
		if err != nil {
			return Value{}, err
		}
		// A dangling key with no value is dropped.
		if haveKey && haveVal {
			i, found := findKey(pairs, key)
			if found {
				return Value{}, w.errHere(DuplicateMapKey)
			}
			pairs = slices.Insert(pairs, i, key, val)
		}
	}
}

// parseSeq parses the element list shared by vectors and lists.
func parseSeq(w *walker, closer rune) (Value, error) {
	w.next()
	var elems []Value
	for {
		r, ok := w.peek()
		if !ok {
			return Value{}, w.errHere(UnexpectedEOF)
		}
		if r == closer {
			w.next()
			if closer == ']' {
				return Value{kind: KindVector, elems: elems}, nil
			}
			return Value{kind: KindList, elems: elems}, nil
		}
		v, present, err := parseForm(w)
		if err != nil {
			return Value{}, err
		}
		if present {
			elems = append(elems, v)
			continue
		}
		// Nothing parsed. A trailing discard or comment leaves the walker
		// on our closer; a stray closer gets skipped.
		if r, ok := w.peek(); ok && r != closer {
			w.next()
		}
	}
}

// literalValue resolves a bare token. The empty token resolves to
// nothing, which is what the walker yields when it stops on a delimiter.
func literalValue(tok string) (Value, bool, error) {
	switch tok {
	case "nil":
		return Value{}, true, nil
	case "true":
		return Bool(true), true, nil
	case "false":
		return Bool(false), true, nil
	case "":
		return Value{}, false, nil
	}
	if tok[0] == ':' {
		if len(tok) <= 1 {
			return Value{}, false, &Error{Code: InvalidKeyword}
		}
		return Keyword(tok[1:]), true, nil
	}
	if numericLiteral(tok) {
		v, err := numberValue(tok)
		return v, err == nil, err
	}
	return Symbol(tok), true, nil
}

// numericLiteral reports whether a token starts like a number: a digit,
// or a sign followed by a digit.
func numericLiteral(tok string) bool {
	first, size := utf8.DecodeRuneInString(tok)
	if unicode.IsNumber(first) {
		return true
	}
	if (first == '-' || first == '+') && size < len(tok) {
		second, _ := utf8.DecodeRuneInString(tok[size:])
		return unicode.IsNumber(second)
	}
	return false
}

// numberValue parses ints with optional hex or radix prefixes, then
// doubles, then rationals, in that order.
func numberValue(tok string) (Value, error) {
	num := tok
	polarity := int64(1)
	switch tok[0] {
	case '-':
		polarity = -1
		num = tok[1:]
	case '+':
		num = tok[1:]
	}

	radix := 10
	if len(num) >= 2 && (num[:2] == "0x" || num[:2] == "0X") {
		num = num[2:]
		radix = 16
	} else if i := strings.IndexAny(num, "rR"); i >= 0 {
		r, err := strconv.ParseUint(num[:i], 10, 8)
		if err != nil {
			return Value{}, &Error{Code: InvalidRadix, Radix: -1}
		}
		if r < 2 || r > 36 {
			return Value{}, &Error{Code: InvalidRadix, Radix: int(r)}
		}
		num = num[i+1:]
		radix = int(r)
	}

	if n, err := strconv.ParseInt(num, radix, 64); err == nil {
		return Int(n * polarity), nil
	}
	// strconv allows Go literal underscores; the notation does not.
	if !strings.ContainsRune(num, '_') {
		if f, err := strconv.ParseFloat(num, 64); err == nil || errors.Is(err, strconv.ErrRange) {
			return Double(f * float64(polarity)), nil
		}
	}
	if slash := strings.IndexByte(num, '/'); slash >= 0 {
		n, nerr := strconv.ParseInt(num[:slash], 10, 64)
		d, derr := strconv.ParseInt(num[slash+1:], 10, 64)
		if nerr == nil && derr == nil {
			return Rational(n*polarity, d), nil
		}
	}
	return Value{}, &Error{Code: InvalidNumber}
}

// charValue resolves a char token including its leading backslash. Named
// chars cover the EDN whitespace set; anything else must be one byte.
func charValue(tok string) (Value, bool) {
	lit := tok[1:]
	switch lit {
	case "newline":
		return Char('\n'), true
	case "return":
		return Char('\r'), true
	case "tab":
		return Char('\t'), true
	case "space":
		return Char(' '), true
	}
	if len(lit) == 1 {
		return Char(rune(lit[0])), true
	}
	return Value{}, false
}
