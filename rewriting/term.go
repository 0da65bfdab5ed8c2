package rewriting

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
)

// MutableTerm is the builder form of a term. It has value semantics: Add
// never writes into a backing array shared with a copy.
type MutableTerm struct {
	symbols []Symbol
}

func NewMutableTerm(symbols ...Symbol) MutableTerm {
	return MutableTerm{symbols: slices.Clone(symbols)}
}

func (t *MutableTerm) Add(s Symbol) {
	t.symbols = append(t.symbols[:len(t.symbols):len(t.symbols)], s)
}

func (t *MutableTerm) Append(other MutableTerm) {
	t.symbols = append(t.symbols[:len(t.symbols):len(t.symbols)], other.symbols...)
}

func (t MutableTerm) Len() int           { return len(t.symbols) }
func (t MutableTerm) Empty() bool        { return len(t.symbols) == 0 }
func (t MutableTerm) At(i int) Symbol    { return t.symbols[i] }
func (t MutableTerm) Front() Symbol      { return t.symbols[0] }
func (t MutableTerm) Back() Symbol       { return t.symbols[len(t.symbols)-1] }
func (t MutableTerm) Symbols() []Symbol  { return slices.Clone(t.symbols) }
func (t MutableTerm) Clone() MutableTerm { return MutableTerm{symbols: slices.Clone(t.symbols)} }

// Slice returns the subterm [from, to)
func (t MutableTerm) Slice(from, to int) MutableTerm {
	return MutableTerm{symbols: slices.Clone(t.symbols[from:to])}
}

func (t MutableTerm) Equal(other MutableTerm) bool {
	return slices.Equal(t.symbols, other.symbols)
}

// Compare is the shortlex order: shorter terms are smaller, terms of equal
// length compare symbol by symbol
func (t MutableTerm) Compare(other MutableTerm) int {
	return compareSymbolSlices(t.symbols, other.symbols)
}

func compareSymbolSlices(a, b []Symbol) int {
	if c := cmp.Compare(len(a), len(b)); c != 0 {
		return c
	}
	for i := range a {
		if c := CompareSymbols(a[i], b[i]); c != 0 {
			return c
		}
	}
	return 0
}

func (t MutableTerm) HasPrefix(prefix MutableTerm) bool {
	return len(prefix.symbols) <= len(t.symbols) && slices.Equal(t.symbols[:len(prefix.symbols)], prefix.symbols)
}

func (t MutableTerm) HasSuffix(suffix MutableTerm) bool {
	n := len(t.symbols) - len(suffix.symbols)
	return n >= 0 && slices.Equal(t.symbols[n:], suffix.symbols)
}

// matchesAt reports whether sub occurs in t starting at position i
func (t MutableTerm) matchesAt(i int, sub MutableTerm) bool {
	if i+len(sub.symbols) > len(t.symbols) {
		return false
	}
	return slices.Equal(t.symbols[i:i+len(sub.symbols)], sub.symbols)
}

// Index returns the first position of sub in t, or -1
func (t MutableTerm) Index(sub MutableTerm) int {
	for i := 0; i+len(sub.symbols) <= len(t.symbols); i++ {
		if t.matchesAt(i, sub) {
			return i
		}
	}
	return -1
}

// replace substitutes the range [from, to) of t with with
func (t *MutableTerm) replace(from, to int, with MutableTerm) {
	out := make([]Symbol, 0, len(t.symbols)-(to-from)+len(with.symbols))
	out = append(out, t.symbols[:from]...)
	out = append(out, with.symbols...)
	out = append(out, t.symbols[to:]...)
	t.symbols = out
}

func (t MutableTerm) String() string {
	return joinSymbols(t.symbols)
}

// Key is equal for two terms of the same Context exactly when they are Equal
func (t MutableTerm) Key() string {
	return symbolsKey(t.symbols)
}

// Freeze returns the immutable form of t
func (t MutableTerm) Freeze() Term {
	return Term{symbols: slices.Clone(t.symbols), key: symbolsKey(t.symbols)}
}

// Term is the immutable form of a term, used inside symbols and as map keys
type Term struct {
	symbols []Symbol
	key     string
}

func (t Term) Len() int               { return len(t.symbols) }
func (t Term) At(i int) Symbol        { return t.symbols[i] }
func (t Term) Key() string            { return t.key }
func (t Term) String() string         { return joinSymbols(t.symbols) }
func (t Term) Mutable() MutableTerm   { return MutableTerm{symbols: slices.Clone(t.symbols)} }
func (t Term) Equal(other Term) bool  { return t.key == other.key }
func (t Term) Compare(other Term) int { return compareSymbolSlices(t.symbols, other.symbols) }

func joinSymbols(symbols []Symbol) string {
	sb := strings.Builder{}
	for i, s := range symbols {
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(s.String())
	}
	return sb.String()
}

func symbolsKey(symbols []Symbol) string {
	sb := strings.Builder{}
	for i, s := range symbols {
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(strconv.Itoa(s.uid()))
	}
	return sb.String()
}
