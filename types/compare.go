package types

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
)

func typeRank(t Type) int {
	switch t.(type) {
	case *GenericParam:
		return 0
	case *DependentMember:
		return 1
	case *Nominal:
		return 2
	case *Tuple:
		return 3
	case *Function:
		return 4
	default:
		panic(fmt.Sprintf("unexpected type %T", t))
	}
}

// Compare is a total structural order over canonical types.
// Aliases compare as their underlying type.
func Compare(a, b Type) int {
	a, b = unalias(a), unalias(b)
	if c := cmp.Compare(typeRank(a), typeRank(b)); c != 0 {
		return c
	}
	switch a := a.(type) {
	case *GenericParam:
		b := b.(*GenericParam)
		if c := cmp.Compare(a.Depth, b.Depth); c != 0 {
			return c
		}
		return cmp.Compare(a.Index, b.Index)
	case *DependentMember:
		b := b.(*DependentMember)
		if c := Compare(a.Base, b.Base); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return compareAssoc(a.Assoc, b.Assoc)
	case *Nominal:
		b := b.(*Nominal)
		if c := cmp.Compare(a.Decl.Name, b.Decl.Name); c != 0 {
			return c
		}
		return compareAll(a.Args, b.Args)
	case *Tuple:
		return compareAll(a.Elems, b.(*Tuple).Elems)
	case *Function:
		b := b.(*Function)
		if c := compareAll(a.Params, b.Params); c != 0 {
			return c
		}
		return Compare(a.Result, b.Result)
	}
	panic("unreachable")
}

func compareAssoc(a, b *AssociatedType) int {
	switch {
	case a == b:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return cmp.Compare(a.Protocol.ID, b.Protocol.ID)
}

func compareAll(as, bs []Type) int {
	if c := cmp.Compare(len(as), len(bs)); c != 0 {
		return c
	}
	for i := range as {
		if c := Compare(as[i], bs[i]); c != 0 {
			return c
		}
	}
	return 0
}

// Equal reports whether a and b are structurally identical, ignoring sugar
func Equal(a, b Type) bool {
	return Compare(a, b) == 0
}

func unalias(t Type) Type {
	for {
		alias, ok := t.(*Alias)
		if !ok {
			return t
		}
		t = alias.Underlying
	}
}

// Key returns a string that is equal for two types exactly when Equal holds
func Key(t Type) string {
	sb := &strings.Builder{}
	writeKey(sb, t)
	return sb.String()
}

func writeKey(sb *strings.Builder, t Type) {
	switch t := unalias(t).(type) {
	case *GenericParam:
		sb.WriteString("τ")
		sb.WriteString(strconv.Itoa(t.Depth))
		sb.WriteByte('_')
		sb.WriteString(strconv.Itoa(t.Index))
	case *DependentMember:
		writeKey(sb, t.Base)
		sb.WriteByte('.')
		if t.Assoc != nil {
			sb.WriteString(strconv.Itoa(int(t.Assoc.Protocol.ID)))
			sb.WriteByte(':')
		}
		sb.WriteString(t.Name)
	case *Nominal:
		sb.WriteString(t.Decl.Name)
		if len(t.Args) > 0 {
			sb.WriteByte('<')
			writeKeys(sb, t.Args)
			sb.WriteByte('>')
		}
	case *Tuple:
		sb.WriteByte('(')
		writeKeys(sb, t.Elems)
		sb.WriteByte(')')
	case *Function:
		sb.WriteByte('(')
		writeKeys(sb, t.Params)
		sb.WriteString(")->")
		writeKey(sb, t.Result)
	}
}

func writeKeys(sb *strings.Builder, ts []Type) {
	for i, t := range ts {
		if i > 0 {
			sb.WriteByte(',')
		}
		writeKey(sb, t)
	}
}
