package rewriting

import (
	"cmp"
	"fmt"
	"github.com/cottand/rqm/types"
	"strings"
)

// SymbolKind orders symbols before their payload is compared
type SymbolKind int

const (
	ProtocolKind SymbolKind = iota
	AssociatedTypeKind
	GenericParamKind
	NameKind
	LayoutKind
	SuperclassKind
	ConcreteTypeKind
)

func (k SymbolKind) String() string {
	switch k {
	case ProtocolKind:
		return "protocol"
	case AssociatedTypeKind:
		return "assocty"
	case GenericParamKind:
		return "generic"
	case NameKind:
		return "name"
	case LayoutKind:
		return "layout"
	case SuperclassKind:
		return "superclass"
	case ConcreteTypeKind:
		return "concrete"
	default:
		panic(fmt.Sprintf("invalid symbol kind %d", int(k)))
	}
}

// Symbol is the alphabet of the rewrite system.
//
// Symbols are uniqued by a Context, so two symbols from the same Context are
// structurally equal exactly when they are ==.
type Symbol interface {
	fmt.Stringer
	Kind() SymbolKind
	uid() int
}

var (
	_ Symbol = (*GenericParamSymbol)(nil)
	_ Symbol = (*ProtocolSymbol)(nil)
	_ Symbol = (*AssociatedTypeSymbol)(nil)
	_ Symbol = (*NameSymbol)(nil)
	_ Symbol = (*LayoutSymbol)(nil)
	_ Symbol = (*SuperclassSymbol)(nil)
	_ Symbol = (*ConcreteTypeSymbol)(nil)
)

type symbolBase struct {
	id int
}

func (s *symbolBase) uid() int { return s.id }

type GenericParamSymbol struct {
	symbolBase
	Param *types.GenericParam
}

func (*GenericParamSymbol) Kind() SymbolKind { return GenericParamKind }
func (s *GenericParamSymbol) String() string { return s.Param.String() }

type ProtocolSymbol struct {
	symbolBase
	Protocol *types.Protocol
}

func (*ProtocolSymbol) Kind() SymbolKind { return ProtocolKind }
func (s *ProtocolSymbol) String() string { return "[" + s.Protocol.Name + "]" }

type AssociatedTypeSymbol struct {
	symbolBase
	Protocol *types.Protocol
	Name     string
}

func (*AssociatedTypeSymbol) Kind() SymbolKind { return AssociatedTypeKind }
func (s *AssociatedTypeSymbol) String() string {
	return "[" + s.Protocol.Name + ":" + s.Name + "]"
}

type NameSymbol struct {
	symbolBase
	Name string
}

func (*NameSymbol) Kind() SymbolKind { return NameKind }
func (s *NameSymbol) String() string { return s.Name }

type LayoutSymbol struct {
	symbolBase
	Layout types.LayoutConstraint
}

func (*LayoutSymbol) Kind() SymbolKind { return LayoutKind }
func (s *LayoutSymbol) String() string { return "[layout: " + s.Layout.String() + "]" }

// SuperclassSymbol carries a class type in schema form: every type parameter
// position holds τ_0_i, standing for Substitutions[i]
type SuperclassSymbol struct {
	symbolBase
	Class         types.Type
	Substitutions []Term
}

func (*SuperclassSymbol) Kind() SymbolKind { return SuperclassKind }
func (s *SuperclassSymbol) String() string {
	return "[superclass: " + s.Class.String() + substitutionsString(s.Substitutions) + "]"
}

// ConcreteTypeSymbol carries a concrete type in schema form, like SuperclassSymbol
type ConcreteTypeSymbol struct {
	symbolBase
	Concrete      types.Type
	Substitutions []Term
}

func (*ConcreteTypeSymbol) Kind() SymbolKind { return ConcreteTypeKind }
func (s *ConcreteTypeSymbol) String() string {
	return "[concrete: " + s.Concrete.String() + substitutionsString(s.Substitutions) + "]"
}

func substitutionsString(subs []Term) string {
	if len(subs) == 0 {
		return ""
	}
	sb := strings.Builder{}
	sb.WriteString(" with <")
	for i, sub := range subs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(sub.String())
	}
	sb.WriteString(">")
	return sb.String()
}

// IsProperty reports whether s may appear as the last symbol of a property rule T.[s] => T
func IsProperty(s Symbol) bool {
	switch s.Kind() {
	case ProtocolKind, LayoutKind, SuperclassKind, ConcreteTypeKind:
		return true
	default:
		return false
	}
}

// Substitutions returns the substitution terms of superclass and concrete type symbols
func Substitutions(s Symbol) []Term {
	switch s := s.(type) {
	case *SuperclassSymbol:
		return s.Substitutions
	case *ConcreteTypeSymbol:
		return s.Substitutions
	default:
		return nil
	}
}

// CompareSymbols is the total order used by the reduction order
func CompareSymbols(a, b Symbol) int {
	if a == b {
		return 0
	}
	if c := cmp.Compare(a.Kind(), b.Kind()); c != 0 {
		return c
	}
	switch a := a.(type) {
	case *ProtocolSymbol:
		return compareProtocols(a.Protocol, b.(*ProtocolSymbol).Protocol)
	case *AssociatedTypeSymbol:
		b := b.(*AssociatedTypeSymbol)
		if c := compareProtocols(a.Protocol, b.Protocol); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	case *GenericParamSymbol:
		b := b.(*GenericParamSymbol)
		if c := cmp.Compare(a.Param.Depth, b.Param.Depth); c != 0 {
			return c
		}
		return cmp.Compare(a.Param.Index, b.Param.Index)
	case *NameSymbol:
		return cmp.Compare(a.Name, b.(*NameSymbol).Name)
	case *LayoutSymbol:
		return cmp.Compare(a.Layout.Kind, b.(*LayoutSymbol).Layout.Kind)
	case *SuperclassSymbol:
		b := b.(*SuperclassSymbol)
		return compareSchemas(a.Class, a.Substitutions, b.Class, b.Substitutions)
	case *ConcreteTypeSymbol:
		b := b.(*ConcreteTypeSymbol)
		return compareSchemas(a.Concrete, a.Substitutions, b.Concrete, b.Substitutions)
	}
	panic("unreachable")
}

func compareProtocols(a, b *types.Protocol) int {
	if c := cmp.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func compareSchemas(t1 types.Type, subs1 []Term, t2 types.Type, subs2 []Term) int {
	if c := types.Compare(t1, t2); c != 0 {
		return c
	}
	if c := cmp.Compare(len(subs1), len(subs2)); c != 0 {
		return c
	}
	for i := range subs1 {
		if c := subs1[i].Compare(subs2[i]); c != 0 {
			return c
		}
	}
	return 0
}
