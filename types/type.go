package types

import (
	"fmt"
	"strings"
)

// Type is a type of the host language, as seen by requirements.
//
// The set of implementations is closed: GenericParam, DependentMember,
// Nominal, Tuple, Function and Alias.
type Type interface {
	fmt.Stringer
	isType()
}

var (
	_ Type = (*GenericParam)(nil)
	_ Type = (*DependentMember)(nil)
	_ Type = (*Nominal)(nil)
	_ Type = (*Tuple)(nil)
	_ Type = (*Function)(nil)
	_ Type = (*Alias)(nil)
)

// GenericParam is the type parameter τ_depth_index. Name is only used for printing
type GenericParam struct {
	Depth int
	Index int
	Name  string
}

// NewGenericParam returns an unnamed τ_depth_index
func NewGenericParam(depth, index int) *GenericParam {
	return &GenericParam{Depth: depth, Index: index}
}

func (*GenericParam) isType() {}
func (p *GenericParam) String() string {
	if p.Name != "" {
		return p.Name
	}
	return fmt.Sprintf("τ_%d_%d", p.Depth, p.Index)
}

// SameParam reports whether p and other denote the same depth and index
func (p *GenericParam) SameParam(other *GenericParam) bool {
	return p.Depth == other.Depth && p.Index == other.Index
}

// DependentMember is Base.Name, where Base is itself a type parameter.
//
// Assoc is nil while the member is unresolved, which is the case for structural
// requirements written by the user.
type DependentMember struct {
	Base  Type
	Name  string
	Assoc *AssociatedType
}

func (*DependentMember) isType() {}
func (m *DependentMember) String() string {
	return m.Base.String() + "." + m.Name
}

// Resolved reports whether the member points at an associated type declaration
func (m *DependentMember) Resolved() bool { return m.Assoc != nil }

// Nominal is a reference to a struct, enum or class declaration with its generic arguments
type Nominal struct {
	Decl *NominalDecl
	Args []Type
}

func (*Nominal) isType() {}
func (n *Nominal) String() string {
	if len(n.Args) == 0 {
		return n.Decl.Name
	}
	return n.Decl.Name + "<" + joinTypes(n.Args) + ">"
}

type Tuple struct {
	Elems []Type
}

func (*Tuple) isType() {}
func (t *Tuple) String() string {
	return "(" + joinTypes(t.Elems) + ")"
}

type Function struct {
	Params []Type
	Result Type
}

func (*Function) isType() {}
func (f *Function) String() string {
	return "(" + joinTypes(f.Params) + ") -> " + f.Result.String()
}

// Alias is sugar over Underlying. Canonical types never contain aliases
type Alias struct {
	Name       string
	Underlying Type
}

func (*Alias) isType()          {}
func (a *Alias) String() string { return a.Name }

func joinTypes(ts []Type) string {
	sb := strings.Builder{}
	for i, t := range ts {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(t.String())
	}
	return sb.String()
}

// Member returns base.name with the member left unresolved
func Member(base Type, name string) *DependentMember {
	return &DependentMember{Base: base, Name: name}
}

// ResolvedMember returns base.name resolved to assoc
func ResolvedMember(base Type, assoc *AssociatedType) *DependentMember {
	return &DependentMember{Base: base, Name: assoc.Name, Assoc: assoc}
}

// IsTypeParameter reports whether t is a generic parameter or a member path rooted in one
func IsTypeParameter(t Type) bool {
	switch t := t.(type) {
	case *GenericParam:
		return true
	case *DependentMember:
		return IsTypeParameter(t.Base)
	case *Alias:
		return IsTypeParameter(t.Underlying)
	default:
		return false
	}
}

// HasTypeParameter reports whether any structural component of t is a type parameter
func HasTypeParameter(t Type) bool {
	found := false
	Transform(t, func(t Type) (Type, bool) {
		if IsTypeParameter(t) {
			found = true
			return t, true
		}
		return nil, false
	})
	return found
}

// RootParam returns the generic parameter at the root of a type parameter
func RootParam(t Type) (*GenericParam, bool) {
	switch t := t.(type) {
	case *GenericParam:
		return t, true
	case *DependentMember:
		return RootParam(t.Base)
	case *Alias:
		return RootParam(t.Underlying)
	default:
		return nil, false
	}
}

// Transform rebuilds t top-down. When fn returns true its result replaces the
// visited subtree and the walk does not descend into it.
func Transform(t Type, fn func(Type) (Type, bool)) Type {
	if replaced, ok := fn(t); ok {
		return replaced
	}
	switch t := t.(type) {
	case *GenericParam:
		return t
	case *DependentMember:
		return &DependentMember{Base: Transform(t.Base, fn), Name: t.Name, Assoc: t.Assoc}
	case *Nominal:
		if len(t.Args) == 0 {
			return t
		}
		return &Nominal{Decl: t.Decl, Args: transformAll(t.Args, fn)}
	case *Tuple:
		return &Tuple{Elems: transformAll(t.Elems, fn)}
	case *Function:
		return &Function{Params: transformAll(t.Params, fn), Result: Transform(t.Result, fn)}
	case *Alias:
		return &Alias{Name: t.Name, Underlying: Transform(t.Underlying, fn)}
	default:
		panic(fmt.Sprintf("unexpected type %T", t))
	}
}

func transformAll(ts []Type, fn func(Type) (Type, bool)) []Type {
	out := make([]Type, len(ts))
	for i, t := range ts {
		out[i] = Transform(t, fn)
	}
	return out
}

// Canonical strips every Alias from t
func Canonical(t Type) Type {
	return Transform(t, func(t Type) (Type, bool) {
		if alias, ok := t.(*Alias); ok {
			return Canonical(alias.Underlying), true
		}
		return nil, false
	})
}

// Substitute replaces generic parameters of depth 0 by subs[index].
// Parameters without a substitution are left in place.
func Substitute(t Type, subs []Type) Type {
	return Transform(t, func(t Type) (Type, bool) {
		p, ok := t.(*GenericParam)
		if !ok || p.Depth != 0 || p.Index >= len(subs) {
			return nil, false
		}
		return subs[p.Index], true
	})
}
