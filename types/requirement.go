package types

import (
	"cmp"
	"fmt"
	"strings"
)

type RequirementKind int

const (
	Conformance RequirementKind = iota
	Superclass
	Layout
	SameType
)

func (k RequirementKind) String() string {
	switch k {
	case Conformance:
		return "conformance"
	case Superclass:
		return "superclass"
	case Layout:
		return "layout"
	case SameType:
		return "same_type"
	default:
		panic(fmt.Sprintf("invalid requirement kind %d", int(k)))
	}
}

// Requirement is a single generic constraint. Implementations are
// ConformanceRequirement, SuperclassRequirement, LayoutRequirement and
// SameTypeRequirement.
type Requirement interface {
	fmt.Stringer
	Kind() RequirementKind
	// FirstType is the subject of the requirement, always a type parameter
	FirstType() Type
	// Canonical returns the requirement with all sugar removed
	Canonical() Requirement
	isRequirement()
}

var (
	_ Requirement = (*ConformanceRequirement)(nil)
	_ Requirement = (*SuperclassRequirement)(nil)
	_ Requirement = (*LayoutRequirement)(nil)
	_ Requirement = (*SameTypeRequirement)(nil)
)

// ConformanceRequirement is Subject : Protocol
type ConformanceRequirement struct {
	Subject  Type
	Protocol *Protocol
}

func (*ConformanceRequirement) isRequirement()        {}
func (*ConformanceRequirement) Kind() RequirementKind { return Conformance }
func (r *ConformanceRequirement) FirstType() Type     { return r.Subject }
func (r *ConformanceRequirement) String() string {
	return r.Subject.String() + " : " + r.Protocol.Name
}
func (r *ConformanceRequirement) Canonical() Requirement {
	return &ConformanceRequirement{Subject: Canonical(r.Subject), Protocol: r.Protocol}
}

// SuperclassRequirement is Subject : Class, where Class is a class type
type SuperclassRequirement struct {
	Subject Type
	Class   Type
}

func (*SuperclassRequirement) isRequirement()        {}
func (*SuperclassRequirement) Kind() RequirementKind { return Superclass }
func (r *SuperclassRequirement) FirstType() Type     { return r.Subject }
func (r *SuperclassRequirement) String() string {
	return r.Subject.String() + " : " + r.Class.String()
}
func (r *SuperclassRequirement) Canonical() Requirement {
	return &SuperclassRequirement{Subject: Canonical(r.Subject), Class: Canonical(r.Class)}
}

type LayoutRequirement struct {
	Subject Type
	Layout  LayoutConstraint
}

func (*LayoutRequirement) isRequirement()        {}
func (*LayoutRequirement) Kind() RequirementKind { return Layout }
func (r *LayoutRequirement) FirstType() Type     { return r.Subject }
func (r *LayoutRequirement) String() string {
	return r.Subject.String() + " : " + r.Layout.String()
}
func (r *LayoutRequirement) Canonical() Requirement {
	return &LayoutRequirement{Subject: Canonical(r.Subject), Layout: r.Layout}
}

// SameTypeRequirement is Subject == Other. Other may be a type parameter or a concrete type
type SameTypeRequirement struct {
	Subject Type
	Other   Type
}

func (*SameTypeRequirement) isRequirement()        {}
func (*SameTypeRequirement) Kind() RequirementKind { return SameType }
func (r *SameTypeRequirement) FirstType() Type     { return r.Subject }
func (r *SameTypeRequirement) String() string {
	return r.Subject.String() + " == " + r.Other.String()
}

// Canonical also orders two type parameters so the smaller one is the subject
func (r *SameTypeRequirement) Canonical() Requirement {
	subject, other := Canonical(r.Subject), Canonical(r.Other)
	if IsTypeParameter(other) && Compare(other, subject) < 0 {
		subject, other = other, subject
	}
	return &SameTypeRequirement{Subject: subject, Other: other}
}

// CompareRequirements orders requirements by subject, then kind, then constraint
func CompareRequirements(a, b Requirement) int {
	if c := Compare(a.FirstType(), b.FirstType()); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Kind(), b.Kind()); c != 0 {
		return c
	}
	switch a := a.(type) {
	case *ConformanceRequirement:
		b := b.(*ConformanceRequirement)
		if c := cmp.Compare(a.Protocol.Name, b.Protocol.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.Protocol.ID, b.Protocol.ID)
	case *SuperclassRequirement:
		return Compare(a.Class, b.(*SuperclassRequirement).Class)
	case *LayoutRequirement:
		return cmp.Compare(a.Layout.Kind, b.(*LayoutRequirement).Layout.Kind)
	case *SameTypeRequirement:
		return Compare(a.Other, b.(*SameTypeRequirement).Other)
	}
	panic("unreachable")
}

// GenericSignature is a list of generic parameters with the requirements on them
type GenericSignature struct {
	Params       []*GenericParam
	Requirements []Requirement
}

func NewGenericSignature(params []*GenericParam, reqs []Requirement) *GenericSignature {
	return &GenericSignature{Params: params, Requirements: reqs}
}

func (s *GenericSignature) String() string {
	sb := strings.Builder{}
	sb.WriteString("<")
	for i, p := range s.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.String())
	}
	if len(s.Requirements) > 0 {
		sb.WriteString(" where ")
		for i, r := range s.Requirements {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(r.String())
		}
	}
	sb.WriteString(">")
	return sb.String()
}

// HasParam reports whether param is one of the signature's generic parameters
func (s *GenericSignature) HasParam(param *GenericParam) bool {
	for _, p := range s.Params {
		if p.SameParam(param) {
			return true
		}
	}
	return false
}
