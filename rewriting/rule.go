package rewriting

import "fmt"

// RuleOrigin records why a rule was added to the system
type RuleOrigin int

const (
	// PermanentOrigin rules encode structural facts and are never redundant
	PermanentOrigin RuleOrigin = iota
	// RequirementOrigin rules come from a requirement and may later prove redundant
	RequirementOrigin
	CompletionOrigin
	UnificationOrigin
)

func (o RuleOrigin) String() string {
	switch o {
	case PermanentOrigin:
		return "permanent"
	case RequirementOrigin:
		return "requirement"
	case CompletionOrigin:
		return "completion"
	case UnificationOrigin:
		return "unification"
	default:
		panic(fmt.Sprintf("invalid rule origin %d", int(o)))
	}
}

// Rule is the oriented equation LHS => RHS, with LHS > RHS in the reduction order
type Rule struct {
	LHS    MutableTerm
	RHS    MutableTerm
	Origin RuleOrigin

	// lhsSimplified is set once another rule reduces LHS. The rule is then
	// retired from simplification but kept for introspection.
	lhsSimplified bool
	// rhsSimplified is set when RHS was rewritten by inter-reduction
	rhsSimplified bool
}

func (r *Rule) IsPermanent() bool     { return r.Origin == PermanentOrigin }
func (r *Rule) IsLHSSimplified() bool { return r.lhsSimplified }
func (r *Rule) IsRHSSimplified() bool { return r.rhsSimplified }

// IsPropertyRule reports whether r has the shape T.[p] => T for a property symbol p
func (r *Rule) IsPropertyRule() bool {
	return r.LHS.Len() == r.RHS.Len()+1 && r.LHS.HasPrefix(r.RHS) && IsProperty(r.LHS.Back())
}

func (r *Rule) String() string {
	s := r.LHS.String() + " => " + r.RHS.String()
	if r.IsPermanent() {
		s += " [permanent]"
	}
	if r.lhsSimplified {
		s += " [lhs↓]"
	}
	if r.rhsSimplified {
		s += " [rhs↓]"
	}
	return s
}

// RulePair is an unoriented pair of terms produced by the rule builder
type RulePair struct {
	LHS MutableTerm
	RHS MutableTerm
}

func (p RulePair) String() string {
	return p.LHS.String() + " => " + p.RHS.String()
}

// Hash lets RulePair live in a go-set HashSet
func (p RulePair) Hash() string {
	return p.LHS.Key() + "=>" + p.RHS.Key()
}
