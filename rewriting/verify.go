package rewriting

import (
	"fmt"
	"strings"
)

// RuleViolation describes an active rule with a shape the system never produces
// from valid input
type RuleViolation struct {
	Rule   *Rule
	Reason string
}

func (v *RuleViolation) Error() string {
	return fmt.Sprintf("invalid rewrite rule %s: %s", v.Rule, v.Reason)
}

// ConflictError reports the property map conflicts of a system that must be consistent
type ConflictError struct {
	Conflicts []Conflict
}

func (e *ConflictError) Error() string {
	msgs := make([]string, len(e.Conflicts))
	for i, c := range e.Conflicts {
		msgs[i] = c.String()
	}
	return "conflicting requirements: " + strings.Join(msgs, "; ")
}

// VerifyRewriteRules checks the shape of every active rule. Under
// DisallowInvalidRequirements a right hand side may not contain unresolved names,
// and the last property map built must be free of conflicts.
func (s *System) VerifyRewriteRules(policy ValidityPolicy) error {
	for _, rule := range s.rules {
		if rule.lhsSimplified {
			continue
		}
		if reason, ok := checkLHS(rule.LHS); !ok {
			return &RuleViolation{Rule: rule, Reason: reason}
		}
		if reason, ok := checkRHS(rule.RHS, policy); !ok {
			return &RuleViolation{Rule: rule, Reason: reason}
		}
	}
	if policy == DisallowInvalidRequirements && len(s.conflicts) > 0 {
		return &ConflictError{Conflicts: s.conflicts}
	}
	return nil
}

func checkLHS(lhs MutableTerm) (string, bool) {
	last := lhs.Len() - 1
	for i, symbol := range lhs.symbols {
		kind := symbol.Kind()
		if i != last && kind == LayoutKind {
			return fmt.Sprintf("layout symbol %s before the end of the lhs", symbol), false
		}
		if i != 0 && kind == GenericParamKind {
			return fmt.Sprintf("generic parameter %s in the interior of the lhs", symbol), false
		}
		if i != 0 && i != last && kind == ProtocolKind {
			return fmt.Sprintf("protocol symbol %s in the interior of the lhs", symbol), false
		}
	}
	return "", true
}

func checkRHS(rhs MutableTerm, policy ValidityPolicy) (string, bool) {
	for i, symbol := range rhs.symbols {
		kind := symbol.Kind()
		if policy == DisallowInvalidRequirements && kind == NameKind {
			return fmt.Sprintf("unresolved name %s in the rhs", symbol), false
		}
		if kind == LayoutKind {
			return fmt.Sprintf("layout symbol %s in the rhs", symbol), false
		}
		if i != 0 && (kind == GenericParamKind || kind == ProtocolKind) {
			return fmt.Sprintf("%s symbol %s in the interior of the rhs", kind, symbol), false
		}
	}
	return "", true
}
