package rewriting

import (
	"fmt"
	"github.com/hashicorp/go-set/v3"
	"log/slog"
	"slices"
)

type CompletionResult int

const (
	Success CompletionResult = iota
	// MaxIterations means the step limit was exceeded
	MaxIterations
	// MaxDepth means a rule with a left hand side longer than the depth limit was added
	MaxDepth
)

func (r CompletionResult) String() string {
	switch r {
	case Success:
		return "success"
	case MaxIterations:
		return "max iterations"
	case MaxDepth:
		return "max depth"
	default:
		panic(fmt.Sprintf("invalid completion result %d", int(r)))
	}
}

// ValidityPolicy controls which rule shapes VerifyRewriteRules tolerates
type ValidityPolicy int

const (
	// DisallowInvalidRequirements is used for generic signatures, whose requirements were validated
	DisallowInvalidRequirements ValidityPolicy = iota
	// AllowInvalidRequirements is used for protocol components and abstract requirements
	AllowInvalidRequirements
)

func (p ValidityPolicy) String() string {
	if p == DisallowInvalidRequirements {
		return "strict"
	}
	return "lenient"
}

// Loop is a critical pair of the system: Overlap reduces both to Path1 and to Path2.
// Loops are only recorded when the system is initialized with recordLoops.
type Loop struct {
	Overlap MutableTerm
	Path1   MutableTerm
	Path2   MutableTerm
}

func (l Loop) String() string {
	return fmt.Sprintf("%s: %s ~ %s", l.Overlap, l.Path1, l.Path2)
}

// System is a string rewrite system over the symbols of a Context.
//
// Rules are only ever added. A rule whose left hand side becomes reducible is
// marked lhsSimplified and no longer takes part in simplification.
type System struct {
	ctx   *Context
	rules []*Rule
	// byFirst indexes active rules by the uid of the first symbol of their lhs
	byFirst map[int][]int
	// checked holds the ordered pairs of rule indices whose overlaps were resolved
	checked *set.Set[[2]int]

	recordLoops bool
	loops       []Loop
	initialized bool

	conflicts []Conflict
	logger    *slog.Logger
}

// Conflict is an unsatisfiable combination of properties found by the property map
type Conflict struct {
	Key     MutableTerm
	Message string
}

func (c Conflict) String() string {
	return c.Key.String() + ": " + c.Message
}

func NewSystem(ctx *Context) *System {
	return &System{
		ctx:     ctx,
		byFirst: make(map[int][]int),
		checked: set.New[[2]int](0),
		logger:  ctx.logger.With("section", "completion"),
	}
}

func (s *System) Context() *Context { return s.ctx }

// Initialize adds the initial rules. It must be called exactly once.
func (s *System) Initialize(recordLoops bool, permanent, requirement []RulePair) {
	if s.initialized {
		panic("rewrite system initialized twice")
	}
	s.initialized = true
	s.recordLoops = recordLoops

	for _, pair := range permanent {
		s.AddRule(pair.LHS, pair.RHS, PermanentOrigin)
	}
	for _, pair := range requirement {
		s.AddRule(pair.LHS, pair.RHS, RequirementOrigin)
	}
	s.logger.Debug("initialized rewrite system",
		"permanent", len(permanent), "requirement", len(requirement), "rules", len(s.rules))
}

// Rules returns every rule ever added, including retired ones
func (s *System) Rules() []*Rule { return s.rules }

// ActiveRules returns the rules taking part in simplification
func (s *System) ActiveRules() []*Rule {
	active := make([]*Rule, 0, len(s.rules))
	for _, r := range s.rules {
		if !r.lhsSimplified {
			active = append(active, r)
		}
	}
	return active
}

func (s *System) Loops() []Loop         { return s.loops }
func (s *System) RecordsLoops() bool    { return s.recordLoops }
func (s *System) Conflicts() []Conflict { return s.conflicts }
func (s *System) recordConflict(c Conflict) {
	s.logger.Debug("conflict", "key", c.Key.String(), "message", c.Message)
	s.conflicts = append(s.conflicts, c)
}

// AddRule simplifies both terms, orients them and adds the resulting rule.
// It returns false when the terms already have the same normal form.
func (s *System) AddRule(lhs, rhs MutableTerm, origin RuleOrigin) bool {
	lhs, rhs = lhs.Clone(), rhs.Clone()
	s.Simplify(&lhs)
	s.Simplify(&rhs)

	switch c := lhs.Compare(rhs); {
	case c == 0:
		return false
	case c < 0:
		lhs, rhs = rhs, lhs
	}

	idx := len(s.rules)
	s.rules = append(s.rules, &Rule{LHS: lhs, RHS: rhs, Origin: origin})
	first := lhs.Front().uid()
	s.byFirst[first] = append(s.byFirst[first], idx)
	s.logger.Debug("added rule", "rule", s.rules[idx].String(), "origin", origin.String())
	return true
}

// Simplify rewrites term to its normal form in place, applying the leftmost
// matching active rule first. It reports whether term changed.
func (s *System) Simplify(term *MutableTerm) bool {
	changed := false
	for s.rewriteOnce(term) {
		changed = true
	}
	return changed
}

func (s *System) rewriteOnce(term *MutableTerm) bool {
	for i := 0; i < term.Len(); i++ {
		for _, idx := range s.byFirst[term.At(i).uid()] {
			rule := s.rules[idx]
			if term.matchesAt(i, rule.LHS) {
				term.replace(i, i+rule.LHS.Len(), rule.RHS)
				return true
			}
		}
	}
	return false
}

// reducibleBy reports whether term contains the lhs of an active rule other than skip
func (s *System) reducibleBy(term MutableTerm, skip int) bool {
	for i := 0; i < term.Len(); i++ {
		for _, idx := range s.byFirst[term.At(i).uid()] {
			if idx != skip && term.matchesAt(i, s.rules[idx].LHS) {
				return true
			}
		}
	}
	return false
}

// retire takes the rule at idx out of simplification
func (s *System) retire(idx int) {
	rule := s.rules[idx]
	rule.lhsSimplified = true
	first := rule.LHS.Front().uid()
	s.byFirst[first] = slices.DeleteFunc(s.byFirst[first], func(i int) bool { return i == idx })
}
