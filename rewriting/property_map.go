package rewriting

import (
	"fmt"
	"github.com/benbjohnson/immutable"
	"github.com/cottand/rqm/types"
	"github.com/hashicorp/go-set/v3"
	"log/slog"
	"slices"
)

// PropertyBag collects what is known about the canonical term Key
type PropertyBag struct {
	Key        MutableTerm
	ConformsTo []*types.Protocol
	Layout     types.LayoutConstraint
	HasLayout  bool
	Superclass *SuperclassSymbol
	Concrete   *ConcreteTypeSymbol

	conformsTo *set.Set[types.ProtocolID]
}

func newPropertyBag(key MutableTerm) *PropertyBag {
	return &PropertyBag{Key: key, conformsTo: set.New[types.ProtocolID](0)}
}

func (b *PropertyBag) ConformsToProtocol(proto *types.Protocol) bool {
	return b.conformsTo.Contains(proto.ID)
}

// PropertyMap maps canonical terms to their conformance, layout, superclass and
// concrete type properties. Building it unifies overlapping concrete types, which
// may add rules to the underlying System.
type PropertyMap struct {
	system *System
	ctx    *Context
	bags   []*PropertyBag
	byKey  map[string]*PropertyBag
	frozen *immutable.Map[string, *PropertyBag]
	logger *slog.Logger
}

func NewPropertyMap(system *System) *PropertyMap {
	return &PropertyMap{
		system: system,
		ctx:    system.ctx,
		byKey:  make(map[string]*PropertyBag),
		frozen: immutable.NewMap[string, *PropertyBag](nil),
		logger: system.ctx.logger.With("section", "propertymap"),
	}
}

func (m *PropertyMap) Bags() []*PropertyBag { return m.bags }

type propertyRule struct {
	key    MutableTerm
	symbol Symbol
}

// BuildPropertyMap rebuilds the map from the active property rules of the system.
// It returns the number of rules unification added; every added rule is a step
// for the purpose of maxSteps, and maxDepth bounds their lhs length.
func (m *PropertyMap) BuildPropertyMap(maxSteps, maxDepth int) (CompletionResult, int) {
	m.bags = nil
	m.byKey = make(map[string]*PropertyBag)
	m.system.conflicts = nil

	var props []propertyRule
	for _, rule := range m.system.ActiveRules() {
		if rule.IsPropertyRule() {
			props = append(props, propertyRule{key: rule.RHS, symbol: rule.LHS.Back()})
		}
	}
	// shortlex puts every key after its proper suffixes
	slices.SortStableFunc(props, func(a, b propertyRule) int { return a.key.Compare(b.key) })

	var induced []RulePair
	for _, prop := range props {
		bag := m.getOrCreate(prop.key, &induced)
		m.addProperty(bag, prop.symbol, &induced)
	}
	for _, bag := range m.bags {
		m.checkConcreteType(bag, &induced)
		m.concretizeNestedTypes(bag, &induced)
	}

	added := 0
	for _, pair := range induced {
		if !m.system.AddRule(pair.LHS, pair.RHS, UnificationOrigin) {
			continue
		}
		added++
		rule := m.system.rules[len(m.system.rules)-1]
		if added > maxSteps {
			return MaxIterations, added
		}
		if rule.LHS.Len() > maxDepth {
			return MaxDepth, added
		}
	}
	m.freeze()
	m.logger.Debug("built property map", "keys", len(m.bags), "added", added)
	return Success, added
}

func (m *PropertyMap) freeze() {
	frozen := immutable.NewMap[string, *PropertyBag](nil)
	for _, bag := range m.bags {
		frozen = frozen.Set(bag.Key.Key(), bag)
	}
	m.frozen = frozen
}

// getOrCreate returns the bag for key, creating it from the bag of its longest
// proper suffix key if there is one
func (m *PropertyMap) getOrCreate(key MutableTerm, induced *[]RulePair) *PropertyBag {
	if bag, ok := m.byKey[key.Key()]; ok {
		return bag
	}
	bag := newPropertyBag(key)
	m.bags = append(m.bags, bag)
	m.byKey[key.Key()] = bag

	for k := 1; k < key.Len(); k++ {
		parent, ok := m.byKey[key.Slice(k, key.Len()).Key()]
		if !ok {
			continue
		}
		prefix := key.Slice(0, k)
		for _, proto := range parent.ConformsTo {
			m.addProperty(bag, m.ctx.ForProtocol(proto), induced)
		}
		if parent.HasLayout {
			m.addProperty(bag, m.ctx.ForLayout(parent.Layout), induced)
		}
		if parent.Superclass != nil {
			m.addProperty(bag, m.ctx.PrependToSubstitutions(parent.Superclass, prefix), induced)
		}
		if parent.Concrete != nil {
			m.addProperty(bag, m.ctx.PrependToSubstitutions(parent.Concrete, prefix), induced)
		}
		break
	}
	return bag
}

func (m *PropertyMap) conflict(bag *PropertyBag, format string, args ...any) {
	m.system.recordConflict(Conflict{Key: bag.Key, Message: fmt.Sprintf(format, args...)})
}

func (m *PropertyMap) addProperty(bag *PropertyBag, symbol Symbol, induced *[]RulePair) {
	symbol = m.simplifySubstitutions(symbol)
	switch s := symbol.(type) {
	case *ProtocolSymbol:
		if bag.conformsTo.Insert(s.Protocol.ID) {
			bag.ConformsTo = append(bag.ConformsTo, s.Protocol)
		}
	case *LayoutSymbol:
		if !bag.HasLayout {
			bag.Layout, bag.HasLayout = s.Layout, true
			return
		}
		merged, ok := types.MergeLayouts(bag.Layout, s.Layout)
		if !ok {
			m.conflict(bag, "layouts %s and %s are incompatible", bag.Layout, s.Layout)
			return
		}
		bag.Layout = merged
	case *SuperclassSymbol:
		m.addSuperclass(bag, s, induced)
	case *ConcreteTypeSymbol:
		if bag.Concrete == nil {
			bag.Concrete = s
			return
		}
		if bag.Concrete == s {
			return
		}
		old := bag.Concrete
		if !m.unify(old.Concrete, old.Substitutions, s.Concrete, s.Substitutions, induced) {
			m.conflict(bag, "concrete types %s and %s do not unify", old, s)
		}
	default:
		panic(fmt.Sprintf("%s symbol %s is not a property", symbol.Kind(), symbol))
	}
}

func (m *PropertyMap) addSuperclass(bag *PropertyBag, s *SuperclassSymbol, induced *[]RulePair) {
	old := bag.Superclass
	if old == nil {
		bag.Superclass = s
		return
	}
	if old == s {
		return
	}
	oldClass, ok1 := old.Class.(*types.Nominal)
	newClass, ok2 := s.Class.(*types.Nominal)
	if !ok1 || !ok2 {
		m.conflict(bag, "superclass bounds %s and %s are not classes", old, s)
		return
	}
	if up, ok := types.SuperclassAs(newClass, oldClass.Decl); ok {
		if !m.unify(old.Class, old.Substitutions, up, s.Substitutions, induced) {
			m.conflict(bag, "superclass bounds %s and %s do not unify", old, s)
		}
		bag.Superclass = s
		return
	}
	if up, ok := types.SuperclassAs(oldClass, newClass.Decl); ok {
		if !m.unify(up, old.Substitutions, s.Class, s.Substitutions, induced) {
			m.conflict(bag, "superclass bounds %s and %s do not unify", old, s)
		}
		return
	}
	m.conflict(bag, "superclass bounds %s and %s are unrelated", old, s)
}

// simplifySubstitutions brings every substitution term of symbol to normal form
func (m *PropertyMap) simplifySubstitutions(symbol Symbol) Symbol {
	subs := Substitutions(symbol)
	if len(subs) == 0 {
		return symbol
	}
	changed := false
	out := make([]Term, len(subs))
	for i, sub := range subs {
		term := sub.Mutable()
		if m.system.Simplify(&term) {
			changed = true
		}
		out[i] = term.Freeze()
	}
	if !changed {
		return symbol
	}
	switch s := symbol.(type) {
	case *SuperclassSymbol:
		return m.ctx.ForSuperclass(s.Class, out)
	case *ConcreteTypeSymbol:
		return m.ctx.ForConcreteType(s.Concrete, out)
	}
	return symbol
}

// checkConcreteType checks a concrete type against the layout and superclass of its bag
func (m *PropertyMap) checkConcreteType(bag *PropertyBag, induced *[]RulePair) {
	c := bag.Concrete
	if c == nil {
		return
	}
	nominal, isNominal := c.Concrete.(*types.Nominal)
	isClass := isNominal && nominal.Decl.IsClass()
	if bag.HasLayout {
		switch {
		case bag.Layout.IsClass() && !isClass:
			m.conflict(bag, "concrete type %s does not satisfy layout %s", c.Concrete, bag.Layout)
		case bag.Layout.Kind == types.TrivialLayout && isClass:
			m.conflict(bag, "class type %s does not satisfy layout %s", c.Concrete, bag.Layout)
		}
	}
	if bag.Superclass == nil {
		return
	}
	superclass, ok := bag.Superclass.Class.(*types.Nominal)
	if !ok {
		return
	}
	if !isClass {
		m.conflict(bag, "concrete type %s is not a subclass of %s", c.Concrete, superclass)
		return
	}
	up, ok := types.SuperclassAs(nominal, superclass.Decl)
	if !ok {
		m.conflict(bag, "concrete type %s is not a subclass of %s", c.Concrete, superclass)
		return
	}
	if !m.unify(up, c.Substitutions, superclass, bag.Superclass.Substitutions, induced) {
		m.conflict(bag, "concrete type %s does not match superclass bound %s", c.Concrete, superclass)
	}
}

// concretizeNestedTypes equates K.[P:A] with the type witness for A when K is
// fixed to a concrete type conforming to P
func (m *PropertyMap) concretizeNestedTypes(bag *PropertyBag, induced *[]RulePair) {
	c := bag.Concrete
	if c == nil {
		return
	}
	for _, proto := range bag.ConformsTo {
		nominal, ok := c.Concrete.(*types.Nominal)
		if !ok {
			m.conflict(bag, "concrete type %s cannot conform to %s", c.Concrete, proto.Name)
			continue
		}
		witnesses, ok := types.LookupConformance(nominal, proto)
		if !ok {
			m.conflict(bag, "concrete type %s does not conform to %s", c.Concrete, proto.Name)
			continue
		}
		for _, assoc := range proto.AssociatedTypes() {
			witness, ok := witnesses[assoc.Name]
			if !ok || hasDependentMember(witness) {
				continue
			}
			member := bag.Key.Clone()
			member.Add(m.ctx.ForAssociatedType(proto, assoc.Name))
			if idx, ok := placeholderIndex(witness); ok {
				*induced = append(*induced, RulePair{LHS: member, RHS: c.Substitutions[idx].Mutable()})
				continue
			}
			*induced = append(*induced, m.concreteRule(member, witness, c.Substitutions))
		}
	}
}

// unify matches two concrete schemas position by position. Placeholders meeting
// placeholders equate substitution terms; placeholders meeting concrete structure
// fix the substitution term to that structure. Rules are only emitted when the
// whole unification succeeds.
func (m *PropertyMap) unify(t1 types.Type, subs1 []Term, t2 types.Type, subs2 []Term, induced *[]RulePair) bool {
	var local []RulePair
	var walk func(a, b types.Type) bool
	walkAll := func(as, bs []types.Type) bool {
		if len(as) != len(bs) {
			return false
		}
		for i := range as {
			if !walk(as[i], bs[i]) {
				return false
			}
		}
		return true
	}
	walk = func(a, b types.Type) bool {
		ia, aIsPlaceholder := placeholderIndex(a)
		ib, bIsPlaceholder := placeholderIndex(b)
		switch {
		case aIsPlaceholder && bIsPlaceholder:
			local = append(local, RulePair{LHS: subs1[ia].Mutable(), RHS: subs2[ib].Mutable()})
			return true
		case aIsPlaceholder:
			local = append(local, m.concreteRule(subs1[ia].Mutable(), b, subs2))
			return true
		case bIsPlaceholder:
			local = append(local, m.concreteRule(subs2[ib].Mutable(), a, subs1))
			return true
		}
		switch a := a.(type) {
		case *types.Nominal:
			b, ok := b.(*types.Nominal)
			return ok && a.Decl == b.Decl && walkAll(a.Args, b.Args)
		case *types.Tuple:
			b, ok := b.(*types.Tuple)
			return ok && walkAll(a.Elems, b.Elems)
		case *types.Function:
			b, ok := b.(*types.Function)
			return ok && walkAll(a.Params, b.Params) && walk(a.Result, b.Result)
		}
		return false
	}
	if !walk(t1, t2) {
		return false
	}
	*induced = append(*induced, local...)
	return true
}

// concreteRule builds subject.[concrete: t'] => subject, where t' is t re-abstracted
// over the substitutions it actually uses
func (m *PropertyMap) concreteRule(subject MutableTerm, t types.Type, subs []Term) RulePair {
	schema, used := reabstract(t, subs)
	lhs := subject.Clone()
	lhs.Add(m.ctx.ForConcreteType(schema, used))
	return RulePair{LHS: lhs, RHS: subject}
}

// reabstract renumbers the placeholders of t densely, in order of appearance,
// returning the substitutions they now stand for
func reabstract(t types.Type, subs []Term) (types.Type, []Term) {
	var used []Term
	schema := types.Transform(t, func(t types.Type) (types.Type, bool) {
		idx, ok := placeholderIndex(t)
		if !ok {
			return nil, false
		}
		used = append(used, subs[idx])
		return types.NewGenericParam(0, len(used)-1), true
	})
	return schema, used
}

// placeholderIndex recognizes the τ_0_i parameters of a substitution schema
func placeholderIndex(t types.Type) (int, bool) {
	p, ok := t.(*types.GenericParam)
	if !ok || p.Depth != 0 {
		return 0, false
	}
	return p.Index, true
}

func hasDependentMember(t types.Type) bool {
	found := false
	types.Transform(t, func(t types.Type) (types.Type, bool) {
		if _, ok := t.(*types.DependentMember); ok {
			found = true
			return t, true
		}
		return nil, false
	})
	return found
}

// Lookup finds the bag governing term: the bag keyed by term itself, or the bag
// of its longest suffix. prefix is what precedes that suffix in term, and must be
// prepended to the substitutions of the bag's superclass and concrete type.
func (m *PropertyMap) Lookup(term MutableTerm) (bag *PropertyBag, prefix MutableTerm, ok bool) {
	for k := 0; k < term.Len(); k++ {
		if bag, ok := m.frozen.Get(term.Slice(k, term.Len()).Key()); ok {
			return bag, term.Slice(0, k), true
		}
	}
	return nil, MutableTerm{}, false
}
