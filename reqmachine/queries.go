package reqmachine

import (
	"cmp"
	"fmt"
	"github.com/cottand/rqm/rewriting"
	"github.com/cottand/rqm/types"
	"slices"
)

// CanonicalTerm lowers the type parameter t and simplifies it
func (m *Machine) CanonicalTerm(t types.Type) (rewriting.MutableTerm, error) {
	if m.state != Complete {
		return rewriting.MutableTerm{}, ErrNotComplete
	}
	root, ok := types.RootParam(t)
	if !ok {
		return rewriting.MutableTerm{}, fmt.Errorf("%s is not a type parameter", t)
	}
	if !m.hasParam(root) {
		return rewriting.MutableTerm{}, fmt.Errorf("%s is not a generic parameter of this machine", root)
	}

	key := types.Key(t)
	if term, ok := m.canonical.Load().Get(key); ok {
		return term.Clone(), nil
	}
	term := m.ctx.MutableTermForType(t, nil)
	m.system.Simplify(&term)
	for {
		old := m.canonical.Load()
		if m.canonical.CompareAndSwap(old, old.Set(key, term)) {
			break
		}
	}
	return term.Clone(), nil
}

// CanonicalType is the canonical type parameter equivalent to t
func (m *Machine) CanonicalType(t types.Type) (types.Type, error) {
	term, err := m.CanonicalTerm(t)
	if err != nil {
		return nil, err
	}
	return m.ctx.TypeForTerm(term, m.params)
}

func (m *Machine) AreSameTypeParameters(a, b types.Type) (bool, error) {
	ta, err := m.CanonicalTerm(a)
	if err != nil {
		return false, err
	}
	tb, err := m.CanonicalTerm(b)
	if err != nil {
		return false, err
	}
	return ta.Equal(tb), nil
}

func (m *Machine) RequiresProtocol(t types.Type, proto *types.Protocol) (bool, error) {
	term, err := m.CanonicalTerm(t)
	if err != nil {
		return false, err
	}
	conforming := term.Clone()
	conforming.Add(m.ctx.ForProtocol(proto))
	m.system.Simplify(&conforming)
	return conforming.Equal(term), nil
}

// RequiredProtocols returns the protocols t conforms to, sorted by name
func (m *Machine) RequiredProtocols(t types.Type) ([]*types.Protocol, error) {
	bag, _, err := m.lookup(t)
	if err != nil || bag == nil {
		return nil, err
	}
	protos := slices.Clone(bag.ConformsTo)
	slices.SortFunc(protos, func(a, b *types.Protocol) int {
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return protos, nil
}

func (m *Machine) Layout(t types.Type) (types.LayoutConstraint, bool, error) {
	bag, _, err := m.lookup(t)
	if err != nil || bag == nil || !bag.HasLayout {
		return types.LayoutConstraint{}, false, err
	}
	return bag.Layout, true, nil
}

func (m *Machine) RequiresClass(t types.Type) (bool, error) {
	layout, ok, err := m.Layout(t)
	return ok && layout.IsClass(), err
}

func (m *Machine) Superclass(t types.Type) (types.Type, bool, error) {
	bag, prefix, err := m.lookup(t)
	if err != nil || bag == nil || bag.Superclass == nil {
		return nil, false, err
	}
	class, err := m.typeFromSchema(bag.Superclass.Class, bag.Superclass.Substitutions, prefix, 0)
	return class, err == nil, err
}

func (m *Machine) ConcreteType(t types.Type) (types.Type, bool, error) {
	bag, prefix, err := m.lookup(t)
	if err != nil || bag == nil || bag.Concrete == nil {
		return nil, false, err
	}
	concrete, err := m.typeFromSchema(bag.Concrete.Concrete, bag.Concrete.Substitutions, prefix, 0)
	return concrete, err == nil, err
}

func (m *Machine) IsConcreteType(t types.Type) (bool, error) {
	bag, _, err := m.lookup(t)
	return bag != nil && bag.Concrete != nil, err
}

// lookup returns the property bag of the canonical form of t, if it has one
func (m *Machine) lookup(t types.Type) (*rewriting.PropertyBag, rewriting.MutableTerm, error) {
	term, err := m.CanonicalTerm(t)
	if err != nil {
		return nil, rewriting.MutableTerm{}, err
	}
	bag, prefix, _ := m.pmap.Lookup(term)
	return bag, prefix, nil
}

// typeFromSchema substitutes the types of prefix.subs[i] for the placeholders of schema.
// Substitutions fixed to concrete types are replaced by those types.
func (m *Machine) typeFromSchema(schema types.Type, subs []rewriting.Term, prefix rewriting.MutableTerm, depth int) (types.Type, error) {
	if depth > m.opts.DepthLimit {
		return nil, fmt.Errorf("concrete type %s nests deeper than %d", schema, m.opts.DepthLimit)
	}
	args := make([]types.Type, len(subs))
	for i, sub := range subs {
		term := prefix.Clone()
		term.Append(sub.Mutable())
		m.system.Simplify(&term)

		if bag, subPrefix, ok := m.pmap.Lookup(term); ok && bag.Concrete != nil {
			arg, err := m.typeFromSchema(bag.Concrete.Concrete, bag.Concrete.Substitutions, subPrefix, depth+1)
			if err != nil {
				return nil, err
			}
			args[i] = arg
			continue
		}
		arg, err := m.ctx.TypeForTerm(term, m.params)
		if err != nil {
			return nil, err
		}
		args[i] = arg
	}
	return types.Substitute(schema, args), nil
}
