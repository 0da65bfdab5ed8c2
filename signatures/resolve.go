package signatures

import (
	"cmp"
	"github.com/cottand/rqm/reqmachine"
	"github.com/cottand/rqm/rewriting"
	"github.com/cottand/rqm/types"
	"slices"
)

// resolver resolves the member types of requirements to associated types, using
// the conformances a complete machine derived
type resolver struct {
	ctx     *rewriting.Context
	machine *reqmachine.Machine
}

func (r *resolver) requirement(req types.Requirement, proto *types.Protocol) types.Requirement {
	switch req := req.(type) {
	case *types.ConformanceRequirement:
		return &types.ConformanceRequirement{Subject: r.resolve(req.Subject, proto), Protocol: req.Protocol}
	case *types.SuperclassRequirement:
		return &types.SuperclassRequirement{Subject: r.resolve(req.Subject, proto), Class: r.resolve(req.Class, proto)}
	case *types.LayoutRequirement:
		return &types.LayoutRequirement{Subject: r.resolve(req.Subject, proto), Layout: req.Layout}
	case *types.SameTypeRequirement:
		resolved := &types.SameTypeRequirement{Subject: r.resolve(req.Subject, proto), Other: r.resolve(req.Other, proto)}
		return resolved.Canonical()
	default:
		panic("unknown requirement")
	}
}

// resolve rewrites every unresolved member type inside t to the associated type
// of that name in one of the protocols its base conforms to. Members no such
// protocol declares are left unresolved.
func (r *resolver) resolve(t types.Type, proto *types.Protocol) types.Type {
	return types.Transform(t, func(t types.Type) (types.Type, bool) {
		member, ok := t.(*types.DependentMember)
		if !ok {
			return nil, false
		}
		base := r.resolve(member.Base, proto)
		if member.Assoc != nil {
			return types.ResolvedMember(base, member.Assoc), true
		}
		if assoc, ok := r.lookupAssociatedType(base, member.Name, proto); ok {
			return types.ResolvedMember(base, assoc), true
		}
		return types.Member(base, member.Name), true
	})
}

func (r *resolver) lookupAssociatedType(base types.Type, name string, proto *types.Protocol) (*types.AssociatedType, bool) {
	term := r.ctx.MutableTermForType(base, proto)
	r.machine.System().Simplify(&term)
	bag, _, ok := r.machine.PropertyMap().Lookup(term)
	if !ok {
		return nil, false
	}
	candidates := slices.Clone(bag.ConformsTo)
	slices.SortFunc(candidates, func(a, b *types.Protocol) int { return cmp.Compare(a.Name, b.Name) })
	for _, candidate := range candidates {
		if assoc, ok := candidate.AssociatedType(name); ok {
			return assoc, true
		}
		for _, inherited := range r.ctx.InheritedProtocols(candidate) {
			if assoc, ok := inherited.AssociatedType(name); ok {
				return assoc, true
			}
		}
	}
	return nil, false
}
