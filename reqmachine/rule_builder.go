package reqmachine

import (
	"fmt"
	"github.com/cottand/rqm/rewriting"
	"github.com/cottand/rqm/types"
	"github.com/hashicorp/go-set/v3"
	"log/slog"
)

// ruleBuilder lowers the top-level requirements of a signature, and the
// requirements of every protocol they transitively reference, to rewrite rules.
// A ruleBuilder is used once.
type ruleBuilder struct {
	ctx *rewriting.Context

	// protocolMap records every protocol seen so far. The value is true for the
	// protocols of the initial component, whose rules come from their structural
	// requirements rather than from their requirement signature.
	protocolMap map[types.ProtocolID]bool
	// protocols is protocolMap's key set in discovery order
	protocols []*types.Protocol

	// permanentRules introduce associated types and tie layouts to superclasses.
	// Each appears once, in order of first addition.
	permanentRules []rewriting.RulePair
	permanentSeen  *set.HashSet[rewriting.RulePair, string]
	// requirementRules come from requirements, and may turn out to be redundant
	requirementRules []rewriting.RulePair

	logger *slog.Logger
}

func newRuleBuilder(ctx *rewriting.Context, logger *slog.Logger) *ruleBuilder {
	return &ruleBuilder{
		ctx:           ctx,
		protocolMap:   make(map[types.ProtocolID]bool),
		permanentSeen: set.NewHashSet[rewriting.RulePair, string](0),
		logger:        logger.With("section", "rulebuilder"),
	}
}

// AddRequirements collects the protocols referenced by reqs, the rules of those
// protocols, and finally the rules of reqs themselves
func (b *ruleBuilder) AddRequirements(reqs []types.Requirement) {
	for _, req := range reqs {
		if conf, ok := req.(*types.ConformanceRequirement); ok {
			b.addProtocol(conf.Protocol, false)
		}
	}
	b.collectRulesFromReferencedProtocols()
	for _, req := range reqs {
		b.addRequirement(req, nil)
	}
}

// AddProtocols collects the rules of a strongly connected component of the
// protocol dependency graph, and of every protocol it references
func (b *ruleBuilder) AddProtocols(protos []*types.Protocol) {
	for _, proto := range protos {
		b.addProtocol(proto, true)
	}
	b.collectRulesFromReferencedProtocols()
}

// addProtocol registers proto unless it was already seen. The first
// registration decides whether proto belongs to the initial component.
func (b *ruleBuilder) addProtocol(proto *types.Protocol, initialComponent bool) {
	if _, ok := b.protocolMap[proto.ID]; ok {
		return
	}
	b.protocolMap[proto.ID] = initialComponent
	b.protocols = append(b.protocols, proto)
}

func (b *ruleBuilder) collectRulesFromReferencedProtocols() {
	for i := 0; i < len(b.protocols); i++ {
		for _, dep := range b.protocols[i].Dependencies() {
			b.addProtocol(dep, false)
		}
	}

	for _, proto := range b.protocols {
		b.logger.Debug("protocol", "name", proto.Name, "initial", b.protocolMap[proto.ID])

		self := b.ctx.ForProtocol(proto)
		b.addPermanentRule(rewriting.RulePair{
			LHS: rewriting.NewMutableTerm(self, self),
			RHS: rewriting.NewMutableTerm(self),
		})

		for _, assoc := range proto.AssociatedTypes() {
			b.addAssociatedType(assoc, proto)
		}
		for _, inherited := range b.ctx.InheritedProtocols(proto) {
			for _, assoc := range inherited.AssociatedTypes() {
				b.addAssociatedType(assoc, proto)
			}
		}

		if b.protocolMap[proto.ID] {
			for _, req := range proto.StructuralRequirements() {
				b.addRequirement(req.Canonical(), proto)
			}
		} else {
			for _, req := range proto.RequirementSignature() {
				b.addRequirement(req.Canonical(), proto)
			}
		}
	}
}

// addAssociatedType adds [P].A => [P:A]: a type conforming to P has a member named A
func (b *ruleBuilder) addAssociatedType(assoc *types.AssociatedType, proto *types.Protocol) {
	b.addPermanentRule(rewriting.RulePair{
		LHS: rewriting.NewMutableTerm(b.ctx.ForProtocol(proto), b.ctx.ForName(assoc.Name)),
		RHS: rewriting.NewMutableTerm(b.ctx.ForAssociatedType(proto, assoc.Name)),
	})
}

func (b *ruleBuilder) addPermanentRule(rule rewriting.RulePair) {
	if b.permanentSeen.Insert(rule) {
		b.permanentRules = append(b.permanentRules, rule)
	}
}

// addRequirement lowers req to a rule rooted in a generic parameter when proto is
// nil, or in proto when req comes from proto's requirements
func (b *ruleBuilder) addRequirement(req types.Requirement, proto *types.Protocol) {
	b.logger.Debug("requirement", "req", req.String())

	subject := b.ctx.MutableTermForType(req.FirstType(), proto)
	constraint := subject.Clone()

	switch req := req.(type) {
	case *types.ConformanceRequirement:
		constraint.Add(b.ctx.ForProtocol(req.Protocol))

	case *types.SuperclassRequirement:
		class, ok := types.Canonical(req.Class).(*types.Nominal)
		if !ok || !class.Decl.IsClass() {
			panic(fmt.Sprintf("superclass requirement %s does not name a class", req))
		}
		schema, subs := b.concreteSubstitutionSchema(class, proto)
		superclass := b.ctx.ForSuperclass(schema, subs)

		// [superclass: C].[layout: L] => [superclass: C], so that completion
		// derives T.[layout: L] => T
		layout := b.ctx.ForLayout(types.LayoutForClass(class.Decl))
		b.addPermanentRule(rewriting.RulePair{
			LHS: rewriting.NewMutableTerm(superclass, layout),
			RHS: rewriting.NewMutableTerm(superclass),
		})
		constraint.Add(superclass)

	case *types.LayoutRequirement:
		constraint.Add(b.ctx.ForLayout(req.Layout))

	case *types.SameTypeRequirement:
		other := types.Canonical(req.Other)
		if types.IsTypeParameter(other) {
			constraint = b.ctx.MutableTermForType(other, proto)
			break
		}
		schema, subs := b.concreteSubstitutionSchema(other, proto)
		constraint.Add(b.ctx.ForConcreteType(schema, subs))

	default:
		panic(fmt.Sprintf("unknown requirement %T", req))
	}

	b.requirementRules = append(b.requirementRules, rewriting.RulePair{LHS: subject, RHS: constraint})
}

// concreteSubstitutionSchema replaces every maximal type parameter inside the
// concrete type t with τ_0_i, where i indexes the returned substitution terms.
// For example Foo<X.Y, Array<Z>> becomes Foo<τ_0_0, Array<τ_0_1>> with [X.Y, Z].
func (b *ruleBuilder) concreteSubstitutionSchema(t types.Type, proto *types.Protocol) (types.Type, []rewriting.Term) {
	if types.IsTypeParameter(t) {
		panic(fmt.Sprintf("%s is not a concrete type", t))
	}
	return concreteSubstitutionSchema(b.ctx, t, proto)
}

func concreteSubstitutionSchema(ctx *rewriting.Context, t types.Type, proto *types.Protocol) (types.Type, []rewriting.Term) {
	if !types.HasTypeParameter(t) {
		return t, nil
	}
	var subs []rewriting.Term
	schema := types.Transform(t, func(t types.Type) (types.Type, bool) {
		if !types.IsTypeParameter(t) {
			return nil, false
		}
		subs = append(subs, ctx.TermForType(t, proto))
		return types.NewGenericParam(0, len(subs)-1), true
	})
	return schema, subs
}
