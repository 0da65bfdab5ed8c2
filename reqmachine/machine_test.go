package reqmachine

import (
	"bytes"
	"errors"
	"github.com/cottand/rqm/internal/config"
	"github.com/cottand/rqm/internal/log"
	"github.com/cottand/rqm/rewriting"
	"github.com/cottand/rqm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"strings"
	"sync"
	"testing"
)

type fixture struct {
	ctx      *rewriting.Context
	module   *types.Module
	sequence *types.Protocol
	element  *types.AssociatedType
	array    *types.NominalDecl
	class    *types.NominalDecl
	t, u     *types.GenericParam
}

func newFixture() *fixture {
	m := types.NewModule()
	seq := m.NewProtocol("Sequence")
	array := m.NewNominal("Array", types.Struct, "Element")
	array.AddConformance(seq, map[string]types.Type{"Element": array.Params[0]})
	return &fixture{
		ctx:      rewriting.NewContext(),
		module:   m,
		sequence: seq,
		element:  seq.AddAssociatedType("Element"),
		array:    array,
		class:    m.NewNominal("C", types.Class),
		t:        &types.GenericParam{Depth: 0, Index: 0, Name: "T"},
		u:        &types.GenericParam{Depth: 0, Index: 1, Name: "U"},
	}
}

func (f *fixture) machine(opts config.Options) *Machine {
	return New(f.ctx, opts, nil)
}

func (f *fixture) signature(reqs ...types.Requirement) *types.GenericSignature {
	return types.NewGenericSignature([]*types.GenericParam{f.t, f.u}, reqs)
}

func (f *fixture) arrayOf(t types.Type) *types.Nominal {
	return &types.Nominal{Decl: f.array, Args: []types.Type{t}}
}

func ruleStrings(rules []*rewriting.Rule) []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.String()
	}
	return out
}

func pairStrings(pairs []rewriting.RulePair) []string {
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = p.String()
	}
	return out
}

func TestConformanceRequirement(t *testing.T) {
	f := newFixture()
	p := f.module.NewProtocol("P")
	m := f.machine(config.Default())

	require.NoError(t, m.InitWithGenericSignature(f.signature(&types.ConformanceRequirement{Subject: f.t, Protocol: p})))
	assert.True(t, m.IsComplete())

	rules := ruleStrings(m.System().Rules())
	assert.Contains(t, rules, "[P].[P] => [P] [permanent]")
	assert.Contains(t, rules, "T.[P] => T")
}

func TestAssociatedTypeIntroduction(t *testing.T) {
	f := newFixture()
	p := f.module.NewProtocol("P")
	p.AddAssociatedType("A")
	m := f.machine(config.Default())

	require.NoError(t, m.InitWithProtocols([]*types.Protocol{p}))
	assert.Contains(t, ruleStrings(m.System().Rules()), "[P].A => [P:A] [permanent]")
	assert.True(t, m.System().RecordsLoops())
}

func TestSuperclassRequirement(t *testing.T) {
	f := newFixture()
	m := f.machine(config.Default())

	require.NoError(t, m.InitWithGenericSignature(f.signature(&types.SuperclassRequirement{Subject: f.t, Class: f.class.DeclaredType()})))
	rules := ruleStrings(m.System().Rules())
	assert.Contains(t, rules, "T.[superclass: C] => T")
	assert.Contains(t, rules, "[superclass: C].[layout: _NativeClass] => [superclass: C] [permanent]")

	super, ok, err := m.Superclass(f.t)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "C", super.String())

	// the layout rule is derived through the superclass
	requiresClass, err := m.RequiresClass(f.t)
	require.NoError(t, err)
	assert.True(t, requiresClass)
	layout, ok, err := m.Layout(f.t)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, types.NativeClass, layout)
}

func TestForeignSuperclassImpliesAnyObject(t *testing.T) {
	f := newFixture()
	f.class.Foreign = true
	m := f.machine(config.Default())

	require.NoError(t, m.InitWithGenericSignature(f.signature(&types.SuperclassRequirement{Subject: f.t, Class: f.class.DeclaredType()})))
	assert.Contains(t, ruleStrings(m.System().Rules()), "[superclass: C].[layout: AnyObject] => [superclass: C] [permanent]")
}

func TestConcreteSameTypeRequirement(t *testing.T) {
	f := newFixture()
	m := f.machine(config.Default())

	require.NoError(t, m.InitWithGenericSignature(f.signature(&types.SameTypeRequirement{Subject: f.t, Other: f.arrayOf(f.u)})))
	assert.Contains(t, ruleStrings(m.System().Rules()), "T.[concrete: Array<τ_0_0> with <U>] => T")

	concrete, ok, err := m.ConcreteType(f.t)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Array<U>", concrete.String())

	isConcrete, err := m.IsConcreteType(f.u)
	require.NoError(t, err)
	assert.False(t, isConcrete)
}

func TestDependenciesUseRequirementSignature(t *testing.T) {
	f := newFixture()
	p, q := f.module.NewProtocol("P"), f.module.NewProtocol("Q")
	p.AddAssociatedType("A")
	p.AddStructuralRequirement(&types.ConformanceRequirement{Subject: types.Member(p.Self(), "A"), Protocol: q})
	q.AddStructuralRequirement(&types.LayoutRequirement{Subject: q.Self(), Layout: types.AnyObject})
	q.SetRequirementSignature(nil)

	b := newRuleBuilder(f.ctx, log.DefaultLogger)
	b.AddProtocols([]*types.Protocol{p})

	assert.Equal(t, []*types.Protocol{p, q}, b.protocols)
	assert.True(t, b.protocolMap[p.ID])
	assert.False(t, b.protocolMap[q.ID])

	reqs := pairStrings(b.requirementRules)
	assert.Contains(t, reqs, "[P].A => [P].A.[Q]")
	assert.NotContains(t, reqs, "[Q] => [Q].[layout: AnyObject]")
	assert.Contains(t, pairStrings(b.permanentRules), "[Q].[Q] => [Q]")
}

func TestFirstRegistrationWins(t *testing.T) {
	f := newFixture()
	p, q := f.module.NewProtocol("P"), f.module.NewProtocol("Q")
	q.AddStructuralRequirement(&types.LayoutRequirement{Subject: q.Self(), Layout: types.AnyObject})
	q.SetRequirementSignature(nil)

	b := newRuleBuilder(f.ctx, log.DefaultLogger)
	b.addProtocol(q, false)
	b.AddProtocols([]*types.Protocol{p, q})

	assert.Equal(t, []*types.Protocol{q, p}, b.protocols)
	assert.False(t, b.protocolMap[q.ID])
	assert.Empty(t, b.requirementRules)
}

func TestAddProtocolIsIdempotent(t *testing.T) {
	f := newFixture()
	p := f.module.NewProtocol("P")
	p.AddAssociatedType("A")
	p.AddStructuralRequirement(&types.ConformanceRequirement{Subject: types.Member(p.Self(), "A"), Protocol: f.sequence})

	once := newRuleBuilder(f.ctx, log.DefaultLogger)
	once.addProtocol(p, true)
	once.collectRulesFromReferencedProtocols()

	twice := newRuleBuilder(f.ctx, log.DefaultLogger)
	twice.addProtocol(p, true)
	twice.addProtocol(p, true)
	twice.collectRulesFromReferencedProtocols()

	assert.Equal(t, pairStrings(once.permanentRules), pairStrings(twice.permanentRules))
	assert.Equal(t, pairStrings(once.requirementRules), pairStrings(twice.requirementRules))
}

func TestSameTypeParameters(t *testing.T) {
	f := newFixture()
	m := f.machine(config.Default())
	element := types.Member(f.t, "Element")

	require.NoError(t, m.InitWithGenericSignature(f.signature(
		&types.ConformanceRequirement{Subject: f.t, Protocol: f.sequence},
		&types.SameTypeRequirement{Subject: element, Other: f.u},
	)))

	same, err := m.AreSameTypeParameters(element, f.u)
	require.NoError(t, err)
	assert.True(t, same)

	canonical, err := m.CanonicalType(types.ResolvedMember(f.t, f.element))
	require.NoError(t, err)
	assert.Equal(t, "U", canonical.String())

	conforms, err := m.RequiresProtocol(f.t, f.sequence)
	require.NoError(t, err)
	assert.True(t, conforms)
	conforms, err = m.RequiresProtocol(f.u, f.sequence)
	require.NoError(t, err)
	assert.False(t, conforms)
}

func TestQueries(t *testing.T) {
	f := newFixture()
	m := f.machine(config.Default())
	require.NoError(t, m.InitWithGenericSignature(f.signature(
		&types.ConformanceRequirement{Subject: f.t, Protocol: f.sequence},
		&types.LayoutRequirement{Subject: f.u, Layout: types.AnyObject},
	)))

	term, err := m.CanonicalTerm(types.Member(f.t, "Element"))
	require.NoError(t, err)
	assert.Equal(t, "T.[Sequence:Element]", term.String())

	canonical, err := m.CanonicalType(types.Member(f.t, "Element"))
	require.NoError(t, err)
	member, ok := canonical.(*types.DependentMember)
	require.True(t, ok)
	assert.Same(t, f.element, member.Assoc)

	protos, err := m.RequiredProtocols(f.t)
	require.NoError(t, err)
	assert.Equal(t, []*types.Protocol{f.sequence}, protos)

	protos, err = m.RequiredProtocols(types.Member(f.t, "Element"))
	require.NoError(t, err)
	assert.Empty(t, protos)

	requiresClass, err := m.RequiresClass(f.u)
	require.NoError(t, err)
	assert.True(t, requiresClass)
	requiresClass, err = m.RequiresClass(f.t)
	require.NoError(t, err)
	assert.False(t, requiresClass)

	_, ok, err = m.Superclass(f.t)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = m.CanonicalTerm(types.NewGenericParam(1, 0))
	assert.ErrorContains(t, err, "not a generic parameter of this machine")
	_, err = m.CanonicalTerm(f.arrayOf(f.t))
	assert.ErrorContains(t, err, "not a type parameter")
}

func TestConcurrentQueries(t *testing.T) {
	f := newFixture()
	m := f.machine(config.Default())
	require.NoError(t, m.InitWithGenericSignature(f.signature(&types.ConformanceRequirement{Subject: f.t, Protocol: f.sequence})))

	var wg sync.WaitGroup
	results := make([]string, 16)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			term, err := m.CanonicalTerm(types.Member(f.t, "Element"))
			if err == nil {
				results[i] = term.String()
			}
		}()
	}
	wg.Wait()
	for _, r := range results {
		assert.Equal(t, "T.[Sequence:Element]", r)
	}
}

func TestMachineState(t *testing.T) {
	f := newFixture()
	m := f.machine(config.Default())
	assert.Equal(t, Uninitialized, m.State())

	_, err := m.CanonicalTerm(f.t)
	assert.ErrorIs(t, err, ErrNotComplete)
	assert.ErrorIs(t, m.VerifyAll(), ErrNotComplete)

	require.NoError(t, m.InitWithGenericSignature(f.signature()))
	assert.Equal(t, Complete, m.State())

	assert.ErrorIs(t, m.InitWithGenericSignature(f.signature()), ErrAlreadyInitialized)
	assert.ErrorIs(t, m.InitWithProtocols(nil), ErrAlreadyInitialized)
	assert.ErrorIs(t, m.InitWithAbstractRequirements(nil, nil), ErrAlreadyInitialized)
}

func TestResourceExhausted(t *testing.T) {
	sequenceSignature := func(f *fixture, m *Machine) error {
		return m.InitWithGenericSignature(f.signature(&types.ConformanceRequirement{Subject: f.t, Protocol: f.sequence}))
	}
	// T == Array<U> and T == Array<V> only meet when the property map unifies U with V
	arrayEquations := func(f *fixture, m *Machine) error {
		v := &types.GenericParam{Depth: 0, Index: 2, Name: "V"}
		return m.InitWithAbstractRequirements([]*types.GenericParam{f.t, f.u, v}, []types.Requirement{
			&types.SameTypeRequirement{Subject: f.t, Other: f.arrayOf(f.u)},
			&types.SameTypeRequirement{Subject: f.t, Other: f.arrayOf(v)},
		})
	}

	tests := []struct {
		name   string
		opts   config.Options
		init   func(*fixture, *Machine) error
		limit  Limit
		phase  Phase
		code   ErrCode
		header string
	}{
		{"steps", config.Options{StepLimit: 1, DepthLimit: 10}, sequenceSignature, StepLimit, CompletionPhase, StepLimitExceeded, "Requirement machine for <T, U where T : Sequence>"},
		{"depth", config.Options{StepLimit: 100, DepthLimit: 1}, sequenceSignature, DepthLimit, CompletionPhase, DepthLimitExceeded, "Requirement machine for <T, U where T : Sequence>"},
		{"unification steps", config.Options{StepLimit: 0, DepthLimit: 10}, arrayEquations, StepLimit, UnificationPhase, StepLimitExceeded, "Requirement machine for fresh signature T U V"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			m := f.machine(tt.opts)
			err := tt.init(f, m)

			var exhausted *ResourceExhaustedError
			require.True(t, errors.As(err, &exhausted), "got %v", err)
			assert.Equal(t, tt.limit, exhausted.Limit)
			assert.Equal(t, tt.phase, exhausted.Phase)
			assert.Equal(t, tt.code, exhausted.Code())
			assert.Contains(t, exhausted.Dump(), tt.header)
			assert.Contains(t, FormatWithCode(exhausted), string(tt.phase)+" exceeded")
			assert.Equal(t, Building, m.State())
		})
	}
}

func TestStrictPolicyRejectsConflicts(t *testing.T) {
	reqs := func(f *fixture) []types.Requirement {
		return []types.Requirement{
			&types.LayoutRequirement{Subject: f.t, Layout: types.AnyObject},
			&types.LayoutRequirement{Subject: f.t, Layout: types.Trivial},
		}
	}

	f := newFixture()
	err := f.machine(config.Default()).InitWithGenericSignature(f.signature(reqs(f)...))
	var invariant *InvariantError
	require.True(t, errors.As(err, &invariant), "got %v", err)
	assert.Equal(t, InvalidRewriteRule, invariant.Code())
	var conflict *rewriting.ConflictError
	assert.True(t, errors.As(err, &conflict))

	f = newFixture()
	m := f.machine(config.Default())
	require.NoError(t, m.InitWithAbstractRequirements([]*types.GenericParam{f.t, f.u}, reqs(f)))
	assert.Len(t, m.System().Conflicts(), 1)
}

func TestVerify(t *testing.T) {
	f := newFixture()
	opts := config.Default()
	opts.VerifyTerms = true
	m := f.machine(opts)
	require.NoError(t, m.InitWithGenericSignature(f.signature(&types.ConformanceRequirement{Subject: f.t, Protocol: f.sequence})))
	require.NoError(t, m.VerifyAll())

	elem := f.ctx.ForAssociatedType(f.sequence, "Element")
	param := f.ctx.ForGenericParam(f.t)
	tests := []struct {
		name string
		term rewriting.MutableTerm
		code ErrCode
	}{
		{"canonical", rewriting.NewMutableTerm(param, elem), None},
		{"protocol rooted", rewriting.NewMutableTerm(elem), None},
		{"empty", rewriting.NewMutableTerm(), BadInitialSymbol},
		{"unknown param", rewriting.NewMutableTerm(f.ctx.ForGenericParam(types.NewGenericParam(3, 0))), BadGenericParam},
		{"layout root", rewriting.NewMutableTerm(f.ctx.ForLayout(types.AnyObject)), BadInitialSymbol},
		{"interior layout", rewriting.NewMutableTerm(param, f.ctx.ForLayout(types.AnyObject)), BadInteriorSymbol},
		{"not canonical", rewriting.NewMutableTerm(param, f.ctx.ForName("Element")), TermVerification},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.Verify(tt.term)
			if tt.code == None {
				assert.NoError(t, err)
				return
			}
			var invariant *InvariantError
			require.True(t, errors.As(err, &invariant), "got %v", err)
			assert.Equal(t, tt.code, invariant.Code())
		})
	}
}

func TestDiagnostics(t *testing.T) {
	f := newFixture()
	var out bytes.Buffer
	diags := &Diagnostics{Stats: &Stats{}, Out: &out}
	opts := config.Default()
	opts.Dump = true

	m := New(f.ctx, opts, diags)
	require.NoError(t, m.InitWithGenericSignature(f.signature(&types.ConformanceRequirement{Subject: f.t, Protocol: f.sequence})))
	other := New(f.ctx, opts, diags)
	require.NoError(t, other.InitWithProtocols([]*types.Protocol{f.sequence}))

	assert.Equal(t, int64(2), diags.Stats.NumRequirementMachines.Load())
	assert.Positive(t, diags.Stats.NumCompletionSteps.Load())

	dump := out.String()
	assert.Contains(t, dump, "Requirement machine for <T, U where T : Sequence>")
	assert.Contains(t, dump, "Requirement machine for protocols [ Sequence ]")
	assert.Contains(t, dump, "Property map: {")
	assert.Contains(t, m.String(), "T.Element => T.[Sequence:Element]")
	assert.True(t, strings.HasSuffix(m.String(), "Conformance access paths: {\n}\n"))
}

func TestUnificationRound(t *testing.T) {
	f := newFixture()
	diags := &Diagnostics{Stats: &Stats{}}
	m := New(f.ctx, config.Default(), diags)
	v := &types.GenericParam{Depth: 0, Index: 2, Name: "V"}
	sig := types.NewGenericSignature([]*types.GenericParam{f.t, f.u, v}, []types.Requirement{
		&types.ConformanceRequirement{Subject: f.t, Protocol: f.sequence},
		&types.SameTypeRequirement{Subject: f.t, Other: f.arrayOf(f.u)},
		&types.SameTypeRequirement{Subject: f.t, Other: f.arrayOf(v)},
	})
	require.NoError(t, m.InitWithGenericSignature(sig))
	assert.Positive(t, diags.Stats.NumUnifiedConcreteTerms.Load())

	same, err := m.AreSameTypeParameters(f.u, v)
	require.NoError(t, err)
	assert.True(t, same)

	same, err = m.AreSameTypeParameters(types.Member(f.t, "Element"), f.u)
	require.NoError(t, err)
	assert.True(t, same)
}
