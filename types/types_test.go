package types

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

type fixture struct {
	module   *Module
	array    *NominalDecl
	intType  *Nominal
	sequence *Protocol
	element  *AssociatedType
}

func newFixture() *fixture {
	m := NewModule()
	seq := m.NewProtocol("Sequence")
	return &fixture{
		module:   m,
		array:    m.NewNominal("Array", Struct, "Element"),
		intType:  m.NewNominal("Int", Struct).DeclaredType(),
		sequence: seq,
		element:  seq.AddAssociatedType("Element"),
	}
}

func TestCompareOrdersKinds(t *testing.T) {
	f := newFixture()
	tau := NewGenericParam(0, 0)
	ordered := []Type{
		tau,
		NewGenericParam(0, 1),
		NewGenericParam(1, 0),
		Member(tau, "Element"),
		f.intType,
		&Tuple{Elems: []Type{f.intType}},
		&Function{Params: nil, Result: f.intType},
	}
	for i := range ordered {
		for j := range ordered {
			got := Compare(ordered[i], ordered[j])
			switch {
			case i < j:
				assert.Negative(t, got, "%s < %s", ordered[i], ordered[j])
			case i > j:
				assert.Positive(t, got, "%s > %s", ordered[i], ordered[j])
			default:
				assert.Zero(t, got)
			}
		}
	}
}

func TestCompareStructuralTypes(t *testing.T) {
	f := newFixture()
	tau0, tau1 := NewGenericParam(0, 0), NewGenericParam(0, 1)
	tests := []struct {
		name string
		a, b Type
	}{
		{"shorter tuple first", &Tuple{Elems: []Type{tau0}}, &Tuple{Elems: []Type{tau0, tau0}}},
		{"tuple by elements", &Tuple{Elems: []Type{tau0, tau0}}, &Tuple{Elems: []Type{tau0, tau1}}},
		{"function by params", &Function{Params: []Type{tau0}, Result: f.intType}, &Function{Params: []Type{tau1}, Result: tau0}},
		{"function by result", &Function{Params: []Type{tau0}, Result: tau0}, &Function{Params: []Type{tau0}, Result: tau1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Negative(t, Compare(tt.a, tt.b))
			assert.Positive(t, Compare(tt.b, tt.a))
			assert.Zero(t, Compare(tt.a, tt.a))
		})
	}
}

func TestResolvedMembersOrderBeforeUnresolved(t *testing.T) {
	f := newFixture()
	tau := NewGenericParam(0, 0)
	assert.Negative(t, Compare(ResolvedMember(tau, f.element), Member(tau, "Element")))
	assert.NotEqual(t, Key(ResolvedMember(tau, f.element)), Key(Member(tau, "Element")))
}

func TestAliasesAreTransparent(t *testing.T) {
	f := newFixture()
	alias := &Alias{Name: "Number", Underlying: f.intType}
	arrayOfAlias := &Nominal{Decl: f.array, Args: []Type{alias}}
	arrayOfInt := &Nominal{Decl: f.array, Args: []Type{f.intType}}

	assert.True(t, Equal(arrayOfAlias, arrayOfInt))
	assert.Equal(t, Key(arrayOfInt), Key(arrayOfAlias))
	assert.Equal(t, "Array<Int>", Canonical(arrayOfAlias).String())
}

func TestSubstitute(t *testing.T) {
	f := newFixture()
	tau0, tau1 := NewGenericParam(0, 0), NewGenericParam(0, 1)
	schema := &Function{
		Params: []Type{&Nominal{Decl: f.array, Args: []Type{tau0}}},
		Result: &Tuple{Elems: []Type{tau1, NewGenericParam(1, 0)}},
	}

	got := Substitute(schema, []Type{f.intType})
	assert.Equal(t, "(Array<Int>) -> (τ_0_1, τ_1_0)", got.String())
}

func TestTypeParameters(t *testing.T) {
	f := newFixture()
	tau := NewGenericParam(0, 0)
	member := Member(Member(tau, "A"), "B")

	tests := []struct {
		typ          Type
		isParam      bool
		hasParam     bool
		rootsAtParam bool
	}{
		{tau, true, true, true},
		{member, true, true, true},
		{f.intType, false, false, false},
		{&Nominal{Decl: f.array, Args: []Type{member}}, false, true, false},
		{&Alias{Name: "Me", Underlying: tau}, true, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			assert.Equal(t, tt.isParam, IsTypeParameter(tt.typ))
			assert.Equal(t, tt.hasParam, HasTypeParameter(tt.typ))
			root, ok := RootParam(tt.typ)
			assert.Equal(t, tt.rootsAtParam, ok)
			if ok {
				assert.Same(t, tau, root)
			}
		})
	}
}

func TestLookupConformanceThroughSuperclass(t *testing.T) {
	f := newFixture()
	base := f.module.NewNominal("Base", Class, "T")
	base.AddConformance(f.sequence, map[string]Type{"Element": &Nominal{Decl: f.array, Args: []Type{base.Params[0]}}})
	derived := f.module.NewNominal("Derived", Class)
	derived.Superclass = &Nominal{Decl: base, Args: []Type{f.intType}}

	witnesses, ok := LookupConformance(derived.DeclaredType(), f.sequence)
	require.True(t, ok)
	assert.Equal(t, "Array<Int>", witnesses["Element"].String())

	_, ok = LookupConformance(f.intType, f.sequence)
	assert.False(t, ok)

	super, ok := SuperclassAs(derived.DeclaredType(), base)
	require.True(t, ok)
	assert.Equal(t, "Base<Int>", super.String())

	_, ok = SuperclassAs(f.intType, base)
	assert.False(t, ok)
}

func TestMergeLayouts(t *testing.T) {
	tests := []struct {
		a, b LayoutConstraint
		want LayoutConstraint
		ok   bool
	}{
		{AnyObject, AnyObject, AnyObject, true},
		{AnyObject, NativeClass, NativeClass, true},
		{NativeClass, AnyObject, NativeClass, true},
		{Trivial, Trivial, Trivial, true},
		{Trivial, AnyObject, LayoutConstraint{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.a.String()+"&"+tt.b.String(), func(t *testing.T) {
			got, ok := MergeLayouts(tt.a, tt.b)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLayoutForClass(t *testing.T) {
	m := NewModule()
	native := m.NewNominal("Native", Class)
	foreign := m.NewNominal("Foreign", Class)
	foreign.Foreign = true
	sub := m.NewNominal("Sub", Class)
	sub.Superclass = foreign.DeclaredType()

	assert.Equal(t, NativeClass, LayoutForClass(native))
	assert.Equal(t, AnyObject, LayoutForClass(foreign))
	assert.Equal(t, AnyObject, LayoutForClass(sub))

	for _, name := range []string{"AnyObject", "_NativeClass", "_Trivial"} {
		layout, ok := LayoutFromName(name)
		assert.True(t, ok)
		assert.Equal(t, name, layout.String())
	}
	_, ok := LayoutFromName("Trivial")
	assert.False(t, ok)
}

func TestProtocolDependencies(t *testing.T) {
	m := NewModule()
	p, q, r := m.NewProtocol("P"), m.NewProtocol("Q"), m.NewProtocol("R")
	p.AddAssociatedType("A")
	p.AddStructuralRequirement(&ConformanceRequirement{Subject: p.Self(), Protocol: q})
	p.AddStructuralRequirement(&ConformanceRequirement{Subject: Member(p.Self(), "A"), Protocol: r})
	p.AddStructuralRequirement(&ConformanceRequirement{Subject: Member(p.Self(), "A"), Protocol: q})

	assert.Equal(t, []*Protocol{q, r}, p.Dependencies())
	assert.Equal(t, []*Protocol{q}, p.Inherited())

	// protocols loaded with a signature only depend on what the signature names
	s := m.NewProtocol("S")
	s.SetRequirementSignature([]Requirement{&ConformanceRequirement{Subject: s.Self(), Protocol: r}})
	assert.Equal(t, []*Protocol{r}, s.Dependencies())
	assert.Equal(t, []*Protocol{r}, s.Inherited())
	assert.Empty(t, q.Dependencies())

	assert.Same(t, p, m.NewProtocol("P"))
}

func TestSameTypeCanonicalOrdersParams(t *testing.T) {
	tau0, tau1 := NewGenericParam(0, 0), NewGenericParam(0, 1)
	req := (&SameTypeRequirement{Subject: tau1, Other: Member(tau0, "A")}).Canonical()
	assert.Equal(t, "τ_0_1 == τ_0_0.A", req.String())

	req = (&SameTypeRequirement{Subject: Member(tau0, "A"), Other: tau1}).Canonical()
	assert.Equal(t, "τ_0_1 == τ_0_0.A", req.String())
}

func TestGenericSignatureString(t *testing.T) {
	f := newFixture()
	tau := &GenericParam{Depth: 0, Index: 0, Name: "T"}
	sig := NewGenericSignature([]*GenericParam{tau, {Depth: 0, Index: 1, Name: "U"}}, []Requirement{
		&ConformanceRequirement{Subject: tau, Protocol: f.sequence},
		&LayoutRequirement{Subject: Member(tau, "Element"), Layout: AnyObject},
	})
	assert.Equal(t, "<T, U where T : Sequence, T.Element : AnyObject>", sig.String())
	assert.True(t, sig.HasParam(NewGenericParam(0, 1)))
	assert.False(t, sig.HasParam(NewGenericParam(1, 0)))
}
