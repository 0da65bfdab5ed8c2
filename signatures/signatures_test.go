package signatures

import (
	"github.com/cottand/rqm/internal/config"
	"github.com/cottand/rqm/reqmachine"
	"github.com/cottand/rqm/rewriting"
	"github.com/cottand/rqm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func conforms(subject types.Type, proto *types.Protocol) types.Requirement {
	return &types.ConformanceRequirement{Subject: subject, Protocol: proto}
}

func names(component []*types.Protocol) []string {
	out := make([]string, len(component))
	for i, p := range component {
		out[i] = p.Name
	}
	return out
}

func TestComponents(t *testing.T) {
	m := types.NewModule()
	a, b, c := m.NewProtocol("A"), m.NewProtocol("B"), m.NewProtocol("C")
	d := m.NewProtocol("D")
	e := m.NewProtocol("E")
	a.AddAssociatedType("X")
	b.AddAssociatedType("Y")
	a.AddStructuralRequirement(conforms(types.Member(a.Self(), "X"), b))
	b.AddStructuralRequirement(conforms(types.Member(b.Self(), "Y"), a))
	c.AddStructuralRequirement(conforms(c.Self(), a))
	d.AddStructuralRequirement(conforms(d.Self(), e))

	var got [][]string
	for _, component := range Components(m) {
		got = append(got, names(component))
	}
	assert.Equal(t, [][]string{{"A", "B"}, {"C"}, {"E"}, {"D"}}, got)
}

type library struct {
	module     *types.Module
	sequence   *types.Protocol
	element    *types.AssociatedType
	equatable  *types.Protocol
	collection *types.Protocol
}

// newLibrary declares Sequence, Equatable, and Collection refining Sequence
// with Equatable elements
func newLibrary() *library {
	m := types.NewModule()
	seq := m.NewProtocol("Sequence")
	elem := seq.AddAssociatedType("Element")
	eq := m.NewProtocol("Equatable")
	coll := m.NewProtocol("Collection")
	coll.AddStructuralRequirement(conforms(coll.Self(), seq))
	coll.AddStructuralRequirement(conforms(types.Member(coll.Self(), "Element"), eq))
	return &library{module: m, sequence: seq, element: elem, equatable: eq, collection: coll}
}

func TestComputeRequirementSignatures(t *testing.T) {
	lib := newLibrary()
	c := NewComputer(rewriting.NewContext(), config.Default(), nil)
	require.NoError(t, c.Compute(lib.module))
	assert.Len(t, c.Machines, 3)

	for _, proto := range lib.module.Protocols() {
		assert.True(t, proto.HasRequirementSignature(), proto.Name)
	}
	assert.Empty(t, lib.sequence.RequirementSignature())

	sig := lib.collection.RequirementSignature()
	require.Len(t, sig, 2)
	assert.Equal(t, "Self : Sequence", sig[0].String())
	assert.Equal(t, "Self.Element : Equatable", sig[1].String())

	member, ok := sig[1].FirstType().(*types.DependentMember)
	require.True(t, ok)
	assert.Same(t, lib.element, member.Assoc, "Element resolves to the inherited associated type")

	// computing again reuses the signatures
	again := NewComputer(rewriting.NewContext(), config.Default(), nil)
	require.NoError(t, again.Compute(lib.module))
	assert.Empty(t, again.Machines)
}

func TestSignature(t *testing.T) {
	lib := newLibrary()
	ctx := rewriting.NewContext()
	stats := &reqmachine.Stats{}
	c := NewComputer(ctx, config.Default(), &reqmachine.Diagnostics{Stats: stats})
	require.NoError(t, c.Compute(lib.module))

	param := &types.GenericParam{Depth: 0, Index: 0, Name: "T"}
	element := types.Member(param, "Element")
	sig, m, err := c.Signature([]*types.GenericParam{param}, []types.Requirement{
		conforms(element, lib.equatable),
		conforms(param, lib.collection),
		conforms(param, lib.collection),
	})
	require.NoError(t, err)
	assert.Equal(t, "<T where T : Collection, T.Element : Equatable>", sig.String())
	assert.True(t, m.IsComplete())
	assert.Equal(t, int64(5), stats.NumRequirementMachines.Load())

	ok, err := m.RequiresProtocol(element, lib.equatable)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.RequiresProtocol(param, lib.sequence)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSignatureRejectsConflicts(t *testing.T) {
	c := NewComputer(rewriting.NewContext(), config.Default(), nil)
	param := &types.GenericParam{Depth: 0, Index: 0, Name: "T"}

	_, _, err := c.Signature([]*types.GenericParam{param}, []types.Requirement{
		&types.LayoutRequirement{Subject: param, Layout: types.Trivial},
		&types.LayoutRequirement{Subject: param, Layout: types.AnyObject},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conflicting requirements")
}
