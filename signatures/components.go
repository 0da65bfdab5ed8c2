// Package signatures computes protocol requirement signatures and generic
// signatures by building requirement machines in dependency order.
package signatures

import (
	"cmp"
	"github.com/cottand/rqm/types"
	"github.com/cottand/rqm/util"
	"slices"
)

// Components returns the strongly connected components of the protocol
// dependency graph of module. Every component comes after the components it
// depends on, and protocols keep declaration order within a component.
func Components(module *types.Module) [][]*types.Protocol {
	t := tarjan{
		index:   make(map[types.ProtocolID]int),
		lowlink: make(map[types.ProtocolID]int),
		onStack: make(map[types.ProtocolID]bool),
	}
	for _, proto := range module.Protocols() {
		if _, visited := t.index[proto.ID]; !visited {
			t.visit(proto)
		}
	}
	return t.components
}

type tarjan struct {
	next       int
	index      map[types.ProtocolID]int
	lowlink    map[types.ProtocolID]int
	onStack    map[types.ProtocolID]bool
	stack      util.Stack[*types.Protocol]
	components [][]*types.Protocol
}

func (t *tarjan) visit(proto *types.Protocol) {
	t.index[proto.ID] = t.next
	t.lowlink[proto.ID] = t.next
	t.next++
	t.stack.Push(proto)
	t.onStack[proto.ID] = true

	for _, dep := range proto.Dependencies() {
		if _, visited := t.index[dep.ID]; !visited {
			t.visit(dep)
			t.lowlink[proto.ID] = min(t.lowlink[proto.ID], t.lowlink[dep.ID])
		} else if t.onStack[dep.ID] {
			t.lowlink[proto.ID] = min(t.lowlink[proto.ID], t.index[dep.ID])
		}
	}

	if t.lowlink[proto.ID] != t.index[proto.ID] {
		return
	}
	var component []*types.Protocol
	for {
		top, _ := t.stack.Pop()
		t.onStack[top.ID] = false
		component = append(component, top)
		if top == proto {
			break
		}
	}
	slices.SortFunc(component, func(a, b *types.Protocol) int { return cmp.Compare(a.ID, b.ID) })
	t.components = append(t.components, component)
}
