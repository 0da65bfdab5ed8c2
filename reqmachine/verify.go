package reqmachine

import (
	"fmt"
	"github.com/cottand/rqm/rewriting"
	"github.com/cottand/rqm/types"
	"slices"
)

// Verify checks that a canonical term of the machine is rooted in one of its
// generic parameters or in a protocol, and that erasing its associated types back
// to names and simplifying again yields the same term.
func (m *Machine) Verify(term rewriting.MutableTerm) error {
	if m.state != Complete {
		return ErrNotComplete
	}
	return m.verify(term)
}

func (m *Machine) verify(term rewriting.MutableTerm) error {
	if term.Empty() {
		return m.invariant(BadInitialSymbol, "empty term")
	}
	if gp, ok := term.Front().(*rewriting.GenericParamSymbol); ok {
		if !m.hasParam(gp.Param) {
			return m.invariant(BadGenericParam, fmt.Sprintf("bad generic parameter in %s", term))
		}
	}

	var erased rewriting.MutableTerm
	for _, symbol := range term.Symbols() {
		if erased.Empty() {
			switch symbol := symbol.(type) {
			case *rewriting.ProtocolSymbol, *rewriting.GenericParamSymbol:
				erased.Add(symbol)
				continue
			case *rewriting.AssociatedTypeSymbol:
				erased.Add(m.ctx.ForProtocol(symbol.Protocol))
			default:
				return m.invariant(BadInitialSymbol, fmt.Sprintf("bad initial symbol in %s", term))
			}
		}

		switch symbol := symbol.(type) {
		case *rewriting.NameSymbol:
			erased.Add(symbol)
		case *rewriting.AssociatedTypeSymbol:
			erased.Add(m.ctx.ForName(symbol.Name))
		default:
			return m.invariant(BadInteriorSymbol, fmt.Sprintf("bad interior symbol %s in %s", symbol, term))
		}
	}

	simplified := erased.Clone()
	m.system.Simplify(&simplified)
	if !simplified.Equal(term) {
		return m.invariant(TermVerification, fmt.Sprintf(
			"term verification failed: initial term %s, erased term %s, simplified term %s",
			term, erased, simplified))
	}
	return nil
}

// VerifyAll verifies the right hand side of every active rule that denotes a type
// parameter
func (m *Machine) VerifyAll() error {
	if m.state != Complete {
		return ErrNotComplete
	}
	return m.verifyAll()
}

func (m *Machine) verifyAll() error {
	for _, rule := range m.system.ActiveRules() {
		if !isTypeTerm(rule.RHS) {
			continue
		}
		if err := m.verify(rule.RHS); err != nil {
			return err
		}
	}
	return nil
}

// isTypeTerm reports whether every symbol of term is one a type parameter lowers to
func isTypeTerm(term rewriting.MutableTerm) bool {
	for _, symbol := range term.Symbols() {
		switch symbol.(type) {
		case *rewriting.GenericParamSymbol, *rewriting.ProtocolSymbol,
			*rewriting.AssociatedTypeSymbol, *rewriting.NameSymbol:
		default:
			return false
		}
	}
	return true
}

func (m *Machine) invariant(code ErrCode, msg string) error {
	return newError(&InvariantError{ErrCode: code, Message: msg, dump: m.String()})
}

// hasParam reports whether param is one of the machine's generic parameters
func (m *Machine) hasParam(param *types.GenericParam) bool {
	return slices.ContainsFunc(m.params, param.SameParam)
}
