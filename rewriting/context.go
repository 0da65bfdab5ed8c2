package rewriting

import (
	"fmt"
	"github.com/cottand/rqm/internal/log"
	"github.com/cottand/rqm/types"
	"github.com/cottand/rqm/util"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Context uniques symbols and caches protocol information.
// It outlives the machines built from it and may be shared between them.
type Context struct {
	mu        sync.Mutex
	symbols   map[string]Symbol
	inherited map[types.ProtocolID][]*types.Protocol
	logger    *slog.Logger
}

func NewContext() *Context {
	return &Context{
		symbols:   make(map[string]Symbol),
		inherited: make(map[types.ProtocolID][]*types.Protocol),
		logger:    log.DefaultLogger.With("section", "rewriting"),
	}
}

// intern returns the existing symbol with key, or registers the one built by mk
func (c *Context) intern(key string, mk func(base symbolBase) Symbol) Symbol {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.symbols[key]; ok {
		return s
	}
	s := mk(symbolBase{id: len(c.symbols)})
	c.symbols[key] = s
	return s
}

func (c *Context) ForGenericParam(param *types.GenericParam) Symbol {
	key := "g" + strconv.Itoa(param.Depth) + "_" + strconv.Itoa(param.Index)
	return c.intern(key, func(base symbolBase) Symbol {
		return &GenericParamSymbol{symbolBase: base, Param: param}
	})
}

func (c *Context) ForProtocol(proto *types.Protocol) Symbol {
	key := "p" + strconv.Itoa(int(proto.ID))
	return c.intern(key, func(base symbolBase) Symbol {
		return &ProtocolSymbol{symbolBase: base, Protocol: proto}
	})
}

func (c *Context) ForAssociatedType(proto *types.Protocol, name string) Symbol {
	key := "a" + strconv.Itoa(int(proto.ID)) + ":" + name
	return c.intern(key, func(base symbolBase) Symbol {
		return &AssociatedTypeSymbol{symbolBase: base, Protocol: proto, Name: name}
	})
}

func (c *Context) ForName(name string) Symbol {
	return c.intern("n"+name, func(base symbolBase) Symbol {
		return &NameSymbol{symbolBase: base, Name: name}
	})
}

func (c *Context) ForLayout(layout types.LayoutConstraint) Symbol {
	key := "l" + strconv.Itoa(int(layout.Kind))
	return c.intern(key, func(base symbolBase) Symbol {
		return &LayoutSymbol{symbolBase: base, Layout: layout}
	})
}

func (c *Context) ForSuperclass(class types.Type, subs []Term) Symbol {
	key := "s" + schemaKey(class, subs)
	return c.intern(key, func(base symbolBase) Symbol {
		return &SuperclassSymbol{symbolBase: base, Class: class, Substitutions: subs}
	})
}

func (c *Context) ForConcreteType(concrete types.Type, subs []Term) Symbol {
	key := "c" + schemaKey(concrete, subs)
	return c.intern(key, func(base symbolBase) Symbol {
		return &ConcreteTypeSymbol{symbolBase: base, Concrete: concrete, Substitutions: subs}
	})
}

func schemaKey(t types.Type, subs []Term) string {
	sb := strings.Builder{}
	sb.WriteString(types.Key(t))
	for _, sub := range subs {
		sb.WriteByte('|')
		sb.WriteString(sub.Key())
	}
	return sb.String()
}

// MutableTermForType lowers a type parameter to a term.
//
// If proto is nil the term is rooted in a generic parameter symbol. Otherwise
// the type is written in terms of proto's Self, and the term is rooted in [proto],
// or in [P:A] when its first step is the resolved associated type A.
func (c *Context) MutableTermForType(t types.Type, proto *types.Protocol) MutableTerm {
	switch t := t.(type) {
	case *types.GenericParam:
		if proto != nil {
			if t.Depth != 0 || t.Index != 0 {
				panic(fmt.Sprintf("protocol requirement of %s mentions %s rather than Self", proto.Name, t))
			}
			return NewMutableTerm(c.ForProtocol(proto))
		}
		return NewMutableTerm(c.ForGenericParam(t))
	case *types.DependentMember:
		term := c.MutableTermForType(t.Base, proto)
		if t.Assoc != nil {
			// Self.A is rooted in [P:A] itself, even when A is inherited
			if term.Len() == 1 && term.Front().Kind() == ProtocolKind {
				return NewMutableTerm(c.ForAssociatedType(proto, t.Name))
			}
			term.Add(c.ForAssociatedType(t.Assoc.Protocol, t.Name))
		} else {
			term.Add(c.ForName(t.Name))
		}
		return term
	case *types.Alias:
		return c.MutableTermForType(t.Underlying, proto)
	default:
		panic(fmt.Sprintf("%s is not a type parameter", t))
	}
}

func (c *Context) TermForType(t types.Type, proto *types.Protocol) Term {
	return c.MutableTermForType(t, proto).Freeze()
}

type protocolList []*types.Protocol

func (l protocolList) Len() int           { return len(l) }
func (l protocolList) Less(i, j int) bool { return compareProtocols(l[i], l[j]) < 0 }
func (l protocolList) Swap(i, j int)      { l[i], l[j] = l[j], l[i] }

// InheritedProtocols returns every protocol proto refines, transitively,
// excluding proto itself, sorted by name
func (c *Context) InheritedProtocols(proto *types.Protocol) []*types.Protocol {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cached, ok := c.inherited[proto.ID]; ok {
		return cached
	}
	seen := util.NewOrderedSet[*types.Protocol]()
	worklist := proto.Inherited()
	for len(worklist) > 0 {
		next := worklist[0]
		worklist = worklist[1:]
		if next == proto || seen.Contains(next) {
			continue
		}
		seen.Insert(next)
		worklist = append(worklist, next.Inherited()...)
	}
	all := protocolList(seen.Slice())
	sort.Sort(all)
	c.inherited[proto.ID] = all
	return all
}

// AssociatedTypeDecl finds the declaration named by an associated type symbol,
// looking through the protocols its protocol inherits from
func (c *Context) AssociatedTypeDecl(s *AssociatedTypeSymbol) (*types.AssociatedType, bool) {
	if assoc, ok := s.Protocol.AssociatedType(s.Name); ok {
		return assoc, true
	}
	for _, inherited := range c.InheritedProtocols(s.Protocol) {
		if assoc, ok := inherited.AssociatedType(s.Name); ok {
			return assoc, true
		}
	}
	return nil, false
}

// TypeForTerm lifts a term made of root, associated type and name symbols back to a type.
// Generic parameter roots are looked up in params so that names are preserved.
func (c *Context) TypeForTerm(term MutableTerm, params []*types.GenericParam) (types.Type, error) {
	var result types.Type
	for i, s := range term.symbols {
		switch s := s.(type) {
		case *GenericParamSymbol:
			if i != 0 {
				return nil, fmt.Errorf("generic parameter %s in the interior of %s", s, term)
			}
			result = s.Param
			for _, p := range params {
				if p.SameParam(s.Param) {
					result = p
				}
			}
		case *ProtocolSymbol:
			if i != 0 {
				return nil, fmt.Errorf("protocol %s in the interior of %s", s, term)
			}
			result = s.Protocol.Self()
		case *AssociatedTypeSymbol:
			if i == 0 {
				result = s.Protocol.Self()
			}
			if assoc, ok := c.AssociatedTypeDecl(s); ok {
				result = types.ResolvedMember(result, assoc)
			} else {
				result = types.Member(result, s.Name)
			}
		case *NameSymbol:
			if i == 0 {
				return nil, fmt.Errorf("name %s at the root of %s", s, term)
			}
			result = types.Member(result, s.Name)
		default:
			return nil, fmt.Errorf("%s symbol %s cannot be lifted to a type in %s", s.Kind(), s, term)
		}
	}
	if result == nil {
		return nil, fmt.Errorf("empty term")
	}
	return result, nil
}

// PrependToSubstitutions returns s with prefix prepended to each of its substitution
// terms. Symbols without substitutions are returned unchanged.
func (c *Context) PrependToSubstitutions(s Symbol, prefix MutableTerm) Symbol {
	if prefix.Empty() {
		return s
	}
	mapSubs := func(subs []Term) []Term {
		out := make([]Term, len(subs))
		for i, sub := range subs {
			term := prefix.Clone()
			term.Append(sub.Mutable())
			out[i] = term.Freeze()
		}
		return out
	}
	switch s := s.(type) {
	case *SuperclassSymbol:
		return c.ForSuperclass(s.Class, mapSubs(s.Substitutions))
	case *ConcreteTypeSymbol:
		return c.ForConcreteType(s.Concrete, mapSubs(s.Substitutions))
	default:
		return s
	}
}
