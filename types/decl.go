package types

import "fmt"

type NominalKind int

const (
	Struct NominalKind = iota
	Enum
	Class
)

func (k NominalKind) String() string {
	switch k {
	case Struct:
		return "struct"
	case Enum:
		return "enum"
	case Class:
		return "class"
	default:
		panic(fmt.Sprintf("invalid nominal kind %d", int(k)))
	}
}

// NominalDecl declares a struct, enum or class.
//
// Params are the declaration's own generic parameters, always at depth 0.
// Superclass and the type witnesses of Conformances are written in terms of Params.
type NominalDecl struct {
	Name       string
	Kind       NominalKind
	Params     []*GenericParam
	Superclass *Nominal
	// Foreign marks classes using the foreign object model, which only
	// guarantees an AnyObject layout
	Foreign bool

	conformances map[ProtocolID]*ProtocolConformance
}

// ProtocolConformance records that a nominal type conforms to Protocol,
// with the type witness for each associated type by name
type ProtocolConformance struct {
	Protocol  *Protocol
	Witnesses map[string]Type
}

func (d *NominalDecl) IsClass() bool { return d.Kind == Class }

// DeclaredType returns the declaration applied to its own generic parameters
func (d *NominalDecl) DeclaredType() *Nominal {
	args := make([]Type, len(d.Params))
	for i, p := range d.Params {
		args[i] = p
	}
	return &Nominal{Decl: d, Args: args}
}

// UsesForeignObjectModel reports whether d or any of its ancestors is a foreign class
func (d *NominalDecl) UsesForeignObjectModel() bool {
	for c := d; c != nil; {
		if c.Foreign {
			return true
		}
		if c.Superclass == nil {
			return false
		}
		c = c.Superclass.Decl
	}
	return false
}

// AddConformance declares that d conforms to proto with the given type witnesses
func (d *NominalDecl) AddConformance(proto *Protocol, witnesses map[string]Type) *ProtocolConformance {
	if d.conformances == nil {
		d.conformances = make(map[ProtocolID]*ProtocolConformance)
	}
	if witnesses == nil {
		witnesses = map[string]Type{}
	}
	c := &ProtocolConformance{Protocol: proto, Witnesses: witnesses}
	d.conformances[proto.ID] = c
	return c
}

// ConformanceTo looks up a conformance declared on d or inherited from a superclass.
// The returned witnesses are expressed in terms of the declaring type's params, so
// callers use LookupConformance on a Nominal to get substituted witnesses.
func (d *NominalDecl) ConformanceTo(proto *Protocol) (*ProtocolConformance, bool) {
	if c, ok := d.conformances[proto.ID]; ok {
		return c, true
	}
	if d.Superclass != nil {
		return d.Superclass.Decl.ConformanceTo(proto)
	}
	return nil, false
}

// LookupConformance returns the type witnesses of n's conformance to proto, with
// the generic arguments of n substituted in
func LookupConformance(n *Nominal, proto *Protocol) (map[string]Type, bool) {
	for cur := n; cur != nil; {
		if c, ok := cur.Decl.conformances[proto.ID]; ok {
			out := make(map[string]Type, len(c.Witnesses))
			for name, w := range c.Witnesses {
				out[name] = Substitute(w, cur.Args)
			}
			return out, true
		}
		if cur.Decl.Superclass == nil {
			return nil, false
		}
		cur = Substitute(cur.Decl.Superclass, cur.Args).(*Nominal)
	}
	return nil, false
}

// SuperclassAs walks up the class hierarchy of n until it reaches target,
// substituting generic arguments along the way
func SuperclassAs(n *Nominal, target *NominalDecl) (*Nominal, bool) {
	for cur := n; cur != nil; {
		if cur.Decl == target {
			return cur, true
		}
		if cur.Decl.Superclass == nil {
			return nil, false
		}
		cur = Substitute(cur.Decl.Superclass, cur.Args).(*Nominal)
	}
	return nil, false
}
