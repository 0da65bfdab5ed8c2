package types

import (
	"github.com/cottand/rqm/util"
	"slices"
)

// ProtocolID is a dense index into the Module that declared the protocol
type ProtocolID int

type AssociatedType struct {
	Name     string
	Protocol *Protocol
}

func (a *AssociatedType) String() string {
	return a.Protocol.Name + "." + a.Name
}

// Protocol is a protocol declaration. Protocols are only created through Module.NewProtocol
type Protocol struct {
	ID   ProtocolID
	Name string

	assocTypes []*AssociatedType
	// structural are requirements as written, with unresolved member types
	structural []Requirement
	// signature is nil until computed
	signature []Requirement
}

// Self is the protocol's Self parameter, τ_0_0
func (p *Protocol) Self() *GenericParam {
	return &GenericParam{Depth: 0, Index: 0, Name: "Self"}
}

func (p *Protocol) String() string { return p.Name }

func (p *Protocol) AddAssociatedType(name string) *AssociatedType {
	if a, ok := p.AssociatedType(name); ok {
		return a
	}
	a := &AssociatedType{Name: name, Protocol: p}
	p.assocTypes = append(p.assocTypes, a)
	return a
}

// AssociatedTypes returns the associated types declared directly in p
func (p *Protocol) AssociatedTypes() []*AssociatedType { return p.assocTypes }

func (p *Protocol) AssociatedType(name string) (*AssociatedType, bool) {
	for _, a := range p.assocTypes {
		if a.Name == name {
			return a, true
		}
	}
	return nil, false
}

func (p *Protocol) AddStructuralRequirement(req Requirement) {
	p.structural = append(p.structural, req)
}

// StructuralRequirements are the requirements as written, before canonicalization
func (p *Protocol) StructuralRequirements() []Requirement { return p.structural }

// SetRequirementSignature records the computed requirement signature
func (p *Protocol) SetRequirementSignature(reqs []Requirement) {
	p.signature = slices.Clone(reqs)
	if p.signature == nil {
		p.signature = []Requirement{}
	}
}

func (p *Protocol) HasRequirementSignature() bool { return p.signature != nil }

// RequirementSignature returns the computed requirement signature, or the
// canonicalized structural requirements when none was computed yet
func (p *Protocol) RequirementSignature() []Requirement {
	if p.signature != nil {
		return p.signature
	}
	out := make([]Requirement, len(p.structural))
	for i, req := range p.structural {
		out[i] = req.Canonical()
	}
	return out
}

func (p *Protocol) requirementSource() []Requirement {
	if len(p.structural) > 0 || p.signature == nil {
		return p.structural
	}
	return p.signature
}

// Dependencies returns every protocol p refers to in a conformance requirement,
// in order of first appearance
func (p *Protocol) Dependencies() []*Protocol {
	deps := util.NewOrderedSet[*Protocol]()
	for _, req := range p.requirementSource() {
		if conf, ok := req.(*ConformanceRequirement); ok {
			deps.Insert(conf.Protocol)
		}
	}
	return deps.Slice()
}

// Inherited returns the protocols p directly refines, that is, those in a
// conformance requirement whose subject is Self
func (p *Protocol) Inherited() []*Protocol {
	inherited := util.NewOrderedSet[*Protocol]()
	for _, req := range p.requirementSource() {
		conf, ok := req.(*ConformanceRequirement)
		if !ok {
			continue
		}
		if param, ok := Canonical(conf.Subject).(*GenericParam); ok && param.Depth == 0 && param.Index == 0 {
			inherited.Insert(conf.Protocol)
		}
	}
	return inherited.Slice()
}

// Module is the arena owning every protocol and nominal declaration
type Module struct {
	protocols      []*Protocol
	protocolByName map[string]*Protocol
	nominals       []*NominalDecl
	nominalByName  map[string]*NominalDecl
}

func NewModule() *Module {
	return &Module{
		protocolByName: map[string]*Protocol{},
		nominalByName:  map[string]*NominalDecl{},
	}
}

// NewProtocol declares a protocol, or returns the existing one with that name
func (m *Module) NewProtocol(name string) *Protocol {
	if p, ok := m.protocolByName[name]; ok {
		return p
	}
	p := &Protocol{ID: ProtocolID(len(m.protocols)), Name: name}
	m.protocols = append(m.protocols, p)
	m.protocolByName[name] = p
	return p
}

func (m *Module) Protocol(id ProtocolID) *Protocol { return m.protocols[id] }
func (m *Module) Protocols() []*Protocol           { return m.protocols }

func (m *Module) LookupProtocol(name string) (*Protocol, bool) {
	p, ok := m.protocolByName[name]
	return p, ok
}

// NewNominal declares a nominal type with generic parameters named params
func (m *Module) NewNominal(name string, kind NominalKind, params ...string) *NominalDecl {
	if d, ok := m.nominalByName[name]; ok {
		return d
	}
	d := &NominalDecl{Name: name, Kind: kind}
	for i, param := range params {
		d.Params = append(d.Params, &GenericParam{Depth: 0, Index: i, Name: param})
	}
	m.nominals = append(m.nominals, d)
	m.nominalByName[name] = d
	return d
}

func (m *Module) Nominals() []*NominalDecl { return m.nominals }

func (m *Module) LookupNominal(name string) (*NominalDecl, bool) {
	d, ok := m.nominalByName[name]
	return d, ok
}
