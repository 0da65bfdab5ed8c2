// Package decls loads declaration files: YAML documents declaring nominal types,
// protocols and optionally a generic signature or protocol component to build.
package decls

import (
	"github.com/Masterminds/semver/v3"
	"github.com/cottand/rqm/internal/config"
	"github.com/cottand/rqm/internal/log"
	"github.com/cottand/rqm/types"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"log/slog"
	"os"
	"sort"
)

// SupportedVersions is the range of declaration file versions this package reads
const SupportedVersions = "^1.0"

type File struct {
	Version   string          `yaml:"version"`
	Types     []TypeDecl      `yaml:"types"`
	Protocols []ProtocolDecl  `yaml:"protocols"`
	Signature *SignatureDecl  `yaml:"signature,omitempty"`
	Component []string        `yaml:"component,omitempty"`
	Limits    *config.Options `yaml:"limits,omitempty"`
}

type TypeDecl struct {
	Name string `yaml:"name"`
	// Kind is one of struct, enum or class
	Kind   string   `yaml:"kind"`
	Params []string `yaml:"params,omitempty"`
	// Superclass is a class type, only valid for classes
	Superclass string `yaml:"superclass,omitempty"`
	// Foreign classes use the foreign object model, and imply AnyObject rather than _NativeClass
	Foreign bool `yaml:"foreign,omitempty"`
	// Conformances maps protocol names to the type witness of each associated type
	Conformances map[string]map[string]string `yaml:"conformances,omitempty"`
}

type ProtocolDecl struct {
	Name            string   `yaml:"name"`
	AssociatedTypes []string `yaml:"associatedtypes,omitempty"`
	// Requirements are written in terms of Self
	Requirements []string `yaml:"requirements,omitempty"`
	// Signature is a requirement signature computed ahead of time
	Signature []string `yaml:"signature,omitempty"`
}

type SignatureDecl struct {
	Params       []string `yaml:"params"`
	Requirements []string `yaml:"requirements,omitempty"`
}

// Declarations is a loaded declaration file
type Declarations struct {
	Module *types.Module
	// Params and Requirements are the declared signature, if any. Member types
	// in the requirements are unresolved.
	Params       []*types.GenericParam
	Requirements []types.Requirement
	HasSignature bool
	// Component is the declared protocol component, if any
	Component []*types.Protocol
	Options   config.Options
}

var logger = log.DefaultLogger.With("section", "decls")

// Load reads and parses the declaration file at path
func Load(path string) (*Declarations, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading declarations %s", path)
	}
	d, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", path)
	}
	return d, nil
}

// Parse builds the module and inputs described by a YAML declaration document
func Parse(data []byte) (*Declarations, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "parsing YAML")
	}
	if err := checkVersion(f.Version); err != nil {
		return nil, err
	}

	d := &Declarations{Module: types.NewModule(), Options: config.Default()}
	if f.Limits != nil {
		d.Options = d.Options.Override(*f.Limits)
	}
	if err := d.Options.Validate(); err != nil {
		return nil, errors.Wrap(err, "limits")
	}

	if err := d.declare(&f); err != nil {
		return nil, err
	}
	if err := d.defineTypes(f.Types); err != nil {
		return nil, err
	}
	if err := d.defineProtocols(f.Protocols); err != nil {
		return nil, err
	}
	if f.Signature != nil {
		if err := d.defineSignature(f.Signature); err != nil {
			return nil, err
		}
	}
	for _, name := range f.Component {
		proto, ok := d.Module.LookupProtocol(name)
		if !ok {
			return nil, errors.Errorf("component: unknown protocol %s", name)
		}
		d.Component = append(d.Component, proto)
	}

	logger.Debug("loaded declarations",
		"types", len(d.Module.Nominals()), "protocols", len(d.Module.Protocols()), "signature", d.HasSignature)
	return d, nil
}

func checkVersion(version string) error {
	if version == "" {
		return errors.New("missing version")
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return errors.Wrapf(err, "invalid version %q", version)
	}
	constraint, err := semver.NewConstraint(SupportedVersions)
	if err != nil {
		return err
	}
	if !constraint.Check(v) {
		return errors.Errorf("unsupported version %s, expected %s", v, SupportedVersions)
	}
	return nil
}

// declare registers every type and protocol name, so definitions may refer to
// declarations that come later in the file
func (d *Declarations) declare(f *File) error {
	for _, t := range f.Types {
		kind, ok := nominalKinds[t.Kind]
		if !ok {
			return errors.Errorf("type %s: unknown kind %q", t.Name, t.Kind)
		}
		if _, exists := d.Module.LookupNominal(t.Name); exists {
			return errors.Errorf("type %s declared twice", t.Name)
		}
		d.Module.NewNominal(t.Name, kind, t.Params...)
	}
	for _, p := range f.Protocols {
		if _, exists := d.Module.LookupProtocol(p.Name); exists {
			return errors.Errorf("protocol %s declared twice", p.Name)
		}
		proto := d.Module.NewProtocol(p.Name)
		for _, assoc := range p.AssociatedTypes {
			proto.AddAssociatedType(assoc)
		}
	}
	return nil
}

var nominalKinds = map[string]types.NominalKind{
	"struct": types.Struct,
	"enum":   types.Enum,
	"class":  types.Class,
}

func (d *Declarations) defineTypes(decls []TypeDecl) error {
	for _, t := range decls {
		decl, _ := d.Module.LookupNominal(t.Name)
		decl.Foreign = t.Foreign
		scope := &Scope{Module: d.Module, Params: decl.Params}

		if t.Superclass != "" {
			if !decl.IsClass() {
				return errors.Errorf("type %s: only classes have a superclass", t.Name)
			}
			super, err := ParseType(t.Superclass, scope)
			if err != nil {
				return errors.Wrapf(err, "type %s", t.Name)
			}
			class, ok := super.(*types.Nominal)
			if !ok || !class.Decl.IsClass() {
				return errors.Errorf("type %s: superclass %s is not a class", t.Name, super)
			}
			decl.Superclass = class
		}

		for _, protoName := range sortedKeys(t.Conformances) {
			proto, ok := d.Module.LookupProtocol(protoName)
			if !ok {
				return errors.Errorf("type %s: unknown protocol %s", t.Name, protoName)
			}
			witnesses := map[string]types.Type{}
			for assoc, text := range t.Conformances[protoName] {
				w, err := ParseType(text, scope)
				if err != nil {
					return errors.Wrapf(err, "type %s: witness for %s.%s", t.Name, protoName, assoc)
				}
				witnesses[assoc] = w
			}
			decl.AddConformance(proto, witnesses)
		}
	}
	return nil
}

func (d *Declarations) defineProtocols(decls []ProtocolDecl) error {
	for _, p := range decls {
		proto, _ := d.Module.LookupProtocol(p.Name)
		scope := &Scope{Module: d.Module, Params: []*types.GenericParam{proto.Self()}}

		for _, text := range p.Requirements {
			req, err := ParseRequirement(text, scope)
			if err != nil {
				return errors.Wrapf(err, "protocol %s", p.Name)
			}
			proto.AddStructuralRequirement(req)
		}
		if p.Signature == nil {
			continue
		}
		sig := make([]types.Requirement, 0, len(p.Signature))
		for _, text := range p.Signature {
			req, err := ParseRequirement(text, scope)
			if err != nil {
				return errors.Wrapf(err, "protocol %s signature", p.Name)
			}
			sig = append(sig, req)
		}
		proto.SetRequirementSignature(sig)
	}
	return nil
}

func (d *Declarations) defineSignature(s *SignatureDecl) error {
	d.HasSignature = true
	for i, name := range s.Params {
		d.Params = append(d.Params, &types.GenericParam{Depth: 0, Index: i, Name: name})
	}
	scope := &Scope{Module: d.Module, Params: d.Params}
	for _, text := range s.Requirements {
		req, err := ParseRequirement(text, scope)
		if err != nil {
			return errors.Wrap(err, "signature")
		}
		d.Requirements = append(d.Requirements, req)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LogValue lets Declarations be logged as a compact summary
func (d *Declarations) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("types", len(d.Module.Nominals())),
		slog.Int("protocols", len(d.Module.Protocols())),
		slog.Int("requirements", len(d.Requirements)),
	)
}
