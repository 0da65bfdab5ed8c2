package decls

import (
	"fmt"
	"github.com/cottand/rqm/types"
	"github.com/pkg/errors"
	"strings"
	"text/scanner"
)

// Scope resolves the names used in requirement and type text
type Scope struct {
	Module *types.Module
	// Params are the generic parameters in scope, found by name
	Params []*types.GenericParam
}

func (s *Scope) param(name string) (*types.GenericParam, bool) {
	for _, p := range s.Params {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// ParseRequirement parses `Subject : Constraint` or `Subject == Type`. A constraint
// names a protocol, a class or a layout (AnyObject, _NativeClass, _Trivial).
func ParseRequirement(text string, scope *Scope) (types.Requirement, error) {
	p := newParser(text, scope)
	req, err := p.requirement()
	if err != nil {
		return nil, errors.Wrapf(err, "parsing requirement %q", text)
	}
	return req, nil
}

// ParseType parses a type: `Name`, `Name<Args>`, `(A, B)`, `(A) -> B`, or a
// dotted member path rooted in a generic parameter
func ParseType(text string, scope *Scope) (types.Type, error) {
	p := newParser(text, scope)
	t, err := p.typ()
	if err == nil {
		err = p.expect(scanner.EOF)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "parsing type %q", text)
	}
	return t, nil
}

type parser struct {
	s     scanner.Scanner
	tok   rune
	scope *Scope
}

func newParser(text string, scope *Scope) *parser {
	p := &parser{scope: scope}
	p.s.Init(strings.NewReader(text))
	p.s.Mode = scanner.ScanIdents
	p.s.Error = func(*scanner.Scanner, string) {}
	p.next()
	return p
}

func (p *parser) next() { p.tok = p.s.Scan() }

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%d: %s", p.s.Position.Column, fmt.Sprintf(format, args...))
}

func (p *parser) expect(tok rune) error {
	if p.tok != tok {
		return p.errorf("expected %s, found %s", scanner.TokenString(tok), scanner.TokenString(p.tok))
	}
	p.next()
	return nil
}

func (p *parser) ident() (string, error) {
	if p.tok != scanner.Ident {
		return "", p.errorf("expected a name, found %s", scanner.TokenString(p.tok))
	}
	name := p.s.TokenText()
	p.next()
	return name, nil
}

func (p *parser) requirement() (types.Requirement, error) {
	subject, err := p.typ()
	if err != nil {
		return nil, err
	}
	if !types.IsTypeParameter(subject) {
		return nil, p.errorf("subject %s is not a type parameter", subject)
	}

	var req types.Requirement
	switch p.tok {
	case ':':
		p.next()
		req, err = p.constraint(subject)
	case '=':
		p.next()
		if err = p.expect('='); err != nil {
			return nil, err
		}
		var other types.Type
		other, err = p.typ()
		req = &types.SameTypeRequirement{Subject: subject, Other: other}
	default:
		return nil, p.errorf("expected ':' or '==', found %s", scanner.TokenString(p.tok))
	}
	if err != nil {
		return nil, err
	}
	return req, p.expect(scanner.EOF)
}

func (p *parser) constraint(subject types.Type) (types.Requirement, error) {
	if p.tok == scanner.Ident {
		name := p.s.TokenText()
		if layout, ok := types.LayoutFromName(name); ok {
			p.next()
			return &types.LayoutRequirement{Subject: subject, Layout: layout}, nil
		}
		if proto, ok := p.scope.Module.LookupProtocol(name); ok {
			p.next()
			return &types.ConformanceRequirement{Subject: subject, Protocol: proto}, nil
		}
	}
	t, err := p.typ()
	if err != nil {
		return nil, err
	}
	class, ok := t.(*types.Nominal)
	if !ok || !class.Decl.IsClass() {
		return nil, p.errorf("%s is not a protocol, class or layout", t)
	}
	return &types.SuperclassRequirement{Subject: subject, Class: class}, nil
}

func (p *parser) typ() (types.Type, error) {
	if p.tok == '(' {
		return p.parenthesized()
	}
	name, err := p.ident()
	if err != nil {
		return nil, err
	}

	if param, ok := p.scope.param(name); ok {
		var t types.Type = param
		for p.tok == '.' {
			p.next()
			member, err := p.ident()
			if err != nil {
				return nil, err
			}
			t = types.Member(t, member)
		}
		return t, nil
	}

	decl, ok := p.scope.Module.LookupNominal(name)
	if !ok {
		return nil, p.errorf("unknown type %s", name)
	}
	var args []types.Type
	if p.tok == '<' {
		p.next()
		if args, err = p.typeList('>'); err != nil {
			return nil, err
		}
	}
	if len(args) != len(decl.Params) {
		return nil, p.errorf("%s takes %d generic arguments, found %d", name, len(decl.Params), len(args))
	}
	return &types.Nominal{Decl: decl, Args: args}, nil
}

// parenthesized parses a tuple, or a function type when followed by ->
func (p *parser) parenthesized() (types.Type, error) {
	p.next()
	elems, err := p.typeList(')')
	if err != nil {
		return nil, err
	}
	if p.tok == '-' {
		p.next()
		if err := p.expect('>'); err != nil {
			return nil, err
		}
		result, err := p.typ()
		if err != nil {
			return nil, err
		}
		return &types.Function{Params: elems, Result: result}, nil
	}
	if len(elems) == 1 {
		return elems[0], nil
	}
	return &types.Tuple{Elems: elems}, nil
}

// typeList parses a comma separated list of types up to and including closing
func (p *parser) typeList(closing rune) ([]types.Type, error) {
	var ts []types.Type
	for p.tok != closing {
		if len(ts) > 0 {
			if err := p.expect(','); err != nil {
				return nil, err
			}
		}
		t, err := p.typ()
		if err != nil {
			return nil, err
		}
		ts = append(ts, t)
	}
	p.next()
	return ts, nil
}
