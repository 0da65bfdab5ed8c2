package signatures

import (
	"github.com/cottand/rqm/internal/config"
	"github.com/cottand/rqm/internal/log"
	"github.com/cottand/rqm/reqmachine"
	"github.com/cottand/rqm/rewriting"
	"github.com/cottand/rqm/types"
	"github.com/cottand/rqm/util"
	"github.com/pkg/errors"
	xset "github.com/xtgo/set"
	"log/slog"
	"sort"
	"strings"
)

// Computer builds requirement machines for every protocol component of a
// module, and for generic signatures over those protocols
type Computer struct {
	ctx    *rewriting.Context
	opts   config.Options
	diags  *reqmachine.Diagnostics
	logger *slog.Logger

	// Machines holds every machine built by Compute, one per component
	Machines []*reqmachine.Machine
}

func NewComputer(ctx *rewriting.Context, opts config.Options, diags *reqmachine.Diagnostics) *Computer {
	return &Computer{
		ctx:    ctx,
		opts:   opts,
		diags:  diags,
		logger: log.DefaultLogger.With("section", "signatures"),
	}
}

// Compute sets the requirement signature of every protocol of module that does
// not have one yet. Components are processed dependencies first, so the
// protocols a component refers to already have their signature.
func (c *Computer) Compute(module *types.Module) error {
	for _, component := range Components(module) {
		if allComputed(component) {
			continue
		}
		c.logger.Debug("building protocol component", "protocols", protocolNames(component))

		m := reqmachine.New(c.ctx, c.opts, c.diags)
		if err := m.InitWithProtocols(component); err != nil {
			return errors.Wrapf(err, "building requirement machine for protocols %s", protocolNames(component))
		}
		c.Machines = append(c.Machines, m)

		r := &resolver{ctx: c.ctx, machine: m}
		for _, proto := range component {
			reqs := make([]types.Requirement, 0, len(proto.StructuralRequirements()))
			for _, req := range proto.StructuralRequirements() {
				reqs = append(reqs, r.requirement(req.Canonical(), proto))
			}
			proto.SetRequirementSignature(uniqueSorted(reqs))
		}
	}
	return nil
}

// Signature resolves reqs against an abstract machine over params, and returns
// the resulting generic signature together with the complete machine built for it
func (c *Computer) Signature(params []*types.GenericParam, reqs []types.Requirement) (*types.GenericSignature, *reqmachine.Machine, error) {
	abstract := reqmachine.New(c.ctx, c.opts, c.diags)
	if err := abstract.InitWithAbstractRequirements(params, reqs); err != nil {
		return nil, nil, errors.Wrap(err, "building requirement machine for abstract requirements")
	}

	r := &resolver{ctx: c.ctx, machine: abstract}
	resolved := make([]types.Requirement, len(reqs))
	for i, req := range reqs {
		resolved[i] = r.requirement(req.Canonical(), nil)
	}
	sig := types.NewGenericSignature(params, uniqueSorted(resolved))

	m := reqmachine.New(c.ctx, c.opts, c.diags)
	if err := m.InitWithGenericSignature(sig); err != nil {
		return sig, nil, errors.Wrapf(err, "building requirement machine for %s", sig)
	}
	return sig, m, nil
}

func allComputed(component []*types.Protocol) bool {
	for _, proto := range component {
		if !proto.HasRequirementSignature() {
			return false
		}
	}
	return true
}

func protocolNames(protos []*types.Protocol) string {
	return "[" + strings.Join(util.Map(protos, (*types.Protocol).String), ", ") + "]"
}

type requirementList []types.Requirement

func (l requirementList) Len() int           { return len(l) }
func (l requirementList) Less(i, j int) bool { return types.CompareRequirements(l[i], l[j]) < 0 }
func (l requirementList) Swap(i, j int)      { l[i], l[j] = l[j], l[i] }

func uniqueSorted(reqs []types.Requirement) []types.Requirement {
	list := requirementList(reqs)
	sort.Stable(list)
	return list[:xset.Uniq(list)]
}
