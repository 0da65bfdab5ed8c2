// Package reqmachine builds confluent rewrite systems from generic requirements.
//
// A Machine is built once, from a generic signature, from a strongly connected
// component of protocols, or from abstract requirements. Construction alternates
// Knuth-Bendix completion with concrete type unification until neither adds a
// rule. Once complete a Machine answers queries and is safe for concurrent use.
package reqmachine

import (
	"github.com/benbjohnson/immutable"
	"github.com/cottand/rqm/internal/config"
	"github.com/cottand/rqm/internal/log"
	"github.com/cottand/rqm/rewriting"
	"github.com/cottand/rqm/types"
	"log/slog"
	"strings"
	"sync/atomic"
)

type State int

const (
	Uninitialized State = iota
	Building
	Complete
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Building:
		return "building"
	default:
		return "complete"
	}
}

type Machine struct {
	ctx    *rewriting.Context
	system *rewriting.System
	pmap   *rewriting.PropertyMap
	opts   config.Options
	diags  *Diagnostics
	logger *slog.Logger

	// the input, for Dump: exactly one of sig, params or protos is set
	sig    *types.GenericSignature
	params []*types.GenericParam
	protos []*types.Protocol

	state State
	// canonical caches CanonicalTerm by type key once the machine is complete
	canonical atomic.Pointer[immutable.Map[string, rewriting.MutableTerm]]
}

// New returns an uninitialized machine. diags may be nil.
func New(ctx *rewriting.Context, opts config.Options, diags *Diagnostics) *Machine {
	system := rewriting.NewSystem(ctx)
	m := &Machine{
		ctx:    ctx,
		system: system,
		pmap:   rewriting.NewPropertyMap(system),
		opts:   opts,
		diags:  diags,
		logger: log.DefaultLogger.With("section", "reqmachine"),
	}
	m.canonical.Store(immutable.NewMap[string, rewriting.MutableTerm](nil))
	return m
}

func (m *Machine) State() State                        { return m.state }
func (m *Machine) IsComplete() bool                    { return m.state == Complete }
func (m *Machine) System() *rewriting.System           { return m.system }
func (m *Machine) PropertyMap() *rewriting.PropertyMap { return m.pmap }

// GenericParams are the parameters of the signature or abstract requirements the
// machine was built from. A protocol machine has none.
func (m *Machine) GenericParams() []*types.GenericParam { return m.params }

func (m *Machine) begin() error {
	if m.state != Uninitialized {
		return ErrAlreadyInitialized
	}
	m.state = Building
	m.diags.stats().NumRequirementMachines.Add(1)
	return nil
}

// InitWithGenericSignature builds the rewrite system of sig. Invalid rules and
// conflicting requirements are errors.
func (m *Machine) InitWithGenericSignature(sig *types.GenericSignature) error {
	if err := m.begin(); err != nil {
		return err
	}
	m.sig = sig
	m.params = sig.Params
	m.logger.Debug("adding generic signature", "sig", sig.String())

	builder := newRuleBuilder(m.ctx, m.logger)
	builder.AddRequirements(sig.Requirements)
	m.system.Initialize(false, builder.permanentRules, builder.requirementRules)

	return m.computeCompletion(rewriting.DisallowInvalidRequirements)
}

// InitWithProtocols builds the rewrite system for the structural requirements of
// protos, which must form a strongly connected component of the protocol
// dependency graph. Loops are recorded.
func (m *Machine) InitWithProtocols(protos []*types.Protocol) error {
	if err := m.begin(); err != nil {
		return err
	}
	m.protos = protos
	m.logger.Debug("adding protocols", "count", len(protos))

	builder := newRuleBuilder(m.ctx, m.logger)
	builder.AddProtocols(protos)
	m.system.Initialize(true, builder.permanentRules, builder.requirementRules)

	return m.computeCompletion(rewriting.AllowInvalidRequirements)
}

// InitWithAbstractRequirements builds the rewrite system for requirements on
// fresh generic parameters, tolerating invalid requirements. Loops are recorded.
func (m *Machine) InitWithAbstractRequirements(params []*types.GenericParam, reqs []types.Requirement) error {
	if err := m.begin(); err != nil {
		return err
	}
	m.params = params
	m.logger.Debug("adding abstract requirements", "params", len(params), "requirements", len(reqs))

	builder := newRuleBuilder(m.ctx, m.logger)
	builder.AddRequirements(reqs)
	m.system.Initialize(true, builder.permanentRules, builder.requirementRules)

	return m.computeCompletion(rewriting.AllowInvalidRequirements)
}

// computeCompletion alternates completion and unification until unification
// adds no rule, then marks the machine complete
func (m *Machine) computeCompletion(policy rewriting.ValidityPolicy) error {
	if m.state == Complete {
		return ErrAlreadyComplete
	}
	stats := m.diags.stats()
	for round := 1; ; round++ {
		result, steps := m.system.ComputeConfluentCompletion(m.opts.StepLimit, m.opts.DepthLimit)
		stats.NumCompletionSteps.Add(int64(steps))
		if err := m.checkCompletionResult(result, CompletionPhase); err != nil {
			return err
		}

		if err := m.system.VerifyRewriteRules(policy); err != nil {
			return m.invalidRewriteSystem(err)
		}

		result, added := m.pmap.BuildPropertyMap(m.opts.StepLimit, m.opts.DepthLimit)
		stats.NumUnifiedConcreteTerms.Add(int64(added))
		if err := m.checkCompletionResult(result, UnificationPhase); err != nil {
			return err
		}
		m.logger.Debug("completion round", "round", round, "steps", steps, "unified", added)
		if added == 0 {
			break
		}
	}
	// conflicts of the last property map
	if err := m.system.VerifyRewriteRules(policy); err != nil {
		return m.invalidRewriteSystem(err)
	}

	if m.opts.VerifyTerms {
		if err := m.verifyAll(); err != nil {
			return err
		}
	}
	m.state = Complete
	if m.opts.Dump {
		if err := m.Dump(m.diags.out()); err != nil {
			m.logger.Warn("failed to dump requirement machine", "err", err)
		}
	}
	return nil
}

func (m *Machine) checkCompletionResult(result rewriting.CompletionResult, phase Phase) error {
	switch result {
	case rewriting.Success:
		return nil
	case rewriting.MaxIterations:
		return newError(&ResourceExhaustedError{Limit: StepLimit, Phase: phase, Value: m.opts.StepLimit, dump: m.String()})
	case rewriting.MaxDepth:
		return newError(&ResourceExhaustedError{Limit: DepthLimit, Phase: phase, Value: m.opts.DepthLimit, dump: m.String()})
	default:
		panic("unknown completion result " + result.String())
	}
}

func (m *Machine) invalidRewriteSystem(err error) error {
	return newError(&InvariantError{
		ErrCode: InvalidRewriteRule,
		Message: "invalid rewrite system",
		Cause:   err,
		dump:    m.String(),
	})
}

func (m *Machine) String() string {
	sb := strings.Builder{}
	_ = m.Dump(&sb)
	return sb.String()
}
