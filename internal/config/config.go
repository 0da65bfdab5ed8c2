// Package config holds the limits and debug switches of requirement machines.
package config

import (
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	DefaultStepLimit  = 4000
	DefaultDepthLimit = 10
)

// Options configures requirement machine construction. The zero value is not
// usable; start from Default.
type Options struct {
	// StepLimit bounds the rules added by one completion or unification phase
	StepLimit int `yaml:"steps,omitempty"`
	// DepthLimit bounds the length of the lhs of any added rule
	DepthLimit int `yaml:"depth,omitempty"`
	// Dump writes every completed machine to the diagnostics output
	Dump bool `yaml:"dump,omitempty"`
	// VerifyTerms checks every rule of a completed machine round-trips through simplification
	VerifyTerms bool `yaml:"verify,omitempty"`
}

func Default() Options {
	return Options{StepLimit: DefaultStepLimit, DepthLimit: DefaultDepthLimit}
}

func (o Options) Validate() error {
	if o.StepLimit <= 0 {
		return errors.Errorf("step limit must be positive, got %d", o.StepLimit)
	}
	if o.DepthLimit <= 0 {
		return errors.Errorf("depth limit must be positive, got %d", o.DepthLimit)
	}
	return nil
}

// Override returns o with every field set in other replacing its own
func (o Options) Override(other Options) Options {
	if other.StepLimit != 0 {
		o.StepLimit = other.StepLimit
	}
	if other.DepthLimit != 0 {
		o.DepthLimit = other.DepthLimit
	}
	o.Dump = o.Dump || other.Dump
	o.VerifyTerms = o.VerifyTerms || other.VerifyTerms
	return o
}

// Parse reads options from a YAML document, filling unset limits with the defaults
func Parse(data []byte) (Options, error) {
	var parsed Options
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return Options{}, errors.Wrap(err, "parsing options")
	}
	opts := Default().Override(parsed)
	return opts, opts.Validate()
}
