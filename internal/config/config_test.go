package config

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want Options
	}{
		{"empty uses defaults", "", Default()},
		{"step limit only", "steps: 50", Options{StepLimit: 50, DepthLimit: DefaultDepthLimit}},
		{"all fields", "steps: 7\ndepth: 3\ndump: true\nverify: true", Options{7, 3, true, true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.yaml))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRejectsNegativeLimits(t *testing.T) {
	_, err := Parse([]byte("depth: -1"))
	assert.ErrorContains(t, err, "depth limit")

	_, err = Parse([]byte("steps: [1"))
	assert.ErrorContains(t, err, "parsing options")
}

func TestOverride(t *testing.T) {
	got := Default().Override(Options{DepthLimit: 20, VerifyTerms: true})
	assert.Equal(t, Options{StepLimit: DefaultStepLimit, DepthLimit: 20, VerifyTerms: true}, got)
}
