package harness

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lavignes/roolz/internal/compiler"
)

// Outcome captures the result of running one scenario.
type Outcome struct {
	Scenario string
	OK       bool
	Package  string
	Err      error
}

// Run parses a scenario's source and returns the outcome.
func Run(s Scenario) Outcome {
	out := Outcome{Scenario: s.Name}
	pkg, err := compiler.Parse(strings.NewReader(s.Source))
	if err != nil {
		out.Err = err
		return out
	}
	out.OK = true
	out.Package = pkg.Path
	return out
}

// Check asserts that an outcome matches the scenario's expectation.
func Check(t *testing.T, s Scenario, out Outcome) {
	t.Helper()

	if s.Expect.OK {
		require.NoError(t, out.Err, "scenario %s should parse", s.Name)
		if s.Expect.Package != "" {
			assert.Equal(t, s.Expect.Package, out.Package)
		}
		return
	}

	require.Error(t, out.Err, "scenario %s should fail", s.Name)
	var pe *compiler.Error
	require.True(t, errors.As(out.Err, &pe), "scenario %s should fail with a positioned error", s.Name)

	if s.Expect.Kind != "" {
		assert.Equal(t, s.Expect.Kind, string(pe.Kind))
	}
	if s.Expect.Line != 0 {
		assert.Equal(t, s.Expect.Line, pe.Line)
	}
	if s.Expect.Col != 0 {
		assert.Equal(t, s.Expect.Col, pe.Col)
	}
	if s.Expect.MessageContains != "" {
		assert.Contains(t, out.Err.Error(), s.Expect.MessageContains)
	}
}

// Render produces the deterministic text form of an outcome used for
// golden comparison.
func Render(out Outcome) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", out.Scenario)
	fmt.Fprintf(&b, "ok: %t\n", out.OK)
	if out.OK {
		fmt.Fprintf(&b, "package: %s\n", out.Package)
	} else {
		fmt.Fprintf(&b, "error: %s\n", out.Err.Error())
	}
	return []byte(b.String())
}

// RunWithGolden runs a scenario and compares the rendered outcome against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, s Scenario) {
	t.Helper()

	out := Run(s)
	Check(t, s, out)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, s.Name, Render(out))
}
