package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios(t *testing.T) {
	scenarios, err := LoadDir("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, s := range scenarios {
		s := s
		t.Run(s.Name, func(t *testing.T) {
			RunWithGolden(t, s)
		})
	}
}

func TestLoadScenario_Missing(t *testing.T) {
	_, err := LoadScenario("testdata/scenarios/nope.yaml")
	require.Error(t, err)
}

func TestLoadScenario_RequiresName(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "unnamed.yaml", "source: \"pkg a;\"\nexpect:\n  ok: true\n")

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")
}

func TestLoadScenario_KindOnlyForFailures(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "confused.yaml",
		"name: confused\nsource: \"pkg a;\"\nexpect:\n  ok: true\n  kind: syntax\n")

	_, err := LoadScenario(path)
	require.Error(t, err)
}

func TestLoadDir_SkipsNonYAML(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "a.yaml", "name: a\nsource: \"pkg a;\"\nexpect:\n  ok: true\n")
	writeScenario(t, dir, "notes.txt", "ignore me")

	scenarios, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, scenarios, 1)
	assert.Equal(t, "a", scenarios[0].Name)
}

func TestRender_Deterministic(t *testing.T) {
	out := Run(Scenario{Name: "x", Source: "pkg a.b;"})
	assert.Equal(t, "scenario: x\nok: true\npackage: a.b\n", string(Render(out)))
}
