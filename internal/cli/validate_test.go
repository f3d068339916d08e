package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chronicle/internal/compiler"
)

func TestValidateValidFiles(t *testing.T) {
	dir := t.TempDir()
	ds := writeFile(t, dir, "story.yaml", storyYAML)
	rs := writeFile(t, dir, "rules.cue", `ruleset: rules: monotonic_decrease: severity: "critical"`)

	out, err := execute(t, "validate", ds, rs)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ 2 file(s) valid")
}

func TestValidateValidFilesJSON(t *testing.T) {
	ds := writeFile(t, t.TempDir(), "story.json", `{"entities": [{"id": "a", "attributes": [{"name": "n", "type": "number", "value": 1}]}]}`)

	out, err := execute(t, "--format", "json", "validate", ds)
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, true, resp.Data.(map[string]any)["valid"])
}

func TestValidateNonExistentFile(t *testing.T) {
	out, err := execute(t, "validate", "/nonexistent/rules.cue")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "E005") // ErrCodeNotFound
	assert.Contains(t, out, "not found")
}

func TestValidateUnsupportedExtension(t *testing.T) {
	path := writeFile(t, t.TempDir(), "notes.txt", "hello")

	out, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "unsupported file type")
}

func TestValidateRuleSetSemanticErrors(t *testing.T) {
	rs := writeFile(t, t.TempDir(), "bad.cue", `
ruleset: {
	dependencies: level: { requires: "level", allowed: ["x"] }
	rules: no_such_rule: enabled: false
}
`)

	out, err := execute(t, "--format", "json", "validate", rs)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, compiler.ErrSelfDependency, resp.Error.Code)

	errs := resp.Data.(map[string]any)["errors"].([]any)
	var codes []string
	for _, e := range errs {
		codes = append(codes, e.(map[string]any)["code"].(string))
	}
	assert.Equal(t, []string{compiler.ErrSelfDependency, compiler.ErrUnknownRuleOverride}, codes)
}

func TestValidateRuleSetCompileError(t *testing.T) {
	rs := writeFile(t, t.TempDir(), "typo.cue", "ruleset: {\n\tterminal_value: [\"dead\"]\n}\n")

	out, err := execute(t, "--format", "json", "validate", rs)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, out)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeCompile, resp.Error.Code)

	errs := resp.Data.(map[string]any)["errors"].([]any)
	require.Len(t, errs, 1)
	e := errs[0].(map[string]any)
	assert.Contains(t, e["field"].(string)+" "+e["message"].(string), "terminal_value")
}

func TestValidateDatasetReportsEveryError(t *testing.T) {
	ds := writeFile(t, t.TempDir(), "bad.yaml", `
entities:
  - id: a
    attributes:
      - name: hp
        type: number
        value: 10
events:
  - id: x1
    timestamp: 1
    entity_id: a
  - id: x2
    timestamp: 2
    entity_id: a
    attribute_id: hp
    new_value: lots
`)

	out, err := execute(t, "validate", ds)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "events[0]")
	assert.Contains(t, out, "events[1]")
}
