package validation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateManifestBytes_Valid(t *testing.T) {
	manifest := []byte(`
name: recursive-cte-quests
quests:
  - "quests/*.sql"
timeout_sec: 10
parallel: true
workers: 8
judge:
  kind: mock
`)

	errs := ValidateManifestBytes(manifest)
	assert.Empty(t, errs)
}

func TestValidateManifestBytes_MissingRequired(t *testing.T) {
	manifest := []byte(`
timeout_sec: 10
`)

	errs := ValidateManifestBytes(manifest)
	assert.NotEmpty(t, errs)
}

func TestValidateManifestBytes_UnknownField(t *testing.T) {
	manifest := []byte(`
name: x
quests: ["a.sql"]
retries: 3
`)

	errs := ValidateManifestBytes(manifest)
	assert.NotEmpty(t, errs)
}

func TestValidateManifestBytes_BadJudgeKind(t *testing.T) {
	manifest := []byte(`
name: x
quests: ["a.sql"]
judge:
  kind: oracle
`)

	errs := ValidateManifestBytes(manifest)
	assert.NotEmpty(t, errs)
}

func TestValidateManifestBytes_InvalidYAML(t *testing.T) {
	errs := ValidateManifestBytes([]byte("name: [unclosed"))
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "YAML parse error")
}

func TestValidateManifestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: x\nquests: [\"a.sql\"]\n"), 0644))

	errs, err := ValidateManifestFile(path)
	require.NoError(t, err)
	assert.Empty(t, errs)

	_, err = ValidateManifestFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
