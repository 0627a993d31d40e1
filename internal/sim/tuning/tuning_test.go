package tuning

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tick_rate_hz: 30
restore_batch_limit: 8
sections:
  cut_confirmation: true
  handle_subgrids: false
`), 0o644))

	tune, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30, tune.TickRateHz)
	assert.Equal(t, 8, tune.RestoreBatchLimit)
	assert.True(t, tune.Sections.CutConfirmation)
	assert.False(t, tune.Sections.HandleSubgrids)
	assert.True(t, tune.Sections.DeleteConfirmation)
	assert.Equal(t, "Sections", tune.Sections.Subdirectory)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, os.IsNotExist(err))

	path := filepath.Join(t.TempDir(), "tuning.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tick_rate_hz: 0\n"), 0o644))
	_, err = Load(path)
	assert.ErrorContains(t, err, "tick_rate_hz")

	require.NoError(t, os.WriteFile(path, []byte("sections: [\n"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestDefaultsAreValid(t *testing.T) {
	assert.NoError(t, Defaults().Validate())
}

func TestDigest_ChangesWithSettings(t *testing.T) {
	a := Defaults()
	b := Defaults()
	assert.Equal(t, a.Digest(), b.Digest())
	assert.Len(t, a.Digest(), 64)

	b.Sections.ShowHints = false
	assert.NotEqual(t, a.Digest(), b.Digest())
}

func TestLoad_SampleConfigMatchesDefaults(t *testing.T) {
	tune, err := Load(filepath.Join("..", "..", "..", "configs", "tuning.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), tune)
}
