package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onyxdevs/subzilla-sub000/pkg/subtitle"
)

func loadInDir(t *testing.T, cfgFile string, flags *pflag.FlagSet) (subtitle.BatchOptions, error) {
	t.Helper()
	// Run from an empty directory so a stray subzilla.yaml in the working
	// tree cannot leak into the test.
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	opts, _, err := Load(cfgFile, false, flags)
	return opts, err
}

func TestLoad_Defaults(t *testing.T) {
	opts, err := loadInDir(t, "", nil)
	require.NoError(t, err)

	assert.Equal(t, subtitle.LineEndingAuto, opts.Conversion.LineEndings)
	assert.Equal(t, subtitle.BackupOverwrite, opts.Conversion.BackupPolicy)
	assert.Equal(t, subtitle.DefaultEncoding, opts.Conversion.DefaultEncoding)
	assert.Equal(t, -1, opts.MaxDepth)
	assert.Equal(t, 0, opts.RetryCount)
	assert.Equal(t, 1000, opts.RetryDelay)
	assert.NotNil(t, opts.Logger)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "subzilla.yaml")
	cfg := `common:
  lineEndings: crlf
  bom: true
  strip:
    html: true
batch:
  retryCount: 2
  parallel: true
  excludeDirectories:
    - samples
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	opts, err := loadInDir(t, cfgPath, nil)
	require.NoError(t, err)

	assert.Equal(t, subtitle.LineEndingCRLF, opts.Conversion.LineEndings)
	assert.True(t, opts.Conversion.BOM)
	assert.True(t, opts.Conversion.Strip.HTML)
	assert.Equal(t, 2, opts.RetryCount)
	assert.True(t, opts.Parallel)
	assert.Equal(t, []string{"samples"}, opts.ExcludeDirectories)
	// Untouched keys keep their defaults.
	assert.Equal(t, -1, opts.MaxDepth)
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("SUBZILLA_BATCH_RETRYCOUNT", "7")
	t.Setenv("SUBZILLA_COMMON_LINEENDINGS", "lf")

	opts, err := loadInDir(t, "", nil)
	require.NoError(t, err)
	assert.Equal(t, 7, opts.RetryCount)
	assert.Equal(t, subtitle.LineEndingLF, opts.Conversion.LineEndings)
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("SUBZILLA_BATCH_RETRYCOUNT", "7")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("retry-count", 0, "")
	fs.Bool("strip-html", false, "")
	require.NoError(t, fs.Set("retry-count", "3"))
	require.NoError(t, fs.Set("strip-html", "true"))

	opts, err := loadInDir(t, "", fs)
	require.NoError(t, err)
	assert.Equal(t, 3, opts.RetryCount, "explicit flag must beat the environment")
	assert.True(t, opts.Conversion.Strip.HTML)
}

func TestLoad_UnchangedFlagDoesNotMaskEnv(t *testing.T) {
	t.Setenv("SUBZILLA_BATCH_RETRYCOUNT", "7")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("retry-count", 0, "")

	opts, err := loadInDir(t, "", fs)
	require.NoError(t, err)
	assert.Equal(t, 7, opts.RetryCount)
}

func TestLoad_MissingExplicitConfigFile(t *testing.T) {
	_, err := loadInDir(t, filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.Error(t, err)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad line endings", map[string]string{"SUBZILLA_COMMON_LINEENDINGS": "cr"}},
		{"bad backup policy", map[string]string{"SUBZILLA_COMMON_BACKUPPOLICY": "rotate"}},
		{"negative retry count", map[string]string{"SUBZILLA_BATCH_RETRYCOUNT": "-1"}},
		{"negative chunk size", map[string]string{"SUBZILLA_BATCH_CHUNKSIZE": "-2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := loadInDir(t, "", nil)
			assert.Error(t, err)
		})
	}
}
