package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"histokit/internal/config"
	"histokit/internal/param"
	"histokit/internal/registration"
	"histokit/internal/stain"
)

const sample = `
log:
  level: debug
seed: 42
registration:
  smooth_sigma: [3, 2, 1, 0]
  num_iter: 50
  shrink_factor: [8, 4, 2, 1]
  sampling_rate: 0.2
deconvolution:
  od_threshold: 0.15
`

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFile(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, "histokit.yaml", sample))
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, int64(42), cfg.Seed)

	names := make([]string, len(cfg.Registration))
	for i, a := range cfg.Registration {
		names[i] = a.Name
	}
	// file order does not matter; assignments come sorted by name
	require.Equal(t, []string{"num_iter", "sampling_rate", "shrink_factor", "smooth_sigma"}, names)

	r := registration.New(nil, nil)
	require.NoError(t, r.Configure(cfg.Registration))
	require.Equal(t, 50, r.Config().Int(registration.ParamIterations))
	require.Equal(t, 0.2, r.Config().Float(registration.ParamSamplingRate))
	require.Equal(t, []int{8, 4, 2, 1}, r.Config().Ints(registration.ParamShrinkFactor))

	d := stain.New()
	require.NoError(t, d.Config().Update(cfg.Deconvolution))
	require.Equal(t, 0.15, d.Config().Float(stain.ParamODThreshold))
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("HISTOKIT_REGISTRATION_NUM_ITER", "250")
	t.Setenv("HISTOKIT_REGISTRATION_SMOOTH_SIGMA", "2,1,0,0")
	t.Setenv("HISTOKIT_DECONVOLUTION_SAMPLING", "5")
	t.Setenv("HISTOKIT_LOG_LEVEL", "warn")

	cfg, err := config.Load(writeConfig(t, "histokit.yaml", sample))
	require.NoError(t, err)
	require.Equal(t, "warn", cfg.LogLevel)

	r := registration.New(nil, nil)
	require.NoError(t, r.Configure(cfg.Registration))
	require.Equal(t, 250, r.Config().Int(registration.ParamIterations))
	require.Equal(t, []int{2, 1, 0, 0}, r.Config().Ints(registration.ParamSmoothSigma))

	d := stain.New()
	require.NoError(t, d.Config().Update(cfg.Deconvolution))
	require.Equal(t, 5, d.Config().Int(stain.ParamSampling))
}

func TestNoFile(t *testing.T) {
	t.Setenv("HISTOKIT_CONFIG", "")
	cfg, err := config.Load("")
	require.NoError(t, err)
	require.Equal(t, "info", cfg.LogLevel)
	require.Empty(t, cfg.Registration)
	require.Empty(t, cfg.Deconvolution)
}

func TestUnknownKeyReachesConfig(t *testing.T) {
	path := writeConfig(t, "histokit.toml", "[registration]\nnum_iters = 3\n")
	cfg, err := config.Load(path)
	require.NoError(t, err)

	r := registration.New(nil, nil)
	require.ErrorIs(t, r.Configure(cfg.Registration), param.ErrUnknownParameter)
}

func TestMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
