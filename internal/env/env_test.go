package env

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Host    string        `env:"ENVTEST_HOST" default:"localhost"`
	Port    int           `env:"ENVTEST_PORT" default:"8080"`
	Debug   bool          `env:"ENVTEST_DEBUG"`
	Timeout time.Duration `env:"ENVTEST_TIMEOUT" default:"30s"`
}

func TestLoad_Defaults(t *testing.T) {
	cfg := &testConfig{}
	require.NoError(t, Load(cfg))

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.False(t, cfg.Debug)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
}

func TestLoad_EnvOverridesDefault(t *testing.T) {
	t.Setenv("ENVTEST_HOST", "example.com")
	t.Setenv("ENVTEST_PORT", "9090")
	t.Setenv("ENVTEST_DEBUG", "true")
	t.Setenv("ENVTEST_TIMEOUT", "1m30s")

	cfg := &testConfig{}
	require.NoError(t, Load(cfg))

	assert.Equal(t, "example.com", cfg.Host)
	assert.Equal(t, 9090, cfg.Port)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 90*time.Second, cfg.Timeout)
}

func TestLoad_EmptyValueFallsBackToDefault(t *testing.T) {
	t.Setenv("ENVTEST_HOST", "")

	cfg := &testConfig{}
	require.NoError(t, Load(cfg))
	assert.Equal(t, "localhost", cfg.Host)
}

func TestLoad_InvalidValue(t *testing.T) {
	t.Setenv("ENVTEST_PORT", "not-a-number")

	cfg := &testConfig{}
	err := Load(cfg)
	require.Error(t, err)

	var invalid ErrInvalidValue
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "ENVTEST_PORT", invalid.EnvVar)
}

func TestLoad_NotAStructPointer(t *testing.T) {
	err := Load("nope")
	var notStruct ErrNotStructPointer
	require.True(t, errors.As(err, &notStruct))
}

type validatedSection struct {
	Level int `env:"ENVTEST_LEVEL" default:"1"`
}

func (s *validatedSection) Validate() error {
	if s.Level < 1 {
		return errors.New("level must be positive")
	}
	return nil
}

type nestedConfig struct {
	Section validatedSection
}

func TestLoad_NestedValidation(t *testing.T) {
	t.Setenv("ENVTEST_LEVEL", "0")

	cfg := &nestedConfig{}
	err := Load(cfg)
	require.EqualError(t, err, "level must be positive")
}
