package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newViper(t), "")
	require.NoError(t, err)

	assert.Equal(t, ":8100", cfg.Addr)
	assert.Equal(t, "blinky.db", cfg.DB.Path)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "llama3.1:8b", cfg.LLM.Model)
	assert.Equal(t, 0.4, cfg.LLM.Temperature)
	assert.Equal(t, 0.5, cfg.LLM.TopP)
	assert.Equal(t, 128, cfg.LLM.NumPredict)
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 8, cfg.Context.Window)
	assert.False(t, cfg.IsDev())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BLINKY_LLM_MODEL", "mistral")
	t.Setenv("BLINKY_CONTEXT_WINDOW", "4")
	t.Setenv("BLINKY_LLM_TIMEOUT", "5s")
	t.Setenv("BLINKY_MODE", "dev")

	cfg, err := Load(newViper(t), "")
	require.NoError(t, err)
	assert.Equal(t, "mistral", cfg.LLM.Model)
	assert.Equal(t, 4, cfg.Context.Window)
	assert.Equal(t, 5*time.Second, cfg.LLM.Timeout)
	assert.True(t, cfg.IsDev())
}

func TestLoadFileAndFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blinky.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  provider: openai\n  top_p: 0.9\naddr: \":9000\"\n"), 0o600))

	v := newViper(t)
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, BindFlags(v, fs))
	require.NoError(t, fs.Parse([]string{"--addr", ":7000"}))

	cfg, err := Load(v, path)
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 0.9, cfg.LLM.TopP)
	assert.Equal(t, ":7000", cfg.Addr, "explicit flag beats file")
}

func TestValidate(t *testing.T) {
	v := newViper(t)
	v.Set("context.window", 0)
	v.Set("llm.temperature", 1.5)
	v.Set("llm.num_predict", -1)

	_, err := Load(v, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context.window")
	assert.Contains(t, err.Error(), "llm.temperature")
	assert.Contains(t, err.Error(), "llm.num_predict")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(newViper(t), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
