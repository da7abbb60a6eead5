package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aygp-dr/gdb-game-ai/ai"
	"github.com/aygp-dr/gdb-game-ai/gdb"
)

func testViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.SetDefault("target", "/usr/local/bin/2048")
	v.SetDefault("gdb", "gdb")
	v.SetDefault("search-low", "0x400000")
	v.SetDefault("search-high", "0x700000")
	v.SetDefault("timeout", 5*time.Second)
	v.SetDefault("pause-wait", 30*time.Second)
	v.SetDefault("run-window", 2*time.Second)
	v.SetDefault("experiments-dir", "experiments")
	return v
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(testViper(t))
	require.NoError(t, err)
	assert.Equal(t, uint64(0x400000), cfg.SearchLow)
	assert.Equal(t, uint64(0x700000), cfg.SearchHigh)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Empty(t, cfg.Patterns)
}

func TestLoadConfigRejectsEmptyRange(t *testing.T) {
	v := testViper(t)
	v.Set("search-low", "0x700000")
	v.Set("search-high", "0x400000")

	_, err := loadConfig(v)
	assert.Error(t, err)
}

func TestLoadConfigRejectsBadAddress(t *testing.T) {
	v := testViper(t)
	v.Set("search-low", "nope")

	_, err := loadConfig(v)
	assert.Error(t, err)
}

func TestLoadConfigReadsPatternLibrary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patterns.toml")
	require.NoError(t, os.WriteFile(path, []byte(
		"[[pattern]]\nname = \"tail\"\nwords = [0, 0, 0, 2]\n"), 0o644))

	v := testViper(t)
	v.Set("patterns", path)

	cfg, err := loadConfig(v)
	require.NoError(t, err)
	require.Len(t, cfg.Patterns, 1)
	assert.Equal(t, "tail", cfg.Patterns[0].Name)
	assert.Equal(t, []uint32{0, 0, 0, 2}, cfg.Patterns[0].Words)
}

func TestPickPolicy(t *testing.T) {
	p, err := pickPolicy("basic")
	require.NoError(t, err)
	assert.IsType(t, ai.Basic{}, p)

	p, err = pickPolicy("down")
	require.NoError(t, err)
	assert.Equal(t, ai.Constant{Action: gdb.ActionDown}, p)

	_, err = pickPolicy("diagonal")
	assert.Error(t, err)
}

func TestRootCommandWiring(t *testing.T) {
	root := newRootCmd()

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"play", "locate", "repl", "web", "watch", "analyze", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}
