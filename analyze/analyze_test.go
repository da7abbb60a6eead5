package analyze

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const engineC = `#include "engine.h"

int g_score_board[4][4];
static long total_score;

struct gamestate {
	uint32_t grid[4][4];
	long score;
	int blocks_in_play;
};

int gamestate_tick(struct gamestate *g) {
	return 0;
}

void move_left(struct gamestate *g) {
	/* slide toward column 0 */
}
`

const engineH = `#define BOARD_SIZE 4
#define SIZE_MAX_CELL 65536

int wgetch(void *win);
`

func writeTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "engine.c"), []byte(engineC), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "engine.h"), []byte(engineH), 0o644))
	return dir
}

func TestRunExtractsLayout(t *testing.T) {
	r, err := New(writeTree(t)).Run()
	require.NoError(t, err)

	st, ok := r.Structures["gamestate"]
	require.True(t, ok)
	assert.Equal(t, "engine.c", st.File)

	var grid *Field
	for i := range st.Fields {
		if st.Fields[i].Name == "grid" {
			grid = &st.Fields[i]
		}
	}
	require.NotNil(t, grid)
	assert.Equal(t, "uint32_t", grid.Type)
	assert.Equal(t, []string{"4", "4"}, grid.Dims)

	assert.Contains(t, r.Globals["engine.c"], "int g_score_board[4][4];")

	fn, ok := r.Functions["move_left"]
	require.True(t, ok)
	assert.Equal(t, "void", fn.ReturnType)

	names := make(map[string]int)
	for _, d := range r.Defines {
		names[d.Name] = d.Value
	}
	assert.Equal(t, 4, names["BOARD_SIZE"])
	assert.Equal(t, 65536, names["SIZE_MAX_CELL"])
}

func TestGlobalsSkipFunctionBodies(t *testing.T) {
	r, err := New(writeTree(t)).Run()
	require.NoError(t, err)

	for _, line := range r.Globals["engine.c"] {
		assert.NotContains(t, line, "return")
	}
}

func TestHintsMentionGridCandidates(t *testing.T) {
	r, err := New(writeTree(t)).Run()
	require.NoError(t, err)

	joined := ""
	for _, h := range r.Hints {
		joined += h + "\n"
	}
	assert.Contains(t, joined, "16 consecutive 32-bit words")
	assert.Contains(t, joined, "gamestate.grid")
}

func TestRunRejectsEmptyTree(t *testing.T) {
	_, err := New(t.TempDir()).Run()
	assert.Error(t, err)
}

func TestSaveRoundTrips(t *testing.T) {
	r, err := New(writeTree(t)).Run()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "layout.toml")
	require.NoError(t, r.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var back Report
	require.NoError(t, toml.Unmarshal(data, &back))
	assert.Equal(t, r.Structures, back.Structures)
	assert.Equal(t, r.Hints, back.Hints)
}
