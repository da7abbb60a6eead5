package gdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boardWith(values ...uint32) []uint32 {
	b := make([]uint32, BoardCells)
	copy(b, values)
	return b
}

func repeated(v uint32) []uint32 {
	b := make([]uint32, BoardCells)
	for i := range b {
		b[i] = v
	}
	return b
}

func TestValidBoard(t *testing.T) {
	tests := []struct {
		name   string
		values []uint32
		want   bool
	}{
		{"single two among zeros", boardWith(0, 0, 0, 2), true},
		{"mixed powers of two", boardWith(2, 4, 8, 16, 32, 64, 128, 256, 512, 1024, 2048), true},
		{"max cell value allowed", boardWith(65536, 2), true},
		{"all zeros", repeated(0), false},
		{"all nonzero powers of two", repeated(2), false},
		{"sixteen 65536s", repeated(65536), false},
		{"contains non power of two", boardWith(0, 0, 3, 2), false},
		{"contains value above max", boardWith(0, 0, 131072, 2), false},
		{"too short", []uint32{0, 2}, false},
		{"too long", append(repeated(0), 2), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ValidBoard(tc.values))
		})
	}
}

func TestValidBoardDoesNotMutateInput(t *testing.T) {
	values := boardWith(0, 0, 0, 2)
	orig := make([]uint32, len(values))
	copy(orig, values)

	ValidBoard(values)
	assert.Equal(t, orig, values)
}

func TestSnapshotDerivedFields(t *testing.T) {
	snap := NewSnapshot(boardWith(0, 0, 0, 2))
	assert.Equal(t, 15, snap.Empty)
	assert.Equal(t, uint32(2), snap.Max)

	snap = NewSnapshot(boardWith(2, 4, 1024, 2, 8))
	assert.Equal(t, 11, snap.Empty)
	assert.Equal(t, uint32(1024), snap.Max)
}

func TestSnapshotRowsRoundTrip(t *testing.T) {
	values := make([]uint32, BoardCells)
	for i := range values {
		values[i] = uint32(i * 7)
	}
	snap := NewSnapshot(values)

	var flat []uint32
	for _, row := range snap.Rows() {
		flat = append(flat, row[:]...)
	}
	assert.Equal(t, values, flat)
}

func TestNewBoardHandleShape(t *testing.T) {
	h := NewBoardHandle(0x601040)
	assert.Equal(t, uint64(0x601040), h.Base)
	assert.Equal(t, 16, h.Count)
	assert.Equal(t, 4, h.Width)
}

func TestReadBoardRetriesOnceOnParseError(t *testing.T) {
	req := &sequenceRequester{responses: []string{
		"0x601040:\t0x00000002\n", // truncated mid-update read
		fullWindowOut,
	}}
	sc := NewScanner(req)

	snap, err := sc.ReadBoard(NewBoardHandle(0x601040))
	require.NoError(t, err)
	assert.Len(t, req.calls, 2)
	assert.Equal(t, uint32(2), snap.Max)
	assert.Equal(t, 15, snap.Empty)
}

func TestReadBoardSurfacesPersistentParseError(t *testing.T) {
	req := &sequenceRequester{responses: []string{
		"0x601040:\t0x00000002\n",
		"0x601040:\t0x00000002\n",
	}}
	sc := NewScanner(req)

	_, err := sc.ReadBoard(NewBoardHandle(0x601040))
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Len(t, req.calls, 2)
}

// sequenceRequester answers calls in order, repeating the last response.
type sequenceRequester struct {
	responses []string
	calls     []string
}

func (f *sequenceRequester) Request(cmd string) (string, error) {
	f.calls = append(f.calls, cmd)
	i := len(f.calls) - 1
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	return f.responses[i], nil
}
