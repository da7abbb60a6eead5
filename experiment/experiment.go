// Package experiment records play sessions for later comparison: every
// serviced pause with its board, action, and derived stats, persisted as
// TOML under a per-run directory.
package experiment

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Moonlight-Companies/gologger/logger"
	"github.com/pelletier/go-toml/v2"

	"github.com/aygp-dr/gdb-game-ai/gdb"
)

// Move is one serviced pause.
type Move struct {
	Seq    int      `toml:"seq"`
	Action string   `toml:"action"`
	Board  []uint32 `toml:"board"`
	Empty  int      `toml:"empty"`
	Max    uint32   `toml:"max"`
}

// Run is a complete recorded session.
type Run struct {
	Name        string    `toml:"name"`
	Description string    `toml:"description,omitempty"`
	StartedAt   time.Time `toml:"started_at"`
	FinishedAt  time.Time `toml:"finished_at"`
	FinalState  string    `toml:"final_state"`
	Moves       []Move    `toml:"moves"`
}

// BestTile is the largest value reached during the run.
func (r *Run) BestTile() uint32 {
	var best uint32
	for _, m := range r.Moves {
		if m.Max > best {
			best = m.Max
		}
	}
	return best
}

// Recorder accumulates moves for one run. Hand Observe to the loop as its
// observer, then Finish to persist.
type Recorder struct {
	run Run
	dir string
	log *logger.Logger
}

// NewRecorder opens a run under dir/name. The directory is created up front
// so a failing run still leaves a trace.
func NewRecorder(dir, name, description string) (*Recorder, error) {
	runDir := filepath.Join(dir, name)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating run dir: %w", err)
	}
	return &Recorder{
		run: Run{
			Name:        name,
			Description: description,
			StartedAt:   time.Now().UTC(),
		},
		dir: runDir,
		log: logger.NewLogger("experiment"),
	}, nil
}

// Observe appends one serviced pause. Matches the loop's observer signature.
func (rec *Recorder) Observe(s gdb.Snapshot, a gdb.Action) {
	rec.run.Moves = append(rec.run.Moves, Move{
		Seq:    len(rec.run.Moves) + 1,
		Action: a.String(),
		Board:  append([]uint32(nil), s.Values[:]...),
		Empty:  s.Empty,
		Max:    s.Max,
	})
}

// Finish stamps the run and writes results.toml into the run directory.
func (rec *Recorder) Finish(finalState gdb.LoopState) (string, error) {
	rec.run.FinishedAt = time.Now().UTC()
	rec.run.FinalState = finalState.String()

	path := filepath.Join(rec.dir, "results.toml")
	data, err := toml.Marshal(rec.run)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	rec.log.Infoln("recorded", len(rec.run.Moves), "moves to", path)
	return path, nil
}

// Load reads a previously recorded run.
func Load(path string) (*Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Run
	if err := toml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &r, nil
}
