// Package web exposes the control loop over a small JSON HTTP API, so the
// debugger can be driven by external tooling instead of the terminal.
package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/Moonlight-Companies/gologger/logger"

	"github.com/aygp-dr/gdb-game-ai/gdb"
)

// Controller is what the bridge needs from the control loop.
type Controller interface {
	Launch() error
	Locate() (gdb.BoardHandle, error)
	SetBoard(addr uint64) (gdb.Snapshot, error)
	Arm() error
	Step() (gdb.Snapshot, gdb.Action, error)
	Inject(a gdb.Action) (gdb.Snapshot, error)
	Play(moves int) (int, error)
	Snapshot() (gdb.Snapshot, error)
	State() gdb.LoopState
	Pauses() int
	Board() (gdb.BoardHandle, bool)
	Break() error
	Continue() error
	Stop() error
}

// Bridge serializes all loop access behind one mutex; the loop itself is
// single-goroutine, the HTTP server is not.
type Bridge struct {
	mu   sync.Mutex
	loop Controller
	log  *logger.Logger
}

func NewBridge(loop Controller) *Bridge {
	return &Bridge{
		loop: loop,
		log:  logger.NewLogger("web-bridge"),
	}
}

// Handler wires the API routes.
func (b *Bridge) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", b.post(b.handleStart))
	mux.HandleFunc("/run", b.post(b.handleStart))
	mux.HandleFunc("/find-board", b.post(b.handleFindBoard))
	mux.HandleFunc("/set-board", b.post(b.handleSetBoard))
	mux.HandleFunc("/arm", b.post(b.handleArm))
	mux.HandleFunc("/move", b.post(b.handleMove))
	mux.HandleFunc("/play", b.post(b.handlePlay))
	mux.HandleFunc("/break", b.post(b.handleBreak))
	mux.HandleFunc("/continue", b.post(b.handleContinue))
	mux.HandleFunc("/stop", b.post(b.handleStop))
	mux.HandleFunc("/board", b.get(b.handleBoard))
	mux.HandleFunc("/status", b.get(b.handleStatus))
	return mux
}

type boardResponse struct {
	Board [gdb.BoardSide][gdb.BoardSide]uint32 `json:"board"`
	Flat  []uint32                             `json:"flat"`
	Empty int                                  `json:"empty"`
	Max   uint32                               `json:"max"`
}

func boardOf(s gdb.Snapshot) boardResponse {
	return boardResponse{
		Board: s.Rows(),
		Flat:  s.Values[:],
		Empty: s.Empty,
		Max:   s.Max,
	}
}

type statusResponse struct {
	State  string `json:"state"`
	Pauses int    `json:"pauses"`
	Board  string `json:"board_address,omitempty"`
}

type moveRequest struct {
	Direction string `json:"direction"`
}

type playRequest struct {
	Moves int `json:"moves"`
}

type setBoardRequest struct {
	Address string `json:"address"`
}

func (b *Bridge) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := b.loop.Launch(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

func (b *Bridge) handleFindBoard(w http.ResponseWriter, r *http.Request) {
	h, err := b.loop.Locate()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "located",
		"address": "0x" + strconv.FormatUint(h.Base, 16),
	})
}

func (b *Bridge) handleSetBoard(w http.ResponseWriter, r *http.Request) {
	var req setBoardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad request body"})
		return
	}
	addr, err := strconv.ParseUint(req.Address, 0, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad address: " + req.Address})
		return
	}
	snap, err := b.loop.SetBoard(addr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, boardOf(snap))
}

func (b *Bridge) handleArm(w http.ResponseWriter, r *http.Request) {
	if err := b.loop.Arm(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "armed"})
}

func (b *Bridge) handleMove(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad request body"})
		return
	}

	if b.loop.State() == gdb.Located {
		if err := b.loop.Arm(); err != nil {
			writeError(w, err)
			return
		}
	}

	var (
		snap gdb.Snapshot
		act  gdb.Action
		err  error
	)
	if req.Direction == "" || req.Direction == "auto" {
		snap, act, err = b.loop.Step()
	} else {
		act, err = gdb.ParseAction(req.Direction)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		snap, err = b.loop.Inject(act)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "moved",
		"action": act.String(),
		"board":  boardOf(snap),
	})
}

func (b *Bridge) handlePlay(w http.ResponseWriter, r *http.Request) {
	var req playRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad request body"})
		return
	}
	if req.Moves <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "moves must be positive"})
		return
	}
	played, err := b.loop.Play(req.Moves)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"played": played,
		"state":  b.loop.State().String(),
	})
}

func (b *Bridge) handleBreak(w http.ResponseWriter, r *http.Request) {
	if err := b.loop.Break(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "interrupted"})
}

func (b *Bridge) handleContinue(w http.ResponseWriter, r *http.Request) {
	if err := b.loop.Continue(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "continued"})
}

func (b *Bridge) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := b.loop.Stop(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (b *Bridge) handleBoard(w http.ResponseWriter, r *http.Request) {
	snap, err := b.loop.Snapshot()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, boardOf(snap))
}

func (b *Bridge) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		State:  b.loop.State().String(),
		Pauses: b.loop.Pauses(),
	}
	if h, ok := b.loop.Board(); ok {
		resp.Board = "0x" + strconv.FormatUint(h.Base, 16)
	}
	writeJSON(w, http.StatusOK, resp)
}

// post wraps a handler with the method check and the loop mutex.
func (b *Bridge) post(fn http.HandlerFunc) http.HandlerFunc {
	return b.guard(http.MethodPost, fn)
}

func (b *Bridge) get(fn http.HandlerFunc) http.HandlerFunc {
	return b.guard(http.MethodGet, fn)
}

func (b *Bridge) guard(method string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
			return
		}
		b.log.Debugln(r.Method, r.URL.Path)
		b.mu.Lock()
		defer b.mu.Unlock()
		fn(w, r)
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, gdb.ErrNoCandidate):
		code = http.StatusNotFound
	case errors.Is(err, gdb.ErrSessionClosed):
		code = http.StatusConflict
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
