package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/aygp-dr/gdb-game-ai/gdb"
	"github.com/aygp-dr/gdb-game-ai/render"
)

type boardMsg struct {
	snap gdb.Snapshot
	err  error
}

type statusMsg struct {
	state  string
	pauses int
}

type pollTickMsg struct{}

// watchModel polls the bridge and redraws the board. It never drives the
// loop; it is a read-only spectator.
type watchModel struct {
	url      string
	interval time.Duration
	client   *http.Client
	spinner  spinner.Model
	board    string
	status   string
	err      error
}

func newWatchModel(url string, interval time.Duration) watchModel {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
	)
	return watchModel{
		url:      url,
		interval: interval,
		client:   &http.Client{Timeout: 2 * time.Second},
		spinner:  s,
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.poll)
}

func (m watchModel) poll() tea.Msg {
	resp, err := m.client.Get(m.url + "/board")
	if err != nil {
		return boardMsg{err: err}
	}
	defer resp.Body.Close()

	var body struct {
		Flat  []uint32 `json:"flat"`
		Error string   `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return boardMsg{err: err}
	}
	if body.Error != "" {
		return boardMsg{err: fmt.Errorf("%s", body.Error)}
	}
	return boardMsg{snap: gdb.NewSnapshot(body.Flat)}
}

func (m watchModel) pollStatus() tea.Msg {
	resp, err := m.client.Get(m.url + "/status")
	if err != nil {
		return statusMsg{state: "unreachable"}
	}
	defer resp.Body.Close()

	var body struct {
		State  string `json:"state"`
		Pauses int    `json:"pauses"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return statusMsg{state: "unreachable"}
	}
	return statusMsg{state: body.State, pauses: body.Pauses}
}

func (m watchModel) scheduleTick() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg {
		return pollTickMsg{}
	})
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case pollTickMsg:
		return m, tea.Batch(m.poll, m.pollStatus)
	case boardMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.board = render.Board(msg.snap)
		}
		return m, m.scheduleTick()
	case statusMsg:
		m.status = fmt.Sprintf("state %s  pauses %d", msg.state, msg.pauses)
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m watchModel) View() string {
	header := fmt.Sprintf("%s watching %s", m.spinner.View(), m.url)
	body := m.board
	if m.err != nil {
		body = "waiting for board: " + m.err.Error()
	}
	if body == "" {
		body = "no board yet"
	}
	footer := m.status + "  (q to quit)"
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func newWatchCmd() *cobra.Command {
	var (
		url      string
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch a running bridge's board from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := tea.NewProgram(newWatchModel(url, interval))
			_, err := p.Run()
			return err
		},
	}

	cmd.Flags().StringVar(&url, "url", "http://127.0.0.1:5000", "bridge base URL")
	cmd.Flags().DurationVar(&interval, "interval", 500*time.Millisecond, "poll interval")
	return cmd
}
