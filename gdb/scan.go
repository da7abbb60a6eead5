package gdb

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	toml "github.com/pelletier/go-toml/v2"
)

// Requester is the slice of Session the parsers need. Keeping the scanner on
// this interface is what makes the parsing boundary the only place debugger
// text is ever scraped.
type Requester interface {
	Request(command string) (string, error)
}

// Pattern is a word sequence worth searching for, named for logs.
type Pattern struct {
	Name  string
	Words []uint32
}

// DefaultPatterns are tried in priority order. The scanner stops at the
// first pattern that yields a validated candidate, trading exhaustiveness
// for bounded latency. Early entries match boards freshly seeded with a
// single 2 tile, which is how most games look right after starting.
var DefaultPatterns = []Pattern{
	{Name: "two-at-tail", Words: []uint32{0, 0, 0, 2}},
	{Name: "two-at-head", Words: []uint32{2, 0, 0, 0}},
	{Name: "two-offset", Words: []uint32{0, 2, 0, 0}},
	{Name: "two-pair", Words: []uint32{2, 2, 0, 0}},
}

// LoadPatterns reads a pattern library from a TOML file of [[pattern]]
// entries with name and words keys, ordered by priority.
func LoadPatterns(path string) ([]Pattern, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Pattern []struct {
			Name  string   `toml:"name"`
			Words []uint32 `toml:"words"`
		} `toml:"pattern"`
	}
	if err := toml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse pattern library %s: %w", path, err)
	}
	if len(doc.Pattern) == 0 {
		return nil, fmt.Errorf("pattern library %s: no patterns", path)
	}
	patterns := make([]Pattern, 0, len(doc.Pattern))
	for _, p := range doc.Pattern {
		patterns = append(patterns, Pattern{Name: p.Name, Words: p.Words})
	}
	return patterns, nil
}

// Candidate is an address a pattern search returned, not yet validated.
type Candidate struct {
	Addr    uint64
	Pattern string
}

// Window is an ordered read of fixed-width words starting at Base. Produced
// per read and handed straight to validation or snapshotting.
type Window struct {
	Base   uint64
	Width  int
	Values []uint32
}

const wordWidth = 4

var hexToken = regexp.MustCompile(`0x[0-9a-fA-F]+`)

// Scanner locates and reads memory through the session's text protocol.
type Scanner struct {
	req Requester
	log *logger.Logger
}

func NewScanner(req Requester) *Scanner {
	return &Scanner{
		req: req,
		log: logger.NewLogger(coloransi.Foreground(coloransi.ColorTeal, "mem-scan")),
	}
}

// SearchPattern runs a word-granular find over [lo, hi] and returns every
// address the debugger reports. Zero matches is an expected outcome and
// produces an empty slice, not an error.
func (sc *Scanner) SearchPattern(p Pattern, lo, hi uint64) ([]Candidate, error) {
	if len(p.Words) == 0 {
		return nil, fmt.Errorf("search pattern %q: empty word sequence", p.Name)
	}

	words := make([]string, len(p.Words))
	for i, w := range p.Words {
		words[i] = strconv.FormatUint(uint64(w), 10)
	}
	cmd := fmt.Sprintf("find /w 0x%x, 0x%x, %s", lo, hi, strings.Join(words, ", "))

	out, err := sc.req.Request(cmd)
	if err != nil {
		return nil, err
	}

	var cands []Candidate
	for _, line := range strings.Split(out, "\n") {
		// find prints one match address per line; summary lines such as
		// "2 patterns found." carry no hex token and fall through.
		tok := hexToken.FindString(line)
		if tok == "" {
			continue
		}
		addr, err := strconv.ParseUint(tok[2:], 16, 64)
		if err != nil {
			continue
		}
		cands = append(cands, Candidate{Addr: addr, Pattern: p.Name})
	}

	sc.log.Infoln("pattern", p.Name, "matched", len(cands), "addresses")
	return cands, nil
}

// ReadWindow examines count 32-bit words starting at addr. Every value must
// parse out of the response; a shortfall is a ParseError, never a zero
// substitution.
func (sc *Scanner) ReadWindow(addr uint64, count int) (Window, error) {
	cmd := fmt.Sprintf("x/%dwx 0x%x", count, addr)
	out, err := sc.req.Request(cmd)
	if err != nil {
		return Window{}, err
	}

	values := parseWordValues(out)
	if len(values) < count {
		return Window{}, &ParseError{Command: cmd, Want: count, Got: len(values)}
	}
	return Window{Base: addr, Width: wordWidth, Values: values[:count]}, nil
}

// parseWordValues pulls hex word values out of x/Nwx output. Each line looks
// like "0x601040 <board+16>:\t0x00000002\t0x00000000 ...": an address label
// before the colon, values after it. Lines without that shape are skipped.
func parseWordValues(out string) []uint32 {
	var values []uint32
	for _, line := range strings.Split(out, "\n") {
		idx := strings.Index(line, ":")
		if idx < 0 || !hexToken.MatchString(line[:idx]) {
			continue
		}
		for _, field := range strings.Fields(line[idx+1:]) {
			if !strings.HasPrefix(field, "0x") {
				continue
			}
			v, err := strconv.ParseUint(field[2:], 16, 32)
			if err != nil {
				continue
			}
			values = append(values, uint32(v))
		}
	}
	return values
}
