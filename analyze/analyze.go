// Package analyze extracts memory-layout hints from a target's C sources:
// struct definitions, file-scope game-state declarations, and the functions
// worth breaking on. The report narrows where the board scan should look.
package analyze

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/Moonlight-Companies/gologger/logger"
	"github.com/pelletier/go-toml/v2"
)

// Field is one member of a struct definition.
type Field struct {
	Type string   `toml:"type"`
	Name string   `toml:"name"`
	Dims []string `toml:"dims,omitempty"`
}

// Struct is a parsed struct definition with its source file.
type Struct struct {
	File   string  `toml:"file"`
	Fields []Field `toml:"fields"`
}

// Function is a definition matching one of the interesting name fragments.
type Function struct {
	File       string `toml:"file"`
	ReturnType string `toml:"return_type"`
}

// Define is a numeric preprocessor constant that bounds the grid.
type Define struct {
	Name  string `toml:"name"`
	Value int    `toml:"value"`
	File  string `toml:"file"`
}

// Report is everything the analyzer learned from one source tree.
type Report struct {
	Structures map[string]Struct   `toml:"structures"`
	Globals    map[string][]string `toml:"globals"`
	Functions  map[string]Function `toml:"functions"`
	Defines    []Define            `toml:"defines,omitempty"`
	Hints      []string            `toml:"hints"`
}

var (
	structRe = regexp.MustCompile(`(?s)struct\s+(\w+)\s*\{([^}]+)\}`)
	fieldRe  = regexp.MustCompile(`(\w+)\s+(\w+)((?:\[[^\]]+\])*)\s*;`)
	dimRe    = regexp.MustCompile(`\[([^\]]+)\]`)
	funcRe   = regexp.MustCompile(`(?m)^(\w[\w\s]*?\*?)\s*(\w+)\s*\([^)]*\)\s*\{`)
	defineRe = regexp.MustCompile(`#define\s+(BOARD_\w+|SIZE\w*|GRID\w*)\s+(\d+)`)
)

// stateWords mark a declaration or function as game-state related.
var stateWords = []string{"board", "game", "grid", "score"}

// funcWords pick out the functions worth installing pause points on.
var funcWords = []string{"main", "init", "move", "merge", "add", "draw", "input", "getch", "score"}

type Analyzer struct {
	dir string
	log *logger.Logger
}

func New(dir string) *Analyzer {
	return &Analyzer{
		dir: dir,
		log: logger.NewLogger("analyze"),
	}
}

// Run walks every .c and .h file under the tree and assembles the report.
func (a *Analyzer) Run() (*Report, error) {
	r := &Report{
		Structures: map[string]Struct{},
		Globals:    map[string][]string{},
		Functions:  map[string]Function{},
	}

	var files []string
	err := filepath.WalkDir(a.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch filepath.Ext(path) {
		case ".c", ".h":
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", a.dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no C sources under %s", a.dir)
	}

	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		content := string(data)
		name := filepath.Base(path)

		a.collectStructs(r, name, content)
		a.collectGlobals(r, name, content)
		a.collectFunctions(r, name, content)
		a.collectDefines(r, name, content)
	}

	r.Hints = hints(r)
	a.log.Infoln("analyzed", len(files), "files:",
		len(r.Structures), "structs,", len(r.Functions), "functions")
	return r, nil
}

func (a *Analyzer) collectStructs(r *Report, file, content string) {
	for _, m := range structRe.FindAllStringSubmatch(content, -1) {
		name, body := m[1], m[2]
		var fields []Field
		for _, fm := range fieldRe.FindAllStringSubmatch(body, -1) {
			f := Field{Type: fm[1], Name: fm[2]}
			for _, dm := range dimRe.FindAllStringSubmatch(fm[3], -1) {
				f.Dims = append(f.Dims, dm[1])
			}
			fields = append(fields, f)
		}
		r.Structures[name] = Struct{File: file, Fields: fields}
	}
}

// collectGlobals keeps file-scope declarations that mention game state. The
// brace counter is a rough function-body filter, not a C parser.
func (a *Analyzer) collectGlobals(r *Report, file, content string) {
	depth := 0
	for _, line := range strings.Split(content, "\n") {
		open := strings.Count(line, "{")
		closed := strings.Count(line, "}")
		if depth == 0 && open == 0 {
			if mentionsState(line) && looksLikeDecl(line) {
				r.Globals[file] = append(r.Globals[file], strings.TrimSpace(line))
			}
		}
		depth += open - closed
		if depth < 0 {
			depth = 0
		}
	}
}

func (a *Analyzer) collectFunctions(r *Report, file, content string) {
	for _, m := range funcRe.FindAllStringSubmatch(content, -1) {
		ret, name := strings.TrimSpace(m[1]), m[2]
		lower := strings.ToLower(name)
		for _, w := range funcWords {
			if strings.Contains(lower, w) {
				r.Functions[name] = Function{File: file, ReturnType: ret}
				break
			}
		}
	}
}

func (a *Analyzer) collectDefines(r *Report, file, content string) {
	for _, m := range defineRe.FindAllStringSubmatch(content, -1) {
		v, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		r.Defines = append(r.Defines, Define{Name: m[1], Value: v, File: file})
	}
}

func mentionsState(line string) bool {
	lower := strings.ToLower(line)
	for _, w := range stateWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func looksLikeDecl(line string) bool {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "*") || strings.HasPrefix(trimmed, "#") {
		return false
	}
	for _, t := range []string{"int ", "long ", "struct ", "uint32_t ", "int32_t "} {
		if strings.Contains(trimmed, t) {
			return true
		}
	}
	return false
}

// hints summarizes what the scan should expect in memory.
func hints(r *Report) []string {
	out := []string{
		"board is likely a 4x4 int array, 64 bytes total",
		"empty cells hold 0, occupied cells hold powers of two",
		"look for 16 consecutive 32-bit words",
	}
	for name, s := range r.Structures {
		for _, f := range s.Fields {
			if len(f.Dims) > 0 && mentionsState(f.Name) {
				out = append(out, fmt.Sprintf("struct %s.%s is a candidate grid (%s)",
					name, f.Name, strings.Join(f.Dims, "x")))
			}
		}
	}
	if _, ok := r.Functions["wgetch"]; ok {
		out = append(out, "wgetch is the input pause point")
	}
	return out
}

// Save writes the report as TOML.
func (r *Report) Save(path string) error {
	data, err := toml.Marshal(r)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
