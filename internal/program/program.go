// Package program holds the in-memory game program and the assembler that turns its
// ordered code fragments into a single executable source blob.
package program

import (
	"encoding/json"
	"strings"
)

// Table is a music sequencing table (phrases, chains, songs). Entries are opaque to the
// host and only ever forwarded to the sandbox.
type Table map[string]json.RawMessage

// Program is the editable game: code fragments keyed by index plus asset tables.
// Fragment indices are expected to be contiguous from 0; assembly order is index order.
type Program struct {
	Fragments map[int]string      `json:"game"`
	Sprites   map[string][]string `json:"sprites,omitempty"` // sprite id -> pixel rows (palette index per char)
	Map       [][]int             `json:"map,omitempty"`     // tile grid, -1 for an empty cell
	Phrases   Table               `json:"phrases,omitempty"`
	Chains    Table               `json:"chains,omitempty"`
	Songs     Table               `json:"songs,omitempty"`
	Sound     map[string]float64  `json:"sound,omitempty"` // synth parameters
}

// FromFragments builds a program whose fragments are the given texts in order.
func FromFragments(texts ...string) Program {
	p := Program{Fragments: make(map[int]string, len(texts))}
	for i, text := range texts {
		p.Fragments[i] = text
	}
	return p
}

// Assemble concatenates the program's fragments in index order.
// A missing index inside the range contributes nothing, as does a negative index.
func Assemble(p Program) string {
	last := -1
	for i := range p.Fragments {
		if i > last {
			last = i
		}
	}

	var b strings.Builder
	for i := 0; i <= last; i++ {
		b.WriteString(p.Fragments[i])
	}
	return b.String()
}

// IsBlank reports whether the program has no code and no assets.
func IsBlank(p Program) bool {
	if strings.TrimSpace(Assemble(p)) != "" {
		return false
	}
	for _, rows := range p.Sprites {
		if len(rows) > 0 {
			return false
		}
	}
	for _, row := range p.Map {
		for _, tile := range row {
			if tile >= 0 {
				return false
			}
		}
	}
	return len(p.Phrases) == 0 && len(p.Chains) == 0 && len(p.Songs) == 0
}

// Title returns the text of the first line of the assembled source when that line is a
// "//" comment, or "" otherwise.
func Title(p Program) string {
	src := strings.TrimLeft(Assemble(p), " \t\r\n")
	line, _, _ := strings.Cut(src, "\n")
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "//") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(line, "//"))
}

// Clone returns a deep copy so snapshots handed to other goroutines never alias the
// state container's maps.
func Clone(p Program) Program {
	out := Program{}
	if p.Fragments != nil {
		out.Fragments = make(map[int]string, len(p.Fragments))
		for k, v := range p.Fragments {
			out.Fragments[k] = v
		}
	}
	if p.Sprites != nil {
		out.Sprites = make(map[string][]string, len(p.Sprites))
		for k, rows := range p.Sprites {
			out.Sprites[k] = append([]string(nil), rows...)
		}
	}
	if p.Map != nil {
		out.Map = make([][]int, len(p.Map))
		for i, row := range p.Map {
			out.Map[i] = append([]int(nil), row...)
		}
	}
	out.Phrases = cloneTable(p.Phrases)
	out.Chains = cloneTable(p.Chains)
	out.Songs = cloneTable(p.Songs)
	if p.Sound != nil {
		out.Sound = make(map[string]float64, len(p.Sound))
		for k, v := range p.Sound {
			out.Sound[k] = v
		}
	}
	return out
}

func cloneTable(t Table) Table {
	if t == nil {
		return nil
	}
	out := make(Table, len(t))
	for k, v := range t {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}
