package program

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// File names used both for gist payloads and for program directories on disk.
const (
	CodeFile    = "code.js"
	SpritesFile = "sprites.json"
	MapFile     = "map.json"
	PhrasesFile = "phrases.json"
	ChainsFile  = "chains.json"
	SongsFile   = "songs.json"
	SoundFile   = "sound.json"
)

// Files renders the program as a set of named files. Code is stored assembled in
// code.js; asset tables are only written when non-empty.
func Files(p Program) (map[string]string, error) {
	files := map[string]string{CodeFile: Assemble(p)}

	assets := []struct {
		name  string
		value any
		empty bool
	}{
		{SpritesFile, p.Sprites, len(p.Sprites) == 0},
		{MapFile, p.Map, len(p.Map) == 0},
		{PhrasesFile, p.Phrases, len(p.Phrases) == 0},
		{ChainsFile, p.Chains, len(p.Chains) == 0},
		{SongsFile, p.Songs, len(p.Songs) == 0},
		{SoundFile, p.Sound, len(p.Sound) == 0},
	}
	for _, a := range assets {
		if a.empty {
			continue
		}
		data, err := json.MarshalIndent(a.value, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", a.name, err)
		}
		files[a.name] = string(data)
	}
	return files, nil
}

// FromFiles rebuilds a program from named files. Additional code fragments may be
// supplied as code-1.js, code-2.js, ... and are placed after code.js in numeric order.
func FromFiles(files map[string]string) (Program, error) {
	p := Program{Fragments: map[int]string{}}

	type extra struct {
		n    int
		name string
		text string
	}
	var extras []extra
	for name, content := range files {
		if name == CodeFile {
			continue
		}
		if n, ok := fragmentNumber(name); ok {
			extras = append(extras, extra{n, name, content})
		}
	}
	sort.Slice(extras, func(i, j int) bool {
		if extras[i].n != extras[j].n {
			return extras[i].n < extras[j].n
		}
		return extras[i].name < extras[j].name
	})

	idx := 0
	if code, ok := files[CodeFile]; ok {
		p.Fragments[idx] = code
		idx++
	}
	for _, e := range extras {
		p.Fragments[idx] = e.text
		idx++
	}

	decode := []struct {
		name   string
		target any
	}{
		{SpritesFile, &p.Sprites},
		{MapFile, &p.Map},
		{PhrasesFile, &p.Phrases},
		{ChainsFile, &p.Chains},
		{SongsFile, &p.Songs},
		{SoundFile, &p.Sound},
	}
	for _, d := range decode {
		content, ok := files[d.name]
		if !ok || strings.TrimSpace(content) == "" {
			continue
		}
		if err := json.Unmarshal([]byte(content), d.target); err != nil {
			return Program{}, fmt.Errorf("invalid %s: %w", d.name, err)
		}
	}

	return p, nil
}

// fragmentNumber parses "code-N.js" names.
func fragmentNumber(name string) (int, bool) {
	if !strings.HasPrefix(name, "code-") || !strings.HasSuffix(name, ".js") {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "code-"), ".js"))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// LoadDir reads a program directory. A directory without code.js is an error.
func LoadDir(dir string) (Program, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Program{}, fmt.Errorf("failed to read program directory: %w", err)
	}

	files := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if name != CodeFile && !isAssetFile(name) {
			if _, ok := fragmentNumber(name); !ok {
				continue
			}
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return Program{}, fmt.Errorf("failed to read %s: %w", name, err)
		}
		files[name] = string(data)
	}

	if _, ok := files[CodeFile]; !ok {
		return Program{}, fmt.Errorf("%s not found in %s: %w", CodeFile, dir, os.ErrNotExist)
	}

	return FromFiles(files)
}

// WriteDir writes the program's files into dir, creating it if needed.
func WriteDir(dir string, p Program) error {
	files, err := Files(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create program directory: %w", err)
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	return nil
}

// IsMissing reports whether err came from a program directory without code.
func IsMissing(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}

func isAssetFile(name string) bool {
	switch name {
	case SpritesFile, MapFile, PhrasesFile, ChainsFile, SongsFile, SoundFile:
		return true
	}
	return false
}
