// Package scaffold creates a new game directory with a starter program and config.
package scaffold

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/dyluth/playbox/internal/config"
	"github.com/dyluth/playbox/internal/lint"
	"github.com/dyluth/playbox/internal/program"
)

//go:embed templates/*
var templatesFS embed.FS

// FileInfo represents a file to be created during initialization
type FileInfo struct {
	Path        string
	Content     []byte
	Permissions os.FileMode
}

// Options for Initialize.
type Options struct {
	Dir      string
	Title    string // default: the directory name
	Instance string // default: "default"
	Force    bool
}

type templateData struct {
	Title    string
	Instance string
}

// Initialize writes the starter files into opts.Dir and returns their paths.
// With Force, existing starter files are replaced.
func Initialize(opts Options) ([]string, error) {
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if !opts.Force {
		if err := CheckExisting(opts.Dir); err != nil {
			return nil, err
		}
	}

	files, err := getTemplateFiles(opts)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", opts.Dir, err)
	}

	if err := writeFiles(files); err != nil {
		return nil, err
	}

	if err := validateCreatedFiles(opts.Dir); err != nil {
		return nil, err
	}

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	return paths, nil
}

func getTemplateFiles(opts Options) ([]FileInfo, error) {
	data := templateData{Title: opts.Title, Instance: opts.Instance}
	if data.Title == "" {
		abs, err := filepath.Abs(opts.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", opts.Dir, err)
		}
		data.Title = filepath.Base(abs)
	}
	if data.Instance == "" {
		data.Instance = "default"
	}

	targets := []struct {
		template string
		path     string
	}{
		{"templates/code.js.tmpl", program.CodeFile},
		{"templates/playbox.yml.tmpl", config.DefaultPath},
	}

	files := make([]FileInfo, 0, len(targets))
	for _, t := range targets {
		content, err := render(t.template, data)
		if err != nil {
			return nil, err
		}
		files = append(files, FileInfo{
			Path:        filepath.Join(opts.Dir, t.path),
			Content:     content,
			Permissions: 0o644,
		})
	}
	return files, nil
}

func render(name string, data templateData) ([]byte, error) {
	raw, err := templatesFS.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	tmpl, err := template.New(filepath.Base(name)).Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

func writeFiles(files []FileInfo) error {
	for _, file := range files {
		if err := os.WriteFile(file.Path, file.Content, file.Permissions); err != nil {
			return fmt.Errorf("failed to write %s: %w", file.Path, err)
		}
	}
	return nil
}

// validateCreatedFiles checks that the config loads and the starter program lints clean.
func validateCreatedFiles(dir string) error {
	if _, err := config.Load(filepath.Join(dir, config.DefaultPath)); err != nil {
		return fmt.Errorf("created %s is invalid: %w", config.DefaultPath, err)
	}

	p, err := program.LoadDir(dir)
	if err != nil {
		return fmt.Errorf("created program cannot be loaded: %w", err)
	}
	errs, err := lint.New().Validate(context.Background(), program.Assemble(p))
	if err != nil {
		return fmt.Errorf("failed to lint created program: %w", err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("created program has lint errors: %s", errs[0].Message)
	}
	return nil
}

// PrintSuccess prints the created files and what to do next.
func PrintSuccess(w io.Writer, dir string, created []string) {
	fmt.Fprintln(w, "\n✅ Successfully initialized playbox game!")
	fmt.Fprintln(w, "\nCreated:")
	for _, path := range created {
		fmt.Fprintf(w, "  ✓ %s\n", path)
	}
	fmt.Fprintln(w, "\nNext steps:")
	fmt.Fprintln(w, "  1. Add '.playbox/' to your .gitignore file")
	fmt.Fprintf(w, "  2. Run 'playbox watch %s' and edit %s\n", strings.TrimSuffix(dir, "/"), program.CodeFile)
	fmt.Fprintln(w, "  3. Run 'playbox login', then press ctrl+s while watching to save a gist")
}
