package scaffold

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckExisting(t *testing.T) {
	tests := []struct {
		name    string
		files   []string
		wantErr bool
		errMsg  []string
	}{
		{name: "no existing files"},
		{name: "unrelated files", files: []string{"README.md", "sprites.json"}},
		{name: "existing code.js only", files: []string{"code.js"}, wantErr: true, errMsg: []string{": code.js"}},
		{name: "existing playbox.yml only", files: []string{"playbox.yml"}, wantErr: true, errMsg: []string{": playbox.yml"}},
		{
			name:    "both",
			files:   []string{"code.js", "playbox.yml"},
			wantErr: true,
			errMsg:  []string{"  - code.js", "  - playbox.yml", "playbox init --force"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for _, name := range tt.files {
				require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
			}

			err := CheckExisting(dir)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, msg := range tt.errMsg {
				assert.Contains(t, err.Error(), msg)
			}
		})
	}
}
