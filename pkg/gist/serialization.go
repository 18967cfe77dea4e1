package gist

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// GistToHash converts a Gist to a Redis hash. Files are JSON-encoded into one field.
func GistToHash(g *Gist) (map[string]interface{}, error) {
	filesJSON, err := json.Marshal(g.Files)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal files: %w", err)
	}

	return map[string]interface{}{
		"id":            g.ID,
		"owner":         g.Owner,
		"description":   g.Description,
		"public":        strconv.FormatBool(g.Public),
		"files":         string(filesJSON),
		"created_at_ms": g.CreatedAtMs,
		"updated_at_ms": g.UpdatedAtMs,
	}, nil
}

// HashToGist converts a Redis hash back to a Gist.
func HashToGist(hash map[string]string) (*Gist, error) {
	public, err := strconv.ParseBool(hash["public"])
	if err != nil {
		return nil, fmt.Errorf("invalid public field: %w", err)
	}

	files := map[string]string{}
	if filesJSON := hash["files"]; filesJSON != "" {
		if err := json.Unmarshal([]byte(filesJSON), &files); err != nil {
			return nil, fmt.Errorf("failed to unmarshal files: %w", err)
		}
	}

	createdAtMs, _ := strconv.ParseInt(hash["created_at_ms"], 10, 64)
	updatedAtMs, _ := strconv.ParseInt(hash["updated_at_ms"], 10, 64)

	return &Gist{
		ID:          hash["id"],
		Owner:       hash["owner"],
		Description: hash["description"],
		Public:      public,
		Files:       files,
		CreatedAtMs: createdAtMs,
		UpdatedAtMs: updatedAtMs,
	}, nil
}
