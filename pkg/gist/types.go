package gist

import (
	"errors"
	"fmt"
	"strings"
)

// ErrForbidden is returned when a user tries to update a gist they do not own.
var ErrForbidden = errors.New("gist is owned by another user")

// Gist is a saved program.
type Gist struct {
	ID          string            `json:"id"`
	Owner       string            `json:"owner"`
	Description string            `json:"description"`
	Public      bool              `json:"public"`
	Files       map[string]string `json:"files"`
	CreatedAtMs int64             `json:"created_at_ms"`
	UpdatedAtMs int64             `json:"updated_at_ms"`
}

// Ref returns the identity of the gist: its id and owner.
func (g *Gist) Ref() *Ref {
	if g == nil {
		return nil
	}
	return &Ref{ID: g.ID, Owner: g.Owner}
}

// Ref identifies a gist and the login of its owner. It is what the host keeps around
// for the currently loaded gist.
type Ref struct {
	ID    string `json:"id"`
	Owner string `json:"owner"`
}

// Payload is the body of a create or update request.
type Payload struct {
	Public      bool              `json:"public"`
	Description string            `json:"description"`
	Files       map[string]string `json:"files"`
}

// Validate checks that the payload carries at least one named file.
func (p *Payload) Validate() error {
	if len(p.Files) == 0 {
		return fmt.Errorf("payload has no files")
	}
	for name := range p.Files {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("payload has a file with an empty name")
		}
	}
	return nil
}

// EventType says what happened to a gist.
type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
)

// Event is published on the gist events channel after every successful write.
type Event struct {
	Type EventType `json:"type"`
	Gist *Gist     `json:"gist"`
}
