// Package persist decides how and whether the current program is saved to the gist store.
package persist

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/dyluth/playbox/internal/program"
	"github.com/dyluth/playbox/internal/screen"
	"github.com/dyluth/playbox/internal/store"
	"github.com/dyluth/playbox/pkg/gist"
)

// DefaultDescription is used for programs without a title comment.
const DefaultDescription = "playbox game"

// ErrNotSignedIn is returned when saving without a token.
var ErrNotSignedIn = errors.New("not signed in")

// ErrNotRecordable is returned when the current state cannot be saved.
var ErrNotRecordable = errors.New("nothing to save")

// Decision is whether a save creates a new gist or updates the loaded one.
type Decision int

const (
	Create Decision = iota
	Update
)

func (d Decision) String() string {
	if d == Update {
		return "update"
	}
	return "create"
}

// Decide returns Update only when a gist is loaded and the user owns it. Saving a gist
// owned by someone else, or saving with no gist loaded, creates a new one.
func Decide(ref *gist.Ref, user string) Decision {
	if ref != nil && ref.Owner != "" && ref.Owner == user {
		return Update
	}
	return Create
}

// CanRecord reports whether the state holds something worth saving: not the boot
// screen, not tutorial mode, and not a blank program.
func CanRecord(st store.State) bool {
	if st.Screen == screen.Boot || st.Tutorial {
		return false
	}
	return !program.IsBlank(st.Program)
}

// Remote is the gist store a Saver writes to.
type Remote interface {
	Create(ctx context.Context, owner string, p gist.Payload) (*gist.Gist, error)
	Update(ctx context.Context, id, owner string, p gist.Payload) (*gist.Gist, error)
}

// Dispatcher receives the result of a successful save.
type Dispatcher interface {
	SaveGistSuccess(g *gist.Gist)
}

// Saver writes the program to the gist store on behalf of the signed-in user.
type Saver struct {
	remote   Remote
	dispatch Dispatcher
}

// NewSaver creates a saver.
func NewSaver(remote Remote, dispatch Dispatcher) *Saver {
	return &Saver{remote: remote, dispatch: dispatch}
}

// Payload builds the gist body for a program.
func Payload(p program.Program) (gist.Payload, error) {
	files, err := program.Files(p)
	if err != nil {
		return gist.Payload{}, err
	}

	description := program.Title(p)
	if description == "" {
		description = DefaultDescription
	}

	return gist.Payload{Public: true, Description: description, Files: files}, nil
}

// Save creates or updates the gist for st. On success the saved gist is dispatched.
// Failures are logged and returned; callers driven by user shortcuts may ignore them.
func (s *Saver) Save(ctx context.Context, st store.State) (*gist.Gist, error) {
	if st.Token == nil || st.Token.User.Login == "" {
		return nil, ErrNotSignedIn
	}
	if !CanRecord(st) {
		return nil, ErrNotRecordable
	}

	payload, err := Payload(st.Program)
	if err != nil {
		return nil, fmt.Errorf("failed to build gist payload: %w", err)
	}

	user := st.Token.User.Login
	ref := st.Gist.Ref()
	decision := Decide(ref, user)

	var saved *gist.Gist
	switch decision {
	case Update:
		saved, err = s.remote.Update(ctx, ref.ID, user, payload)
	default:
		saved, err = s.remote.Create(ctx, user, payload)
	}
	if err != nil {
		log.Printf("[ERROR] [Persist] Failed to %s gist: %v", decision, err)
		return nil, fmt.Errorf("failed to %s gist: %w", decision, err)
	}

	log.Printf("[INFO] [Persist] Saved gist: id=%s owner=%s action=%s", saved.ID, saved.Owner, decision)
	if s.dispatch != nil {
		s.dispatch.SaveGistSuccess(saved)
	}
	return saved, nil
}
