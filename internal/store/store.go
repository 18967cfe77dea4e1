// Package store holds the host state the playground reacts to: current screen, the
// program being edited, gist and auth state. Changes happen through actions; observers
// subscribe and are told when something changed.
package store

import (
	"log"
	"sync"

	"github.com/dyluth/playbox/internal/program"
	"github.com/dyluth/playbox/internal/screen"
	"github.com/dyluth/playbox/pkg/gist"
)

// User is the signed-in user.
type User struct {
	Login string `json:"login"`
}

// Token is an access token together with the user it belongs to.
type Token struct {
	Value string `json:"value"`
	User  User   `json:"user"`
}

// GistState tracks the gist the current program came from.
type GistState struct {
	Fetching bool
	Data     *gist.Gist
}

// Empty reports whether no gist was ever requested.
func (g GistState) Empty() bool {
	return !g.Fetching && g.Data == nil
}

// Ref returns the loaded gist's identity, or nil.
func (g GistState) Ref() *gist.Ref {
	return g.Data.Ref()
}

// State is a snapshot of host state. Snapshots are never mutated after they are handed out.
type State struct {
	Screen   screen.Screen
	Program  program.Program
	Gist     GistState
	Token    *Token
	Tutorial bool
}

// Store is a mutex-protected state container.
type Store struct {
	mu          sync.Mutex
	state       State
	subscribers map[int]chan struct{}
	nextID      int
}

// New creates a store on the boot screen with an empty program.
func New() *Store {
	return &Store{
		state:       State{Screen: screen.Boot, Program: program.Program{Fragments: map[int]string{}}},
		subscribers: make(map[int]chan struct{}),
	}
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Store) snapshot() State {
	st := s.state
	st.Program = program.Clone(s.state.Program)
	if s.state.Token != nil {
		tok := *s.state.Token
		st.Token = &tok
	}
	return st
}

// Subscribe registers for change notifications. Notifications coalesce: a subscriber that
// has not yet consumed the previous one is not notified twice. The returned function
// unsubscribes and is safe to call more than once.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan struct{}, 1)
	s.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subscribers, id)
		})
	}
}

// update applies fn under the lock and notifies subscribers when it reports a change.
func (s *Store) update(fn func(st *State) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !fn(&s.state) {
		return
	}
	for _, ch := range s.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// SetScreen moves to a screen.
func (s *Store) SetScreen(sc screen.Screen) {
	s.update(func(st *State) bool {
		if st.Screen == sc {
			return false
		}
		st.Screen = sc
		return true
	})
}

// FinishBoot leaves the boot screen for home. It has no effect on any other screen, so
// repeated boot signals are harmless.
func (s *Store) FinishBoot() {
	s.update(func(st *State) bool {
		if st.Screen != screen.Boot {
			return false
		}
		log.Printf("[DEBUG] [Store] Boot finished")
		st.Screen = screen.Home
		return true
	})
}

// UpdateProgram replaces the program being edited.
func (s *Store) UpdateProgram(p program.Program) {
	p = program.Clone(p)
	s.update(func(st *State) bool {
		st.Program = p
		return true
	})
}

// FetchGistRequest marks a gist fetch as in flight.
func (s *Store) FetchGistRequest() {
	s.update(func(st *State) bool {
		st.Gist.Fetching = true
		return true
	})
}

// FetchGistSuccess stores the fetched gist and replaces the program with its contents.
func (s *Store) FetchGistSuccess(g *gist.Gist, p program.Program) {
	p = program.Clone(p)
	s.update(func(st *State) bool {
		st.Gist = GistState{Data: g}
		st.Program = p
		return true
	})
}

// FetchGistFailure ends an in-flight fetch without a gist.
func (s *Store) FetchGistFailure() {
	s.update(func(st *State) bool {
		st.Gist.Fetching = false
		return true
	})
}

// TokenSuccess records a successful sign-in.
func (s *Store) TokenSuccess(tok Token) {
	s.update(func(st *State) bool {
		st.Token = &tok
		return true
	})
}

// SaveGistSuccess records the gist a save produced, which becomes the current gist.
func (s *Store) SaveGistSuccess(g *gist.Gist) {
	s.update(func(st *State) bool {
		st.Gist = GistState{Data: g}
		return true
	})
}

// SetTutorial switches tutorial mode.
func (s *Store) SetTutorial(on bool) {
	s.update(func(st *State) bool {
		if st.Tutorial == on {
			return false
		}
		st.Tutorial = on
		return true
	})
}
