// Package screen defines the fixed sequence of host screens and previous/next navigation.
package screen

import "fmt"

// Screen identifies which host screen is active.
type Screen int

const (
	Boot Screen = iota
	Home
	Run
	Code
	Sprite
	Map
	Phrase
	Chain
	Song
	Help
)

var names = [...]string{
	Boot:   "boot",
	Home:   "home",
	Run:    "run",
	Code:   "code",
	Sprite: "sprite",
	Map:    "map",
	Phrase: "phrase",
	Chain:  "chain",
	Song:   "song",
	Help:   "help",
}

func (s Screen) String() string {
	if s < Boot || int(s) >= len(names) {
		return fmt.Sprintf("screen(%d)", int(s))
	}
	return names[s]
}

// Parse returns the screen with the given name.
func Parse(name string) (Screen, error) {
	for i, n := range names {
		if n == name {
			return Screen(i), nil
		}
	}
	return Boot, fmt.Errorf("unknown screen: %q", name)
}

// Previous returns the screen before s. Navigation saturates at Home; Boot is not
// reachable by navigation and moves forward to Home.
func Previous(s Screen) Screen {
	if s <= Home || int(s) >= len(names) {
		return Home
	}
	return s - 1
}

// Next returns the screen after s, saturating at Help.
func Next(s Screen) Screen {
	switch {
	case s < Home:
		return Home
	case s >= Help:
		return Help
	}
	return s + 1
}

// Runs reports whether the sandbox should execute the program on this screen
// rather than merely load it.
func Runs(s Screen) bool {
	return s == Boot || s == Run
}
