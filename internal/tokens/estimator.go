// Package tokens estimates program complexity as a JavaScript token count.
package tokens

import (
	"log"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dustin/go-humanize"
	"github.com/dyluth/playbox/internal/program"
	"golang.org/x/time/rate"
)

// ErrorDisplay is returned in place of a count when the source cannot be tokenized.
const ErrorDisplay = "ERROR"

// DefaultInterval is the minimum spacing between two tokenizer runs.
const DefaultInterval = time.Second

// Estimator produces a display string with the program's token count.
// Recomputation is rate limited: within one interval every call returns the value
// computed by the first call of that interval, whatever program it is given.
type Estimator struct {
	mu       sync.Mutex
	clock    clock.Clock
	limiter  *rate.Limiter
	last     string
	tokenize func(src string) (int, error)
}

// NewEstimator creates an estimator that tokenizes at most once per interval.
// A nil clock uses wall time.
func NewEstimator(clk clock.Clock, interval time.Duration) *Estimator {
	if clk == nil {
		clk = clock.New()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Estimator{
		clock:    clk,
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		tokenize: CountTokens,
	}
}

// Estimate returns the grouped token count of the assembled program, "ERROR" when
// tokenizing fails, or the previous result when called again inside the window.
func (e *Estimator) Estimate(p program.Program) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.limiter.AllowN(e.clock.Now(), 1) {
		return e.last
	}

	n, err := e.tokenize(program.Assemble(p))
	if err != nil {
		log.Printf("[DEBUG] Token count failed: %v", err)
		e.last = ErrorDisplay
		return e.last
	}

	e.last = humanize.Comma(int64(n))
	return e.last
}

// CountTokens returns the number of significant JavaScript tokens in src.
// Whitespace, line terminators and comments are not counted.
func CountTokens(src string) (int, error) {
	n := 0
	err := Walk(src, func(Token) error {
		n++
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}
