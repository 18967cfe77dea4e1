package tokens

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dyluth/playbox/internal/program"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingTokenizer records how often the estimator reaches the tokenizer.
type countingTokenizer struct {
	calls int
	err   error
}

func (c *countingTokenizer) tokenize(src string) (int, error) {
	c.calls++
	if c.err != nil {
		return 0, c.err
	}
	return len(src), nil
}

func newTestEstimator(t *testing.T) (*Estimator, *clock.Mock, *countingTokenizer) {
	t.Helper()
	mock := clock.NewMock()
	counter := &countingTokenizer{}
	e := NewEstimator(mock, time.Second)
	e.tokenize = counter.tokenize
	return e, mock, counter
}

func TestCountTokens(t *testing.T) {
	n, err := CountTokens("var x = 1;")
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = CountTokens("// only a comment\n\n   ")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestCountTokens_RegexLiterals(t *testing.T) {
	tests := []struct {
		src  string
		want int
	}{
		{"var r = /\"/;", 5},
		{"var r = /window/g.test(s)", 9},
		{"x = a / b / c", 7},
		{"x /= 2", 3},
		{"return /a/", 2},
		{"s.replace(/[\\/]/g, '')", 8},
		{"f(a) / 2", 6},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			n, err := CountTokens(tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestCountTokens_Unterminated(t *testing.T) {
	_, err := CountTokens("var s = \"open")
	assert.Error(t, err)

	e := NewEstimator(clock.NewMock(), time.Second)
	assert.Equal(t, ErrorDisplay, e.Estimate(program.FromFragments("var s = \"open")))
}

func TestWalk_Positions(t *testing.T) {
	var got []Token
	err := Walk("a =\n  /b/", func(tok Token) error {
		got = append(got, tok)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].Text)
	assert.Equal(t, "/b/", got[2].Text)
	assert.Equal(t, 2, got[2].Line)
	assert.Equal(t, 3, got[2].Col)
}

func TestEstimate_FormatsWithGrouping(t *testing.T) {
	e := NewEstimator(clock.NewMock(), time.Second)
	src := strings.Repeat("x;", 600) // 1200 tokens
	assert.Equal(t, "1,200", e.Estimate(program.FromFragments(src)))
}

func TestEstimate_RateLimited(t *testing.T) {
	e, mock, counter := newTestEstimator(t)

	first := e.Estimate(program.FromFragments("abc"))
	assert.Equal(t, "3", first)

	// Differing and identical inputs inside the window get the stale value.
	for i := 0; i < 49; i++ {
		mock.Add(10 * time.Millisecond)
		assert.Equal(t, "3", e.Estimate(program.FromFragments(strings.Repeat("y", i+10))))
	}
	assert.Equal(t, "3", e.Estimate(program.FromFragments("abc")))
	assert.Equal(t, 1, counter.calls)

	mock.Add(time.Second)
	assert.Equal(t, "5", e.Estimate(program.FromFragments("abcde")))
	assert.Equal(t, 2, counter.calls)
}

func TestEstimate_AtMostOncePerWindow(t *testing.T) {
	e, mock, counter := newTestEstimator(t)

	// 5 seconds of calls every 50ms.
	for i := 0; i < 100; i++ {
		e.Estimate(program.FromFragments("x"))
		mock.Add(50 * time.Millisecond)
	}
	assert.LessOrEqual(t, counter.calls, 5)
	assert.GreaterOrEqual(t, counter.calls, 4)
}

func TestEstimate_ErrorSentinel(t *testing.T) {
	e, _, counter := newTestEstimator(t)
	counter.err = errors.New("unexpected token")

	assert.Equal(t, "ERROR", e.Estimate(program.FromFragments("var")))
}
