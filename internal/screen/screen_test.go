package screen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNavigation(t *testing.T) {
	tests := []struct {
		from     Screen
		previous Screen
		next     Screen
	}{
		{Boot, Home, Home},
		{Home, Home, Run},
		{Run, Home, Code},
		{Code, Run, Sprite},
		{Song, Chain, Help},
		{Help, Song, Help},
	}

	for _, tt := range tests {
		t.Run(tt.from.String(), func(t *testing.T) {
			assert.Equal(t, tt.previous, Previous(tt.from))
			assert.Equal(t, tt.next, Next(tt.from))
		})
	}
}

func TestNavigation_OutOfRangeIsTotal(t *testing.T) {
	assert.Equal(t, Home, Previous(Screen(99)))
	assert.Equal(t, Help, Next(Screen(99)))
	assert.Equal(t, Home, Next(Screen(-3)))
}

func TestParse(t *testing.T) {
	s, err := Parse("sprite")
	require.NoError(t, err)
	assert.Equal(t, Sprite, s)

	_, err = Parse("settings")
	assert.Error(t, err)
}

func TestRuns(t *testing.T) {
	assert.True(t, Runs(Boot))
	assert.True(t, Runs(Run))
	assert.False(t, Runs(Code))
}
