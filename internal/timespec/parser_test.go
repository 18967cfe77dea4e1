package timespec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		want    time.Time
		wantErr bool
	}{
		{name: "duration", spec: "90m", want: now.Add(-90 * time.Minute)},
		{name: "compound duration", spec: "1h30m", want: now.Add(-90 * time.Minute)},
		{name: "rfc3339", spec: "2026-03-01T08:00:00Z", want: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)},
		{name: "empty", spec: "", wantErr: true},
		{name: "negative", spec: "-1h", wantErr: true},
		{name: "garbage", spec: "yesterday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.spec, now)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v want %v", got, tt.want)
		})
	}
}

func TestParseWindow(t *testing.T) {
	t.Run("open window", func(t *testing.T) {
		w, err := ParseWindow("", "", now)
		require.NoError(t, err)
		assert.True(t, w.Contains(time.Time{}))
		assert.True(t, w.Contains(now))
	})

	t.Run("since only", func(t *testing.T) {
		w, err := ParseWindow("1h", "", now)
		require.NoError(t, err)
		assert.False(t, w.Contains(now.Add(-2*time.Hour)))
		assert.True(t, w.Contains(now.Add(-30*time.Minute)))
	})

	t.Run("bounded", func(t *testing.T) {
		w, err := ParseWindow("2h", "1h", now)
		require.NoError(t, err)
		assert.False(t, w.Contains(now.Add(-3*time.Hour)))
		assert.True(t, w.Contains(now.Add(-90*time.Minute)))
		assert.False(t, w.Contains(now))
	})

	t.Run("inverted", func(t *testing.T) {
		_, err := ParseWindow("1h", "2h", now)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--since must be before --until")
	})

	t.Run("bad until", func(t *testing.T) {
		_, err := ParseWindow("", "soon", now)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid --until")
	})
}
