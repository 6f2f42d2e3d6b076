package plot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ducksouplab/framemixer/recording"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathFor(t *testing.T) {
	assert.Equal(t, "data/20240101-rec-frames.pdf", PathFor("data/20240101-rec.mp4"))
	assert.Equal(t, "rec-frames.pdf", PathFor("rec"))
}

func TestColorForDrop(t *testing.T) {
	assert.Equal(t, reasonColors[recording.DropTooClose], colorForDrop("video too_close", 0))
	assert.Equal(t, reasonColors[recording.DropNoSession], colorForDrop("audio no_session", 3))
	assert.Equal(t, fallbackColors[1], colorForDrop("video mystery", 5))
}

func TestRecordingPlot(t *testing.T) {
	t.Run("intervals start at the second frame", func(t *testing.T) {
		p := NewRecordingPlot(filepath.Join(t.TempDir(), "rec.mp4"), 33*time.Millisecond)
		for _, pts := range []time.Duration{0, 33, 66, 100} {
			p.FrameAccepted("w", pts*time.Millisecond)
		}
		assert.Equal(t, 3, p.Intervals())
	})

	t.Run("saved once on terminal state", func(t *testing.T) {
		p := NewRecordingPlot(filepath.Join(t.TempDir(), "rec.mp4"), 33*time.Millisecond)
		p.StateChanged("w", recording.Started)
		p.FrameAccepted("w", 0)
		p.FrameAccepted("w", 33*time.Millisecond)
		p.FrameDropped("w", recording.DropInFlight)
		p.AudioDropped("w", recording.DropNoSession)

		_, err := os.Stat(p.Path())
		assert.True(t, os.IsNotExist(err))

		p.StateChanged("w", recording.Completed)
		info, err := os.Stat(p.Path())
		require.NoError(t, err)
		assert.Positive(t, info.Size())

		require.NoError(t, os.Remove(p.Path()))
		require.NoError(t, p.Save())
		_, err = os.Stat(p.Path())
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("empty recording still saves", func(t *testing.T) {
		p := NewRecordingPlot(filepath.Join(t.TempDir(), "rec.mp4"), 33*time.Millisecond)
		require.NoError(t, p.Save())
		_, err := os.Stat(p.Path())
		assert.NoError(t, err)
	})
}
