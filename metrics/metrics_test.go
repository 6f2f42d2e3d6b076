package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ducksouplab/framemixer/recording"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCompositorObserver(t *testing.T) {
	m := New()
	m.ComposeDone("preview", 4*time.Millisecond)
	m.FrameDropped("preview")
	m.FrameDropped("preview")
	m.SourceSkipped("recording", "camera")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.composeDropped.WithLabelValues("preview")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sourcesSkipped.WithLabelValues("recording", "camera")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.composeDuration))
}

func TestWriterObserver(t *testing.T) {
	t.Run("active recordings", func(t *testing.T) {
		m := New()
		w := m.Writer()
		w.StateChanged("a", recording.Started)
		w.StateChanged("b", recording.Started)
		assert.Equal(t, 2.0, testutil.ToFloat64(m.activeRecordings))

		w.StateChanged("a", recording.Appending)
		w.StateChanged("a", recording.Completed)
		w.StateChanged("b", recording.Cancelled)
		// never started
		w.StateChanged("c", recording.Cancelled)
		assert.Equal(t, 0.0, testutil.ToFloat64(m.activeRecordings))
		assert.Equal(t, 2.0, testutil.ToFloat64(m.writerStates.WithLabelValues("started")))
	})

	t.Run("drops by reason", func(t *testing.T) {
		m := New()
		w := m.Writer()
		w.FrameAccepted("a", 0)
		w.FrameDropped("a", recording.DropTooClose)
		w.AudioDropped("a", recording.DropNoSession)

		assert.Equal(t, 1.0, testutil.ToFloat64(m.framesAccepted))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.framesDropped.WithLabelValues(recording.DropTooClose)))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.audioDropped.WithLabelValues(recording.DropNoSession)))
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.SetPreviewSubscribers(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "framemixer_preview_subscribers 3")
}
