package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ducksouplab/framemixer/config"
	"github.com/ducksouplab/framemixer/preview"
	"github.com/ducksouplab/framemixer/recording"
	"github.com/ducksouplab/framemixer/studio"
)

const (
	startTimeout  = 5 * time.Second
	cancelTimeout = 5 * time.Second
	maxFade       = 60 * time.Second
)

// Studio is what the websocket endpoints drive
type Studio interface {
	StartRecording(ctx context.Context, req studio.Request) (*recording.Writer, error)
	FinishRecording(callback func(recording.Outcome)) error
	CancelRecording(ctx context.Context) error
	SignalInterruption() error
	ClearInterruption() error
	Fade(ctx context.Context, layer string, opacity float64, duration time.Duration) (<-chan struct{}, error)
	Subscribe() (string, <-chan preview.Frame, error)
	Unsubscribe(id string)
	Stats() studio.Stats
	OnEvent(fn func(studio.Event))
}

type startPayload struct {
	Quality     string `json:"quality"`
	Orientation string `json:"orientation"`
	Name        string `json:"name"`
}

type startedPayload struct {
	WriterID string             `json:"writerId"`
	Path     string             `json:"path"`
	Settings recording.Settings `json:"settings"`
}

type fadePayload struct {
	Layer    string  `json:"layer"`
	Opacity  float64 `json:"opacity"`
	Duration int     `json:"duration"` // ms
}

type errorPayload struct {
	Message string `json:"message"`
}

// parseStart falls back to configured defaults for empty fields
func parseStart(raw string, defaults config.RecordingConfig) (studio.Request, error) {
	var p startPayload
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return studio.Request{}, fmt.Errorf("invalid start payload: %w", err)
		}
	}
	if p.Quality == "" {
		p.Quality = defaults.DefaultQuality
	}
	if p.Orientation == "" {
		p.Orientation = defaults.DefaultOrientation
	}
	q, err := recording.ParseQuality(p.Quality)
	if err != nil {
		return studio.Request{}, err
	}
	o, err := recording.ParseOrientation(p.Orientation)
	if err != nil {
		return studio.Request{}, err
	}
	return studio.Request{Name: p.Name, Quality: q, Orientation: o}, nil
}

func parseFade(raw string) (fadePayload, error) {
	var p fadePayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return p, fmt.Errorf("invalid fade payload: %w", err)
	}
	if p.Duration < 0 || time.Duration(p.Duration)*time.Millisecond > maxFade {
		return p, fmt.Errorf("invalid fade duration: %d", p.Duration)
	}
	return p, nil
}

// RunControlServer reads commands until the connection closes; recording
// events of the studio are pushed to every control connection
func RunControlServer(st Studio, events *hub, defaults config.RecordingConfig, conn wsConnection) {
	ws := newWsConn(conn, "control")
	defer ws.close()

	ch := events.join(ws.id)
	defer events.leave(ws.id)
	go func() {
		for e := range ch {
			ws.sendWithPayload(string(e.Kind), e)
		}
	}()

	ws.logger.Info().Msg("control_connected")
	for {
		m, err := ws.read()
		if err != nil {
			break
		}
		handleControl(st, defaults, ws, m)
	}
	ws.logger.Info().Msg("control_disconnected")
}

func handleControl(st Studio, defaults config.RecordingConfig, ws *wsConn, m messageIn) {
	switch m.Kind {
	case "start":
		req, err := parseStart(m.Payload, defaults)
		if err != nil {
			ws.sendError(err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
		defer cancel()
		w, err := st.StartRecording(ctx, req)
		if err != nil {
			ws.sendError(err)
			return
		}
		ws.sendWithPayload("recording", startedPayload{WriterID: w.ID(), Path: w.Path(), Settings: w.Settings()})
	case "finish":
		// the outcome is pushed as a "finished" event
		if err := st.FinishRecording(nil); err != nil {
			ws.sendError(err)
		}
	case "cancel":
		ctx, cancel := context.WithTimeout(context.Background(), cancelTimeout)
		defer cancel()
		if err := st.CancelRecording(ctx); err != nil {
			ws.sendError(err)
		}
	case "interrupt":
		if err := st.SignalInterruption(); err != nil {
			ws.sendError(err)
			return
		}
		ws.send("interrupted")
	case "resume":
		if err := st.ClearInterruption(); err != nil {
			ws.sendError(err)
			return
		}
		ws.send("resumed")
	case "fade":
		p, err := parseFade(m.Payload)
		if err != nil {
			ws.sendError(err)
			return
		}
		done, err := st.Fade(context.Background(), p.Layer, p.Opacity, time.Duration(p.Duration)*time.Millisecond)
		if err != nil {
			ws.sendError(err)
			return
		}
		go func() {
			<-done
			ws.sendWithPayload("faded", p)
		}()
	case "stats":
		ws.sendWithPayload("stats", st.Stats())
	default:
		ws.sendError(fmt.Errorf("unknown message kind: %q", m.Kind))
	}
}
