// Package stats pushes periodic snapshots over a websocket
package stats

import (
	"time"

	"github.com/rs/zerolog/log"
)

const (
	period = 900 * time.Millisecond
)

type messageOut struct {
	Kind    string      `json:"kind"`
	Payload interface{} `json:"payload"`
}

type conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// RunStatsServer writes an "update" message every period until a write
// fails; inspect returning nil skips the tick
func RunStatsServer(ws conn, inspect func() interface{}) {
	RunStatsServerEvery(ws, inspect, period)
}

func RunStatsServerEvery(ws conn, inspect func() interface{}, every time.Duration) {
	defer ws.Close()

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for range ticker.C {
		payload := inspect()
		if payload != nil {
			m := &messageOut{Kind: "update", Payload: payload}
			if err := ws.WriteJSON(m); err != nil {
				log.Debug().Str("context", "stats").Err(err).Msg("stats_write_stopped")
				return
			}
		}
	}
}
