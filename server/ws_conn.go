package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/ducksouplab/framemixer/helpers"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// wsConnection is satisfied by *websocket.Conn and by test doubles
type wsConnection interface {
	ReadJSON(v interface{}) error
	WriteJSON(v interface{}) error
	Close() error
}

// makes writes to the underlying connection threadsafe
type wsConn struct {
	sync.Mutex
	conn      wsConnection
	id        string
	createdAt time.Time
	logger    zerolog.Logger
}

type messageOut struct {
	Kind    string      `json:"kind"`
	Payload interface{} `json:"payload"`
}

type messageIn struct {
	Kind    string `json:"kind"`
	Payload string `json:"payload"`
}

func newWsConn(conn wsConnection, kind string) *wsConn {
	id := helpers.NewID()
	return &wsConn{
		conn:      conn,
		id:        id,
		createdAt: time.Now(),
		logger:    log.With().Str("context", "ws").Str("kind", kind).Str("conn", id).Logger(),
	}
}

func (ws *wsConn) read() (m messageIn, err error) {
	err = ws.conn.ReadJSON(&m)

	if err != nil && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		ws.logger.Error().Err(err).Msg("read_json_failed")
	}
	return
}

func (ws *wsConn) send(kind string) error {
	return ws.sendWithPayload(kind, nil)
}

func (ws *wsConn) sendWithPayload(kind string, payload interface{}) error {
	ws.Lock()
	defer ws.Unlock()

	m := &messageOut{
		Kind:    kind,
		Payload: payload,
	}
	if err := ws.conn.WriteJSON(m); err != nil {
		ws.logger.Error().Err(err).Str("out", kind).Msg("json_write_failed")
		return err
	}
	return nil
}

func (ws *wsConn) sendError(err error) error {
	return ws.sendWithPayload("error", errorPayload{Message: err.Error()})
}

func (ws *wsConn) close() {
	ws.conn.Close()
	ws.logger.Debug().Dur("duration", time.Since(ws.createdAt)).Msg("ws_closed")
}

func (ws *wsConn) String() string {
	return fmt.Sprintf("ws#%s", ws.id)
}
