package server

import (
	"sync"

	"github.com/ducksouplab/framemixer/studio"
	"github.com/rs/zerolog/log"
)

const hubBuffer = 16

// hub fans studio events out to control connections
type hub struct {
	sync.Mutex
	index map[string]chan studio.Event
}

func newHub() *hub {
	return &hub{sync.Mutex{}, make(map[string]chan studio.Event)}
}

func (h *hub) join(id string) <-chan studio.Event {
	h.Lock()
	defer h.Unlock()

	ch := make(chan studio.Event, hubBuffer)
	h.index[id] = ch
	return ch
}

func (h *hub) leave(id string) {
	h.Lock()
	defer h.Unlock()

	if ch, ok := h.index[id]; ok {
		close(ch)
		delete(h.index, id)
	}
}

// broadcast drops events for connections that do not keep up
func (h *hub) broadcast(e studio.Event) {
	h.Lock()
	defer h.Unlock()

	for id, ch := range h.index {
		select {
		case ch <- e:
		default:
			log.Warn().Str("context", "hub").Str("conn", id).Str("event", string(e.Kind)).Msg("event_dropped")
		}
	}
}

func (h *hub) size() int {
	h.Lock()
	defer h.Unlock()

	return len(h.index)
}
