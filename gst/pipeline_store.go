package gst

import (
	"sync"

	"github.com/rs/zerolog/log"
)

var (
	// package singleton, tracks every running pipeline
	pipelines *pipelineStore
)

type stoppable interface {
	ID() string
	stop()
}

type pipelineStore struct {
	sync.Mutex
	index map[string]stoppable
}

func init() {
	pipelines = newPipelineStore()
}

func newPipelineStore() *pipelineStore {
	return &pipelineStore{sync.Mutex{}, make(map[string]stoppable)}
}

func (ps *pipelineStore) add(p stoppable) {
	ps.Lock()
	defer ps.Unlock()

	ps.index[p.ID()] = p
}

func (ps *pipelineStore) find(id string) (p stoppable, ok bool) {
	ps.Lock()
	defer ps.Unlock()

	p, ok = ps.index[id]
	return
}

func (ps *pipelineStore) delete(id string) {
	ps.Lock()
	defer ps.Unlock()

	if _, ok := ps.index[id]; ok {
		log.Debug().Str("context", "gst").Str("pipeline", id).Msg("pipeline_deleted")
	}
	delete(ps.index, id)
}

func (ps *pipelineStore) count() int {
	ps.Lock()
	defer ps.Unlock()

	return len(ps.index)
}

// StopAll tears down every running pipeline, on shutdown
func StopAll() {
	pipelines.Lock()
	all := make([]stoppable, 0, len(pipelines.index))
	for _, p := range pipelines.index {
		all = append(all, p)
	}
	pipelines.Unlock()

	for _, p := range all {
		p.stop()
		pipelines.delete(p.ID())
	}
}
