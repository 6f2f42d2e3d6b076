// Package store indexes the recordings made since the process started
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	recordingIndexSingleton *recordingIndex
)

type Recording struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Settings  string    `json:"settings"`
	State     string    `json:"state"`
	Error     string    `json:"error,omitempty"`
	PlotPath  string    `json:"plotPath,omitempty"`
	StartedAt time.Time `json:"startedAt"`
	// Duration is the pts of the last accepted frame
	Duration time.Duration `json:"duration"`
}

type recordingIndex struct {
	sync.Mutex
	index map[string]*Recording
}

func init() {
	recordingIndexSingleton = newRecordingIndex()
}

func newRecordingIndex() *recordingIndex {
	return &recordingIndex{sync.Mutex{}, make(map[string]*Recording)}
}

func AddRecording(r Recording) {
	recordingIndexSingleton.Lock()
	defer recordingIndexSingleton.Unlock()

	if _, ok := recordingIndexSingleton.index[r.ID]; ok {
		log.Error().
			Str("context", "store").
			Str("recording", r.ID).
			Msg("recording_index_failed")
		return
	}
	recordingIndexSingleton.index[r.ID] = &r
}

// UpdateRecording applies fn to the stored entry, if any
func UpdateRecording(id string, fn func(r *Recording)) bool {
	recordingIndexSingleton.Lock()
	defer recordingIndexSingleton.Unlock()

	entry, ok := recordingIndexSingleton.index[id]
	if ok {
		fn(entry)
	}
	return ok
}

func GetRecording(id string) (Recording, bool) {
	recordingIndexSingleton.Lock()
	defer recordingIndexSingleton.Unlock()

	if entry, ok := recordingIndexSingleton.index[id]; ok {
		return *entry, true
	}
	return Recording{}, false
}

// ListRecordings returns copies, most recent first
func ListRecordings() []Recording {
	recordingIndexSingleton.Lock()
	defer recordingIndexSingleton.Unlock()

	list := make([]Recording, 0, len(recordingIndexSingleton.index))
	for _, entry := range recordingIndexSingleton.index {
		list = append(list, *entry)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].StartedAt.After(list[j].StartedAt)
	})
	return list
}

func RemoveRecording(id string) {
	recordingIndexSingleton.Lock()
	defer recordingIndexSingleton.Unlock()

	delete(recordingIndexSingleton.index, id)
}
