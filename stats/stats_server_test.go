package stats

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/silently/wsmock"
)

func TestRunStatsServer(t *testing.T) {
	t.Run("sends updates", func(t *testing.T) {
		var calls atomic.Int64
		conn, rec := wsmock.NewGorillaMockAndRecorder(t)
		go RunStatsServerEvery(conn, func() interface{} {
			return map[string]int64{"calls": calls.Add(1)}
		}, 10*time.Millisecond)
		rec.NewAssertion().OneToContain("update")
		rec.NewAssertion().OneToContain(`"calls":2`)
		rec.RunAssertions(1000 * time.Millisecond)
	})
}
