package plot

import (
	"image/color"
	"strings"

	"github.com/ducksouplab/framemixer/recording"
)

var (
	targetColor   = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	intervalColor = color.RGBA{R: 242, G: 151, B: 39, A: 255}
)

// drop reasons that point at the same bottleneck share a hue
var reasonColors = map[string]color.RGBA{
	recording.DropInFlight:       {R: 230, G: 25, B: 75, A: 255},
	recording.DropCompositorBusy: {R: 240, G: 50, B: 230, A: 255},
	recording.DropPoolExhausted:  {R: 145, G: 30, B: 180, A: 255},
	recording.DropQueueFull:      {R: 128, G: 0, B: 0, A: 255},
	recording.DropSinkNotReady:   {R: 0, G: 130, B: 200, A: 255},
	recording.DropSinkError:      {R: 0, G: 0, B: 128, A: 255},
	recording.DropTooClose:       {R: 60, G: 180, B: 75, A: 255},
	recording.DropInterrupted:    {R: 128, G: 128, B: 128, A: 255},
	recording.DropNotAppendable:  {R: 170, G: 110, B: 40, A: 255},
	recording.DropNoSession:      {R: 0, G: 128, B: 128, A: 255},
	recording.DropBeforeSession:  {R: 70, G: 240, B: 240, A: 255},
	recording.DropFinished:       {R: 0, G: 0, B: 0, A: 255},
}

// from https://sashamaps.net/docs/resources/20-colors/, for reasons
// missing above
var fallbackColors = []color.RGBA{
	{R: 255, G: 225, B: 25, A: 255},
	{R: 245, G: 130, B: 48, A: 255},
	{R: 210, G: 245, B: 60, A: 255},
	{R: 250, G: 190, B: 212, A: 255},
}

// colorForDrop takes a "video <reason>" or "audio <reason>" label
func colorForDrop(label string, index int) color.RGBA {
	reason := label[strings.LastIndex(label, " ")+1:]
	if c, ok := reasonColors[reason]; ok {
		return c
	}
	return fallbackColors[index%len(fallbackColors)]
}
