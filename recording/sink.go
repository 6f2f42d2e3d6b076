package recording

import "time"

// PixelBuffer holds one RGBA frame (premultiplied alpha)
type PixelBuffer struct {
	Data   []byte
	Width  int
	Height int
	Stride int
}

func NewPixelBuffer(width, height int) *PixelBuffer {
	return &PixelBuffer{
		Data:   make([]byte, width*height*4),
		Width:  width,
		Height: height,
		Stride: width * 4,
	}
}

// AudioSample is interleaved signed 16-bit little-endian PCM
type AudioSample struct {
	Data       []byte
	SampleRate int
	Channels   int
	// Timestamp is host time, on the writer clock
	Timestamp time.Duration
}

func (a AudioSample) Duration() time.Duration {
	if a.SampleRate <= 0 || a.Channels <= 0 {
		return 0
	}
	frames := len(a.Data) / (2 * a.Channels)
	return time.Duration(frames) * time.Second / time.Duration(a.SampleRate)
}

// Sink encodes and muxes into a container file. Start, AppendVideo,
// AppendAudio, Finish and Cancel are always called from one goroutine at a
// time; the Ready methods may be called concurrently with them. Buffers are
// only borrowed for the duration of an Append call.
type Sink interface {
	Start(path string, s Settings) error
	ReadyForVideo() bool
	ReadyForAudio() bool
	AppendVideo(buf *PixelBuffer, pts time.Duration) error
	AppendAudio(sample AudioSample, pts time.Duration) error
	// Finish flushes and finalizes the container
	Finish() error
	// Cancel abandons the output and removes any partial file
	Cancel() error
}
