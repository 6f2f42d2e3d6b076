package gst

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"github.com/ducksouplab/framemixer/config"
	"github.com/ducksouplab/framemixer/recording"
)

type recordingData struct {
	Settings     recording.Settings
	Path         string
	VideoEncoder string
	VideoParser  string
	AudioEncoder string
	AudioParser  string
	Muxer        string
}

type captureData struct {
	VideoSource string
	AudioSource string
	Width       int
	Height      int
	SampleRate  int
	Channels    int
}

// videoEncoder translates settings into encoder properties for the known
// elements; other elements are used as given in config
func videoEncoder(element string, s recording.Settings) string {
	kbps := s.VideoBitrate / 1000
	switch element {
	case "x264enc":
		out := fmt.Sprintf("x264enc bitrate=%d key-int-max=%d speed-preset=veryfast", kbps, s.KeyframeIntervalFrames())
		if s.AllowFrameReordering {
			return out + " bframes=2"
		}
		return out + " bframes=0 tune=zerolatency"
	case "nvh264enc":
		return fmt.Sprintf("nvh264enc bitrate=%d gop-size=%d zerolatency=%t", kbps, s.KeyframeIntervalFrames(), !s.AllowFrameReordering)
	case "vtenc_h264", "vtenc_h264_hw":
		return fmt.Sprintf("%s bitrate=%d max-keyframe-interval=%d allow-frame-reordering=%t realtime=true", element, kbps, s.KeyframeIntervalFrames(), s.AllowFrameReordering)
	default:
		return element
	}
}

func audioEncoder(element string, s recording.Settings) string {
	switch element {
	case "avenc_aac", "fdkaacenc", "voaacenc":
		return fmt.Sprintf("%s bitrate=%d", element, s.AudioBitrate)
	default:
		return element
	}
}

func newRecordingDef(path string, s recording.Settings, enc config.EncoderConfig) (string, error) {
	data := recordingData{
		Settings:     s,
		Path:         strings.ReplaceAll(path, `"`, `\"`),
		VideoEncoder: videoEncoder(enc.Video, s),
		VideoParser:  "h264parse",
		AudioEncoder: audioEncoder(enc.Audio, s),
		AudioParser:  "aacparse",
		Muxer:        enc.Muxer,
	}
	var buf bytes.Buffer
	if err := recordingTemplater.Execute(&buf, data); err != nil {
		return "", err
	}
	return formatDef(buf.String()), nil
}

func newCaptureDef(c config.CaptureConfig, sampleRate, channels int) (string, error) {
	data := captureData{
		VideoSource: c.VideoSource,
		AudioSource: c.AudioSource,
		Width:       c.Width,
		Height:      c.Height,
		SampleRate:  sampleRate,
		Channels:    channels,
	}
	var buf bytes.Buffer
	if err := captureTemplater.Execute(&buf, data); err != nil {
		return "", err
	}
	return formatDef(buf.String()), nil
}

// formatDef trims lines and removes blank ones
func formatDef(def string) string {
	var formatted bytes.Buffer
	scanner := bufio.NewScanner(strings.NewReader(def))
	for scanner.Scan() {
		trimmed := strings.TrimSpace(scanner.Text())
		if len(trimmed) > 0 {
			formatted.WriteString(trimmed + "\n")
		}
	}
	return formatted.String()
}
