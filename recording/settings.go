package recording

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrUnknownSetting = errors.New("unknown recording setting")

type Quality int

const (
	Medium Quality = iota
	High
)

type Orientation int

const (
	Portrait Orientation = iota
	Landscape
	Square
)

func (q Quality) String() string {
	if q == High {
		return "high"
	}
	return "medium"
}

func (o Orientation) String() string {
	switch o {
	case Landscape:
		return "landscape"
	case Square:
		return "square"
	}
	return "portrait"
}

func (q Quality) MarshalText() ([]byte, error) {
	return []byte(q.String()), nil
}

func (o Orientation) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func ParseQuality(s string) (Quality, error) {
	switch strings.ToLower(s) {
	case "medium":
		return Medium, nil
	case "high":
		return High, nil
	}
	return Medium, fmt.Errorf("%w: quality %q", ErrUnknownSetting, s)
}

func ParseOrientation(s string) (Orientation, error) {
	switch strings.ToLower(s) {
	case "portrait":
		return Portrait, nil
	case "landscape":
		return Landscape, nil
	case "square":
		return Square, nil
	}
	return Portrait, fmt.Errorf("%w: orientation %q", ErrUnknownSetting, s)
}

// Settings is the output file contract for one (quality, orientation) pair
type Settings struct {
	Quality      Quality
	Orientation  Orientation
	Width        int
	Height       int
	VideoBitrate int
	AudioBitrate int
	SampleRate   int
	Channels     int
	FrameRate    int
	// MaxKeyframeInterval is the longest distance between two keyframes
	MaxKeyframeInterval  time.Duration
	AllowFrameReordering bool
}

const (
	mediumLong    = 1280
	mediumShort   = 720
	mediumBitrate = 1_572_864
	highLong      = 1920
	highShort     = 1080
	highBitrate   = 2_621_440

	audioBitrate    = 64_000
	audioSampleRate = 44_100
	audioChannels   = 1
	frameRate       = 30
)

func SettingsFor(q Quality, o Orientation) Settings {
	long, short, bitrate := mediumLong, mediumShort, mediumBitrate
	if q == High {
		long, short, bitrate = highLong, highShort, highBitrate
	}
	var w, h int
	switch o {
	case Landscape:
		w, h = long, short
	case Square:
		w, h = short, short
	default:
		w, h = short, long
	}
	return Settings{
		Quality:              q,
		Orientation:          o,
		Width:                w,
		Height:               h,
		VideoBitrate:         bitrate,
		AudioBitrate:         audioBitrate,
		SampleRate:           audioSampleRate,
		Channels:             audioChannels,
		FrameRate:            frameRate,
		MaxKeyframeInterval:  time.Second,
		AllowFrameReordering: true,
	}
}

// KeyframeIntervalFrames expresses MaxKeyframeInterval in frames
func (s Settings) KeyframeIntervalFrames() int {
	return int(s.MaxKeyframeInterval * time.Duration(s.FrameRate) / time.Second)
}

func (s Settings) FrameInterval() time.Duration {
	return time.Second / time.Duration(s.FrameRate)
}

func (s Settings) Validate() error {
	if s.Width <= 0 || s.Height <= 0 || s.FrameRate <= 0 || s.SampleRate <= 0 || s.Channels <= 0 {
		return fmt.Errorf("%w: %+v", ErrUnknownSetting, s)
	}
	return nil
}

func (s Settings) String() string {
	return fmt.Sprintf("%s/%s %dx%d@%d %dbps audio %dbps %dHz x%d",
		s.Quality, s.Orientation, s.Width, s.Height, s.FrameRate, s.VideoBitrate, s.AudioBitrate, s.SampleRate, s.Channels)
}
