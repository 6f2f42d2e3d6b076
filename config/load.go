package config

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ducksouplab/framemixer/helpers"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v2"
)

const engineFile = "config/engine.yml"

var (
	ErrInvalidFrameRate = errors.New("frame rate must be positive")
	ErrInvalidPoolSize  = errors.New("pool size must be positive")
	ErrInvalidPreview   = errors.New("preview rate and size must be positive")
)

type EngineConfig struct {
	Recording RecordingConfig
	Preview   PreviewConfig
	Encoder   EncoderConfig
	Capture   CaptureConfig
}

type RecordingConfig struct {
	FrameRate          int    `yaml:"frameRate"`
	MinFrameDeltaMs    int    `yaml:"minFrameDeltaMs"`
	PoolSize           int    `yaml:"poolSize"`
	QueueSize          int    `yaml:"queueSize"`
	DefaultQuality     string `yaml:"defaultQuality"`
	DefaultOrientation string `yaml:"defaultOrientation"`
	Extension          string `yaml:"extension"`
}

type PreviewConfig struct {
	FrameRate   int `yaml:"frameRate"`
	Width       int `yaml:"width"`
	Height      int `yaml:"height"`
	JPEGQuality int `yaml:"jpegQuality"`
}

type EncoderConfig struct {
	Video string `yaml:"video"`
	Audio string `yaml:"audio"`
	Muxer string `yaml:"muxer"`
}

type CaptureConfig struct {
	VideoSource string `yaml:"videoSource"`
	AudioSource string `yaml:"audioSource"`
	Width       int    `yaml:"width"`
	Height      int    `yaml:"height"`
}

var Engine EngineConfig

func init() {
	Engine = Defaults()
	if !helpers.FileExists(engineFile) {
		log.Info().Str("context", "init").Msg("engine_config_defaults")
		return
	}
	f, err := helpers.Open(engineFile)
	if err != nil {
		log.Fatal().Err(err).Msg("app_crashed")
	}
	defer f.Close()

	if Engine, err = Decode(f); err != nil {
		log.Fatal().Err(err).Msg("app_crashed")
	}
	log.Info().Str("context", "init").Str("config", fmt.Sprintf("%+v", Engine)).Msg("engine_config_loaded")
}

func Defaults() EngineConfig {
	c := EngineConfig{}
	c.Recording = RecordingConfig{
		FrameRate:          30,
		MinFrameDeltaMs:    10,
		PoolSize:           4,
		QueueSize:          64,
		DefaultQuality:     "medium",
		DefaultOrientation: "portrait",
		Extension:          "mp4",
	}
	c.Preview = PreviewConfig{FrameRate: 15, Width: 360, Height: 640, JPEGQuality: 70}
	c.Encoder = EncoderConfig{Video: "x264enc", Audio: "avenc_aac", Muxer: "mp4mux"}
	c.Capture = CaptureConfig{VideoSource: "autovideosrc", AudioSource: "autoaudiosrc", Width: 1280, Height: 720}
	return c
}

// Decode reads yml on top of defaults, so partial files are valid
func Decode(r io.Reader) (EngineConfig, error) {
	c := Defaults()
	if err := yaml.NewDecoder(r).Decode(&c); err != nil && err != io.EOF {
		return c, fmt.Errorf("decode engine config: %w", err)
	}
	return c, c.Validate()
}

func (c EngineConfig) Validate() error {
	if c.Recording.FrameRate <= 0 {
		return ErrInvalidFrameRate
	}
	if c.Recording.PoolSize <= 0 || c.Recording.QueueSize <= 0 {
		return ErrInvalidPoolSize
	}
	if c.Preview.FrameRate <= 0 || c.Preview.Width <= 0 || c.Preview.Height <= 0 {
		return ErrInvalidPreview
	}
	return nil
}

func (r RecordingConfig) FrameInterval() time.Duration {
	return time.Second / time.Duration(r.FrameRate)
}

func (r RecordingConfig) MinFrameDelta() time.Duration {
	return time.Duration(r.MinFrameDeltaMs) * time.Millisecond
}

func (p PreviewConfig) FrameInterval() time.Duration {
	return time.Second / time.Duration(p.FrameRate)
}
