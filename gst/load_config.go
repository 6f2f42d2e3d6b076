package gst

import (
	"text/template"

	"github.com/ducksouplab/framemixer/helpers"
	"github.com/rs/zerolog/log"
)

const (
	recordingTemplateFile = "config/pipelines/recording.gtpl"
	captureTemplateFile   = "config/pipelines/capture.gtpl"
)

var recordingTemplater, captureTemplater *template.Template

func init() {
	recordingTemplater = loadTemplate("recording", recordingTemplateFile, defaultRecordingTemplate)
	captureTemplater = loadTemplate("capture", captureTemplateFile, defaultCaptureTemplate)
}

// loadTemplate prefers the file below the config root when there is one
func loadTemplate(name, file, fallback string) *template.Template {
	text := fallback
	if helpers.FileExists(file) {
		contents, err := helpers.ReadFile(file)
		if err != nil {
			log.Fatal().Err(err).Str("file", file).Msg("app_crashed")
		}
		text = contents
		log.Info().Str("context", "init").Str("file", file).Msg("gst_template_loaded")
	}
	return template.Must(template.New(name).Parse(text))
}

const defaultRecordingTemplate = `
appsrc name=video_src is-live=true format=time do-timestamp=false
	caps=video/x-raw,format=RGBA,width={{.Settings.Width}},height={{.Settings.Height}},framerate={{.Settings.FrameRate}}/1 !
queue !
videoconvert !
video/x-raw,format=I420 !
{{.VideoEncoder}} !
{{.VideoParser}} !
mux.

appsrc name=audio_src is-live=true format=time do-timestamp=false
	caps=audio/x-raw,format=S16LE,layout=interleaved,rate={{.Settings.SampleRate}},channels={{.Settings.Channels}} !
queue !
audioconvert !
audioresample !
{{.AudioEncoder}} !
{{.AudioParser}} !
mux.

{{.Muxer}} name=mux !
filesink location="{{.Path}}"
`

const defaultCaptureTemplate = `
{{.VideoSource}} !
videoconvert !
videoscale !
video/x-raw,format=RGBA,width={{.Width}},height={{.Height}} !
appsink name=video_sink max-buffers=1 drop=true sync=false

{{if .AudioSource}}
{{.AudioSource}} !
audioconvert !
audioresample !
audio/x-raw,format=S16LE,layout=interleaved,rate={{.SampleRate}},channels={{.Channels}} !
appsink name=audio_sink max-buffers=8 drop=true sync=false
{{end}}
`
