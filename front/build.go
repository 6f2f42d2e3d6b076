// Package front bundles the control page assets with esbuild
package front

import (
	"github.com/ducksouplab/framemixer/env"
	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog/log"
)

const outdir = "front/static/assets"

var entryPoints = []string{
	"front/src/js/control.js",
	"front/src/css/control.css",
}

func shouldBuild() bool {
	return env.Mode == "DEV" || env.Mode == "FRONT_BUILD"
}

func options() api.BuildOptions {
	devMode := env.Mode == "DEV"
	return api.BuildOptions{
		EntryPoints:       entryPoints,
		EntryNames:        "[ext]/[name]",
		Bundle:            true,
		MinifyWhitespace:  !devMode,
		MinifyIdentifiers: !devMode,
		MinifySyntax:      !devMode,
		Engines: []api.Engine{
			{Name: api.EngineChrome, Version: "64"},
			{Name: api.EngineFirefox, Version: "53"},
			{Name: api.EngineSafari, Version: "11"},
			{Name: api.EngineEdge, Version: "79"},
		},
		Outdir:  outdir,
		Plugins: []api.Plugin{reportPlugin},
		Write:   true,
	}
}

var reportPlugin = api.Plugin{
	Name: "report",
	Setup: func(build api.PluginBuild) {
		build.OnEnd(func(result *api.BuildResult) (api.OnEndResult, error) {
			for _, msg := range result.Errors {
				log.Error().Str("context", "js_build").Msg(msg.Text)
			}
			for _, msg := range result.Warnings {
				log.Info().Str("context", "js_build").Msg(msg.Text)
			}
			if len(result.Errors) == 0 {
				log.Info().Str("context", "js_build").Msg("build_success")
			}
			return api.OnEndResult{}, nil
		})
	},
}

// Build only runs in DEV (watching) or FRONT_BUILD mode, production serves
// the committed assets
func Build() {
	if !shouldBuild() {
		return
	}
	if env.Mode == "DEV" {
		ctx, err := api.Context(options())
		if err != nil {
			log.Fatal().Err(err).Msg("js_build_failed")
		}
		if err := ctx.Watch(api.WatchOptions{}); err != nil {
			log.Fatal().Err(err).Msg("js_build_failed")
		}
		return
	}
	api.Build(options())
}
