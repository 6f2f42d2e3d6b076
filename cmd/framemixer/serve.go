package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ducksouplab/framemixer/config"
	"github.com/ducksouplab/framemixer/env"
	"github.com/ducksouplab/framemixer/front"
	"github.com/ducksouplab/framemixer/server"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the preview and recording control over websockets",
	RunE: func(cmd *cobra.Command, args []string) error {
		cert, _ := cmd.Flags().GetString("cert")
		key, _ := cmd.Flags().GetString("key")

		front.Build()

		a, err := newApp(cmd, true)
		if err != nil {
			return err
		}
		if err := a.start(); err != nil {
			log.Error().Str("context", "app").Err(err).Msg("capture_start_failed")
		}
		defer a.stop()

		srv := server.New(a.studio, server.Options{
			Port:      env.Port,
			Prefix:    env.WebPrefix,
			Login:     env.TestLogin,
			Password:  env.TestPassword,
			Metrics:   a.metrics.Handler(),
			Recording: config.Engine.Recording,
			Cert:      cert,
			Key:       key,
		})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return srv.ListenAndServe(ctx)
	},
}

func init() {
	serveCmd.Flags().String("cert", "", "TLS certificate file")
	serveCmd.Flags().String("key", "", "TLS key file")
	rootCmd.AddCommand(serveCmd)
}
