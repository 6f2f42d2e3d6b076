package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ducksouplab/framemixer/config"
	"github.com/ducksouplab/framemixer/recording"
	"github.com/ducksouplab/framemixer/studio"
	"github.com/spf13/cobra"
)

const startTimeout = 5 * time.Second

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record the composition to a file, without preview or server",
	RunE: func(cmd *cobra.Command, args []string) error {
		duration, _ := cmd.Flags().GetDuration("duration")
		name, _ := cmd.Flags().GetString("name")
		qualityFlag, _ := cmd.Flags().GetString("quality")
		orientationFlag, _ := cmd.Flags().GetString("orientation")

		quality, err := recording.ParseQuality(qualityFlag)
		if err != nil {
			return err
		}
		orientation, err := recording.ParseOrientation(orientationFlag)
		if err != nil {
			return err
		}

		a, err := newApp(cmd, false)
		if err != nil {
			return err
		}
		if err := a.start(); err != nil {
			return err
		}
		defer a.stop()

		startCtx, cancel := context.WithTimeout(context.Background(), startTimeout)
		defer cancel()
		w, err := a.studio.StartRecording(startCtx, studio.Request{Name: name, Quality: quality, Orientation: orientation})
		if err != nil {
			return err
		}
		fmt.Printf("recording %s to %s (%s)\n", w.ID(), w.Path(), w.Settings())

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if duration > 0 {
			var cancelDuration context.CancelFunc
			ctx, cancelDuration = context.WithTimeout(ctx, duration)
			defer cancelDuration()
		}
		<-ctx.Done()

		done := make(chan recording.Outcome, 1)
		if err := a.studio.FinishRecording(func(o recording.Outcome) { done <- o }); err != nil {
			return err
		}
		o := <-done
		if o.Err != nil {
			return fmt.Errorf("recording %s: %w", o.State, o.Err)
		}
		fmt.Printf("%s %s %v, %d frames (%d dropped)\n", o.State, o.Path, o.Duration, o.Stats.FramesAccepted, o.Stats.FramesDropped)
		return nil
	},
}

func init() {
	recordCmd.Flags().Duration("duration", 10*time.Second, "recording length, 0 records until interrupted")
	recordCmd.Flags().String("name", "", "recording name")
	recordCmd.Flags().String("out", "", "output directory, defaults to FRAMEMIXER_OUTPUT_DIR")
	recordCmd.Flags().String("quality", config.Engine.Recording.DefaultQuality, "medium or high")
	recordCmd.Flags().String("orientation", config.Engine.Recording.DefaultOrientation, "portrait, landscape or square")
	rootCmd.AddCommand(recordCmd)
}
