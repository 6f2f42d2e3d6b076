package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "framemixer",
	Short: "framemixer composes a camera, images and views into a live preview and recordings",
	Long: `framemixer runs a compositor over layered sources (camera, still image,
rendered views, overlay annotations), serves a JPEG preview and control
over websockets, and records the composition to video files with GStreamer.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("image", "", "still image layered over the camera")
	rootCmd.PersistentFlags().Bool("mirror", false, "mirror the camera horizontally")
	rootCmd.PersistentFlags().Bool("guides", false, "draw framing guides in the overlay")
}
