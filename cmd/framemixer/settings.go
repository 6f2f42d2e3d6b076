package main

import (
	"fmt"

	"github.com/ducksouplab/framemixer/recording"
	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Print the output settings for every quality and orientation",
	Run: func(cmd *cobra.Command, args []string) {
		for _, q := range []recording.Quality{recording.Medium, recording.High} {
			for _, o := range []recording.Orientation{recording.Portrait, recording.Landscape, recording.Square} {
				fmt.Printf("%-6s %-9s %s\n", q, o, recording.SettingsFor(q, o))
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(settingsCmd)
}
