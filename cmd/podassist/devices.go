package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/podassist/podassist/internal/audio"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List input-capable audio devices",
	Long: "Lists every input-capable audio device. Loopback devices (Stereo Mix,\n" +
		"monitor sources) are listed first; they capture the podcast audio itself.",
	RunE: func(cmd *cobra.Command, args []string) error {
		devices, err := audio.ListDevices()
		if err != nil {
			return fmt.Errorf("failed to list devices: %w", err)
		}
		if len(devices) == 0 {
			fmt.Println("No input-capable devices found")
			return nil
		}

		for _, dev := range devices {
			marker := " "
			if dev.IsLoopback {
				marker = "*"
			}
			suffix := ""
			if dev.IsDefault {
				suffix = " [default]"
			}
			fmt.Printf("%s %s%s\n", marker, dev.Label(), suffix)
		}
		fmt.Println("\n* loopback-like device (captures system audio)")
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("podassist " + version)
	},
}
