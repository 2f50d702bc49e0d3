package main

import (
	"github.com/spf13/cobra"
)

var (
	flagConfig   string
	flagAddr     string
	flagLogLevel string
	flagDB       string
)

var rootCmd = &cobra.Command{
	Use:   "wiremeet",
	Short: "WebRTC signaling and room coordination server",
	Long: `wiremeet relays WebRTC offers, answers and ICE candidates between browsers
in the same room, broadcasts whiteboard and avatar updates, and records who
attended which meeting.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "path to config file (default config.yaml)")
	pf.StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&flagAddr, "addr", "", "HTTP listen address")
	pf.StringVar(&flagDB, "db", "", "SQLite database path")

	rootCmd.AddCommand(serveCmd, tokenCmd, probeCmd)
}
