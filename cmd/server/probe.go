package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/spf13/cobra"
)

var (
	flagURL     string
	flagRoom    string
	flagToken   string
	flagTimeout time.Duration
	flagSend    string
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Join a room on a running server and print what arrives",
	Long: `Dial the signaling socket, join a room and print every frame received
until the timeout elapses. Useful as a smoke test.

Example:
  wiremeet probe --url ws://localhost:8080/ws --room lobby --timeout 10s`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runProbe(cmd.Context(), cmd)
	},
}

func init() {
	f := probeCmd.Flags()
	f.StringVar(&flagURL, "url", "ws://localhost:8080/ws", "signaling WebSocket URL")
	f.StringVar(&flagRoom, "room", "default", "room to join")
	f.StringVar(&flagToken, "token", "", "optional session token")
	f.DurationVar(&flagTimeout, "timeout", 5*time.Second, "how long to listen")
	f.StringVar(&flagSend, "send", "", "optional raw JSON frame to send after joining")
}

func runProbe(ctx context.Context, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, flagTimeout)
	defer cancel()

	u, err := url.Parse(flagURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	q := u.Query()
	q.Set("room", flagRoom)
	u.RawQuery = q.Encode()

	header := http.Header{}
	if flagToken != "" {
		header.Set("Authorization", "Bearer "+flagToken)
	}

	conn, _, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.CloseNow()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "connected to %s (room %q)\n", flagURL, flagRoom)

	if flagSend != "" {
		if err := conn.Write(ctx, websocket.MessageText, []byte(flagSend)); err != nil {
			return fmt.Errorf("send: %w", err)
		}
	}

	for {
		var frame map[string]any
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
				fmt.Fprintln(out, "timeout reached")
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		fmt.Fprintf(out, "received %v: %v\n", frame["type"], frame)
	}
}
