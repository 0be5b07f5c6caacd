package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/coder/websocket"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/abishchhetri-svg/Tasks/internal/config"
	"github.com/abishchhetri-svg/Tasks/internal/notify"
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Follow sync events from a running server",
	RunE:  runTail,
}

var serverFlag string

func init() {
	tailCmd.Flags().StringVar(&serverFlag, "server", "", "Server address (default from config)")
	rootCmd.AddCommand(tailCmd)
}

func runTail(cmd *cobra.Command, args []string) error {
	addr := serverFlag
	if addr == "" {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		addr = fmt.Sprintf("%s:%d", cfg.Gateway.Host, cfg.Gateway.Port)
	}
	return tail(cmd.Context(), "ws://"+addr+"/ws", cmd.OutOrStdout())
}

// tail prints events until the server closes the connection or ctx ends.
func tail(ctx context.Context, url string, out io.Writer) error {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("connect %s: %w", url, err)
	}
	defer conn.CloseNow()

	fmt.Fprintf(out, "connected to %s\n", url)
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil || websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return fmt.Errorf("read event: %w", err)
		}
		var e notify.Event
		if err := json.Unmarshal(data, &e); err != nil {
			continue
		}
		fmt.Fprintln(out, formatEvent(e))
	}
}

func formatEvent(e notify.Event) string {
	c := color.New(color.FgGreen)
	if e.Kind != notify.KindSynced {
		c = color.New(color.FgRed)
	}
	return fmt.Sprintf("%s %s", e.Time.Format("15:04:05"), c.Sprint(e.Text()))
}
