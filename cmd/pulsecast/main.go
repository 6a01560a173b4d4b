package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/pulsecast/pulsecast/pkg/media"
	"github.com/pulsecast/pulsecast/pkg/publisher"
	"github.com/pulsecast/pulsecast/pkg/ui"
	"github.com/pulsecast/pulsecast/pkg/viewer"
)

func main() {
	// The TUI owns the terminal, so all logging goes to a file.
	f, _ := os.OpenFile("debug.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("failed to close log file", "error", err)
		}
	}()
	log.SetOutput(f)
	slog.SetDefault(slog.New(slog.NewTextHandler(f, nil)))

	var apiURL string
	cmd := &cobra.Command{
		Use:   "pulsecast",
		Short: "Publish and browse live streams over WHIP",
	}
	cmd.PersistentFlags().StringVar(&apiURL, "api", "http://localhost:8080", "Channel directory base URL")

	var (
		endpoint      string
		source        string
		gatherTimeout time.Duration
	)
	publishCmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish camera, screen or audio to a WHIP endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := media.ParseSourceKind(source)
			if err != nil {
				return err
			}

			app := publisher.NewApp(publisher.Config{
				Endpoint:      endpoint,
				Source:        kind,
				GatherTimeout: gatherTimeout,
			})
			p := tea.NewProgram(ui.InitialPublisherModel(app))
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("UI error: %w", err)
			}
			return nil
		},
	}
	publishCmd.Flags().StringVar(&endpoint, "endpoint", "", "WHIP endpoint URL (required)")
	publishCmd.Flags().StringVar(&source, "source", "camera", "Capture source: camera, screen or audio")
	publishCmd.Flags().DurationVar(&gatherTimeout, "gather-timeout", 2*time.Second, "Bounded wait for ICE gathering")
	_ = publishCmd.MarkFlagRequired("endpoint")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Browse live channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := viewer.NewApp(apiURL)
			p := tea.NewProgram(ui.InitialViewerModel(app))
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("UI error: %w", err)
			}
			return nil
		},
	}

	cmd.AddCommand(publishCmd)
	cmd.AddCommand(watchCmd)

	if err := fang.Execute(context.Background(), cmd); err != nil {
		os.Exit(1)
	}
}
