package main

import (
	"context"
	"image/color"
	"os"
	"os/signal"

	"deedles.dev/wlpane/client"
	"deedles.dev/wlpane/internal/debug"
	"deedles.dev/wlpane/shm"
	"deedles.dev/wlpane/wire"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/image/colornames"
)

var log = logrus.New()

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		width   int32
		height  int32
		title   string
		fill    string
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "wlpane",
		Short: "Put a solid color window on a Wayland desktop",
		Long: `wlpane connects to the compositor named by the usual Wayland
environment variables, binds the globals it needs, and keeps a single
solid color toplevel window on screen until it is interrupted or the
compositor closes the window.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose || debug.Enabled() {
				log.SetLevel(logrus.DebugLevel)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return show(cmd.Context(), width, height, title, fill)
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	cmd.Flags().Int32Var(&width, "width", 256, "window width in pixels")
	cmd.Flags().Int32Var(&height, "height", 256, "window height in pixels")
	cmd.Flags().StringVar(&title, "title", "wlpane", "window title")
	cmd.Flags().StringVar(&fill, "color", "cadetblue", "fill color, by SVG 1.1 name")

	cmd.AddCommand(
		globalsCmd(),
		versionCmd(),
	)

	return cmd
}

func show(ctx context.Context, width, height int32, title, fill string) error {
	c, err := parseColor(fill)
	if err != nil {
		return err
	}

	conn, err := wire.Dial()
	if err != nil {
		return err
	}

	buf, err := shm.NewBuffer(width, height)
	if err != nil {
		conn.Close()
		return err
	}

	session, err := client.New(conn, buf, client.Config{Title: title, Color: c}, log)
	if err != nil {
		conn.Close()
		buf.Close()
		return err
	}
	defer session.Close()

	log.WithFields(logrus.Fields{
		"width":  width,
		"height": height,
		"color":  fill,
	}).Info("connected")

	return session.Run(ctx)
}

func parseColor(name string) (color.RGBA, error) {
	c, ok := colornames.Map[name]
	if !ok {
		return color.RGBA{}, errors.Errorf("unknown color %q", name)
	}
	return c, nil
}
