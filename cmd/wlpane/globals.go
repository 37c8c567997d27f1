package main

import (
	"context"
	"slices"

	"deedles.dev/wlpane/client"
	"deedles.dev/wlpane/wire"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/exp/maps"
)

func globalsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "globals",
		Short: "List the globals the compositor advertises",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listGlobals(cmd.Context())
		},
	}
}

func listGlobals(ctx context.Context) error {
	conn, err := wire.Dial()
	if err != nil {
		return err
	}

	session, err := client.NewDiscovery(conn, log)
	if err != nil {
		conn.Close()
		return err
	}
	defer session.Close()

	if err := session.RoundTrip(ctx); err != nil {
		return err
	}

	globals := session.Globals()
	names := maps.Keys(globals)
	slices.Sort(names)
	for _, name := range names {
		log.WithFields(logrus.Fields{
			"name":      name,
			"interface": globals[name].Name,
			"version":   globals[name].Version,
		}).Info("global")
	}
	return nil
}
