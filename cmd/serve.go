package main

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	telegram "eicr-vision/internal/api"
	"eicr-vision/internal/api/rest"
	"eicr-vision/internal/container"
)

func serveCommand(e *env) *cobra.Command {
	var withBot bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and Prometheus metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := e.container(container.Options{})
			if err != nil {
				return err
			}
			defer c.Close()

			handler := rest.NewHandler(c.InspectionService, c.Notifications, e.logger)
			server := rest.NewServer(e.cfg.HTTP.Addr, rest.NewRouter(handler, c.Metrics.Handler()), e.logger)

			var bot *telegram.Bot
			switch {
			case withBot && e.cfg.Telegram.Token != "":
				bot, err = telegram.NewBot(e.cfg.Telegram.Token, c.InspectionService, c.Notifications, e.logger)
				if err != nil {
					return err
				}
			case withBot:
				e.logger.Warn("no telegram token configured, bot disabled")
			}

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error { return server.Run(ctx) })
			if bot != nil {
				g.Go(func() error { return bot.Run(ctx) })
			}
			return g.Wait()
		},
	}
	cmd.Flags().BoolVar(&withBot, "bot", false, "Also run the Telegram bot")
	return cmd
}
