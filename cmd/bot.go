package main

import (
	"github.com/spf13/cobra"

	telegram "eicr-vision/internal/api"
	"eicr-vision/internal/container"
	apperrors "eicr-vision/internal/platform/errors"
)

func botCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram bot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if e.cfg.Telegram.Token == "" {
				return apperrors.New(apperrors.KindConfig, "bot", "telegram.token is required (EICR_TELEGRAM_TOKEN or TELEGRAM_TOKEN)")
			}
			c, err := e.container(container.Options{})
			if err != nil {
				return err
			}
			defer c.Close()

			bot, err := telegram.NewBot(e.cfg.Telegram.Token, c.InspectionService, c.Notifications, e.logger)
			if err != nil {
				return err
			}
			e.logger.Info("bot is running")
			return bot.Run(cmd.Context())
		},
	}
}
