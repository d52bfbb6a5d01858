package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/tavern-relay/internal/telegram"
)

func newWebhookCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Manage the Telegram webhook registration",
	}

	botClient := func() (*telegram.Client, error) {
		if err := a.cfg.Telegram.Validate(); err != nil {
			return nil, err
		}
		return telegram.NewClient(a.cfg.Telegram.BotAPIURL(), a.cfg.Telegram.RequestTimeout), nil
	}

	set := &cobra.Command{
		Use:   "set [url]",
		Short: "Register the webhook URL (defaults to WEBHOOK_BASE_URL/webhook)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bot, err := botClient()
			if err != nil {
				return err
			}
			url := a.cfg.Telegram.WebhookURL()
			if len(args) == 1 {
				url = args[0]
			}
			if url == "" {
				return errors.New("no webhook url: pass one or set WEBHOOK_BASE_URL")
			}
			if err := bot.SetWebhook(cmd.Context(), url, a.cfg.Telegram.WebhookSecret); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "webhook set to %s\n", url)
			return nil
		},
	}

	info := &cobra.Command{
		Use:   "info",
		Short: "Show the current webhook registration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bot, err := botClient()
			if err != nil {
				return err
			}
			wh, err := bot.GetWebhookInfo(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "url:              %s\n", wh.URL)
			fmt.Fprintf(out, "pending updates:  %d\n", wh.PendingUpdateCount)
			if wh.LastErrorMessage != "" {
				fmt.Fprintf(out, "last error:       %s\n", wh.LastErrorMessage)
			}
			return nil
		},
	}

	var dropPending bool
	del := &cobra.Command{
		Use:   "delete",
		Short: "Remove the webhook registration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bot, err := botClient()
			if err != nil {
				return err
			}
			if err := bot.DeleteWebhook(cmd.Context(), dropPending); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "webhook deleted")
			return nil
		},
	}
	del.Flags().BoolVar(&dropPending, "drop-pending", false, "also drop updates Telegram has queued")

	cmd.AddCommand(set, info, del)
	return cmd
}
