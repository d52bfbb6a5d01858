package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/tavern-relay/internal/config"
	"github.com/zhouzirui/tavern-relay/internal/handler"
	"github.com/zhouzirui/tavern-relay/internal/service/ai"
	chatService "github.com/zhouzirui/tavern-relay/internal/service/chat"
	"github.com/zhouzirui/tavern-relay/internal/service/feed"
	"github.com/zhouzirui/tavern-relay/internal/service/relay"
	"github.com/zhouzirui/tavern-relay/internal/telegram"
)

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server and register the webhook with Telegram",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a.cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Telegram.Validate(); err != nil {
		return err
	}

	policy := chatService.TrimPolicy{Threshold: cfg.History.TrimThreshold, Window: cfg.History.Window}
	if err := policy.Validate(); err != nil {
		return err
	}

	aiSvc, err := ai.NewServiceFromConfig(ctx, cfg.AI)
	if err != nil {
		return err
	}
	log.Info().Str("model", cfg.AI.Model).Int("max_tokens", cfg.AI.MaxTokens).Float32("temperature", cfg.AI.Temperature).Msg("completion model initialized")

	chatSvc := chatService.NewService(cfg.Bot.SystemPrompt, chatService.WithTrimPolicy(policy))
	hub := feed.NewHub()
	bot := telegram.NewClient(cfg.Telegram.BotAPIURL(), cfg.Telegram.RequestTimeout)
	relaySvc := relay.NewService(chatSvc, aiSvc, bot, hub, cfg.Bot.Apology)

	router := handler.NewRouter(relaySvc, chatSvc, hub, cfg.Telegram.WebhookSecret)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return pkgerrors.Wrapf(err, "listen on %s", srv.Addr)
	}
	log.Info().Str("addr", srv.Addr).Msg("relay listening")

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return runServer(egCtx, srv, ln)
	})

	if url := cfg.Telegram.WebhookURL(); url != "" {
		eg.Go(func() error {
			registerWebhook(egCtx, bot, url, cfg.Telegram.WebhookSecret)
			return nil
		})
	} else {
		log.Warn().Msg("WEBHOOK_BASE_URL not set, skipping webhook registration")
	}

	return eg.Wait()
}

// registerWebhook logs instead of failing: the server stays useful while the
// webhook is fixed by hand with `relay webhook set`.
func registerWebhook(ctx context.Context, bot *telegram.Client, url, secret string) {
	if err := bot.SetWebhook(ctx, url, secret); err != nil {
		log.Error().Err(err).Str("url", url).Msg("failed to set up webhook")
		return
	}
	log.Info().Str("url", url).Msg("webhook set up successfully")
}

func runServer(ctx context.Context, srv *http.Server, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down relay")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
