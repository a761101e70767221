package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"reboot-miniapp/internal/api"
	"reboot-miniapp/internal/config"
	"reboot-miniapp/internal/server"
	"reboot-miniapp/internal/session"
	"reboot-miniapp/internal/sheets"
	"reboot-miniapp/internal/tgbot"
	"reboot-miniapp/internal/util"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := util.NewLogger(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	sugar := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := api.New(cfg.APIBaseURL, api.WithTimeout(cfg.APITimeout), api.WithLogger(sugar.Named("api")))

	var exporter tgbot.Exporter
	if cfg.SheetsEnabled() {
		sh, err := sheets.New(ctx, cfg.GoogleServiceAccountJSON, cfg.SpreadsheetID)
		if err != nil {
			sugar.Fatalw("sheets", "err", err)
		}
		exporter = sh
	}

	deps := server.Deps{
		API:      client,
		Sessions: session.NewStore(cfg.SessionTTL, sugar.Named("session")),
		Log:      sugar.Named("http"),
	}

	var bot *tgbot.App
	if cfg.TelegramToken != "" {
		bot, err = tgbot.New(cfg, client, exporter, sugar.Named("bot"))
		if err != nil {
			// The mini app works without its companion bot.
			sugar.Warnw("telegram bot disabled", "err", err)
		} else {
			deps.Notifier = bot
		}
	}

	httpSrv := server.New(cfg, deps)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sugar.Infow("HTTP listening", "addr", cfg.HTTPAddr, "webapp_url", cfg.WebAppURL())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		deps.Sessions.Run(gctx, time.Minute)
		return nil
	})
	if bot != nil {
		g.Go(func() error {
			if err := bot.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				sugar.Warnw("bot stopped", "err", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		sugar.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		sugar.Errorw("exit", "err", err)
	}
	sugar.Info("bye")
}
