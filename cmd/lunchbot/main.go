package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/abrezinsky/lunchbot/internal/app"
	"github.com/abrezinsky/lunchbot/internal/config"
	"github.com/abrezinsky/lunchbot/internal/logger"
	"github.com/abrezinsky/lunchbot/pkg/chat"
	"github.com/abrezinsky/lunchbot/web"
)

var (
	version = "dev"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "lunchbot: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load(args, ".env")
	if stderrors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	if cfg.ShowVersion {
		fmt.Printf("lunchbot %s\n", version)
		return nil
	}

	appLog := logger.NewWithOptions(os.Stdout, logger.ParseLevel(cfg.LogLevel), logger.ParseFormat(cfg.LogFormat))
	if cfg.HTTPLogging {
		appLog.EnableHTTPLogging()
	}

	var notifier chat.Notifier
	if cfg.SlackToken != "" {
		notifier = chat.NewSlackNotifier(cfg.SlackToken, appLog, nil)
	} else {
		appLog.Warn("No Slack token configured, messages will only be logged")
		notifier = chat.NewLogNotifier(appLog)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, appLog, notifier, web.GetTemplatesFS(), web.GetStaticFS())
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer a.Close()

	appLog.Info("LunchBot starting", "version", version, "channel", cfg.SurveyChannel, "survey_page", a.BaseURL())
	return a.Run(ctx)
}
