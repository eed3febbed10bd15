package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/meetsum/internal/api"
	"github.com/kalambet/meetsum/internal/audit"
	"github.com/kalambet/meetsum/internal/bot"
	"github.com/kalambet/meetsum/internal/catalog"
	"github.com/kalambet/meetsum/internal/chat"
	"github.com/kalambet/meetsum/internal/config"
	"github.com/kalambet/meetsum/internal/flow"
	"github.com/kalambet/meetsum/internal/logger"
	"github.com/kalambet/meetsum/internal/permissions"
	"github.com/kalambet/meetsum/internal/summary"
	"github.com/kalambet/meetsum/internal/workflow"
)

// runBot assembles the full stack and serves until SIGINT/SIGTERM.
func runBot() error {
	fmt.Fprintf(os.Stdout, "meetsum version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.Init(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	recorder := audit.New("meetsum", cfg.Audit.WebhookURL, cfg.Audit.Token)

	files := catalog.New(catalog.Config{
		Credentials: cfg.Drive.Credentials,
		FolderID:    cfg.Drive.FolderID,
		Audit:       recorder,
	})
	defer files.Close()
	printStatus("Drive credentials", "%s", cfg.Drive.CredentialsSource)

	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return fmt.Errorf("creating discord session: %w", err)
	}

	messenger := chat.NewDiscord(session)
	deliverer := summary.NewDeliverer(messenger)
	deliverer.Identity = messenger
	trigger := workflow.New(cfg.Workflow.WebhookURL, cfg.Workflow.ExternalURL, deliverer)

	ctl := &flow.Controller{
		Catalog: files,
		Trigger: trigger,
		Errors:  deliverer,
	}
	gate := permissions.NewGate(cfg.Discord.AllowedRoles)
	if gate.Open() {
		printWarning("ALLOWED_ROLES is empty; every member can use /summarize")
	}

	b := bot.New(session, ctl, gate, recorder, cfg.Discord.GuildID)

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Ops.Port)
	srv := &http.Server{
		Addr: addr,
		Handler: api.NewHandler(api.Deps{
			Catalog:  files,
			Workflow: trigger,
			Version:  version,
		}),
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return b.Start(gctx)
	})
	g.Go(func() error {
		printStep("ops endpoint listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("ops server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	printSuccess("shut down cleanly")
	return nil
}
