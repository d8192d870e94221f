package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"

	"github.com/chatwarden/chatwarden/internal/adapters/telegram"
	"github.com/chatwarden/chatwarden/internal/audit"
	"github.com/chatwarden/chatwarden/internal/config"
	"github.com/chatwarden/chatwarden/internal/db"
	"github.com/chatwarden/chatwarden/internal/db/sqlite"
	"github.com/chatwarden/chatwarden/internal/infra"
	"github.com/chatwarden/chatwarden/internal/lifecycle"
	"github.com/chatwarden/chatwarden/internal/moderation"
	"github.com/chatwarden/chatwarden/internal/observability"
	"github.com/chatwarden/chatwarden/internal/verification"
)

func main() {
	cfg := config.Get()
	log.SetFormatter(&log.TextFormatter{
		DisableColors:    true,
		FullTimestamp:    true,
		TimestampFormat:  "2006-01-02 15:04:05",
		QuoteEmptyFields: true,
	})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.Level(cfg.LogLevel))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metricsServer, err := observability.Init(ctx, cfg.MetricsListenAddr)
	if err != nil {
		log.WithError(err).Fatalln("cant init observability")
	}
	defer metricsServer.Close()

	sqliteClient, err := sqlite.NewSQLiteClient(ctx, cfg.DotPath, "chatwarden.db")
	if err != nil {
		log.WithError(err).Fatalln("cant open db")
	}
	client, err := db.NewCachedClient(sqliteClient)
	if err != nil {
		log.WithError(err).Fatalln("cant init policy cache")
	}
	defer client.Close()

	botAPI, err := api.NewBotAPI(cfg.TelegramAPIToken)
	if err != nil {
		log.WithError(err).Errorln("cant initialize bot api")
		time.Sleep(1 * time.Second)
		log.Fatalln("exiting")
	}
	defer botAPI.StopReceivingUpdates()

	enforcer := telegram.NewEnforcer(botAPI)
	subs := telegram.NewSubscriptionChecker(botAPI)
	captcha := verification.NewGenerator(cfg.Verification.CaptchaDifficulty)
	gate := verification.NewGate(client, subs, captcha, cfg.Verification.MaxAttempts)

	auditLogger := audit.NewLogger(observability.Logger, client)
	engine := moderation.NewOrchestrator(client, gate, auditLogger, policyTemplate(cfg))
	processor := telegram.NewUpdateProcessor(engine, gate, enforcer, client, policyTemplate(cfg))

	sweeper := verification.NewSweeper(client, gate, func(ctx context.Context, session *db.VerificationSession) error {
		return enforcer.Kick(ctx, session.ChatID, session.UserID)
	}, cfg.Verification.SweepInterval)

	runtime := lifecycle.NewRuntime().
		Register("audit", auditLogger).
		Register("verification_sweeper", sweeper)
	if err := runtime.Start(ctx); err != nil {
		log.WithError(err).Fatalln("cant start runtime")
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		if err := runtime.Stop(stopCtx); err != nil {
			log.WithError(err).Error("runtime stop failed")
		}
	}()

	infra.Recoverable(-1, "process_updates", func() {
		updateConfig := api.NewUpdate(0)
		updateConfig.Timeout = 60
		updates := botAPI.GetUpdatesChan(updateConfig)

		for {
			select {
			case <-ctx.Done():
				log.Infoln("no more updates")
				return
			case update := <-updates:
				if err := processor.Process(ctx, &update); err != nil {
					log.WithError(err).Errorln("cant process update")
				}
			}
		}
	})

	<-ctx.Done()
}

// policyTemplate is the fallback policy for chats that never stored one,
// seeded from the environment.
func policyTemplate(cfg config.Config) *db.ChatPolicy {
	policy := db.DefaultPolicy(0)
	policy.FloodLimit = cfg.Moderation.FloodLimit
	policy.FloodWindowNS = cfg.Moderation.FloodWindow.Nanoseconds()
	policy.SimilarityThreshold = cfg.Moderation.SimilarityThreshold
	policy.MaxWarnings = cfg.Moderation.MaxWarnings
	policy.MuteDurationNS = cfg.Moderation.MuteDuration.Nanoseconds()
	policy.MaxFileSize = cfg.Moderation.MaxFileSize
	policy.CaptchaEnabled = cfg.Verification.CaptchaEnabled
	policy.CaptchaTimeoutNS = cfg.Verification.CaptchaTimeout.Nanoseconds()
	policy.RequiredChannel = cfg.Verification.RequiredChannel
	return policy
}
