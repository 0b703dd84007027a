package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"invite-reward-bot/config"
	"invite-reward-bot/gateway"
	"invite-reward-bot/handlers"
	"invite-reward-bot/services"
	"invite-reward-bot/storage"
	"invite-reward-bot/utils"
	"invite-reward-bot/workers"

	"github.com/bwmarrin/discordgo"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const programName = "invitebot"

func main() {
	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Discord invite tracking and reward bot",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serveRun,
	}
	rootCmd.AddCommand(serveCommand(), exportCommand(), migrateCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}

// commonRun loads configuration and builds the logger shared by every command.
func commonRun() (*config.Config, *zap.SugaredLogger, error) {
	cfg, dotenv, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log, err := utils.NewLogger(cfg.LogLevel, cfg.Development)
	if err != nil {
		return nil, nil, err
	}
	if !dotenv {
		log.Infow("⚠️  No .env file found, reading environment variables directly")
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, log, nil
}

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect to Discord and track invites (default)",
		RunE:  serveRun,
	}
}

func serveRun(cmd *cobra.Command, _ []string) error {
	cfg, log, err := commonRun()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck
	if err := cfg.ValidateServe(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.StorageOptions())
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()

	repo, err := services.LoadGuildStateRepository(ctx, store, log)
	if err != nil {
		return err
	}

	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers | discordgo.IntentsGuildInvites
	discord := gateway.NewDiscord(session)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := services.NewMetrics(registry)

	fraud := services.NewFraudClassifier(cfg.MinAccountAge)
	referral := services.NewReferralService(repo, discord, fraud, metrics, log)
	admin := services.NewAdminService(repo, discord, referral.Leaderboard, fraud, log)

	syncWorker := workers.NewGuildSyncWorker(referral, log)
	syncWorker.Start(ctx)

	bot := handlers.NewBot(ctx, referral, admin, syncWorker, log)
	bot.Attach(session)
	if err := session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	defer session.Close()
	if err := bot.RegisterCommands(session); err != nil {
		return err
	}

	scheduler, err := services.NewScheduler(log)
	if err != nil {
		return err
	}
	if err := scheduler.AddPresenceJob(cfg.PresenceInterval, discord.SetWatching); err != nil {
		return fmt.Errorf("failed to schedule presence: %w", err)
	}
	if r2 := cfg.R2(); r2.Enabled() {
		uploader, err := utils.NewR2Uploader(ctx, r2)
		if err != nil {
			return fmt.Errorf("failed to initialize R2 client: %w", err)
		}
		if err := scheduler.AddBackupJob(cfg.BackupInterval, repo, uploader); err != nil {
			return fmt.Errorf("failed to schedule backups: %w", err)
		}
		log.Infow("✅ [BACKUP] off-site backups enabled", "bucket", r2.Bucket, "every", cfg.BackupInterval)
	}
	scheduler.Start()

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(recover.New())
	handlers.SetupHTTPRoutes(app, repo, registry, cfg.ServiceToken, log)
	if cfg.ServiceToken == "" {
		log.Warnw("⚠️  SERVICE_TOKEN not set, operator routes are disabled")
	}

	go func() {
		if err := app.Listen(cfg.HTTPAddress); err != nil {
			log.Errorw("[HTTP] server error", "error", err)
		}
	}()

	log.Infow("✅ Bot running", "http", cfg.HTTPAddress, "storage", cfg.StorageBackend, "guilds", len(repo.GuildIDs()))

	<-ctx.Done()
	log.Infow("Shutting down...")

	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		log.Warnw("[HTTP] shutdown failed", "error", err)
	}
	if err := scheduler.Shutdown(); err != nil {
		log.Warnw("[Scheduler] shutdown failed", "error", err)
	}
	<-syncWorker.Done()
	return nil
}

func exportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Print the stored state document",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := commonRun()
			if err != nil {
				return err
			}
			store, err := storage.Open(cfg.StorageOptions())
			if err != nil {
				return fmt.Errorf("failed to open storage: %w", err)
			}
			defer store.Close()

			repo, err := services.LoadGuildStateRepository(cmd.Context(), store, log)
			if err != nil {
				return err
			}
			doc, err := repo.Export()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(doc))
			return err
		},
	}
}

func migrateCommand() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy the state document between storage backends",
		Long: "Copy the state document from one backend to another. The document is normalized " +
			"on the way, which also upgrades a legacy bot_data.json in place when --from and --to are both file.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := commonRun()
			if err != nil {
				return err
			}
			srcOpts := cfg.StorageOptions()
			srcOpts.Backend = from
			dstOpts := cfg.StorageOptions()
			dstOpts.Backend = to

			src, err := storage.Open(srcOpts)
			if err != nil {
				return fmt.Errorf("open source: %w", err)
			}
			defer src.Close()
			dst := src
			if from != to {
				dst, err = storage.Open(dstOpts)
				if err != nil {
					return fmt.Errorf("open target: %w", err)
				}
				defer dst.Close()
			}

			_, err = services.MigrateState(cmd.Context(), src, dst, log)
			return err
		},
	}
	cmd.Flags().StringVar(&from, "from", storage.BackendFile, "source backend (file, postgres, sqlite, badger)")
	cmd.Flags().StringVar(&to, "to", storage.BackendFile, "target backend (file, postgres, sqlite, badger)")
	return cmd
}
