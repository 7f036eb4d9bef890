package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/melih/lighthouse-notebooks/internal/adapters/builder"
	"github.com/melih/lighthouse-notebooks/internal/adapters/docker"
	"github.com/melih/lighthouse-notebooks/internal/adapters/http"
	"github.com/melih/lighthouse-notebooks/internal/adapters/mail"
	"github.com/melih/lighthouse-notebooks/internal/adapters/remote"
	"github.com/melih/lighthouse-notebooks/internal/adapters/storage"
	"github.com/melih/lighthouse-notebooks/internal/config"
	"github.com/melih/lighthouse-notebooks/internal/core/ports"
	"github.com/melih/lighthouse-notebooks/internal/core/services"
	"github.com/melih/lighthouse-notebooks/internal/log"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "lighthouse",
	Short: "Lighthouse - per-user Jupyter notebooks on a shared GPU host",
	Long: `Lighthouse launches isolated Jupyter notebook containers for
authenticated users, with per-container CPU and memory limits and a
persistent record of every launch.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Lighthouse version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	serveCmd.Flags().String("config", "", "Path to the YAML config file")
	serveCmd.Flags().String("addr", "", "Listen address (overrides server.address)")
	serveCmd.Flags().String("log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Lighthouse version %s\nCommit: %s\nBuilt: %s\n", Version, Commit, BuildTime)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the notebook API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		addr, _ := cmd.Flags().GetString("addr")
		level, _ := cmd.Flags().GetString("log-level")

		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		if addr != "" {
			cfg.Server.Address = addr
		}
		if level != "" {
			cfg.Log.Level = level
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		if err := log.Init(log.Config{
			Level:      cfg.Log.Level,
			JSONOutput: cfg.Log.JSON,
		}); err != nil {
			return err
		}
		return serve(cfg)
	},
}

func serve(cfg *config.Config) error {
	logger := log.WithComponent("main")

	store, err := storage.NewBoltStore(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	cli, err := docker.NewClient(ctx)
	cancel()
	if err != nil {
		return err
	}
	defer cli.Close()

	lifecycle := services.NewLifecycle(docker.NewAdapter(cli), store, services.LifecycleConfig{
		DefaultImage:          cfg.Runtime.DefaultImage,
		DefaultTimeoutMinutes: cfg.Runtime.DefaultTimeoutMinutes,
		Host:                  cfg.Runtime.Host,
		Scheme:                cfg.Runtime.Scheme,
		ServicePort:           cfg.Runtime.ServicePort,
		EnforceOwnership:      cfg.Runtime.EnforceOwnership,
	})

	var mailer ports.Mailer
	if cfg.SMTP.Enabled() {
		mailer = mail.NewSMTPMailer(mail.Config{
			Server:   cfg.SMTP.Server,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	} else {
		logger.Warn().Msg("SMTP not configured, password reset codes will not be mailed")
	}

	tokenLifetime := time.Duration(cfg.Auth.TokenExpireMinutes) * time.Minute
	accounts := services.NewAuthService(store, mailer, services.AuthConfig{
		SecretKey:     cfg.Auth.SecretKey,
		TokenLifetime: tokenLifetime,
		OTPLifetime:   time.Duration(cfg.Auth.PasswordResetMinutes) * time.Minute,
	})

	deps := http.Dependencies{
		Containers: lifecycle,
		Accounts:   accounts,
		Builder:    builder.NewBuilderAdapter(cli),
		GPUCommand: cfg.GPU.Command,
		Cookie: http.CookieConfig{
			Name:     cfg.Auth.CookieName,
			Secure:   cfg.Auth.CookieSecure,
			HTTPOnly: cfg.Auth.CookieHTTPOnly,
			SameSite: cfg.Auth.CookieSameSite,
			MaxAge:   tokenLifetime,
		},
		ProxyDomain: cfg.Proxy.Domain,
	}

	if cfg.GPU.Enabled() {
		executor, err := remote.NewSSHExecutor(remote.Config{
			Host:           cfg.GPU.Host,
			Port:           cfg.GPU.Port,
			User:           cfg.GPU.User,
			KeyPath:        cfg.GPU.KeyPath,
			KnownHostsPath: cfg.GPU.KnownHostsPath,
			Timeout:        10 * time.Second,
		})
		if err != nil {
			return fmt.Errorf("configuring GPU host: %w", err)
		}
		deps.GPU = executor
	}

	if cfg.Sweeper.Enabled {
		sweeper := services.NewSweeper(lifecycle, store, cfg.Sweeper.Interval)
		sweeper.Start()
		defer sweeper.Stop()
	}

	app := http.NewApp(deps)

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Server.Address).Msg("API server listening")
		errCh <- app.Listen(cfg.Server.Address)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		return fmt.Errorf("API server: %w", err)
	}

	if err := app.ShutdownWithTimeout(15 * time.Second); err != nil {
		logger.Error().Err(err).Msg("HTTP shutdown")
	}
	logger.Info().Msg("shutdown complete")
	return nil
}
