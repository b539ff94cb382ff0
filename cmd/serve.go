package cmd

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"lyrics-relay/config"
	"lyrics-relay/internal/classifier"
	"lyrics-relay/internal/client"
	"lyrics-relay/internal/domain"
	"lyrics-relay/internal/handler"
	"lyrics-relay/internal/logger"
	"lyrics-relay/internal/lyrics"
	"lyrics-relay/internal/proxy"
	"lyrics-relay/internal/resilience"
	"lyrics-relay/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the proxy and admin listeners",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		appLogger := logger.Init(cfg.Logging.Level)
		appLogger.Info("configuration loaded",
			"proxy_port", cfg.Proxy.Port,
			"admin_enabled", cfg.Admin.Enabled,
			"admin_port", cfg.Admin.Port,
			"providers", cfg.Lyrics.Providers,
			"upstream_scheme", cfg.Upstream.Scheme,
			"version", version)

		runner, err := buildRunner(cfg, appLogger)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := runner.Run(ctx); err != nil {
			appLogger.Error("server stopped with error", "error", err)
			return err
		}
		appLogger.Info("server exited properly")
		return nil
	},
}

// buildRunner wires the collaborators, the lyrics pipeline and the listeners.
func buildRunner(cfg *config.Config, appLogger *slog.Logger) (*server.Runner, error) {
	if appLogger == nil {
		appLogger = slog.Default()
	}
	registry := resilience.NewRegistry()
	opts := backendOptions(cfg.Backends, registry, appLogger)

	metadata := client.NewSpotifyClient(client.SpotifyConfig{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		TokenURL:     cfg.Spotify.TokenURL,
		APIBaseURL:   cfg.Spotify.APIBaseURL,
	}, opts)

	providers, err := buildProviders(cfg, opts)
	if err != nil {
		return nil, err
	}

	background, text, highlight, err := cfg.Lyrics.Colors.Parse()
	if err != nil {
		return nil, err
	}

	orchestrator, err := lyrics.NewOrchestrator(metadata, providers, lyrics.Config{
		MaxCandidates: cfg.Lyrics.MaxCandidates,
		MaxDistance:   cfg.Lyrics.MaxDistance,
		CleanMode:     cfg.Lyrics.CleanMode,
		CallTimeout:   cfg.Lyrics.CallTimeout,
		Language:      cfg.Lyrics.Language,
		IsRTL:         cfg.Lyrics.RTL,
		Colors: domain.Colors{
			Background:    background,
			Text:          text,
			HighlightText: highlight,
		},
	}, appLogger)
	if err != nil {
		return nil, fmt.Errorf("creating lyrics pipeline: %w", err)
	}

	forwarder := proxy.NewForwarder(proxy.Config{
		Scheme:               cfg.Upstream.Scheme,
		StripRequestHopByHop: cfg.Upstream.StripRequestHopByHop,
		Timeout:              cfg.Upstream.Timeout,
	})

	relay := handler.NewLyricsHandler(
		classifier.New(cfg.Lyrics.StrictMethod),
		orchestrator,
		forwarder,
		handler.EnvelopeConfig{
			Provider:            cfg.Lyrics.ProviderName,
			ProviderDisplayName: cfg.Lyrics.ProviderDisplayName,
		},
		appLogger,
	)

	serverCfg := server.Config{
		ProxyAddr:      net.JoinHostPort("", cfg.Proxy.Port),
		AdminAddr:      net.JoinHostPort("", cfg.Admin.Port),
		ReadTimeout:    cfg.Proxy.ReadTimeout,
		WriteTimeout:   cfg.Proxy.WriteTimeout,
		MaxHeaderBytes: cfg.Proxy.MaxHeaderBytes,
	}

	runner := &server.Runner{
		Proxy:  server.NewProxyServer(serverCfg, relay, appLogger),
		Logger: appLogger,
	}
	if cfg.Admin.Enabled {
		runner.Admin = server.NewAdminServer(serverCfg, server.NewAdminHandler(registry))
	}
	return runner, nil
}

func backendOptions(cfg config.BackendsConfig, registry *resilience.Registry, appLogger *slog.Logger) client.Options {
	opts := client.DefaultOptions()
	opts.Timeout = cfg.Timeout
	opts.RatePerSecond = cfg.RatePerSecond
	opts.Burst = cfg.Burst
	opts.Breaker.FailureThreshold = cfg.BreakerFailureThreshold
	opts.Breaker.SuccessThreshold = cfg.BreakerSuccessThreshold
	opts.Breaker.OpenTimeout = cfg.BreakerOpenTimeout
	opts.Registry = registry
	opts.Logger = appLogger
	return opts
}

// buildProviders creates the lyrics providers in configured order.
func buildProviders(cfg *config.Config, opts client.Options) ([]domain.LyricsProvider, error) {
	providers := make([]domain.LyricsProvider, 0, len(cfg.Lyrics.Providers))
	for _, name := range cfg.Lyrics.Providers {
		switch name {
		case "genius":
			providers = append(providers, client.NewGeniusClient(client.GeniusConfig{
				AccessToken: cfg.Genius.Token,
				APIBaseURL:  cfg.Genius.APIBaseURL,
			}, opts))
		case "lrclib":
			providers = append(providers, client.NewLRCLibClient(cfg.LRCLib.BaseURL, opts))
		default:
			return nil, fmt.Errorf("unknown lyrics provider %q", name)
		}
	}
	if len(providers) == 0 {
		return nil, domain.ErrNoProviders
	}
	return providers, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
