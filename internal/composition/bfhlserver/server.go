package bfhlserver

import (
	"context"
	"log/slog"

	"bfhl/go-backend/internal/adapters/gemini"
	"bfhl/go-backend/internal/adapters/httpapi"
	"bfhl/go-backend/internal/config"
	"bfhl/go-backend/internal/domains/operations"
	"bfhl/go-backend/internal/platform/metrics"
	"bfhl/go-backend/internal/platform/ratelimiter"
)

// New wires the dispatcher, AI delegate and HTTP transport from cfg.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*httpapi.Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var asker operations.Asker
	if cfg.AIEnabled() {
		client, err := gemini.NewClient(ctx, cfg.AI.APIKey, cfg.AI.Model)
		if err != nil {
			return nil, err
		}
		asker = gemini.NewDelegate(client, cfg.AI.Timeout, logger)
		logger.Info("AI operation enabled", "model", client.Model(), "timeout", cfg.AI.Timeout.String())
	} else {
		logger.Warn("GEMINI_API_KEY is not set; AI operation disabled")
	}

	var limiter *ratelimiter.MapLimiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimiter.NewWindow(cfg.RateLimit.Max, cfg.RateLimit.Window)
	} else {
		logger.Warn("rate limiting disabled", "env", cfg.Env)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	return httpapi.NewServer(httpapi.Options{
		Addr:              cfg.Server.Addr,
		OfficialEmail:     cfg.OfficialEmail,
		MaxBodyBytes:      cfg.Server.MaxBodyBytes,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ShutdownTimeout:   cfg.Server.ShutdownTimeout,
		AllowedOrigins:    cfg.CORS.AllowedOrigins,
		Dispatcher:        operations.NewDispatcher(asker, logger),
		Limiter:           limiter,
		Metrics:           m,
		Logger:            logger,
	}), nil
}
