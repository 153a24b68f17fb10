package webhookgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/crmflow/pkg/logger"
)

// ErrUnhealthy is returned when the liveness endpoint does not answer 200.
var ErrUnhealthy = errors.New("service is not live")

// Run checks the service, generates the webhooks, sends them and reports.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	log := logger.Named("webhookgen")
	stats := &Stats{StartTime: time.Now()}

	log.Info(ctx, "starting webhook load run",
		logger.String("baseURL", config.BaseURL),
		logger.Int("webhooks", config.NumWebhooks),
		logger.Int("workers", config.Workers),
		logger.Duration("timeout", config.Timeout),
		logger.Float64("duplicateRate", config.DuplicateRate))

	if err := checkLive(ctx, config); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	hooks := NewGenerator(config.Seed).Generate(config.NumWebhooks)
	stats.Generated = len(hooks)

	if config.OutputFile != "" {
		if err := saveWebhooks(config.OutputFile, hooks); err != nil {
			log.Warn(ctx, "failed to save webhooks to file", logger.Error(err))
		} else {
			log.Info(ctx, "webhooks saved to file", logger.String("filename", config.OutputFile))
		}
	}

	sender := NewSender(config.BaseURL, config.Path, config.Timeout)
	sender.SendAll(ctx, withDuplicates(hooks, config.DuplicateRate), config.Workers, stats)

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	logStats(ctx, log, stats)
	return stats, ctx.Err()
}

func checkLive(ctx context.Context, config *Config) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, config.BaseURL+"/live", nil)
	if err != nil {
		return err
	}
	resp, err := (&http.Client{Timeout: config.Timeout}).Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}
	return nil
}

func saveWebhooks(filename string, hooks []Webhook) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(hooks, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal webhooks: %w", err)
	}
	return os.WriteFile(filename, data, 0o600)
}

func logStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var successRate, perSecond float64
	if stats.Submitted > 0 {
		successRate = float64(stats.Accepted+stats.Duplicate) / float64(stats.Submitted) * percentageMultiplier
	}
	if stats.Duration > 0 {
		perSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("generated", stats.Generated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("rejected", stats.Rejected),
		logger.Int("backpressed", stats.Backpressed),
		logger.Int("failed", stats.Failed),
		logger.Duration("duration", stats.Duration),
		logger.Float64("successRate", successRate),
		logger.Float64("webhooksPerSecond", perSecond))
}
