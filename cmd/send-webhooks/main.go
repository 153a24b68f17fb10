package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/crmflow/internal/webhookgen"
	"github.com/okian/crmflow/pkg/logger"
)

// Default configuration constants.
const (
	defaultNumWebhooks = 1000
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultRunTimeout  = 10 * time.Minute
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:9080", "Base URL of the service")
		path      = flag.String("path", "/webhook", "Webhook path")
		count     = flag.Int("webhooks", defaultNumWebhooks, "Number of webhooks to generate and submit")
		workers   = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent senders")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		dupRate   = flag.Float64("duplicates", 0.1, "Share of webhooks delivered twice (0..1)")
		seed      = flag.Int64("seed", 0, "Faker seed, 0 for random")
		output    = flag.String("output", "", "Write the generated webhooks to this JSON file")
		logFormat = flag.String("log-format", "text", "Log format: text or json")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.SetFormat(*logFormat); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	stats, err := webhookgen.Run(ctx, &webhookgen.Config{
		BaseURL:       *baseURL,
		Path:          *path,
		NumWebhooks:   *count,
		Workers:       *workers,
		Timeout:       *timeout,
		DuplicateRate: *dupRate,
		Seed:          *seed,
		OutputFile:    *output,
	})
	if err != nil {
		os.Stderr.WriteString("run failed: " + err.Error() + "\n")
		os.Exit(1)
	}
	if stats.Failed > 0 {
		os.Exit(2)
	}
}
