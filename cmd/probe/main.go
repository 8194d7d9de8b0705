package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/okian/epcforward/internal/adapters/audit"
	"github.com/okian/epcforward/internal/config"
	"github.com/okian/epcforward/internal/probe"
	"github.com/okian/epcforward/pkg/logger"
)

const defaultRunTimeout = 10 * time.Minute

func main() {
	// The trigger URL usually lives in .env next to the forwarder config.
	_ = godotenv.Load()

	var (
		target  = flag.String("target", probe.TargetUpstream, "upstream or forwarder")
		rawURL  = flag.String("url", os.Getenv(config.EnvPrefix+"UPSTREAM_URL"), "Trigger URL or forwarder submit URL")
		count   = flag.Int("count", probe.DefaultCount, "Number of submissions to send")
		workers = flag.Int("workers", probe.DefaultWorkers, "Number of concurrent senders")
		timeout = flag.Duration("timeout", probe.DefaultTimeout, "Per-request timeout")
		source  = flag.String("source", probe.DefaultSource, "Source stamped on canonical payloads")
		verbose = flag.Bool("verbose", false, "Log every response")
		pending = flag.Bool("pending", false, "List unresolved audit journal entries instead of sending")
		entry   = flag.String("entry", "", "Show one audit journal entry by ID instead of sending")
		limit   = flag.Int("limit", 50, "Maximum entries listed by -pending (0 = all)")
		help    = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		probe.ShowHelp(os.Stdout)
		return
	}

	if err := logger.Init(logger.WithOutput(os.Stderr)); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunTimeout)
	defer cancel()

	if *pending || *entry != "" {
		if err := inspectJournal(ctx, *pending, *entry, *limit); err != nil {
			os.Stderr.WriteString("Journal inspection failed: " + err.Error() + "\n")
			os.Exit(1)
		}
		return
	}

	cfg := &probe.Config{
		URL:     *rawURL,
		Target:  *target,
		Count:   *count,
		Workers: *workers,
		Timeout: *timeout,
		Source:  *source,
		Verbose: *verbose,
	}

	report, err := probe.Run(ctx, cfg, os.Stdout)
	if err != nil {
		os.Stderr.WriteString("Probe failed: " + err.Error() + "\n")
		os.Exit(1)
	}
	if !report.OK() {
		os.Exit(2)
	}
}

// inspectJournal opens the audit journal the forwarder is configured with.
func inspectJournal(ctx context.Context, pending bool, id string, limit int) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	store, err := audit.Open(ctx, cfg.AuditBackend, cfg.AuditDSN, cfg.AuditTable)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if id != "" {
		return probe.ShowEntry(ctx, store, id, os.Stdout)
	}
	_, err = probe.ListPending(ctx, store, limit, os.Stdout)
	return err
}
