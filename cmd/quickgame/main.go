// Command quickgame walks the BringTen lobby in a real browser: the host
// creates a room, then up to three more players join it from new tabs. After
// every create or join the page must not say that no rooms were found.
//
// Usage:
//
//	go run ./cmd/quickgame [-url http://localhost:5173/] [-driver playwright|rod] [-headless]
//
// Exit status is 0 when every step passed, 1 on a failed assertion, 2 on bad
// configuration, 3 when no browser could be started, 4 when an element never
// became clickable or was missing, and 5 otherwise.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kuitang/bringten-smoke/internal/artifacts"
	"github.com/kuitang/bringten-smoke/internal/browser"
	"github.com/kuitang/bringten-smoke/internal/config"
	"github.com/kuitang/bringten-smoke/internal/errs"
	"github.com/kuitang/bringten-smoke/internal/obs"
	"github.com/kuitang/bringten-smoke/internal/ratelimit"
	"github.com/kuitang/bringten-smoke/internal/report"
	"github.com/kuitang/bringten-smoke/internal/scenario"
)

const publishTimeout = 30 * time.Second

// openDriver is replaced in tests.
var openDriver = browser.Open

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	set := flag.NewFlagSet("quickgame", flag.ContinueOnError)
	set.SetOutput(stderr)
	flags, err := config.ParseFlags(set, args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return errs.ExitOK
		}
		return errs.ExitInvalidConfig
	}

	cfg, err := config.LoadConfig(flags)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return errs.ExitInvalidConfig
	}

	obs.Init()
	obs.SetLevel(obs.ParseLevel(cfg.LogLevel))
	log := obs.Pkg("main")
	cfg.PrintStartupSummary(stdout)

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Error("artifact_store_failed", "error", err)
		fmt.Fprintln(stderr, err)
		return errs.ExitInvalidConfig
	}

	driver, err := openDriver(ctx, cfg.Driver, browser.Options{
		Headless:      cfg.Headless,
		Channel:       cfg.Channel,
		BrowserBin:    cfg.BrowserBin,
		Detach:        cfg.Detach,
		ActionTimeout: cfg.ActionTimeout,
	})
	if err != nil {
		log.Error("browser_unavailable", "driver", cfg.Driver, "error", err)
		fmt.Fprintln(stderr, err)
		return errs.ExitCode(err)
	}

	runner := scenario.NewRunner(driver, scenario.RunnerOptions{
		Store:     store,
		Pacer:     ratelimit.NewPacer(cfg.Pacing),
		CloseTabs: !cfg.Detach,
	})
	res, runErr := runner.Run(ctx, scenario.QuickGame(scenario.ParamsFromConfig(cfg)))

	// Publish even when the run was interrupted.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	if err := report.Publish(pubCtx, store, res); err != nil {
		log.Warn("report_publish_failed", "run_id", res.RunID, "error", err)
	}
	cancel()
	report.WriteSummary(stdout, res)

	if cfg.Detach && ctx.Err() == nil {
		fmt.Fprintln(stdout, "Browser left open. Press Ctrl+C to close it.")
		<-ctx.Done()
	}
	if err := driver.Close(); err != nil {
		log.Warn("browser_close_failed", "error", err)
	}

	return errs.ExitCode(runErr)
}

// openStore picks S3 when a bucket is configured, else a local directory,
// else nothing.
func openStore(ctx context.Context, cfg *config.Config) (artifacts.Store, error) {
	switch {
	case cfg.S3Enabled():
		return artifacts.NewS3Store(ctx, artifacts.S3Config{
			Endpoint:        cfg.AWSEndpointS3,
			Region:          cfg.AWSRegion,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			BucketName:      cfg.AWSBucketName,
			PublicURL:       cfg.AWSPublicURL,
			UsePathStyle:    cfg.AWSPathStyle,
		})
	case cfg.ArtifactDir != "":
		return artifacts.NewDirStore(cfg.ArtifactDir)
	default:
		return artifacts.Discard{}, nil
	}
}
