package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"tally-claim/internal/app"
	"tally-claim/internal/artifact"
	"tally-claim/internal/config"
	"tally-claim/internal/metrics"
	"tally-claim/internal/types"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		pollFlag   = flag.String("poll", "", "Poll id (decimal or 0x hex)")
		tallyFile  = flag.String("tally-file", "", "Path to the tally results JSON file")
		index      = flag.Int("index", -1, "Recipient index (vote option) to claim for")
		dryRun     = flag.Bool("dry-run", false, "Verify and compute the allocation without sending the claim")
		configPath = flag.String("config", "", "Path to config file (default config.local.yaml or config.yaml)")
		network    = flag.String("network", "", "Network name from the config (default: config network)")
	)
	flag.Parse()

	if *pollFlag == "" || *tallyFile == "" || *index < 0 {
		fmt.Fprintln(os.Stderr, "usage: claim -poll <id> -tally-file <path> -index <n> [-dry-run] [-config <path>] [-network <name>]")
		flag.PrintDefaults()
		return 1
	}

	pollID, err := artifact.ParseInteger(*pollFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -poll: %v\n", err)
		return 1
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	logger := app.NewLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container, err := app.InitializeContainer(ctx, cfg, *network, *dryRun, logger)
	if err != nil {
		logger.WithError(err).Error("❌ Failed to initialize")
		return 1
	}
	defer container.Close()

	result, err := container.ClaimService.Run(ctx, &types.ClaimRequest{
		PollID:         pollID,
		TallyFile:      *tallyFile,
		RecipientIndex: *index,
		DryRun:         *dryRun,
	})

	if metricsErr := metrics.WriteTextfile(cfg.Metrics.Textfile); metricsErr != nil {
		logger.WithError(metricsErr).Warn("⚠️ Failed to write metrics")
	}

	if err != nil {
		logFailure(logger, result, err)
		return 1
	}

	logger.WithFields(logrus.Fields{
		"run_id":  result.RunID,
		"outcome": result.Outcome,
	}).Info("🏁 Claim run finished")
	return 0
}

func logFailure(logger *logrus.Logger, result *types.ClaimResult, err error) {
	entry := logger.WithError(err)
	if result != nil {
		entry = entry.WithField("run_id", result.RunID)
	}

	var reverted *types.SimulationRevertedError
	var mismatch *types.ProofMismatchError
	switch {
	case errors.As(err, &reverted):
		if reverted.Revert != nil {
			entry = entry.WithField("revert", reverted.Revert.String())
		} else if len(reverted.RawData) > 0 {
			entry = entry.WithField("revert_data", fmt.Sprintf("0x%x", reverted.RawData))
		}
		entry.Error("❌ Claim would revert, nothing was sent")
	case errors.As(err, &mismatch):
		entry.WithField("degraded", mismatch.Degraded).Error("❌ Tally file does not match the on-chain commitment")
	case errors.Is(err, types.ErrClaimPaused):
		entry.Error("❌ Claims are paused on the tally contract")
	case errors.Is(err, types.ErrSubmissionFailed):
		entry.Error("❌ Claim transaction failed")
	default:
		entry.Error("❌ Claim run failed")
	}
}
