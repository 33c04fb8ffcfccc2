package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"tally-claim/internal/config"
	"tally-claim/internal/db"
	"tally-claim/internal/models"
	"tally-claim/internal/repository"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to config file")
		network    = flag.String("network", "", "Network name (default: config network)")
		poll       = flag.String("poll", "", "Poll id")
		index      = flag.Int("index", -1, "Recipient index")
		runID      = flag.String("run", "", "Show a single run by id")
	)
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Database.DSN == "" {
		log.Fatalf("database.dsn is not configured")
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	database, err := db.InitDB(cfg.Database.DSN, logger)
	if err != nil {
		log.Fatalf("Failed to connect audit database: %v", err)
	}
	defer db.Close(database)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo := repository.NewClaimRecordRepository(database)

	if *runID != "" {
		record, err := repo.GetByID(ctx, *runID)
		if err != nil {
			log.Fatalf("Failed to load run %s: %v", *runID, err)
		}
		printRecord(record)
		return
	}

	if *poll == "" || *index < 0 {
		fmt.Fprintln(os.Stderr, "usage: claim-audit -poll <id> -index <n> [-network <name>] | -run <id>")
		os.Exit(1)
	}

	networkName := *network
	if networkName == "" {
		networkName = cfg.Network
	}

	records, err := repo.FindByRecipient(ctx, networkName, *poll, *index)
	if err != nil {
		log.Fatalf("Failed to query claim records: %v", err)
	}

	fmt.Printf("📋 %d claim run(s) for network=%s poll=%s index=%d\n", len(records), networkName, *poll, *index)
	for _, record := range records {
		fmt.Println("------------------------------------------------------------")
		printRecord(record)
	}
}

func printRecord(r *models.ClaimRecord) {
	fmt.Printf("Run:        %s\n", r.ID)
	fmt.Printf("Time:       %s\n", r.CreatedAt.Format(time.RFC3339))
	fmt.Printf("Outcome:    %s (dry run: %t)\n", r.Outcome, r.DryRun)
	fmt.Printf("Tally:      %s\n", r.TallyAddress)
	if r.Amount != "" {
		fmt.Printf("Amount:     %s (voice credits %s)\n", r.Amount, r.VoiceCreditsPerOption)
	}
	if r.TxHash != "" {
		fmt.Printf("Tx:         %s (block %d, gas %d)\n", r.TxHash, r.BlockNumber, r.GasUsed)
	}
	if r.Degraded {
		fmt.Println("⚠️  Tally value was read from the artifact, not the contract")
	}
	if r.PerVOProofValid != nil && !*r.PerVOProofValid {
		fmt.Println("⚠️  Per-option spent proof was rejected")
	}
	if r.Error != "" {
		fmt.Printf("Error:      %s\n", r.Error)
	}
}
