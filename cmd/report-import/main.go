package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"bitbucket.org/ostrovlabs/loyalty_backend/config"
	"bitbucket.org/ostrovlabs/loyalty_backend/models"
	"bitbucket.org/ostrovlabs/loyalty_backend/reportmerge"
)

func main() {
	skipMigrate := flag.Bool("skip-migrate", false, "Skip AutoMigrate on startup")
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "usage: report-import [flags] <file.xlsx|file.csv> ...")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}
	if !*skipMigrate {
		models.MigrateTable()
	}

	ctx := context.Background()
	failed := 0
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed++
			continue
		}

		batch, stats, err := reportmerge.ProcessReportFile(ctx, filepath.Base(path), data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed++
			continue
		}

		fmt.Printf("%s: batch=%d type=%s status=%s rows=%d created=%d updated=%d skipped=%d tier1=%d tier2=%d tier3=%d unmatched=%d errors=%d\n",
			path, batch.ID, batch.ReportType, batch.ProcessingStatus, batch.RowsCount,
			stats.Created, stats.Updated, stats.Skipped,
			stats.MatchedTier1, stats.MatchedTier2, stats.MatchedTier3,
			stats.Unmatched, stats.Errors)
	}

	if failed > 0 {
		os.Exit(1)
	}
}
