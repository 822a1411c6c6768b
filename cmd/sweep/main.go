// Command sweep deletes expired notes and saved notes once and exits. It reads the
// same configuration as the server and is meant for cron jobs when the in-process
// sweeper is not wanted.
package main

import (
	"context"
	"os"

	"github.com/notebins/notebins/internal/config"
	"github.com/notebins/notebins/internal/stores"
	"github.com/notebins/notebins/internal/sweeper"
	"github.com/notebins/notebins/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout+cfg.MongoDB.Timeout)
	defer cancel()

	st, err := stores.Open(ctx, cfg)
	if err != nil {
		logger.Fatalf("failed to open note store: %v", err)
	}

	report := sweeper.New(0).
		Add("notes", st.Notes).
		Add("savednotes", st.Saved).
		SweepOnce(ctx)

	os.Exit(finish(report, st.Close))
}

// finish closes the stores and returns the exit code: 1 when any store failed to sweep.
func finish(report sweeper.Report, closeStores func(context.Context) error) int {
	code := 0
	for _, res := range report.Results {
		if res.Err != nil {
			code = 1
		}
	}
	if err := closeStores(context.Background()); err != nil {
		logger.Warnf("closing note store: %v", err)
	}
	return code
}
