// Command driftcheck compares store A with store B and exits non-zero when
// they have diverged.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"mandoub-backend/internal/config"
	"mandoub-backend/internal/db"
	"mandoub-backend/internal/logger"
	"mandoub-backend/internal/models"
	"mandoub-backend/internal/proxyclient"
	"mandoub-backend/internal/repositories"
	"mandoub-backend/internal/services"
)

func main() {
	kindFlag := flag.String("kind", "", "Only check this kind (submissions, representatives, settings, formSettings)")
	asJSON := flag.Bool("json", false, "Print reports as JSON")
	timeout := flag.Duration("timeout", 2*time.Minute, "Overall timeout")
	flag.Parse()

	cfg := config.Load()
	logger.Setup(cfg.Log.Level, cfg.Log.Pretty)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	kinds := []models.Kind{models.KindSubmission, models.KindRepresentative, models.KindSettings, models.KindFormSettings}
	if *kindFlag != "" {
		kind, err := models.ParseKind(*kindFlag)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid -kind")
		}
		kinds = []models.Kind{kind}
	}

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("connect store A")
	}
	defer pool.Close()

	reconciler := services.NewReconciler(
		repositories.NewDocumentRepository(pool),
		proxyclient.New(cfg.Proxy.URL, cfg.Proxy.Resource, cfg.Proxy.ClientTimeout),
	)

	reports := make([]*services.DriftReport, 0, len(kinds))
	for _, kind := range kinds {
		report, err := reconciler.Drift(ctx, kind)
		if err != nil {
			log.Fatal().Err(err).Str("kind", string(kind)).Msg("drift check failed")
		}
		reports = append(reports, report)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			log.Fatal().Err(err).Msg("encode reports")
		}
	} else {
		printReports(reports)
	}

	for _, r := range reports {
		if !r.InSync() {
			os.Exit(1)
		}
	}
}

func printReports(reports []*services.DriftReport) {
	fmt.Printf("%-16s %8s %8s %8s %8s %9s %8s\n", "KIND", "STORE A", "STORE B", "ONLY A", "ONLY B", "DIFFERING", "UNKEYED")
	for _, r := range reports {
		fmt.Printf("%-16s %8d %8d %8d %8d %9d %8d\n",
			r.Kind, r.CountA, r.CountB, len(r.OnlyInA), len(r.OnlyInB), len(r.Differing), r.Unkeyed)
	}
	for _, r := range reports {
		for _, id := range r.OnlyInA {
			fmt.Printf("%s %s only in store A\n", r.Kind, id)
		}
		for _, id := range r.OnlyInB {
			fmt.Printf("%s %s only in store B\n", r.Kind, id)
		}
		for _, id := range r.Differing {
			fmt.Printf("%s %s differs\n", r.Kind, id)
		}
	}
}
