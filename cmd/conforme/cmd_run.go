package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"conforme/browser"
	"conforme/checkpoint"
	"conforme/config"
	"conforme/doctext"
	"conforme/extract"
	"conforme/gazette"
	"conforme/pipeline"
	"conforme/portal"
	"conforme/store"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full audit batch",
	Long: `Discovers companies and processo links on the contracts portal, locates
each contract's gazette publication and stores one conformity verdict per
processo. Progress is checkpointed; an interrupted run resumes with
"conforme resume" (or by running "run" again).`,
	RunE: runBatch,
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume an interrupted audit batch",
	Long: `Identical to "run" but refuses to start without an existing checkpoint,
guarding against accidentally starting a fresh multi-hour batch.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if _, err := os.Stat(cfg.Run.CheckpointPath); err != nil {
			return fmt.Errorf("%w: no checkpoint at %s, use \"conforme run\"", errConfig, cfg.Run.CheckpointPath)
		}
		return runBatch(cmd, args)
	},
}

var conformityCmd = &cobra.Command{
	Use:   "conformity",
	Short: "Re-evaluate conformity for stored results",
	Long: `Re-runs the conformity rules over every unit already in the ledger,
without touching the portal or the gazette. Use after rule updates.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		ledger, err := store.Open(cfg.Run.LedgerPath)
		if err != nil {
			return err
		}
		defer ledger.Close()

		progress, err := checkpoint.Load(cfg.Run.CheckpointPath, cfg.Portal.FilterYear)
		if err != nil {
			return err
		}

		runner := pipeline.NewRunner(cfg, nil, nil, nil, nil, extract.RetryPolicy{}, nil, ledger, progress, logger)
		sum, err := runner.RunConformityOnly(ctx)
		if err != nil {
			return err
		}
		printSummary(sum)
		return nil
	},
}

var (
	flagExportXLSX string
	flagExportCSV  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored verdicts to XLSX and/or CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if flagExportXLSX == "" && flagExportCSV == "" {
			return fmt.Errorf("%w: pass --xlsx and/or --csv", errConfig)
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		ledger, err := store.Open(cfg.Run.LedgerPath)
		if err != nil {
			return err
		}
		defer ledger.Close()

		if flagExportXLSX != "" {
			if err := ledger.ExportXLSX(ctx, flagExportXLSX); err != nil {
				return err
			}
			fmt.Println("exported:", flagExportXLSX)
		}
		if flagExportCSV != "" {
			if err := ledger.ExportCSV(ctx, flagExportCSV); err != nil {
				return err
			}
			fmt.Println("exported:", flagExportCSV)
		}
		return nil
	},
}

var flagCompanyCSV string

func init() {
	exportCmd.Flags().StringVar(&flagExportXLSX, "xlsx", "", "XLSX output path")
	exportCmd.Flags().StringVar(&flagExportCSV, "csv", "", "CSV output path")
	runCmd.Flags().StringVar(&flagCompanyCSV, "csv", "", "CSV seed of companies to audit instead of portal discovery")
	resumeCmd.Flags().StringVar(&flagCompanyCSV, "csv", "", "CSV seed of companies to audit instead of portal discovery")
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if flagCompanyCSV != "" {
		cfg.Run.CompanyCSV = flagCompanyCSV
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	manager := browser.NewManager(browser.Config{
		RemoteURL: cfg.Browser.Remote,
		Headless:  cfg.Browser.Headless,
		Logger:    logger,
	})
	if err := manager.Start(ctx); err != nil {
		return err
	}
	defer manager.Close()

	session, err := manager.Session(ctx)
	if err != nil {
		return err
	}

	apiKey := os.Getenv(cfg.Extract.APIKeyEnv)
	if apiKey == "" {
		return fmt.Errorf("%w: %s is not set", errConfig, cfg.Extract.APIKeyEnv)
	}
	adapter, err := extract.NewGenAI(ctx, apiKey, cfg.Extract.Model, cfg.Extract.Timeout)
	if err != nil {
		return err
	}
	policy := extract.RetryPolicy{}

	rodAdapter := portal.NewRodAdapter(session, portal.RodConfig{
		BaseURL:    cfg.Portal.BaseURL,
		FilterYear: cfg.Portal.FilterYear,
		Timeout:    cfg.PortalTimeout(),
		MinSettle:  cfg.MinSettle(),
		Logger:     logger,
	})
	collector := portal.NewRowCollector(rodAdapter, cfg.Portal.MaxScrollPasses, logger)
	navigator := portal.NewNavigator(rodAdapter, 2*time.Minute, logger)

	gate := gazette.NewCaptchaGate(session, cfg.Gazette.CaptchaAutoAttempts, cfg.Gazette.CaptchaManualTimeout, logger)
	downloader := gazette.NewDownloader(cfg.Run.TempDir, cfg.GazetteTimeout(), logger)
	defer downloader.Purge()

	engine := gazette.NewEngine(session, gate, downloader,
		doctext.FromPDF,
		func(ctx context.Context, text string) (*extract.ContractRecord, error) {
			return extract.Run(ctx, adapter, policy, text)
		},
		gazette.EngineConfig{
			BaseURL:        cfg.Gazette.BaseURL,
			MaxCandidates:  cfg.Gazette.MaxCandidates,
			MaxResultPages: cfg.Gazette.MaxResultPages,
			Timeout:        cfg.GazetteTimeout(),
			Logger:         logger,
		})

	ledger, err := store.Open(cfg.Run.LedgerPath)
	if err != nil {
		return err
	}
	defer ledger.Close()

	progress, err := checkpoint.Load(cfg.Run.CheckpointPath, cfg.Portal.FilterYear)
	if err != nil {
		return err
	}

	fetchText := func(ctx context.Context, url string) (string, error) {
		if err := session.Navigate(ctx, url); err != nil {
			return "", err
		}
		if err := session.WaitSettled(ctx, cfg.MinSettle()); err != nil {
			return "", err
		}
		return session.BodyText(ctx)
	}

	runner := pipeline.NewRunner(cfg, collector, navigator, engine,
		adapter, policy, fetchText, ledger, progress, logger)

	sum, err := runner.Run(ctx)
	if sum != nil {
		printSummary(sum)
	}
	if err != nil {
		return err
	}

	exportDefault(ctx, cfg, ledger)
	return nil
}

// exportDefault writes the standard spreadsheet next to the ledger. Export
// failure is reported but does not fail the batch; the data is in the ledger.
func exportDefault(ctx context.Context, cfg *config.Config, ledger *store.Store) {
	path := filepath.Join(cfg.Run.DataDir, fmt.Sprintf("conformidade_%d.xlsx", cfg.Portal.FilterYear))
	if err := ledger.ExportXLSX(ctx, path); err != nil {
		fmt.Fprintln(os.Stderr, "conforme: export failed:", err)
		return
	}
	fmt.Println("exported:", path)
}

func printSummary(sum *pipeline.Summary) {
	fmt.Printf("run %s: %d processed, %d skipped, %d failed (%s)\n",
		sum.RunID, sum.Processed, sum.Skipped, sum.Failed, sum.Elapsed.Round(time.Second))
	for status, n := range sum.Statuses {
		fmt.Printf("  %-14s %d\n", status, n)
	}
	if sum.Failed > 0 {
		fmt.Printf("  failures: %d captcha, %d timeout, %d parse, %d other\n",
			sum.SkippedCaptcha, sum.SkippedTimeout, sum.SkippedParse, sum.SkippedOther)
	}
}
