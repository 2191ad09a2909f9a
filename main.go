package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"sjsage522/menuscout/config"
	"sjsage522/menuscout/internal/auth"
	"sjsage522/menuscout/internal/cart"
	"sjsage522/menuscout/internal/crawl"
	"sjsage522/menuscout/internal/matcher"
	"sjsage522/menuscout/internal/price"
	"sjsage522/menuscout/internal/selection"
	"sjsage522/menuscout/internal/selector"
	"sjsage522/menuscout/internal/session"
	"sjsage522/menuscout/logger"
	"sjsage522/menuscout/services/publisher"
	"sjsage522/menuscout/services/worker"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logger.Default.Error().Err(err).Msg("Command failed")
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "menuscout",
		Short:         "Find a dish across storefront vendors and put the chosen price tier in the cart",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newMatchCmd(), newAnalyzeCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var (
		term       string
		category   string
		maxVendors int
		driver     string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Crawl vendors, select by price tier and add the target to the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig()
			flags := cmd.Flags()
			if flags.Changed("term") {
				cfg.SearchTerm = term
			}
			if flags.Changed("category") {
				cfg.PriceCategory = category
			}
			if flags.Changed("max-vendors") {
				cfg.MaxVendors = maxVendors
			}
			if flags.Changed("driver") {
				cfg.Driver = driver
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runOnce(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&term, "term", "t", "", "search term (SEARCH_TERM)")
	cmd.Flags().StringVarP(&category, "category", "c", "", "price tier: cheap, medium or expensive (PRICE_CATEGORY)")
	cmd.Flags().IntVarP(&maxVendors, "max-vendors", "n", 0, "vendors to visit (MAX_VENDORS)")
	cmd.Flags().StringVar(&driver, "driver", "", "browser driver: playwright or static (BROWSER_DRIVER)")
	return cmd
}

func runOnce(ctx context.Context, cfg *config.Config) error {
	log := logger.ForWorker()
	log.Info().
		Str("environment", cfg.Environment).
		Str("term", cfg.SearchTerm).
		Str("category", cfg.PriceCategory).
		Int("max_vendors", cfg.MaxVendors).
		Str("driver", cfg.Driver).
		Msg("Starting run")

	catalog, err := selector.LoadCatalog(cfg.SelectorsFile)
	if err != nil {
		return err
	}

	services, err := initializeServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer services.Cleanup()

	resolver := selector.NewResolver(services.Browser, cfg.SelectorTimeout)

	manager := session.NewManager(services.Browser, resolver, catalog, session.Options{
		StorefrontURL: cfg.StorefrontURL,
		AddressName:   cfg.AddressName,
		AddressWait:   cfg.AddressWait,
	})

	var authenticator worker.Authenticator
	if cfg.LoginRequired {
		var codes auth.CodeProvider = auth.NewTerminalCodeProvider()
		if cfg.SecondaryAuthCode != "" {
			codes = auth.StaticCodeProvider{Code: cfg.SecondaryAuthCode}
		}
		authenticator = auth.NewAuthenticator(services.Browser, resolver, catalog, codes, auth.Options{
			CodeTimeout:   cfg.SecondaryAuthTimeout,
			SettleTimeout: cfg.SettleTimeout,
		})
	}

	controller := crawl.NewController(services.Browser, resolver, catalog,
		matcher.Default(),
		price.NewParser(cfg.MinValidPrice, cfg.MaxValidPrice),
		crawl.Options{
			SearchURL:           cfg.SearchURL,
			MaxItemsPerVendor:   cfg.MaxItemsPerVendor,
			NavigationTimeout:   cfg.NavigationTimeout,
			SettleTimeout:       cfg.SettleTimeout,
			MaxRecoveryAttempts: cfg.MaxRecoveryAttempts,
		}).WithMetrics(services.Metrics)

	placer := cart.NewPlacer(services.Browser, resolver, catalog, cart.Options{
		SearchURL:         cfg.SearchURL,
		RelocateByLink:    cfg.RelocateByLink,
		NavigationTimeout: cfg.NavigationTimeout,
		SettleTimeout:     cfg.SettleTimeout,
	}).WithMetrics(services.Metrics)

	runner := worker.NewRunner(manager, authenticator, controller, placer, services.Publisher, worker.Options{
		SearchTerm:    cfg.SearchTerm,
		PriceCategory: cfg.PriceCategory,
		MaxVendors:    cfg.MaxVendors,
		Credentials:   auth.Credentials{Email: cfg.Email, Password: cfg.Password},
		Checkout:      cfg.ProceedToCheckout,
		Report:        os.Stdout,
	})

	result, err := runner.Run(ctx)
	if worker.IsEmpty(err) {
		fmt.Fprintf(os.Stdout, "No items matching %q were found.\n", cfg.SearchTerm)
		return nil
	}
	if err != nil {
		return err
	}
	if !result.Committed {
		log.Warn().Err(result.CommitError).Msg("Selected item was not added to the cart")
	}
	return nil
}

func newMatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "match <phrase> <name>...",
		Short: "Show how the matcher decides on item names for a search phrase",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			phrase, names := args[0], args[1:]
			rules := matcher.Default()

			t := selection.NewTable(cmd.OutOrStdout())
			t.SetTitle(fmt.Sprintf("%q (normalized %q)", phrase, matcher.Normalize(phrase)))
			t.AppendHeader(table.Row{"Name", "Match", "Rule", "Reason"})
			for _, name := range names {
				v := rules.Explain(name, phrase)
				t.AppendRow(table.Row{name, v.Match, v.Rule, v.Reason})
			}
			t.Render()
			return nil
		},
	}
}

func newAnalyzeCmd() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "analyze <results.csv>",
		Short: "Summarize stored results and re-run the tier selection on them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := publisher.ReadCSV(args[0])
			if err != nil {
				return err
			}
			return analyze(cmd, records, category)
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", "cheap", "price tier to select")
	return cmd
}

// analyze reports each search term of the file separately
func analyze(cmd *cobra.Command, records []publisher.Record, category string) error {
	out := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(out, "No records.")
		return nil
	}

	var terms []string
	byTerm := make(map[string][]crawl.MenuItem)
	for _, r := range records {
		if _, ok := byTerm[r.SearchTerm]; !ok {
			terms = append(terms, r.SearchTerm)
		}
		byTerm[r.SearchTerm] = append(byTerm[r.SearchTerm], r.MenuItem())
	}

	for _, term := range terms {
		items := byTerm[term]
		fmt.Fprintf(out, "\n%s\n", term)
		selection.ReportStats(out, selection.Summarize(items))

		result, err := selection.Select(items, category)
		if err != nil {
			return err
		}
		selection.Report(out, result)
	}
	return nil
}
