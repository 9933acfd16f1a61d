package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/term"

	"metacache/pkg/auth"
	"metacache/pkg/config"
	"metacache/pkg/graph"
	"metacache/pkg/logger"
	"metacache/pkg/media"
	"metacache/pkg/objstore"
	"metacache/pkg/store"
	"metacache/pkg/syncer"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	startDate  = flag.String("start", "", "Backfill window start (YYYY-MM-DD)")
	endDate    = flag.String("end", "", "Backfill window end (YYYY-MM-DD)")
	lookback   = flag.Int("lookback", 0, "Override lookback days for the cache command")
	strict     = flag.Bool("strict", false, "Scan the full timeline instead of stopping at the first pre-window item")
	concurrent = flag.Int("concurrent", 0, "Override number of accounts synced concurrently")
)

const usage = `Usage: metacache [flags] <command>

Commands:
  cache      Incremental sync over the trailing lookback window
  backfill   Sync an explicit window (requires --start and --end)
  discover   List pages and IG accounts reachable by the credential
  followers  Record today's follower snapshot for every account
  insights   Record IG account-level insights for the lookback window
  auth       Store the Meta access token in the credential store
  migrate    Create or update the database schema
  status     Show cached row counts per account
`

func main() {
	flag.Parse()

	args := flag.Args()
	if len(args) != 1 {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
		os.Exit(1)
	}
	command := strings.TrimSpace(args[0])

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	applyOverrides(cfg)

	if err := logger.Initialize(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	log := logger.GetLogger()

	// auth works without a database or an existing token
	if command == "auth" {
		if err := runAuth(); err != nil {
			log.WithError(err).Error("failed to store credential")
			os.Exit(1)
		}
		return
	}

	if cfg.Meta.AccessToken == "" {
		if manager, err := auth.NewManager(); err == nil {
			if cred, err := manager.RetrieveDefault(); err == nil {
				cfg.Meta.AccessToken = cred.AccessToken
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		log.WithError(err).Error("invalid configuration")
		os.Exit(1)
	}
	log.WithField("token", cfg.MaskedToken()).Info("configuration loaded")

	st, err := store.Open(cfg.Database.URL, log)
	if err != nil {
		log.WithError(err).Error("failed to open database")
		os.Exit(1)
	}
	if err := st.Migrate(); err != nil {
		log.WithError(err).Error("schema migration failed")
		os.Exit(1)
	}
	if command == "migrate" {
		log.Info("schema is up to date")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := graph.NewClient(cfg, log)
	router := graph.NewTokenRouter(client, cfg.Meta.AccessToken, log)
	resolver := buildResolver(cfg, log)
	s := syncer.New(client, router, st, resolver, cfg, log)

	switch command {
	case "cache":
		window := syncer.DefaultWindow(cfg.Sync.LookbackDays)
		reportRun(log, s.Run(ctx, window))
	case "backfill":
		if *startDate == "" || *endDate == "" {
			log.Error("backfill requires --start and --end")
			os.Exit(1)
		}
		window, err := syncer.ParseWindow(*startDate, *endDate)
		if err != nil {
			log.WithError(err).Error("invalid backfill window")
			os.Exit(1)
		}
		reportRun(log, s.Run(ctx, window))
	case "discover":
		accounts, err := s.Discover(ctx)
		if err != nil {
			log.WithError(err).Error("discovery failed")
			os.Exit(1)
		}
		for _, a := range accounts {
			tokenNote := "app token"
			if a.HasToken {
				tokenNote = "page token"
			}
			fmt.Printf("%-12s %-20s %s (%s)\n", a.Platform, a.ID, a.Name, tokenNote)
		}
	case "followers":
		reportRun(log, s.SyncFollowers(ctx))
	case "insights":
		window := syncer.DefaultWindow(cfg.Sync.LookbackDays)
		reportRun(log, s.SyncAccountInsights(ctx, window))
	case "status":
		runStatus(ctx, cfg, st)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", command, usage)
		os.Exit(1)
	}
}

func applyOverrides(cfg *config.Config) {
	if *lookback > 0 {
		cfg.Sync.LookbackDays = *lookback
	}
	if *strict {
		cfg.Sync.StrictWindow = true
	}
	if *concurrent > 0 {
		cfg.Sync.ConcurrentAccounts = *concurrent
	}
}

// buildResolver wires the thumbnail resolver, with S3 re-hosting when
// storage is configured.
func buildResolver(cfg *config.Config, log logger.Logger) *media.Resolver {
	if !cfg.StorageEnabled() {
		return media.NewResolver(nil, log)
	}

	uploader, err := objstore.New(&cfg.Storage, log)
	if err != nil {
		log.WithError(err).Warn("storage disabled, keeping ephemeral thumbnail URLs")
		return media.NewResolver(nil, log)
	}
	return media.NewResolver(uploader, log)
}

// reportRun logs per-account outcomes. Account failures are reported
// but do not change the exit code; only setup failures do.
func reportRun(log logger.Logger, results map[string]syncer.AccountResult) {
	failed := 0
	for id, r := range results {
		if r.Err != nil {
			failed++
			log.ErrorWithFields("account failed", map[string]interface{}{
				"account_id": id,
				"platform":   r.Platform,
				"error":      r.Err.Error(),
			})
			continue
		}
		log.InfoWithFields("account ok", map[string]interface{}{
			"account_id":     id,
			"platform":       r.Platform,
			"written":        r.Written,
			"metrics_ok":     r.MetricsOK,
			"metrics_failed": r.MetricsFailed,
		})
	}
	log.InfoWithFields("run finished", map[string]interface{}{
		"accounts": len(results),
		"failed":   failed,
	})
}

// runAuth prompts for the Meta access token without echoing it and
// stores it through the credential chain.
func runAuth() error {
	fmt.Print("Meta access token: ")
	tokenBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}

	token := strings.TrimSpace(string(tokenBytes))
	if token == "" {
		return fmt.Errorf("empty token")
	}

	fmt.Print("App ID (optional): ")
	var appID string
	_, _ = fmt.Scanln(&appID)

	manager, err := auth.NewManager()
	if err != nil {
		return err
	}

	cred := &auth.Credential{
		Name:        auth.DefaultCredentialName,
		AccessToken: token,
		AppID:       strings.TrimSpace(appID),
	}
	if err := manager.Store(cred); err != nil {
		return err
	}

	masked := auth.Sanitize(cred)
	fmt.Printf("stored credential %s (%s)\n", masked.Name, masked.AccessToken)
	return nil
}

func runStatus(ctx context.Context, cfg *config.Config, st *store.Store) {
	for _, pageID := range cfg.Meta.PageIDs {
		posts, _ := st.PostCount(ctx, pageID)
		fmt.Printf("facebook  %-20s posts: %d\n", pageID, posts)
	}
	for _, accountID := range cfg.Meta.IGAccountIDs {
		items, _ := st.MediaCount(ctx, accountID)
		fmt.Printf("instagram %-20s media: %d\n", accountID, items)
	}
}
