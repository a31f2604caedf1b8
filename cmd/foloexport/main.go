// Package main provides the folo-exporter command-line tool.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"foloexport/internal/cache"
	"foloexport/internal/config"
	"foloexport/internal/export"
	"foloexport/internal/fetcher"
	"foloexport/internal/folo"
	"foloexport/internal/logger"
	"foloexport/internal/models"
	"foloexport/internal/reconcile"
	"foloexport/internal/session"

	"github.com/samber/lo"
)

// Process exit codes. Authentication failures get a distinct code so
// wrapping scripts can trigger a re-login.
const (
	exitOK          = 0
	exitFailure     = 1
	exitAuthFailure = 2
)

const defaultConfigPath = "~/.folo-exporter/config.yaml"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, usage())

		return exitFailure
	}

	switch args[0] {
	case "help", "-h", "--help":
		fmt.Fprintln(stdout, usage())

		return exitOK
	case "fetch":
		return runFetch(args[1:], stdout, stderr)
	case "check-auth":
		return runCheckAuth(args[1:], stdout, stderr)
	case "mark-read":
		return runMarkRead(args[1:], stdout, stderr)
	case "cache":
		return runCache(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n%s\n", args[0], usage())

		return exitFailure
	}
}

// commonOpts are the flags shared by every subcommand.
type commonOpts struct {
	configPath string
	statePath  string
	cookie     string
	apiBase    string
	logLevel   string
}

func addCommonFlags(fs *flag.FlagSet, opts *commonOpts) {
	fs.StringVar(&opts.configPath, "config", defaultConfigPath, "Path to YAML configuration file")
	fs.StringVar(&opts.statePath, "state", "", "Storage state JSON path (overrides config)")
	fs.StringVar(&opts.cookie, "cookie", "", "Raw cookie header (overrides state file and env)")
	fs.StringVar(&opts.apiBase, "api-base", "", "API base URL (overrides config)")
	fs.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
}

// setup loads configuration and applies flag overrides.
func (o *commonOpts) setup() (*config.Config, *logger.Logger, error) {
	cfg, err := config.LoadConfig(config.ExpandHome(o.configPath))
	if err != nil {
		return nil, nil, err
	}

	if o.apiBase != "" {
		cfg.API.BaseURL = o.apiBase
	}

	if o.statePath != "" {
		cfg.Auth.StatePath = o.statePath
	}

	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}

	return cfg, logger.NewLogger(cfg.Logging.Level), nil
}

// resolveClient turns the credential sources into a ready API client.
func resolveClient(cfg *config.Config, cookieFlag string) (*folo.Client, error) {
	resolver := session.Resolver{
		Explicit:  cookieFlag,
		EnvVar:    cfg.Auth.CookieEnv,
		StatePath: cfg.StatePath(),
	}

	header, err := resolver.Resolve(cfg.API.BaseURL+"/entries", time.Now())
	if err != nil {
		return nil, err
	}

	return folo.NewClient(cfg.API.BaseURL, header, time.Duration(cfg.API.TimeoutSec)*time.Second), nil
}

func newReconciler(cfg *config.Config, client *folo.Client, store *cache.Store, log *logger.Logger) *reconcile.Reconciler {
	candidates := lo.Map(cfg.MarkRead.Candidates, func(c config.CandidateConfig, _ int) reconcile.Candidate {
		return reconcile.Candidate{BaseURL: c.BaseURL, Path: c.Path, Legacy: c.Legacy}
	})

	var clearer reconcile.CacheClearer
	if store != nil {
		clearer = store
	}

	return reconcile.New(client, candidates, clearer, log)
}

func articleIDs(articles []models.Article) []string {
	return lo.FilterMap(articles, func(a models.Article, _ int) (string, bool) {
		if a.ID == nil {
			return "", false
		}

		return *a.ID, true
	})
}

func runFetch(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts commonOpts

	addCommonFlags(fs, &opts)

	format := fs.String("format", "", "json | grouped | list (default from config)")
	out := fs.String("out", "", "Output file path; prints to stdout when omitted")
	batchSize := fs.Int("batch-size", 0, "Entries per request, max 100")
	maxRequests := fs.Int("max-requests", 0, "Safety cap for paginated requests")
	markRead := fs.Bool("mark-read", false, "Mark exported articles as read after export")

	if err := fs.Parse(args); err != nil {
		return exitFailure
	}

	cfg, log, err := opts.setup()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)

		return exitFailure
	}

	if *format != "" {
		cfg.Output.Format = *format
	}

	if *batchSize != 0 {
		cfg.Fetch.BatchSize = *batchSize
	}

	if *maxRequests != 0 {
		cfg.Fetch.MaxRequests = *maxRequests
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)

		return exitFailure
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client, err := resolveClient(cfg, opts.cookie)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)

		return exitAuthFailure
	}

	auth, err := client.CheckAuth(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: auth check failed: %v\n", err)

		return exitFailure
	}

	if !auth.OK {
		fmt.Fprintf(stderr, "Error: auth invalid (status %d), please login again\n", auth.Status)

		return exitAuthFailure
	}

	// The cache is a convenience; a broken cache file must not block an
	// export.
	store, err := cache.Open(cfg.CachePath())
	if err != nil {
		log.Warn("snapshot cache unavailable", "error", err)

		store = nil
	} else {
		defer store.Close()
	}

	f := fetcher.New(client, cfg.API.CursorField, cfg.Fetch.BatchSize, cfg.Fetch.MaxRequests, log)

	result, err := f.FetchAllUnread(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)

		// Point at the previous snapshot instead of presenting partial
		// results as if they were complete.
		if store != nil {
			if snapshot, found, loadErr := store.Load(ctx); loadErr == nil && found {
				fmt.Fprintf(stderr, "Last successful export: %d articles, %s ago\n",
					snapshot.Count, snapshot.Age(time.Now()).Round(time.Minute))
			}
		}

		return exitFailure
	}

	now := time.Now()

	if store != nil {
		if err := store.Save(ctx, cache.NewSnapshot(result.Articles, now)); err != nil {
			log.Warn("failed to save snapshot", "error", err)
		}
	}

	var output []byte

	if cfg.Output.Format == export.FormatJSON {
		output, err = export.GenerateJSON(result.Articles, now)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)

			return exitFailure
		}
	} else {
		output = []byte(export.GenerateMarkdown(result.Articles, cfg.Output.Format, now))
	}

	if *out != "" {
		outputPath := config.ExpandHome(*out)

		if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)

			return exitFailure
		}

		if err := os.WriteFile(outputPath, output, 0644); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)

			return exitFailure
		}

		fmt.Fprintf(stdout, "Exported %d articles -> %s\n", len(result.Articles), outputPath)

		if table := export.CategoryTable(result.Articles); table != "" {
			fmt.Fprintf(stdout, "\n%s", table)
		}
	} else {
		_, _ = stdout.Write(output)
	}

	if result.Truncated {
		fmt.Fprintf(stderr, "Warning: stopped after %d requests, results may be incomplete\n", result.Requests)
	}

	if *markRead {
		// Mark-as-read is layered after the export; its failure must not
		// invalidate the export that already happened.
		reconcileFetched(ctx, cfg, client, store, log, result.Articles, stdout, stderr)
	}

	return exitOK
}

func reconcileFetched(ctx context.Context, cfg *config.Config, client *folo.Client, store *cache.Store, log *logger.Logger, articles []models.Article, stdout, stderr io.Writer) {
	r := newReconciler(cfg, client, store, log)

	result, err := r.MarkRead(ctx, articleIDs(articles))
	if err != nil {
		fmt.Fprintf(stderr, "Warning: %s\n", reconcileMessage(err))

		return
	}

	fmt.Fprintf(stdout, "Marked %d articles as read\n", result.Count)
}

func reconcileMessage(err error) string {
	if errors.Is(err, reconcile.ErrEndpointUnavailable) {
		return "mark-as-read is not available for this account or deployment"
	}

	return fmt.Sprintf("failed to mark articles as read: %v", err)
}

func runCheckAuth(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("check-auth", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts commonOpts

	addCommonFlags(fs, &opts)

	if err := fs.Parse(args); err != nil {
		return exitFailure
	}

	cfg, _, err := opts.setup()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)

		return exitFailure
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client, err := resolveClient(cfg, opts.cookie)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)

		return exitAuthFailure
	}

	auth, err := client.CheckAuth(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: auth check failed: %v\n", err)

		return exitFailure
	}

	if !auth.OK {
		fmt.Fprintf(stderr, "Auth check failed with status %d\n", auth.Status)

		return exitAuthFailure
	}

	fmt.Fprintf(stdout, "Auth OK (status %d, sample entries: %d)\n", auth.Status, auth.Samples)

	return exitOK
}

func runMarkRead(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("mark-read", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts commonOpts

	addCommonFlags(fs, &opts)

	if err := fs.Parse(args); err != nil {
		return exitFailure
	}

	cfg, log, err := opts.setup()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)

		return exitFailure
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := cache.Open(cfg.CachePath())
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)

		return exitFailure
	}
	defer store.Close()

	snapshot, found, err := store.Load(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)

		return exitFailure
	}

	if !found {
		fmt.Fprintln(stderr, "No cached snapshot; run fetch first")

		return exitFailure
	}

	client, err := resolveClient(cfg, opts.cookie)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)

		return exitAuthFailure
	}

	r := newReconciler(cfg, client, store, log)

	result, err := r.MarkRead(ctx, articleIDs(snapshot.Articles))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %s\n", reconcileMessage(err))

		return exitFailure
	}

	if result.Count == 0 {
		fmt.Fprintln(stdout, "Nothing to mark as read")

		return exitOK
	}

	fmt.Fprintf(stdout, "Marked %d articles as read\n", result.Count)

	return exitOK
}

func runCache(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "Usage: foloexport cache <show|clear> [options]")

		return exitFailure
	}

	action := args[0]
	if action != "show" && action != "clear" {
		fmt.Fprintf(stderr, "Unknown cache action: %s\n", action)

		return exitFailure
	}

	fs := flag.NewFlagSet("cache", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts commonOpts

	addCommonFlags(fs, &opts)

	if err := fs.Parse(args[1:]); err != nil {
		return exitFailure
	}

	cfg, _, err := opts.setup()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)

		return exitFailure
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := cache.Open(cfg.CachePath())
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)

		return exitFailure
	}
	defer store.Close()

	if action == "show" {
		snapshot, found, err := store.Load(ctx)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)

			return exitFailure
		}

		if !found {
			fmt.Fprintln(stdout, "Cache is empty")

			return exitOK
		}

		staleness := ""

		threshold := time.Duration(cfg.Cache.StaleAfterMin) * time.Minute
		if snapshot.Stale(time.Now(), threshold) {
			staleness = " (stale)"
		}

		fmt.Fprintf(stdout, "Cached %d articles, fetched %s ago%s\n",
			snapshot.Count, snapshot.Age(time.Now()).Round(time.Minute), staleness)

		if table := export.CategoryTable(snapshot.Articles); table != "" {
			fmt.Fprintf(stdout, "\n%s", table)
		}

		return exitOK
	}

	if err := store.Clear(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)

		return exitFailure
	}

	fmt.Fprintln(stdout, "Cache cleared")

	return exitOK
}

func usage() string {
	return `Folo Exporter

Usage:
  foloexport <command> [options]

Commands:
  fetch        Export unread entries to JSON or Markdown
  check-auth   Validate the current session against the API
  mark-read    Mark the last fetched articles as read
  cache        Inspect or clear the snapshot cache (show | clear)

Common options:
  --config <path>    YAML config path (default: ~/.folo-exporter/config.yaml)
  --state <path>     Storage state JSON path (default: ~/.folo-exporter/storage-state.json)
  --cookie <string>  Raw cookie header (overrides state file and FOLO_COOKIE)
  --api-base <url>   API base URL (default: https://api.folo.is)
  --log-level <lvl>  debug | info | warn | error

fetch options:
  --format <type>    json | grouped | list (default: json)
  --out <path>       Output file path. If omitted, prints to stdout
  --batch-size <n>   Entries per request, max 100 (default: 100)
  --max-requests <n> Safety cap for paginated requests (default: 50)
  --mark-read        Mark exported articles as read after export

Exit codes:
  0  success
  1  generic failure
  2  authentication failure

Examples:
  foloexport check-auth --state ~/.folo-exporter/storage-state.json
  foloexport fetch --format json --out ./folo-export.json
  foloexport fetch --cookie "__Secure-next-auth.session-token=..." --format grouped`
}
