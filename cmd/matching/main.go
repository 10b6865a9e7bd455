// Package main is the matching CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/collabhub/matching/internal/cli"
	"github.com/collabhub/matching/internal/config"
	"github.com/collabhub/matching/internal/mapping"
	"github.com/collabhub/matching/internal/models"
	"github.com/collabhub/matching/internal/server"
	"github.com/collabhub/matching/internal/storage"
	"github.com/collabhub/matching/internal/watcher"
	"github.com/collabhub/matching/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/matching/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "search":
		runSearch()
	case "similar":
		runSimilar()
	case "suggest":
		runSuggest()
	case "index":
		runIndex()
	case "seed":
		runSeed()
	case "delete":
		runDelete()
	case "activate":
		runLifecycle("activate", true)
	case "deactivate":
		runLifecycle("deactivate", false)
	case "runs":
		runRuns()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("matching version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
		zap.Bool("watch_config", cfg.WatchConfig),
	)

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	srv := server.NewServer(
		components.Engine,
		components.Indexer,
		components.KeywordIndex,
		cfg,
		logger,
		server.WithSeeder(components.Seeder, components.Ledger),
	)

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.WatchConfig {
		watchOpts := []watcher.WatcherOption{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		configWatcher := watcher.NewWatcher([]string{resolvedConfigPath}, func(path string) {
			_ = srv.ReloadConfig(path)
		}, watchOpts...)
		if err := configWatcher.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start config watcher", zap.Error(err))
		}
		defer configWatcher.Stop()
	}

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// printSearchUsage prints search subcommand usage.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: matching search [flags] [query]\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. An empty query lists the newest documents.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  matching search travel photography
  matching search --types Blogger,Offer "street food"
  matching search --fuzzy 2 photografy
  matching search --after 2024-01-01 --size 20
`)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// configPathFromArgs returns the value of -config/--config from args if present, else defaultPath.
func configPathFromArgs(args []string, defaultPath string) string {
	for i, a := range args {
		if (a == "-config" || a == "--config") && i+1 < len(args) {
			return args[i+1]
		}
	}
	return defaultPath
}

// pageSizeDefaultFromConfig loads config at path and returns its default page size.
// On load failure, returns models.DefaultPageSize.
func pageSizeDefaultFromConfig(path string) int {
	cfg, _, err := loadConfig(path)
	if err != nil || cfg == nil {
		return models.DefaultPageSize
	}
	return cfg.Search.DefaultPageSize
}

// argsReorder moves any flags (and their values) that appear after the
// positional arguments to the front so that flag.Parse() sees them. Go's flag
// package stops at the first non-flag argument.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// parseItemTypes parses a comma separated list of item types. Blank yields nil.
func parseItemTypes(csv string) ([]models.ItemType, error) {
	var out []models.ItemType
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		t, err := models.ParseItemType(part)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// parseDate accepts YYYY-MM-DD or RFC 3339. Blank yields nil.
func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid date %q (want YYYY-MM-DD or RFC 3339)", s)
}

func mustFormat(s string) cli.OutputFormat {
	format, err := cli.ParseOutputFormat(s)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return format
}

func runSearch() {
	searchArgs := argsReorder(os.Args[2:])
	defaultSize := pageSizeDefaultFromConfig(configPathFromArgs(searchArgs, defaultConfigPath))

	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use the index directly when the server is not running)")
	page := fs.Int("page", 1, "page number (1-based)")
	size := fs.Int("size", defaultSize, "results per page")
	types := fs.String("types", "", "comma separated item types to search (default: all)")
	includeInactive := fs.Bool("include-inactive", false, "include deactivated documents")
	fuzzy := fs.Int("fuzzy", 0, "edit distance tolerated per term (0-2)")
	after := fs.String("after", "", "only documents updated on or after this date")
	before := fs.String("before", "", "only documents updated on or before this date")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgs)

	format := mustFormat(*outputFormat)
	itemTypes, err := parseItemTypes(*types)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	createdAfter, err := parseDate(*after)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	createdBefore, err := parseDate(*before)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	onlyActive := !*includeInactive
	q := &models.SearchQuery{
		Text:       buildSearchQuery(fs.Args()),
		Pagination: models.Pagination{Page: *page, Size: *size},
		Filters: models.Filters{
			ItemTypes:     itemTypes,
			OnlyActive:    &onlyActive,
			CreatedAfter:  createdAfter,
			CreatedBefore: createdBefore,
		},
		FuzzyDistance: *fuzzy,
	}

	var response *models.SearchResponse
	if *serverURL != "" {
		// The HTTP API avoids the bleve lock held by a running server.
		response = &models.SearchResponse{}
		err = postJSON(*serverURL+"/api/v1/search", q, response)
	} else {
		response, err = withComponents(*configPath, func(ctx context.Context, c *Components) (*models.SearchResponse, error) {
			return c.Engine.Search(ctx, q)
		})
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runSimilar() {
	args := argsReorder(os.Args[2:])
	defaultSize := pageSizeDefaultFromConfig(configPathFromArgs(args, defaultConfigPath))

	fs := flag.NewFlagSet("similar", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use the index directly)")
	sourceType := fs.String("type", "", "item type of the seed entity (required)")
	types := fs.String("types", "", "comma separated item types to return (default: the seed's type)")
	page := fs.Int("page", 1, "page number (1-based)")
	size := fs.Int("size", defaultSize, "results per page")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(args)

	if fs.NArg() < 1 || *sourceType == "" {
		fmt.Println("Usage: matching similar --type <item-type> [flags] <source-entity-id>")
		os.Exit(1)
	}
	format := mustFormat(*outputFormat)
	typ, err := models.ParseItemType(*sourceType)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	itemTypes, err := parseItemTypes(*types)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	q := &models.SimilarQuery{
		SourceEntityID: fs.Arg(0),
		SourceType:     typ,
		Pagination:     models.Pagination{Page: *page, Size: *size},
		Filters:        models.Filters{ItemTypes: itemTypes},
	}
	var response *models.SearchResponse
	if *serverURL != "" {
		response = &models.SearchResponse{}
		err = postJSON(*serverURL+"/api/v1/search/similar", q, response)
	} else {
		response, err = withComponents(*configPath, func(ctx context.Context, c *Components) (*models.SearchResponse, error) {
			return c.Engine.SearchSimilar(ctx, q)
		})
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Similar search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runSuggest() {
	fs := flag.NewFlagSet("suggest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use the index directly)")
	itemType := fs.String("type", "", "restrict suggestions to one item type")
	maxSuggestions := fs.Int("max", 0, "maximum number of suggestions (default from config)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	format := mustFormat(*outputFormat)
	var typ models.ItemType
	if *itemType != "" {
		t, err := models.ParseItemType(*itemType)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		typ = t
	}
	partial := buildSearchQuery(fs.Args())

	var (
		suggestions []string
		err         error
	)
	if *serverURL != "" {
		params := url.Values{"q": {partial}}
		if typ != "" {
			params.Set("type", string(typ))
		}
		if *maxSuggestions > 0 {
			params.Set("max", strconv.Itoa(*maxSuggestions))
		}
		var out struct {
			Suggestions []string `json:"suggestions"`
		}
		err = getJSON(*serverURL+"/api/v1/suggestions?"+params.Encode(), &out)
		suggestions = out.Suggestions
	} else {
		suggestions, err = withComponents(*configPath, func(ctx context.Context, c *Components) ([]string, error) {
			return c.Engine.GetSuggestions(ctx, partial, typ, *maxSuggestions)
		})
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Suggest failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSuggestions(os.Stdout, suggestions, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// readDocuments decodes a JSON array of document inputs. Inputs that fail
// validation are reported by position and left out.
func readDocuments(path string) ([]*models.SearchDocument, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var inputs []models.DocumentInput
	if err := json.Unmarshal(data, &inputs); err != nil {
		return nil, nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	docs := make([]*models.SearchDocument, 0, len(inputs))
	var rejected []string
	for i, in := range inputs {
		doc, err := models.NewSearchDocument(in)
		if err != nil {
			rejected = append(rejected, fmt.Sprintf("position %d: %v", i, err))
			continue
		}
		docs = append(docs, doc)
	}
	return docs, rejected, nil
}

func runIndex() {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: matching index [flags] <documents.json>")
		os.Exit(1)
	}
	format := mustFormat(*outputFormat)
	docs, rejected, err := readDocuments(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	for _, r := range rejected {
		fmt.Fprintf(os.Stderr, "Skipped %s\n", r)
	}

	var indexErr error
	_, err = withComponents(*configPath, func(ctx context.Context, c *Components) (struct{}, error) {
		report, err := c.Indexer.IndexDocuments(ctx, docs)
		indexErr = err
		return struct{}{}, cli.WriteBulkReport(os.Stdout, report, format)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
	if indexErr != nil {
		fmt.Fprintf(os.Stderr, "Indexing failed: %v\n", indexErr)
		os.Exit(1)
	}
}

func runSeed() {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	itemType := fs.String("type", "", "item type of the entities in the file (required)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 || *itemType == "" {
		fmt.Println("Usage: matching seed --type <item-type> [flags] <entities.json>")
		os.Exit(1)
	}
	format := mustFormat(*outputFormat)
	typ, err := models.ParseItemType(*itemType)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read entities: %v\n", err)
		os.Exit(1)
	}
	entities, err := mapping.Decode(typ, data)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var syncErr error
	_, err = withComponents(*configPath, func(ctx context.Context, c *Components) (struct{}, error) {
		run, err := c.Seeder.Sync(ctx, typ, entities, nil)
		syncErr = err
		if run == nil {
			return struct{}{}, nil
		}
		return struct{}{}, cli.WriteSyncRun(os.Stdout, run, format)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
	if syncErr != nil {
		fmt.Fprintf(os.Stderr, "Seeding failed: %v\n", syncErr)
		os.Exit(1)
	}
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	itemType := fs.String("type", "", "delete every document of this item type and source entity id")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: matching delete [flags] <document-id>")
		fmt.Println("       matching delete --type <item-type> <source-entity-id>")
		os.Exit(1)
	}
	id := fs.Arg(0)

	if *itemType == "" {
		_, err := withComponents(*configPath, func(ctx context.Context, c *Components) (struct{}, error) {
			return struct{}{}, c.Indexer.RemoveDocument(ctx, id)
		})
		if err != nil {
			fmt.Printf("Deletion failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Document deleted: %s\n", id)
		return
	}

	typ, err := models.ParseItemType(*itemType)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	n, err := withComponents(*configPath, func(ctx context.Context, c *Components) (int, error) {
		return c.Indexer.RemoveDocumentsBySourceEntity(ctx, id, typ)
	})
	if err != nil {
		fmt.Printf("Deletion failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Deleted %s of %s %s\n", utils.Pluralize(n, "document", "documents"), typ, id)
}

func runLifecycle(name string, active bool) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	itemType := fs.String("type", "", "item type of the source entity (required)")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 || *itemType == "" {
		fmt.Printf("Usage: matching %s --type <item-type> <source-entity-id>\n", name)
		os.Exit(1)
	}
	typ, err := models.ParseItemType(*itemType)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	id := fs.Arg(0)
	n, err := withComponents(*configPath, func(ctx context.Context, c *Components) (int, error) {
		if active {
			return c.Indexer.ActivateDocumentsBySourceEntity(ctx, id, typ)
		}
		return c.Indexer.DeactivateDocumentsBySourceEntity(ctx, id, typ)
	})
	if err != nil {
		fmt.Printf("%s failed: %v\n", name, err)
		os.Exit(1)
	}
	fmt.Printf("Updated %s of %s %s\n", utils.Pluralize(n, "document", "documents"), typ, id)
}

func runRuns() {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	itemType := fs.String("type", "", "only runs of this item type")
	limit := fs.Int("limit", 20, "number of runs to list")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format := mustFormat(*outputFormat)
	var typ models.ItemType
	if *itemType != "" {
		t, err := models.ParseItemType(*itemType)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		typ = t
	}
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	ledger, err := storage.NewSQLiteLedger(cfg.Storage.LedgerPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open ledger: %v\n", err)
		os.Exit(1)
	}
	defer ledger.Close()

	runs, err := ledger.ListRuns(context.Background(), typ, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "List runs failed: %v\n", err)
		os.Exit(1)
	}
	if format == cli.OutputJSON {
		if runs == nil {
			runs = []*models.SyncRun{}
		}
		_ = cli.WriteJSON(os.Stdout, runs)
		return
	}
	if len(runs) == 0 {
		fmt.Println("No sync runs recorded")
		return
	}
	for _, run := range runs {
		_ = cli.WriteSyncRun(os.Stdout, run, cli.OutputText)
	}
}

// statusResponse is the shape of GET /api/v1/status response.
type statusResponse struct {
	Documents  uint64          `json:"documents"`
	SyncRuns   int64           `json:"syncRuns"`
	DiskUsage  []storage.Usage `json:"diskUsage"`
	DiskBytes  int64           `json:"diskBytes"`
	BatchSize  int             `json:"batchSize"`
	IndexPath  string          `json:"indexPath"`
	LedgerPath string          `json:"ledgerPath,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = read the index directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format := mustFormat(*outputFormat)
	var status statusResponse
	if *serverURL != "" {
		if err := getJSON(*serverURL+"/api/v1/status", &status); err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		res, err := withComponents(*configPath, func(ctx context.Context, c *Components) (statusResponse, error) {
			docs, err := c.KeywordIndex.DocCount()
			if err != nil {
				return statusResponse{}, fmt.Errorf("count documents: %w", err)
			}
			runs, err := c.Ledger.CountRuns(ctx)
			if err != nil {
				return statusResponse{}, fmt.Errorf("count sync runs: %w", err)
			}
			s := statusResponse{
				Documents:  docs,
				SyncRuns:   runs,
				BatchSize:  c.Config.Index.BatchSize,
				IndexPath:  c.Config.Storage.BleveIndexPath,
				LedgerPath: c.Config.Storage.LedgerPath,
			}
			if usage, total, err := storage.DiskUsage(s.IndexPath, s.LedgerPath); err == nil {
				s.DiskUsage, s.DiskBytes = usage, total
			}
			return s, nil
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = res
	}

	if format == cli.OutputJSON {
		if err := cli.WriteJSON(os.Stdout, status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}
	fmt.Printf("documents:          %d   # count of indexed documents\n", status.Documents)
	fmt.Printf("sync_runs:          %d   # count of recorded seeding runs\n", status.SyncRuns)
	fmt.Printf("disk_usage_bytes:   %d   # index + ledger on disk\n", status.DiskBytes)
	fmt.Println()
	fmt.Println("# configuration")
	fmt.Printf("batch_size:         %d\n", status.BatchSize)
	if status.IndexPath != "" {
		fmt.Printf("bleve_index_path:   %s\n", status.IndexPath)
	}
	if status.LedgerPath != "" {
		fmt.Printf("ledger_path:        %s\n", status.LedgerPath)
	}
}

func postJSON(endpoint string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := http.Post(endpoint, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func getJSON(endpoint string, out interface{}) error {
	resp, err := http.Get(endpoint)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out interface{}) error {
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func printUsage() {
	fmt.Println(`matching - search indexing and retrieval for the collaboration marketplace

Usage:
  matching server [flags]                        Start the HTTP server
  matching search [flags] [query]                Full-text search
  matching similar --type <type> [flags] <id>    Documents similar to a source entity
  matching suggest [flags] <partial>             Title completions
  matching index [flags] <documents.json>        Index a JSON array of documents
  matching seed --type <type> [flags] <file>     Sync a JSON array of entities
  matching delete [flags] <id>                   Delete a document (or a source entity with --type)
  matching activate --type <type> <id>           Reactivate a source entity's documents
  matching deactivate --type <type> <id>         Hide a source entity's documents
  matching runs [flags]                          List recorded sync runs
  matching status [flags]                        Show index and ledger status
  matching version                               Show version
  matching help                                  Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/matching/config.yaml)
  --server string    Server URL for search, similar, suggest and status (default: http://localhost:8080).
                     Use --server "" to open the index directly when the server is not running.
  --output string    Output format: text or json (default: text)

Search Flags:
  --page int              Page number (default: 1)
  --size int              Results per page (default from config)
  --types string          Comma separated item types
  --include-inactive      Include deactivated documents
  --fuzzy int             Edit distance per term, 0-2
  --after, --before       Date bounds on lastUpdated (YYYY-MM-DD)

Examples:
  matching server
  matching search "street food" --types Blogger
  matching similar --type Blogger b-42
  matching suggest --type Campaign tra
  matching seed --type Offer offers.json
  matching deactivate --type Blogger b-42
  matching status --output json`)
}
