package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/dshills/catalog-search/internal/catalog"
	"github.com/dshills/catalog-search/internal/config"
	"github.com/dshills/catalog-search/internal/embedder"
	"github.com/dshills/catalog-search/internal/mcp"
	"github.com/dshills/catalog-search/internal/searcher"
	"github.com/dshills/catalog-search/internal/storage"
	"github.com/dshills/catalog-search/pkg/types"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Fprintf(c.App.Writer, "catalogsearch %s (built %s, %s build, driver %s)\n",
			version, buildTime, storage.BuildMode, storage.DriverName)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		slog.Error("catalogsearch failed", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "catalogsearch",
		Usage:   "Semantic product search over a furniture and fixtures catalog",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML config file",
				Value:   "catalog.yaml",
				EnvVars: []string{"CATALOG_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Path to dotenv file with category ids and API keys",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Logging level (debug, info, warn, error); overrides the config file",
			},
		},
		Action: serveCommand,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Load the catalog and serve MCP search tools on stdio",
				Action: serveCommand,
			},
			{
				Name:      "search",
				Usage:     "Run one search and print the page of product ids as JSON",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "endpoint",
						Aliases:  []string{"e"},
						Usage:    "Search endpoint, e.g. faucets or tub-fillers",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "page",
						Usage: "1-based result page",
						Value: 1,
					},
					&cli.StringFlag{
						Name:  "hole-spacing",
						Usage: "Faucet hole spacing: Single Hole, Widespread or Centerset",
					},
					&cli.StringSliceFlag{
						Name:  "location",
						Usage: "Required tile location (wall, floor, shower_wall, shower_floor); repeatable",
					},
					&cli.StringFlag{
						Name:  "tub-spout",
						Usage: "Shower systems with (true) or without (false) a tub spout",
					},
					&cli.Float64Flag{
						Name:  "length-max",
						Usage: "Maximum product length",
					},
					&cli.Float64Flag{
						Name:  "width-max",
						Usage: "Maximum product width",
					},
				},
			},
			{
				Name:   "status",
				Usage:  "Print catalog table counts and in-memory index statistics",
				Action: statusCommand,
			},
			{
				Name:   "reembed",
				Usage:  "Regenerate stored product name embeddings with the configured provider",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent embedding requests",
						Value: catalog.DefaultReembedWorkers,
					},
				},
			},
		},
	}
}

// runtime holds what every command needs after flag parsing
type runtime struct {
	cfg    *config.Config
	logger *slog.Logger
}

// setup loads configuration and installs the stderr logger.
// stdout is reserved for MCP protocol messages and command output.
func setup(c *cli.Context) (*runtime, error) {
	cfg, err := config.Load(c.String("config"), c.String("env-file"))
	if err != nil {
		return nil, err
	}

	levelStr := cfg.LogLevel
	if c.IsSet("log-level") {
		levelStr = c.String("log-level")
	}
	logger, err := newLogger(c.App.ErrWriter, levelStr)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &runtime{cfg: cfg, logger: logger}, nil
}

func newLogger(w io.Writer, levelStr string) (*slog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(levelStr))); err != nil {
		return nil, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}

// openCatalog opens the catalog database. A missing file is an error rather
// than an empty catalog.
func openCatalog(path string) (*storage.SQLiteStorage, error) {
	if path != ":memory:" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("catalog database %s: %w", path, err)
		}
	}
	store, err := storage.NewSQLiteStorage(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	return store, nil
}

// loadIndex builds the in-memory index and releases the database
func (rt *runtime) loadIndex(ctx context.Context) (catalog.Index, *catalog.LoadStats, error) {
	store, err := openCatalog(rt.cfg.Database.Path)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = store.Close() }()

	loader := &catalog.Loader{
		Source:    store,
		Synthetic: rt.cfg.SyntheticSpec(),
		Dimension: rt.cfg.Embedding.Dimension,
		Logger:    rt.logger,
	}
	return loader.Load(ctx)
}

// buildSearcher loads the catalog, then the embedding model, then the searcher.
// The caller closes the returned embedder.
func (rt *runtime) buildSearcher(ctx context.Context) (*searcher.Searcher, embedder.Embedder, error) {
	index, stats, err := rt.loadIndex(ctx)
	if err != nil {
		return nil, nil, err
	}
	rt.logger.Info("catalog loaded",
		"products", stats.Products,
		"categories", stats.Categories,
		"embedding_mb", fmt.Sprintf("%.2f", stats.EmbeddingMB),
		"duration", stats.Duration)

	emb, err := embedder.New(rt.cfg.EmbedderConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	if dim := index.Stats().Dimension; dim > 0 && emb.Dimension() != dim {
		rt.logger.Warn("embedder dimension differs from catalog",
			"embedder", emb.Dimension(), "catalog", dim, "provider", emb.Provider())
	}

	cache := embedder.NewQueryCache(rt.cfg.Embedding.CacheSize)
	if err := cache.Attach(ctx, emb); err != nil {
		_ = emb.Close()
		return nil, nil, err
	}
	rt.logger.Info("embedding model ready", "provider", emb.Provider(), "model", emb.Model(),
		"cache_capacity", cache.Capacity())

	return searcher.New(index, cache, searcher.WithLogger(rt.logger)), emb, nil
}

func serveCommand(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	rt.logger.Info("catalog-search starting", "version", version, "build_mode", storage.BuildMode, "driver", storage.DriverName)

	engine, emb, err := rt.buildSearcher(c.Context)
	if err != nil {
		return err
	}
	defer func() { _ = emb.Close() }()

	server, err := mcp.NewServer(engine, rt.cfg, mcp.WithLogger(rt.logger))
	if err != nil {
		return err
	}
	if err := server.Serve(c.Context); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server error: %w", err)
	}
	rt.logger.Info("server stopped")
	return nil
}

func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return types.ErrEmptyQuery
	}

	endpoint, err := config.LookupEndpoint(c.String("endpoint"))
	if err != nil {
		return err
	}
	filters, err := searchFilters(c)
	if err != nil {
		return err
	}
	if err := filters.Allows(endpoint.Filters); err != nil {
		return fmt.Errorf("%s: %w", endpoint.Name, err)
	}
	if c.Int("page") < 1 {
		return fmt.Errorf("%w: got %d", types.ErrInvalidPage, c.Int("page"))
	}

	rt, err := setup(c)
	if err != nil {
		return err
	}
	categoryID, err := rt.cfg.CategoryID(endpoint.Name)
	if err != nil {
		return err
	}
	engine, emb, err := rt.buildSearcher(c.Context)
	if err != nil {
		return err
	}
	defer func() { _ = emb.Close() }()

	ids, err := engine.Search(c.Context, categoryID, query, filters)
	if err != nil {
		return err
	}
	page, err := mcp.Paginate(ids, c.Int("page"))
	if err != nil {
		return err
	}
	return writeJSON(c.App.Writer, page)
}

// searchFilters maps command flags onto a filter set
func searchFilters(c *cli.Context) (*types.FilterSet, error) {
	filters := &types.FilterSet{
		HoleSpacing: c.String("hole-spacing"),
		Locations:   c.StringSlice("location"),
	}
	if c.IsSet("tub-spout") {
		v, err := strconv.ParseBool(c.String("tub-spout"))
		if err != nil {
			return nil, fmt.Errorf("invalid --tub-spout %q: %w", c.String("tub-spout"), err)
		}
		filters.HasTubSpout = types.Bool(v)
	}
	if c.IsSet("length-max") {
		filters.LengthMax = types.Float(c.Float64("length-max"))
	}
	if c.IsSet("width-max") {
		filters.WidthMax = types.Float(c.Float64("width-max"))
	}
	return filters, nil
}

func statusCommand(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}

	store, err := openCatalog(rt.cfg.Database.Path)
	if err != nil {
		return err
	}
	dbStatus, err := store.GetStatus(c.Context)
	_ = store.Close()
	if err != nil {
		return fmt.Errorf("failed to read catalog status: %w", err)
	}

	index, loadStats, err := rt.loadIndex(c.Context)
	if err != nil {
		return err
	}
	stats := index.Stats()

	endpoints := make(map[string]int, len(config.Endpoints))
	for _, e := range config.Endpoints {
		endpoints[e.Name] = stats.PerCategory[rt.cfg.Categories[e.Name]]
	}

	return writeJSON(c.App.Writer, map[string]interface{}{
		"version": version,
		"build": map[string]interface{}{
			"time":   buildTime,
			"mode":   storage.BuildMode,
			"driver": storage.DriverName,
		},
		"database": map[string]interface{}{
			"path":           rt.cfg.Database.Path,
			"schema_version": dbStatus.SchemaVersion,
			"size_mb":        fmt.Sprintf("%.2f", dbStatus.DatabaseSizeMB),
			"products":       dbStatus.ProductsCount,
			"embeddings":     dbStatus.EmbeddingsCount,
			"faucets":        dbStatus.FaucetsCount,
			"tiles":          dbStatus.TilesCount,
			"shower_systems": dbStatus.ShowerSystemCount,
			"dimensions":     dbStatus.DimensionCounts,
		},
		"index": map[string]interface{}{
			"categories":         stats.Categories,
			"products":           stats.Products,
			"dimension":          stats.Dimension,
			"embedding_mb":       fmt.Sprintf("%.2f", stats.EmbeddingMB),
			"skipped_rows":       loadStats.SkippedRows,
			"synthetic_products": loadStats.SyntheticProducts,
			"load_ms":            loadStats.Duration.Milliseconds(),
		},
		"endpoints": endpoints,
	})
}

func reembedCommand(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}

	store, err := openCatalog(rt.cfg.Database.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	emb, err := embedder.New(rt.cfg.EmbedderConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %w", err)
	}
	defer func() { _ = emb.Close() }()

	r := &catalog.Reembedder{
		Store:    store,
		Embedder: emb,
		Workers:  c.Int("workers"),
		Logger:   rt.logger,
	}
	stats, err := r.Run(c.Context)
	if err != nil {
		return err
	}
	return writeJSON(c.App.Writer, map[string]interface{}{
		"products":    stats.Products,
		"skipped":     stats.Skipped,
		"dimension":   stats.Dimension,
		"self_check":  stats.SelfCheck,
		"duration_ms": stats.Duration.Milliseconds(),
	})
}

func writeJSON(w io.Writer, v interface{}) error {
	if w == nil {
		w = os.Stdout
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
