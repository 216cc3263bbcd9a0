// Package main is the FaceHub CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/DevJelvehgar/face-similarity-search/internal/catalog"
	"github.com/DevJelvehgar/face-similarity-search/internal/cli"
	"github.com/DevJelvehgar/face-similarity-search/internal/config"
	"github.com/DevJelvehgar/face-similarity-search/internal/embedding"
	"github.com/DevJelvehgar/face-similarity-search/internal/ingest"
	"github.com/DevJelvehgar/face-similarity-search/internal/models"
	"github.com/DevJelvehgar/face-similarity-search/internal/search"
	"github.com/DevJelvehgar/face-similarity-search/internal/server"
	"github.com/DevJelvehgar/face-similarity-search/internal/store"
	"github.com/DevJelvehgar/face-similarity-search/internal/watcher"
	"github.com/DevJelvehgar/face-similarity-search/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/facehub/config.yaml"

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
	case "build":
		runBuild()
	case "search":
		runSearch()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("facehub version %s\n", version)
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
	debug := fs.Bool("debug", false, "enable debug logging (ingested files, watcher events, etc.)")
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
	)

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	loaded, err := components.Store.Load(cfg.Storage.IndexPath, cfg.Storage.MetadataPath)
	if err != nil {
		logger.Fatal("Failed to load index artifacts", zap.Error(err))
	}
	if loaded {
		logger.Info("index loaded",
			zap.Int("faces", components.Store.Count()),
			zap.Int("dimension", components.Store.Dimension()))
	} else {
		logger.Info("no persisted index found, starting empty")
	}

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	var watchSvc *watcher.Watcher
	if cfg.Watch.Enabled {
		watchOpts := []watcher.Option{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		watchSvc = watcher.New(
			cfg.Storage.LibraryDir,
			cfg.Watch.Extensions,
			cfg.Watch.RecursiveOrDefault(),
			func(path string) {
				if err := components.Builder.IngestFile(context.Background(), path); err != nil {
					logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(err))
				}
			},
			func(path string) {
				if err := components.Builder.MarkRemoved(context.Background(), path); err != nil {
					logger.Warn("watch mark removed failed", zap.String("path", path), zap.Error(err))
				}
			},
			watchOpts...,
		)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		watchSvc.SyncExistingFiles()
	}

	srv := server.NewServer(
		components.Engine,
		components.Store,
		components.Builder,
		components.Catalog,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if err := components.Store.Save(cfg.Storage.IndexPath, cfg.Storage.MetadataPath); err != nil {
		logger.Warn("index save failed",
			zap.String("index_path", cfg.Storage.IndexPath),
			zap.Error(err))
	}
	watchCancel()
	if watchSvc != nil {
		watchSvc.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runBuild() {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	incremental := fs.Bool("incremental", false, "skip images unchanged since the last build instead of rebuilding from scratch")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	dir := cfg.Storage.LibraryDir
	if fs.NArg() > 0 {
		dir = fs.Arg(0)
	}

	ctx := context.Background()
	var report *models.BuildReport
	if *incremental {
		if _, err := components.Store.Load(cfg.Storage.IndexPath, cfg.Storage.MetadataPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load existing index: %v\n", err)
			os.Exit(1)
		}
		report, err = components.Builder.BuildFromDirectory(ctx, dir, cfg.Watch.Extensions)
	} else {
		report, err = components.Builder.Rebuild(ctx, dir, cfg.Watch.Extensions)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Build failed: %v\n", err)
		os.Exit(1)
	}
	if err := components.Store.Save(cfg.Storage.IndexPath, cfg.Storage.MetadataPath); err != nil {
		fmt.Fprintf(os.Stderr, "Saving index failed: %v\n", err)
		os.Exit(1)
	}

	format := cli.OutputText
	if *outputFormat == "json" {
		format = cli.OutputJSON
	}
	if err := cli.WriteBuildReport(os.Stdout, report, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use the local index directly)")
	k := fs.Int("k", 0, "number of results (0 = server/config default)")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: facehub search [flags] <image>")
		os.Exit(1)
	}
	imagePath := fs.Arg(0)

	format := cli.OutputText
	switch *outputFormat {
	case "json":
		format = cli.OutputJSON
	case "compact":
		format = cli.OutputCompact
	case "text":
	default:
		fmt.Printf("Unknown output format %q; use text, compact, or json\n", *outputFormat)
		os.Exit(1)
	}

	if *serverURL != "" {
		response, err := searchViaHTTP(*serverURL, imagePath, *k)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Direct index access (when server is not running).
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	if _, err := components.Store.Load(cfg.Storage.IndexPath, cfg.Storage.MetadataPath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load index: %v\n", err)
		os.Exit(1)
	}
	response, err := components.Engine.FindSimilarImage(context.Background(), imagePath, *k)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func searchViaHTTP(serverURL, imagePath string, k int) (*models.SearchResponse, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filepath.Base(imagePath))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	url := serverURL + "/api/v1/search"
	if k > 0 {
		url = fmt.Sprintf("%s?k=%d", url, k)
	}
	resp, err := http.Post(url, mw.FormDataContentType(), &body)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use the local index directly)")
	_ = fs.Parse(os.Args[2:])

	if *serverURL != "" {
		resp, err := http.Get(*serverURL + "/api/v1/status")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "Server returned %d: %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		var status map[string]interface{}
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
			os.Exit(1)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(status)
		return
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	s, err := store.New(cfg.Embedding.Dimensions)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create store: %v\n", err)
		os.Exit(1)
	}
	if _, err := s.Load(cfg.Storage.IndexPath, cfg.Storage.MetadataPath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load index: %v\n", err)
		os.Exit(1)
	}
	diskBytes, _ := catalog.DiskUsageBytes(cfg.Storage.IndexPath, cfg.Storage.MetadataPath, cfg.Storage.DatabasePath)
	fmt.Printf("faces:              %d\n", s.Count())
	fmt.Printf("dimension:          %d\n", s.Dimension())
	fmt.Printf("disk_usage_bytes:   %d\n", diskBytes)
	fmt.Printf("index_path:         %s\n", cfg.Storage.IndexPath)
	fmt.Printf("metadata_path:      %s\n", cfg.Storage.MetadataPath)
	fmt.Printf("library_dir:        %s\n", cfg.Storage.LibraryDir)
}

// Components holds initialized services.
type Components struct {
	Store     *store.Store
	Extractor embedding.Extractor
	Catalog   *catalog.Catalog
	Engine    *search.Engine
	Builder   *ingest.Builder
}

func (c *Components) Close() {
	if c.Extractor != nil {
		_ = c.Extractor.Close()
	}
	if c.Catalog != nil {
		_ = c.Catalog.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	s, err := store.New(cfg.Embedding.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	var extractor embedding.Extractor
	onnxExtractor, err := embedding.NewONNXExtractor(
		cfg.Embedding.ModelPath,
		cfg.Embedding.Dimensions,
		cfg.Embedding.CacheSize,
	)
	if err != nil {
		if logger != nil {
			logger.Warn("ONNX extractor unavailable, using mock embeddings",
				zap.String("model_path", cfg.Embedding.ModelPath),
				zap.Error(err))
		}
		extractor = embedding.NewMockExtractor(cfg.Embedding.Dimensions)
	} else {
		extractor = onnxExtractor
	}

	cat, err := catalog.Open(cfg.Storage.DatabasePath)
	if err != nil {
		_ = extractor.Close()
		return nil, fmt.Errorf("failed to initialize catalog: %w", err)
	}

	engine := search.NewEngine(s, extractor, &cfg.Search)

	buildOpts := []ingest.BuilderOption{ingest.WithCatalog(cat)}
	if debug && logger != nil {
		buildOpts = append(buildOpts, ingest.WithLogger(logger))
	}
	builder := ingest.NewBuilder(s, extractor, buildOpts...)

	return &Components{
		Store:     s,
		Extractor: extractor,
		Catalog:   cat,
		Engine:    engine,
		Builder:   builder,
	}, nil
}

func printUsage() {
	fmt.Println(`facehub - Face similarity search

Usage:
  facehub server [flags]           Start the HTTP server
  facehub build [flags] [dir]      Build the face index from an image directory
  facehub search [flags] <image>   Find faces similar to the one in <image>
  facehub status [flags]           Show index status
  facehub version                  Show version
  facehub help                     Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/facehub/config.yaml)
  --debug            Enable debug logging (ingested files, watcher events, etc.)

Build Flags:
  --config string    Config file path
  --incremental      Skip images unchanged since the last build
  --output string    Output format: text or json (default: text)

Search Flags:
  --config string    Config file path (for direct index mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for direct index access.
  --k int            Number of results (0 = default)
  --output string    Output format: text, compact, or json (default: text)

Status Flags:
  --config string    Config file path (for direct index mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for direct index access.

Examples:
  facehub server
  facehub build ~/photos
  facehub build --incremental
  facehub search query.jpg
  facehub search --k 5 --output json query.jpg
  facehub status`)
}
