package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/vat-recogniser/internal/docintel"
	"github.com/zombor/vat-recogniser/internal/receipt"
	"github.com/zombor/vat-recogniser/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

type config struct {
	scanner          string
	docIntelEndpoint string
	docIntelModel    string
	docIntelKey      string
	docIntelRetry    bool
	minConfidence    float64
	geminiKey        string
	geminiModel      string
	ollamaURL        string
	ollamaModel      string
	store            string
	dbPath           string
	databaseURL      string
	blob             string
	storagePath      string
	minio            receipt.MinioConfig
	batchConcurrency int
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	var cfg config
	fs := ff.NewFlagSet("vat-recogniser")
	var (
		port     = fs.IntLong("port", 8080, "HTTP server port")
		authUser = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		_        = fs.StringLong("config", "", "Config file (flag per line, e.g. 'port 8080')")

		showVersion = fs.BoolLong("version", "Show version information")
	)
	fs.StringVar(&cfg.scanner, 0, "scanner", "docintel", "Scanner type: 'docintel', 'gemini' or 'ollama'")
	fs.StringVar(&cfg.docIntelEndpoint, 0, "docintel-endpoint", "", "Document Intelligence resource URL, e.g. https://name.cognitiveservices.azure.com")
	fs.StringVar(&cfg.docIntelModel, 0, "docintel-model", docintel.DefaultModel, "Document Intelligence model id")
	fs.StringVar(&cfg.docIntelKey, 0, "docintel-key", "", "Document Intelligence key (or set DOC_INTEL_KEY env var)")
	fs.BoolVar(&cfg.docIntelRetry, 0, "docintel-retry-failed", "Keep polling after a failed analysis status")
	fs.Float64Var(&cfg.minConfidence, 0, "min-confidence", 0, "Ignore fields below this confidence (0 accepts all)")
	fs.StringVar(&cfg.geminiKey, 0, "gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
	fs.StringVar(&cfg.geminiModel, 0, "gemini-model", "gemini-2.5-pro", "Google Gemini model name")
	fs.StringVar(&cfg.ollamaURL, 0, "ollama-url", "http://localhost:11434", "Ollama API base URL")
	fs.StringVar(&cfg.ollamaModel, 0, "ollama-model", "llava", "Ollama model name")
	fs.StringVar(&cfg.store, 0, "store", "bolt", "Receipt store: 'bolt', 'postgres' or 'mysql'")
	fs.StringVar(&cfg.dbPath, 0, "db", "vat-recogniser.db", "BoltDB file path")
	fs.StringVar(&cfg.databaseURL, 0, "database-url", "", "SQL connection string for the postgres and mysql stores")
	fs.StringVar(&cfg.blob, 0, "blob", "local", "Document storage: 'local' or 'minio'")
	fs.StringVar(&cfg.storagePath, 0, "storage", "./receipts", "Local storage directory path")
	fs.StringVar(&cfg.minio.Endpoint, 0, "minio-endpoint", "localhost:9000", "MinIO/S3 endpoint")
	fs.StringVar(&cfg.minio.AccessKey, 0, "minio-access-key", "", "MinIO/S3 access key")
	fs.StringVar(&cfg.minio.SecretKey, 0, "minio-secret-key", "", "MinIO/S3 secret key")
	fs.StringVar(&cfg.minio.Bucket, 0, "minio-bucket", "receipts", "MinIO/S3 bucket")
	fs.StringVar(&cfg.minio.Region, 0, "minio-region", "", "MinIO/S3 region")
	fs.BoolVar(&cfg.minio.UseSSL, 0, "minio-use-ssl", "Connect to MinIO/S3 over TLS")
	fs.IntVar(&cfg.batchConcurrency, 0, "batch-concurrency", receipt.DefaultBatchConcurrency, "Documents analyzed in parallel per batch upload")

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("VAT_RECOGNISER"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Initializing database...", "store", cfg.store)
	db, err := openDB(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	scanner, err := newScanner(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize scanner", "type", cfg.scanner, "error", err)
		os.Exit(1)
	}
	defer scanner.Close()

	slog.Info("Initializing storage...", "blob", cfg.blob)
	store, err := openStorage(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	receiptService := receipt.NewService(db, scanner, store)
	receiptService.SetBatchConcurrency(cfg.batchConcurrency)

	basicAuth := receipt.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := receipt.NewServer(receiptService, basicAuth)

	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	<-ctx.Done()

	slog.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Shutdown error", "error", err)
	}
}

func openDB(ctx context.Context, cfg config) (receipt.DB, error) {
	switch cfg.store {
	case "bolt":
		return receipt.NewBoltDB(cfg.dbPath)
	case "postgres", "mysql":
		return receipt.OpenSQL(ctx, receipt.Dialect(cfg.store), cfg.databaseURL, receipt.DefaultSQLOptions())
	}
	return nil, fmt.Errorf("invalid store %q, valid: bolt, postgres or mysql", cfg.store)
}

func openStorage(ctx context.Context, cfg config) (receipt.Storage, error) {
	switch cfg.blob {
	case "local":
		return receipt.NewLocalStorage(cfg.storagePath)
	case "minio":
		return receipt.NewMinioStorage(ctx, cfg.minio)
	}
	return nil, fmt.Errorf("invalid blob storage %q, valid: local or minio", cfg.blob)
}

func newScanner(ctx context.Context, cfg config) (scanning.Scanner, error) {
	switch cfg.scanner {
	case "docintel":
		if cfg.docIntelEndpoint == "" {
			return nil, errors.New("document intelligence endpoint is required, set --docintel-endpoint")
		}
		key := cfg.docIntelKey
		if key == "" {
			key = os.Getenv("DOC_INTEL_KEY")
		}
		if key == "" {
			return nil, errors.New("document intelligence key is required, set --docintel-key or DOC_INTEL_KEY")
		}
		slog.Info("Initializing Document Intelligence scanner...", "endpoint", cfg.docIntelEndpoint, "model", cfg.docIntelModel)
		client, err := docintel.NewClient(docintel.ModelEndpoint(cfg.docIntelEndpoint, cfg.docIntelModel), key)
		if err != nil {
			return nil, err
		}
		poller := docintel.NewPoller(client, docintel.PollerOptions{RetryFailed: cfg.docIntelRetry})
		return scanning.NewDocIntel(docintel.NewAnalyzer(client, poller), scanning.ExtractorOptions{
			MinConfidence: cfg.minConfidence,
		}), nil
	case "gemini":
		key := cfg.geminiKey
		if key == "" {
			key = os.Getenv("GEMINI_API_KEY")
		}
		if key == "" {
			return nil, errors.New("gemini API key is required, set --gemini-key or GEMINI_API_KEY")
		}
		slog.Info("Initializing Gemini scanner...", "model", cfg.geminiModel)
		return scanning.NewGemini(ctx, key, cfg.geminiModel)
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", cfg.ollamaURL, "model", cfg.ollamaModel)
		return scanning.NewOllama(cfg.ollamaURL, cfg.ollamaModel), nil
	}
	return nil, fmt.Errorf("invalid scanner type %q, valid: docintel, gemini or ollama", cfg.scanner)
}
