package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/okian/hooklens/internal/adapters/embedding"
	"github.com/okian/hooklens/internal/adapters/http/api"
	"github.com/okian/hooklens/internal/adapters/repository"
	service "github.com/okian/hooklens/internal/app"
	"github.com/okian/hooklens/internal/config"
	"github.com/okian/hooklens/internal/domain/types"
	"github.com/okian/hooklens/pkg/logger"
)

// Subcommands.
const (
	cmdClassify = "classify"
	cmdSeed     = "seed-embeddings"
	cmdImport   = "import-categories"
)

var errUsage = errors.New("usage")

const usage = `usage:
  hooklens [classify] [taxonomy]               label unlabeled items for one taxonomy
  hooklens classify -item <id> [taxonomy]      (re)label one item, overwriting its label
  hooklens seed-embeddings [-force] [taxonomy] generate category reference vectors
  hooklens import-categories <file.yaml>       upsert category definitions

taxonomy is one of topic, hook_type (alias hook), structure, audience.
Settings come from HOOKLENS_* environment variables, an optional .env file
and the YAML file named by HOOKLENS_CONFIG.
`

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> .env -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.Get()
	applyLogSettings(ctx, log, cfg)

	if err := run(ctx, cfg, os.Args[1:], os.Stdout, log); err != nil {
		if errors.Is(err, errUsage) {
			os.Stderr.WriteString(usage)
			os.Exit(2)
		}
		log.Error(ctx, "hooklens failed", logger.Error(err))
		os.Exit(1)
	}
}

// applyLogSettings applies the configured level and format, falling back to
// info/text on invalid input.
func applyLogSettings(ctx context.Context, log logger.Logger, cfg *config.Config) {
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	if err := logger.SetFormat(cfg.LogFormat); err != nil {
		log.Warn(ctx, "invalid log_format; falling back to text", logger.String("log_format", cfg.LogFormat), logger.Error(err))
		_ = logger.SetFormat("text")
	}
}

// splitCommand returns the subcommand and its arguments. Anything that is
// not a known subcommand is treated as arguments to classify.
func splitCommand(args []string) (string, []string) {
	if len(args) > 0 {
		switch args[0] {
		case cmdClassify, cmdSeed, cmdImport:
			return args[0], args[1:]
		}
	}
	return cmdClassify, args
}

// resolveKind maps the mode argument to a taxonomy. An empty argument uses the
// configured taxonomy; an unknown name falls back to the default with a warning.
func resolveKind(ctx context.Context, log logger.Logger, arg, configured string) types.Kind {
	mode := strings.TrimSpace(arg)
	if mode == "" {
		mode = configured
	}
	kind, ok := types.ParseKind(mode)
	if !ok {
		log.Warn(ctx, "unknown taxonomy; using default",
			logger.String("taxonomy", mode),
			logger.String("default", types.DefaultKind.String()))
	}
	return kind
}

func run(ctx context.Context, cfg *config.Config, args []string, out io.Writer, log logger.Logger) error {
	name, rest := splitCommand(args)

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	force := fs.Bool("force", false, "re-embed categories that already have a vector")
	itemID := fs.String("item", "", "classify only this item id")
	if err := fs.Parse(rest); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if fs.NArg() > 1 {
		return fmt.Errorf("%w: unexpected arguments %v", errUsage, fs.Args()[1:])
	}
	if *force && name != cmdSeed {
		return fmt.Errorf("%w: -force only applies to %s", errUsage, cmdSeed)
	}
	if *itemID != "" && name != cmdClassify {
		return fmt.Errorf("%w: -item only applies to %s", errUsage, cmdClassify)
	}

	store, err := repository.OpenSQLite(cfg.DBPath, repository.WithLogger(log.Named("store")))
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error(ctx, "failed to close store", logger.Error(err))
		}
	}()

	switch name {
	case cmdImport:
		if fs.NArg() != 1 {
			return fmt.Errorf("%w: %s needs a file", errUsage, cmdImport)
		}
		svc := service.New(store, service.WithLogger(log), service.WithBatchSize(cfg.BatchSize))
		sum, err := svc.ImportCategories(ctx, fs.Arg(0))
		if err != nil {
			return err
		}
		for _, k := range types.Kinds() {
			if n := sum.Upserted[k]; n > 0 {
				fmt.Fprintf(out, "%s: upserted=%d\n", k, n)
			}
		}
		return nil

	case cmdSeed:
		kind := resolveKind(ctx, log, fs.Arg(0), cfg.Taxonomy)
		embedder, err := newEmbedder(cfg, log)
		if err != nil {
			return err
		}
		svc := service.New(store, service.WithLogger(log), service.WithEmbedder(embedder))
		sum, err := svc.SeedEmbeddings(ctx, kind, *force)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: eligible=%d seeded=%d skipped=%d\n", kind, sum.Eligible, sum.Seeded, len(sum.Skipped))
		return nil
	}

	kind := resolveKind(ctx, log, fs.Arg(0), cfg.Taxonomy)
	opts := []service.Option{service.WithLogger(log), service.WithBatchSize(cfg.BatchSize)}
	if embedder, err := newEmbedder(cfg, log); err != nil {
		log.Warn(ctx, "embedding provider unavailable; classifying with rules only", logger.Error(err))
	} else {
		opts = append(opts, service.WithEmbedder(embedder))
	}
	svc := service.New(store, opts...)

	if *itemID != "" {
		res, err := svc.ClassifyItem(ctx, kind, *itemID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: item=%s category=%s method=%s confidence=%.2f\n",
			kind, res.ItemID, res.Category, res.Method, res.Confidence)
		return nil
	}

	if cfg.MetricsAddr != "" {
		srvCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if _, err := api.Serve(srvCtx, cfg.MetricsAddr, api.NewServer(svc).Handler(srvCtx), log.Named("ops")); err != nil {
			return err
		}
	}

	sum, err := svc.Run(ctx, kind)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, sum.String())
	return nil
}

func newEmbedder(cfg *config.Config, log logger.Logger) (*embedding.BatchEmbedder, error) {
	provider, err := embedding.NewProvider(cfg.Provider())
	if err != nil {
		return nil, err
	}
	return embedding.NewBatchEmbedder(provider,
		embedding.WithBatchCap(cfg.EmbedBatchCap),
		embedding.WithMaxChars(cfg.MaxTextChars),
		embedding.WithThrottle(cfg.Throttle()),
		embedding.WithRetries(cfg.EmbeddingRetries),
		embedding.WithRetryBase(cfg.RetryBase()),
		embedding.WithLogger(log.Named("embedding")),
	), nil
}
