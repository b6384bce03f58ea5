package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/conorfennell/knolsched/internal/config"
	"github.com/conorfennell/knolsched/internal/ingest"
	"github.com/conorfennell/knolsched/internal/review"
	"github.com/conorfennell/knolsched/internal/selector"
	"github.com/conorfennell/knolsched/internal/sm2"
	"github.com/conorfennell/knolsched/internal/storage"
	"github.com/conorfennell/knolsched/internal/study"
	"github.com/conorfennell/knolsched/internal/web"
)

const usage = `Usage: knolsched <command> [flags]

Commands:
  add-source <path|url.git>  Register a directory or git repository of markdown notes
  sync                       Pull git sources and reconcile cards with the notes
  study                      Run an interactive study session in the terminal
  due                        List cards due on the long-horizon schedule
  serve                      Serve the JSON study API

Run "knolsched <command> --help" for the flags of a command.
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		slog.Error("knolsched failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprint(os.Stderr, usage)
		return nil
	}
	cmd := args[0]

	fs := pflag.NewFlagSet("knolsched "+cmd, pflag.ContinueOnError)
	config.RegisterFlags(fs)
	sourceGroup := fs.String("source-group", "", "Group assigned to cards of the added source (add-source only)")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	cfg, err := config.Load(fs)
	if err != nil {
		return err
	}
	logger := cfg.Logger()
	slog.SetDefault(logger)

	db, err := storage.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	logger.Debug("Database opened", "path", cfg.Database)

	switch cmd {
	case "add-source":
		if fs.NArg() != 1 {
			return errors.New("add-source takes exactly one path or git URL")
		}
		return addSource(db, fs.Arg(0), *sourceGroup)
	case "sync":
		return syncSources(db, cfg.ReposDir)
	case "study":
		session, err := newSession(cfg, db, logger)
		if err != nil {
			return err
		}
		if err := runStudy(os.Stdin, os.Stdout, session); err != nil {
			session.Close()
			return err
		}
		if err := session.Close(); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		printStats(os.Stdout, session.Stats())
		return nil
	case "due":
		return listDue(db, cfg)
	case "serve":
		return serve(cfg, db, logger)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func addSource(db *storage.DB, path, group string) error {
	sourceType := ingest.SourceType(path)
	if sourceType == storage.SourceLocal {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", path, err)
		}
		path = abs
	}
	existing, err := db.FindSourceByPath(path)
	if err != nil {
		return err
	}
	if existing != nil {
		fmt.Printf("Source already registered with id %d: %s\n", existing.ID, path)
		return nil
	}
	id, err := db.InsertSource(path, sourceType, group)
	if err != nil {
		return err
	}
	fmt.Printf("Added %s source %d: %s\n", sourceType, id, path)
	return nil
}

func syncSources(db *storage.DB, reposDir string) error {
	reports, err := ingest.Run(db, reposDir)
	if err != nil {
		return err
	}
	for _, r := range reports {
		fmt.Printf("Source %d: %d cards parsed, %d new, %d released (%d deleted), %d errors.\n",
			r.SourceID, r.Parsed, r.Inserted, r.Orphaned, r.Deleted, len(r.Errors))
		for _, e := range r.Errors {
			fmt.Printf("- %s\n", e)
		}
	}
	return nil
}

// newSession loads the configured group into a fresh study session.
func newSession(cfg *config.Config, db *storage.DB, logger *slog.Logger) (*study.Session, error) {
	store, err := study.LoadDeck(db, cfg.Group)
	if err != nil {
		return nil, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	sel := selector.New(rand.New(rand.NewSource(seed)), nil)
	proc := review.New(store,
		review.WithLongHorizon(cfg.LongHorizon),
		review.WithParams(&sm2.Params{InitialEaseFactor: cfg.InitialEase}),
		review.WithLogger(logger),
	)
	opts := study.Options{
		Group:    cfg.Group,
		DueOnly:  cfg.DueOnly,
		DueLimit: cfg.DueLimit,
		Logger:   logger,
	}
	return study.New(store, sel, proc, db, opts), nil
}

func listDue(db *storage.DB, cfg *config.Config) error {
	cards, err := db.DueCards(time.Now(), cfg.Group, cfg.DueLimit)
	if err != nil {
		return err
	}
	fmt.Printf("%d cards due.\n", len(cards))
	for _, c := range cards {
		next := "new"
		if c.Horizon != nil && c.Horizon.NextReview != nil {
			next = c.Horizon.NextReview.Local().Format("2006-01-02")
		}
		fmt.Printf("%s  %-10s %-6s %s\n", shortID(c.ID), next, c.Difficulty, c.Prompt)
	}
	return nil
}

func serve(cfg *config.Config, db *storage.DB, logger *slog.Logger) error {
	srv, err := web.NewServer(db, cfg.ReposDir, func() (*study.Session, error) {
		return newSession(cfg, db, logger)
	}, logger)
	if err != nil {
		return err
	}
	defer srv.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{Addr: cfg.Listen, Handler: srv}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Server shutdown failed", "error", err)
		}
	}()

	logger.Info("Starting server", "addr", cfg.Listen)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
