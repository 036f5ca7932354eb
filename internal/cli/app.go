package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dmitrijs2005/digitalmira/internal/config"
	"github.com/dmitrijs2005/digitalmira/internal/filex"
	"github.com/dmitrijs2005/digitalmira/internal/identity"
	"github.com/dmitrijs2005/digitalmira/internal/logging"
	"github.com/dmitrijs2005/digitalmira/internal/progress"
	"github.com/dmitrijs2005/digitalmira/internal/storage"
	"github.com/dmitrijs2005/digitalmira/internal/storebuilder"
	"golang.org/x/sync/errgroup"
)

// App owns the per-process state: one identity store and one builder canvas.
type App struct {
	config  *config.Config
	logger  logging.Logger
	store   *identity.Store
	builder *storebuilder.Builder
	db      *sql.DB
	watcher *storage.Watcher
	reader  *bufio.Reader
	out     io.Writer

	statusMu   sync.Mutex
	lastStatus string
}

// NewApp opens the durable database named in c and wires the identity store
// and store builder on top of it.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	path, err := filex.EnsureParentDir(c.DatabasePath)
	if err != nil {
		return nil, err
	}

	durable, db, err := storage.OpenDurable(ctx, path)
	if err != nil {
		return nil, err
	}

	opts := []identity.Option{
		identity.WithLogger(logger),
		identity.WithMinPasswordLength(c.MinPasswordLength),
	}
	if c.SessionSecret != "" {
		opts = append(opts, identity.WithSecret([]byte(c.SessionSecret)))
	}

	store := identity.NewStore(durable, storage.NewMemoryScope(), opts...)
	builder := storebuilder.New(storebuilder.LoadCatalog(ctx, logger), durable, store, logger)

	a := newApp(store, builder, logger, os.Stdin, os.Stdout)
	a.config = c
	a.db = db

	if err := builder.Load(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	w, err := storage.NewWatcher(path, c.WatchDebounce, func() { a.onStorageChange(ctx) }, logger)
	if err != nil {
		logger.Warn(ctx, "storage watcher disabled", "error", err)
	} else {
		a.watcher = w
	}

	return a, nil
}

func newApp(store *identity.Store, builder *storebuilder.Builder, logger logging.Logger, in io.Reader, out io.Writer) *App {
	if logger == nil {
		logger = logging.Nop()
	}
	return &App{
		logger:  logger,
		store:   store,
		builder: builder,
		reader:  bufio.NewReader(in),
		out:     out,
	}
}

// Run starts the storage watcher and the REPL and returns when the user
// exits or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	if a.watcher != nil {
		if err := a.watcher.Start(gctx); err != nil {
			a.logger.Warn(ctx, "storage watcher not started", "error", err)
		} else {
			g.Go(func() error {
				<-gctx.Done()
				a.watcher.Stop()
				return nil
			})
		}
	}

	g.Go(func() error {
		defer cancel()
		printlnFn("Welcome to Digital Mira (type 'help' for commands)")
		runREPL(gctx, a, func() string { return a.status(gctx) }, a.reader)
		return nil
	})

	return g.Wait()
}

func (a *App) close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error(context.Background(), "close database", "error", err)
		}
	}
}

func (a *App) isLoggedIn(ctx context.Context) bool {
	ok, err := a.store.IsAuthenticated(ctx)
	if err != nil {
		a.logger.Error(ctx, "session lookup failed", "error", err)
		return false
	}
	return ok
}

// status renders the prompt decoration: the signed-in name and overall
// progress, or nothing for a guest.
func (a *App) status(ctx context.Context) string {
	s := a.renderStatus(ctx)

	a.statusMu.Lock()
	a.lastStatus = s
	a.statusMu.Unlock()

	return s
}

func (a *App) renderStatus(ctx context.Context) string {
	acc, err := a.store.CurrentAccount(ctx)
	if err != nil || acc == nil {
		return ""
	}
	return fmt.Sprintf("(%s %d%%)", acc.Name, progress.Aggregate(acc.Progress))
}

// onStorageChange runs on the watcher goroutine. Writes made by this process
// are already reflected in the prompt, so only a changed status is reported.
func (a *App) onStorageChange(ctx context.Context) {
	s := a.renderStatus(ctx)

	a.statusMu.Lock()
	changed := s != a.lastStatus
	a.lastStatus = s
	a.statusMu.Unlock()

	if !changed {
		return
	}

	a.logger.Debug(ctx, "durable storage changed elsewhere")
	printlnFn()
	printlnFn("Session or progress changed in another window.")
	printlnFn(prompt(s))
}
