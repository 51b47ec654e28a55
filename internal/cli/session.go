package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"taskdesk/internal/config"
	"taskdesk/internal/logging"
	"taskdesk/internal/schema"
	"taskdesk/internal/storage"
	"taskdesk/internal/tasks"
)

// session is everything one command invocation works with: the loaded
// task store, wired to a write-behind saver over the sqlite gateway.
type session struct {
	cfg   config.Config
	sc    schema.Schema
	log   *slog.Logger
	db    *storage.Store
	store *tasks.Store
	saver *storage.Saver
	out   output

	logCloser io.Closer
	// loadErr is set when saved tasks could not be read. The store then
	// starts empty.
	loadErr error
}

func openSession(ctx context.Context, cmd *cobra.Command, opts *RootOptions) (*session, error) {
	path := opts.ConfigPath
	if path == "" {
		path = config.ResolveConfigPath()
	}
	cfg, err := config.LoadOrCreate(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.DBPath != "" {
		cfg.DBPath = opts.DBPath
	}
	if opts.Schema != "" {
		cfg.Schema = opts.Schema
	}
	if opts.Verbose {
		cfg.LogLevel = "debug"
	}

	sc, err := schema.Lookup(cfg.Schema)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid schema", err)
	}
	debounce, err := cfg.Debounce()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}
	log, logCloser, err := logging.New(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open log", err)
	}

	db, err := storage.Open(cfg.DBPath, sc.Name)
	if err != nil {
		logCloser.Close()
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	s := &session{
		cfg:       cfg,
		sc:        sc,
		log:       log,
		db:        db,
		store:     tasks.NewStore(sc),
		out:       output{format: opts.Format, w: cmd.OutOrStdout()},
		logCloser: logCloser,
	}
	recs, err := db.Load(ctx)
	if err != nil {
		log.Error("load tasks", "db", cfg.DBPath, "err", err)
		s.loadErr = err
	} else {
		s.store.Seed(recs)
		log.Debug("loaded tasks", "db", cfg.DBPath, "count", len(recs), "schema", sc.Name)
	}
	s.saver = storage.NewSaver(db, storage.SaverOpts{Debounce: debounce, Logger: log})
	s.store.Subscribe(s.saver.Notify)
	return s, nil
}

// writable refuses mutations when the saved data could not be read, so a
// one-shot command never overwrites it with a partial list.
func (s *session) writable() error {
	if s.loadErr != nil {
		return WrapExitError(ExitCommandError, "saved tasks are unreadable; refusing to modify them", s.loadErr)
	}
	return nil
}

// Close flushes pending writes and releases the database and log file.
func (s *session) Close(ctx context.Context) error {
	err := s.saver.Close(ctx)
	if cerr := s.db.Close(); err == nil && cerr != nil {
		err = cerr
	}
	s.logCloser.Close()
	return err
}

// withSession opens a session, runs fn and flushes. A failed flush fails
// the command.
func withSession(cmd *cobra.Command, opts *RootOptions, fn func(*session) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := openSession(ctx, cmd, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(context.WithoutCancel(ctx)); cerr != nil && err == nil {
			err = WrapExitError(ExitCommandError, "failed to save tasks", cerr)
		}
	}()
	return fn(s)
}

// lastSaved reports when the collection was last written, if ever.
func (s *session) lastSaved(ctx context.Context) (time.Time, bool) {
	at, ok, err := s.db.UpdatedAt(ctx)
	if err != nil {
		s.log.Warn("read save time", "err", err)
		return time.Time{}, false
	}
	return at, ok
}

func (s *session) lookup(ref string) (tasks.Record, error) {
	id, err := resolveID(s.store.Records(), ref)
	if err != nil {
		return tasks.Record{}, err
	}
	rec, _ := s.store.Get(id)
	return rec, nil
}

// resolveID accepts a full id or a unique id prefix.
func resolveID(recs []tasks.Record, ref string) (string, error) {
	if ref == "" {
		return "", tasks.NotFoundError{ID: ref}
	}
	var matches []string
	for _, r := range recs {
		if r.ID == ref {
			return r.ID, nil
		}
		if strings.HasPrefix(r.ID, ref) {
			matches = append(matches, r.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", tasks.NotFoundError{ID: ref}
	case 1:
		return matches[0], nil
	}
	return "", fmt.Errorf("id prefix %q is ambiguous (%d tasks)", ref, len(matches))
}
