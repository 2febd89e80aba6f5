// Package persistor builds the persistence facade: it validates the options,
// picks the storage adapter and hands back a single object exposing the CRUD
// operations for it.
package persistor

import (
	"context"
	"log/slog"
	"persistor/internal/adapters/driven/localfile"
	"persistor/internal/adapters/driven/multifile"
	"persistor/internal/adapters/driven/storageio"
	"persistor/internal/core/domain"
	"persistor/internal/core/service/persistence"

	"github.com/spf13/afero"
)

type Persistor struct {
	persistence.Service

	kind     Type
	location string
	fs       afero.Fs
	logger   *slog.Logger
}

var _ persistence.Service = (*Persistor)(nil)

// jsonCreator is implemented by adapters that take records as raw JSON.
type jsonCreator interface {
	CreateJSON(ctx context.Context, raw []byte) (int, error)
}

// New validates opts and returns a facade over the selected adapter.
// Every configuration problem surfaces here as a KindConfiguration error.
func New(opts Options) (*Persistor, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var (
		repo     persistence.Repository
		location string
		err      error
	)
	switch cfg := opts.Config.(type) {
	case LocalFileConfig:
		location = cfg.FilePath
		repo, err = localfile.New(cfg.FilePath,
			localfile.WithFs(opts.FS),
			localfile.WithAllocator(opts.Allocator),
			localfile.WithLogger(logger),
		)
	case MultiFileConfig:
		location = cfg.Dir
		repo, err = multifile.New(cfg.Dir,
			multifile.WithFs(opts.FS),
			multifile.WithAllocator(opts.Allocator),
			multifile.WithLogger(logger),
		)
	}
	if err != nil {
		return nil, err
	}

	svc, err := persistence.NewService(repo)
	if err != nil {
		return nil, err
	}

	logger.Debug("persistor initialised", "type", opts.Type.String(), "location", location)

	return &Persistor{
		Service:  svc,
		kind:     opts.Type,
		location: location,
		fs:       opts.FS,
		logger:   logger,
	}, nil
}

// Type reports the adapter the facade delegates to.
func (p *Persistor) Type() Type {
	return p.kind
}

// Location is the collection file (LocalFile) or directory (MultiFile).
func (p *Persistor) Location() string {
	return p.location
}

// CreateJSON creates a record from JSON text. Text that is not a JSON object
// is a KindClient error.
func (p *Persistor) CreateJSON(ctx context.Context, raw []byte) (int, error) {
	if creator, ok := p.Repository().(jsonCreator); ok {
		return creator.CreateJSON(ctx, raw)
	}

	record, err := domain.ParseRecord(raw)
	if err != nil {
		return 0, &persistence.Error{Kind: persistence.KindClient, Message: "persistor: invalid record", Cause: err}
	}

	return p.Create(ctx, record)
}

// Watch calls onChange every time the collection changes on disk, until ctx
// is cancelled. It returns once the watch is registered, and needs the
// operating system filesystem.
func (p *Persistor) Watch(ctx context.Context, onChange func() error) error {
	if p.fs != nil {
		if _, ok := p.fs.(*afero.OsFs); !ok {
			return persistence.NewConfigurationError("persistor: watching needs the operating system filesystem")
		}
	}

	var (
		watcher storageio.Watcher
		err     error
	)
	switch p.kind {
	case TypeMultiFile:
		watcher, err = storageio.NewDirWatcher(p.location, onChange, p.logger)
	default:
		watcher, err = storageio.NewFileWatcher(p.location, onChange, p.logger)
	}
	if err != nil {
		return &persistence.Error{Kind: persistence.KindServer, Message: "persistor: could not watch", Path: p.location, Cause: err}
	}

	if err := watcher.Watch(ctx); err != nil {
		kind := persistence.KindServer
		if storageio.IsNotFound(err) {
			kind = persistence.KindNotFound
		}
		return &persistence.Error{Kind: kind, Message: "persistor: could not watch", Path: p.location, Cause: err}
	}

	return nil
}
