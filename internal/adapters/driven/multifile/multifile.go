// Package multifile stores each record as its own JSON document, {id}.json,
// inside a single directory.
//
// Compared to localfile, mutations only touch one file, at the cost of an
// unordered GetAll and no existence check on Remove. Two concurrent Creates
// can still compute the same id from the same listing.
package multifile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"persistor/internal/adapters/driven/storageio"
	"persistor/internal/core/domain"
	"persistor/internal/core/service/persistence"
	"persistor/internal/pkg/copier"
	"strconv"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

const fileExt = ".json"

type Adapter struct {
	dir       string
	store     *storageio.Store
	allocator persistence.IDAllocator
	logger    *slog.Logger
}

var _ persistence.Repository = (*Adapter)(nil)

type Option func(*Adapter)

// WithFs sets the filesystem the directory lives on. The default is the OS filesystem.
func WithFs(fsys afero.Fs) Option {
	return func(a *Adapter) {
		a.store = storageio.New(fsys)
	}
}

func WithAllocator(allocator persistence.IDAllocator) Option {
	return func(a *Adapter) {
		if allocator != nil {
			a.allocator = allocator
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func New(dir string, opts ...Option) (*Adapter, error) {
	if dir == "" {
		return nil, persistence.NewConfigurationError(`persistor initialization: type="MultiFile", no dir specified in config`)
	}

	a := &Adapter{
		dir:       dir,
		store:     storageio.New(nil),
		allocator: persistence.MaxPlusOne,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}

	return a, nil
}

// Dir is the directory holding the record files.
func (a *Adapter) Dir() string {
	return a.dir
}

func (a *Adapter) recordPath(id int) string {
	return filepath.Join(a.dir, strconv.Itoa(id)+fileExt)
}

// CreateJSON is Create for a record given as JSON text. Text that is not a
// JSON object fails with KindClient before storage is touched.
func (a *Adapter) CreateJSON(ctx context.Context, raw []byte) (int, error) {
	record, err := domain.ParseRecord(raw)
	if err != nil {
		return 0, &persistence.Error{Kind: persistence.KindClient, Message: "multifile: invalid record", Cause: err}
	}

	return a.Create(ctx, record)
}

func (a *Adapter) Create(ctx context.Context, record domain.Record) (int, error) {
	stored := domain.Record{}
	if record != nil {
		var err error
		if stored, err = copier.DeepCopy(record); err != nil {
			return 0, &persistence.Error{Kind: persistence.KindClient, Message: "multifile: invalid record", Cause: err}
		}
	}

	names, err := a.store.List(a.dir)
	if err != nil {
		if !storageio.IsNotFound(err) {
			return 0, a.serverError(fmt.Sprintf("multifile: could not list %s", a.dir), a.dir, 0, err)
		}

		// first record: create the directory and carry on with nothing in it
		if err := a.store.MakeDirs(a.dir); err != nil {
			return 0, a.serverError(fmt.Sprintf("multifile: could not create %s", a.dir), a.dir, 0, err)
		}
		a.logger.Debug("created missing directory", "dir", a.dir)
		names = nil
	}

	id := a.allocator.Allocate(a.idsFromNames(names))
	stored.SetID(id)

	path := a.recordPath(id)
	if err := a.store.WriteJSON(path, stored); err != nil {
		return 0, &persistence.Error{
			Kind:    persistence.KindClient,
			Message: fmt.Sprintf("multifile: could not write %s", path),
			Path:    path,
			ID:      id,
			Cause:   err,
		}
	}

	a.logger.Debug("record created", "path", path, "id", id)
	return id, nil
}

func (a *Adapter) Get(ctx context.Context, id int) (domain.Record, error) {
	path := a.recordPath(id)

	record, err := a.readRecord(path)
	if err != nil {
		if storageio.IsNotFound(err) {
			return nil, &persistence.Error{
				Kind:    persistence.KindNotFound,
				Message: fmt.Sprintf("failed to find %s", path),
				Path:    path,
				ID:      id,
				Cause:   err,
			}
		}
		return nil, a.serverError(fmt.Sprintf("multifile: could not read %s", path), path, id, err)
	}

	return record, nil
}

// GetAll reads every record concurrently. The order of the result is not
// defined. Any failed read fails the whole call.
func (a *Adapter) GetAll(ctx context.Context) ([]domain.Record, error) {
	names, err := a.store.List(a.dir)
	if err != nil {
		if storageio.IsNotFound(err) {
			return nil, &persistence.Error{
				Kind:    persistence.KindNotFound,
				Message: fmt.Sprintf("failed to find %s", a.dir),
				Path:    a.dir,
				Cause:   err,
			}
		}
		return nil, a.serverError(fmt.Sprintf("multifile: could not list %s", a.dir), a.dir, 0, err)
	}

	visible := make([]string, 0, len(names))
	for _, name := range names {
		if !storageio.IsHidden(name) {
			visible = append(visible, name)
		}
	}

	records := make([]domain.Record, len(visible))
	g, gctx := errgroup.WithContext(ctx)

	for i, name := range visible {
		i := i
		path := filepath.Join(a.dir, name)

		g.Go(func() error {
			// a read that has not started yet is pointless once one has failed
			if err := gctx.Err(); err != nil {
				return err
			}

			record, err := a.readRecord(path)
			if err != nil {
				return a.serverError(fmt.Sprintf("multifile: could not read %s", path), path, 0, err)
			}
			records[i] = record
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		var pErr *persistence.Error
		if !errors.As(err, &pErr) {
			err = a.serverError(fmt.Sprintf("multifile: could not read %s", a.dir), a.dir, 0, err)
		}
		return nil, err
	}

	return records, nil
}

// Update checks that the record exists before overwriting it.
func (a *Adapter) Update(ctx context.Context, record domain.Record) error {
	id, ok := record.ID()
	if !ok {
		return &persistence.Error{
			Kind:    persistence.KindNotFound,
			Message: fmt.Sprintf("failed to find a record with id %v in %s", record[domain.IDField], a.dir),
			Path:    a.dir,
		}
	}

	if _, err := a.Get(ctx, id); err != nil {
		return err
	}

	stored, err := copier.DeepCopy(record)
	if err != nil {
		return &persistence.Error{Kind: persistence.KindClient, Message: "multifile: invalid record", ID: id, Cause: err}
	}

	path := a.recordPath(id)
	if err := a.store.WriteJSON(path, stored); err != nil {
		return a.serverError(fmt.Sprintf("multifile: could not write %s", path), path, id, err)
	}

	a.logger.Debug("record updated", "path", path, "id", id)
	return nil
}

// Remove deletes {id}.json without checking that it exists first.
func (a *Adapter) Remove(ctx context.Context, id int) error {
	path := a.recordPath(id)

	if err := a.store.RemoveFile(path); err != nil {
		return a.serverError(fmt.Sprintf("multifile: could not remove %s", path), path, id, err)
	}

	a.logger.Debug("record removed", "path", path, "id", id)
	return nil
}

func (a *Adapter) readRecord(path string) (domain.Record, error) {
	value, err := a.store.ReadJSON(path)
	if err != nil {
		return nil, err
	}

	obj, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s holds a JSON %T, not an object", path, value)
	}

	return domain.Record(obj), nil
}

// idsFromNames takes the leading numeric token of every visible entry name.
func (a *Adapter) idsFromNames(names []string) []int {
	ids := make([]int, 0, len(names))
	for _, name := range names {
		if storageio.IsHidden(name) {
			continue
		}

		id, err := domain.ParseID(name)
		if err != nil {
			a.logger.Warn("ignoring entry without a numeric id", "dir", a.dir, "name", name)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func (a *Adapter) serverError(msg, path string, id int, cause error) error {
	return &persistence.Error{
		Kind:    persistence.KindServer,
		Message: msg,
		Path:    path,
		ID:      id,
		Cause:   cause,
	}
}
