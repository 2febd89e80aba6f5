// Package localfile stores a whole collection as a single JSON array file.
// Every mutation is a full read-modify-write of that file; concurrent
// mutations can lose updates.
package localfile

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
	"slices"

	"github.com/spf13/afero"
)

type Adapter struct {
	filePath  string
	store     *storageio.Store
	allocator persistence.IDAllocator
	logger    *slog.Logger
}

var _ persistence.Repository = (*Adapter)(nil)

type Option func(*Adapter)

// WithFs sets the filesystem the collection file lives on. The default is the OS filesystem.
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

// New returns an adapter for the JSON array file at filePath. The file does
// not need to exist yet.
func New(filePath string, opts ...Option) (*Adapter, error) {
	if filePath == "" {
		return nil, persistence.NewConfigurationError(`persistor initialization: type="LocalFile", no filePath specified in config`)
	}

	a := &Adapter{
		filePath:  filePath,
		store:     storageio.New(nil),
		allocator: persistence.MaxPlusOne,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}

	return a, nil
}

// FilePath is the location of the collection file.
func (a *Adapter) FilePath() string {
	return a.filePath
}

func (a *Adapter) Create(ctx context.Context, record domain.Record) (int, error) {
	records, err := a.readCollection()
	if err != nil {
		// a missing file is an empty collection here, and only here
		if !errors.Is(err, persistence.ErrNotFound) {
			return 0, err
		}
		records = []domain.Record{}
	}

	stored, err := copyRecord(record)
	if err != nil {
		return 0, &persistence.Error{Kind: persistence.KindClient, Message: "localfile: invalid record", Cause: err}
	}

	id := a.allocator.Allocate(collectIDs(records))
	stored.SetID(id)

	if err := a.writeCollection(append(records, stored)); err != nil {
		return 0, err
	}

	a.logger.Debug("record created", "path", a.filePath, "id", id)
	return id, nil
}

func (a *Adapter) Get(ctx context.Context, id int) (domain.Record, error) {
	records, err := a.readCollection()
	if err != nil {
		return nil, err
	}

	index := a.indexOf(records, id)
	if index < 0 {
		return nil, a.idNotFound(id)
	}

	return records[index], nil
}

func (a *Adapter) GetAll(ctx context.Context) ([]domain.Record, error) {
	return a.readCollection()
}

func (a *Adapter) Update(ctx context.Context, record domain.Record) error {
	records, err := a.readCollection()
	if err != nil {
		return err
	}

	id, ok := record.ID()
	index := -1
	if ok {
		index = a.indexOf(records, id)
	}
	if index < 0 {
		if !ok {
			return &persistence.Error{
				Kind:    persistence.KindNotFound,
				Message: fmt.Sprintf("id %q not found in %q", fmt.Sprint(record[domain.IDField]), a.filePath),
				Path:    a.filePath,
			}
		}
		return a.idNotFound(id)
	}

	stored, err := copyRecord(record)
	if err != nil {
		return &persistence.Error{Kind: persistence.KindClient, Message: "localfile: invalid record", ID: id, Cause: err}
	}
	records[index] = stored

	if err := a.writeCollection(records); err != nil {
		return err
	}

	a.logger.Debug("record updated", "path", a.filePath, "id", id)
	return nil
}

func (a *Adapter) Remove(ctx context.Context, id int) error {
	records, err := a.readCollection()
	if err != nil {
		return err
	}

	index := a.indexOf(records, id)
	if index < 0 {
		return a.idNotFound(id)
	}

	// slices.Delete keeps the relative order of the remaining records
	if err := a.writeCollection(slices.Delete(records, index, index+1)); err != nil {
		return err
	}

	a.logger.Debug("record removed", "path", a.filePath, "id", id)
	return nil
}

// readCollection loads the whole array. A missing file is KindNotFound,
// anything unreadable or not an array of objects is KindServer.
func (a *Adapter) readCollection() ([]domain.Record, error) {
	value, err := a.store.ReadJSON(a.filePath)
	if err != nil {
		if storageio.IsNotFound(err) {
			return nil, &persistence.Error{
				Kind:    persistence.KindNotFound,
				Message: fmt.Sprintf("localfile: could not find %q", a.filePath),
				Path:    a.filePath,
				Cause:   err,
			}
		}
		return nil, a.serverError("could not read collection", err)
	}

	items, ok := value.([]any)
	if !ok {
		return nil, a.serverError(fmt.Sprintf("collection is a JSON %T, not an array", value), nil)
	}

	records := make([]domain.Record, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, a.serverError(fmt.Sprintf("element %d of the collection is not an object", i), nil)
		}
		records = append(records, domain.Record(obj))
	}

	return records, nil
}

// writeCollection replaces the file with records. A missing parent directory
// is created and the write retried once.
func (a *Adapter) writeCollection(records []domain.Record) error {
	err := a.store.WriteJSON(a.filePath, records)
	if err == nil {
		return nil
	}

	if storageio.IsNotFound(err) {
		dir := filepath.Dir(a.filePath)
		if mkErr := a.store.MakeDirs(dir); mkErr != nil {
			return &persistence.Error{
				Kind:    persistence.KindServer,
				Message: fmt.Sprintf("localfile: could not create directory %q", dir),
				Path:    dir,
				Cause:   mkErr,
			}
		}

		a.logger.Debug("created missing directory", "dir", dir)
		if err = a.store.WriteJSON(a.filePath, records); err == nil {
			return nil
		}
	}

	return &persistence.Error{
		Kind:    persistence.KindClient,
		Message: fmt.Sprintf("localfile: could not write %q", a.filePath),
		Path:    a.filePath,
		Cause:   err,
	}
}

func (a *Adapter) indexOf(records []domain.Record, id int) int {
	return slices.IndexFunc(records, func(r domain.Record) bool {
		recordID, ok := r.ID()
		return ok && recordID == id
	})
}

func (a *Adapter) idNotFound(id int) error {
	return &persistence.Error{
		Kind:    persistence.KindNotFound,
		Message: fmt.Sprintf("id %q not found in %q", fmt.Sprint(id), a.filePath),
		Path:    a.filePath,
		ID:      id,
	}
}

func (a *Adapter) serverError(msg string, cause error) error {
	return &persistence.Error{
		Kind:    persistence.KindServer,
		Message: fmt.Sprintf("localfile: %s: %q", msg, a.filePath),
		Path:    a.filePath,
		Cause:   cause,
	}
}

func collectIDs(records []domain.Record) []int {
	ids := make([]int, 0, len(records))
	for _, r := range records {
		if id, ok := r.ID(); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// copyRecord detaches the stored record from the caller's map.
func copyRecord(record domain.Record) (domain.Record, error) {
	if record == nil {
		return domain.Record{}, nil
	}
	return copier.DeepCopy(record)
}
