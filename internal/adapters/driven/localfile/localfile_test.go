package localfile_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"persistor/internal/adapters/driven/adaptertest"
	"persistor/internal/adapters/driven/localfile"
	"persistor/internal/core/domain"
	"persistor/internal/core/service/persistence"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testData = `[
	{"id": 5, "name": "lab"},
	{"id": 10, "name": "reception"},
	{"id": 25, "name": "classroom"}
]`

func setupTestEnvironment(t *testing.T, initialData string) (*localfile.Adapter, string) {
	t.Helper()

	tempDir := t.TempDir()
	tempDBFilename := filepath.Join(tempDir, "test_db.json")

	if err := os.WriteFile(tempDBFilename, []byte(initialData), 0644); err != nil {
		t.Fatalf("Failed to write initial test data: %v", err)
	}

	repo, err := localfile.New(tempDBFilename)
	require.NoError(t, err)

	return repo, tempDBFilename
}

func TestContract(t *testing.T) {
	layout := adaptertest.Layout{Ordered: true, IdempotentRemove: false}

	t.Run("os", func(t *testing.T) {
		adaptertest.Run(t, layout, func(t *testing.T) persistence.Repository {
			repo, err := localfile.New(filepath.Join(t.TempDir(), "records.json"))
			require.NoError(t, err)
			return repo
		})
	})

	t.Run("memory", func(t *testing.T) {
		adaptertest.Run(t, layout, func(t *testing.T) persistence.Repository {
			repo, err := localfile.New("/data/records.json", localfile.WithFs(afero.NewMemMapFs()))
			require.NoError(t, err)
			return repo
		})
	})
}

func TestNewRequiresFilePath(t *testing.T) {
	_, err := localfile.New("")

	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrConfiguration)
	assert.Contains(t, err.Error(), "filePath")
}

func TestGetRecord(t *testing.T) {
	testCases := map[string]struct {
		initialData string
		recordID    int
		wantRecord  domain.Record
		wantErr     error
	}{
		"ok - first record": {
			initialData: testData,
			recordID:    5,
			wantRecord:  domain.Record{"id": 5, "name": "lab"},
		},
		"ok - last record": {
			initialData: testData,
			recordID:    25,
			wantRecord:  domain.Record{"id": 25, "name": "classroom"},
		},
		"error - unknown id": {
			initialData: testData,
			recordID:    6,
			wantErr:     persistence.ErrNotFound,
		},
		"error - empty collection": {
			initialData: `[]`,
			recordID:    1,
			wantErr:     persistence.ErrNotFound,
		},
		"error - unparsable file": {
			initialData: `[{"id": 5,`,
			recordID:    5,
			wantErr:     persistence.ErrServer,
		},
		"error - not an array": {
			initialData: `{"id": 5}`,
			recordID:    5,
			wantErr:     persistence.ErrServer,
		},
		"error - element not an object": {
			initialData: `[{"id": 5}, 7]`,
			recordID:    5,
			wantErr:     persistence.ErrServer,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			repo, path := setupTestEnvironment(t, tc.initialData)

			record, err := repo.Get(context.Background(), tc.recordID)

			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)

				var pErr *persistence.Error
				require.ErrorAs(t, err, &pErr)
				assert.Equal(t, path, pErr.Path)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.wantRecord, record)
		})
	}
}

func TestNotFoundMessages(t *testing.T) {
	ctx := context.Background()

	t.Run("missing file names the path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nope.json")
		repo, err := localfile.New(path)
		require.NoError(t, err)

		_, err = repo.GetAll(ctx)

		assert.ErrorIs(t, err, persistence.ErrNotFound)
		assert.Contains(t, err.Error(), path)
	})

	t.Run("missing id names the id and path", func(t *testing.T) {
		repo, path := setupTestEnvironment(t, testData)

		_, err := repo.Get(ctx, 11)

		assert.ErrorIs(t, err, persistence.ErrNotFound)
		assert.Contains(t, err.Error(), `"11"`)
		assert.Contains(t, err.Error(), path)
	})
}

func TestCreateAppendsAfterHighestID(t *testing.T) {
	repo, path := setupTestEnvironment(t, testData)

	id, err := repo.Create(context.Background(), domain.Record{"name": "office"})
	require.NoError(t, err)
	assert.Equal(t, 26, id)

	all, err := repo.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, domain.Record{"id": 26, "name": "office"}, all[3])

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"name": "office"`)
}

func TestCreateMakesMissingDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "records.json")
	repo, err := localfile.New(path)
	require.NoError(t, err)

	id, err := repo.Create(context.Background(), domain.Record{"param": "a"})
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestCreateOnReadOnlyFilesystem(t *testing.T) {
	base := afero.NewMemMapFs()
	require.NoError(t, base.MkdirAll("/data", 0o755))
	require.NoError(t, afero.WriteFile(base, "/data/records.json", []byte(`[{"id": 1}]`), 0o644))

	repo, err := localfile.New("/data/records.json", localfile.WithFs(afero.NewReadOnlyFs(base)))
	require.NoError(t, err)

	_, err = repo.Create(context.Background(), domain.Record{"param": "a"})

	assert.ErrorIs(t, err, persistence.ErrClient)

	all, err := repo.GetAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

// noMkdirFs behaves like a filesystem where file creation needs an existing
// parent directory and directories can never be created.
type noMkdirFs struct {
	afero.Fs
}

func (f noMkdirFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if flag&os.O_CREATE != 0 {
		if _, err := f.Fs.Stat(filepath.Dir(name)); err != nil {
			return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrNotExist}
		}
	}
	return f.Fs.OpenFile(name, flag, perm)
}

func (f noMkdirFs) MkdirAll(path string, perm os.FileMode) error {
	return &os.PathError{Op: "mkdir", Path: path, Err: errors.New("refused")}
}

func TestCreateWhenDirectoryCannotBeCreated(t *testing.T) {
	repo, err := localfile.New("/missing/records.json", localfile.WithFs(noMkdirFs{afero.NewMemMapFs()}))
	require.NoError(t, err)

	_, err = repo.Create(context.Background(), domain.Record{"param": "a"})

	assert.ErrorIs(t, err, persistence.ErrServer)

	var pErr *persistence.Error
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, "/missing", pErr.Path)
}

func TestCreateDoesNotTreatCorruptFileAsEmpty(t *testing.T) {
	repo, path := setupTestEnvironment(t, `not json`)

	_, err := repo.Create(context.Background(), domain.Record{"param": "a"})

	assert.ErrorIs(t, err, persistence.ErrServer)

	data, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t, "not json", string(data))
}

func TestRemovePreservesOrder(t *testing.T) {
	repo, _ := setupTestEnvironment(t, testData)

	require.NoError(t, repo.Remove(context.Background(), 10))

	all, err := repo.GetAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.Record{{"id": 5, "name": "lab"}, {"id": 25, "name": "classroom"}}, all)
}

func TestUpdateAndRemoveOnAbsentFile(t *testing.T) {
	repo, err := localfile.New(filepath.Join(t.TempDir(), "records.json"))
	require.NoError(t, err)

	err = repo.Update(context.Background(), domain.Record{"id": 1})
	assert.ErrorIs(t, err, persistence.ErrNotFound)

	err = repo.Remove(context.Background(), 1)
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestCustomAllocator(t *testing.T) {
	fsys := afero.NewMemMapFs()
	step := persistence.AllocatorFunc(func(existing []int) int {
		return persistence.MaxPlusOne.Allocate(existing) + 9
	})
	repo, err := localfile.New("/records.json", localfile.WithFs(fsys), localfile.WithAllocator(step))
	require.NoError(t, err)

	first, err := repo.Create(context.Background(), domain.Record{})
	require.NoError(t, err)
	second, err := repo.Create(context.Background(), domain.Record{})
	require.NoError(t, err)

	assert.Equal(t, 10, first)
	assert.Equal(t, 20, second)
}
