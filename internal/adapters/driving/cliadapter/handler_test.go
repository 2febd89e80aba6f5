package cliadapter_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"persistor/internal/adapters/driving/cliadapter"
	"persistor/internal/config"
	"persistor/internal/persistor"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func memoryFactory(fsys afero.Fs) cliadapter.Factory {
	return func(cfg *config.Config) (cliadapter.Persistence, error) {
		opts, err := cfg.Options()
		if err != nil {
			return nil, err
		}
		opts.FS = fsys
		opts.Logger = discardLogger

		p, err := persistor.New(opts)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

// run executes one command line against fsys, the way main does.
func run(t *testing.T, fsys afero.Fs, stdin string, args ...string) (string, error) {
	t.Helper()

	cfg := config.Default()
	cfg.FilePath = "/data/records.json"
	cfg.Dir = "/data/records"

	root := cliadapter.NewHandler(cfg, memoryFactory(fsys), discardLogger).NewRootCommand()

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)

	err := root.Execute()
	return out.String(), err
}

func requireExitError(t *testing.T, err error, wantStatus, wantCode int) {
	t.Helper()

	var exitErr *cliadapter.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, wantStatus, exitErr.Status)
	assert.Equal(t, wantCode, exitErr.Code)
	assert.Equal(t, wantCode, cliadapter.ExitCode(err))
}

func TestCreateAndGet(t *testing.T) {
	for _, kind := range []string{"LocalFile", "MultiFile"} {
		t.Run(kind, func(t *testing.T) {
			fsys := afero.NewMemMapFs()

			out, err := run(t, fsys, "", "--type", kind, "create", `{"param": "a"}`)
			require.NoError(t, err)
			assert.Equal(t, "1\n", out)

			out, err = run(t, fsys, `{"param": "b", "id": 9}`, "--type", kind, "create")
			require.NoError(t, err)
			assert.Equal(t, "2\n", out)

			out, err = run(t, fsys, "", "--type", kind, "get", "2")
			require.NoError(t, err)
			assert.JSONEq(t, `{"id": 2, "param": "b"}`, out)
		})
	}
}

func TestTypeFlagSelectsLayout(t *testing.T) {
	fsys := afero.NewMemMapFs()

	_, err := run(t, fsys, "", "--type", "MultiFile", "--dir", "/elsewhere", "create", `{"param": "a"}`)
	require.NoError(t, err)

	exists, err := afero.Exists(fsys, "/elsewhere/1.json")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = afero.Exists(fsys, "/data/records.json")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestListUpdateRemove(t *testing.T) {
	fsys := afero.NewMemMapFs()
	for _, param := range []string{"a", "b", "c"} {
		_, err := run(t, fsys, "", "create", `{"param": "`+param+`"}`)
		require.NoError(t, err)
	}

	// a string id addresses the record with that number
	_, err := run(t, fsys, `{"id": "2", "param": "z"}`, "update")
	require.NoError(t, err)

	_, err = run(t, fsys, "", "rm", "1")
	require.NoError(t, err)

	out, err := run(t, fsys, "", "list")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id": 2, "param": "z"}, {"id": 3, "param": "c"}]`, out)
}

func TestEmptyListPrintsArray(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/data/records.json", []byte(`[]`), 0o644))

	out, err := run(t, fsys, "", "list")

	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)
}

func TestCommandErrors(t *testing.T) {
	testCases := map[string]struct {
		stdin      string
		args       []string
		wantStatus int
		wantCode   int
	}{
		"get unknown id": {
			args:       []string{"get", "7"},
			wantStatus: http.StatusNotFound,
			wantCode:   cliadapter.ExitNotFound,
		},
		"get non numeric id": {
			args:       []string{"get", "abc"},
			wantStatus: http.StatusBadRequest,
			wantCode:   cliadapter.ExitClient,
		},
		"update without id": {
			args:       []string{"update", `{"param": "z"}`},
			wantStatus: http.StatusBadRequest,
			wantCode:   cliadapter.ExitClient,
		},
		"update unknown id": {
			args:       []string{"update", `{"id": 7, "param": "z"}`},
			wantStatus: http.StatusNotFound,
			wantCode:   cliadapter.ExitNotFound,
		},
		"create invalid json": {
			args:       []string{"create", `{"param": `},
			wantStatus: http.StatusBadRequest,
			wantCode:   cliadapter.ExitClient,
		},
		"create with nothing on stdin": {
			stdin:      "",
			args:       []string{"create"},
			wantStatus: http.StatusBadRequest,
			wantCode:   cliadapter.ExitClient,
		},
		"remove unknown id": {
			args:       []string{"remove", "7"},
			wantStatus: http.StatusNotFound,
			wantCode:   cliadapter.ExitNotFound,
		},
		"unknown type": {
			args:       []string{"--type", "Database", "list"},
			wantStatus: http.StatusInternalServerError,
			wantCode:   cliadapter.ExitConfiguration,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			fsys := afero.NewMemMapFs()
			_, err := run(t, fsys, "", "create", `{"param": "a"}`)
			require.NoError(t, err)

			_, err = run(t, fsys, tc.stdin, tc.args...)

			requireExitError(t, err, tc.wantStatus, tc.wantCode)
		})
	}
}

func TestRecordSizeLimit(t *testing.T) {
	big := `{"param": "` + strings.Repeat("x", cliadapter.MaxRecordSize) + `"}`

	_, err := run(t, afero.NewMemMapFs(), big, "create")

	requireExitError(t, err, http.StatusBadRequest, cliadapter.ExitClient)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, cliadapter.ExitCode(nil))
	assert.Equal(t, cliadapter.ExitFailure, cliadapter.ExitCode(errors.New("MahSpecialError!")))
}

// syncBuffer is written to by the watcher goroutine while the test reads it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	require.NoError(t, os.WriteFile(path, []byte(`[]`), 0o644))

	cfg := config.Default()
	cfg.FilePath = path
	root := cliadapter.NewHandler(cfg, cliadapter.NewPersistorFactory(discardLogger), discardLogger).NewRootCommand()

	out := &syncBuffer{}
	root.SetOut(out)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"watch"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- root.ExecuteContext(ctx)
	}()

	assert.Eventually(t, func() bool { return strings.Contains(out.String(), "[]") }, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte(`[{"id": 1, "param": "a"}]`), 0o644))

	assert.Eventually(t, func() bool { return strings.Contains(out.String(), `"param": "a"`) }, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}
