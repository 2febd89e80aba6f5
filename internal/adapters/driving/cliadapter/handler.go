// Package cliadapter exposes the persistence facade as a cobra command tree.
package cliadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"persistor/internal/config"
	"persistor/internal/core/domain"
	"persistor/internal/core/service/persistence"
	"persistor/internal/persistor"
)

const (
	MaxRecordSize = 1024 * 1024 // 1MB max record read from stdin or an argument
)

// Exit codes by error kind.
const (
	ExitFailure       = 1
	ExitClient        = 2
	ExitNotFound      = 3
	ExitConfiguration = 4
)

// Persistence is what the commands need from the facade.
type Persistence interface {
	persistence.Service
	CreateJSON(ctx context.Context, raw []byte) (int, error)
	Watch(ctx context.Context, onChange func() error) error
}

// Factory builds the facade once flags have been applied to the configuration.
type Factory func(cfg *config.Config) (Persistence, error)

// NewPersistorFactory builds a persistor.Persistor on the operating system filesystem.
func NewPersistorFactory(logger *slog.Logger) Factory {
	return func(cfg *config.Config) (Persistence, error) {
		opts, err := cfg.Options()
		if err != nil {
			return nil, err
		}
		opts.Logger = logger

		p, err := persistor.New(opts)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

type Handler struct {
	cfg     *config.Config
	factory Factory
	logger  *slog.Logger

	svc Persistence
}

func NewHandler(cfg *config.Config, factory Factory, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		cfg:     cfg,
		factory: factory,
		logger:  logger,
	}
}

// ExitError carries the status and process exit code for a failed command.
type ExitError struct {
	Status int
	Code   int
	Err    error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%d %s: %v", e.Status, http.StatusText(e.Status), e.Err)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode returns the process exit code for an error returned by a command.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

func (h *Handler) handleError(err error) error {
	var code int
	switch {

	// Not Found Errors
	case errors.Is(err, persistence.ErrNotFound):
		code = ExitNotFound

	// Bad Request Errors
	case errors.Is(err, persistence.ErrClient):
		code = ExitClient

	case errors.Is(err, persistence.ErrConfiguration):
		code = ExitConfiguration

	// Default to Server Error
	default:
		h.logger.Error("unhandled error from persistence", "error", err)
		code = ExitFailure
	}

	return &ExitError{Status: persistence.StatusOf(err), Code: code, Err: err}
}

func clientError(format string, args ...any) error {
	return &persistence.Error{Kind: persistence.KindClient, Message: fmt.Sprintf(format, args...)}
}

// readInput returns the record text from the first argument, or from stdin
// when it is piped.
func readInput(in io.Reader, args []string) ([]byte, error) {
	if len(args) > 0 {
		if len(args[0]) > MaxRecordSize {
			return nil, clientError("record is larger than %d bytes", MaxRecordSize)
		}
		return []byte(args[0]), nil
	}

	if f, ok := in.(*os.File); ok {
		stat, err := f.Stat()
		if err == nil && stat.Mode()&os.ModeCharDevice != 0 {
			return nil, clientError("no record given: pass it as an argument or pipe it on stdin")
		}
	}

	data, err := io.ReadAll(io.LimitReader(in, MaxRecordSize+1))
	if err != nil {
		return nil, &persistence.Error{Kind: persistence.KindClient, Message: "could not read stdin", Cause: err}
	}
	if len(data) > MaxRecordSize {
		return nil, clientError("record is larger than %d bytes", MaxRecordSize)
	}

	return data, nil
}

func parseID(arg string) (int, error) {
	id, err := domain.ParseID(arg)
	if err != nil {
		return 0, &persistence.Error{Kind: persistence.KindClient, Message: fmt.Sprintf("invalid id %q", arg), Cause: err}
	}
	return id, nil
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &persistence.Error{Kind: persistence.KindServer, Message: "could not encode output", Cause: err}
	}

	_, err = fmt.Fprintln(w, string(data))
	return err
}
