package persistor

import (
	"fmt"
	"log/slog"
	"persistor/internal/core/service/persistence"
	"strings"

	"github.com/spf13/afero"
)

// Type selects the storage adapter.
type Type int

const (
	TypeUnknown Type = iota
	TypeLocalFile
	TypeMultiFile
)

func (t Type) String() string {
	switch t {
	case TypeLocalFile:
		return "LocalFile"
	case TypeMultiFile:
		return "MultiFile"
	default:
		return "unknown"
	}
}

// ParseType accepts the tags "LocalFile" and "MultiFile", ignoring case.
func ParseType(s string) (Type, error) {
	for _, t := range []Type{TypeLocalFile, TypeMultiFile} {
		if strings.EqualFold(strings.TrimSpace(s), t.String()) {
			return t, nil
		}
	}

	return TypeUnknown, persistence.NewConfigurationError(
		fmt.Sprintf("persistor initialization: invalid type %q, valid types are %q and %q", s, TypeLocalFile, TypeMultiFile))
}

// Config holds the adapter specific settings. It is implemented by
// LocalFileConfig and MultiFileConfig only.
type Config interface {
	adapterType() Type
}

type LocalFileConfig struct {
	// FilePath is the JSON file holding the whole collection.
	FilePath string
}

func (LocalFileConfig) adapterType() Type { return TypeLocalFile }

type MultiFileConfig struct {
	// Dir is the directory holding one {id}.json file per record.
	Dir string
}

func (MultiFileConfig) adapterType() Type { return TypeMultiFile }

type Options struct {
	Type   Type
	Config Config

	// FS defaults to the operating system filesystem. Watch only works on it.
	FS afero.Fs
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Allocator defaults to persistence.MaxPlusOne.
	Allocator persistence.IDAllocator
}

func (o Options) validate() error {
	if o.Type == TypeUnknown {
		return persistence.NewConfigurationError("persistor initialization: missing type")
	}
	if o.Type != TypeLocalFile && o.Type != TypeMultiFile {
		return persistence.NewConfigurationError(fmt.Sprintf("persistor initialization: invalid type %d", int(o.Type)))
	}
	if o.Config == nil {
		return persistence.NewConfigurationError(fmt.Sprintf("persistor initialization: type=%q, missing config", o.Type))
	}
	if got := o.Config.adapterType(); got != o.Type {
		return persistence.NewConfigurationError(
			fmt.Sprintf("persistor initialization: type=%q, got a %s config", o.Type, got))
	}

	return nil
}
