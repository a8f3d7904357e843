// Package sessionstore persists the widget's session identifier between runs.
// It is a tiny key/value surface: the widget only ever stores one key.
package sessionstore

import (
	"context"
	"strings"

	"github.com/go-go-golems/webchat-embed/pkg/config"
	"github.com/pkg/errors"
)

// SessionKey is the fixed key the session identifier lives under.
const SessionKey = "eldramatic-session"

type Store interface {
	// Get returns the value of key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Open builds the store selected by s.
func Open(s config.StorageSettings) (Store, error) {
	switch s.Backend {
	case config.StorageMemory:
		return NewMemoryStore(), nil
	case config.StorageFile, "":
		return NewFileStore(s.Path)
	case config.StorageSQLite:
		dsn, err := SQLiteDSNForFile(s.Path)
		if err != nil {
			return nil, err
		}
		return NewSQLiteStore(dsn)
	case config.StorageRedis:
		return NewRedisStore(s.RedisAddr, s.Namespace)
	default:
		return nil, errors.Errorf("sessionstore: unknown backend %q", s.Backend)
	}
}

func checkKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("sessionstore: empty key")
	}
	return nil
}
