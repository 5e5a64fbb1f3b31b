package storage

import (
	"errors"
	"fmt"
	"time"
)

// Driver names accepted by Open
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverRedis  = "redis"
)

var (
	// ErrUnknownDriver is returned by Open for an unsupported driver name
	ErrUnknownDriver = errors.New("storage: unknown driver")
	// ErrClosed is returned by operations on a closed backend
	ErrClosed = errors.New("storage: backend closed")
)

// Store is a string key-value store scoped to one namespace (one browser tab)
type Store interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
}

// Backend hands out namespaced stores
type Backend interface {
	Scope(namespace string) Store
	// Drop removes every key in the namespace
	Drop(namespace string) error
	Close() error
}

// Options configures Open
type Options struct {
	Driver   string
	Dir      string
	RedisURL string
	// TTL bounds how long an abandoned namespace survives. Zero keeps entries forever.
	TTL time.Duration
}

// Open builds the backend named by opts.Driver
func Open(opts Options) (Backend, error) {
	switch opts.Driver {
	case "", DriverMemory:
		return NewMemory(opts.TTL), nil
	case DriverFile:
		return NewFile(opts.Dir)
	case DriverRedis:
		return NewRedis(opts.RedisURL, opts.TTL)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}
}

func namespacedKey(namespace, key string) string {
	return namespace + ":" + key
}
