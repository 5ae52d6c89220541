package repo

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no blob is stored under the key.
var ErrNotFound = errors.New("blob not found")

// Keys used by the entity store.
const (
	KeyTimers     = "dune_timers"
	KeyResources  = "dune_resources"
	KeyPowerTimer = "dune_power_timer"
	KeySettings   = "dune_settings"
)

// BlobStore is the durable key-value port behind the entity store. Values
// are opaque JSON blobs; swap in any adapter.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
