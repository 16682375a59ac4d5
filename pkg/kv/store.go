package kv

import (
	"context"
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"
)

// Store is an opaque key-value persistence backend. Values are JSON documents.
type Store interface {
	// Get returns the raw value for key. found is false when the key is absent.
	Get(ctx context.Context, key string) (data []byte, found bool, err error)
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// GetJSON decodes the value stored under key into dest.
// A missing key returns (false, nil); an undecodable value returns an error
// and leaves dest untouched.
func GetJSON(ctx context.Context, s Store, key string, dest any) (bool, error) {
	data, found, err := s.Get(ctx, key)
	if err != nil {
		return false, goerr.Wrap(err, "failed to read key", goerr.V("key", key))
	}
	if !found {
		return false, nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, goerr.Wrap(err, "malformed value", goerr.V("key", key))
	}
	return true, nil
}

// PutJSON encodes value and stores it under key. A nil value deletes the key.
func PutJSON(ctx context.Context, s Store, key string, value any) error {
	if value == nil {
		return s.Delete(ctx, key)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal value", goerr.V("key", key))
	}
	return s.Put(ctx, key, data)
}
