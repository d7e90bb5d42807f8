// Package test provides a shared acceptance-test harness for httpcache.ByteStore
// implementations, so every backend under store/ exercises the same Get/Set/Delete
// and stale-marking contract.
package test

import (
	"bytes"
	"context"
	"testing"

	"github.com/arjunvale/httpcache"
)

// ByteStore exercises an httpcache.ByteStore implementation against the
// baseline Get/Set/Delete contract every backend must honor.
func ByteStore(t *testing.T, store httpcache.ByteStore) {
	ctx := context.Background()
	key := "testKey"
	_, ok, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("error getting key: %v", err)
	}
	if ok {
		t.Fatal("retrieved key before adding it")
	}

	val := []byte("some bytes")
	if err := store.Set(ctx, key, val); err != nil {
		t.Fatalf("error setting key: %v", err)
	}

	retVal, ok, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("error getting key: %v", err)
	}
	if !ok {
		t.Fatal("could not retrieve an element we just added")
	}
	if !bytes.Equal(retVal, val) {
		t.Fatal("retrieved a different value than what we put in")
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("error deleting key: %v", err)
	}

	_, ok, err = store.Get(ctx, key)
	if err != nil {
		t.Fatalf("error getting key: %v", err)
	}
	if ok {
		t.Fatal("deleted key still present")
	}
}

// Cache is a compatibility alias for ByteStore.
//
// Deprecated: use ByteStore.
func Cache(t *testing.T, store httpcache.ByteStore) {
	ByteStore(t, store)
}

// staleByteStore is the optional extension several backends (leveldbcache,
// blobcache, hazelcast, freecache, ...) implement on top of ByteStore to
// support stale-if-error salvage without evicting the entry outright.
type staleByteStore interface {
	httpcache.ByteStore
	MarkStale(ctx context.Context, key string) error
	IsStale(ctx context.Context, key string) (bool, error)
	GetStale(ctx context.Context, key string) ([]byte, bool, error)
}

// CacheStale exercises the MarkStale/IsStale/GetStale extension that backends
// supporting stale-if-error salvage implement alongside ByteStore.
func CacheStale(t *testing.T, store staleByteStore) {
	ctx := context.Background()
	key := "staleKey"
	val := []byte("stale-capable value")

	if err := store.Set(ctx, key, val); err != nil {
		t.Fatalf("error setting key: %v", err)
	}

	stale, err := store.IsStale(ctx, key)
	if err != nil {
		t.Fatalf("error checking stale state: %v", err)
	}
	if stale {
		t.Fatal("freshly set key reported as stale")
	}

	if err := store.MarkStale(ctx, key); err != nil {
		t.Fatalf("error marking key stale: %v", err)
	}

	stale, err = store.IsStale(ctx, key)
	if err != nil {
		t.Fatalf("error checking stale state: %v", err)
	}
	if !stale {
		t.Fatal("key not reported as stale after MarkStale")
	}

	retVal, ok, err := store.GetStale(ctx, key)
	if err != nil {
		t.Fatalf("error getting stale value: %v", err)
	}
	if !ok {
		t.Fatal("GetStale reported key absent after MarkStale")
	}
	if !bytes.Equal(retVal, val) {
		t.Fatal("GetStale returned a different value than what was set")
	}

	if err := store.Set(ctx, key, val); err != nil {
		t.Fatalf("error re-setting key: %v", err)
	}
	stale, err = store.IsStale(ctx, key)
	if err != nil {
		t.Fatalf("error checking stale state: %v", err)
	}
	if stale {
		t.Fatal("re-Set key still reported as stale")
	}
}
