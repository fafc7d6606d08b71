// Package kv defines the contract sorted key-value engines must provide to a store, and
// adapters for btree (memory), bbolt, badger, pebble, and leveldb.
//
// Keys are compared as byte strings. Every store is named; a backend opens, creates, and
// drops stores by name. Iterators include both bounds and read from a snapshot taken when
// they are created, except bbolt: its iterators read in chunks, each chunk from its own
// snapshot, so that writes are not blocked while an iterator is open.
package kv

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"
)

var (
	ErrClosed = errors.New("kv: store is closed")
)

type OpKind int

const (
	SetOp OpKind = iota + 1
	DeleteOp
)

type Op struct {
	Kind OpKind
	Key  []byte
	Val  []byte
}

// Iterator returns items in ascending key order. Item returns io.EOF when there are no
// more items.
type Iterator interface {
	Item(fn func(key, val []byte) error) error
	Close()
}

// KV is a single named store. The slices passed to callbacks are only valid for the
// duration of the callback.
type KV interface {
	// Get returns io.EOF if key is not present.
	Get(key []byte, fn func(val []byte) error) error
	Set(key, val []byte) error
	// Delete of a key which is not present is not an error.
	Delete(key []byte) error
	Clear() error
	// Apply applies all of ops or none of them.
	Apply(ops []Op) error
	// Iterate from minKey to maxKey inclusive; a nil bound is open.
	Iterate(minKey, maxKey []byte) (Iterator, error)
}

// Counter is implemented by stores which can count their keys from a single snapshot
// when their iterators do not read from one.
type Counter interface {
	Count() (int, error)
}

type Backend interface {
	// Open returns the store called name, creating it if necessary. Opening the same name
	// more than once returns the same store.
	Open(name string) (KV, error)
	// Drop removes the store called name and everything in it. Existing handles for the
	// store fail with ErrClosed.
	Drop(name string) error
	Close() error
}

type Config struct {
	DataDir string
	Sync    bool
	Logger  *log.Logger
}

type MakeBackend func(cfg Config) (Backend, error)

var (
	backendsMutex sync.RWMutex
	backends      = map[string]MakeBackend{}
)

func Register(typ string, mb MakeBackend) {
	backendsMutex.Lock()
	defer backendsMutex.Unlock()

	if mb == nil {
		panic("kv: register backend is nil")
	}
	if _, dup := backends[typ]; dup {
		panic("kv: register called twice for backend: " + typ)
	}
	backends[typ] = mb
}

func NewBackend(typ string, cfg Config) (Backend, error) {
	backendsMutex.RLock()
	mb, ok := backends[typ]
	backendsMutex.RUnlock()

	if !ok {
		return nil, fmt.Errorf("kv: got %s for backend; want one of %v", typ, Backends())
	}
	if cfg.Logger == nil {
		cfg.Logger = log.StandardLogger()
	}
	be, err := mb(cfg)
	if err != nil {
		return nil, fmt.Errorf("kv: %s: %w", typ, err)
	}
	cfg.Logger.WithFields(log.Fields{"backend": typ, "data": cfg.DataDir}).Info("backend open")
	return be, nil
}

func Backends() []string {
	backendsMutex.RLock()
	defer backendsMutex.RUnlock()

	var ret []string
	for typ := range backends {
		ret = append(ret, typ)
	}
	sort.Strings(ret)
	return ret
}

func successor(key []byte) []byte {
	if key == nil {
		return nil
	}
	return append(append(make([]byte, 0, len(key)+1), key...), 0)
}

// cloneKey copies key, keeping nil bounds nil.
func cloneKey(key []byte) []byte {
	if key == nil {
		return nil
	}
	return copyBytes(key)
}

func copyBytes(b []byte) []byte {
	return append(make([]byte, 0, len(b)), b...)
}
