// Package store maps application keys onto a named kv store. Keys are encoded with
// encode.EncodeKey so that every range follows the same cross-type order:
//
//	NaN < numbers < text < binary < time < tuple
//
// Values are opaque bytes unless a ValueCodec is used with GetValue and PutValue.
//
// A Store is safe for concurrent use. Every call goes straight to the backend; nothing is
// queued or reordered.
package store

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/leftmike/sortkv/encode"
	"github.com/leftmike/sortkv/kv"
)

type Store struct {
	name   string
	kv     kv.KV
	values encode.ValueCodec
	closed atomic.Bool
}

type Option func(st *Store)

// WithValueCodec sets the codec used by GetValue and PutValue; the default is
// encode.RawValues.
func WithValueCodec(vc encode.ValueCodec) Option {
	return func(st *Store) {
		st.values = vc
	}
}

func Open(be kv.Backend, name string, opts ...Option) (*Store, error) {
	if be == nil {
		return nil, ErrBackendUnavailable
	}
	kvst, err := be.Open(name)
	if err != nil {
		return nil, backendError("open", err)
	}

	st := &Store{
		name:   name,
		kv:     kvst,
		values: encode.RawValues,
	}
	for _, opt := range opts {
		opt(st)
	}
	log.WithField("store", name).Debug("store open")
	return st, nil
}

// Drop removes the store called name from be along with all of its records. Stores already
// open on name fail with ErrBackendUnavailable.
func Drop(be kv.Backend, name string) error {
	if be == nil {
		return ErrBackendUnavailable
	}
	err := be.Drop(name)
	if err != nil {
		return backendError("drop", err)
	}
	log.WithField("store", name).Info("store dropped")
	return nil
}

// Close marks the store as closed; the backend is left open.
func (st *Store) Close() error {
	if st.closed.Swap(true) {
		return nil
	}
	log.WithField("store", st.name).Debug("store closed")
	return nil
}

func (st *Store) Name() string {
	return st.name
}

func (st *Store) ready(ctx context.Context) error {
	if st.closed.Load() {
		return fmt.Errorf("store: %s: %w", st.name, ErrBackendUnavailable)
	}
	return ctx.Err()
}

func (st *Store) encodeKey(ctx context.Context, key interface{}) ([]byte, error) {
	err := st.ready(ctx)
	if err != nil {
		return nil, err
	}
	return encode.EncodeKey(key)
}

// Get returns the value of key; if key is not in the store, the value is nil and the
// bool is false.
func (st *Store) Get(ctx context.Context, key interface{}) ([]byte, bool, error) {
	buf, err := st.encodeKey(ctx, key)
	if err != nil {
		return nil, false, err
	}

	var val []byte
	err = st.kv.Get(buf,
		func(v []byte) error {
			val = append(make([]byte, 0, len(v)), v...)
			return nil
		})
	if err == io.EOF {
		return nil, false, nil
	} else if err != nil {
		return nil, false, backendError("get", err)
	}
	return val, true, nil
}

// Put sets the value of key, replacing any existing value. A nil val is stored as an
// empty value.
func (st *Store) Put(ctx context.Context, key interface{}, val []byte) error {
	buf, err := st.encodeKey(ctx, key)
	if err != nil {
		return err
	}
	if val == nil {
		val = []byte{}
	}

	err = st.kv.Set(buf, val)
	if err != nil {
		return backendError("put", err)
	}
	return nil
}

// Del removes key; removing a key which is not present is not an error.
func (st *Store) Del(ctx context.Context, key interface{}) error {
	buf, err := st.encodeKey(ctx, key)
	if err != nil {
		return err
	}

	err = st.kv.Delete(buf)
	if err != nil {
		return backendError("del", err)
	}
	return nil
}

func (st *Store) Has(ctx context.Context, key interface{}) (bool, error) {
	_, ok, err := st.Get(ctx, key)
	return ok, err
}

// Count returns the number of records in a snapshot of the store.
func (st *Store) Count(ctx context.Context) (int, error) {
	err := st.ready(ctx)
	if err != nil {
		return 0, err
	}

	if c, ok := st.kv.(kv.Counter); ok {
		cnt, err := c.Count()
		if err != nil {
			return 0, backendError("count", err)
		}
		return cnt, nil
	}

	it, err := st.kv.Iterate(nil, nil)
	if err != nil {
		return 0, backendError("count", err)
	}
	defer it.Close()

	var cnt int
	for {
		err = it.Item(
			func(key, val []byte) error {
				cnt += 1
				return nil
			})
		if err == io.EOF {
			return cnt, nil
		} else if err != nil {
			return 0, backendError("count", err)
		}
		if cnt%1024 == 0 {
			err = ctx.Err()
			if err != nil {
				return 0, err
			}
		}
	}
}

// Clear removes every record from the store.
func (st *Store) Clear(ctx context.Context) error {
	err := st.ready(ctx)
	if err != nil {
		return err
	}

	err = st.kv.Clear()
	if err != nil {
		return backendError("clear", err)
	}
	log.WithField("store", st.name).Info("store cleared")
	return nil
}

// GetValue decodes the value of key into v using the store's ValueCodec.
func (st *Store) GetValue(ctx context.Context, key interface{}, v interface{}) (bool, error) {
	val, ok, err := st.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	err = st.values.DecodeValue(val, v)
	if err != nil {
		return false, fmt.Errorf("store: %s: %w", encode.FormatKey(key), err)
	}
	return true, nil
}

// PutValue encodes v using the store's ValueCodec and puts it as the value of key.
func (st *Store) PutValue(ctx context.Context, key interface{}, v interface{}) error {
	val, err := st.values.EncodeValue(v)
	if err != nil {
		return fmt.Errorf("store: %s: %w", encode.FormatKey(key), err)
	}
	return st.Put(ctx, key, val)
}
