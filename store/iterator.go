package store

import (
	"bytes"
	"context"
	"io"

	"github.com/leftmike/sortkv/encode"
	"github.com/leftmike/sortkv/kv"
)

type Entry struct {
	Key   interface{}
	Value []byte
}

// Iterator is a one pass view of a range of a store, read from a snapshot taken when the
// range was created. On the bbolt backend the range is read in chunks, each from its own
// snapshot; records written after the range was created may be seen.
type Iterator struct {
	ctx context.Context
	it  kv.Iterator
	err error
}

// Range returns an iterator over the records from start to end, both inclusive, in
// ascending key order. A nil start or end leaves that side of the range open. Writes to the
// store do not wait on open iterators; on bbolt an iterator sees the store as of each chunk
// it reads rather than as of the call to Range.
func (st *Store) Range(ctx context.Context, start, end interface{}) (*Iterator, error) {
	err := st.ready(ctx)
	if err != nil {
		return nil, err
	}

	var minKey, maxKey []byte
	if start != nil {
		minKey, err = encode.EncodeKey(start)
		if err != nil {
			return nil, err
		}
	}
	if end != nil {
		maxKey, err = encode.EncodeKey(end)
		if err != nil {
			return nil, err
		}
	}
	if minKey != nil && maxKey != nil && bytes.Compare(minKey, maxKey) > 0 {
		return &Iterator{ctx: ctx, err: io.EOF}, nil
	}

	it, err := st.kv.Iterate(minKey, maxKey)
	if err != nil {
		return nil, backendError("range", err)
	}
	return &Iterator{
		ctx: ctx,
		it:  it,
	}, nil
}

func (it *Iterator) stop(err error) error {
	it.err = err
	if it.it != nil {
		it.it.Close()
		it.it = nil
	}
	return err
}

// Next returns the next entry; io.EOF is returned after the last one. Once Next returns an
// error, it returns the same error on every later call.
func (it *Iterator) Next() (Entry, error) {
	if it.err != nil {
		return Entry{}, it.err
	}
	err := it.ctx.Err()
	if err != nil {
		return Entry{}, it.stop(err)
	}

	var e Entry
	err = it.it.Item(
		func(key, val []byte) error {
			k, err := encode.DecodeKey(key)
			if err != nil {
				return err
			}
			e.Key = k
			e.Value = append(make([]byte, 0, len(val)), val...)
			return nil
		})
	if err == io.EOF {
		return Entry{}, it.stop(io.EOF)
	} else if err != nil {
		if _, ok := err.(*encode.CorruptError); !ok {
			err = backendError("range", err)
		}
		return Entry{}, it.stop(err)
	}
	return e, nil
}

// Close releases the iterator; it may be called more than once.
func (it *Iterator) Close() {
	if it.err == nil {
		it.stop(io.EOF)
	}
}

// CollectAll returns every remaining entry. On error, no entries are returned.
func (it *Iterator) CollectAll() ([]Entry, error) {
	defer it.Close()

	var entries []Entry
	for {
		e, err := it.Next()
		if err == io.EOF {
			return entries, nil
		} else if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
}

// ForEach calls fn with each remaining entry. An error from fn stops the iteration and is
// returned.
func (it *Iterator) ForEach(fn func(e Entry) error) error {
	defer it.Close()

	for {
		e, err := it.Next()
		if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}
		err = fn(e)
		if err != nil {
			it.stop(err)
			return err
		}
	}
}

func (st *Store) CollectAll(ctx context.Context, start, end interface{}) ([]Entry, error) {
	it, err := st.Range(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return it.CollectAll()
}

func (st *Store) ForEach(ctx context.Context, start, end interface{},
	fn func(e Entry) error) error {

	it, err := st.Range(ctx, start, end)
	if err != nil {
		return err
	}
	return it.ForEach(fn)
}
