package kv

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/dgraph-io/badger"
)

type badgerKV struct {
	guard
	db *badger.DB
}

type badgerIterator struct {
	kv     *badgerKV
	tx     *badger.Txn
	it     *badger.Iterator
	maxKey []byte
}

func init() {
	Register("badger", MakeBadgerBackend)
}

// MakeBadgerBackend returns a backend which keeps each store in its own badger database.
func MakeBadgerBackend(cfg Config) (Backend, error) {
	return newDirBackend("badger", cfg,
		func(cfg Config, dir string) (engineKV, error) {
			err := os.MkdirAll(dir, 0755)
			if err != nil {
				return nil, err
			}

			opts := badger.DefaultOptions(dir)
			opts = opts.WithLogger(cfg.Logger)
			opts = opts.WithSyncWrites(cfg.Sync)
			db, err := badger.Open(opts)
			if err != nil {
				return nil, err
			}
			return &badgerKV{
				db: db,
			}, nil
		})
}

func (bkv *badgerKV) close() error {
	return bkv.shut(bkv.db.Close)
}

func (bkv *badgerKV) Get(key []byte, fn func(val []byte) error) error {
	err := bkv.enter()
	if err != nil {
		return err
	}
	defer bkv.leave()

	return bkv.db.View(
		func(tx *badger.Txn) error {
			item, err := tx.Get(key)
			if err == badger.ErrKeyNotFound {
				return io.EOF
			} else if err != nil {
				return err
			}
			return item.Value(fn)
		})
}

func (bkv *badgerKV) update(fn func(tx *badger.Txn) error) error {
	err := bkv.enter()
	if err != nil {
		return err
	}
	defer bkv.leave()

	return bkv.db.Update(fn)
}

func (bkv *badgerKV) Set(key, val []byte) error {
	return bkv.update(
		func(tx *badger.Txn) error {
			return tx.Set(copyBytes(key), copyBytes(val))
		})
}

func (bkv *badgerKV) Delete(key []byte) error {
	return bkv.update(
		func(tx *badger.Txn) error {
			return tx.Delete(copyBytes(key))
		})
}

func (bkv *badgerKV) Clear() error {
	err := bkv.enter()
	if err != nil {
		return err
	}
	defer bkv.leave()

	return bkv.db.DropAll()
}

func (bkv *badgerKV) Apply(ops []Op) error {
	return bkv.update(
		func(tx *badger.Txn) error {
			for _, op := range ops {
				var err error
				switch op.Kind {
				case SetOp:
					err = tx.Set(copyBytes(op.Key), copyBytes(op.Val))
				case DeleteOp:
					err = tx.Delete(copyBytes(op.Key))
				default:
					err = fmt.Errorf("kv: badger: unexpected op kind: %d", op.Kind)
				}
				if err != nil {
					return err
				}
			}
			return nil
		})
}

func (bkv *badgerKV) Iterate(minKey, maxKey []byte) (Iterator, error) {
	err := bkv.enter()
	if err != nil {
		return nil, err
	}
	defer bkv.leave()

	tx := bkv.db.NewTransaction(false)
	it := tx.NewIterator(badger.DefaultIteratorOptions)
	if minKey == nil {
		it.Rewind()
	} else {
		it.Seek(minKey)
	}

	return &badgerIterator{
		kv:     bkv,
		tx:     tx,
		it:     it,
		maxKey: cloneKey(maxKey),
	}, nil
}

func (bit *badgerIterator) Item(fn func(key, val []byte) error) error {
	if bit.it == nil {
		return io.EOF
	}
	err := bit.kv.enter()
	if err != nil {
		return err
	}
	defer bit.kv.leave()

	if !bit.it.Valid() {
		return io.EOF
	}

	item := bit.it.Item()
	key := item.Key()
	if bit.maxKey != nil && bytes.Compare(key, bit.maxKey) > 0 {
		return io.EOF
	}
	err = item.Value(
		func(val []byte) error {
			return fn(key, val)
		})
	if err != nil {
		return err
	}

	bit.it.Next()
	return nil
}

func (bit *badgerIterator) Close() {
	if bit.it == nil {
		return
	}
	if bit.kv.enter() == nil {
		bit.it.Close()
		bit.tx.Discard()
		bit.kv.leave()
	}
	bit.it = nil
}
