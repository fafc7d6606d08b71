package kv

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"
	"go.etcd.io/bbolt"
)

const (
	bboltFile     = "sortkv.bbolt"
	bboltMmapSize = 1 << 26
	bboltChunk    = 256
)

type bboltBackend struct {
	db     *bbolt.DB
	logger *log.Logger
	mutex  sync.Mutex
	stores map[string]*bboltKV
}

// bboltKV keeps a store in a bucket of a single bbolt file.
type bboltKV struct {
	guard
	db  *bbolt.DB
	bkt []byte
}

// bboltIterator reads a range in chunks, each from its own short read transaction, so a
// write never waits on an open iterator. Each chunk is a consistent snapshot; the first
// chunk is read when the iterator is created.
type bboltIterator struct {
	kv     *bboltKV
	pivot  []byte
	maxKey []byte
	items  []bboltItem
	idx    int
	done   bool
}

type bboltItem struct {
	key []byte
	val []byte
}

func init() {
	Register("bbolt", MakeBBoltBackend)
}

func MakeBBoltBackend(cfg Config) (Backend, error) {
	err := os.MkdirAll(cfg.DataDir, 0755)
	if err != nil {
		return nil, err
	}

	db, err := bbolt.Open(filepath.Join(cfg.DataDir, bboltFile), 0644,
		&bbolt.Options{InitialMmapSize: bboltMmapSize})
	if err != nil {
		return nil, err
	}
	if !cfg.Sync {
		// Dangerous, but about 100x faster.
		db.NoFreelistSync = true
		db.NoSync = true
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &bboltBackend{
		db:     db,
		logger: logger,
		stores: map[string]*bboltKV{},
	}, nil
}

func (bbe *bboltBackend) Open(name string) (KV, error) {
	err := validName(name)
	if err != nil {
		return nil, err
	}

	bbe.mutex.Lock()
	defer bbe.mutex.Unlock()

	if bbe.stores == nil {
		return nil, ErrClosed
	}
	if bkv, ok := bbe.stores[name]; ok {
		return bkv, nil
	}

	err = bbe.db.Update(
		func(tx *bbolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists([]byte(name))
			return err
		})
	if err != nil {
		return nil, fmt.Errorf("kv: bbolt: %s: %w", name, err)
	}

	bkv := &bboltKV{
		db:  bbe.db,
		bkt: []byte(name),
	}
	bbe.stores[name] = bkv
	bbe.logger.WithFields(log.Fields{"backend": "bbolt", "store": name}).Debug("store open")
	return bkv, nil
}

func (bbe *bboltBackend) Drop(name string) error {
	err := validName(name)
	if err != nil {
		return err
	}

	bbe.mutex.Lock()
	defer bbe.mutex.Unlock()

	if bbe.stores == nil {
		return ErrClosed
	}
	if bkv, ok := bbe.stores[name]; ok {
		delete(bbe.stores, name)
		bkv.shut(func() error { return nil })
	}

	err = bbe.db.Update(
		func(tx *bbolt.Tx) error {
			err := tx.DeleteBucket([]byte(name))
			if err == bbolt.ErrBucketNotFound {
				return nil
			}
			return err
		})
	if err != nil {
		return fmt.Errorf("kv: bbolt: %s: %w", name, err)
	}
	bbe.logger.WithFields(log.Fields{"backend": "bbolt", "store": name}).Info("store dropped")
	return nil
}

func (bbe *bboltBackend) Close() error {
	bbe.mutex.Lock()
	defer bbe.mutex.Unlock()

	if bbe.stores == nil {
		return nil
	}
	for _, bkv := range bbe.stores {
		bkv.shut(func() error { return nil })
	}
	bbe.stores = nil
	return bbe.db.Close()
}

func (bkv *bboltKV) view(fn func(bkt *bbolt.Bucket) error) error {
	err := bkv.enter()
	if err != nil {
		return err
	}
	defer bkv.leave()

	return bkv.db.View(
		func(tx *bbolt.Tx) error {
			bkt := tx.Bucket(bkv.bkt)
			if bkt == nil {
				return fmt.Errorf("kv: bbolt: missing bucket: %s", bkv.bkt)
			}
			return fn(bkt)
		})
}

func (bkv *bboltKV) update(fn func(tx *bbolt.Tx, bkt *bbolt.Bucket) error) error {
	err := bkv.enter()
	if err != nil {
		return err
	}
	defer bkv.leave()

	return bkv.db.Update(
		func(tx *bbolt.Tx) error {
			bkt := tx.Bucket(bkv.bkt)
			if bkt == nil {
				return fmt.Errorf("kv: bbolt: missing bucket: %s", bkv.bkt)
			}
			return fn(tx, bkt)
		})
}

func (bkv *bboltKV) Get(key []byte, fn func(val []byte) error) error {
	return bkv.view(
		func(bkt *bbolt.Bucket) error {
			// Seek, rather than Get, to tell an empty value from a missing key.
			k, v := bkt.Cursor().Seek(key)
			if k == nil || !bytes.Equal(k, key) {
				return io.EOF
			}
			return fn(v)
		})
}

func (bkv *bboltKV) Set(key, val []byte) error {
	return bkv.update(
		func(_ *bbolt.Tx, bkt *bbolt.Bucket) error {
			return bkt.Put(key, copyBytes(val))
		})
}

func (bkv *bboltKV) Delete(key []byte) error {
	return bkv.update(
		func(_ *bbolt.Tx, bkt *bbolt.Bucket) error {
			return bkt.Delete(key)
		})
}

func (bkv *bboltKV) Clear() error {
	return bkv.update(
		func(tx *bbolt.Tx, _ *bbolt.Bucket) error {
			err := tx.DeleteBucket(bkv.bkt)
			if err != nil {
				return err
			}
			_, err = tx.CreateBucket(bkv.bkt)
			return err
		})
}

func (bkv *bboltKV) Apply(ops []Op) error {
	return bkv.update(
		func(_ *bbolt.Tx, bkt *bbolt.Bucket) error {
			for _, op := range ops {
				var err error
				switch op.Kind {
				case SetOp:
					err = bkt.Put(op.Key, copyBytes(op.Val))
				case DeleteOp:
					err = bkt.Delete(op.Key)
				default:
					err = fmt.Errorf("kv: bbolt: unexpected op kind: %d", op.Kind)
				}
				if err != nil {
					return err
				}
			}
			return nil
		})
}

// Count returns the number of keys in the store from a single read transaction.
func (bkv *bboltKV) Count() (int, error) {
	var cnt int
	err := bkv.view(
		func(bkt *bbolt.Bucket) error {
			cr := bkt.Cursor()
			for k, _ := cr.First(); k != nil; k, _ = cr.Next() {
				cnt += 1
			}
			return nil
		})
	if err != nil {
		return 0, err
	}
	return cnt, nil
}

func (bkv *bboltKV) Iterate(minKey, maxKey []byte) (Iterator, error) {
	bit := &bboltIterator{
		kv:     bkv,
		pivot:  cloneKey(minKey),
		maxKey: cloneKey(maxKey),
	}
	err := bit.fill()
	if err != nil {
		return nil, err
	}
	return bit, nil
}

func (bit *bboltIterator) fill() error {
	bit.items = bit.items[:0]
	bit.idx = 0

	err := bit.kv.view(
		func(bkt *bbolt.Bucket) error {
			cr := bkt.Cursor()
			var key, val []byte
			if bit.pivot == nil {
				key, val = cr.First()
			} else {
				key, val = cr.Seek(bit.pivot)
			}
			for ; key != nil; key, val = cr.Next() {
				if bit.maxKey != nil && bytes.Compare(key, bit.maxKey) > 0 {
					bit.done = true
					return nil
				}
				bit.items = append(bit.items, bboltItem{key: copyBytes(key), val: copyBytes(val)})
				if len(bit.items) == bboltChunk {
					return nil
				}
			}
			bit.done = true
			return nil
		})
	if err != nil {
		bit.done = true
		return err
	}

	if !bit.done {
		bit.pivot = successor(bit.items[len(bit.items)-1].key)
	}
	return nil
}

func (bit *bboltIterator) Item(fn func(key, val []byte) error) error {
	if bit.idx == len(bit.items) {
		if bit.done {
			return io.EOF
		}
		err := bit.fill()
		if err != nil {
			return err
		}
		if len(bit.items) == 0 {
			return io.EOF
		}
	}

	item := bit.items[bit.idx]
	bit.idx += 1
	return fn(item.key, item.val)
}

func (bit *bboltIterator) Close() {
	bit.items = nil
	bit.done = true
}
