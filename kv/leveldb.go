package kv

import (
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

type levelKV struct {
	guard
	db    *leveldb.DB
	wopts *opt.WriteOptions
}

type levelIterator struct {
	kv   *levelKV
	snap *leveldb.Snapshot
	it   iterator.Iterator
	done bool
}

func init() {
	Register("leveldb", MakeLevelBackend)
}

func MakeLevelBackend(cfg Config) (Backend, error) {
	return newDirBackend("leveldb", cfg,
		func(cfg Config, dir string) (engineKV, error) {
			opts := &opt.Options{
				Compression: opt.NoCompression,
			}

			db, err := leveldb.OpenFile(dir, opts)
			if errors.IsCorrupted(err) {
				cfg.Logger.WithField("path", dir).WithError(err).Warn("recovering leveldb")
				db, err = leveldb.RecoverFile(dir, opts)
			}
			if err != nil {
				return nil, err
			}
			cfg.Logger.WithFields(log.Fields{"backend": "leveldb", "path": dir}).Debug("opened")

			return &levelKV{
				db:    db,
				wopts: &opt.WriteOptions{Sync: cfg.Sync},
			}, nil
		})
}

func (lkv *levelKV) close() error {
	return lkv.shut(lkv.db.Close)
}

func (lkv *levelKV) Get(key []byte, fn func(val []byte) error) error {
	err := lkv.enter()
	if err != nil {
		return err
	}
	defer lkv.leave()

	val, err := lkv.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return io.EOF
	} else if err != nil {
		return err
	}
	return fn(val)
}

func (lkv *levelKV) Set(key, val []byte) error {
	err := lkv.enter()
	if err != nil {
		return err
	}
	defer lkv.leave()

	return lkv.db.Put(key, val, lkv.wopts)
}

func (lkv *levelKV) Delete(key []byte) error {
	err := lkv.enter()
	if err != nil {
		return err
	}
	defer lkv.leave()

	return lkv.db.Delete(key, lkv.wopts)
}

func (lkv *levelKV) Clear() error {
	err := lkv.enter()
	if err != nil {
		return err
	}
	defer lkv.leave()

	snap, err := lkv.db.GetSnapshot()
	if err != nil {
		return err
	}
	defer snap.Release()

	batch := new(leveldb.Batch)
	it := snap.NewIterator(nil, nil)
	for it.Next() {
		batch.Delete(copyBytes(it.Key()))
	}
	it.Release()
	err = it.Error()
	if err != nil {
		return err
	}
	return lkv.db.Write(batch, lkv.wopts)
}

func (lkv *levelKV) Apply(ops []Op) error {
	err := lkv.enter()
	if err != nil {
		return err
	}
	defer lkv.leave()

	batch := new(leveldb.Batch)
	for _, op := range ops {
		switch op.Kind {
		case SetOp:
			batch.Put(op.Key, op.Val)
		case DeleteOp:
			batch.Delete(op.Key)
		default:
			return fmt.Errorf("kv: leveldb: unexpected op kind: %d", op.Kind)
		}
	}
	return lkv.db.Write(batch, lkv.wopts)
}

func (lkv *levelKV) Iterate(minKey, maxKey []byte) (Iterator, error) {
	err := lkv.enter()
	if err != nil {
		return nil, err
	}
	defer lkv.leave()

	snap, err := lkv.db.GetSnapshot()
	if err != nil {
		return nil, err
	}
	return &levelIterator{
		kv:   lkv,
		snap: snap,
		it: snap.NewIterator(&util.Range{
			Start: cloneKey(minKey),
			Limit: successor(maxKey),
		}, nil),
	}, nil
}

func (lit *levelIterator) Item(fn func(key, val []byte) error) error {
	if lit.it == nil || lit.done {
		return io.EOF
	}
	err := lit.kv.enter()
	if err != nil {
		return err
	}
	defer lit.kv.leave()

	if !lit.it.Next() {
		lit.done = true
		err = lit.it.Error()
		if err != nil {
			return err
		}
		return io.EOF
	}
	return fn(lit.it.Key(), lit.it.Value())
}

func (lit *levelIterator) Close() {
	if lit.it == nil {
		return
	}
	if lit.kv.enter() == nil {
		lit.it.Release()
		lit.snap.Release()
		lit.kv.leave()
	}
	lit.it = nil
}
