package kv

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/pebble"
)

type pebbleKV struct {
	guard
	db    *pebble.DB
	wopts *pebble.WriteOptions
}

type pebbleIterator struct {
	kv    *pebbleKV
	snap  *pebble.Snapshot
	it    *pebble.Iterator
	first bool
	done  bool
}

func init() {
	Register("pebble", MakePebbleBackend)
}

func MakePebbleBackend(cfg Config) (Backend, error) {
	wopts := pebble.NoSync
	if cfg.Sync {
		wopts = pebble.Sync
	}

	return newDirBackend("pebble", cfg,
		func(cfg Config, dir string) (engineKV, error) {
			os.MkdirAll(dir, 0755)

			db, err := pebble.Open(dir, &pebble.Options{Logger: cfg.Logger})
			if err != nil {
				return nil, err
			}
			return &pebbleKV{
				db:    db,
				wopts: wopts,
			}, nil
		})
}

func (pkv *pebbleKV) close() error {
	return pkv.shut(pkv.db.Close)
}

func (pkv *pebbleKV) Get(key []byte, fn func(val []byte) error) error {
	err := pkv.enter()
	if err != nil {
		return err
	}
	defer pkv.leave()

	val, closer, err := pkv.db.Get(key)
	if err != nil {
		if err == pebble.ErrNotFound {
			return io.EOF
		}
		return err
	}
	defer closer.Close()

	return fn(val)
}

func (pkv *pebbleKV) Set(key, val []byte) error {
	err := pkv.enter()
	if err != nil {
		return err
	}
	defer pkv.leave()

	return pkv.db.Set(key, val, pkv.wopts)
}

func (pkv *pebbleKV) Delete(key []byte) error {
	err := pkv.enter()
	if err != nil {
		return err
	}
	defer pkv.leave()

	return pkv.db.Delete(key, pkv.wopts)
}

func (pkv *pebbleKV) Clear() error {
	err := pkv.enter()
	if err != nil {
		return err
	}
	defer pkv.leave()

	it := pkv.db.NewIter(nil)
	if !it.Last() {
		return it.Close()
	}
	end := successor(it.Key())
	err = it.Close()
	if err != nil {
		return err
	}
	return pkv.db.DeleteRange([]byte{}, end, pkv.wopts)
}

func (pkv *pebbleKV) Apply(ops []Op) error {
	err := pkv.enter()
	if err != nil {
		return err
	}
	defer pkv.leave()

	batch := pkv.db.NewBatch()
	defer batch.Close()

	for _, op := range ops {
		switch op.Kind {
		case SetOp:
			err = batch.Set(op.Key, op.Val, nil)
		case DeleteOp:
			err = batch.Delete(op.Key, nil)
		default:
			err = fmt.Errorf("kv: pebble: unexpected op kind: %d", op.Kind)
		}
		if err != nil {
			return err
		}
	}
	return batch.Commit(pkv.wopts)
}

func (pkv *pebbleKV) Iterate(minKey, maxKey []byte) (Iterator, error) {
	err := pkv.enter()
	if err != nil {
		return nil, err
	}
	defer pkv.leave()

	snap := pkv.db.NewSnapshot()
	pit := &pebbleIterator{
		kv:    pkv,
		snap:  snap,
		first: true,
	}
	if minKey != nil && maxKey != nil && bytes.Compare(minKey, maxKey) > 0 {
		// Lower bound past the upper bound: nothing to iterate.
		pit.it = snap.NewIter(nil)
		pit.done = true
	} else {
		pit.it = snap.NewIter(&pebble.IterOptions{
			LowerBound: cloneKey(minKey),
			UpperBound: successor(maxKey),
		})
	}
	return pit, nil
}

func (pit *pebbleIterator) Item(fn func(key, val []byte) error) error {
	if pit.it == nil || pit.done {
		return io.EOF
	}
	err := pit.kv.enter()
	if err != nil {
		return err
	}
	defer pit.kv.leave()

	var ok bool
	if pit.first {
		ok = pit.it.First()
		pit.first = false
	} else {
		ok = pit.it.Next()
	}
	if !ok {
		pit.done = true
		err = pit.it.Error()
		if err != nil {
			return err
		}
		return io.EOF
	}
	return fn(pit.it.Key(), pit.it.Value())
}

func (pit *pebbleIterator) Close() {
	if pit.it == nil {
		return
	}
	if pit.kv.enter() == nil {
		pit.it.Close()
		pit.snap.Close()
		pit.kv.leave()
	}
	pit.it = nil
}
