package kv

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/google/btree"
	log "github.com/sirupsen/logrus"
)

const (
	btreeDegree = 16
	btreeChunk  = 64
)

type btreeBackend struct {
	logger *log.Logger
	mutex  sync.Mutex
	stores map[string]*btreeKV
	closed bool
}

type btreeKV struct {
	mutex  sync.Mutex
	tree   *btree.BTree
	closed bool
}

type btreeIterator struct {
	tree   *btree.BTree
	pivot  []byte
	maxKey []byte
	items  []btreeItem
	idx    int
	done   bool
}

type btreeItem struct {
	key []byte
	val []byte
}

func (bi btreeItem) Less(item btree.Item) bool {
	bi2 := item.(btreeItem)
	return bytes.Compare(bi.key, bi2.key) < 0
}

func init() {
	Register("btree", MakeBTreeBackend)
}

// MakeBTreeBackend returns a backend which keeps every store in memory; the data directory
// is not used.
func MakeBTreeBackend(cfg Config) (Backend, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &btreeBackend{
		logger: logger,
		stores: map[string]*btreeKV{},
	}, nil
}

func (bbe *btreeBackend) Open(name string) (KV, error) {
	err := validName(name)
	if err != nil {
		return nil, err
	}

	bbe.mutex.Lock()
	defer bbe.mutex.Unlock()

	if bbe.closed {
		return nil, ErrClosed
	}
	bkv, ok := bbe.stores[name]
	if !ok {
		bkv = &btreeKV{
			tree: btree.New(btreeDegree),
		}
		bbe.stores[name] = bkv
		bbe.logger.WithFields(log.Fields{"backend": "btree", "store": name}).Debug("store open")
	}
	return bkv, nil
}

func (bbe *btreeBackend) Drop(name string) error {
	err := validName(name)
	if err != nil {
		return err
	}

	bbe.mutex.Lock()
	defer bbe.mutex.Unlock()

	if bbe.closed {
		return ErrClosed
	}
	if bkv, ok := bbe.stores[name]; ok {
		bkv.close()
		delete(bbe.stores, name)
		bbe.logger.WithFields(log.Fields{"backend": "btree", "store": name}).Info("store dropped")
	}
	return nil
}

func (bbe *btreeBackend) Close() error {
	bbe.mutex.Lock()
	defer bbe.mutex.Unlock()

	for _, bkv := range bbe.stores {
		bkv.close()
	}
	bbe.stores = nil
	bbe.closed = true
	return nil
}

func (bkv *btreeKV) close() {
	bkv.mutex.Lock()
	bkv.closed = true
	bkv.tree = nil
	bkv.mutex.Unlock()
}

func (bkv *btreeKV) Get(key []byte, fn func(val []byte) error) error {
	bkv.mutex.Lock()
	if bkv.closed {
		bkv.mutex.Unlock()
		return ErrClosed
	}
	item := bkv.tree.Get(btreeItem{key: key})
	bkv.mutex.Unlock()

	if item == nil {
		return io.EOF
	}
	return fn(item.(btreeItem).val)
}

func (bkv *btreeKV) Set(key, val []byte) error {
	bkv.mutex.Lock()
	defer bkv.mutex.Unlock()

	if bkv.closed {
		return ErrClosed
	}
	bkv.tree.ReplaceOrInsert(btreeItem{key: copyBytes(key), val: copyBytes(val)})
	return nil
}

func (bkv *btreeKV) Delete(key []byte) error {
	bkv.mutex.Lock()
	defer bkv.mutex.Unlock()

	if bkv.closed {
		return ErrClosed
	}
	bkv.tree.Delete(btreeItem{key: key})
	return nil
}

func (bkv *btreeKV) Clear() error {
	bkv.mutex.Lock()
	defer bkv.mutex.Unlock()

	if bkv.closed {
		return ErrClosed
	}
	bkv.tree = btree.New(btreeDegree)
	return nil
}

func (bkv *btreeKV) Apply(ops []Op) error {
	bkv.mutex.Lock()
	defer bkv.mutex.Unlock()

	if bkv.closed {
		return ErrClosed
	}

	tree := bkv.tree.Clone()
	for _, op := range ops {
		switch op.Kind {
		case SetOp:
			tree.ReplaceOrInsert(btreeItem{key: copyBytes(op.Key), val: copyBytes(op.Val)})
		case DeleteOp:
			tree.Delete(btreeItem{key: op.Key})
		default:
			return fmt.Errorf("kv: btree: unexpected op kind: %d", op.Kind)
		}
	}
	bkv.tree = tree
	return nil
}

func (bkv *btreeKV) Iterate(minKey, maxKey []byte) (Iterator, error) {
	bkv.mutex.Lock()
	defer bkv.mutex.Unlock()

	if bkv.closed {
		return nil, ErrClosed
	}
	return &btreeIterator{
		tree:   bkv.tree.Clone(),
		pivot:  copyBytes(minKey),
		maxKey: successor(maxKey),
	}, nil
}

func (bit *btreeIterator) fill() {
	bit.items = bit.items[:0]
	bit.idx = 0

	bit.tree.AscendGreaterOrEqual(btreeItem{key: bit.pivot},
		func(item btree.Item) bool {
			bi := item.(btreeItem)
			if bit.maxKey != nil && bytes.Compare(bi.key, bit.maxKey) >= 0 {
				bit.done = true
				return false
			}
			bit.items = append(bit.items, bi)
			return len(bit.items) < btreeChunk
		})

	if len(bit.items) < btreeChunk {
		bit.done = true
	} else {
		bit.pivot = successor(bit.items[len(bit.items)-1].key)
	}
}

func (bit *btreeIterator) Item(fn func(key, val []byte) error) error {
	if bit.idx == len(bit.items) {
		if bit.done || bit.tree == nil {
			return io.EOF
		}
		bit.fill()
		if len(bit.items) == 0 {
			return io.EOF
		}
	}

	item := bit.items[bit.idx]
	bit.idx += 1
	return fn(item.key, item.val)
}

func (bit *btreeIterator) Close() {
	bit.tree = nil
	bit.items = nil
	bit.done = true
}
