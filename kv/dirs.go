package kv

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
)

// guard protects an engine from use after it has been closed.
type guard struct {
	mutex  sync.RWMutex
	closed bool
}

func (g *guard) enter() error {
	g.mutex.RLock()
	if g.closed {
		g.mutex.RUnlock()
		return ErrClosed
	}
	return nil
}

func (g *guard) leave() {
	g.mutex.RUnlock()
}

func (g *guard) shut(fn func() error) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if g.closed {
		return nil
	}
	g.closed = true
	return fn()
}

type engineKV interface {
	KV
	close() error
}

// dirBackend keeps each store of an engine in its own directory under the data directory.
type dirBackend struct {
	typ    string
	cfg    Config
	open   func(cfg Config, dir string) (engineKV, error)
	mutex  sync.Mutex
	stores map[string]engineKV
	closed bool
}

func newDirBackend(typ string, cfg Config,
	open func(cfg Config, dir string) (engineKV, error)) (Backend, error) {

	if cfg.Logger == nil {
		cfg.Logger = log.StandardLogger()
	}
	err := os.MkdirAll(cfg.DataDir, 0755)
	if err != nil {
		return nil, err
	}
	return &dirBackend{
		typ:    typ,
		cfg:    cfg,
		open:   open,
		stores: map[string]engineKV{},
	}, nil
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("kv: invalid store name: %q", name)
	}
	return nil
}

func (db *dirBackend) Open(name string) (KV, error) {
	err := validName(name)
	if err != nil {
		return nil, err
	}

	db.mutex.Lock()
	defer db.mutex.Unlock()

	if db.closed {
		return nil, ErrClosed
	}
	if ekv, ok := db.stores[name]; ok {
		return ekv, nil
	}

	dir := filepath.Join(db.cfg.DataDir, name)
	ekv, err := db.open(db.cfg, dir)
	if err != nil {
		return nil, fmt.Errorf("kv: %s: %s: %w", db.typ, name, err)
	}
	db.stores[name] = ekv
	db.cfg.Logger.WithFields(log.Fields{"backend": db.typ, "store": name}).Debug("store open")
	return ekv, nil
}

func (db *dirBackend) Drop(name string) error {
	err := validName(name)
	if err != nil {
		return err
	}

	db.mutex.Lock()
	defer db.mutex.Unlock()

	if db.closed {
		return ErrClosed
	}
	if ekv, ok := db.stores[name]; ok {
		delete(db.stores, name)
		err = ekv.close()
		if err != nil {
			db.cfg.Logger.WithFields(log.Fields{"backend": db.typ, "store": name}).
				WithError(err).Warn("close failed")
		}
	}

	err = os.RemoveAll(filepath.Join(db.cfg.DataDir, name))
	if err != nil {
		return err
	}
	db.cfg.Logger.WithFields(log.Fields{"backend": db.typ, "store": name}).Info("store dropped")
	return nil
}

func (db *dirBackend) Close() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	if db.closed {
		return nil
	}
	db.closed = true

	var ret error
	for name, ekv := range db.stores {
		err := ekv.close()
		if err != nil && ret == nil {
			ret = fmt.Errorf("kv: %s: %s: %w", db.typ, name, err)
		}
	}
	db.stores = nil
	return ret
}
