package store

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/leftmike/sortkv/encode"
	"github.com/leftmike/sortkv/kv"
)

type OpKind int

const (
	PutOp OpKind = iota + 1
	DeleteOp
)

func (ok OpKind) String() string {
	switch ok {
	case PutOp:
		return "put"
	case DeleteOp:
		return "delete"
	}
	return fmt.Sprintf("OpKind(%d)", int(ok))
}

// Op is one operation of a batch. A PutOp must have a non-nil Value.
type Op struct {
	Kind  OpKind
	Key   interface{}
	Value []byte
}

func Put(key interface{}, val []byte) Op {
	return Op{Kind: PutOp, Key: key, Value: val}
}

func Delete(key interface{}) Op {
	return Op{Kind: DeleteOp, Key: key}
}

func (op Op) String() string {
	if op.Kind == PutOp {
		return fmt.Sprintf("put %s %q", encode.FormatKey(op.Key), op.Value)
	}
	return fmt.Sprintf("%s %s", op.Kind, encode.FormatKey(op.Key))
}

func validateOp(op Op) error {
	switch op.Kind {
	case PutOp:
		if op.Value == nil {
			return fmt.Errorf("%w: put without a value", ErrInvalidBatchOperation)
		}
	case DeleteOp:
	default:
		return fmt.Errorf("%w: unknown kind: %s", ErrInvalidBatchOperation, op.Kind)
	}
	return nil
}

// Batch applies all of ops atomically. Every operation is validated and every key is
// encoded before anything is sent to the backend; the first operation that fails either
// step is reported as a *BatchError and the store is left unchanged.
func (st *Store) Batch(ctx context.Context, ops []Op) error {
	err := st.ready(ctx)
	if err != nil {
		return err
	}

	for idx, op := range ops {
		err := validateOp(op)
		if err != nil {
			return &BatchError{Index: idx, Op: op, Err: err}
		}
	}

	kvops := make([]kv.Op, 0, len(ops))
	for idx, op := range ops {
		buf, err := encode.EncodeKey(op.Key)
		if err != nil {
			return &BatchError{Index: idx, Op: op, Err: err}
		}
		if op.Kind == PutOp {
			kvops = append(kvops, kv.Op{Kind: kv.SetOp, Key: buf, Val: op.Value})
		} else {
			kvops = append(kvops, kv.Op{Kind: kv.DeleteOp, Key: buf})
		}
	}

	err = ctx.Err()
	if err != nil {
		return err
	}
	err = st.kv.Apply(kvops)
	if err != nil {
		return backendError("batch", err)
	}
	log.WithFields(log.Fields{"store": st.name, "ops": len(ops)}).Debug("batch applied")
	return nil
}
