package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/leftmike/sortkv/encode"
	"github.com/leftmike/sortkv/store"
)

const (
	maxLoaders = 4
)

// dumpRecord is one record of a dump file; a dump file is a sequence of CBOR encoded
// dumpRecords in key order.
type dumpRecord struct {
	Key   []byte `cbor:"k"`
	Value []byte `cbor:"v"`
}

func init() {
	sortkvCmd.AddCommand(
		&cobra.Command{
			Use:   "dump FILE",
			Short: "Write every record to a file; use - for standard output",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var w io.Writer
				if args[0] == "-" {
					w = cmd.OutOrStdout()
				} else {
					f, err := os.Create(args[0])
					if err != nil {
						return fmt.Errorf("sortkv: %s", err)
					}
					defer f.Close()
					w = f
				}

				return withStore(cmd,
					func(ctx context.Context, st *store.Store) error {
						cnt, err := dumpStore(ctx, st, w)
						if err != nil {
							return err
						}
						log.WithFields(log.Fields{"file": args[0], "records": cnt}).Info("dumped")
						return nil
					})
			},
		},
		&cobra.Command{
			Use:   "load FILE...",
			Short: "Put the records of one or more dump files",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd,
					func(ctx context.Context, st *store.Store) error {
						g, ctx := errgroup.WithContext(ctx)
						g.SetLimit(maxLoaders)
						for _, fn := range args {
							fn := fn
							g.Go(func() error {
								return loadFile(ctx, st, fn)
							})
						}
						return g.Wait()
					})
			},
		},
	)
}

func dumpStore(ctx context.Context, st *store.Store, w io.Writer) (int, error) {
	bw := bufio.NewWriter(w)
	enc := cbor.NewEncoder(bw)

	var cnt int
	err := st.ForEach(ctx, nil, nil,
		func(e store.Entry) error {
			buf, err := encode.EncodeKey(e.Key)
			if err != nil {
				return err
			}
			cnt += 1
			return enc.Encode(dumpRecord{Key: buf, Value: e.Value})
		})
	if err != nil {
		return 0, err
	}
	return cnt, bw.Flush()
}

func loadFile(ctx context.Context, st *store.Store, fn string) error {
	f, err := os.Open(fn)
	if err != nil {
		return fmt.Errorf("sortkv: %s", err)
	}
	defer f.Close()

	cnt, err := loadRecords(ctx, st, bufio.NewReader(f))
	if err != nil {
		return fmt.Errorf("sortkv: %s: %w", fn, err)
	}
	log.WithFields(log.Fields{"file": fn, "records": cnt}).Info("loaded")
	return nil
}

// loadRecords puts the records read from r in batches of at most batch-size operations.
func loadRecords(ctx context.Context, st *store.Store, r io.Reader) (int, error) {
	dec := cbor.NewDecoder(r)
	ops := make([]store.Op, 0, batchSize)
	var cnt int
	for {
		var rec dumpRecord
		err := dec.Decode(&rec)
		if err == io.EOF {
			break
		} else if err != nil {
			return cnt, err
		}

		key, err := encode.DecodeKey(rec.Key)
		if err != nil {
			return cnt, err
		}
		if rec.Value == nil {
			rec.Value = []byte{}
		}
		ops = append(ops, store.Put(key, rec.Value))

		if len(ops) == batchSize {
			err = st.Batch(ctx, ops)
			if err != nil {
				return cnt, err
			}
			cnt += len(ops)
			ops = ops[:0]
		}
	}

	if len(ops) > 0 {
		err := st.Batch(ctx, ops)
		if err != nil {
			return cnt, err
		}
		cnt += len(ops)
	}
	return cnt, nil
}
