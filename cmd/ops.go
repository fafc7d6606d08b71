package cmd

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/leftmike/sortkv/encode"
	"github.com/leftmike/sortkv/store"
)

var (
	rangeStart string
	rangeEnd   string
)

func init() {
	rangeCmd := &cobra.Command{
		Use:   "range",
		Short: "List the records from --start to --end, both inclusive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var start, end interface{}
			var err error
			if rangeStart != "" {
				start, err = encode.ParseKey(rangeStart)
				if err != nil {
					return err
				}
			}
			if rangeEnd != "" {
				end, err = encode.ParseKey(rangeEnd)
				if err != nil {
					return err
				}
			}
			return withStore(cmd,
				func(ctx context.Context, st *store.Store) error {
					return listRange(ctx, st, cmd.OutOrStdout(), start, end)
				})
		},
	}
	rangeCmd.Flags().StringVar(&rangeStart, "start", "", "first `key` of the range")
	rangeCmd.Flags().StringVar(&rangeEnd, "end", "", "last `key` of the range")

	sortkvCmd.AddCommand(
		&cobra.Command{
			Use:   "get KEY",
			Short: "Print the value of a key",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				key, err := encode.ParseKey(args[0])
				if err != nil {
					return err
				}
				return withStore(cmd,
					func(ctx context.Context, st *store.Store) error {
						return getKey(ctx, st, cmd.OutOrStdout(), key)
					})
			},
		},
		&cobra.Command{
			Use:   "put KEY VALUE",
			Short: "Set the value of a key",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				key, err := encode.ParseKey(args[0])
				if err != nil {
					return err
				}
				val, err := parseValue(args[1])
				if err != nil {
					return err
				}
				return withStore(cmd,
					func(ctx context.Context, st *store.Store) error {
						return st.Put(ctx, key, val)
					})
			},
		},
		&cobra.Command{
			Use:   "del KEY...",
			Short: "Delete one or more keys",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				keys, err := parseKeys(args)
				if err != nil {
					return err
				}
				return withStore(cmd,
					func(ctx context.Context, st *store.Store) error {
						return delKeys(ctx, st, keys)
					})
			},
		},
		&cobra.Command{
			Use:   "has KEY",
			Short: "Print whether a key is present",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				key, err := encode.ParseKey(args[0])
				if err != nil {
					return err
				}
				return withStore(cmd,
					func(ctx context.Context, st *store.Store) error {
						return hasKey(ctx, st, cmd.OutOrStdout(), key)
					})
			},
		},
		&cobra.Command{
			Use:   "count",
			Short: "Print the number of records",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd,
					func(ctx context.Context, st *store.Store) error {
						return countRecords(ctx, st, cmd.OutOrStdout())
					})
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Delete every record",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd,
					func(ctx context.Context, st *store.Store) error {
						return st.Clear(ctx)
					})
			},
		},
		&cobra.Command{
			Use:   "drop",
			Short: "Drop the store and everything in it",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				be, err := openBackend()
				if err != nil {
					return err
				}
				defer be.Close()

				return store.Drop(be, storeName)
			},
		},
		rangeCmd,
	)
}

func parseKeys(args []string) ([]interface{}, error) {
	keys := make([]interface{}, 0, len(args))
	for _, arg := range args {
		key, err := encode.ParseKey(arg)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// parseValue accepts a Go quoted string, #hex for bytes, or any other text as is.
func parseValue(s string) ([]byte, error) {
	if strings.HasPrefix(s, `"`) || strings.HasPrefix(s, "`") {
		v, err := strconv.Unquote(s)
		if err != nil {
			return nil, fmt.Errorf("sortkv: bad value: %s", s)
		}
		return []byte(v), nil
	} else if strings.HasPrefix(s, "#") {
		b, err := hex.DecodeString(s[1:])
		if err != nil {
			return nil, fmt.Errorf("sortkv: bad value: %s", s)
		}
		return b, nil
	}
	return []byte(s), nil
}

func printable(val []byte) bool {
	if !utf8.Valid(val) {
		return false
	}
	for _, r := range string(val) {
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

// formatValue returns val in a form parseValue accepts: printable text as is, quoted if it
// would otherwise read as a quoted or hex value, and anything else as hex.
func formatValue(val []byte) string {
	if printable(val) {
		if len(val) > 0 && (val[0] == '#' || val[0] == '"' || val[0] == '`') {
			return strconv.Quote(string(val))
		}
		return string(val)
	}
	return "#" + hex.EncodeToString(val)
}

func getKey(ctx context.Context, st *store.Store, w io.Writer, key interface{}) error {
	val, ok, err := st.Get(ctx, key)
	if err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("sortkv: %s: not found", encode.FormatKey(key))
	}
	fmt.Fprintln(w, formatValue(val))
	return nil
}

func delKeys(ctx context.Context, st *store.Store, keys []interface{}) error {
	if len(keys) == 1 {
		return st.Del(ctx, keys[0])
	}

	ops := make([]store.Op, 0, len(keys))
	for _, key := range keys {
		ops = append(ops, store.Delete(key))
	}
	return st.Batch(ctx, ops)
}

func hasKey(ctx context.Context, st *store.Store, w io.Writer, key interface{}) error {
	ok, err := st.Has(ctx, key)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, ok)
	return nil
}

func countRecords(ctx context.Context, st *store.Store, w io.Writer) error {
	cnt, err := st.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, cnt)
	return nil
}

func listRange(ctx context.Context, st *store.Store, w io.Writer, start, end interface{}) error {
	tw := tablewriter.NewWriter(w)
	tw.SetAutoFormatHeaders(false)
	tw.SetHeader([]string{"key", "value"})

	err := st.ForEach(ctx, start, end,
		func(e store.Entry) error {
			tw.Append([]string{encode.FormatKey(e.Key), formatValue(e.Value)})
			return nil
		})
	if err != nil {
		return err
	}
	tw.Render()
	fmt.Fprintf(w, "(%d records)\n", tw.NumLines())
	return nil
}
