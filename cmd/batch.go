package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leftmike/sortkv/encode"
	"github.com/leftmike/sortkv/store"
)

func init() {
	sortkvCmd.AddCommand(
		&cobra.Command{
			Use:   "batch FILE",
			Short: "Apply the put and del lines of a file as one atomic batch",
			Long: "Each line of FILE is 'put KEY VALUE' or 'del KEY'; blank lines and lines " +
				"starting with # are skipped. Use - to read from standard input.",
			Args: cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var r io.Reader
				if args[0] == "-" {
					r = cmd.InOrStdin()
				} else {
					f, err := os.Open(args[0])
					if err != nil {
						return fmt.Errorf("sortkv: %s", err)
					}
					defer f.Close()
					r = f
				}

				ops, err := readBatch(r, args[0])
				if err != nil {
					return err
				}
				return withStore(cmd,
					func(ctx context.Context, st *store.Store) error {
						err := st.Batch(ctx, ops)
						if err != nil {
							return err
						}
						fmt.Fprintf(cmd.OutOrStdout(), "%d operations applied\n", len(ops))
						return nil
					})
			},
		},
	)
}

func readBatch(r io.Reader, src string) ([]store.Op, error) {
	var ops []store.Op
	scan := bufio.NewScanner(r)
	ln := 0
	for scan.Scan() {
		ln += 1
		line := strings.TrimSpace(scan.Text())
		if line == "" || line[0] == '#' {
			continue
		}

		op, err := parseOp(line)
		if err != nil {
			return nil, fmt.Errorf("sortkv: %s:%d: %s", src, ln, err)
		}
		ops = append(ops, op)
	}
	err := scan.Err()
	if err != nil {
		return nil, fmt.Errorf("sortkv: %s: %s", src, err)
	}
	return ops, nil
}

func splitWord(line string) (string, string) {
	idx := strings.IndexAny(line, " \t")
	if idx < 0 {
		return line, ""
	}
	return line[:idx], strings.TrimSpace(line[idx:])
}

func parseOp(line string) (store.Op, error) {
	word, rest := splitWord(line)
	switch word {
	case "put":
		key, rest, err := encode.ParseKeyPrefix(rest)
		if err != nil {
			return store.Op{}, err
		}
		if rest == "" {
			return store.Op{}, fmt.Errorf("put %s: missing value", encode.FormatKey(key))
		}
		val, err := parseValue(rest)
		if err != nil {
			return store.Op{}, err
		}
		return store.Put(key, val), nil
	case "del":
		key, err := encode.ParseKey(rest)
		if err != nil {
			return store.Op{}, err
		}
		return store.Delete(key), nil
	}
	return store.Op{}, fmt.Errorf("expected put or del; got %q", word)
}
