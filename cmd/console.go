package cmd

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/leftmike/sortkv/encode"
	"github.com/leftmike/sortkv/store"
)

const (
	sortkvHistory = ".sortkv_history"
)

var (
	errQuit = errors.New("quit")
)

const consoleHelp = `get KEY               print the value of KEY
put KEY VALUE         set the value of KEY
del KEY...            delete keys
has KEY               print whether KEY is present
count                 print the number of records
clear                 delete every record
range [START [END]]   list records from START to END, both inclusive
encode KEY            print the hex encoding of KEY
decode HEX            print the key encoded by HEX
quit                  leave the console
`

func init() {
	sortkvCmd.AddCommand(
		&cobra.Command{
			Use:   "console",
			Short: "Run an interactive console on the store",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd,
					func(ctx context.Context, st *store.Store) error {
						interact(ctx, st, cmd.OutOrStdout())
						return nil
					})
			},
		},
	)
}

func interact(ctx context.Context, st *store.Store, w io.Writer) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	if f, err := os.Open(sortkvHistory); err == nil {
		line.ReadHistory(f)
		f.Close()
	}

	prompt := fmt.Sprintf("%s> ", st.Name())
	for {
		s, err := line.Prompt(prompt)
		if err != nil {
			if err != io.EOF && err != liner.ErrPromptAborted {
				fmt.Fprintln(w, err)
			}
			break
		}
		if strings.TrimSpace(s) == "" {
			continue
		}
		line.AppendHistory(s)

		err = execLine(ctx, st, w, s)
		if err == errQuit {
			break
		} else if err != nil {
			fmt.Fprintln(w, err)
		}
	}

	if f, err := os.Create(sortkvHistory); err != nil {
		fmt.Fprintf(os.Stderr, "sortkv: error writing history file, %s: %s", sortkvHistory, err)
	} else {
		line.WriteHistory(f)
		f.Close()
	}
}

func parseKeyList(s string) ([]interface{}, error) {
	var keys []interface{}
	for s != "" {
		key, rest, err := encode.ParseKeyPrefix(s)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
		s = rest
	}
	return keys, nil
}

func execLine(ctx context.Context, st *store.Store, w io.Writer, line string) error {
	word, rest := splitWord(strings.TrimSpace(line))
	switch word {
	case "get", "has", "encode":
		key, err := encode.ParseKey(rest)
		if err != nil {
			return err
		}
		switch word {
		case "get":
			return getKey(ctx, st, w, key)
		case "has":
			return hasKey(ctx, st, w, key)
		}
		buf, err := encode.EncodeKey(key)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, hex.EncodeToString(buf))
	case "put":
		op, err := parseOp(strings.TrimSpace(line))
		if err != nil {
			return err
		}
		return st.Put(ctx, op.Key, op.Value)
	case "del":
		keys, err := parseKeyList(rest)
		if err != nil {
			return err
		} else if len(keys) == 0 {
			return errors.New("del: expected one or more keys")
		}
		return delKeys(ctx, st, keys)
	case "count":
		return countRecords(ctx, st, w)
	case "clear":
		return st.Clear(ctx)
	case "range":
		keys, err := parseKeyList(rest)
		if err != nil {
			return err
		}
		var start, end interface{}
		switch len(keys) {
		case 2:
			end = keys[1]
			fallthrough
		case 1:
			start = keys[0]
		case 0:
		default:
			return errors.New("range: expected at most two keys")
		}
		return listRange(ctx, st, w, start, end)
	case "decode":
		buf, err := hex.DecodeString(rest)
		if err != nil {
			return fmt.Errorf("decode: %s", err)
		}
		key, err := encode.DecodeKey(buf)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, encode.FormatKey(key))
	case "help":
		fmt.Fprint(w, consoleHelp)
	case "quit", "exit":
		return errQuit
	default:
		return fmt.Errorf("unknown command: %s; try help", word)
	}
	return nil
}
