package cmd

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leftmike/sortkv/encode"
)

func init() {
	sortkvCmd.AddCommand(
		&cobra.Command{
			Use:   "encode KEY...",
			Short: "Print the hex encoding of keys",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				keys, err := parseKeys(args)
				if err != nil {
					return err
				}
				for _, key := range keys {
					buf, err := encode.EncodeKey(key)
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(buf))
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "decode HEX...",
			Short: "Print the keys of hex encodings",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				for _, arg := range args {
					buf, err := hex.DecodeString(arg)
					if err != nil {
						return fmt.Errorf("sortkv: %s: %s", arg, err)
					}
					key, err := encode.DecodeKey(buf)
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), encode.FormatKey(key))
				}
				return nil
			},
		},
	)
}
