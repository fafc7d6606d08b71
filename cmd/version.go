package cmd

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/leftmike/sortkv/kv"
)

var version = buildVersion()

// buildVersion reports the module version sortkv was built from, and the vcs revision for
// builds from a checkout.
func buildVersion() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return "sortkv (devel)"
	}

	v := bi.Main.Version
	if v == "" {
		v = "(devel)"
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 12 {
			v += " " + s.Value[:12]
		}
	}
	return "sortkv " + v
}

func init() {
	sortkvCmd.AddCommand(
		&cobra.Command{
			Use:   "version",
			Short: "Print the version of sortkv and the storage engines it supports",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), version)
				fmt.Fprintf(cmd.OutOrStdout(), "backends: %v\n", kv.Backends())
			},
		})
}
