package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/hcl"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/leftmike/sortkv/kv"
	"github.com/leftmike/sortkv/store"
)

var (
	sortkvCmd = &cobra.Command{
		Use:   "sortkv",
		Short: "A sorted key-value store",
		Long: "Sortkv keeps records with typed keys (numbers, text, bytes, times, and tuples) " +
			"in a sorted key-value engine.",
		SilenceUsage:      true,
		PersistentPreRunE: sortkvPreRun,
		PersistentPostRun: sortkvPostRun,
	}

	logFile   = "sortkv.log"
	logLevel  = "info"
	logStderr = false
	logWriter io.WriteCloser

	configFile = "sortkv.hcl"
	noConfig   = false

	backendType = "bbolt"
	dataDir     = "sortkv-data"
	storeName   = "default"
	syncWrites  = false
	batchSize   = 1000

	cfgVars   = map[string]*pflag.Flag{}
	cfg       = map[string]interface{}{}
	usedFlags = map[string]struct{}{}
)

func init() {
	log.SetFormatter(&log.TextFormatter{
		DisableLevelTruncation: true,
	})

	fs := sortkvCmd.PersistentFlags()

	fs.StringVar(&logFile, "log-file", logFile, "`file` to use for logging")
	cfgVars["log-file"] = fs.Lookup("log-file")

	fs.StringVar(&logLevel, "log-level", logLevel,
		"log level: trace, debug, info, warn, error, fatal, or panic")
	cfgVars["log-level"] = fs.Lookup("log-level")

	fs.BoolVarP(&logStderr, "log-stderr", "s", logStderr, "log to standard error")

	fs.StringVar(&configFile, "config-file", configFile, "`file` to load config from")
	fs.BoolVar(&noConfig, "no-config", noConfig, "don't load config file")

	fs.StringVar(&backendType, "backend", backendType,
		fmt.Sprintf("storage `engine` to use: %v", kv.Backends()))
	cfgVars["backend"] = fs.Lookup("backend")

	fs.StringVar(&dataDir, "data", dataDir, "`directory` containing stores")
	cfgVars["data"] = fs.Lookup("data")

	fs.StringVar(&storeName, "store", storeName, "`name` of the store to use")
	cfgVars["store"] = fs.Lookup("store")

	fs.BoolVar(&syncWrites, "sync", syncWrites, "sync every write to disk")
	cfgVars["sync"] = fs.Lookup("sync")

	fs.IntVar(&batchSize, "batch-size", batchSize, "`records` per batch when loading")
	cfgVars["batch-size"] = fs.Lookup("batch-size")
}

func Execute() error {
	return sortkvCmd.Execute()
}

func sortkvPreRun(cmd *cobra.Command, args []string) error {
	cmd.Flags().Visit(
		func(flg *pflag.Flag) {
			usedFlags[flg.Name] = struct{}{}
		})

	if configFile != "" && !noConfig {
		err := loadConfig()
		if err != nil {
			return fmt.Errorf("sortkv: %s", err)
		}
	}

	if !logStderr && logFile != "" {
		var err error
		logWriter, err = os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
		if err != nil {
			logWriter = nil
			return fmt.Errorf("sortkv: %s", err)
		}
		log.SetOutput(logWriter)
	}

	ll, err := log.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("sortkv: %s", err)
	}
	log.SetLevel(ll)

	if batchSize < 1 {
		return fmt.Errorf("sortkv: batch-size must be at least 1; got %d", batchSize)
	}

	log.WithFields(log.Fields{"pid": os.Getpid(), "command": cmd.Name()}).Info("sortkv starting")
	return nil
}

func sortkvPostRun(cmd *cobra.Command, args []string) {
	log.WithField("pid", os.Getpid()).Info("sortkv done")

	if logWriter != nil {
		logWriter.Close()
		logWriter = nil
	}
}

func loadConfig() error {
	b, err := os.ReadFile(configFile)
	if os.IsNotExist(err) && !usedFlag("config-file") {
		return nil
	} else if err != nil {
		return err
	}

	err = hcl.Decode(&cfg, string(b))
	if err != nil {
		return err
	}

	for name, val := range cfg {
		flg, ok := cfgVars[name]
		if !ok {
			return fmt.Errorf("%s is not a config variable", name)
		}
		if usedFlag(flg.Name) {
			continue
		}
		err := flg.Value.Set(fmt.Sprintf("%v", val))
		if err != nil {
			return fmt.Errorf("%s: %s", name, err)
		}
	}

	return nil
}

func usedFlag(name string) bool {
	_, ok := usedFlags[name]
	return ok
}

func openBackend() (kv.Backend, error) {
	be, err := kv.NewBackend(backendType,
		kv.Config{
			DataDir: dataDir,
			Sync:    syncWrites,
			Logger:  log.StandardLogger(),
		})
	if err != nil {
		return nil, fmt.Errorf("sortkv: %s", err)
	}
	return be, nil
}

// withStore opens the configured store, calls fn, and closes the store and its backend.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, st *store.Store) error) error {
	be, err := openBackend()
	if err != nil {
		return err
	}
	defer be.Close()

	st, err := store.Open(be, storeName)
	if err != nil {
		return fmt.Errorf("sortkv: %s", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, st)
}
