// Command pagecli is a small demo binary that exercises the buffer
// pool's public surface — new/fetch/unpin/flush/delete — against a
// real on-disk file, so there is a runnable surface to drive the core
// from outside the test suite (SPEC_FULL.md §9). It is the only part
// of this module that reads configuration or owns a CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"storagecore/bufferpool"
	"storagecore/config"
	"storagecore/diskio"
	"storagecore/logmgr"
	"storagecore/page"
)

var (
	envFile string
	cfg     config.Config
	logger  *zap.Logger
	pool    *bufferpool.Manager
	disk    *diskio.Manager
	wal     *logmgr.Manager
)

func main() {
	root := &cobra.Command{
		Use:   "pagecli",
		Short: "Exercise the storagecore buffer pool against a real backing file",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(envFile)
			if err != nil {
				return err
			}

			if cfg.LogLevel == "debug" {
				logger, err = zap.NewDevelopment()
			} else {
				logger, err = zap.NewProduction()
			}
			if err != nil {
				return fmt.Errorf("pagecli: build logger: %w", err)
			}

			if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
				return fmt.Errorf("pagecli: create data dir: %w", err)
			}

			disk, err = diskio.New(afero.NewOsFs(), cfg.DataDir+"/pagecli.db")
			if err != nil {
				return err
			}
			pool = bufferpool.New(cfg.PoolSize, cfg.ReplacerK, disk, logger)

			wal, err = logmgr.Open(afero.NewOsFs(), cfg.DataDir+"/wal", logger.Sugar())
			if err != nil {
				return fmt.Errorf("pagecli: open wal: %w", err)
			}
			pool.SetLogManager(wal)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			pool.FlushAllPages()
			if err := disk.Close(); err != nil {
				return err
			}
			if err := wal.Close(); err != nil {
				return err
			}
			return logger.Sync()
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional .env overlay for configuration")

	root.AddCommand(newCmd(), fetchCmd(), unpinCmd(), flushCmd(), deleteCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new",
		Short: "Allocate a fresh page and print its id",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _, ok := pool.NewPage(bufferpool.AccessUnknown)
			if !ok {
				return fmt.Errorf("pagecli: pool exhausted, no frame available")
			}
			fmt.Println(uint32(id))
			return nil
		},
	}
}

func fetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch [page-id]",
		Short: "Fetch a page, printing its first 32 bytes as hex, then unpin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePageID(args[0])
			if err != nil {
				return err
			}
			frame, ok := pool.FetchPage(id, bufferpool.AccessLookup)
			if !ok {
				return fmt.Errorf("pagecli: page %d not available", id)
			}
			defer pool.UnpinPage(id, false, bufferpool.AccessLookup)

			n := 32
			if n > len(frame.Data) {
				n = len(frame.Data)
			}
			fmt.Printf("%x\n", frame.Data[:n])
			return nil
		},
	}
}

func unpinCmd() *cobra.Command {
	var dirty bool
	cmd := &cobra.Command{
		Use:   "unpin [page-id]",
		Short: "Unpin a page, optionally marking it dirty",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePageID(args[0])
			if err != nil {
				return err
			}
			if !pool.UnpinPage(id, dirty, bufferpool.AccessUnknown) {
				return fmt.Errorf("pagecli: unpin of page %d failed", id)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dirty, "dirty", false, "mark the page dirty")
	return cmd
}

func flushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flush [page-id]",
		Short: "Flush a single resident page to disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePageID(args[0])
			if err != nil {
				return err
			}
			if !pool.FlushPage(id) {
				return fmt.Errorf("pagecli: page %d is not resident", id)
			}
			return nil
		},
	}
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [page-id]",
		Short: "Delete a page, freeing its frame and identifier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePageID(args[0])
			if err != nil {
				return err
			}
			if !pool.DeletePage(id) {
				return fmt.Errorf("pagecli: page %d could not be deleted (still pinned, or its writeback was refused)", id)
			}
			return nil
		},
	}
}

func parsePageID(s string) (page.ID, error) {
	var n uint32
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return page.InvalidID, fmt.Errorf("pagecli: invalid page id %q: %w", s, err)
	}
	return page.ID(n), nil
}
