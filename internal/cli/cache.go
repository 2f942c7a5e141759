package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/blockworld/pkg/cache"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the result cache",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear all cached transactions, packings and markup",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(c.ConfigPath)
			if err != nil {
				return err
			}
			cc, err := cfg.cacheConfig(false)
			if err != nil {
				return fmt.Errorf("get cache dir: %w", err)
			}

			switch cc.Backend {
			case "", cache.BackendFile:
				if _, err := os.Stat(cc.Dir); os.IsNotExist(err) {
					printInfo("Cache is empty")
					return nil
				}
				fc, err := cache.NewFileCache(cc.Dir)
				if err != nil {
					return err
				}
				count, err := fc.Clear(cmd.Context())
				if err != nil {
					return err
				}
				printSuccess("Cleared %d cached entries", count)
				printDetail("Directory: %s", cc.Dir)
			case cache.BackendBadger:
				if err := os.RemoveAll(cc.Dir); err != nil {
					return err
				}
				printSuccess("Removed badger store")
				printDetail("Directory: %s", cc.Dir)
			default:
				printWarning("The %s backend cannot be cleared from here; entries expire on their own", cc.Backend)
			}
			return nil
		},
	}
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(c.ConfigPath)
			if err != nil {
				return err
			}
			cc, err := cfg.cacheConfig(false)
			if err != nil {
				return fmt.Errorf("get cache dir: %w", err)
			}
			if cc.Dir == "" {
				printInfo("The %s backend has no directory", cc.Backend)
				return nil
			}
			fmt.Println(cc.Dir)
			return nil
		},
	}
}
