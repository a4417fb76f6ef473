package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ogulcanaydogan/genroute/internal/config"
	sqlitecache "github.com/ogulcanaydogan/genroute/pkg/cache/sqlite"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the response cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete cached responses (sqlite backend)",
	RunE:  runCacheClear,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache entry count (sqlite backend)",
	RunE:  runCacheStats,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheStatsCmd)

	cacheClearCmd.Flags().Bool("expired", false, "Only delete expired entries")
}

func openSQLiteCache(cfg *config.Config) (*sqlitecache.Store, error) {
	if cfg.Cache.Backend != config.CacheSQLite {
		return nil, fmt.Errorf("cache backend is %q; this command only manages the sqlite backend", cfg.Cache.Backend)
	}
	return sqlitecache.New(cfg.Cache.SQLitePath)
}

func runCacheClear(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	expired, _ := cmd.Flags().GetBool("expired")

	store, err := openSQLiteCache(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.Clear(cmd.Context(), expired)
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d cache entries.\n", n)
	return nil
}

func runCacheStats(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openSQLiteCache(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.Stats(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("Entries: %d\n", stats.Entries)
	fmt.Printf("TTL:     %s\n", cfg.Cache.TTL)
	return nil
}
