// Command shardkv is an in-process demo driver for the sharded
// key-value store and the URL shortener built on it.
package main

import (
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"shardkv/internal/config"
	"shardkv/internal/ring"
	"shardkv/internal/shorturl"
	"shardkv/internal/store"
)

var (
	configPath string
	serversArg string
	statsKeys  int
	csvPath    string
)

func main() {
	root := &cobra.Command{
		Use:          "shardkv",
		Short:        "Sharded key-value store demos",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	root.PersistentFlags().StringVar(&serversArg, "servers", "", "comma-separated server IDs (overrides config)")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the ring's key distribution histogram",
		RunE:  runStats,
	}
	statsCmd.Flags().IntVar(&statsKeys, "keys", 10000, "number of synthetic keys to hash")

	demoCmd := &cobra.Command{
		Use:   "demo",
		Short: "Load sample keys, remove a server, show re-indexed stats",
		RunE:  runDemo,
	}

	shortenCmd := &cobra.Command{
		Use:   "shorten URL...",
		Short: "Shorten one or more URLs",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runShorten,
	}
	shortenCmd.Flags().StringVar(&csvPath, "file", "", "CSV file to load before and save after")

	expandCmd := &cobra.Command{
		Use:   "expand CODE...",
		Short: "Expand one or more short codes",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runExpand,
	}
	expandCmd.Flags().StringVar(&csvPath, "file", "", "CSV file to load")

	root.AddCommand(statsCmd, demoCmd, shortenCmd, expandCmd)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if serversArg != "" {
		servers, err := config.ParseServers(serversArg)
		if err != nil {
			return nil, err
		}
		cfg.Servers = servers
	}
	if len(cfg.Servers) == 0 {
		return nil, fmt.Errorf("no servers configured")
	}
	return cfg, nil
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	r, err := ring.New(cfg.VirtualNodes)
	if err != nil {
		return err
	}
	for _, id := range cfg.Servers {
		if err := r.AddNode(id); err != nil {
			return err
		}
	}

	printHistogram(r.DistributionStats(statsKeys), statsKeys)
	fmt.Printf("%d servers, %d virtual nodes\n", r.NodeCount(), r.VirtualNodeCount())
	return nil
}

func runDemo(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := store.New(cfg.VirtualNodes)
	if err != nil {
		return err
	}
	for _, id := range cfg.Servers {
		s.AddServer(id)
	}

	log.Printf("loading 1000 sample keys across %d servers", s.ServerCount())
	for i := 0; i < 1000; i++ {
		s.Put(fmt.Sprintf("user:%d", i), fmt.Sprintf("payload-%d", i))
	}
	fmt.Println("initial distribution:")
	printHistogram(s.Stats(), s.TotalEntries())

	if len(cfg.Servers) > 1 {
		victim := cfg.Servers[len(cfg.Servers)-1]
		log.Printf("removing server %s, re-indexing its keys", victim)
		s.RemoveServer(victim)
		fmt.Println("after removal:")
		printHistogram(s.Stats(), s.TotalEntries())
	}

	fmt.Printf("total entries: %d\n", s.TotalEntries())
	return nil
}

func runShorten(cmd *cobra.Command, args []string) error {
	sh, err := newShortener()
	if err != nil {
		return err
	}

	for _, longURL := range args {
		shortURL, err := sh.Shorten(longURL)
		if err != nil {
			return err
		}
		fmt.Printf("%s -> %s\n", longURL, shortURL)
	}

	if csvPath != "" {
		if err := sh.SaveToFile(csvPath); err != nil {
			return err
		}
		log.Printf("saved %d mappings to %s", sh.Len(), csvPath)
	}
	return nil
}

func runExpand(cmd *cobra.Command, args []string) error {
	sh, err := newShortener()
	if err != nil {
		return err
	}

	for _, code := range args {
		longURL, found := sh.Expand(code)
		if !found {
			fmt.Printf("%s -> (not found)\n", code)
			continue
		}
		owner, _ := sh.ServerForCode(code)
		fmt.Printf("%s -> %s (server %s)\n", code, longURL, owner)
	}
	return nil
}

func newShortener() (*shorturl.Shortener, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	sh, err := shorturl.New(cfg.BaseURL, cfg.VirtualNodes)
	if err != nil {
		return nil, err
	}

	// Load before adding servers: loading resets the cluster.
	if csvPath != "" {
		if _, err := os.Stat(csvPath); err == nil {
			if err := sh.LoadFromFile(csvPath); err != nil {
				return nil, err
			}
			log.Printf("loaded %d mappings from %s", sh.Len(), csvPath)
		}
	}
	for _, id := range cfg.Servers {
		sh.AddServer(id)
	}
	return sh, nil
}

func printHistogram(stats map[string]int, total int) {
	servers := make([]string, 0, len(stats))
	for id := range stats {
		servers = append(servers, id)
	}
	sort.Strings(servers)

	for _, id := range servers {
		count := stats[id]
		pct := 0.0
		if total > 0 {
			pct = float64(count) / float64(total) * 100
		}
		fmt.Printf("  %-12s %6d keys (%5.1f%%)\n", id, count, pct)
	}
}
