// Command fetchassets downloads the Leaflet files the web dashboard serves
// from its lib directory. Files that have not changed upstream are left alone.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"scoreboard/config"
	"scoreboard/download"
)

func main() {
	configPath := flag.String("config", "data/config.yaml", "path to the scoreboard config")
	force := flag.Bool("force", false, "ignore cached validators and re-download every file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	reqs := download.LeafletRequests(cfg.Assets, *force)
	fmt.Printf("fetching %d asset(s) for leaflet %s into %s\n", len(reqs), cfg.Assets.LeafletVersion, cfg.Assets.Dir)
	results, err := download.FetchAll(ctx, reqs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "download failed after %d file(s): %v\n", len(results), err)
		os.Exit(1)
	}
	updated := 0
	for _, res := range results {
		if res.Status == download.StatusUpdated {
			updated++
		}
	}
	fmt.Printf("done: %d updated, %d unchanged\n", updated, len(results)-updated)
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return config.Default(), nil
	}
	return cfg, err
}
