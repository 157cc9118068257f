package download

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"scoreboard/config"
)

// leafletFiles are the map library files the dashboard loads from www/lib.
var leafletFiles = []string{
	"leaflet.css",
	"leaflet.js",
	"images/marker-icon.png",
	"images/marker-icon-2x.png",
	"images/marker-shadow.png",
}

// LeafletRequests builds one Request per map asset so the dashboard works
// without internet at the operating site.
func LeafletRequests(cfg config.AssetsConfig, force bool) []Request {
	base := strings.TrimRight(cfg.BaseURL, "/")
	timeout := config.Seconds(cfg.TimeoutSeconds)
	reqs := make([]Request, 0, len(leafletFiles))
	for _, f := range leafletFiles {
		reqs = append(reqs, Request{
			URL:         fmt.Sprintf("%s/leaflet@%s/dist/%s", base, cfg.LeafletVersion, f),
			Destination: filepath.Join(cfg.Dir, filepath.FromSlash(f)),
			Timeout:     timeout,
			Force:       force,
			UserAgent:   "scoreboard-fetchassets",
		})
	}
	return reqs
}

// FetchAll downloads every request in order, logging one line per file. It
// stops at the first failure since a partial library is not usable.
func FetchAll(ctx context.Context, reqs []Request) ([]Result, error) {
	results := make([]Result, 0, len(reqs))
	for _, req := range reqs {
		start := time.Now()
		res, err := Download(ctx, req)
		if err != nil {
			return results, err
		}
		log.Printf("Assets: %s %s (%s, %s)", req.Destination, res.Status, humanize.Bytes(uint64(res.Bytes)), time.Since(start).Round(time.Millisecond))
		results = append(results, res)
	}
	return results, nil
}
