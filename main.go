// Program scoreboard polls an N3FJP logger for contacts, keeps running Field
// Day totals, and serves them to browser dashboards, an optional console
// scoreboard, Prometheus, and an optional MQTT broker.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"scoreboard/aggregate"
	"scoreboard/config"
	"scoreboard/cty"
	"scoreboard/metrics"
	"scoreboard/mqttpub"
	"scoreboard/n3fjp"
	"scoreboard/poller"
	"scoreboard/recorder"
	"scoreboard/stats"
	"scoreboard/web"
)

const (
	defaultConfigPath = "data/config.yaml"
	envConfigPath     = "SCOREBOARD_CONFIG"

	dashboardRefresh = time.Second
	recorderCloseMax = 5 * time.Second
)

// Version will be set at build time
var Version = "dev"

// Purpose: Report whether stdout is a TTY for UI gating.
// Key aspects: Uses term.IsTerminal on stdout fd.
// Upstream: main UI selection.
// Downstream: term.IsTerminal.
func isStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Purpose: Load configuration from the env override or the default path.
// Key aspects: Missing files fall through to the next candidate; when none
// exists the built-in defaults are used so a bare binary still runs.
// Upstream: main startup.
// Downstream: config.Load.
func loadScoreboardConfig() (*config.Config, string, error) {
	candidates := make([]string, 0, 2)
	if envPath := strings.TrimSpace(os.Getenv(envConfigPath)); envPath != "" {
		candidates = append(candidates, envPath)
	}
	candidates = append(candidates, defaultConfigPath)

	for _, path := range candidates {
		cfg, err := config.Load(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, path, err
		}
		return cfg, cfg.LoadedFrom, nil
	}
	return config.Default(), "built-in defaults (tried " + strings.Join(candidates, ", ") + ")", nil
}

func main() {
	if err := run(); err != nil {
		log.Printf("Scoreboard exited with error: %v", err)
		os.Exit(1)
	}
}

// Purpose: Wire every component and block until a signal or a fatal error.
// Key aspects: The poller runs outside the errgroup so Stop can abandon a
// stuck fetch after the grace period; everything else ends with the group.
// Upstream: main.
// Downstream: poller, web, mqttpub, recorder, stats display.
func run() error {
	cfg, configSource, err := loadScoreboardConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log.SetFlags(0)
	fanout, logErr := setupLogging(cfg.Logging, os.Stdout)
	log.SetOutput(fanout)
	defer fanout.Close()
	if logErr != nil {
		log.Printf("Logging: file logging disabled: %v", logErr)
	}

	var ui *dashboard
	switch cfg.UI.Mode {
	case "tview":
		if !isStdoutTTY() {
			log.Printf("UI disabled (tview requires an interactive console)")
			break
		}
		ui = newDashboard(fmt.Sprintf("%s %s", cfg.Event.Callsign, cfg.Event.EventName))
		ui.WaitReady()
		defer ui.Stop()
		fanout.SetConsole(ui.SystemWriter(), true)
	default:
		log.Printf("UI disabled (mode=%s)", cfg.UI.Mode)
	}

	log.Printf("Loaded configuration from %s", configSource)
	if ui == nil {
		cfg.Print()
	}

	sessionID := uuid.NewString()
	log.Printf("Scoreboard v%s starting (session %s)", Version, sessionID)

	agg := aggregate.New(aggregate.Options{
		Year:      cfg.Event.Year,
		Locator:   loadLocator(cfg.CTY),
		SessionID: sessionID,
	})
	tracker := stats.NewTracker()
	collector := metrics.NewCollector(agg)
	observers := []poller.Observer{tracker, collector}

	var rec *recorder.Recorder
	if cfg.Recorder.Enabled {
		rec, err = recorder.Open(recorder.Options{
			Path:      cfg.Recorder.File,
			QueueSize: cfg.Recorder.QueueSize,
			OnDrop:    collector.RecorderDropped,
		})
		if err != nil {
			log.Printf("Recorder: disabled: %v", err)
			rec = nil
		} else {
			observers = append(observers, rec)
			log.Printf("Recorder: journaling contacts to %s", cfg.Recorder.File)
		}
	}

	client := n3fjp.NewClient(cfg.N3FJP.Host, cfg.N3FJP.Port, cfg.N3FJP.Transport, config.Seconds(cfg.N3FJP.DialTimeoutSeconds))
	settings := poller.SettingsFromConfig(cfg.N3FJP, sessionID)
	pl := poller.New(client, agg, settings, observers...)

	scoring := cfg.Scoring
	snapshot := func() aggregate.Snapshot { return agg.Snapshot(&scoring) }

	webSrv := web.New(web.Options{
		Host:        cfg.Web.Host,
		Port:        cfg.Web.Port,
		WWWDir:      cfg.Web.WWWDir,
		Event:       cfg.Event,
		Scoring:     &scoring,
		Aggregator:  agg,
		Diagnostics: pl,
		Metrics:     collector.Handler(),
	})

	fanout.SetRotateHook(func(prevDay time.Time, _, newPath string) {
		t := agg.Totals()
		log.Printf("Logging: rotated %s -> %s (contacts=%d points=%d sections=%d)",
			prevDay.Format(logFileDateLayout), newPath, t.Contacts, t.Points, t.Sections)
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	pl.Start(gctx)
	g.Go(func() error {
		<-gctx.Done()
		// Stop logs when a fetch outlives the grace period.
		pl.Stop(settings.StopGrace)
		return nil
	})
	g.Go(func() error {
		if err := webSrv.Run(gctx); err != nil {
			return fmt.Errorf("web: %w", err)
		}
		return nil
	})
	if cfg.MQTT.Enabled {
		pub := mqttpub.New(cfg.MQTT, snapshot)
		if err := pub.Connect(sessionID); err != nil {
			log.Printf("MQTT: disabled: %v", err)
		} else {
			g.Go(func() error { return pub.Run(gctx) })
		}
	}
	g.Go(func() error {
		runStatsDisplay(gctx, time.Duration(cfg.UI.StatsIntervalSeconds)*time.Second, tracker, snapshot, ui, fanout)
		return nil
	})

	log.Printf("Polling N3FJP at %s (%s) every %.1fs; seed=%d tail=%d. Press Ctrl+C to stop.",
		client.Addr(), client.Transport(), cfg.N3FJP.RefreshSeconds, cfg.N3FJP.SeedCount, cfg.N3FJP.TailCount)

	runErr := g.Wait()
	if ctx.Err() != nil {
		log.Println("Shutting down gracefully...")
	}

	if rec != nil {
		if err := rec.Close(recorderCloseMax); err != nil {
			log.Printf("Recorder: close: %v", err)
		}
		log.Printf("Recorder: wrote %s contact(s), dropped %s",
			humanize.Comma(int64(rec.Written())), humanize.Comma(int64(rec.Dropped())))
	}
	t := agg.Totals()
	log.Printf("Scoreboard stopped: %d contacts, %d points after %s",
		t.Contacts, t.Points, tracker.GetUptime().Round(time.Second))
	return runErr
}

// loadLocator returns the CTY database when enrichment is on. A load failure
// only disables enrichment. The nil return is an untyped nil so the
// aggregator sees "no locator" rather than a nil *cty.Database.
func loadLocator(cfg config.CTYConfig) aggregate.Locator {
	if !cfg.Enabled {
		return nil
	}
	db, err := cty.Load(cfg.File)
	if err != nil {
		log.Printf("CTY: enrichment disabled: %v", err)
		return nil
	}
	log.Printf("CTY: loaded %s prefixes from %s", humanize.Comma(int64(db.Len())), cfg.File)
	return db
}

// statsSink receives the periodic console output. *dashboard implements it;
// a nil sink means headless.
type statsSink interface {
	Update(snap aggregate.Snapshot, statsLines []string)
}

// fileLineWriter is the part of logFanout the stats loop needs.
type fileLineWriter interface {
	WriteFileOnly(line string)
}

// Purpose: Periodically emit stats to the dashboard or to the log.
// Key aspects: The dashboard redraws every second and only the stats interval
// lines reach the log file; headless mode logs everything each interval.
// Upstream: run errgroup.
// Downstream: stats.Tracker.SnapshotLines, formatScoreLines, dashboard.Update.
func runStatsDisplay(ctx context.Context, interval time.Duration, tracker *stats.Tracker, snapshot func() aggregate.Snapshot, ui *dashboard, file fileLineWriter) {
	var sink statsSink
	if ui != nil {
		sink = ui
	}
	statsLoop(ctx, interval, dashboardRefresh, tracker, snapshot, sink, file)
}

func statsLoop(ctx context.Context, interval, redraw time.Duration, tracker *stats.Tracker, snapshot func() aggregate.Snapshot, sink statsSink, file fileLineWriter) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	statsTicker := time.NewTicker(interval)
	defer statsTicker.Stop()

	var redrawC <-chan time.Time
	if sink != nil {
		redrawTicker := time.NewTicker(redraw)
		defer redrawTicker.Stop()
		redrawC = redrawTicker.C
		sink.Update(snapshot(), tracker.SnapshotLines())
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-redrawC:
			sink.Update(snapshot(), tracker.SnapshotLines())
		case <-statsTicker.C:
			lines := append(tracker.SnapshotLines(), formatScoreLines(snapshot())...)
			if sink != nil {
				for _, line := range lines {
					file.WriteFileOnly(line)
				}
				continue
			}
			for _, line := range lines {
				log.Print(line)
			}
			log.Print("")
		}
	}
}
