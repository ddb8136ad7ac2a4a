// Command zone-monitor tails a CN616A controller log, reconstructs
// per-zone state, and serves it over HTTP and optionally MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sweeney/zone-monitor/internal/ingest"
	"github.com/sweeney/zone-monitor/internal/logfile"
	"github.com/sweeney/zone-monitor/internal/mqtt"
	"github.com/sweeney/zone-monitor/internal/notify"
	"github.com/sweeney/zone-monitor/internal/parse"
	"github.com/sweeney/zone-monitor/internal/status"
	"github.com/sweeney/zone-monitor/internal/web"
	"github.com/sweeney/zone-monitor/internal/zones"
)

func main() {
	logPath := flag.String("log", "", "log file to open at startup (default: newest log in --log-dir)")
	logDir := flag.String("log-dir", "./logs", "directory searched for controller logs")
	poll := flag.Duration("poll", 800*time.Millisecond, "log polling interval")
	zoneList := flag.String("zones", "1,2,3,4,5,6", "comma-separated default zone ids")
	tzName := flag.String("tz", "", "IANA timezone for log timestamps (default: system local)")
	broker := flag.String("broker", "", "MQTT broker address (empty to disable)")
	httpAddr := flag.String("http", ":8617", "HTTP status address (empty to disable)")
	printState := flag.Bool("print-state", false, "Load the log, print per-zone state, and exit")

	flag.Parse()

	cfg := config{
		LogPath:    *logPath,
		LogDir:     *logDir,
		Poll:       *poll,
		ZoneList:   *zoneList,
		TZ:         *tzName,
		Broker:     *broker,
		HTTPAddr:   *httpAddr,
		PrintState: *printState,
	}
	if err := run(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

type config struct {
	LogPath    string
	LogDir     string
	Poll       time.Duration
	ZoneList   string
	TZ         string
	Broker     string
	HTTPAddr   string
	PrintState bool
}

// request is a mutation handed to the poll loop by another goroutine.
// The loop applies it between ticks and answers on reply, so every
// consumer sees either the old state or the fully applied new one.
type request struct {
	kind  reqKind
	zone  int
	path  string
	reply chan error
}

type reqKind int

const (
	reqClearTrace reqKind = iota
	reqLoadLog
)

func run(cfg config) error {
	loc := time.Local
	if cfg.TZ != "" {
		l, err := time.LoadLocation(cfg.TZ)
		if err != nil {
			return fmt.Errorf("load timezone %q: %w", cfg.TZ, err)
		}
		loc = l
	}

	defaultZones, err := parseZoneList(cfg.ZoneList)
	if err != nil {
		return fmt.Errorf("parse --zones: %w", err)
	}

	store := zones.New()
	views := web.NewViews(store)
	store.OnCreate(views.Ensure)
	store.Seed(defaultZones...)

	tracker := status.NewTracker(time.Now(), status.Config{
		PollMs:       cfg.Poll.Milliseconds(),
		LogDir:       cfg.LogDir,
		DefaultZones: defaultZones,
		Timezone:     cfg.TZ,
		Broker:       cfg.Broker,
		HTTPAddr:     cfg.HTTPAddr,
	})

	parser := parse.New(loc)
	ing := ingest.New(store, parser, func(msg string) {
		log.Printf("%s", msg)
		tracker.SetMessage(msg)
	})
	defer ing.Close()

	// Print-state mode needs no MQTT or HTTP surface.
	if cfg.PrintState {
		path, err := resolveLogPath(cfg)
		if err != nil {
			return err
		}
		if _, err := ing.LoadFile(path); err != nil {
			return fmt.Errorf("load log: %w", err)
		}
		notify.NotifyAll(store.Zones(), views.Lookup)
		printZoneState(os.Stdout, store)
		return nil
	}

	// Initialize MQTT before the first load so the LOADED event is
	// not missed.
	var publisher mqtt.Publisher
	var mqttStatus mqtt.ConnectionStatus
	if cfg.Broker != "" {
		pub, err := mqtt.NewRealPublisher(cfg.Broker)
		if err != nil {
			return fmt.Errorf("connect mqtt: %w", err)
		}
		defer pub.Close()
		publisher = pub
		mqttStatus = pub

		tracker.SetMQTTConnected(pub.IsConnected())
		snap := tracker.Snapshot()
		startupEvent := mqtt.SystemEvent{
			Timestamp:  snap.Now,
			Event:      "STARTUP",
			Retained:   true,
			RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
		}
		if err := publisher.PublishSystem(startupEvent); err != nil {
			log.Printf("failed to publish startup event: %v", err)
		} else {
			log.Printf("published startup event")
		}
	}

	// A missing log at startup is a status condition, not a failure:
	// tailing begins once a log is loaded through POST /load.
	if path, err := resolveLogPath(cfg); err != nil {
		log.Printf("no log at startup: %v", err)
		tracker.SetMessage("No log loaded: " + err.Error())
	} else if err := applyLoad(ing, store, views, tracker, publisher, path, time.Now); err != nil {
		log.Printf("initial load failed: %v", err)
	}

	reqs := make(chan request)
	ops := web.Ops{
		ClearTrace: func(zone int) error {
			req := request{kind: reqClearTrace, zone: zone, reply: make(chan error, 1)}
			reqs <- req
			return <-req.reply
		},
		LoadLog: func(path string) error {
			req := request{kind: reqLoadLog, path: path, reply: make(chan error, 1)}
			reqs <- req
			return <-req.reply
		},
	}

	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker, views, ops)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTPAddr)
	}

	log.Printf("started: poll=%v zones=%v log-dir=%s broker=%s", cfg.Poll, defaultZones, cfg.LogDir, cfg.Broker)

	ticker := time.NewTicker(cfg.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(ing, store, views, tracker, publisher, mqttStatus, time.Now, ticker.C, sigCh, reqs)
}

func runLoop(ing *ingest.Ingestor, store *zones.Store, views *web.Views, tracker *status.Tracker, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal, reqs <-chan request) error {
	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			if publisher != nil {
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
				snap := tracker.Snapshot()
				event := mqtt.SystemEvent{
					Timestamp:  now(),
					Event:      "SHUTDOWN",
					Reason:     signalName,
					Retained:   true,
					RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", signalName),
				}
				if err := publisher.PublishSystem(event); err != nil {
					log.Printf("failed to publish shutdown event: %v", err)
				} else {
					log.Printf("published shutdown event")
				}
			}
			return nil

		case <-tick:
			touched, err := ing.Tick()
			if err != nil {
				tracker.TickError()
			} else {
				tracker.TickOK()
			}
			if len(touched) > 0 {
				notify.Notify(touched, views.Lookup)
				tracker.SetZoneCount(store.Len())
				publishZoneUpdates(publisher, store, touched, now())
			}
			if mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}

		case req := <-reqs:
			switch req.kind {
			case reqClearTrace:
				if !store.ClearTrace(req.zone) {
					req.reply <- fmt.Errorf("unknown zone %d", req.zone)
					break
				}
				if v := views.Lookup(req.zone); v != nil {
					v.Refresh()
				}
				log.Printf("cleared trace for zone %d", req.zone)
				req.reply <- nil
			case reqLoadLog:
				req.reply <- applyLoad(ing, store, views, tracker, publisher, req.path, now)
			}
		}
	}
}

// applyLoad runs a full load and fans the result out to the tracker,
// the views, and the MQTT bridge. Runs on the poll loop goroutine.
func applyLoad(ing *ingest.Ingestor, store *zones.Store, views *web.Views, tracker *status.Tracker, publisher mqtt.Publisher, path string, now func() time.Time) error {
	stats, err := ing.LoadFile(path)
	if err != nil {
		return err
	}
	tracker.SetLog(path, stats.Lines, stats.Telemetry)
	tracker.SetZoneCount(store.Len())
	notify.NotifyAll(store.Zones(), views.Lookup)

	if publisher != nil {
		event := mqtt.SystemEvent{
			Timestamp: now(),
			Event:     "LOADED",
			Retained:  true,
			Load: &mqtt.LoadInfo{
				Path:      path,
				Lines:     stats.Lines,
				Telemetry: stats.Telemetry,
				Zones:     store.Len(),
			},
		}
		if err := publisher.PublishSystem(event); err != nil {
			log.Printf("failed to publish load event: %v", err)
		}
	}
	return nil
}

// publishZoneUpdates sends the current snapshot of every touched zone
// to the broker, in ascending zone order.
func publishZoneUpdates(publisher mqtt.Publisher, store *zones.Store, touched map[int]struct{}, ts time.Time) {
	if publisher == nil {
		return
	}
	ids := make([]int, 0, len(touched))
	for z := range touched {
		ids = append(ids, z)
	}
	sort.Ints(ids)
	for _, z := range ids {
		snap, ok := store.Snapshot(z)
		if !ok {
			// Guessed zone from a truncated line that never produced
			// state; nothing to publish yet.
			continue
		}
		update := mqtt.ZoneUpdate{
			Zone:      z,
			Timestamp: ts,
			Snapshot:  snap,
			Points:    store.SeriesLen(z),
		}
		if err := publisher.PublishZone(update); err != nil {
			log.Printf("publish zone %d: %v", z, err)
		}
	}
}

// resolveLogPath picks the startup log: the explicit --log path, or
// the newest matching file in --log-dir.
func resolveLogPath(cfg config) (string, error) {
	if cfg.LogPath != "" {
		return cfg.LogPath, nil
	}
	path, err := logfile.FindMostRecent(cfg.LogDir)
	if err != nil {
		if errors.Is(err, logfile.ErrNoLogFiles) {
			return "", err
		}
		return "", fmt.Errorf("find log in %s: %w", cfg.LogDir, err)
	}
	return path, nil
}

// parseZoneList parses "1,2,3" into zone ids.
func parseZoneList(s string) ([]int, error) {
	var zs []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		z, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("bad zone id %q", part)
		}
		zs = append(zs, z)
	}
	if len(zs) == 0 {
		return nil, fmt.Errorf("no zone ids in %q", s)
	}
	return zs, nil
}

func printZoneState(w io.Writer, store *zones.Store) {
	for _, z := range store.Zones() {
		snap, ok := store.Snapshot(z)
		if !ok {
			continue
		}
		fmt.Fprintf(w, "zone %d: pv=%s sp=%s out=%s method=%s mode=%s autotune=%s at_sp=%s points=%d\n",
			z, fmtReading(snap.PV), fmtReading(snap.SPAbs), fmtReading(snap.OutputPct),
			snap.Method, snap.Mode, yesNo(snap.Autotune), fmtReading(snap.AutotuneSP),
			store.SeriesLen(z))
	}
}

func fmtReading(v *float64) string {
	if v == nil {
		return parse.Placeholder
	}
	return strconv.FormatFloat(*v, 'f', 1, 64)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
