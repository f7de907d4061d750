package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/sweeney/sandglass/internal/config"
	"github.com/sweeney/sandglass/internal/cycle"
	"github.com/sweeney/sandglass/internal/display"
	"github.com/sweeney/sandglass/internal/gpio"
	"github.com/sweeney/sandglass/internal/mqtt"
	"github.com/sweeney/sandglass/internal/panel"
	"github.com/sweeney/sandglass/internal/status"
	"github.com/sweeney/sandglass/internal/web"
	"github.com/sweeney/sandglass/internal/wire"
)

// eventBuffer is the subscription buffer of each timer observer. One minute
// of ticks fits before events are dropped.
const eventBuffer = 64

// idlePoll drives heartbeats when the panel is disabled.
const idlePoll = time.Second

func run(cfg config.Config, logger *log.Logger) error {
	cal, err := cfg.BuildCalendar()
	if err != nil {
		return err
	}
	locale, err := cfg.Locale()
	if err != nil {
		return err
	}
	enc := wire.NewEncoder(locale, cal.Location())

	timer := cycle.New(cal, cfg.CycleDuration(), cycle.Options{Logger: logger.WithPrefix("timer")})
	defer timer.Close()
	if err := timer.Init(0); err != nil {
		return fmt.Errorf("init timer: %w", err)
	}
	events, cancelEvents := timer.Subscribe(eventBuffer)
	defer cancelEvents()

	tracker := status.NewTracker(time.Now(), statusConfig(cfg, cal.Location().String()))
	tracker.Observe(cycle.Event{Type: cycle.EventSnapshot, Snapshot: timer.Snapshot()})

	var publisher mqtt.Publisher
	var mqttStatus mqtt.ConnectionStatus
	if cfg.MQTT.Broker != "" {
		p, err := mqtt.NewRealPublisher(mqtt.Options{
			Broker:             cfg.MQTT.Broker,
			ClientID:           cfg.MQTT.ClientID,
			TopicPrefix:        cfg.MQTT.TopicPrefix,
			Encoder:            enc,
			Logger:             logger.WithPrefix("mqtt"),
			OnCommand:          timer.Apply,
			OnConnectionChange: tracker.SetMQTTConnected,
		})
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer p.Close()
		publisher, mqttStatus = p, p
		tracker.SetMQTTConnected(p.IsConnected())
		logger.Info("mqtt enabled", "broker", cfg.MQTT.Broker, "topics", p.Topics().Events)
	}

	var reader gpio.Reader
	poll := idlePoll
	if cfg.GPIO.Enabled {
		r, err := gpio.NewRealReader(cfg.GPIO.Chip, cfg.GPIOPins())
		if err != nil {
			return fmt.Errorf("init gpio: %w", err)
		}
		defer r.Close()
		reader = r
		poll = cfg.GPIO.Poll
	}

	// Publish startup event with full status snapshot
	if publisher != nil {
		snap := tracker.Snapshot()
		startup := mqtt.SystemEvent{
			Timestamp:  snap.Now,
			Event:      "STARTUP",
			Retained:   true,
			RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
		}
		if err := publisher.PublishSystem(startup); err != nil {
			logger.Error("failed to publish startup event", "err", err)
		} else {
			logger.Info("published startup event")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := display.NewHub(timer, enc, logger.WithPrefix("display"))
	hub.OnClientCount(tracker.SetDisplayClients)
	hubEvents, cancelHubEvents := timer.Subscribe(eventBuffer)
	defer cancelHubEvents()
	go hub.Run(ctx, hubEvents)
	defer hub.Close()

	srv := web.New(cfg.Addr(), tracker, web.Options{StaticDir: cfg.App.StaticDir, Display: hub})
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
		}
	}()
	defer shutdownServer(srv, 5*time.Second, logger)

	logger.Info("started",
		"addr", cfg.Addr(),
		"cycle", cfg.CycleDuration(),
		"intervals", strings.Join(tracker.Snapshot().Config.Intervals, ","),
		"move", timer.Snapshot().DateMove,
		"gpio", cfg.GPIO.Enabled,
	)

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(loop{
		controller: timer,
		events:     events,
		publisher:  publisher,
		mqttStatus: mqttStatus,
		tracker:    tracker,
		reader:     reader,
		debounce:   cfg.GPIO.Debounce,
		heartbeat:  cfg.MQTT.Heartbeat,
		logger:     logger,
		now:        time.Now,
		tick:       ticker.C,
		sig:        sigCh,
	})
}

// shutdowner is the part of the HTTP server stopped on exit.
type shutdowner interface {
	Shutdown(ctx context.Context) error
}

func shutdownServer(srv shutdowner, timeout time.Duration, logger *log.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
}

func statusConfig(cfg config.Config, timezone string) status.Config {
	intervals := make([]string, 0, len(cfg.Journee))
	for _, iv := range cfg.Intervals() {
		intervals = append(intervals, iv.String())
	}
	holidays := cfg.Calendar.Holidays
	if holidays == "" {
		holidays = config.HolidaysFrench
	}
	return status.Config{
		CycleSeconds: int64(cfg.CycleDuration() / time.Second),
		Intervals:    intervals,
		AllDaysValid: cfg.AllDaysValid,
		Timezone:     timezone,
		Holidays:     holidays,
		HTTPPort:     cfg.App.Port,
		StaticDir:    cfg.App.StaticDir,
		Broker:       cfg.MQTT.Broker,
		TopicPrefix:  cfg.MQTT.TopicPrefix,
		HeartbeatMs:  cfg.MQTT.Heartbeat.Milliseconds(),
		GPIO:         cfg.GPIO.Enabled,
	}
}

// controller is the part of the timer the loop drives.
type controller interface {
	Apply(cmd cycle.Command)
	Snapshot() cycle.Snapshot
}

// loop holds the dependencies of runLoop. Publisher, mqttStatus and reader
// may be nil when the matching feature is disabled.
type loop struct {
	controller controller
	events     <-chan cycle.Event
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	reader     gpio.Reader
	debounce   time.Duration
	heartbeat  time.Duration
	logger     *log.Logger
	now        func() time.Time
	tick       <-chan time.Time
	sig        <-chan os.Signal
}

func runLoop(l loop) error {
	logger := l.logger
	if logger == nil {
		logger = log.Default()
	}
	detector := panel.NewDetector(l.debounce)
	hb := heartbeat{interval: l.heartbeat, last: l.now()}
	var filter mqtt.ChangeFilter

	refreshMQTT := func() {
		if l.mqttStatus != nil {
			l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
		}
	}

	for {
		select {
		case s := <-l.sig:
			logger.Info("shutting down", "signal", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			if l.publisher == nil {
				return nil
			}
			refreshMQTT()
			snap := l.tracker.Snapshot()
			event := mqtt.SystemEvent{
				Timestamp:  l.now(),
				Event:      "SHUTDOWN",
				Reason:     signalName,
				Retained:   true,
				RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", signalName),
			}
			if err := l.publisher.PublishSystem(event); err != nil {
				logger.Error("failed to publish shutdown event", "err", err)
			} else {
				logger.Info("published shutdown event")
			}
			return nil

		case ev, ok := <-l.events:
			if !ok {
				return errors.New("timer closed")
			}
			l.tracker.Observe(ev)
			if ev.Type == cycle.EventMovement {
				logger.Info("movement", "date", ev.Snapshot.DateMove, "next", ev.Snapshot.DateMoveNext)
			}
			if l.publisher == nil || !filter.Pass(ev) {
				continue
			}
			if err := l.publisher.Publish(ev); err != nil {
				// Don't crash on publish failure
				logger.Warn("publish error", "err", err)
			}

		case <-l.tick:
			t := l.now()
			if l.reader != nil {
				pollPanel(l, detector, t, logger)
			}

			if hb.due(t) && l.publisher != nil {
				refreshMQTT()
				snap := l.tracker.Snapshot()
				logger.Debug("heartbeat", "uptime", snap.Uptime(), "movements", snap.Movements, "state", snap.Timer.State)
				event := mqtt.SystemEvent{
					Timestamp:  t,
					Event:      "HEARTBEAT",
					RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
				}
				if err := l.publisher.PublishSystem(event); err != nil {
					logger.Warn("heartbeat publish error", "err", err)
				}
			}
		}
	}
}

func pollPanel(l loop, detector *panel.Detector, t time.Time, logger *log.Logger) {
	b, err := l.reader.Read()
	if err != nil {
		logger.Warn("gpio read error", "err", err)
		return
	}
	presses := detector.Process(panel.Input{Start: b.Start, Pause: b.Pause, Stop: b.Stop, Time: t})
	for _, p := range presses {
		logger.Info("button", "button", p.Button, "state", l.controller.Snapshot().State)
		l.controller.Apply(p.Command)
	}
}

// heartbeat decides when the next HEARTBEAT system event is due.
type heartbeat struct {
	interval time.Duration
	last     time.Time
}

func (h *heartbeat) due(now time.Time) bool {
	if h.interval <= 0 || now.Sub(h.last) < h.interval {
		return false
	}
	h.last = now
	return true
}
