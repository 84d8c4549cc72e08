// Command debounced reads raw input from stdin or a GPIO line, debounces it
// and publishes settled values to MQTT.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/debounced/internal/clock"
	"github.com/sweeney/debounced/internal/config"
	"github.com/sweeney/debounced/internal/gpio"
	"github.com/sweeney/debounced/internal/mqtt"
	"github.com/sweeney/debounced/internal/status"
	"github.com/sweeney/debounced/internal/web"
)

func main() {
	cfg, err := config.Parse(os.Args[0], os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg config.Config) error {
	id := cfg.ID
	if id == "" {
		id = uuid.NewString()[:8]
	}
	clk := clock.NewReal()

	var reader gpio.Reader
	if cfg.Input == config.InputGPIO {
		r, err := gpio.NewRealReader(cfg.Chip, cfg.Pin, cfg.ActiveLow)
		if err != nil {
			return fmt.Errorf("init gpio: %w", err)
		}
		defer r.Close()
		reader = r
	}

	var publisher mqtt.Publisher
	var mqttStatus mqtt.ConnectionStatus
	if cfg.Broker != "" {
		pub, err := mqtt.NewRealPublisher(cfg.Broker, id)
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer pub.Close()
		publisher, mqttStatus = pub, pub
	}

	tracker := status.NewTracker(clk, id, statusConfig(cfg))
	p, err := newPipeline(clk, cfg, publisher, tracker)
	if err != nil {
		return err
	}

	publishSystem(publisher, mqttStatus, tracker, "STARTUP", "")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	if cfg.HTTP != "" {
		srv := web.New(cfg.HTTP, tracker)
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			return srv.Shutdown(context.Background())
		})
		log.Printf("http status server listening on %s", cfg.HTTP)
	}

	var lines <-chan string
	var tick <-chan time.Time
	if reader != nil {
		ticker := time.NewTicker(time.Duration(cfg.Poll))
		defer ticker.Stop()
		tick = ticker.C
	} else {
		lines = readLines(ctx, os.Stdin)
	}

	var heartbeat <-chan time.Time
	if cfg.Heartbeat > 0 {
		hb := time.NewTicker(time.Duration(cfg.Heartbeat))
		defer hb.Stop()
		heartbeat = hb.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	log.Printf("started: id=%s input=%s delay=%v max-wait=%v broker=%q",
		id, cfg.Input, time.Duration(cfg.Delay), time.Duration(cfg.MaxWait), cfg.Broker)

	g.Go(func() error {
		defer stop()
		return runLoop(ctx, p, reader, publisher, mqttStatus, tracker, lines, tick, heartbeat, sigCh)
	})
	return g.Wait()
}

func runLoop(ctx context.Context, p *pipeline, reader gpio.Reader, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, lines <-chan string, tick, heartbeat <-chan time.Time, sig <-chan os.Signal) error {
	shutdown := func(reason string) {
		p.Shutdown()
		publishSystem(publisher, mqttStatus, tracker, "SHUTDOWN", reason)
	}

	for {
		select {
		case <-ctx.Done():
			log.Printf("context cancelled, shutting down")
			shutdown("CANCELLED")
			return nil

		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			shutdown(signalName(s))
			return nil

		case line, ok := <-lines:
			if !ok {
				log.Printf("input closed, shutting down")
				shutdown("EOF")
				return nil
			}
			p.Observe(line)

		case <-tick:
			level, err := reader.Read()
			if err != nil {
				log.Printf("gpio read error: %v", err)
				continue
			}
			p.Observe(levelString(level))

		case <-heartbeat:
			snap := tracker.Snapshot()
			log.Printf("heartbeat: uptime=%v observed=%d saves=%d save_errors=%d",
				snap.Uptime().Truncate(time.Second), snap.Counts.Observed, snap.Counts.Saves, snap.Counts.SaveErrors)
			publishSystem(publisher, mqttStatus, tracker, "HEARTBEAT", "")
		}
	}
}

// publishSystem sends a lifecycle event carrying a full status snapshot.
// Failures are logged; the daemon keeps running.
func publishSystem(publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, event, reason string) {
	if publisher == nil {
		return
	}
	if mqttStatus != nil {
		tracker.SetMQTTConnected(mqttStatus.IsConnected())
	}

	snap := tracker.Snapshot()
	err := publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   event != "HEARTBEAT",
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	})
	if err != nil {
		log.Printf("failed to publish %s event: %v", event, err)
		return
	}
	log.Printf("published %s event", event)
}

// readLines sends every line of r and closes the channel at EOF. It stops
// sending once ctx is done.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case out <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := sc.Err(); err != nil {
			log.Printf("read input: %v", err)
		}
	}()
	return out
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}

func levelString(high bool) string {
	if high {
		return "HIGH"
	}
	return "LOW"
}

func statusConfig(cfg config.Config) status.Config {
	return status.Config{
		Input:       cfg.Input,
		Pin:         cfg.Pin,
		PollMs:      time.Duration(cfg.Poll).Milliseconds(),
		DelayMs:     time.Duration(cfg.Delay).Milliseconds(),
		MaxWaitMs:   time.Duration(cfg.MaxWait).Milliseconds(),
		Leading:     cfg.Leading,
		Trailing:    cfg.Trailing,
		MinLength:   cfg.MinLength,
		Trim:        cfg.Trim,
		SkipEmpty:   cfg.SkipEmpty,
		Pattern:     cfg.Pattern,
		HeartbeatMs: time.Duration(cfg.Heartbeat).Milliseconds(),
		Broker:      cfg.Broker,
		HTTPAddr:    cfg.HTTP,
	}
}
