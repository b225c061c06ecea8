// test-bridge is a manual verification tool for the imagesink bridge.
//
// It assembles a videotestsrc pipeline ending in an ImageSink, runs the
// display loop on the main goroutine and reports delivery statistics, so
// the handoff, coalescing and clear behavior can be observed against a real
// GStreamer runtime.
//
// Usage:
//
//	test-bridge --width 640 --height 480 --fps 30 --duration 10s
//	test-bridge --pattern ball --clear-every 3s --debug
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tinyzimmer/go-gst/gst"

	"github.com/visiona/imagesink"
	"github.com/visiona/imagesink/uiloop"
)

const version = "v0.1.0"

func main() {
	width := flag.Int("width", 640, "Requested frame width (0 = unconstrained)")
	height := flag.Int("height", 480, "Requested frame height (0 = unconstrained)")
	fps := flag.Float64("fps", 30, "Requested frame rate in Hz (0 = unconstrained)")
	pattern := flag.String("pattern", "smpte", "videotestsrc pattern: smpte, ball, snow, ...")
	duration := flag.Duration("duration", 10*time.Second, "How long to run")
	clearEvery := flag.Duration("clear-every", 0, "Clear the display periodically (0 = never)")
	statsInterval := flag.Duration("stats-interval", 2*time.Second, "Seconds between stats reports")
	debug := flag.Bool("debug", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("test-bridge %s\n", version)
		os.Exit(0)
	}

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	if err := imagesink.Available(); err != nil {
		log.Fatalf("GStreamer check failed: %v", err)
	}

	loop := uiloop.New()

	sink, err := imagesink.New(loop)
	if err != nil {
		log.Fatalf("Failed to create sink: %v", err)
	}
	sink.RequestFrameSize(*width, *height).RequestFrameRate(*fps)

	sink.OnImage(func(img *imagesink.Image) {
		if img == nil {
			slog.Info("display cleared")
			return
		}
		slog.Debug("image displayed",
			"seq", img.Seq,
			"width", img.Width,
			"height", img.Height,
			"bytes", len(img.Pix),
		)
	})

	pipeline, err := buildPipeline(sink, *pattern)
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		log.Fatalf("Failed to start pipeline: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("interrupted, shutting down")
		cancel()
	}()

	go monitorBus(ctx, pipeline, cancel)
	go reportStats(ctx, sink, *statsInterval)
	if *clearEvery > 0 {
		go periodicClear(ctx, sink, *clearEvery)
	}

	slog.Info("bridge running",
		"caps", sink.Request().Caps(),
		"pattern", *pattern,
		"duration", *duration,
	)

	// The main goroutine becomes the display thread.
	if err := loop.Run(ctx); err != nil {
		log.Fatalf("Display loop failed: %v", err)
	}

	pipeline.SetState(gst.StateNull)

	stats := sink.Stats()
	slog.Info("bridge stopped",
		"frames_received", stats.FramesReceived,
		"frames_displayed", stats.FramesDisplayed,
		"frames_displaced", stats.FramesDisplaced,
		"stale_wakeups", stats.StaleWakeups,
		"clears", stats.Clears,
	)
}

// buildPipeline assembles videotestsrc → videoconvert → videoscale →
// videorate → sink. The converters let the test source satisfy whatever
// format request the sink pushed.
func buildPipeline(sink *imagesink.ImageSink, pattern string) (*gst.Pipeline, error) {
	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	src, err := gst.NewElement("videotestsrc")
	if err != nil {
		return nil, fmt.Errorf("failed to create videotestsrc: %w", err)
	}
	src.SetProperty("is-live", true)
	if pattern != "" {
		src.SetProperty("pattern", pattern)
	}

	converter, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoconvert: %w", err)
	}
	scaler, err := gst.NewElement("videoscale")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoscale: %w", err)
	}
	rater, err := gst.NewElement("videorate")
	if err != nil {
		return nil, fmt.Errorf("failed to create videorate: %w", err)
	}

	pipeline.AddMany(src, converter, scaler, rater, sink.Element().Element)
	if err := gst.ElementLinkMany(src, converter, scaler, rater, sink.Element().Element); err != nil {
		return nil, fmt.Errorf("failed to link pipeline elements: %w", err)
	}

	return pipeline, nil
}

// monitorBus watches the pipeline bus and cancels the run on error or EOS.
func monitorBus(ctx context.Context, pipeline *gst.Pipeline, cancel context.CancelFunc) {
	bus := pipeline.GetPipelineBus()
	for {
		select {
		case <-ctx.Done():
			return
		default:
			msg := bus.TimedPop(50 * time.Millisecond)
			if msg == nil {
				continue
			}
			switch msg.Type() {
			case gst.MessageEOS:
				slog.Info("end of stream")
				cancel()
				return
			case gst.MessageError:
				gerr := msg.ParseError()
				slog.Error("pipeline error",
					"error", gerr.Error(),
					"debug", gerr.DebugString(),
				)
				cancel()
				return
			}
		}
	}
}

func reportStats(ctx context.Context, sink *imagesink.ImageSink, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := sink.Stats()
			slog.Info("stats",
				"received", stats.FramesReceived,
				"displayed", stats.FramesDisplayed,
				"displaced", stats.FramesDisplaced,
				"stale_wakeups", stats.StaleWakeups,
			)
		}
	}
}

func periodicClear(ctx context.Context, sink *imagesink.ImageSink, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sink.Clear()
		}
	}
}
