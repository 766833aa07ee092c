// Package feed drives a camera session with generated test frames.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/loopcam/internal/events"
	"github.com/smazurov/loopcam/internal/metrics"
	"github.com/smazurov/loopcam/internal/pattern"
	"github.com/smazurov/loopcam/internal/systemd"
	"github.com/smazurov/loopcam/pkg/camera"
)

// Settings selects what to feed and where. The zero value is not usable;
// cmd fills it from flags, config file, and environment.
type Settings struct {
	Width   int
	Height  int
	FPS     float64
	Format  string
	Devices []string
	Pattern string
}

// Equal reports whether two settings would produce the same session.
func (s Settings) Equal(o Settings) bool {
	return s.Width == o.Width && s.Height == o.Height && s.FPS == o.FPS &&
		s.Format == o.Format && s.Pattern == o.Pattern &&
		slices.Equal(s.Devices, o.Devices)
}

// session is the part of camera.Camera the feed loop drives.
type session interface {
	Send(frame []byte) error
	Close() error
	Paths() []string
}

// Feeder paces generated frames into a camera session and restarts the
// session when settings change.
type Feeder struct {
	bus    *events.Bus
	log    *slog.Logger
	reload chan Settings
	frame  atomic.Uint64

	mu    sync.Mutex
	paths []string

	// open replaces the camera opener in tests.
	open func(camera.Config) (session, error)
}

// New creates a feeder publishing session events on bus.
func New(bus *events.Bus, logger *slog.Logger) *Feeder {
	return &Feeder{
		bus:    bus,
		log:    logger,
		reload: make(chan Settings, 1),
		open:   openCamera,
	}
}

func openCamera(cfg camera.Config) (session, error) {
	cam, err := camera.Open(cfg)
	if err != nil {
		return nil, err
	}
	return cam, nil
}

// Reload requests a session restart with new settings. The latest request
// wins when several arrive between frames.
func (f *Feeder) Reload(s Settings) {
	for {
		select {
		case f.reload <- s:
			return
		default:
		}
		select {
		case <-f.reload:
		default:
		}
	}
}

// Run claims devices per settings and paces frames into them until ctx is
// canceled. Reload requests swap the session between frames; when the new
// settings cannot be applied the previous ones are restored.
func (f *Feeder) Run(ctx context.Context, settings Settings) error {
	unsubscribe := f.bus.Subscribe(func(e events.DeviceHotplugEvent) {
		if e.Action == "remove" && f.holdsPath(e.DevicePath) {
			f.log.Warn("Output device removed while feeding", "device", e.DevicePath)
		}
	})
	defer unsubscribe()

	sess, gen, err := f.openSession(settings)
	if err != nil {
		return err
	}

	go systemd.RunWatchdog(ctx)
	systemd.NotifyReady()

	ticker := time.NewTicker(frameInterval(settings.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			systemd.NotifyStopping()
			f.closeSession(sess)
			return nil

		case next := <-f.reload:
			if next.Equal(settings) {
				f.log.Debug("Settings reloaded, session unchanged")
				continue
			}

			f.log.Info("Settings changed, restarting session")
			f.closeSession(sess)

			sess, gen, err = f.openSession(next)
			if err != nil {
				f.log.Error("Failed to apply new settings, restoring previous session", "error", err)
				sess, gen, err = f.openSession(settings)
				if err != nil {
					return fmt.Errorf("session restart failed: %w", err)
				}
			} else {
				settings = next
			}
			ticker.Reset(frameInterval(settings.FPS))

		case <-ticker.C:
			if err := sess.Send(gen.Frame(f.frame.Load())); err != nil {
				f.closeSession(sess)
				return fmt.Errorf("sending frame %d: %w", f.frame.Load(), err)
			}
			f.frame.Add(1)
		}
	}
}

func (f *Feeder) openSession(s Settings) (session, *pattern.Generator, error) {
	if s.FPS <= 0 {
		return nil, nil, fmt.Errorf("frame rate must be positive, got %v", s.FPS)
	}

	format, err := camera.ParsePixelFormat(s.Format)
	if err != nil {
		return nil, nil, err
	}

	gen, err := pattern.New(s.Width, s.Height, format, s.Pattern)
	if err != nil {
		return nil, nil, err
	}

	sess, err := f.open(camera.Config{
		Width:   s.Width,
		Height:  s.Height,
		FPS:     s.FPS,
		Format:  format,
		Devices: s.Devices,
		OnWrite: f.onWrite,
	})
	if err != nil {
		return nil, nil, err
	}

	paths := sess.Paths()
	f.setPaths(paths)
	metrics.SetOpenDevices(len(paths))
	systemd.NotifyStatus(fmt.Sprintf("feeding %d device(s) at %dx%d %s",
		len(paths), s.Width, s.Height, s.Format))

	f.bus.Publish(events.SessionOpenedEvent{
		Devices:     paths,
		Width:       s.Width,
		Height:      s.Height,
		PixelFormat: s.Format,
		Timestamp:   time.Now().Format(time.RFC3339),
	})

	return sess, gen, nil
}

func (f *Feeder) closeSession(sess session) {
	paths := sess.Paths()
	_ = sess.Close()

	f.setPaths(nil)
	metrics.SetOpenDevices(0)
	for _, path := range paths {
		metrics.DeleteOutputMetrics(path)
	}

	f.bus.Publish(events.SessionClosedEvent{
		Devices:    paths,
		FramesSent: f.frame.Load(),
		Timestamp:  time.Now().Format(time.RFC3339),
	})
}

// onWrite feeds per-device write outcomes into metrics and the event bus.
func (f *Feeder) onWrite(device string, bytes int, err error) {
	if err != nil {
		metrics.RecordWriteError(device)
		f.bus.Publish(events.WriteFailedEvent{
			DevicePath: device,
			Error:      err.Error(),
			Frame:      f.frame.Load(),
			Timestamp:  time.Now().Format(time.RFC3339),
		})
		return
	}
	metrics.RecordFrameWritten(device, bytes)
}

func (f *Feeder) setPaths(paths []string) {
	f.mu.Lock()
	f.paths = paths
	f.mu.Unlock()
}

func (f *Feeder) holdsPath(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Contains(f.paths, path)
}

func frameInterval(fps float64) time.Duration {
	return time.Duration(float64(time.Second) / fps)
}
