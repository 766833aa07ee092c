package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/loopcam/internal/events"
	"github.com/smazurov/loopcam/pkg/camera"
)

type fakeSession struct {
	mu      sync.Mutex
	sends   int
	closed  bool
	paths   []string
	sendErr error
}

func (s *fakeSession) Send(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sends++
	return nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSession) Paths() []string {
	return s.paths
}

func (s *fakeSession) sendCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sends
}

func (s *fakeSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeOpener struct {
	mu       sync.Mutex
	configs  []camera.Config
	sessions []*fakeSession
	fail     func(camera.Config) error
}

func (o *fakeOpener) open(cfg camera.Config) (session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.configs = append(o.configs, cfg)
	if o.fail != nil {
		if err := o.fail(cfg); err != nil {
			return nil, err
		}
	}
	sess := &fakeSession{paths: cfg.Devices}
	o.sessions = append(o.sessions, sess)
	return sess, nil
}

func (o *fakeOpener) openCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.configs)
}

func (o *fakeOpener) sessionAt(i int) *fakeSession {
	o.mu.Lock()
	defer o.mu.Unlock()
	if i >= len(o.sessions) {
		return nil
	}
	return o.sessions[i]
}

func (o *fakeOpener) configAt(i int) camera.Config {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.configs[i]
}

func testSettings() Settings {
	return Settings{
		Width:   64,
		Height:  48,
		FPS:     200,
		Format:  "rgb24",
		Devices: []string{"/dev/video7"},
		Pattern: "hue",
	}
}

func newTestFeeder(opener *fakeOpener) *Feeder {
	f := New(events.New(), slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	f.open = opener.open
	return f
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestRunSendsFrames(t *testing.T) {
	opener := &fakeOpener{}
	f := newTestFeeder(opener)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx, testSettings()) }()

	waitFor(t, "frames sent", func() bool {
		sess := opener.sessionAt(0)
		return sess != nil && sess.sendCount() >= 3
	})
	cancel()

	if err := <-done; err != nil {
		t.Errorf("Run() = %v, want nil", err)
	}
	if !opener.sessionAt(0).isClosed() {
		t.Error("session not closed after Run returned")
	}
}

func TestRunReloadRestartsSession(t *testing.T) {
	opener := &fakeOpener{}
	f := newTestFeeder(opener)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx, testSettings()) }()

	waitFor(t, "initial session", func() bool {
		sess := opener.sessionAt(0)
		return sess != nil && sess.sendCount() >= 1
	})

	next := testSettings()
	next.Width = 128
	next.Height = 96
	f.Reload(next)

	waitFor(t, "restarted session", func() bool { return opener.openCount() == 2 })

	if got := opener.configAt(1).Width; got != 128 {
		t.Errorf("restarted session width = %d, want 128", got)
	}
	if !opener.sessionAt(0).isClosed() {
		t.Error("previous session not closed after reload")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() = %v, want nil", err)
	}
}

func TestRunReloadUnchangedSettings(t *testing.T) {
	opener := &fakeOpener{}
	f := newTestFeeder(opener)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx, testSettings()) }()

	waitFor(t, "initial session", func() bool {
		sess := opener.sessionAt(0)
		return sess != nil && sess.sendCount() >= 1
	})

	f.Reload(testSettings())

	before := opener.sessionAt(0).sendCount()
	waitFor(t, "feeding to continue", func() bool {
		return opener.sessionAt(0).sendCount() > before
	})

	if got := opener.openCount(); got != 1 {
		t.Errorf("open count = %d, want 1 (identical settings must not restart)", got)
	}

	cancel()
	<-done
}

func TestRunReloadFailureRestoresPrevious(t *testing.T) {
	opener := &fakeOpener{
		fail: func(cfg camera.Config) error {
			if cfg.Width == 1920 {
				return errors.New("device rejected format")
			}
			return nil
		},
	}
	f := newTestFeeder(opener)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx, testSettings()) }()

	waitFor(t, "initial session", func() bool {
		sess := opener.sessionAt(0)
		return sess != nil && sess.sendCount() >= 1
	})

	next := testSettings()
	next.Width = 1920
	f.Reload(next)

	// Failed attempt plus the restore both go through the opener.
	waitFor(t, "previous settings restored", func() bool { return opener.openCount() == 3 })

	if got := opener.configAt(2).Width; got != 64 {
		t.Errorf("restored session width = %d, want 64", got)
	}
	waitFor(t, "feeding to resume", func() bool {
		sess := opener.sessionAt(1)
		return sess != nil && sess.sendCount() >= 1
	})

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() = %v, want nil", err)
	}
}

func TestRunSendErrorStops(t *testing.T) {
	opener := &fakeOpener{}
	f := newTestFeeder(opener)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx, testSettings()) }()

	waitFor(t, "initial session", func() bool { return opener.sessionAt(0) != nil })
	sess := opener.sessionAt(0)
	sess.mu.Lock()
	sess.sendErr = camera.ErrInvalidFrameSize
	sess.mu.Unlock()

	err := <-done
	if err == nil {
		t.Fatal("Run() = nil, want frame send error")
	}
	if !errors.Is(err, camera.ErrInvalidFrameSize) {
		t.Errorf("Run() = %v, want ErrInvalidFrameSize", err)
	}
	if !sess.isClosed() {
		t.Error("session not closed after send failure")
	}
}

func TestRunOpenErrorReturns(t *testing.T) {
	opener := &fakeOpener{
		fail: func(camera.Config) error { return errors.New("no such device") },
	}
	f := newTestFeeder(opener)

	if err := f.Run(context.Background(), testSettings()); err == nil {
		t.Error("Run() = nil, want open error")
	}
}

func TestRunRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
		want   string
	}{
		{"zero fps", func(s *Settings) { s.FPS = 0 }, "frame rate"},
		{"negative fps", func(s *Settings) { s.FPS = -30 }, "frame rate"},
		{"unknown format", func(s *Settings) { s.Format = "h264" }, "pixel format"},
		{"unknown pattern", func(s *Settings) { s.Pattern = "plasma" }, "pattern"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opener := &fakeOpener{}
			f := newTestFeeder(opener)

			settings := testSettings()
			tt.mutate(&settings)

			err := f.Run(context.Background(), settings)
			if err == nil {
				t.Fatal("Run() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Run() = %v, want mention of %q", err, tt.want)
			}
			if opener.openCount() != 0 {
				t.Error("opener called despite invalid settings")
			}
		})
	}
}

func TestRunPublishesSessionEvents(t *testing.T) {
	bus := events.New()
	opened := make(chan events.SessionOpenedEvent, 1)
	closed := make(chan events.SessionClosedEvent, 1)
	bus.Subscribe(func(e events.SessionOpenedEvent) { opened <- e })
	bus.Subscribe(func(e events.SessionClosedEvent) { closed <- e })

	opener := &fakeOpener{}
	f := New(bus, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	f.open = opener.open

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx, testSettings()) }()

	select {
	case e := <-opened:
		if e.Width != 64 || e.Height != 48 || e.PixelFormat != "rgb24" {
			t.Errorf("opened event = %+v, want 64x48 rgb24", e)
		}
		if len(e.Devices) != 1 || e.Devices[0] != "/dev/video7" {
			t.Errorf("opened event devices = %v, want [/dev/video7]", e.Devices)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no session opened event")
	}

	cancel()
	<-done

	select {
	case e := <-closed:
		if len(e.Devices) != 1 || e.Devices[0] != "/dev/video7" {
			t.Errorf("closed event devices = %v, want [/dev/video7]", e.Devices)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no session closed event")
	}
}

func TestOnWritePublishesFailures(t *testing.T) {
	bus := events.New()
	failed := make(chan events.WriteFailedEvent, 1)
	bus.Subscribe(func(e events.WriteFailedEvent) { failed <- e })

	f := New(bus, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	f.onWrite("/dev/video7", 0, errors.New("no space left on device"))

	select {
	case e := <-failed:
		if e.DevicePath != "/dev/video7" {
			t.Errorf("event device = %q, want /dev/video7", e.DevicePath)
		}
		if e.Error != "no space left on device" {
			t.Errorf("event error = %q, want write error text", e.Error)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no write failed event")
	}
}

type syncWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *syncWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func TestRunWarnsOnHeldDeviceRemoval(t *testing.T) {
	bus := events.New()
	out := &syncWriter{}
	opener := &fakeOpener{}
	f := New(bus, slog.New(slog.NewTextHandler(out, nil)))
	f.open = opener.open

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx, testSettings()) }()

	waitFor(t, "device claimed", func() bool { return f.holdsPath("/dev/video7") })

	bus.Publish(events.DeviceHotplugEvent{
		Action:     "remove",
		DevicePath: "/dev/video7",
		Timestamp:  time.Now().Format(time.RFC3339),
	})

	waitFor(t, "removal warning", func() bool {
		return strings.Contains(out.String(), "removed while feeding")
	})

	cancel()
	<-done
}

func TestReloadLatestWins(t *testing.T) {
	f := New(events.New(), slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	for i := 1; i <= 5; i++ {
		s := testSettings()
		s.Width = i * 100
		f.Reload(s)
	}

	got := <-f.reload
	if got.Width != 500 {
		t.Errorf("queued settings width = %d, want 500 (latest request)", got.Width)
	}
}

func TestSettingsEqual(t *testing.T) {
	base := testSettings()

	tests := []struct {
		name   string
		mutate func(*Settings)
		want   bool
	}{
		{"identical", func(*Settings) {}, true},
		{"different width", func(s *Settings) { s.Width = 128 }, false},
		{"different fps", func(s *Settings) { s.FPS = 25 }, false},
		{"different format", func(s *Settings) { s.Format = "i420" }, false},
		{"different pattern", func(s *Settings) { s.Pattern = "bars" }, false},
		{"different devices", func(s *Settings) { s.Devices = []string{"/dev/video9"} }, false},
		{"extra device", func(s *Settings) { s.Devices = append(s.Devices, "/dev/video8") }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := testSettings()
			tt.mutate(&other)
			if got := base.Equal(other); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFrameInterval(t *testing.T) {
	tests := []struct {
		fps  float64
		want time.Duration
	}{
		{25, 40 * time.Millisecond},
		{50, 20 * time.Millisecond},
		{200, 5 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%vfps", tt.fps), func(t *testing.T) {
			if got := frameInterval(tt.fps); got != tt.want {
				t.Errorf("frameInterval(%v) = %v, want %v", tt.fps, got, tt.want)
			}
		})
	}
}
