package events

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan WriteFailedEvent, 1)

	unsub := bus.Subscribe(func(e WriteFailedEvent) {
		received <- e
	})
	defer unsub()

	event := WriteFailedEvent{
		DevicePath: "/dev/video0",
		Error:      "input/output error",
		Frame:      17,
		Timestamp:  "2025-01-27T10:30:00Z",
	}
	bus.Publish(event)

	got := <-received
	if got.DevicePath != event.DevicePath {
		t.Errorf("Expected device_path %s, got %s", event.DevicePath, got.DevicePath)
	}
	if got.Frame != event.Frame {
		t.Errorf("Expected frame %d, got %d", event.Frame, got.Frame)
	}
}

func TestBus_MultipleSubscribers(_ *testing.T) {
	bus := New()
	received1 := make(chan SessionOpenedEvent, 1)
	received2 := make(chan SessionOpenedEvent, 1)

	unsub1 := bus.Subscribe(func(e SessionOpenedEvent) {
		received1 <- e
	})
	defer unsub1()

	unsub2 := bus.Subscribe(func(e SessionOpenedEvent) {
		received2 <- e
	})
	defer unsub2()

	event := SessionOpenedEvent{
		Devices: []string{"/dev/video3"},
		Width:   1280,
		Height:  720,
	}
	bus.Publish(event)

	<-received1
	<-received2
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan DeviceHotplugEvent, 1)

	unsub := bus.Subscribe(func(e DeviceHotplugEvent) {
		received <- e
	})

	bus.Publish(DeviceHotplugEvent{DevicePath: "/dev/video0"})
	<-received

	unsub()

	bus.Publish(DeviceHotplugEvent{DevicePath: "/dev/video1"})
	select {
	case <-received:
		t.Fatal("Should not have received event after unsubscribe")
	case <-time.After(10 * time.Millisecond):
		// Expected - no event
	}
}

func TestBus_TypeSafety(t *testing.T) {
	bus := New()

	writeReceived := make(chan bool, 1)
	sessionReceived := make(chan bool, 1)

	unsub1 := bus.Subscribe(func(_ WriteFailedEvent) {
		writeReceived <- true
	})
	defer unsub1()

	unsub2 := bus.Subscribe(func(_ SessionOpenedEvent) {
		sessionReceived <- true
	})
	defer unsub2()

	// Publish WriteFailedEvent
	bus.Publish(WriteFailedEvent{DevicePath: "/dev/video0"})
	<-writeReceived

	select {
	case <-sessionReceived:
		t.Fatal("Session subscriber should NOT have received WriteFailedEvent")
	case <-time.After(10 * time.Millisecond):
		// Expected
	}

	// Publish SessionOpenedEvent
	bus.Publish(SessionOpenedEvent{Width: 640, Height: 480})
	<-sessionReceived

	select {
	case <-writeReceived:
		t.Fatal("Write subscriber should NOT have received SessionOpenedEvent")
	case <-time.After(10 * time.Millisecond):
		// Expected
	}
}

func TestBus_ThreadSafety(_ *testing.T) {
	bus := New()
	var wg sync.WaitGroup
	numGoroutines := 10
	eventsPerGoroutine := 100
	expected := numGoroutines * eventsPerGoroutine

	receivedCh := make(chan bool, expected)

	unsub := bus.Subscribe(func(_ DeviceHotplugEvent) {
		receivedCh <- true
	})
	defer unsub()

	for range numGoroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range eventsPerGoroutine {
				bus.Publish(DeviceHotplugEvent{
					Action:    "add",
					Timestamp: time.Now().Format(time.RFC3339),
				})
			}
		}()
	}

	wg.Wait()

	// Read all expected events
	for range expected {
		<-receivedCh
	}
}

func TestBus_AllEventTypes(t *testing.T) {
	bus := New()

	tests := []struct {
		name  string
		event Event
	}{
		{"SessionOpened", SessionOpenedEvent{Devices: []string{"/dev/video0"}}},
		{"SessionClosed", SessionClosedEvent{Devices: []string{"/dev/video0"}, FramesSent: 42}},
		{"WriteFailed", WriteFailedEvent{DevicePath: "/dev/video0"}},
		{"DeviceHotplug", DeviceHotplugEvent{Action: "add"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(_ *testing.T) {
			received := make(chan Event, 1)

			var unsub func()
			switch tt.event.(type) {
			case SessionOpenedEvent:
				unsub = bus.Subscribe(func(e SessionOpenedEvent) { received <- e })
			case SessionClosedEvent:
				unsub = bus.Subscribe(func(e SessionClosedEvent) { received <- e })
			case WriteFailedEvent:
				unsub = bus.Subscribe(func(e WriteFailedEvent) { received <- e })
			case DeviceHotplugEvent:
				unsub = bus.Subscribe(func(e DeviceHotplugEvent) { received <- e })
			}
			defer unsub()

			bus.Publish(tt.event)
			<-received
		})
	}
}

func TestEventJSONSerialization(t *testing.T) {
	tests := []struct {
		name  string
		event any
	}{
		{
			"SessionOpenedEvent",
			SessionOpenedEvent{
				Devices:     []string{"/dev/video3", "/dev/video5"},
				Width:       1920,
				Height:      1080,
				PixelFormat: "rgb24",
				Timestamp:   "2025-01-27T10:30:00Z",
			},
		},
		{
			"WriteFailedEvent",
			WriteFailedEvent{
				DevicePath: "/dev/video3",
				Error:      "short write",
				Frame:      99,
				Timestamp:  "2025-01-27T10:30:00Z",
			},
		},
		{
			"DeviceHotplugEvent",
			DeviceHotplugEvent{
				Action:     "remove",
				DevicePath: "/dev/video3",
				Timestamp:  "2025-01-27T10:30:00Z",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.event)
			if err != nil {
				t.Fatalf("Failed to marshal: %v", err)
			}

			var result map[string]any
			if unmarshalErr := json.Unmarshal(data, &result); unmarshalErr != nil {
				t.Fatalf("Failed to unmarshal: %v", unmarshalErr)
			}

			if len(result) == 0 {
				t.Fatal("Unmarshaled to empty object")
			}
		})
	}
}

func TestSubscribeToChannel(t *testing.T) {
	bus := New()
	ch := make(chan any, 10)

	unsub := SubscribeToChannel[DeviceHotplugEvent](bus, ch)
	defer unsub()

	event := DeviceHotplugEvent{
		Action:     "add",
		DevicePath: "/dev/video7",
	}
	bus.Publish(event)

	received := <-ch
	hotplugEvent, ok := received.(DeviceHotplugEvent)
	if !ok {
		t.Fatalf("Expected DeviceHotplugEvent, got %T", received)
	}
	if hotplugEvent.DevicePath != event.DevicePath {
		t.Errorf("Expected device_path %s, got %s", event.DevicePath, hotplugEvent.DevicePath)
	}
}

func TestSubscribeToChannel_NonBlocking(_ *testing.T) {
	bus := New()
	ch := make(chan any) // No buffer

	unsub := SubscribeToChannel[WriteFailedEvent](bus, ch)
	defer unsub()

	done := make(chan bool, 1)
	go func() {
		bus.Publish(WriteFailedEvent{DevicePath: "/dev/video0"})
		done <- true
	}()

	<-done // Should complete without blocking
}
