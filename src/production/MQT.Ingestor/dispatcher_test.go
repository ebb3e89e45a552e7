package mqtingestor

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	logger "gitlab.com/maplesense1/mpt.telemetry_server/src/production/MQT.Logger"
)

type recordingHandler struct {
	mu       sync.Mutex
	bySensor map[string][]string
	statuses int
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{bySensor: make(map[string][]string)}
}

func (h *recordingHandler) HandleData(_ context.Context, topic string, payload []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	sensorID := sensorIDFromTopic(topic)
	h.bySensor[sensorID] = append(h.bySensor[sensorID], string(payload))
	return nil
}

func (h *recordingHandler) HandleStatus(_ context.Context, _, _ string, _ []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.statuses++
	return nil
}

func TestDispatcher_PerSensorOrderPreserved(t *testing.T) {
	handler := newRecordingHandler()
	d := NewDispatcher(4, 256, handler, logger.NewNop())
	d.Start(context.Background())

	sensors := []string{"s1", "s2", "pi_007"}
	const perSensor = 100
	for i := 0; i < perSensor; i++ {
		for _, id := range sensors {
			if !d.Enqueue(id, "sensors/"+id+"/data", []byte(strconv.Itoa(i)), false) {
				t.Fatalf("unexpected shed for %s at %d", id, i)
			}
		}
	}

	d.Stop()

	for _, id := range sensors {
		got := handler.bySensor[id]
		if len(got) != perSensor {
			t.Fatalf("sensor %s handled %d messages, want %d", id, len(got), perSensor)
		}
		for i, payload := range got {
			if payload != strconv.Itoa(i) {
				t.Fatalf("sensor %s message %d arrived as %q, order broken", id, i, payload)
			}
		}
	}

	if d.Dropped() != 0 {
		t.Errorf("Dropped() = %d, want 0", d.Dropped())
	}
}

type blockingHandler struct {
	started chan struct{}
	release chan struct{}
	handled int
	mu      sync.Mutex
}

func (h *blockingHandler) HandleData(_ context.Context, _ string, _ []byte) error {
	h.started <- struct{}{}
	<-h.release
	h.mu.Lock()
	h.handled++
	h.mu.Unlock()
	return nil
}

func (h *blockingHandler) HandleStatus(_ context.Context, _, _ string, _ []byte) error {
	return nil
}

func TestDispatcher_FullQueueShedsNewest(t *testing.T) {
	handler := &blockingHandler{
		started: make(chan struct{}, 4),
		release: make(chan struct{}),
	}
	d := NewDispatcher(1, 1, handler, logger.NewNop())
	d.Start(context.Background())

	if !d.Enqueue("s1", "sensors/s1/data", []byte("m1"), false) {
		t.Fatal("first enqueue shed unexpectedly")
	}

	// Wait until the worker holds m1 so the queue slot is free again.
	select {
	case <-handler.started:
	case <-time.After(2 * time.Second):
		t.Fatal("worker never picked up the first message")
	}

	if !d.Enqueue("s1", "sensors/s1/data", []byte("m2"), false) {
		t.Fatal("second enqueue shed with a free queue slot")
	}
	if d.Enqueue("s1", "sensors/s1/data", []byte("m3"), false) {
		t.Fatal("third enqueue accepted with a full queue")
	}
	if d.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", d.Dropped())
	}

	close(handler.release)
	// Drain the second handler invocation's started signal.
	select {
	case <-handler.started:
	case <-time.After(2 * time.Second):
		t.Fatal("queued message was never handled")
	}
	d.Stop()

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if handler.handled != 2 {
		t.Errorf("handled = %d, want 2 (shed message must not be processed)", handler.handled)
	}
}

func TestDispatcher_SameSensorSameWorker(t *testing.T) {
	d := NewDispatcher(8, 1, nil, logger.NewNop())
	for _, id := range []string{"s1", "s2", "building-3/floor-1", ""} {
		first := d.workerFor(id)
		for i := 0; i < 10; i++ {
			if got := d.workerFor(id); got != first {
				t.Fatalf("workerFor(%q) not stable: %d then %d", id, first, got)
			}
		}
	}
}

func TestDispatcher_EnqueueAfterStop(t *testing.T) {
	handler := newRecordingHandler()
	d := NewDispatcher(2, 16, handler, logger.NewNop())
	d.Start(context.Background())
	d.Stop()

	// A broker callback can still fire briefly after Stop; the straggler
	// must be refused, not sent to a closed queue.
	if d.Enqueue("s1", "sensors/s1/data", []byte(`{}`), false) {
		t.Fatal("enqueue accepted after Stop")
	}
	if len(handler.bySensor["s1"]) != 0 {
		t.Errorf("straggler was handled after Stop")
	}

	// Stop must be idempotent.
	d.Stop()
}

func TestDispatcher_StatusRouting(t *testing.T) {
	handler := newRecordingHandler()
	d := NewDispatcher(2, 16, handler, logger.NewNop())
	d.Start(context.Background())

	d.Enqueue("s1", "sensors/s1/status", []byte(`{"online":true}`), true)
	d.Enqueue("s1", "sensors/s1/data", []byte(`{}`), false)
	d.Stop()

	if handler.statuses != 1 {
		t.Errorf("status messages handled = %d, want 1", handler.statuses)
	}
	if len(handler.bySensor["s1"]) != 1 {
		t.Errorf("data messages handled = %d, want 1", len(handler.bySensor["s1"]))
	}
}
