package mqtingestor

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"

	logger "gitlab.com/maplesense1/mpt.telemetry_server/src/production/MQT.Logger"
)

// Handler consumes dispatched broker messages
type Handler interface {
	HandleData(ctx context.Context, topic string, payload []byte) error
	HandleStatus(ctx context.Context, topic, topicSensorID string, payload []byte) error
}

type message struct {
	sensorID string
	topic    string
	payload  []byte
	status   bool
}

// Dispatcher is the bounded queue between the listener and the
// coordinator. Messages for the same sensor hash to the same worker, so
// per-device receipt order is preserved while devices interleave freely.
// A full worker queue sheds the newest message; the drop is counted.
type Dispatcher struct {
	queues  []chan message
	handler Handler
	wg      sync.WaitGroup
	dropped atomic.Uint64
	logger  *logger.Logger

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(workers, queueSize int, handler Handler, log *logger.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	queues := make([]chan message, workers)
	for i := range queues {
		queues[i] = make(chan message, queueSize)
	}

	return &Dispatcher{
		queues:  queues,
		handler: handler,
		logger:  log.WithComponent("dispatcher"),
	}
}

// Start launches one goroutine per worker queue
func (d *Dispatcher) Start(ctx context.Context) {
	for _, queue := range d.queues {
		d.wg.Add(1)
		go func(queue chan message) {
			defer d.wg.Done()
			d.work(ctx, queue)
		}(queue)
	}
}

func (d *Dispatcher) work(ctx context.Context, queue chan message) {
	for msg := range queue {
		var err error
		if msg.status {
			err = d.handler.HandleStatus(ctx, msg.topic, msg.sensorID, msg.payload)
		} else {
			err = d.handler.HandleData(ctx, msg.topic, msg.payload)
		}
		if err != nil {
			// Authoritative-store failure: the reading is lost and there is
			// no caller above the message handler to report to.
			d.logger.Logger.Error().Err(err).Str("topic", msg.topic).Msg("Message handling failed, reading lost")
		}
	}
}

// Enqueue routes a message to the worker owning its sensor. Returns false
// when the worker's queue is full and the message was shed, or when the
// dispatcher has already stopped. Broker callbacks can still fire briefly
// after Stop, so the queues may only close once no Enqueue is in flight.
func (d *Dispatcher) Enqueue(sensorID, topic string, payload []byte, status bool) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}

	idx := d.workerFor(sensorID)
	select {
	case d.queues[idx] <- message{sensorID: sensorID, topic: topic, payload: payload, status: status}:
		return true
	default:
		dropped := d.dropped.Add(1)
		d.logger.Logger.Warn().Str("topic", topic).Uint64("total_dropped", dropped).Msg("Worker queue full, shedding message")
		return false
	}
}

// Dropped returns the number of messages shed since startup
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Stop closes the queues and waits for in-flight messages to drain
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	for _, queue := range d.queues {
		close(queue)
	}
	d.wg.Wait()
}

func (d *Dispatcher) workerFor(sensorID string) int {
	h := fnv.New32a()
	h.Write([]byte(sensorID))
	return int(h.Sum32() % uint32(len(d.queues)))
}
