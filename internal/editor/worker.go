package editor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"flowdesk/internal/flow"
)

// Worker writes dirty sessions back to the store on a fixed interval and
// fans editing events out to stream subscribers.
type Worker struct {
	manager  *Manager
	interval time.Duration
	logger   *zap.Logger

	subscribers     map[string][]chan *Event
	subscriberMutex sync.RWMutex

	ctx     context.Context
	cancel  context.CancelFunc
	started atomic.Bool
	done    chan struct{}
}

// Event is what stream subscribers receive. Flow is only set on
// snapshot events.
type Event struct {
	Type         string     `json:"type"`
	FlowID       string     `json:"flow_id"`
	Version      int64      `json:"version"`
	Flow         *View      `json:"flow,omitempty"`
	Node         *flow.Node `json:"node,omitempty"`
	NodeID       string     `json:"node_id,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

const (
	EventSnapshot   = "snapshot"
	EventSaved      = "saved"
	EventSaveFailed = "save_failed"
)

func NewWorker(manager *Manager, interval time.Duration, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Worker{
		manager:     manager,
		interval:    interval,
		logger:      logger,
		subscribers: make(map[string][]chan *Event),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
}

// Start launches the autosave loop in its own goroutine.
func (w *Worker) Start() {
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	go w.loop()
}

// Run starts the autosave loop and blocks until Shutdown. Prefer Start
// when the caller does not own a goroutine for it.
func (w *Worker) Run() {
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	w.loop()
}

func (w *Worker) loop() {
	defer close(w.done)

	w.logger.Info("autosave worker started", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			w.Flush()
			w.logger.Info("autosave worker stopped")
			return
		case <-ticker.C:
			w.Flush()
		}
	}
}

// Shutdown stops the loop after a final flush.
func (w *Worker) Shutdown() {
	w.logger.Info("autosave worker shutdown requested")
	w.cancel()
	if w.started.Load() {
		<-w.done
	}
}

// Flush saves every dirty session and reports how many were written.
func (w *Worker) Flush() int {
	saved := 0
	for _, s := range w.manager.DirtySessions() {
		if err := w.manager.SaveSession(s); err != nil {
			w.logger.Error("autosave failed", zap.String("flow_id", s.ID()), zap.Error(err))
			w.broadcastEvent(s.ID(), &Event{
				Type:         EventSaveFailed,
				FlowID:       s.ID(),
				ErrorMessage: err.Error(),
			})
			continue
		}

		saved++
		view := s.View()
		w.logger.Debug("flow saved", zap.String("flow_id", s.ID()), zap.Int64("version", view.Version))
		w.broadcastEvent(s.ID(), &Event{
			Type:    EventSaved,
			FlowID:  s.ID(),
			Version: view.Version,
		})
	}
	return saved
}

// HandleChange forwards a session change to subscribers of that flow.
func (w *Worker) HandleChange(c Change) {
	w.broadcastEvent(c.FlowID, &Event{
		Type:    string(c.Kind),
		FlowID:  c.FlowID,
		Version: c.Version,
		Node:    c.Node,
		NodeID:  c.NodeID,
	})
}

func (w *Worker) Subscribe(flowID string) chan *Event {
	ch := make(chan *Event, 10)

	w.subscriberMutex.Lock()
	w.subscribers[flowID] = append(w.subscribers[flowID], ch)
	w.subscriberMutex.Unlock()

	return ch
}

func (w *Worker) Unsubscribe(flowID string, ch chan *Event) {
	w.subscriberMutex.Lock()
	defer w.subscriberMutex.Unlock()

	subs := w.subscribers[flowID]
	for i, sub := range subs {
		if sub == ch {
			w.subscribers[flowID] = append(subs[:i], subs[i+1:]...)
			close(ch)
			break
		}
	}
	if len(w.subscribers[flowID]) == 0 {
		delete(w.subscribers, flowID)
	}
}

// broadcastEvent never blocks; a full subscriber misses the event.
// Sending happens under the read lock so Unsubscribe cannot close a
// channel mid-send.
func (w *Worker) broadcastEvent(flowID string, event *Event) {
	w.subscriberMutex.RLock()
	defer w.subscriberMutex.RUnlock()

	for _, ch := range w.subscribers[flowID] {
		select {
		case ch <- event:
		default:
		}
	}
}
