// Package mintrouter serializes event processing per mint while letting
// different mints run fully in parallel, then drives the liquidation and
// storage side effects each event carries in the order the data model
// requires: liquidation before persistence, persistence before
// broadcast.
package mintrouter

import (
	"sync"

	"go.uber.org/zap"

	"github.com/uhyunpark/hyperlicked-indexer/internal/events"
	"github.com/uhyunpark/hyperlicked-indexer/internal/liquidation"
)

// mintTask owns one mint's serial event queue, grounded on the original
// source's MintEventTask: a single goroutine draining a channel buffered
// to Config.QueueSize events (Route blocks while it is full), logging and
// continuing past a single event's failure rather than stopping the
// mint's pipeline.
type mintTask struct {
	mint   string
	queue  chan events.Event
	router *Router
	log    *zap.Logger
}

func (t *mintTask) run() {
	for ev := range t.queue {
		if err := t.router.processEvent(t.mint, ev); err != nil {
			t.log.Error("event processing failed",
				zap.String("mint", t.mint),
				zap.String("type", string(ev.TypeCode())),
				zap.String("signature", ev.EventSignature()),
				zap.Error(err))
		}
	}
}

// Router fans incoming events out to one serial per-mint task each,
// creating tasks lazily on first sight of a mint.
type Router struct {
	liquidationProcessor *liquidation.Processor
	storageHandler       *StorageHandler
	broadcaster          Broadcaster
	log                  *zap.Logger

	mu    sync.Mutex
	tasks map[string]*mintTask

	queueSize int
}

type Config struct {
	// QueueSize bounds each mint's pending-event channel. 0 means the
	// default of 256, matching a busy mint's expected event burst size
	// without unbounded growth from a stuck downstream dependency.
	QueueSize int
}

func New(liquidationProcessor *liquidation.Processor, storageHandler *StorageHandler, broadcaster Broadcaster, log *zap.Logger, cfg Config) *Router {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Router{
		liquidationProcessor: liquidationProcessor,
		storageHandler:       storageHandler,
		broadcaster:          broadcaster,
		log:                  log,
		tasks:                make(map[string]*mintTask),
		queueSize:            queueSize,
	}
}

// Route enqueues ev onto its mint's serial queue, creating the queue and
// its worker goroutine on first sight of the mint.
func (r *Router) Route(ev events.Event) {
	mint := ev.EventMint()

	r.mu.Lock()
	task, ok := r.tasks[mint]
	if !ok {
		task = &mintTask{
			mint:   mint,
			queue:  make(chan events.Event, r.queueSize),
			router: r,
			log:    r.log,
		}
		r.tasks[mint] = task
		go task.run()
		r.log.Info("created mint event task", zap.String("mint", mint))
	}
	r.mu.Unlock()

	task.queue <- ev
}

// ActiveMints reports how many distinct mints currently have a running
// worker.
func (r *Router) ActiveMints() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// processEvent is step 1-3 of the data model's mint router contract:
// liquidation first (causally prior to the triggering event), then
// storage, then broadcast.
func (r *Router) processEvent(mint string, ev events.Event) error {
	closed, err := r.liquidationProcessor.Process(ev)
	if err != nil {
		return err
	}

	if err := r.storageHandler.Handle(ev); err != nil {
		return err
	}

	if r.broadcaster != nil {
		r.broadcaster.BroadcastEvent(ev)
		if len(closed) > 0 {
			if _, dir, ok := liquidation.TargetDirection(ev); ok {
				r.broadcaster.BroadcastClosedOrders(mint, dir, closed)
			}
		}
	}

	return nil
}
