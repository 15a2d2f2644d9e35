// Package runtime wires the bridge together and manages its lifecycle: port
// readers feeding a bounded record channel, the single assembler worker, the
// single delivery worker, and the operational HTTP server.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/nsrpetrol/pos-bridge/internal/assembly"
	"github.com/nsrpetrol/pos-bridge/internal/audit"
	"github.com/nsrpetrol/pos-bridge/internal/config"
	"github.com/nsrpetrol/pos-bridge/internal/delivery"
	"github.com/nsrpetrol/pos-bridge/internal/domain"
	"github.com/nsrpetrol/pos-bridge/internal/identity"
	"github.com/nsrpetrol/pos-bridge/internal/payload"
	"github.com/nsrpetrol/pos-bridge/internal/record"
	"github.com/nsrpetrol/pos-bridge/internal/serialport"
	"github.com/nsrpetrol/pos-bridge/internal/server"
)

// Bridge owns every component of the pipeline. Per-port record order is
// preserved by the single assembler worker; cross-port interleaving is
// arbitrary. Delivery is a single consumer, so one slow remote call
// serializes subsequent deliveries; acceptable at expected volumes.
type Bridge struct {
	cfg    *config.Config
	logger *slog.Logger

	recorder   *audit.Recorder
	store      *audit.Store
	readers    []*serialport.Reader
	assembler  *assembly.Assembler
	dispatcher *delivery.Dispatcher
	srv        *server.Server

	records chan record.Inbound
	txs     chan *domain.Transaction

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg *config.Config, logger *slog.Logger) (*Bridge, error) {
	store, err := audit.NewStore(cfg.Audit.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open audit store: %w", err)
	}
	recorder := audit.NewRecorder(cfg.Audit, store, logger)
	if err := recorder.EnsureDirs(); err != nil {
		store.Close()
		return nil, err
	}

	clock := domain.NewClock(cfg.Clock.Timezone, cfg.Clock.MinYear, logger)
	tokens := identity.New(cfg.API.IdentityURL, cfg.API.ClientID, cfg.API.ClientSecret, logger)
	engine := payload.NewEngine()

	b := &Bridge{
		cfg:        cfg,
		logger:     logger,
		recorder:   recorder,
		store:      store,
		assembler:  assembly.New(cfg.Store.ID, clock, logger),
		dispatcher: delivery.New(engine, tokens, recorder, cfg.API, logger),
		srv:        server.New(cfg.Server.Port, store, logger),
		records:    make(chan record.Inbound, cfg.Pipeline.RecordBuffer),
		txs:        make(chan *domain.Transaction, cfg.Pipeline.TransactionBuffer),
	}
	for _, port := range cfg.Serial.Ports {
		b.readers = append(b.readers, serialport.NewReader(port, cfg.Serial, b.records, recorder, logger))
	}
	return b, nil
}

// Start spawns all workers. It returns immediately; use Shutdown to stop.
func (b *Bridge) Start(ctx context.Context) error {
	ctx, b.cancel = context.WithCancel(ctx)

	for _, r := range b.readers {
		b.wg.Add(1)
		go func(r *serialport.Reader) {
			defer b.wg.Done()
			r.Run(ctx)
		}(r)
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.assembleLoop(ctx)
	}()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.dispatcher.Run(ctx, b.txs)
	}()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := b.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			b.logger.Error("operational server failed", slog.String("error", err.Error()))
		}
	}()

	b.logger.Info("bridge started",
		slog.Any("ports", b.cfg.Serial.Ports),
		slog.String("store", b.cfg.Store.ID))
	return nil
}

// assembleLoop is the single consumer of the record channel, preserving
// per-port arrival order.
func (b *Bridge) assembleLoop(ctx context.Context) {
	for {
		select {
		case in := <-b.records:
			res := b.assembler.Apply(in.Port, in.Record)
			if res.Tx == nil {
				continue
			}
			if err := b.recorder.SaveEvent(res.Tx); err != nil {
				b.logger.Error("event save failed",
					slog.String("guid", res.Tx.GUID), slog.String("error", err.Error()))
			}
			b.logger.Info("transaction assembled",
				slog.String("port", in.Port),
				slog.String("guid", res.Tx.GUID),
				slog.String("seq", res.Tx.Seq))
			select {
			case b.txs <- res.Tx:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// Shutdown cancels all workers and waits for them, bounded by ctx.
func (b *Bridge) Shutdown(ctx context.Context) error {
	if b.cancel != nil {
		b.cancel()
	}
	if err := b.srv.Shutdown(ctx); err != nil {
		b.logger.Error("server shutdown error", slog.String("error", err.Error()))
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return b.store.Close()
}
