// Package serialport owns the physical serial connections. One Reader per
// configured line reads frames, appends them to the per-port raw audit log,
// decodes them, and hands records to the assembly stage.
package serialport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"go.bug.st/serial"

	"github.com/nsrpetrol/pos-bridge/internal/config"
	"github.com/nsrpetrol/pos-bridge/internal/framing"
	"github.com/nsrpetrol/pos-bridge/internal/record"
)

// RawAppender receives every frame payload for the append-only port log.
type RawAppender interface {
	AppendRaw(port, payload string) error
}

// Option configures a Reader.
type Option func(*Reader)

// WithOpener replaces the physical port open with a custom one, so the read
// loop is testable against an in-memory stream.
func WithOpener(open func() (io.ReadCloser, error)) Option {
	return func(r *Reader) { r.open = open }
}

// Reader owns one serial line. I/O failure never terminates the process:
// the port is closed, the reader backs off, and the open is retried forever.
type Reader struct {
	port    string
	cfg     config.SerialConfig
	out     chan<- record.Inbound
	raw     RawAppender
	logger  *slog.Logger
	open    func() (io.ReadCloser, error)
	backoff time.Duration
}

func NewReader(port string, cfg config.SerialConfig, out chan<- record.Inbound, raw RawAppender, logger *slog.Logger, opts ...Option) *Reader {
	r := &Reader{
		port:    port,
		cfg:     cfg,
		out:     out,
		raw:     raw,
		logger:  logger.With(slog.String("port", port)),
		backoff: cfg.ReconnectBackoff,
	}
	if r.backoff <= 0 {
		r.backoff = 5 * time.Second
	}
	r.open = r.openSerial
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reader) openSerial() (io.ReadCloser, error) {
	mode := &serial.Mode{
		BaudRate: r.cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(r.port, mode)
	if err != nil {
		return nil, err
	}
	if r.cfg.RTSCTS {
		if err := p.SetRTS(true); err != nil {
			p.Close()
			return nil, err
		}
	}
	return p, nil
}

// Run opens the port and pumps frames until ctx is cancelled. Open and read
// errors trigger a close-and-reopen with a fixed backoff.
func (r *Reader) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		r.logger.Info("opening serial port")
		port, err := r.open()
		if err != nil {
			r.logger.Error("open failed, retrying", slog.String("error", err.Error()), slog.Duration("backoff", r.backoff))
			if !sleep(ctx, r.backoff) {
				return
			}
			continue
		}

		err = r.session(ctx, port)
		port.Close()
		if ctx.Err() != nil {
			return
		}
		if err != nil && !errors.Is(err, io.EOF) {
			r.logger.Error("read failed, reconnecting", slog.String("error", err.Error()), slog.Duration("backoff", r.backoff))
		}
		if !sleep(ctx, r.backoff) {
			return
		}
	}
}

// session consumes frames from one open port until an error or cancellation.
// Cancellation closes the port to unblock the pending read.
func (r *Reader) session(ctx context.Context, port io.ReadCloser) error {
	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-sessionCtx.Done()
		port.Close()
	}()

	r.logger.Info("listening")
	scanner := framing.NewScanner(port)
	for {
		payload, err := scanner.Next()
		if err != nil {
			return err
		}
		if err := r.raw.AppendRaw(r.port, payload); err != nil {
			r.logger.Warn("raw log append failed", slog.String("error", err.Error()))
		}
		rec, err := record.Decode(payload)
		if err != nil {
			r.logger.Warn("invalid record payload, skipping", slog.String("payload", truncate(payload, 80)))
			continue
		}
		select {
		case r.out <- record.Inbound{Port: r.port, Record: rec}:
		case <-ctx.Done():
			return nil
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
