// Package delivery posts each assembled transaction to the ingestion API
// exactly once and records the outcome, success or failure, in the audit
// trail. There is no retry; durability of evidence, not of delivery, is the
// contract.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nsrpetrol/pos-bridge/internal/config"
	"github.com/nsrpetrol/pos-bridge/internal/domain"
	"github.com/nsrpetrol/pos-bridge/internal/payload"
)

// TokenSource supplies bearer tokens for the ingestion API.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Recorder persists the outcome of a delivery attempt.
type Recorder interface {
	RecordOutcome(tx *domain.Transaction, category payload.Category, success bool, statusCode int, responseBody string) error
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithHTTPClient overrides the HTTP client, for tests.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Dispatcher) { d.client = client }
}

// Dispatcher is the single consumer of the transactions channel.
type Dispatcher struct {
	engine   *payload.Engine
	tokens   TokenSource
	recorder Recorder
	api      config.APIConfig
	client   *http.Client
	logger   *slog.Logger
	tracer   trace.Tracer
}

func New(engine *payload.Engine, tokens TokenSource, recorder Recorder, api config.APIConfig, logger *slog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		engine:   engine,
		tokens:   tokens,
		recorder: recorder,
		api:      api,
		client: &http.Client{
			Timeout:   api.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
		tracer: otel.Tracer("pos-bridge/delivery"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run consumes transactions until the channel closes or ctx is cancelled.
// Transactions are delivered one at a time in arrival order.
func (d *Dispatcher) Run(ctx context.Context, txs <-chan *domain.Transaction) {
	for {
		select {
		case tx, ok := <-txs:
			if !ok {
				return
			}
			d.Deliver(ctx, tx)
		case <-ctx.Done():
			return
		}
	}
}

// Deliver makes the single delivery attempt for one transaction and records
// the outcome. Transport and auth failures surface as status 0 with the
// error text as the response body; nothing propagates.
func (d *Dispatcher) Deliver(ctx context.Context, tx *domain.Transaction) {
	category := payload.Classify(tx)
	env, endpoint := d.engine.Build(tx)

	ctx, span := d.tracer.Start(ctx, "deliver",
		trace.WithAttributes(
			attribute.String("transaction.guid", tx.GUID),
			attribute.String("transaction.category", string(category)),
			attribute.String("endpoint", endpoint.String()),
		))
	defer span.End()

	d.logger.Info("sending transaction",
		slog.String("guid", tx.GUID),
		slog.String("category", string(category)),
		slog.String("endpoint", endpoint.String()),
		slog.String("model", env.Model))

	statusCode, body := d.post(ctx, endpoint, env)
	success := statusCode >= 200 && statusCode < 300
	span.SetAttributes(attribute.Int("http.status_code", statusCode), attribute.Bool("delivered", success))

	if success {
		d.logger.Info("transaction delivered",
			slog.String("guid", tx.GUID),
			slog.String("category", string(category)),
			slog.Int("status", statusCode))
	} else {
		d.logger.Error("transaction delivery failed",
			slog.String("guid", tx.GUID),
			slog.String("category", string(category)),
			slog.Int("status", statusCode),
			slog.String("body", truncate(body, 200)))
	}

	if err := d.recorder.RecordOutcome(tx, category, success, statusCode, body); err != nil {
		d.logger.Error("failed to record delivery outcome",
			slog.String("guid", tx.GUID), slog.String("error", err.Error()))
	}
}

// post issues the one HTTP attempt. Any error short of an HTTP response maps
// to status 0 with the error text as the body.
func (d *Dispatcher) post(ctx context.Context, endpoint payload.Endpoint, env payload.Envelope) (int, string) {
	token, err := d.tokens.Token(ctx)
	if err != nil {
		return 0, err.Error()
	}

	body, err := json.Marshal(env)
	if err != nil {
		return 0, err.Error()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpointURL(endpoint), bytes.NewReader(body))
	if err != nil {
		return 0, err.Error()
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	req.Header.Set("External-Party-ID", d.api.ClientID)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err.Error()
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err.Error()
	}
	return resp.StatusCode, string(respBody)
}

func (d *Dispatcher) endpointURL(endpoint payload.Endpoint) string {
	switch endpoint {
	case payload.EndpointCash:
		return d.api.CashURL
	case payload.EndpointRefund:
		return d.api.RefundURL
	default:
		return d.api.TransactionURL
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
