// Command sendtest posts one canned sale transaction to the ingestion API so
// the credentials, endpoints, and payload shape can be verified without a
// register attached. It builds the payload through the live transformation
// engine; the wire shape cannot drift from what the bridge sends.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/nsrpetrol/pos-bridge/internal/config"
	"github.com/nsrpetrol/pos-bridge/internal/domain"
	"github.com/nsrpetrol/pos-bridge/internal/identity"
	"github.com/nsrpetrol/pos-bridge/internal/payload"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML config file")
	terminal := flag.String("terminal", "02", "terminal number for the test transaction")
	seq := flag.String("seq", "4215", "sequence number for the test transaction")
	operator := flag.String("operator", "OP15", "operator id for the test transaction")
	flag.Parse()

	_ = godotenv.Load()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	tx := testTransaction(cfg.Store.ID, *terminal, *seq, *operator)
	env, endpoint := payload.NewEngine().Build(tx)

	body, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal payload: %v", err)
	}
	fmt.Printf("Sending %s payload for transaction %s (%s):\n%s\n", env.Model, tx.Seq, payload.Classify(tx), body)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tokens := identity.New(cfg.API.IdentityURL, cfg.API.ClientID, cfg.API.ClientSecret, logger)
	token, err := tokens.Token(ctx)
	if err != nil {
		log.Fatalf("Failed to acquire token: %v", err)
	}

	url := cfg.API.TransactionURL
	switch endpoint {
	case payload.EndpointCash:
		url = cfg.API.CashURL
	case payload.EndpointRefund:
		url = cfg.API.RefundURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		log.Fatalf("Failed to build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("External-Party-ID", cfg.API.ClientID)
	req.Header.Set("Content-Type", "application/json")

	resp, err := (&http.Client{Timeout: cfg.API.Timeout}).Do(req)
	if err != nil {
		log.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	fmt.Printf("Status: %d\nResponse: %s\n", resp.StatusCode, respBody)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		os.Exit(1)
	}
}

// testTransaction reproduces a known-good register receipt: two items, one
// promotion, cash payment with change.
func testTransaction(store, terminal, seq, operator string) *domain.Transaction {
	utc := time.Now().UTC().Format(domain.TimeLayout)
	summary := []domain.SummaryEntry{
		{Description: "Subtotal", Key: "SUBTOTAL", Amount: decimal.RequireFromString("3.51")},
		{Description: "Tax", Key: "TAX", Amount: decimal.RequireFromString("0.11")},
		{Description: "Total Due", Key: "TOTAL DUE", Amount: decimal.RequireFromString("2.84")},
	}
	summaryMap := make(map[string]decimal.Decimal, len(summary))
	for _, e := range summary {
		summaryMap[e.Key] = e.Amount
	}
	return &domain.Transaction{
		GUID:      domain.NewGUID(store, terminal, seq, utc),
		LocalTime: utc,
		UTCTime:   utc,
		Store:     store,
		Terminal:  terminal,
		Seq:       seq,
		Type:      "Sale",
		Items: []domain.LineEvent{
			{Name: "DM Banana24ct", UnitPrice: decimal.RequireFromString("0.89"), Quantity: 2, Kind: domain.Add},
			{Name: "B&M PT Casino NICE Uprt", UnitPrice: decimal.RequireFromString("1.73"), Quantity: 1, Kind: domain.Add},
			{Name: "PROMO EVD Bananas", UnitPrice: decimal.RequireFromString("0.78"), Quantity: 1, Kind: domain.Add},
		},
		Payments: []domain.Payment{
			{Amount: decimal.RequireFromString("5.00"), TenderDescription: "CASH"},
		},
		Summary:             summary,
		SummaryMap:          summaryMap,
		EmployeeID:          operator,
		EmployeeName:        operator,
		LocationDescription: "Store " + store,
	}
}
