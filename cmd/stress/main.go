// Command stress fires N concurrent transfers carrying the same
// transaction_id at a running ledger API and verifies that exactly one
// applied: one 201, N-1 conflicts, and a final balance reflecting a single
// debit.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

const (
	defaultBaseURL     = "http://localhost:8080"
	defaultConcurrency = 50
)

type testConfig struct {
	BaseURL       string
	TransactionID string
	Concurrency   int
	FromID        string
	ToID          string
	Amount        string
}

type testResults struct {
	Created   int32
	Conflicts int32
	Errors    int32
	Duration  time.Duration
}

func main() {
	cfg := testConfig{}
	flag.StringVar(&cfg.BaseURL, "url", defaultBaseURL, "Base URL of the ledger API")
	flag.StringVar(&cfg.TransactionID, "txid", fmt.Sprintf("stress-%d", time.Now().UnixNano()), "Transaction id shared by all requests")
	flag.IntVar(&cfg.Concurrency, "concurrent", defaultConcurrency, "Number of concurrent requests")
	flag.StringVar(&cfg.FromID, "from", "STRESS-A", "Sender account id")
	flag.StringVar(&cfg.ToID, "to", "STRESS-B", "Receiver account id")
	flag.StringVar(&cfg.Amount, "amount", "10.00", "Transfer amount")
	skipSetup := flag.Bool("skip-setup", false, "Skip account creation (accounts already exist)")
	flag.Parse()

	fmt.Println("  TRANSACTION LEDGER API - CONCURRENT IDEMPOTENCY STRESS TEST")

	if !*skipSetup {
		fmt.Println("Creating test accounts...")
		if err := setupAccounts(cfg); err != nil {
			log.Fatalf("Failed to set up accounts: %v", err)
		}
	}

	fmt.Printf("Endpoint:       %s/transfers\n", cfg.BaseURL)
	fmt.Printf("Transaction ID: %s\n", cfg.TransactionID)
	fmt.Printf("Concurrency:    %d requests\n", cfg.Concurrency)
	fmt.Printf("Transfer:       %s from %s to %s\n", cfg.Amount, cfg.FromID, cfg.ToID)
	fmt.Println("---------------------------------------------------------------")

	results := run(cfg)
	report(cfg, results)
}

// setupAccounts creates sender and receiver through the public API. Existing
// accounts (409) are fine when re-running against the same server.
func setupAccounts(cfg testConfig) error {
	initial := decimal.RequireFromString(cfg.Amount).Mul(decimal.NewFromInt(int64(cfg.Concurrency)))
	for _, acct := range []map[string]interface{}{
		{"account_id": cfg.FromID, "owner_name": "Stress Sender", "initial_balance": initial},
		{"account_id": cfg.ToID, "owner_name": "Stress Receiver", "initial_balance": decimal.Zero},
	} {
		body, _ := json.Marshal(acct)
		resp, err := http.Post(cfg.BaseURL+"/accounts", "application/json", bytes.NewReader(body))
		if err != nil {
			return err
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusConflict {
			return fmt.Errorf("create account %v: status %d", acct["account_id"], resp.StatusCode)
		}
	}
	return nil
}

func run(cfg testConfig) testResults {
	var results testResults
	payload, _ := json.Marshal(map[string]string{
		"from_account_id": cfg.FromID,
		"to_account_id":   cfg.ToID,
		"amount":          cfg.Amount,
		"transaction_id":  cfg.TransactionID,
	})

	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := http.Post(cfg.BaseURL+"/transfers", "application/json", bytes.NewReader(payload))
			if err != nil {
				atomic.AddInt32(&results.Errors, 1)
				return
			}
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			switch resp.StatusCode {
			case http.StatusCreated:
				atomic.AddInt32(&results.Created, 1)
			case http.StatusConflict:
				atomic.AddInt32(&results.Conflicts, 1)
			default:
				atomic.AddInt32(&results.Errors, 1)
			}
		}()
	}
	wg.Wait()
	results.Duration = time.Since(start)
	return results
}

func report(cfg testConfig, r testResults) {
	fmt.Printf("Completed in %v\n", r.Duration)
	fmt.Printf("  created:   %d\n", r.Created)
	fmt.Printf("  conflicts: %d\n", r.Conflicts)
	fmt.Printf("  errors:    %d\n", r.Errors)

	if r.Created == 1 && r.Errors == 0 {
		fmt.Println("PASS: exactly one transfer applied")
	} else {
		fmt.Println("FAIL: expected exactly 1 created and 0 errors")
	}

	resp, err := http.Get(cfg.BaseURL + "/accounts/" + cfg.ToID + "/balance")
	if err != nil {
		log.Printf("balance check failed: %v", err)
		return
	}
	defer resp.Body.Close()
	var balance struct {
		AccountID string          `json:"account_id"`
		Balance   decimal.Decimal `json:"balance"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&balance); err != nil {
		log.Printf("balance decode failed: %v", err)
		return
	}
	fmt.Printf("Receiver balance after test: %s\n", balance.Balance.StringFixed(2))
}
