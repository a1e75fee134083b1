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

	"github.com/google/uuid"
)

// 簡單的壓測工具: 對 REST 介面灌存款請求，量 TPS
func main() {
	target := flag.String("target", "http://localhost:8080", "ledger base URL")
	total := flag.Int("total", 100000, "total requests")
	concurrency := flag.Int("concurrency", 200, "concurrent requests")
	ownerID := flag.String("owner", "loadtest", "owner id for the test account")
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}

	// 先建立一個測試帳戶
	accountID, err := createAccount(client, *target, *ownerID)
	if err != nil {
		log.Fatalf("create account failed: %v", err)
	}
	log.Printf("test account: %s", accountID)

	var wg sync.WaitGroup
	wg.Add(*total)
	sem := make(chan struct{}, *concurrency)
	var failed atomic.Int64

	startTime := time.Now()

	for i := 0; i < *total; i++ {
		sem <- struct{}{}

		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			body, _ := json.Marshal(map[string]any{
				"refId":     uuid.NewString(),
				"userId":    *ownerID,
				"accountId": accountID,
				"amount":    "1.0000",
			})
			resp, err := client.Post(*target+"/api/transactions/deposit", "application/json", bytes.NewReader(body))
			if err != nil {
				failed.Add(1)
				if idx%10000 == 0 {
					log.Printf("deposit %d failed: %v", idx, err)
				}
				return
			}
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				failed.Add(1)
			}
		}(i)
	}

	wg.Wait()

	elapsed := time.Since(startTime)
	fmt.Printf("Completed %d requests in %v (%d failed)\n", *total, elapsed, failed.Load())
	fmt.Printf("TPS: %.2f\n", float64(*total)/elapsed.Seconds())
}

func createAccount(client *http.Client, target, ownerID string) (string, error) {
	body, _ := json.Marshal(map[string]string{"userId": ownerID})
	resp, err := client.Post(target+"/api/accounts", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var out struct {
		Account struct {
			ID string `json:"id"`
		} `json:"account"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Account.ID, nil
}
