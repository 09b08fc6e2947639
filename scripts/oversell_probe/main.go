// Command oversell_probe hammers the enrollment endpoint with concurrent
// submissions targeting one offering and verifies the enrolled count never
// exceeds capacity. Run it against a staging deployment with a pool of
// student tokens.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

type tokenFile struct {
	Tokens []string `json:"tokens"`
}

type attemptResult struct {
	Status   int
	Code     string
	Duration time.Duration
	Err      error
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func main() {
	var (
		base       string
		offeringID string
		tokensPath string
		capacity   int
		timeout    time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&offeringID, "offering", "", "Offering ID to contend on")
	flag.StringVar(&tokensPath, "tokens", "scripts/oversell_probe/tokens.json", "Path to JSON file with student tokens")
	flag.IntVar(&capacity, "capacity", 0, "Expected offering capacity")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "HTTP client timeout")
	flag.Parse()

	if offeringID == "" {
		log.Fatal("-offering is required")
	}
	tokens, err := loadTokens(tokensPath)
	if err != nil {
		log.Fatalf("failed to load tokens: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	results := make([]attemptResult, len(tokens))

	var wg sync.WaitGroup
	for i, token := range tokens {
		wg.Add(1)
		go func(idx int, tok string) {
			defer wg.Done()
			results[idx] = submit(client, base, offeringID, tok)
		}(i, token)
	}
	wg.Wait()

	committed := 0
	conflicts := 0
	failures := 0
	for _, res := range results {
		switch {
		case res.Err != nil:
			failures++
		case res.Status == http.StatusCreated:
			committed++
		case res.Code == "INSUFFICIENT_SEATS" || res.Code == "DUPLICATE_ENROLLMENT":
			conflicts++
		default:
			failures++
		}
	}

	printReport(results, committed, conflicts, failures)

	if capacity > 0 && committed > capacity {
		fmt.Printf("OVERSELL: %d committed against capacity %d\n", committed, capacity)
		os.Exit(1)
	}
	if failures > 0 {
		os.Exit(1)
	}
}

func loadTokens(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file tokenFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if len(file.Tokens) == 0 {
		return nil, fmt.Errorf("no tokens defined in %s", path)
	}
	return file.Tokens, nil
}

func submit(client *http.Client, base, offeringID, token string) attemptResult {
	payload, _ := json.Marshal(map[string]interface{}{"offering_ids": []string{offeringID}})
	url := strings.TrimRight(base, "/") + "/api/v1/enrollments"

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return attemptResult{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return attemptResult{Err: err}
	}
	defer resp.Body.Close()

	result := attemptResult{Status: resp.StatusCode, Duration: time.Since(start)}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		result.Err = fmt.Errorf("read body: %w", err)
		return result
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil {
		result.Code = env.Error.Code
	}
	return result
}

func printReport(results []attemptResult, committed, conflicts, failures int) {
	fmt.Println("Oversell Probe Report")
	fmt.Println("=====================")
	for i, res := range results {
		status := "OK"
		if res.Err != nil {
			status = "ERROR"
		} else if res.Status != http.StatusCreated {
			status = "REJECTED"
		}
		fmt.Printf("[%s] attempt %d: status=%d code=%s (%s)\n", status, i+1, res.Status, res.Code, res.Duration)
		if res.Err != nil {
			fmt.Printf("  Error: %v\n", res.Err)
		}
	}
	fmt.Printf("Committed: %d, Seat/duplicate rejections: %d, Failures: %d\n", committed, conflicts, failures)
}
