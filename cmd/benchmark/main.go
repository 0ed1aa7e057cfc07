// Benchmark tool for testing Janus against labeled synthetic fraud data.
//
// Usage:
//   go run cmd/benchmark/main.go -url http://localhost:8080 -count 5000
//
// This tool:
//   1. Generates synthetic government transactions with injected fraud patterns
//      (or reads a labeled CSV of detector outputs)
//   2. Sends each transaction's module scores to Janus for aggregation
//   3. Compares Janus's verdict (case opened or not) with the fraud labels
//   4. Calculates precision, recall, F1-score, and confusion matrix
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// LabeledTransaction is one detector output row with its ground truth.
type LabeledTransaction struct {
	TransactionID string
	Amount        float64
	Department    string
	VendorID      string
	OfficialID    string
	Date          string
	Scores        map[string]float64
	IsFraud       bool
	FraudType     string
}

// ScoreRequest mirrors the Janus POST /score body.
type ScoreRequest struct {
	TransactionID string                `json:"transactionId"`
	Amount        float64               `json:"amount"`
	Department    string                `json:"department,omitempty"`
	VendorID      string                `json:"vendorId,omitempty"`
	OfficialID    string                `json:"officialId,omitempty"`
	Date          string                `json:"date,omitempty"`
	Scores        map[string]ScoreInput `json:"scores"`
}

// ScoreInput is one module's score.
type ScoreInput struct {
	Score float64 `json:"score"`
}

// ScoreResponse is the Janus POST /score response.
type ScoreResponse struct {
	TransactionID string `json:"transactionId"`
	Meta          struct {
		WeightedScore float64 `json:"weightedScore"`
		RiskLevel     string  `json:"riskLevel"`
	} `json:"meta"`
	CaseID string   `json:"caseId"`
	Tags   []string `json:"tags"`
}

// Metrics tracks benchmark results
type Metrics struct {
	TruePositives  int64 // Fraud that opened a case
	FalsePositives int64 // Non-fraud that opened a case
	TrueNegatives  int64 // Non-fraud with no case
	FalseNegatives int64 // Fraud with no case (missed!)

	TotalProcessed int64
	TotalFraud     int64
	TotalNonFraud  int64
	TotalErrors    int64

	ProcessingTimeMs int64
}

var departments = []string{
	"Public Works", "Education", "Healthcare", "Transport",
	"Rural Development", "Urban Planning", "Welfare", "Infrastructure",
}

func main() {
	// Parse flags
	csvPath := flag.String("csv", "", "Path to labeled detector-output CSV (optional; synthetic data when empty)")
	baseURL := flag.String("url", "http://localhost:8080", "Janus base URL")
	tenantID := flag.String("tenant", "benchmark-test", "Tenant ID for requests")
	count := flag.Int("count", 5000, "Synthetic transactions to generate")
	fraudRate := flag.Float64("fraud-rate", 0.1, "Fraction of synthetic transactions that are fraud")
	seed := flag.Int64("seed", 42, "Random seed for the synthetic generator")
	limit := flag.Int("limit", 0, "Maximum transactions to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	verbose := flag.Bool("verbose", false, "Print each transaction result")
	flag.Parse()

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║           JANUS BENCHMARK - Fraud Scoring Accuracy            ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	if *csvPath != "" {
		fmt.Printf("\nCSV File:    %s\n", *csvPath)
	} else {
		fmt.Printf("\nSynthetic:   %d transactions, %.0f%% fraud, seed %d\n", *count, *fraudRate*100, *seed)
	}
	fmt.Printf("Janus URL:   %s\n", *baseURL)
	fmt.Printf("Tenant ID:   %s\n", *tenantID)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Println()

	// Check Janus is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Janus not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Janus is running:")
		fmt.Println("  go run cmd/janus/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Janus is healthy")

	// Load or generate data
	var transactions []LabeledTransaction
	var err error
	if *csvPath != "" {
		fmt.Printf("\nReading labeled data from %s...\n", *csvPath)
		transactions, err = readLabeledCSV(*csvPath, *limit)
		if err != nil {
			fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
			os.Exit(1)
		}
	} else {
		transactions = generateTransactions(*count, *fraudRate, *seed)
		if *limit > 0 && len(transactions) > *limit {
			transactions = transactions[:*limit]
		}
	}
	fmt.Printf("✓ Loaded %d transactions\n", len(transactions))

	// Count fraud vs non-fraud
	fraudCount := 0
	for _, tx := range transactions {
		if tx.IsFraud {
			fraudCount++
		}
	}
	fmt.Printf("  - Fraud:     %d (%.2f%%)\n", fraudCount, 100*float64(fraudCount)/float64(len(transactions)))
	fmt.Printf("  - Non-fraud: %d (%.2f%%)\n", len(transactions)-fraudCount, 100*float64(len(transactions)-fraudCount)/float64(len(transactions)))

	// Run benchmark
	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(transactions, *baseURL, *tenantID, *workers, *verbose)
	duration := time.Since(startTime)

	// Print results
	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// generateTransactions builds a synthetic labeled dataset. Clean
// transactions get low, uncorrelated module scores; fraud transactions
// get a pattern where several detectors agree.
func generateTransactions(n int, fraudRate float64, seed int64) []LabeledTransaction {
	rng := rand.New(rand.NewSource(seed))
	modules := []string{"financial", "temporal", "network", "nlp", "citizen"}
	fraudTypes := []string{"ghost_vendor", "inflated_amount", "split_payments", "kickback_network"}

	clamp := func(v float64) float64 {
		if v < 0 {
			return 0
		}
		if v > 100 {
			return 100
		}
		return v
	}

	txs := make([]LabeledTransaction, 0, n)
	for i := 0; i < n; i++ {
		dept := departments[rng.Intn(len(departments))]
		isFraud := rng.Float64() < fraudRate

		tx := LabeledTransaction{
			TransactionID: fmt.Sprintf("TXN%06d", i+1),
			Department:    dept,
			VendorID:      fmt.Sprintf("VEN%05d", rng.Intn(170)+1),
			OfficialID:    fmt.Sprintf("OFF%04d", rng.Intn(80)+1),
			Date:          time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, rng.Intn(1095)).Format("2006-01-02"),
			Scores:        make(map[string]float64, len(modules)),
			IsFraud:       isFraud,
		}

		if isFraud {
			tx.FraudType = fraudTypes[rng.Intn(len(fraudTypes))]
			// Inflated amounts relative to the clean baseline
			tx.Amount = 200000 + rng.Float64()*800000
			// Three to five detectors fire
			firing := 3 + rng.Intn(3)
			perm := rng.Perm(len(modules))
			for j, mi := range perm {
				if j < firing {
					tx.Scores[modules[mi]] = clamp(65 + rng.NormFloat64()*12)
				} else {
					tx.Scores[modules[mi]] = clamp(30 + rng.NormFloat64()*15)
				}
			}
		} else {
			tx.Amount = 50000 + rng.Float64()*450000
			for _, m := range modules {
				tx.Scores[m] = clamp(15 + rng.NormFloat64()*12)
			}
			// Occasional single-detector noise spike
			if rng.Float64() < 0.05 {
				tx.Scores[modules[rng.Intn(len(modules))]] = clamp(60 + rng.NormFloat64()*10)
			}
		}

		txs = append(txs, tx)
	}
	return txs
}

// readLabeledCSV loads detector outputs with fraud labels. Expected
// columns: transaction_id, amount, department, vendor_id, official_id,
// date, financial, temporal, network, nlp, citizen, is_fraud.
func readLabeledCSV(path string, limit int) ([]LabeledTransaction, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}

	moduleCols := []string{"financial", "temporal", "network", "nlp", "citizen"}
	var transactions []LabeledTransaction

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		amount, _ := strconv.ParseFloat(record[colIndex["amount"]], 64)
		tx := LabeledTransaction{
			TransactionID: record[colIndex["transaction_id"]],
			Amount:        amount,
			Department:    record[colIndex["department"]],
			VendorID:      record[colIndex["vendor_id"]],
			OfficialID:    record[colIndex["official_id"]],
			Date:          record[colIndex["date"]],
			Scores:        make(map[string]float64, len(moduleCols)),
			IsFraud:       record[colIndex["is_fraud"]] == "1" || strings.EqualFold(record[colIndex["is_fraud"]], "true"),
		}
		for _, m := range moduleCols {
			if idx, ok := colIndex[m]; ok && record[idx] != "" {
				if s, err := strconv.ParseFloat(record[idx], 64); err == nil {
					tx.Scores[m] = s
				}
			}
		}

		transactions = append(transactions, tx)

		if limit > 0 && len(transactions) >= limit {
			break
		}
	}

	return transactions, nil
}

func runBenchmark(transactions []LabeledTransaction, baseURL, tenantID string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	// Create work channel
	work := make(chan LabeledTransaction, 100)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for tx := range work {
				start := time.Now()
				result, err := scoreTransaction(client, baseURL, tenantID, tx)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", tx.TransactionID, err)
					}
					continue
				}

				// Track actual labels
				if tx.IsFraud {
					atomic.AddInt64(&metrics.TotalFraud, 1)
				} else {
					atomic.AddInt64(&metrics.TotalNonFraud, 1)
				}

				// Calculate confusion matrix
				predicted := result.CaseID != ""
				actual := tx.IsFraud

				if predicted && actual {
					atomic.AddInt64(&metrics.TruePositives, 1)
				} else if predicted && !actual {
					atomic.AddInt64(&metrics.FalsePositives, 1)
				} else if !predicted && !actual {
					atomic.AddInt64(&metrics.TrueNegatives, 1)
				} else { // !predicted && actual
					atomic.AddInt64(&metrics.FalseNegatives, 1)
				}

				if verbose {
					status := "✓"
					if (predicted && !actual) || (!predicted && actual) {
						status = "✗"
					}
					fmt.Printf("%s %-10s | Dept: %-17s | Amount: $%12.2f | Fraud: %-5v | Janus: %-8s (%.1f) | Case: %v\n",
						status,
						tx.TransactionID,
						tx.Department,
						tx.Amount,
						tx.IsFraud,
						result.Meta.RiskLevel,
						result.Meta.WeightedScore,
						predicted,
					)
				}
			}
		}()
	}

	// Send work
	for _, tx := range transactions {
		work <- tx
	}
	close(work)

	// Wait for completion
	wg.Wait()

	return metrics
}

func scoreTransaction(client *http.Client, baseURL, tenantID string, tx LabeledTransaction) (*ScoreResponse, error) {
	req := ScoreRequest{
		TransactionID: tx.TransactionID,
		Amount:        tx.Amount,
		Department:    tx.Department,
		VendorID:      tx.VendorID,
		OfficialID:    tx.OfficialID,
		Date:          tx.Date,
		Scores:        make(map[string]ScoreInput, len(tx.Scores)),
	}
	for m, s := range tx.Scores {
		req.Scores[m] = ScoreInput{Score: s}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/score", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result ScoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 DATASET STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Total Fraud:      %d\n", m.TotalFraud)
	fmt.Printf("   Total Non-Fraud:  %d\n", m.TotalNonFraud)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\n📈 CONFUSION MATRIX\n")
	fmt.Println("                        Predicted")
	fmt.Println("                    CASE       NO CASE")
	fmt.Println("              ┌──────────┬──────────┐")
	fmt.Printf("   Actual  F  │ %8d │ %8d │  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Println("              ├──────────┼──────────┤")
	fmt.Printf("          NF  │ %8d │ %8d │  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
	fmt.Println("              └──────────┴──────────┘")

	// Calculate metrics
	precision := float64(0)
	if m.TruePositives+m.FalsePositives > 0 {
		precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}

	recall := float64(0)
	if m.TruePositives+m.FalseNegatives > 0 {
		recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}

	f1 := float64(0)
	if precision+recall > 0 {
		f1 = 2 * (precision * recall) / (precision + recall)
	}

	accuracy := float64(0)
	total := m.TruePositives + m.TrueNegatives + m.FalsePositives + m.FalseNegatives
	if total > 0 {
		accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(total)
	}

	fmt.Printf("\n🎯 DETECTION METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of opened cases, how many were actual fraud)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of fraud, how many opened a case)\n", recall)
	fmt.Printf("   F1-Score:   %.4f  (harmonic mean of precision & recall)\n", f1)
	fmt.Printf("   Accuracy:   %.4f  (overall correct predictions)\n", accuracy)

	// Detection rate analysis
	fmt.Printf("\n🔍 DETECTION ANALYSIS\n")
	if m.TotalFraud > 0 {
		detectionRate := float64(m.TruePositives) / float64(m.TotalFraud) * 100
		missRate := float64(m.FalseNegatives) / float64(m.TotalFraud) * 100
		fmt.Printf("   Fraud Detected:    %d / %d (%.2f%%)\n", m.TruePositives, m.TotalFraud, detectionRate)
		fmt.Printf("   Fraud Missed:      %d / %d (%.2f%%) ⚠️\n", m.FalseNegatives, m.TotalFraud, missRate)
	}
	if m.TotalNonFraud > 0 {
		falseAlarmRate := float64(m.FalsePositives) / float64(m.TotalNonFraud) * 100
		fmt.Printf("   False Alarms:      %d / %d (%.2f%%)\n", m.FalsePositives, m.TotalNonFraud, falseAlarmRate)
	}

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		tps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f tx/sec\n", tps)
	}

	// Interpretation
	fmt.Printf("\n💡 INTERPRETATION\n")
	if recall >= 0.9 {
		fmt.Println("   ✅ Excellent recall - catching most fraud")
	} else if recall >= 0.7 {
		fmt.Println("   ⚠️  Good recall - but missing some fraud")
	} else if recall >= 0.5 {
		fmt.Println("   ⚠️  Moderate recall - significant fraud being missed")
	} else {
		fmt.Println("   ❌ Poor recall - most fraud is being missed!")
	}

	if precision >= 0.5 {
		fmt.Println("   ✅ Good precision - alerts are meaningful")
	} else if precision >= 0.2 {
		fmt.Println("   ⚠️  Low precision - many false alarms")
	} else {
		fmt.Println("   ❌ Very low precision - mostly false alarms")
	}

	fmt.Println()
}
