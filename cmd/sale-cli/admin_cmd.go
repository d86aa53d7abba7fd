package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
)

const defaultWhitelistBatch = 100

type whitelistEntry struct {
	Beneficiary string `json:"beneficiary"`
	Amount      string `json:"amount"`
}

// readWhitelistCSV parses beneficiary,amount rows. A header row naming the
// beneficiary column is skipped.
func readWhitelistCSV(r io.Reader) ([]whitelistEntry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 2
	reader.TrimLeadingSpace = true
	reader.Comment = '#'
	var entries []whitelistEntry
	line := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "beneficiary") {
			continue
		}
		beneficiary, err := normalizeAddress(record[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: beneficiary %v", line, err)
		}
		amount, err := normalizeAmount(record[1])
		if err != nil {
			return nil, fmt.Errorf("row %d: amount %v", line, err)
		}
		entries = append(entries, whitelistEntry{Beneficiary: beneficiary, Amount: amount})
	}
	if len(entries) == 0 {
		return nil, errors.New("no whitelist entries found")
	}
	return entries, nil
}

func runWhitelistCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("whitelist", stderr)
	var file string
	fs.StringVar(&file, "file", "", "CSV file of beneficiary,amount rows")
	batch := fs.Int("batch", defaultWhitelistBatch, "entries per request")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if strings.TrimSpace(file) == "" {
		fmt.Fprintln(stderr, "Error: --file is required")
		return 1
	}
	if *batch <= 0 {
		fmt.Fprintln(stderr, "Error: --batch must be positive")
		return 1
	}
	f, err := os.Open(file)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer f.Close()
	entries, err := readWhitelistCSV(f)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	for start := 0; start < len(entries); start += *batch {
		end := start + *batch
		if end > len(entries) {
			end = len(entries)
		}
		result, err := apiCall(http.MethodPost, "/v1/admin/whitelist", map[string]any{"entries": entries[start:end]}, true)
		if err != nil {
			fmt.Fprintf(stderr, "Batch %d-%d failed; rows before %d were applied\n", start+1, end, start+1)
			return handleAPIError(stderr, err)
		}
		writeResult(stdout, result)
	}
	return 0
}

func runExcludeCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("exclude", stderr)
	var address, file string
	fs.StringVar(&address, "address", "", "comma separated addresses")
	fs.StringVar(&file, "file", "", "file with one address per line")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	var raw []string
	if strings.TrimSpace(address) != "" {
		raw = append(raw, strings.Split(address, ",")...)
	}
	if strings.TrimSpace(file) != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			raw = append(raw, line)
		}
	}
	if len(raw) == 0 {
		fmt.Fprintln(stderr, "Error: --address or --file is required")
		return 1
	}
	accounts := make([]string, 0, len(raw))
	for _, entry := range raw {
		account, err := normalizeAddress(entry)
		if err != nil {
			fmt.Fprintf(stderr, "Error: address %q %v\n", strings.TrimSpace(entry), err)
			return 1
		}
		accounts = append(accounts, account)
	}
	result, err := apiCall(http.MethodPost, "/v1/admin/token/exclude", map[string]any{"accounts": accounts}, true)
	if err != nil {
		return handleAPIError(stderr, err)
	}
	writeResult(stdout, result)
	return 0
}

func runIncludeCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("include", stderr)
	var address string
	fs.StringVar(&address, "address", "", "account address")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	account, err := normalizeAddress(address)
	if err != nil {
		fmt.Fprintf(stderr, "Error: --address %v\n", err)
		return 1
	}
	result, err := apiCall(http.MethodPost, "/v1/admin/token/include", map[string]string{"account": account}, true)
	if err != nil {
		return handleAPIError(stderr, err)
	}
	writeResult(stdout, result)
	return 0
}

func runWithdrawRemainingCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("withdraw-remaining", stderr)
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	result, err := apiCall(http.MethodPost, "/v1/admin/withdraw-remaining", nil, true)
	if err != nil {
		return handleAPIError(stderr, err)
	}
	writeResult(stdout, result)
	return 0
}

func runSetAvailableCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("set-available", stderr)
	var amount string
	fs.StringVar(&amount, "amount", "", "new inventory ceiling in base units")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	trimmed := strings.TrimSpace(amount)
	if trimmed != "0" {
		normalized, err := normalizeAmount(trimmed)
		if err != nil {
			fmt.Fprintf(stderr, "Error: --amount %v\n", err)
			return 1
		}
		trimmed = normalized
	}
	result, err := apiCall(http.MethodPost, "/v1/admin/available-for-sale", map[string]string{"amount": trimmed}, true)
	if err != nil {
		return handleAPIError(stderr, err)
	}
	writeResult(stdout, result)
	return 0
}

func runExportCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("export", stderr)
	var format, out string
	fs.StringVar(&format, "format", "csv", "csv, jsonl or parquet")
	fs.StringVar(&out, "out", "", "output file (stdout when empty; required for parquet)")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case "csv", "jsonl", "parquet":
	default:
		fmt.Fprintf(stderr, "Error: unsupported --format %q\n", format)
		return 1
	}
	if format == "parquet" && strings.TrimSpace(out) == "" {
		fmt.Fprintln(stderr, "Error: --out is required for parquet exports")
		return 1
	}
	data, err := apiCall(http.MethodGet, "/v1/admin/exports/positions?format="+url.QueryEscape(format), nil, true)
	if err != nil {
		return handleAPIError(stderr, err)
	}
	if strings.TrimSpace(out) == "" {
		_, _ = stdout.Write(data)
		return 0
	}
	if err := os.WriteFile(out, data, 0o600); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "wrote %d bytes to %s\n", len(data), out)
	return 0
}
