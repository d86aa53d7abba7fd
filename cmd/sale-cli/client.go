package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"crybsale/cmd/internal/passphrase"
)

var apiEndpoint = defaultAPIEndpoint()

// amountDecimals is the number of fractional digits accepted in --amount
// values. Zero means amounts are given in base units.
var amountDecimals = defaultAmountDecimals()

var tokenSource = passphrase.NewSource("SALE_TOKEN", "saled API token")

// apiCall is swapped out in tests.
var apiCall = doAPIRequest

var httpClient = &http.Client{Timeout: 30 * time.Second}

// apiError is returned for non-2xx responses.
type apiError struct {
	Status  int
	Kind    string
	Message string
}

func (e *apiError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Kind, e.Message)
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func defaultAPIEndpoint() string {
	if value := strings.TrimSpace(os.Getenv("SALE_API")); value != "" {
		return strings.TrimRight(value, "/")
	}
	return "http://localhost:7080"
}

func doAPIRequest(method, path string, body any, requireAuth bool) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, apiEndpoint+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if requireAuth {
		token, err := tokenSource.Get()
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &apiError{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		var decoded struct {
			Error string `json:"error"`
			Kind  string `json:"kind"`
		}
		if json.Unmarshal(data, &decoded) == nil && decoded.Error != "" {
			apiErr.Message = decoded.Error
			apiErr.Kind = decoded.Kind
		}
		return nil, apiErr
	}
	return data, nil
}

func handleAPIError(w io.Writer, err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(w, "API call failed: %v\n", err)
	return 1
}

func writeResult(w io.Writer, result []byte) {
	if len(result) == 0 {
		fmt.Fprintln(w, "null")
		return
	}
	if _, err := w.Write(result); err == nil && result[len(result)-1] != '\n' {
		fmt.Fprintln(w)
	}
}

func defaultAmountDecimals() int32 {
	raw := strings.TrimSpace(os.Getenv("SALE_DECIMALS"))
	if raw == "" {
		return 0
	}
	n, err := parseDecimals(raw)
	if err != nil {
		return 0
	}
	return n
}

func parseDecimals(raw string) (int32, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 32)
	if err != nil || n < 0 || n > 36 {
		return 0, fmt.Errorf("decimals must be an integer between 0 and 36")
	}
	return int32(n), nil
}
