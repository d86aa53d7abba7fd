package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"crybsale/crypto"
)

func normalizeAddress(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errors.New("is required")
	}
	addr, err := crypto.ParseAddress(trimmed)
	if err != nil {
		return "", err
	}
	return crypto.FromArray(addr.Array()).String(), nil
}

// normalizeAmount scales a decimal amount by amountDecimals into base units.
func normalizeAmount(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errors.New("is required")
	}
	amount, err := decimal.NewFromString(trimmed)
	if err != nil {
		return "", fmt.Errorf("%q is not a decimal number", trimmed)
	}
	scaled := amount.Shift(amountDecimals)
	if !scaled.IsInteger() {
		return "", fmt.Errorf("%q has more than %d fractional digits", trimmed, amountDecimals)
	}
	if scaled.Sign() <= 0 {
		return "", errors.New("must be positive")
	}
	return scaled.BigInt().String(), nil
}

func runPurchaseCommand(phase string, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet(phase, stderr)
	var amount string
	fs.StringVar(&amount, "amount", "", "currency amount to spend, in base units")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	normalized, err := normalizeAmount(amount)
	if err != nil {
		fmt.Fprintf(stderr, "Error: --amount %v\n", err)
		return 1
	}
	result, err := apiCall(http.MethodPost, "/v1/sale/"+phase, map[string]string{"amount": normalized}, true)
	if err != nil {
		return handleAPIError(stderr, err)
	}
	writeResult(stdout, result)
	return 0
}

func runReleaseCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("release", stderr)
	index := fs.Int64("index", -1, "position index")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if *index < 0 {
		fmt.Fprintln(stderr, "Error: --index is required")
		return 1
	}
	result, err := apiCall(http.MethodPost, "/v1/vesting/release", map[string]uint64{"index": uint64(*index)}, true)
	if err != nil {
		return handleAPIError(stderr, err)
	}
	writeResult(stdout, result)
	return 0
}

func runReleaseAllCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("release-all", stderr)
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	result, err := apiCall(http.MethodPost, "/v1/vesting/release-all", nil, true)
	if err != nil {
		return handleAPIError(stderr, err)
	}
	writeResult(stdout, result)
	return 0
}

func runTransferCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("transfer", stderr)
	var to, amount string
	fs.StringVar(&to, "to", "", "recipient address")
	fs.StringVar(&amount, "amount", "", "token amount in base units")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	recipient, err := normalizeAddress(to)
	if err != nil {
		fmt.Fprintf(stderr, "Error: --to %v\n", err)
		return 1
	}
	normalized, err := normalizeAmount(amount)
	if err != nil {
		fmt.Fprintf(stderr, "Error: --amount %v\n", err)
		return 1
	}
	result, err := apiCall(http.MethodPost, "/v1/token/transfer", map[string]string{"to": recipient, "amount": normalized}, true)
	if err != nil {
		return handleAPIError(stderr, err)
	}
	writeResult(stdout, result)
	return 0
}
