package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string, stderr io.Writer) bool {
	if err := fs.Parse(args); err != nil {
		return false
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(stderr, "Error: unexpected positional arguments")
		return false
	}
	return true
}

func runStatusCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("status", stderr)
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	result, err := apiCall(http.MethodGet, "/v1/sale", nil, false)
	if err != nil {
		return handleAPIError(stderr, err)
	}
	writeResult(stdout, result)
	return 0
}

func runPhaseCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("phase", stderr)
	index := fs.Int("index", -1, "phase index")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if *index < 0 {
		fmt.Fprintln(stderr, "Error: --index is required")
		return 1
	}
	result, err := apiCall(http.MethodGet, "/v1/sale/phases/"+strconv.Itoa(*index), nil, false)
	if err != nil {
		return handleAPIError(stderr, err)
	}
	writeResult(stdout, result)
	return 0
}

func runVestingCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("vesting", stderr)
	var address string
	fs.StringVar(&address, "address", "", "beneficiary address")
	index := fs.Int64("index", -1, "single position index")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	account, err := normalizeAddress(address)
	if err != nil {
		fmt.Fprintf(stderr, "Error: --address %v\n", err)
		return 1
	}
	path := "/v1/vesting/" + account
	if *index >= 0 {
		path += "/" + strconv.FormatInt(*index, 10)
	}
	result, err := apiCall(http.MethodGet, path, nil, false)
	if err != nil {
		return handleAPIError(stderr, err)
	}
	writeResult(stdout, result)
	return 0
}

func runBalanceCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("balance", stderr)
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
	result, err := apiCall(http.MethodGet, "/v1/token/balance/"+account, nil, false)
	if err != nil {
		return handleAPIError(stderr, err)
	}
	writeResult(stdout, result)
	return 0
}

func runPurchasesCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("purchases", stderr)
	var beneficiary string
	fs.StringVar(&beneficiary, "beneficiary", "", "filter by beneficiary address")
	limit := fs.Int("limit", 0, "maximum number of records")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	query := url.Values{}
	if strings.TrimSpace(beneficiary) != "" {
		account, err := normalizeAddress(beneficiary)
		if err != nil {
			fmt.Fprintf(stderr, "Error: --beneficiary %v\n", err)
			return 1
		}
		query.Set("beneficiary", account)
	}
	if *limit > 0 {
		query.Set("limit", strconv.Itoa(*limit))
	}
	path := "/v1/purchases"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	result, err := apiCall(http.MethodGet, path, nil, false)
	if err != nil {
		return handleAPIError(stderr, err)
	}
	writeResult(stdout, result)
	return 0
}
