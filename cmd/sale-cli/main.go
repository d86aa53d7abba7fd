package main

import (
	"fmt"
	"io"
	"os"
	"strings"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	args, err := applyGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if len(args) == 0 {
		fmt.Fprintln(stderr, usage())
		return 1
	}
	rest := args[1:]
	switch args[0] {
	case "status":
		return runStatusCommand(rest, stdout, stderr)
	case "phase":
		return runPhaseCommand(rest, stdout, stderr)
	case "vesting":
		return runVestingCommand(rest, stdout, stderr)
	case "balance":
		return runBalanceCommand(rest, stdout, stderr)
	case "purchases":
		return runPurchasesCommand(rest, stdout, stderr)
	case "presale", "public", "buy":
		return runPurchaseCommand(args[0], rest, stdout, stderr)
	case "release":
		return runReleaseCommand(rest, stdout, stderr)
	case "release-all":
		return runReleaseAllCommand(rest, stdout, stderr)
	case "transfer":
		return runTransferCommand(rest, stdout, stderr)
	case "whitelist":
		return runWhitelistCommand(rest, stdout, stderr)
	case "exclude":
		return runExcludeCommand(rest, stdout, stderr)
	case "include":
		return runIncludeCommand(rest, stdout, stderr)
	case "withdraw-remaining":
		return runWithdrawRemainingCommand(rest, stdout, stderr)
	case "set-available":
		return runSetAvailableCommand(rest, stdout, stderr)
	case "export":
		return runExportCommand(rest, stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprintln(stdout, usage())
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		fmt.Fprintln(stderr, usage())
		return 1
	}
}

// applyGlobalFlags consumes leading --api and --decimals flags.
func applyGlobalFlags(args []string) ([]string, error) {
	for len(args) > 0 {
		arg := args[0]
		switch {
		case arg == "--api":
			if len(args) < 2 {
				return nil, fmt.Errorf("--api requires a value")
			}
			apiEndpoint = strings.TrimRight(strings.TrimSpace(args[1]), "/")
			args = args[2:]
		case strings.HasPrefix(arg, "--api="):
			apiEndpoint = strings.TrimRight(strings.TrimSpace(strings.TrimPrefix(arg, "--api=")), "/")
			args = args[1:]
		case arg == "--decimals":
			if len(args) < 2 {
				return nil, fmt.Errorf("--decimals requires a value")
			}
			n, err := parseDecimals(args[1])
			if err != nil {
				return nil, err
			}
			amountDecimals = n
			args = args[2:]
		default:
			return args, nil
		}
	}
	return args, nil
}

func usage() string {
	return strings.TrimSpace(`Usage:
  sale-cli [--api URL] [--decimals N] <command> [flags]

Amounts are base units unless --decimals (or SALE_DECIMALS) is set, in which
case they are decimal values scaled by 10^N.

Read commands:
  status              Show phases, totals and remaining inventory
  phase               Show one phase (--index)
  vesting             List vesting positions (--address [--index])
  balance             Show token and currency balances (--address)
  purchases           List journaled purchases ([--beneficiary] [--limit])

Buyer commands (SALE_TOKEN):
  presale|public|buy  Purchase tokens (--amount)
  release             Release one vesting position (--index)
  release-all         Release every vesting position
  transfer            Transfer tokens (--to --amount)

Owner commands (SALE_TOKEN with sale:admin scope):
  whitelist           Grant positions from a CSV of beneficiary,amount (--file [--batch])
  exclude             Exempt accounts from the token tax (--address | --file)
  include             Restore the token tax for an account (--address)
  withdraw-remaining  Return unsold inventory to the treasury
  set-available       Update the inventory ceiling (--amount)
  export              Download a positions snapshot (--format csv|jsonl|parquet --out)
`)
}
