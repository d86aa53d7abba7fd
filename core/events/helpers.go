package events

import (
	"math/big"
	"strconv"

	"crybsale/crypto"
)

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func intToString(v int64) string {
	return strconv.FormatInt(v, 10)
}

func formatAddress(raw [20]byte) string {
	return crypto.FromArray(raw).String()
}
