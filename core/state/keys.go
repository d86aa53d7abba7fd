package state

import "encoding/binary"

var (
	saleTotalsKey        = hashKey([]byte("sale/totals"))
	saleBeneficiariesKey = hashKey([]byte("sale/beneficiaries"))
	tokenSupplyKey       = hashKey([]byte("token/supply"))

	salePositionPrefix   = []byte("sale/position/")
	saleCountPrefix      = []byte("sale/count/")
	saleAllocationPrefix = []byte("sale/allocation/")
	tokenBalancePrefix   = []byte("token/balance/")
	tokenAllowancePrefix = []byte("token/allowance/")
	tokenExcludedPrefix  = []byte("token/excluded/")
	bankBalancePrefix    = []byte("bank/balance/")
)

func salePositionKey(beneficiary [20]byte, index uint64) []byte {
	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], index)
	return hashKey(salePositionPrefix, beneficiary[:], idx[:])
}

func saleCountKey(beneficiary [20]byte) []byte {
	return hashKey(saleCountPrefix, beneficiary[:])
}

func saleAllocationKey(beneficiary [20]byte) []byte {
	return hashKey(saleAllocationPrefix, beneficiary[:])
}

func tokenBalanceKey(account [20]byte) []byte {
	return hashKey(tokenBalancePrefix, account[:])
}

func tokenAllowanceKey(owner, spender [20]byte) []byte {
	return hashKey(tokenAllowancePrefix, owner[:], spender[:])
}

func tokenExcludedKey(account [20]byte) []byte {
	return hashKey(tokenExcludedPrefix, account[:])
}

func bankBalanceKey(account [20]byte) []byte {
	return hashKey(bankBalancePrefix, account[:])
}
