package core

import (
	"errors"

	"crybsale/native/bank"
	"crybsale/native/sale"
	"crybsale/native/token"
)

// ErrorKind classifies errors surfaced by runtime calls, including failures
// raised by the token and currency ledgers during a purchase.
func ErrorKind(err error) sale.Kind {
	if err == nil {
		return sale.KindInternal
	}
	switch {
	case errors.Is(err, token.ErrNotOwner):
		return sale.KindAuthorization
	case errors.Is(err, token.ErrExceedsBalance),
		errors.Is(err, token.ErrExceedsAllowance),
		errors.Is(err, bank.ErrInsufficientBalance):
		return sale.KindCapacity
	case errors.Is(err, token.ErrAllowanceBelowZero),
		errors.Is(err, token.ErrTransferToZero),
		errors.Is(err, token.ErrTransferFromZero),
		errors.Is(err, token.ErrApproveToZero),
		errors.Is(err, token.ErrApproveFromZero),
		errors.Is(err, token.ErrNegativeAmount),
		errors.Is(err, bank.ErrInvalidAmount),
		errors.Is(err, bank.ErrZeroAccount),
		errors.Is(err, sale.ErrUnknownPhase):
		return sale.KindInput
	}
	return sale.Classify(err)
}
