package sale

import "errors"

// Revert messages are part of the public contract with callers and must not change.
var (
	ErrSaleNotStarted       = errors.New("sale not started")
	ErrSaleEnded            = errors.New("sale ended")
	ErrPresaleNotStarted    = errors.New("presale not started")
	ErrPresaleEnded         = errors.New("presale ended")
	ErrPublicNotStarted     = errors.New("public sale not started")
	ErrPublicEnded          = errors.New("public sale ended")
	ErrZeroAmount           = errors.New("cannot accept 0")
	ErrSoldOut              = errors.New("sold out")
	ErrMaxAllocation        = errors.New("max allocation violation")
	ErrSaleNotFinished      = errors.New("sale not finished yet")
	ErrNotOwner             = errors.New("Ownable: caller is not the owner")
	ErrPositionNotFound     = errors.New("vesting position not found")
	ErrLengthMismatch       = errors.New("beneficiaries and amounts length mismatch")
	ErrAmountOverflow       = errors.New("amount overflow")
	ErrCeilingBelowSold     = errors.New("ceiling below sold amount")
	ErrEntryPointDisabled   = errors.New("entry point disabled for sale layout")
	ErrZeroBeneficiary      = errors.New("beneficiary is the zero address")
	errNilState             = errors.New("sale engine: state not configured")
	errNilToken             = errors.New("sale engine: token not configured")
	errNilCurrency          = errors.New("sale engine: currency not configured")
	errTotalsNotInitialised = errors.New("sale engine: totals not initialised")
)

// Kind groups errors by how a caller is expected to react.
type Kind uint8

const (
	// KindInternal covers storage faults and misconfiguration.
	KindInternal Kind = iota
	// KindTiming means the window is not open; the caller must wait or abandon.
	KindTiming
	// KindCapacity means the request exceeds a cap; a smaller amount may succeed.
	KindCapacity
	// KindAuthorization means the caller may not perform the operation.
	KindAuthorization
	// KindInput means the request itself is malformed.
	KindInput
)

func (k Kind) String() string {
	switch k {
	case KindTiming:
		return "timing"
	case KindCapacity:
		return "capacity"
	case KindAuthorization:
		return "authorization"
	case KindInput:
		return "input"
	default:
		return "internal"
	}
}

var kinds = map[error]Kind{
	ErrSaleNotStarted:     KindTiming,
	ErrSaleEnded:          KindTiming,
	ErrPresaleNotStarted:  KindTiming,
	ErrPresaleEnded:       KindTiming,
	ErrPublicNotStarted:   KindTiming,
	ErrPublicEnded:        KindTiming,
	ErrSaleNotFinished:    KindTiming,
	ErrSoldOut:            KindCapacity,
	ErrMaxAllocation:      KindCapacity,
	ErrAmountOverflow:     KindCapacity,
	ErrNotOwner:           KindAuthorization,
	ErrZeroAmount:         KindInput,
	ErrPositionNotFound:   KindInput,
	ErrLengthMismatch:     KindInput,
	ErrCeilingBelowSold:   KindInput,
	ErrEntryPointDisabled: KindInput,
	ErrZeroBeneficiary:    KindInput,
}

// Classify maps an error returned by the engine to its Kind. Wrapped errors
// are unwrapped with errors.Is.
func Classify(err error) Kind {
	if err == nil {
		return KindInternal
	}
	if kind, ok := kinds[err]; ok {
		return kind
	}
	for sentinel, kind := range kinds {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindInternal
}
