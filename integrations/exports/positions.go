package exports

import (
	"math/big"
	"time"

	"crybsale/crypto"
	"crybsale/native/sale"
)

// Row is the flattened export view of one vesting position.
type Row struct {
	Beneficiary   string
	Index         uint64
	Origin        string
	Amount        string
	TotalClaimed  string
	Releasable    string
	StartTime     int64
	Cliff         int64
	Duration      int64
	PeriodClaimed int64
	CreatedAt     int64
}

// Rows flattens positions and computes their releasable amount at now.
func Rows(positions []*sale.Position, now int64) []Row {
	out := make([]Row, 0, len(positions))
	for _, pos := range positions {
		if pos == nil {
			continue
		}
		out = append(out, Row{
			Beneficiary:   crypto.FromArray(pos.Beneficiary).String(),
			Index:         pos.Index,
			Origin:        string(pos.Origin),
			Amount:        amountString(pos.Amount),
			TotalClaimed:  amountString(pos.TotalClaimed),
			Releasable:    amountString(sale.Releasable(pos, now)),
			StartTime:     pos.StartTime,
			Cliff:         pos.Cliff,
			Duration:      pos.Duration,
			PeriodClaimed: pos.PeriodClaimed,
			CreatedAt:     pos.CreatedAt,
		})
	}
	return out
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func unixRFC3339(ts int64) string {
	if ts == 0 {
		return ""
	}
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}
