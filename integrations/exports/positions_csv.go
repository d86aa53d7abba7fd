package exports

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"strconv"
)

var csvHeader = []string{
	"beneficiary", "index", "origin", "amount", "total_claimed", "releasable",
	"start_time", "cliff_seconds", "duration_seconds", "period_claimed_seconds", "created_at",
}

// PositionsCSV builds a CSV export of the supplied rows and returns the
// serialised data alongside a SHA-256 checksum of the payload.
func PositionsCSV(rows []Row) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	writer := csv.NewWriter(buffer)
	if err := writer.Write(csvHeader); err != nil {
		return nil, "", err
	}
	for _, row := range rows {
		record := []string{
			row.Beneficiary,
			strconv.FormatUint(row.Index, 10),
			row.Origin,
			row.Amount,
			row.TotalClaimed,
			row.Releasable,
			unixRFC3339(row.StartTime),
			strconv.FormatInt(row.Cliff, 10),
			strconv.FormatInt(row.Duration, 10),
			strconv.FormatInt(row.PeriodClaimed, 10),
			unixRFC3339(row.CreatedAt),
		}
		if err := writer.Write(record); err != nil {
			return nil, "", err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, "", err
	}
	data := buffer.Bytes()
	checksum := sha256.Sum256(data)
	return data, hex.EncodeToString(checksum[:]), nil
}
