package exports

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// PositionsJSONL builds a JSON Lines export of the supplied rows and returns
// the serialised payload alongside a checksum.
func PositionsJSONL(rows []Row) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	for _, row := range rows {
		payload := map[string]interface{}{
			"beneficiary":   row.Beneficiary,
			"index":         row.Index,
			"origin":        row.Origin,
			"amount":        row.Amount,
			"totalClaimed":  row.TotalClaimed,
			"releasable":    row.Releasable,
			"startTime":     row.StartTime,
			"cliff":         row.Cliff,
			"duration":      row.Duration,
			"periodClaimed": row.PeriodClaimed,
			"createdAt":     row.CreatedAt,
		}
		if err := encoder.Encode(payload); err != nil {
			return nil, "", err
		}
	}
	data := buffer.Bytes()
	checksum := sha256.Sum256(data)
	return data, hex.EncodeToString(checksum[:]), nil
}
