package exports

import (
	"bytes"
	"encoding/json"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"crybsale/native/sale"
)

func samplePositions() []*sale.Position {
	var alice, bob [20]byte
	alice[19] = 1
	bob[19] = 2
	return []*sale.Position{
		{
			Beneficiary:  alice,
			Index:        0,
			Amount:       big.NewInt(200),
			TotalClaimed: big.NewInt(40),
			StartTime:    1_000,
			Duration:     1_000,
			Origin:       sale.OriginPresale,
			CreatedAt:    900,
		},
		{
			Beneficiary:  bob,
			Index:        0,
			Amount:       big.NewInt(300),
			TotalClaimed: big.NewInt(0),
			StartTime:    1_000,
			Duration:     1_000,
			Origin:       sale.OriginWhitelist,
		},
		nil,
	}
}

func TestRowsComputeReleasable(t *testing.T) {
	rows := Rows(samplePositions(), 1_500)
	require.Len(t, rows, 2)
	require.Equal(t, "60", rows[0].Releasable)
	require.Equal(t, "150", rows[1].Releasable)
	require.True(t, strings.HasPrefix(rows[0].Beneficiary, "cryb1"))
}

func TestPositionsCSV(t *testing.T) {
	data, checksum, err := PositionsCSV(Rows(samplePositions(), 1_500))
	require.NoError(t, err)
	require.Len(t, checksum, 64)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, strings.Join(csvHeader, ","), lines[0])
	require.Contains(t, lines[1], ",presale,200,40,60,")
}

func TestPositionsJSONL(t *testing.T) {
	data, checksum, err := PositionsJSONL(Rows(samplePositions(), 1_500))
	require.NoError(t, err)
	require.NotEmpty(t, checksum)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &decoded))
	require.Equal(t, "whitelist", decoded["origin"])
	require.Equal(t, "150", decoded["releasable"])
}

func TestWritePositionsParquet(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePositionsParquet(&buf, Rows(samplePositions(), 1_500)))
	data := buf.Bytes()
	require.Greater(t, len(data), 8)
	require.Equal(t, "PAR1", string(data[:4]))
	require.Equal(t, "PAR1", string(data[len(data)-4:]))
}
