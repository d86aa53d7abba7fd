package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddressRoundTrip(t *testing.T) {
	raw := bytes.Repeat([]byte{0x42}, 20)
	addr, err := NewAddress(CrybPrefix, raw)
	require.NoError(t, err)

	encoded := addr.String()
	require.Contains(t, encoded, "cryb1")

	decoded, err := DecodeAddress(encoded)
	require.NoError(t, err)
	require.Equal(t, raw, decoded.Bytes())
	require.Equal(t, CrybPrefix, decoded.Prefix())
}

func TestParseAddressAcceptsHex(t *testing.T) {
	addr, err := ParseAddress("0x00000000000000000000000000000000000000aa")
	require.NoError(t, err)
	arr := addr.Array()
	require.Equal(t, byte(0xaa), arr[19])

	again, err := ParseAddress(addr.String())
	require.NoError(t, err)
	require.Equal(t, arr, again.Array())
}

func TestParseAddressRejectsForeignPrefix(t *testing.T) {
	foreign, err := NewAddress("atom", bytes.Repeat([]byte{1}, 20))
	require.NoError(t, err)
	_, err = ParseAddress(foreign.String())
	require.Error(t, err)

	_, err = ParseAddress("0x1234")
	require.Error(t, err)
	_, err = NewAddress(CrybPrefix, []byte{1, 2})
	require.Error(t, err)
}
