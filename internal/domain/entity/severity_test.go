package entity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseEICRCode(t *testing.T) {
	c, err := ParseEICRCode(" fi ")
	require.NoError(t, err)
	require.Equal(t, CodeFI, c)

	_, err = ParseEICRCode("C4")
	require.Error(t, err)
}

func TestPriorityUnmarshal(t *testing.T) {
	var p Priority
	require.NoError(t, json.Unmarshal([]byte(`"Immediate"`), &p))
	require.Equal(t, PriorityImmediate, p)

	// off-list values survive decoding
	require.NoError(t, json.Unmarshal([]byte(`"High"`), &p))
	require.Equal(t, Priority("high"), p)
	require.False(t, p.IsValid())
}

func TestEICRCodeUnmarshal(t *testing.T) {
	var c EICRCode
	require.NoError(t, json.Unmarshal([]byte(`" c2 "`), &c))
	require.Equal(t, CodeC2, c)

	require.NoError(t, json.Unmarshal([]byte(`"N/A"`), &c))
	require.Equal(t, EICRCode("N/A"), c)
	require.False(t, c.IsValid())

	require.Error(t, json.Unmarshal([]byte(`3`), &c))
}
