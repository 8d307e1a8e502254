package calc

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerce(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  float64
	}{
		{"dot decimal", "12.5", 12.5},
		{"comma decimal", "12,5", 12.5},
		{"integer", "100", 100},
		{"surrounding spaces", "  7,25 ", 7.25},
		{"empty", "", 0},
		{"garbage", "abc", 0},
		{"two separators", "1.234,5", 1.234},
		{"unit suffix", "12 u", 12},
		{"leading fraction", ",75", 0.75},
		{"trailing point", "5.", 5},
		{"exponent", "1e3", 1000},
		{"dangling exponent", "2e", 2},
		{"overflow", "1e400", 0},
		{"sign only", "-", 0},
		{"NaN text", "NaN", 0},
		{"infinity text", "Inf", 0},
		{"negative", "-3,5", -3.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Coerce(tt.input))
		})
	}
}

func TestFinite(t *testing.T) {
	assert.Equal(t, 0.0, Finite(math.NaN()))
	assert.Equal(t, 0.0, Finite(math.Inf(1)))
	assert.Equal(t, 0.0, Finite(math.Inf(-1)))
	assert.Equal(t, 4.2, Finite(4.2))
}

func TestNumber_UnmarshalJSON(t *testing.T) {
	var payload struct {
		Qty   Number `json:"qty"`
		Price Number `json:"price"`
		Tax   Number `json:"tax"`
		Bad   Number `json:"bad"`
		Null  Number `json:"null"`
	}

	err := json.Unmarshal([]byte(`{"qty": 2, "price": "100,50", "tax": "21", "bad": "x", "null": null}`), &payload)
	require.NoError(t, err)

	assert.Equal(t, Number(2), payload.Qty)
	assert.Equal(t, Number(100.5), payload.Price)
	assert.Equal(t, Number(21), payload.Tax)
	assert.Equal(t, Number(0), payload.Bad)
	assert.Equal(t, Number(0), payload.Null)
}

func TestNumber_MarshalJSON(t *testing.T) {
	out, err := json.Marshal(struct {
		V Number `json:"v"`
	}{V: 12.75})
	require.NoError(t, err)
	assert.JSONEq(t, `{"v": 12.75}`, string(out))
}
