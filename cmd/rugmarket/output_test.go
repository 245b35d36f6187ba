package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rugmarket/rugmarket/service/market"
)

func TestApplyJQFilter(t *testing.T) {
	markets := []market.Market{
		{ContractAddress: "0xaaa", YesPercentage: 70, TotalStaked: 50000},
		{ContractAddress: "0xbbb", YesPercentage: 20, TotalStaked: 10000},
	}

	tests := []struct {
		name    string
		filter  string
		want    []interface{}
		wantErr bool
	}{
		{
			name:   "select high yes percentage",
			filter: `.[] | select(.yes_percentage > 50) | .contract_address`,
			want:   []interface{}{"0xaaa"},
		},
		{
			name:   "map addresses",
			filter: `[.[].contract_address]`,
			want:   []interface{}{[]interface{}{"0xaaa", "0xbbb"}},
		},
		{
			name:   "length",
			filter: `length`,
			want:   []interface{}{2},
		},
		{
			name:    "invalid filter",
			filter:  `.[`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := applyJQFilter(markets, tt.filter)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Len(t, results, len(tt.want))
			for i, want := range tt.want {
				// gojq returns numbers as int or float64 depending on the
				// expression, so compare through JSON
				wantJSON, _ := json.Marshal(want)
				gotJSON, _ := json.Marshal(results[i])
				assert.JSONEq(t, string(wantJSON), string(gotJSON))
			}
		})
	}
}

func TestPrintOutput(t *testing.T) {
	m := market.Market{ContractAddress: "0xaaa", YesPercentage: 45, NoPercentage: 55}

	t.Run("plain JSON", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, printOutput(&buf, m, ""))

		var decoded market.Market
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, m.ContractAddress, decoded.ContractAddress)
	})

	t.Run("with jq filter", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, printOutput(&buf, m, ".yes_percentage"))
		assert.Equal(t, "45\n", buf.String())
	})
}
