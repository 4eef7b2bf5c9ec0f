package emt

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFlexInt_Decode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"integer", `{"v": 45}`, 45},
		{"numeric string", `{"v": "45"}`, 45},
		{"padded string", `{"v": " 45 "}`, 45},
		{"zero", `{"v": 0}`, 0},
		{"garbage string", `{"v": ">>20min"}`, 0},
		{"null", `{"v": null}`, 0},
		{"object", `{"v": {}}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out struct {
				V FlexInt `json:"v"`
			}
			require.NoError(t, json.Unmarshal([]byte(tt.in), &out))
			require.Equal(t, tt.want, int(out.V))
		})
	}
}

func TestBusArrival_DecodeMixedEstimates(t *testing.T) {
	payload := `[
		{"line":"27","stop":"1042","isHead":"False","destination":"Plaza Castilla","estimateArrive":"45","DistanceBus":320},
		{"line":"N4","stop":"1042","isHead":"True","destination":"Cibeles","estimateArrive":45,"DistanceBus":90,"bus":4311}
	]`

	var arrivals []BusArrival
	require.NoError(t, json.Unmarshal([]byte(payload), &arrivals))
	require.Len(t, arrivals, 2)

	// String and integer wire forms normalize to the same value.
	require.Equal(t, 45, int(arrivals[0].EstimateArrive))
	require.Equal(t, 45, int(arrivals[1].EstimateArrive))
	require.Equal(t, 320, arrivals[0].DistanceBus)
	require.Equal(t, 4311, arrivals[1].Bus)
}

func TestFormatETA(t *testing.T) {
	require.Equal(t, "0 seg", FormatETA(0))
	require.Equal(t, "45 seg", FormatETA(45))
	require.Equal(t, "1 min", FormatETA(60))
	require.Equal(t, "3 min", FormatETA(210))
}
