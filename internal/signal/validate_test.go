package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	t.Run("valid document sorted by timestamp", func(t *testing.T) {
		raw := []byte(`[
			{"timestamp": 2000, "symbol": "LDO", "signal": "SELL", "position_size": 1.0},
			{"timestamp": 1000, "symbol": "LDO", "signal": "BUY", "position_size": 0.5}
		]`)
		signals, err := Decode(raw)
		require.NoError(t, err)
		require.Len(t, signals, 2)
		assert.Equal(t, int64(1000), signals[0].Timestamp)
		assert.Equal(t, ActionBuy, signals[0].Action)
		assert.Equal(t, ActionSell, signals[1].Action)
	})

	t.Run("stable order for equal timestamps", func(t *testing.T) {
		raw := []byte(`[
			{"timestamp": 1000, "symbol": "A", "signal": "BUY", "position_size": 0.1},
			{"timestamp": 1000, "symbol": "B", "signal": "BUY", "position_size": 0.2}
		]`)
		signals, err := Decode(raw)
		require.NoError(t, err)
		assert.Equal(t, "A", signals[0].Symbol)
		assert.Equal(t, "B", signals[1].Symbol)
	})

	t.Run("missing columns named in the error", func(t *testing.T) {
		raw := []byte(`[{"timestamp": 1000, "symbol": "LDO"}]`)
		_, err := Decode(raw)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "signal")
		assert.Contains(t, err.Error(), "position_size")
	})

	t.Run("invalid action", func(t *testing.T) {
		raw := []byte(`[{"timestamp": 1000, "symbol": "LDO", "signal": "SHORT", "position_size": 0.5}]`)
		_, err := Decode(raw)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SHORT")
	})

	t.Run("position size out of range", func(t *testing.T) {
		raw := []byte(`[{"timestamp": 1000, "symbol": "LDO", "signal": "BUY", "position_size": 1.5}]`)
		_, err := Decode(raw)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "position_size")
	})

	t.Run("non-array root rejected", func(t *testing.T) {
		_, err := Decode([]byte(`{"timestamp": 1000}`))
		assert.Error(t, err)
	})

	t.Run("empty and malformed input rejected", func(t *testing.T) {
		_, err := Decode([]byte(``))
		assert.Error(t, err)
		_, err = Decode([]byte(`[{`))
		assert.Error(t, err)
	})

	t.Run("empty array is valid", func(t *testing.T) {
		signals, err := Decode([]byte(`[]`))
		require.NoError(t, err)
		assert.Empty(t, signals)
	})

	t.Run("non-positive timestamp rejected", func(t *testing.T) {
		raw := []byte(`[{"timestamp": 0, "symbol": "LDO", "signal": "HOLD", "position_size": 0}]`)
		_, err := Decode(raw)
		assert.Error(t, err)
	})

	t.Run("empty symbol rejected", func(t *testing.T) {
		raw := []byte(`[{"timestamp": 1, "symbol": " ", "signal": "HOLD", "position_size": 0}]`)
		_, err := Decode(raw)
		assert.Error(t, err)
	})
}
