package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeframe(t *testing.T) {
	tf, err := ParseTimeframe(" 1H ")
	require.NoError(t, err)
	assert.Equal(t, "1h", tf.Key)
	assert.Equal(t, time.Hour, tf.Duration)

	_, err = ParseTimeframe("2h")
	assert.Error(t, err)
}

func TestAlignRange(t *testing.T) {
	tf, _ := ParseTimeframe("1h")
	start, end := tf.AlignRange(3_700_000, 7_300_000)
	assert.Equal(t, int64(3_600_000), start)
	assert.Equal(t, int64(7_200_000), end)

	// 顺序颠倒时自动交换
	start, end = tf.AlignRange(7_300_000, 3_700_000)
	assert.Equal(t, int64(3_600_000), start)
	assert.Equal(t, int64(7_200_000), end)
}

func TestExpectedCandles(t *testing.T) {
	tf, _ := ParseTimeframe("1h")
	assert.Equal(t, int64(3), tf.ExpectedCandles(0, 2*tf.DurationMillis()))
	assert.Equal(t, int64(0), tf.ExpectedCandles(10, 0))
}

func TestFrameLookup(t *testing.T) {
	f := Frame{Symbol: "LDO", Timeframe: "1h", Candles: []Candle{
		{OpenTime: 3_600_000, Close: 2},
		{OpenTime: 7_200_000, Close: 3},
	}}

	c, ok := f.At(7_200_000)
	require.True(t, ok)
	assert.InDelta(t, 3.0, c.Close, 1e-12)

	_, ok = f.At(5_000_000)
	assert.False(t, ok)

	c, ok = f.Before(5_000_000)
	require.True(t, ok)
	assert.InDelta(t, 2.0, c.Close, 1e-12)

	_, ok = f.Before(1_000_000)
	assert.False(t, ok)
}

func TestFrameSet(t *testing.T) {
	fs := NewFrameSet()
	assert.True(t, fs.Empty())

	require.NoError(t, fs.Put(Frame{Symbol: "ldo", Timeframe: "1H", Candles: []Candle{{OpenTime: 1, Close: 2}}}))
	_, ok := fs.Get("LDO", "1h")
	assert.True(t, ok)
	assert.False(t, fs.Empty())

	assert.Error(t, fs.Put(Frame{}))
}
