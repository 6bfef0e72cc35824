package fixed

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAbs(t *testing.T) {
	assert.Equal(t, int32(5), Abs(int32(-5)))
	assert.Equal(t, int32(5), Abs(int32(5)))
	assert.Equal(t, int32(0), Abs(int32(0)))
	assert.Equal(t, int32(math.MaxInt32), Abs(int32(math.MinInt32)))
	assert.Equal(t, int16(math.MaxInt16), Abs(int16(math.MinInt16)))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 3, Clamp(3, 0, 10))
	assert.Equal(t, 0, Clamp(-1, 0, 10))
	assert.Equal(t, 10, Clamp(11, 0, 10))
	assert.Equal(t, 10, Clamp(11, 10, 0), "bounds are order-insensitive")
}

func TestAddSat32(t *testing.T) {
	assert.Equal(t, int32(7), AddSat32(3, 4))
	assert.Equal(t, int32(math.MaxInt32), AddSat32(math.MaxInt32-1, 10))
	assert.Equal(t, int32(math.MinInt32), AddSat32(math.MinInt32+1, -10))
}

func TestDrainTo0(t *testing.T) {
	assert.Equal(t, int32(0x240), DrainTo0(0x300, 0xC0))
	assert.Equal(t, int32(0), DrainTo0(0x80, 0xC0))
	assert.Equal(t, int32(0), DrainTo0(0, 0xC0))
}

func TestAvg(t *testing.T) {
	assert.Equal(t, uint16(0x400), Avg(16*0x400, 4))
	assert.Equal(t, uint16(math.MaxUint16), Avg(math.MaxUint32, 4))
}

func TestDivMod(t *testing.T) {
	q, r := DivMod(uint32(30), uint32(14))
	assert.Equal(t, uint32(2), q)
	assert.Equal(t, uint32(2), r)

	q16, r16 := DivMod(uint16(5), uint16(0))
	assert.Equal(t, uint16(5), q16)
	assert.Equal(t, uint16(0), r16)
}
