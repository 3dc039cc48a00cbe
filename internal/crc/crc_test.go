package crc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCcittSingle(t *testing.T) {
	var crc CRC16
	crc.Single(10)
	assert.EqualValues(t, 0xA14A, crc)
}

func TestComputeMatchesSingle(t *testing.T) {
	assert.EqualValues(t, 0xA14A, Compute([]byte{10}))
}
