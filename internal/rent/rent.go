// Package rent computes the rent-exempt minimum balance of an account.
package rent

import "math"

// AccountStorageOverhead is the number of bytes the protocol charges for on
// top of an account's data, covering its metadata.
const AccountStorageOverhead = 128

const (
	DefaultLamportsPerByteYear = 3480
	DefaultExemptionThreshold  = 2.0
)

// Rent holds the rent parameters published by the runtime.
type Rent struct {
	LamportsPerByteYear uint64
	ExemptionThreshold  float64
}

// Default returns the mainnet rent parameters.
func Default() Rent {
	return Rent{
		LamportsPerByteYear: DefaultLamportsPerByteYear,
		ExemptionThreshold:  DefaultExemptionThreshold,
	}
}

// MinimumBalance is the smallest balance that keeps an account holding
// dataLen bytes exempt from rent. It saturates at math.MaxUint64.
func (r Rent) MinimumBalance(dataLen uint64) uint64 {
	if dataLen > math.MaxUint64-AccountStorageOverhead {
		return math.MaxUint64
	}
	size := AccountStorageOverhead + dataLen
	if r.LamportsPerByteYear != 0 && size > math.MaxUint64/r.LamportsPerByteYear {
		return math.MaxUint64
	}
	perYear := float64(size * r.LamportsPerByteYear)
	v := perYear * r.ExemptionThreshold
	if v >= math.MaxUint64 {
		return math.MaxUint64
	}
	return uint64(v)
}

// IsExempt reports whether balance covers the minimum for dataLen bytes.
func (r Rent) IsExempt(balance, dataLen uint64) bool {
	return balance >= r.MinimumBalance(dataLen)
}
