package staking

import (
	"bytes"
	"fmt"
	"math/bits"

	"github.com/dmitrijs2005/stakecore/internal/common"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// RecordEntrySize is the encoded length of one Entry.
const RecordEntrySize = 40

// Entry is one position in the stake record: who staked and how much.
type Entry struct {
	Staker solana.PublicKey
	Amount uint64
}

func encodeEntry(e Entry) ([]byte, error) {
	var buf bytes.Buffer
	if err := bin.NewBorshEncoder(&buf).Encode(e); err != nil {
		return nil, fmt.Errorf("encode stake entry: %w", err)
	}
	if buf.Len() != RecordEntrySize {
		return nil, fmt.Errorf("%w: entry encodes to %d bytes", common.ErrInvalidRecord, buf.Len())
	}
	return buf.Bytes(), nil
}

// DecodeRecord splits record data into entries.
func DecodeRecord(data []byte) ([]Entry, error) {
	if len(data)%RecordEntrySize != 0 {
		return nil, fmt.Errorf("%w: length %d", common.ErrInvalidRecord, len(data))
	}
	entries := make([]Entry, 0, len(data)/RecordEntrySize)
	for off := 0; off < len(data); off += RecordEntrySize {
		var e Entry
		if err := bin.NewBorshDecoder(data[off : off+RecordEntrySize]).Decode(&e); err != nil {
			return nil, fmt.Errorf("%w: entry at %d: %v", common.ErrInvalidRecord, off, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// StakedBy sums the amounts staked by staker. A total above MaxUint64 is
// ErrArithmeticOverflow.
func StakedBy(data []byte, staker solana.PublicKey) (uint64, error) {
	entries, err := DecodeRecord(data)
	if err != nil {
		return 0, err
	}
	var total uint64
	for _, e := range entries {
		if !e.Staker.Equals(staker) {
			continue
		}
		sum, carry := bits.Add64(total, e.Amount, 0)
		if carry != 0 {
			return 0, fmt.Errorf("%w: stake total of %s", common.ErrArithmeticOverflow, staker)
		}
		total = sum
	}
	return total, nil
}
