package tokenprogram

import (
	"bytes"
	"fmt"

	"github.com/dmitrijs2005/stakecore/internal/chain"
	"github.com/dmitrijs2005/stakecore/internal/common"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
)

// AccountSize is the length of an encoded token account.
const AccountSize = 165

// NewAccountData encodes an initialized token account.
func NewAccountData(mint, owner solana.PublicKey, amount uint64) ([]byte, error) {
	return EncodeAccount(&token.Account{
		Mint:   mint,
		Owner:  owner,
		Amount: amount,
		State:  token.Initialized,
	})
}

// NewTokenAccount returns a handle owned by the token program holding an
// initialized token account, funded with lamports.
func NewTokenAccount(key, mint, owner solana.PublicKey, amount, lamports uint64) (*chain.Account, error) {
	data, err := NewAccountData(mint, owner, amount)
	if err != nil {
		return nil, err
	}
	return chain.NewAccount(key, solana.TokenProgramID, lamports, data), nil
}

func DecodeAccount(data []byte) (*token.Account, error) {
	if len(data) != AccountSize {
		return nil, fmt.Errorf("%w: length %d", common.ErrInvalidTokenAccount, len(data))
	}
	acc := new(token.Account)
	if err := bin.NewBinDecoder(data).Decode(acc); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidTokenAccount, err)
	}
	return acc, nil
}

func EncodeAccount(acc *token.Account) ([]byte, error) {
	var buf bytes.Buffer
	if err := bin.NewBinEncoder(&buf).Encode(acc); err != nil {
		return nil, fmt.Errorf("encode token account: %w", err)
	}
	if buf.Len() != AccountSize {
		return nil, fmt.Errorf("%w: encoded length %d", common.ErrInvalidTokenAccount, buf.Len())
	}
	return buf.Bytes(), nil
}

// Balance reads the token amount held by a token account handle.
func Balance(a *chain.Account) (uint64, error) {
	acc, err := DecodeAccount(a.Data)
	if err != nil {
		return 0, err
	}
	return acc.Amount, nil
}
