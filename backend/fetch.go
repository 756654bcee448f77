package backend

import (
	"errors"
	"fmt"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"strconv"
)

var ErrAccountNotFound = errors.New("account not found")

type Account struct {
	PubKey  solana.PublicKey
	Account *rpc.Account
	Height  uint64
}

func (backend *Backend) Account(pubkey solana.PublicKey) (*Account, error) {
	response, err := backend.rpcClient.GetAccountInfoWithOpts(backend.ctx, pubkey, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: backend.commitment,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, pubkey)
	}
	if err != nil {
		return nil, err
	}
	return &Account{
		PubKey:  pubkey,
		Height:  response.Context.Slot,
		Account: response.Value,
	}, nil
}

func (backend *Backend) HasAccount(pubkey solana.PublicKey) bool {
	_, err := backend.Account(pubkey)
	return err == nil
}

func (backend *Backend) Balance(pubkey solana.PublicKey) (uint64, error) {
	response, err := backend.rpcClient.GetBalance(backend.ctx, pubkey, backend.commitment)
	if err != nil {
		return 0, err
	}
	return response.Value, nil
}

// TokenBalance returns the raw amount held by a token account and the
// decimals of its mint.
func (backend *Backend) TokenBalance(pubkey solana.PublicKey) (uint64, uint8, error) {
	response, err := backend.rpcClient.GetTokenAccountBalance(backend.ctx, pubkey, backend.commitment)
	if err != nil {
		return 0, 0, err
	}
	amount, err := strconv.ParseUint(response.Value.Amount, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("token amount %q: %w", response.Value.Amount, err)
	}
	return amount, response.Value.Decimals, nil
}

func (backend *Backend) GetMinimumBalanceForRentExemption(size uint64) (uint64, error) {
	return backend.rpcClient.GetMinimumBalanceForRentExemption(backend.ctx, size, backend.commitment)
}

func (backend *Backend) Slot() (uint64, error) {
	return backend.rpcClient.GetSlot(backend.ctx, backend.commitment)
}
