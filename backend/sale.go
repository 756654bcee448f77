package backend

import (
	"context"
	"fmt"
	"github.com/egaotan/solana-crowdsale/crowdsale"
	"github.com/egaotan/solana-crowdsale/spltoken"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// Sale is the on-ledger state of one sale, located from its identifier.
type Sale struct {
	Address      solana.PublicKey
	Authority    solana.PublicKey
	Record       *crowdsale.SaleLayout
	Lamports     uint64
	Withdrawable uint64
	EscrowTokens uint64
	Decimals     uint8
}

func (backend *Backend) Sale(programID solana.PublicKey, id solana.PublicKey) (*Sale, error) {
	address, _, err := crowdsale.DeriveSaleAddress(programID, id)
	if err != nil {
		return nil, err
	}
	authority, _, err := crowdsale.DeriveAuthorityAddress(programID, id)
	if err != nil {
		return nil, err
	}
	account, err := backend.Account(address)
	if err != nil {
		return nil, err
	}
	if account.Account.Owner != programID {
		return nil, fmt.Errorf("%w: %s is owned by %s", crowdsale.ErrInvalidAccountData, address, account.Account.Owner)
	}
	record, err := crowdsale.DecodeSale(account.Account.Data.GetBinary())
	if err != nil {
		return nil, err
	}
	sale := &Sale{
		Address:   address,
		Authority: authority,
		Record:    record,
		Lamports:  account.Account.Lamports,
	}
	minimum, err := backend.GetMinimumBalanceForRentExemption(crowdsale.SaleLayoutSize)
	if err != nil {
		return nil, err
	}
	if sale.Lamports > minimum {
		sale.Withdrawable = sale.Lamports - minimum
	}
	sale.EscrowTokens, sale.Decimals, err = backend.TokenBalance(record.TokenAccount)
	if err != nil {
		return nil, fmt.Errorf("escrow %s: %w", record.TokenAccount, err)
	}
	return sale, nil
}

func (backend *Backend) CreateSale(ctx context.Context, programID solana.PublicKey, creator solana.PublicKey, id solana.PublicKey, mint solana.PublicKey, price uint64) (solana.Signature, error) {
	instruction, err := crowdsale.NewInitializeInstruction(programID, spltoken.DefaultLocator, creator, id, mint, price)
	if err != nil {
		return solana.Signature{}, err
	}
	backend.logger.Info("create sale",
		zap.String("id", id.String()), zap.String("mint", mint.String()), zap.Uint64("price", price))
	return backend.Send(ctx, []solana.Instruction{instruction}, creator)
}

func (backend *Backend) BuyTokens(ctx context.Context, programID solana.PublicKey, buyer solana.PublicKey, id solana.PublicKey, amount uint64) (solana.Signature, error) {
	sale, err := backend.Sale(programID, id)
	if err != nil {
		return solana.Signature{}, err
	}
	instruction, err := crowdsale.NewBuyTokensInstruction(programID, spltoken.DefaultLocator, buyer, id, sale.Record.TokenMint, amount)
	if err != nil {
		return solana.Signature{}, err
	}
	backend.logger.Info("buy tokens", zap.String("id", id.String()), zap.Uint64("amount", amount))
	return backend.Send(ctx, []solana.Instruction{instruction}, buyer)
}

func (backend *Backend) Withdraw(ctx context.Context, programID solana.PublicKey, creator solana.PublicKey, id solana.PublicKey) (solana.Signature, error) {
	instruction, err := crowdsale.NewWithdrawInstruction(programID, creator, id)
	if err != nil {
		return solana.Signature{}, err
	}
	backend.logger.Info("withdraw", zap.String("id", id.String()))
	return backend.Send(ctx, []solana.Instruction{instruction}, creator)
}

// FundSale moves amount tokens from the creator's associated account into the
// sale escrow.
func (backend *Backend) FundSale(ctx context.Context, programID solana.PublicKey, creator solana.PublicKey, id solana.PublicKey, amount uint64) (solana.Signature, error) {
	sale, err := backend.Sale(programID, id)
	if err != nil {
		return solana.Signature{}, err
	}
	source, err := spltoken.DefaultLocator.Locate(creator, sale.Record.TokenMint)
	if err != nil {
		return solana.Signature{}, err
	}
	instruction := backend.token.InstructionTransfer(source, sale.Record.TokenAccount, creator, amount)
	backend.logger.Info("fund sale", zap.String("id", id.String()), zap.Uint64("amount", amount))
	return backend.Send(ctx, []solana.Instruction{instruction}, creator)
}
