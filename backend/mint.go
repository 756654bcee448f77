package backend

import (
	"context"
	"github.com/egaotan/solana-crowdsale/program"
	"github.com/egaotan/solana-crowdsale/spltoken"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// CreateMint creates a mint with payer as its authority and mints supply
// into the payer's associated token account.
func (backend *Backend) CreateMint(ctx context.Context, payer solana.PublicKey, decimals uint8, supply uint64) (solana.PublicKey, error) {
	mint := solana.NewWallet().PrivateKey
	backend.ImportPrivateKey(mint)
	lamports, err := backend.GetMinimumBalanceForRentExemption(spltoken.MintLayoutSize)
	if err != nil {
		return solana.PublicKey{}, err
	}
	create, err := backend.associated.InstructionCreate(payer, payer, mint.PublicKey())
	if err != nil {
		return solana.PublicKey{}, err
	}
	account, err := spltoken.DefaultLocator.Locate(payer, mint.PublicKey())
	if err != nil {
		return solana.PublicKey{}, err
	}
	instructions := []solana.Instruction{
		backend.system.InstructionCreateAccount(payer, mint.PublicKey(), lamports, spltoken.MintLayoutSize, program.Token),
		backend.token.InstructionInitializeMint(mint.PublicKey(), decimals, payer, nil),
		create,
	}
	if supply > 0 {
		instructions = append(instructions, backend.token.InstructionMintTo(mint.PublicKey(), account, payer, supply))
	}
	signature, err := backend.Send(ctx, instructions, payer)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if _, err := backend.Confirm(ctx, signature); err != nil {
		return solana.PublicKey{}, err
	}
	backend.logger.Info("mint created",
		zap.String("mint", mint.PublicKey().String()), zap.String("account", account.String()), zap.Uint64("supply", supply))
	return mint.PublicKey(), nil
}
