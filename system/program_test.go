package system_test

import (
	"context"
	"github.com/egaotan/solana-crowdsale/ledger"
	"github.com/egaotan/solana-crowdsale/program"
	"github.com/egaotan/solana-crowdsale/system"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"testing"
)

func setup(t *testing.T) (*ledger.Bank, *system.Program, solana.PrivateKey) {
	logger := zaptest.NewLogger(t)
	bank := ledger.NewBank(logger)
	p := system.NewProgram(logger)
	bank.RegisterProgram(p)
	payer := solana.NewWallet().PrivateKey
	_, err := bank.Airdrop(payer.PublicKey(), program.LamportsPerSol)
	require.NoError(t, err)
	return bank, p, payer
}

func TestCreateAccount(t *testing.T) {
	bank, p, payer := setup(t)
	ctx := context.Background()
	created := solana.NewWallet().PrivateKey
	owner := solana.NewWallet().PublicKey()
	lamports := bank.MinimumBalanceForRentExemption(20)

	_, err := bank.Send(ctx, []solana.Instruction{p.InstructionCreateAccount(payer.PublicKey(), created.PublicKey(), lamports, 20, owner)}, payer, created)
	require.NoError(t, err)
	account, err := bank.Account(created.PublicKey())
	require.NoError(t, err)
	assert.Equal(t, owner, account.Owner)
	assert.Equal(t, lamports, account.Lamports)
	assert.Len(t, account.Data, 20)

	_, err = bank.Send(ctx, []solana.Instruction{p.InstructionCreateAccount(payer.PublicKey(), created.PublicKey(), lamports, 20, owner)}, payer, created)
	require.ErrorIs(t, err, system.ErrAccountAlreadyInUse)
}

func TestCreateAccount_NotRentExempt(t *testing.T) {
	bank, p, payer := setup(t)
	created := solana.NewWallet().PrivateKey
	_, err := bank.Send(context.Background(), []solana.Instruction{p.InstructionCreateAccount(payer.PublicKey(), created.PublicKey(), 1, 20, solana.NewWallet().PublicKey())}, payer, created)
	require.ErrorIs(t, err, system.ErrAccountNotRentExempt)
}

func TestAssign(t *testing.T) {
	bank, p, payer := setup(t)
	account := solana.NewWallet().PrivateKey
	_, err := bank.Airdrop(account.PublicKey(), 1000)
	require.NoError(t, err)
	owner := solana.NewWallet().PublicKey()
	_, err = bank.Send(context.Background(), []solana.Instruction{p.InstructionAssign(account.PublicKey(), owner)}, payer, account)
	require.NoError(t, err)
	stored, err := bank.Account(account.PublicKey())
	require.NoError(t, err)
	assert.Equal(t, owner, stored.Owner)
}

func TestAllocate(t *testing.T) {
	bank, p, payer := setup(t)
	ctx := context.Background()
	account := solana.NewWallet().PrivateKey
	_, err := bank.Airdrop(account.PublicKey(), bank.MinimumBalanceForRentExemption(20))
	require.NoError(t, err)

	_, err = bank.Send(ctx, []solana.Instruction{p.InstructionAllocate(account.PublicKey(), 20)}, payer, account)
	require.NoError(t, err)
	stored, err := bank.Account(account.PublicKey())
	require.NoError(t, err)
	assert.Equal(t, solana.SystemProgramID, stored.Owner)
	assert.Len(t, stored.Data, 20)

	_, err = bank.Send(ctx, []solana.Instruction{p.InstructionAllocate(account.PublicKey(), 20)}, payer, account)
	require.ErrorIs(t, err, system.ErrAccountAlreadyInUse)
}

func TestTransfer(t *testing.T) {
	bank, p, payer := setup(t)
	to := solana.NewWallet().PublicKey()
	_, err := bank.Send(context.Background(), []solana.Instruction{p.InstructionTransfer(payer.PublicKey(), to, 2*program.LamportsPerSol)}, payer)
	require.ErrorIs(t, err, system.ErrInsufficientFunds)
	assert.Equal(t, program.LamportsPerSol, bank.Balance(payer.PublicKey()))

	_, err = bank.Send(context.Background(), []solana.Instruction{p.InstructionTransfer(payer.PublicKey(), to, 10)}, payer)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), bank.Balance(to))
}
