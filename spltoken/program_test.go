package spltoken_test

import (
	"context"
	"github.com/egaotan/solana-crowdsale/ledger"
	"github.com/egaotan/solana-crowdsale/program"
	"github.com/egaotan/solana-crowdsale/spltoken"
	"github.com/egaotan/solana-crowdsale/system"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"testing"
)

type harness struct {
	t          *testing.T
	ctx        context.Context
	bank       *ledger.Bank
	system     *system.Program
	token      *spltoken.Program
	associated *spltoken.AssociatedProgram
	authority  solana.PrivateKey
	mint       solana.PublicKey
}

func newHarness(t *testing.T) *harness {
	logger := zaptest.NewLogger(t)
	h := &harness{
		t:         t,
		ctx:       context.Background(),
		bank:      ledger.NewBank(logger),
		system:    system.NewProgram(logger),
		token:     spltoken.NewProgram(logger),
		authority: solana.NewWallet().PrivateKey,
	}
	h.associated = spltoken.NewAssociatedProgram(logger, h.token, h.system)
	h.bank.RegisterProgram(h.system)
	h.bank.RegisterProgram(h.token)
	h.bank.RegisterProgram(h.associated)
	_, err := h.bank.Airdrop(h.authority.PublicKey(), 10*program.LamportsPerSol)
	require.NoError(t, err)

	mint := solana.NewWallet().PrivateKey
	h.mint = mint.PublicKey()
	_, err = h.bank.Send(h.ctx, []solana.Instruction{
		h.system.InstructionCreateAccount(h.authority.PublicKey(), h.mint, h.bank.MinimumBalanceForRentExemption(spltoken.MintLayoutSize), spltoken.MintLayoutSize, program.Token),
		h.token.InstructionInitializeMint(h.mint, 6, h.authority.PublicKey(), nil),
	}, h.authority, mint)
	require.NoError(t, err)
	return h
}

func (h *harness) open(owner solana.PublicKey) solana.PublicKey {
	ix, err := h.associated.InstructionCreate(h.authority.PublicKey(), owner, h.mint)
	require.NoError(h.t, err)
	_, err = h.bank.Send(h.ctx, []solana.Instruction{ix}, h.authority)
	require.NoError(h.t, err)
	address, err := h.associated.Locate(owner, h.mint)
	require.NoError(h.t, err)
	return address
}

func (h *harness) account(address solana.PublicKey) spltoken.AccountLayout {
	account, err := h.bank.Account(address)
	require.NoError(h.t, err)
	layout, err := spltoken.DecodeAccount(account.Data)
	require.NoError(h.t, err)
	return layout
}

func TestInitializeMint(t *testing.T) {
	h := newHarness(t)
	account, err := h.bank.Account(h.mint)
	require.NoError(t, err)
	assert.Equal(t, program.Token, account.Owner)
	mint, err := spltoken.DecodeMint(account.Data)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), mint.Decimals)
	assert.Equal(t, uint8(1), mint.IsInitialized)
	assert.True(t, mint.HasMintAuthority())
	assert.Equal(t, h.authority.PublicKey(), mint.MintAuthority)
	assert.Equal(t, uint64(0), mint.Supply)

	_, err = h.bank.Send(h.ctx, []solana.Instruction{h.token.InstructionInitializeMint(h.mint, 6, h.authority.PublicKey(), nil)}, h.authority)
	require.ErrorIs(t, err, spltoken.ErrAlreadyInUse)
}

func TestAssociatedCreate(t *testing.T) {
	h := newHarness(t)
	owner := solana.NewWallet().PublicKey()
	address := h.open(owner)

	expected, _, err := spltoken.FindAssociatedAddress(owner, h.mint)
	require.NoError(t, err)
	assert.Equal(t, expected, address)
	located, err := spltoken.DefaultLocator.Locate(owner, h.mint)
	require.NoError(t, err)
	assert.Equal(t, expected, located)

	layout := h.account(address)
	assert.Equal(t, owner, layout.Owner)
	assert.Equal(t, h.mint, layout.Mint)
	assert.Equal(t, spltoken.AccountStateInitialized, layout.State)
	assert.Equal(t, h.bank.MinimumBalanceForRentExemption(spltoken.TokenLayoutSize), h.bank.Balance(address))

	ix, err := h.associated.InstructionCreate(h.authority.PublicKey(), owner, h.mint)
	require.NoError(t, err)
	_, err = h.bank.Send(h.ctx, []solana.Instruction{ix}, h.authority)
	require.ErrorIs(t, err, system.ErrAccountAlreadyInUse)

	ix, err = h.associated.InstructionCreateIdempotent(h.authority.PublicKey(), owner, h.mint)
	require.NoError(t, err)
	_, err = h.bank.Send(h.ctx, []solana.Instruction{ix}, h.authority)
	require.NoError(t, err)
}

func TestAssociatedCreate_Prefunded(t *testing.T) {
	h := newHarness(t)
	owner := solana.NewWallet().PublicKey()
	address, err := h.associated.Locate(owner, h.mint)
	require.NoError(t, err)
	_, err = h.bank.Airdrop(address, 1)
	require.NoError(t, err)

	before := h.bank.Balance(h.authority.PublicKey())
	require.Equal(t, address, h.open(owner))
	rent := h.bank.MinimumBalanceForRentExemption(spltoken.TokenLayoutSize)
	assert.Equal(t, rent, h.bank.Balance(address))
	assert.Equal(t, before-(rent-1)-ledger.LamportsPerSignature, h.bank.Balance(h.authority.PublicKey()))
	layout := h.account(address)
	assert.Equal(t, owner, layout.Owner)
	assert.Equal(t, h.mint, layout.Mint)
}

func TestAssociatedCreate_WrongAddress(t *testing.T) {
	h := newHarness(t)
	ix, err := h.associated.InstructionCreate(h.authority.PublicKey(), solana.NewWallet().PublicKey(), h.mint)
	require.NoError(t, err)
	ix.(*program.Instruction).IsAccounts[1].PublicKey = solana.NewWallet().PublicKey()
	_, err = h.bank.Send(h.ctx, []solana.Instruction{ix}, h.authority)
	require.ErrorIs(t, err, spltoken.ErrInvalidAssociatedAddress)
}

func TestMintAndTransfer(t *testing.T) {
	h := newHarness(t)
	alice := solana.NewWallet().PrivateKey
	_, err := h.bank.Airdrop(alice.PublicKey(), program.LamportsPerSol)
	require.NoError(t, err)
	from := h.open(alice.PublicKey())
	to := h.open(h.authority.PublicKey())

	_, err = h.bank.Send(h.ctx, []solana.Instruction{h.token.InstructionMintTo(h.mint, from, h.authority.PublicKey(), 500)}, h.authority)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), h.account(from).Amount)

	_, err = h.bank.Send(h.ctx, []solana.Instruction{h.token.InstructionTransfer(from, to, alice.PublicKey(), 200)}, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), h.account(from).Amount)
	assert.Equal(t, uint64(200), h.account(to).Amount)

	_, err = h.bank.Send(h.ctx, []solana.Instruction{h.token.InstructionTransfer(from, to, alice.PublicKey(), 301)}, alice)
	require.ErrorIs(t, err, spltoken.ErrInsufficientFunds)

	_, err = h.bank.Send(h.ctx, []solana.Instruction{h.token.InstructionTransfer(from, to, h.authority.PublicKey(), 1)}, h.authority)
	require.ErrorIs(t, err, spltoken.ErrOwnerMismatch)

	_, err = h.bank.Send(h.ctx, []solana.Instruction{h.token.InstructionMintTo(h.mint, from, alice.PublicKey(), 1)}, alice)
	require.ErrorIs(t, err, spltoken.ErrOwnerMismatch)
	assert.Equal(t, uint64(300), h.account(from).Amount)
}

func TestInitializeAccount(t *testing.T) {
	h := newHarness(t)
	account := solana.NewWallet().PrivateKey
	owner := solana.NewWallet().PublicKey()
	lamports := h.bank.MinimumBalanceForRentExemption(spltoken.TokenLayoutSize)
	_, err := h.bank.Send(h.ctx, []solana.Instruction{
		h.system.InstructionCreateAccount(h.authority.PublicKey(), account.PublicKey(), lamports, spltoken.TokenLayoutSize, program.Token),
		h.token.InstructionInitializeAccount(account.PublicKey(), h.mint, owner),
	}, h.authority, account)
	require.NoError(t, err)
	layout := h.account(account.PublicKey())
	assert.Equal(t, owner, layout.Owner)
	assert.Equal(t, h.mint, layout.Mint)

	_, err = h.bank.Send(h.ctx, []solana.Instruction{h.token.InstructionInitializeAccount(account.PublicKey(), h.mint, owner)}, h.authority)
	require.ErrorIs(t, err, spltoken.ErrAlreadyInUse)
}

func TestLayout_Sizes(t *testing.T) {
	account := spltoken.AccountLayout{Amount: 7, State: spltoken.AccountStateInitialized}
	data := account.Encode()
	require.Len(t, data, spltoken.TokenLayoutSize)
	decoded, err := spltoken.DecodeAccount(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), decoded.Amount)

	mint := spltoken.MintLayout{Decimals: 9}
	require.Len(t, mint.Encode(), spltoken.MintLayoutSize)

	_, err = spltoken.DecodeAccount(data[:100])
	require.Error(t, err)
}
