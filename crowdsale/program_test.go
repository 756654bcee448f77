package crowdsale

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
	"math"
	"testing"
)

const sol = uint64(1000000000)

type fixture struct {
	t          *testing.T
	ctx        context.Context
	bank       *ledger.Bank
	system     *system.Program
	token      *spltoken.Program
	associated *spltoken.AssociatedProgram
	creator    solana.PrivateKey
	buyer      solana.PrivateKey
	mint       solana.PublicKey
	id         solana.PublicKey
}

func newFixture(t *testing.T) *fixture {
	logger := zaptest.NewLogger(t)
	f := &fixture{
		t:       t,
		ctx:     context.Background(),
		bank:    ledger.NewBank(logger),
		creator: solana.NewWallet().PrivateKey,
		buyer:   solana.NewWallet().PrivateKey,
		id:      solana.NewWallet().PublicKey(),
	}
	f.system = system.NewProgram(logger)
	f.token = spltoken.NewProgram(logger)
	f.associated = spltoken.NewAssociatedProgram(logger, f.token, f.system)
	f.bank.RegisterProgram(f.system)
	f.bank.RegisterProgram(f.token)
	f.bank.RegisterProgram(f.associated)
	f.bank.RegisterProgram(NewProgram(logger, program.Crowdsale, f.system, f.token, f.associated, f.associated))

	_, err := f.bank.Airdrop(f.creator.PublicKey(), 10*sol)
	require.NoError(t, err)
	_, err = f.bank.Airdrop(f.buyer.PublicKey(), 10*sol)
	require.NoError(t, err)

	mint := solana.NewWallet().PrivateKey
	f.mint = mint.PublicKey()
	creator := f.creator.PublicKey()
	f.send(f.creator,
		f.system.InstructionCreateAccount(creator, f.mint, f.bank.MinimumBalanceForRentExemption(spltoken.MintLayoutSize), spltoken.MintLayoutSize, program.Token),
		f.token.InstructionInitializeMint(f.mint, program.DefaultDecimals, creator, nil),
	)(mint)
	create, err := f.associated.InstructionCreate(creator, creator, f.mint)
	require.NoError(t, err)
	f.send(f.creator, create, f.token.InstructionMintTo(f.mint, f.ata(creator), creator, 1000*sol))()
	return f
}

// send returns a func taking extra signers so fixtures read in call order.
func (f *fixture) send(payer solana.PrivateKey, instructions ...solana.Instruction) func(...solana.PrivateKey) *ledger.Receipt {
	return func(signers ...solana.PrivateKey) *ledger.Receipt {
		receipt, err := f.bank.Send(f.ctx, instructions, append([]solana.PrivateKey{payer}, signers...)...)
		require.NoError(f.t, err)
		return receipt
	}
}

func (f *fixture) try(payer solana.PrivateKey, instructions ...solana.Instruction) error {
	_, err := f.bank.Send(f.ctx, instructions, payer)
	return err
}

func (f *fixture) ata(owner solana.PublicKey) solana.PublicKey {
	address, err := f.associated.Locate(owner, f.mint)
	require.NoError(f.t, err)
	return address
}

func (f *fixture) tokens(address solana.PublicKey) uint64 {
	account, err := f.bank.Account(address)
	require.NoError(f.t, err)
	layout, err := spltoken.DecodeAccount(account.Data)
	require.NoError(f.t, err)
	return layout.Amount
}

func (f *fixture) sale() *SaleLayout {
	address, _, err := DeriveSaleAddress(program.Crowdsale, f.id)
	require.NoError(f.t, err)
	account, err := f.bank.Account(address)
	require.NoError(f.t, err)
	sale, err := DecodeSale(account.Data)
	require.NoError(f.t, err)
	return sale
}

func (f *fixture) saleAddress() solana.PublicKey {
	address, _, err := DeriveSaleAddress(program.Crowdsale, f.id)
	require.NoError(f.t, err)
	return address
}

func (f *fixture) escrow() solana.PublicKey {
	authority, _, err := DeriveAuthorityAddress(program.Crowdsale, f.id)
	require.NoError(f.t, err)
	return f.ata(authority)
}

func (f *fixture) initialize(price uint64) error {
	ix, err := NewInitializeInstruction(program.Crowdsale, f.associated, f.creator.PublicKey(), f.id, f.mint, price)
	require.NoError(f.t, err)
	return f.try(f.creator, ix)
}

func (f *fixture) fund(amount uint64) {
	f.send(f.creator, f.token.InstructionTransfer(f.ata(f.creator.PublicKey()), f.escrow(), f.creator.PublicKey(), amount))()
}

func (f *fixture) buy(amount uint64) error {
	ix, err := NewBuyTokensInstruction(program.Crowdsale, f.associated, f.buyer.PublicKey(), f.id, f.mint, amount)
	require.NoError(f.t, err)
	return f.try(f.buyer, ix)
}

func (f *fixture) withdraw(signer solana.PrivateKey) error {
	ix, err := NewWithdrawInstruction(program.Crowdsale, signer.PublicKey(), f.id)
	require.NoError(f.t, err)
	return f.try(signer, ix)
}

// distinctBumpID returns an id whose sale and authority addresses are found
// with different bumps, so the two cannot be confused.
func distinctBumpID(t *testing.T) solana.PublicKey {
	for i := 0; i < 256; i++ {
		id := solana.NewWallet().PublicKey()
		_, saleBump, err := DeriveSaleAddress(program.Crowdsale, id)
		require.NoError(t, err)
		_, authorityBump, err := DeriveAuthorityAddress(program.Crowdsale, id)
		require.NoError(t, err)
		if saleBump != authorityBump {
			return id
		}
	}
	t.Fatal("no id with distinct bumps")
	return solana.PublicKey{}
}

// prefund sends lamports to address before anything is created there.
func (f *fixture) prefund(address solana.PublicKey, lamports uint64) {
	f.send(f.creator, f.system.InstructionTransfer(f.creator.PublicKey(), address, lamports))()
}

func (f *fixture) rewrite(address solana.PublicKey, edit func(sale *SaleLayout)) {
	account, err := f.bank.Account(address)
	require.NoError(f.t, err)
	sale, err := DecodeSale(account.Data)
	require.NoError(f.t, err)
	edit(sale)
	account.Data = sale.Encode()
	f.bank.SetAccount(address, account)
}

func TestProgram_Initialize(t *testing.T) {
	f := newFixture(t)
	f.id = distinctBumpID(t)
	require.NoError(t, f.initialize(sol))

	sale := f.sale()
	assert.Equal(t, f.id, sale.Id)
	assert.Equal(t, sol, sale.Price)
	assert.Equal(t, StatusOpen, sale.Status)
	assert.Equal(t, f.mint, sale.TokenMint)
	assert.Equal(t, f.escrow(), sale.TokenAccount)
	assert.Equal(t, f.creator.PublicKey(), sale.Creator)
	_, bump, err := DeriveAuthorityAddress(program.Crowdsale, f.id)
	require.NoError(t, err)
	assert.Equal(t, bump, sale.Bump)
	_, saleBump, err := DeriveSaleAddress(program.Crowdsale, f.id)
	require.NoError(t, err)
	assert.NotEqual(t, saleBump, sale.Bump)

	account, err := f.bank.Account(f.saleAddress())
	require.NoError(t, err)
	assert.Equal(t, program.Crowdsale, account.Owner)
	assert.Equal(t, f.bank.MinimumBalanceForRentExemption(SaleLayoutSize), account.Lamports)
	assert.Equal(t, uint64(0), f.tokens(f.escrow()))
}

func TestProgram_InitializeTwice(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.initialize(sol))
	err := f.initialize(2 * sol)
	require.ErrorIs(t, err, ErrAlreadyInitialized)
	assert.Equal(t, sol, f.sale().Price)
}

func TestProgram_InitializeInvalidPrice(t *testing.T) {
	f := newFixture(t)
	require.ErrorIs(t, f.initialize(0), ErrInvalidPrice)
	_, err := f.bank.Account(f.saleAddress())
	require.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestProgram_InitializeWrongAuthority(t *testing.T) {
	f := newFixture(t)
	ix, err := NewInitializeInstruction(program.Crowdsale, f.associated, f.creator.PublicKey(), f.id, f.mint, sol)
	require.NoError(t, err)
	ix.(*program.Instruction).IsAccounts[3].PublicKey = solana.NewWallet().PublicKey()
	require.ErrorIs(t, f.try(f.creator, ix), ErrAuthorityMismatch)
}

func TestProgram_BuyAndWithdraw(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.initialize(sol))
	f.fund(100 * sol)
	assert.Equal(t, 100*sol, f.tokens(f.escrow()))

	buyerBefore := f.bank.Balance(f.buyer.PublicKey())
	require.NoError(t, f.buy(sol))
	assert.Equal(t, 99*sol, f.tokens(f.escrow()))
	assert.Equal(t, sol, f.tokens(f.ata(f.buyer.PublicKey())))
	assert.GreaterOrEqual(t, buyerBefore-f.bank.Balance(f.buyer.PublicKey()), sol)
	minimum := f.bank.MinimumBalanceForRentExemption(SaleLayoutSize)
	assert.Equal(t, minimum+sol, f.bank.Balance(f.saleAddress()))

	// the buyer account exists now and is reused
	require.NoError(t, f.buy(sol))
	assert.Equal(t, 2*sol, f.tokens(f.ata(f.buyer.PublicKey())))

	creatorBefore := f.bank.Balance(f.creator.PublicKey())
	require.NoError(t, f.withdraw(f.creator))
	assert.Equal(t, minimum, f.bank.Balance(f.saleAddress()))
	assert.Equal(t, creatorBefore+2*sol-ledger.LamportsPerSignature, f.bank.Balance(f.creator.PublicKey()))
	assert.Equal(t, StatusOpen, f.sale().Status)

	require.ErrorIs(t, f.withdraw(f.creator), ErrNothingToWithdraw)
}

func TestProgram_BuyInsufficientEscrow(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.initialize(sol))
	f.fund(100 * sol)

	buyer := f.bank.Balance(f.buyer.PublicKey())
	sale := f.bank.Balance(f.saleAddress())
	require.ErrorIs(t, f.buy(101*sol), ErrInsufficientEscrow)
	assert.Equal(t, buyer, f.bank.Balance(f.buyer.PublicKey()))
	assert.Equal(t, sale, f.bank.Balance(f.saleAddress()))
	assert.Equal(t, 100*sol, f.tokens(f.escrow()))
	_, err := f.bank.Account(f.ata(f.buyer.PublicKey()))
	require.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestProgram_BuyInsufficientFunds(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.initialize(sol))
	f.fund(100 * sol)
	require.ErrorIs(t, f.buy(50*sol), ErrInsufficientFunds)
	assert.Equal(t, 100*sol, f.tokens(f.escrow()))
}

func TestProgram_BuyInvalidAmount(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.initialize(sol))
	f.fund(100 * sol)
	require.ErrorIs(t, f.buy(0), ErrInvalidAmount)
}

func TestProgram_BuyClosedSale(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.initialize(sol))
	f.fund(100 * sol)

	account, err := f.bank.Account(f.saleAddress())
	require.NoError(t, err)
	sale, err := DecodeSale(account.Data)
	require.NoError(t, err)
	sale.Status, err = sale.Status.Transition(StatusClosed)
	require.NoError(t, err)
	account.Data = sale.Encode()
	f.bank.SetAccount(f.saleAddress(), account)

	require.ErrorIs(t, f.buy(sol), ErrSaleClosed)
	assert.Equal(t, 100*sol, f.tokens(f.escrow()))
}

func TestProgram_BuyWrongAuthority(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.initialize(sol))
	f.fund(100 * sol)

	ix, err := NewBuyTokensInstruction(program.Crowdsale, f.associated, f.buyer.PublicKey(), f.id, f.mint, sol)
	require.NoError(t, err)
	ix.(*program.Instruction).IsAccounts[4].PublicKey = solana.NewWallet().PublicKey()
	require.ErrorIs(t, f.try(f.buyer, ix), ErrAuthorityMismatch)
	assert.Equal(t, 100*sol, f.tokens(f.escrow()))
}

func TestProgram_WithdrawUnauthorized(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.initialize(sol))
	f.fund(100 * sol)
	require.NoError(t, f.buy(sol))

	sale := f.bank.Balance(f.saleAddress())
	require.ErrorIs(t, f.withdraw(f.buyer), ErrUnauthorized)
	assert.Equal(t, sale, f.bank.Balance(f.saleAddress()))
}

func TestProgram_BuyLogs(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.initialize(sol))
	f.fund(100 * sol)

	ix, err := NewBuyTokensInstruction(program.Crowdsale, f.associated, f.buyer.PublicKey(), f.id, f.mint, sol)
	require.NoError(t, err)
	receipt := f.send(f.buyer, ix)()
	assert.Contains(t, receipt.Logs, "Program log: Tokens transferred!")
	assert.Equal(t, ledger.LamportsPerSignature, receipt.Fee)
}

func TestProgram_BuyUsesStoredBump(t *testing.T) {
	f := newFixture(t)
	f.id = distinctBumpID(t)
	require.NoError(t, f.initialize(sol))
	f.fund(100 * sol)
	require.NoError(t, f.buy(sol))
	assert.Equal(t, sol, f.tokens(f.ata(f.buyer.PublicKey())))

	_, saleBump, err := DeriveSaleAddress(program.Crowdsale, f.id)
	require.NoError(t, err)
	f.rewrite(f.saleAddress(), func(sale *SaleLayout) {
		sale.Bump = saleBump
	})
	require.ErrorIs(t, f.buy(sol), ErrAuthorityMismatch)
	assert.Equal(t, 99*sol, f.tokens(f.escrow()))
}

func TestProgram_InitializePrefundedSale(t *testing.T) {
	f := newFixture(t)
	f.prefund(f.saleAddress(), 1)
	require.NoError(t, f.initialize(sol))

	assert.Equal(t, f.creator.PublicKey(), f.sale().Creator)
	account, err := f.bank.Account(f.saleAddress())
	require.NoError(t, err)
	assert.Equal(t, program.Crowdsale, account.Owner)
	assert.Equal(t, f.bank.MinimumBalanceForRentExemption(SaleLayoutSize), account.Lamports)

	require.ErrorIs(t, f.initialize(sol), ErrAlreadyInitialized)
}

func TestProgram_InitializePrefundedEscrow(t *testing.T) {
	f := newFixture(t)
	f.prefund(f.escrow(), 1)
	require.NoError(t, f.initialize(sol))

	account, err := f.bank.Account(f.escrow())
	require.NoError(t, err)
	assert.Equal(t, program.Token, account.Owner)
	assert.Equal(t, f.bank.MinimumBalanceForRentExemption(spltoken.TokenLayoutSize), account.Lamports)
	escrow, err := spltoken.DecodeAccount(account.Data)
	require.NoError(t, err)
	authority, _, err := DeriveAuthorityAddress(program.Crowdsale, f.id)
	require.NoError(t, err)
	assert.Equal(t, authority, escrow.Owner)
	assert.Equal(t, f.mint, escrow.Mint)

	f.fund(10 * sol)
	require.NoError(t, f.buy(sol))
}

func TestProgram_BuyPrefundedBuyerAccount(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.initialize(sol))
	f.fund(100 * sol)
	f.prefund(f.ata(f.buyer.PublicKey()), 1)

	require.NoError(t, f.buy(sol))
	assert.Equal(t, sol, f.tokens(f.ata(f.buyer.PublicKey())))
	assert.Equal(t, f.bank.MinimumBalanceForRentExemption(spltoken.TokenLayoutSize), f.bank.Balance(f.ata(f.buyer.PublicKey())))
}

func TestProgram_InitializeForeignEscrow(t *testing.T) {
	f := newFixture(t)
	// a token account at the escrow address that the authority does not own
	foreign := spltoken.AccountLayout{
		Mint:  f.mint,
		Owner: f.creator.PublicKey(),
		State: spltoken.AccountStateInitialized,
	}
	f.bank.SetAccount(f.escrow(), &ledger.Account{
		Lamports: f.bank.MinimumBalanceForRentExemption(spltoken.TokenLayoutSize),
		Owner:    program.Token,
		Data:     foreign.Encode(),
	})
	require.ErrorIs(t, f.initialize(sol), ErrAuthorityMismatch)
	_, err := f.bank.Account(f.saleAddress())
	require.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestProgram_BuyMintMismatch(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.initialize(sol))
	f.fund(100 * sol)

	ix, err := NewBuyTokensInstruction(program.Crowdsale, f.associated, f.buyer.PublicKey(), f.id, f.mint, sol)
	require.NoError(t, err)
	ix.(*program.Instruction).IsAccounts[5].PublicKey = solana.NewWallet().PublicKey()
	require.ErrorIs(t, f.try(f.buyer, ix), ErrMintMismatch)
	assert.Equal(t, 100*sol, f.tokens(f.escrow()))
}

func TestProgram_BuyInvalidBuyerAccount(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.initialize(sol))
	f.fund(100 * sol)

	buyer := f.bank.Balance(f.buyer.PublicKey())
	ix, err := NewBuyTokensInstruction(program.Crowdsale, f.associated, f.buyer.PublicKey(), f.id, f.mint, sol)
	require.NoError(t, err)
	ix.(*program.Instruction).IsAccounts[1].PublicKey = solana.NewWallet().PublicKey()
	require.ErrorIs(t, f.try(f.buyer, ix), ErrInvalidBuyerAccount)
	assert.Equal(t, buyer, f.bank.Balance(f.buyer.PublicKey()))
	assert.Equal(t, 100*sol, f.tokens(f.escrow()))
}

func TestProgram_BuyWrongEscrow(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.initialize(sol))
	f.fund(100 * sol)

	creatorTokens := f.tokens(f.ata(f.creator.PublicKey()))
	ix, err := NewBuyTokensInstruction(program.Crowdsale, f.associated, f.buyer.PublicKey(), f.id, f.mint, sol)
	require.NoError(t, err)
	ix.(*program.Instruction).IsAccounts[3].PublicKey = f.ata(f.creator.PublicKey())
	require.ErrorIs(t, f.try(f.buyer, ix), ErrAuthorityMismatch)
	assert.Equal(t, creatorTokens, f.tokens(f.ata(f.creator.PublicKey())))
	assert.Equal(t, 100*sol, f.tokens(f.escrow()))
}

func TestProgram_BuyOverflow(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.initialize(math.MaxUint64))
	f.fund(100 * sol)

	buyer := f.bank.Balance(f.buyer.PublicKey())
	sale := f.bank.Balance(f.saleAddress())
	require.ErrorIs(t, f.buy(100*sol), ErrOverflow)
	assert.Equal(t, buyer, f.bank.Balance(f.buyer.PublicKey()))
	assert.Equal(t, sale, f.bank.Balance(f.saleAddress()))
	assert.Equal(t, 100*sol, f.tokens(f.escrow()))
	_, err := f.bank.Account(f.ata(f.buyer.PublicKey()))
	require.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

// price is lamports per whole token, so a price of 1 is one lamport for a
// whole token, not one SOL.
func TestProgram_BuyAtPriceOne(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.initialize(1))
	f.fund(100 * sol)

	sale := f.bank.Balance(f.saleAddress())
	buyer := f.bank.Balance(f.buyer.PublicKey())
	require.NoError(t, f.buy(sol))
	assert.Equal(t, sale+1, f.bank.Balance(f.saleAddress()))
	rent := f.bank.MinimumBalanceForRentExemption(spltoken.TokenLayoutSize)
	assert.Equal(t, buyer-1-rent-ledger.LamportsPerSignature, f.bank.Balance(f.buyer.PublicKey()))
}

func TestProgram_UnknownInstruction(t *testing.T) {
	f := newFixture(t)
	ix := &program.Instruction{
		IsAccounts:  []*solana.AccountMeta{program.Meta(f.creator.PublicKey(), true, true)},
		IsData:      []byte{1, 2, 3, 4, 5, 6, 7, 8},
		IsProgramID: program.Crowdsale,
	}
	require.ErrorIs(t, f.try(f.creator, ix), ErrInvalidInstruction)
}
