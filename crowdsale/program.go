package crowdsale

import (
	"fmt"
	"github.com/egaotan/solana-crowdsale/ledger"
	"github.com/egaotan/solana-crowdsale/spltoken"
	"github.com/egaotan/solana-crowdsale/system"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// Program is the crowdsale processor. It sells tokens held in an escrow for
// native lamports at a fixed price and lets the creator withdraw proceeds.
type Program struct {
	log        *zap.Logger
	id         solana.PublicKey
	system     *system.Program
	token      *spltoken.Program
	associated *spltoken.AssociatedProgram
	locator    spltoken.AccountLocator
}

func NewProgram(logger *zap.Logger, id solana.PublicKey, systemProgram *system.Program, token *spltoken.Program, associated *spltoken.AssociatedProgram, locator spltoken.AccountLocator) *Program {
	p := &Program{
		log:        logger.Named("crowdsale"),
		id:         id,
		system:     systemProgram,
		token:      token,
		associated: associated,
		locator:    locator,
	}
	return p
}

func (p *Program) Name() string {
	return "crowdsale"
}

func (p *Program) Id() solana.PublicKey {
	return p.id
}

func (p *Program) ProgramID() solana.PublicKey {
	return p.id
}

func (p *Program) Process(ic ledger.InvokeContext, data []byte) error {
	ix, err := DecodeInstruction(data)
	if err != nil {
		return err
	}
	switch ix.Operation {
	case OperationInitialize:
		ic.Log("Instruction: Initialize")
		return p.processInitialize(ic, ix.Id, ix.Price)
	case OperationBuyTokens:
		ic.Log("Instruction: BuyTokens")
		return p.processBuyTokens(ic, ix.Amount)
	case OperationWithdraw:
		ic.Log("Instruction: Withdraw")
		return p.processWithdraw(ic)
	default:
		return ErrInvalidInstruction
	}
}

func accounts(ic ledger.InvokeContext, n int) ([]*ledger.AccountInfo, error) {
	infos := ic.Accounts()
	if len(infos) < n {
		return nil, fmt.Errorf("%w: expected %d, actual %d", ErrNotEnoughAccountKeys, n, len(infos))
	}
	return infos, nil
}

// LoadSale reads and authenticates the sale record held by info.
func (p *Program) LoadSale(info *ledger.AccountInfo) (*SaleLayout, error) {
	if info.Owner != p.id {
		return nil, fmt.Errorf("%w: owner %s", ErrInvalidAccountData, info.Owner)
	}
	sale, err := DecodeSale(info.Data)
	if err != nil {
		return nil, err
	}
	address, _, err := DeriveSaleAddress(p.id, sale.Id)
	if err != nil {
		return nil, err
	}
	if address != info.Key {
		return nil, ErrInvalidSaleAddress
	}
	return sale, nil
}

func (p *Program) processInitialize(ic ledger.InvokeContext, id solana.PublicKey, price uint64) error {
	infos, err := accounts(ic, 8)
	if err != nil {
		return err
	}
	creator, sale, mint, authority, escrow := infos[0], infos[1], infos[2], infos[3], infos[4]
	if !creator.IsSigner {
		return ErrMissingSigner
	}
	if price == 0 {
		return ErrInvalidPrice
	}
	saleAddress, saleBump, err := DeriveSaleAddress(p.id, id)
	if err != nil {
		return err
	}
	if sale.Key != saleAddress {
		return ErrInvalidSaleAddress
	}
	// lamports sent to the address ahead of time do not count as a sale
	if !sale.IsUnallocated() {
		return ErrAlreadyInitialized
	}
	authorityAddress, authorityBump, err := DeriveAuthorityAddress(p.id, id)
	if err != nil {
		return err
	}
	if authority.Key != authorityAddress {
		return ErrAuthorityMismatch
	}
	if _, err := p.token.ParseMint(mint); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidMint, err)
	}
	escrowAddress, err := p.locator.Locate(authorityAddress, mint.Key)
	if err != nil {
		return err
	}
	if escrow.Key != escrowAddress {
		return ErrAuthorityMismatch
	}
	if escrow.IsUnallocated() {
		ix, err := p.associated.InstructionCreate(creator.Key, authorityAddress, mint.Key)
		if err != nil {
			return err
		}
		if err := ic.Invoke(ix); err != nil {
			return err
		}
	} else {
		existing, err := p.token.ParseAccount(escrow)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrAuthorityMismatch, err)
		}
		if existing.Owner != authorityAddress || existing.Mint != mint.Key {
			return ErrAuthorityMismatch
		}
	}

	seeds := ledger.SignerSeeds{id.Bytes(), {saleBump}}
	if err := p.system.Create(ic, creator, sale, SaleLayoutSize, p.id, seeds); err != nil {
		return err
	}
	record := &SaleLayout{
		Id:           id,
		Price:        price,
		Status:       StatusOpen,
		TokenMint:    mint.Key,
		TokenAccount: escrow.Key,
		Bump:         authorityBump,
		Creator:      creator.Key,
	}
	copy(sale.Data, record.Encode())
	p.log.Info("sale created",
		zap.String("sale", sale.Key.String()), zap.String("mint", mint.Key.String()), zap.Uint64("price", price))
	return nil
}

func (p *Program) processBuyTokens(ic ledger.InvokeContext, amount uint64) error {
	infos, err := accounts(ic, 9)
	if err != nil {
		return err
	}
	buyer, buyerToken, sale, escrow, authority, mint := infos[0], infos[1], infos[2], infos[3], infos[4], infos[5]
	if !buyer.IsSigner {
		return ErrMissingSigner
	}
	record, err := p.LoadSale(sale)
	if err != nil {
		return err
	}
	if !record.IsOpen() {
		return ErrSaleClosed
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	if err := VerifyAuthority(p.id, record.Id, record.Bump, authority.Key); err != nil {
		return err
	}
	if escrow.Key != record.TokenAccount {
		return ErrAuthorityMismatch
	}
	if mint.Key != record.TokenMint {
		return ErrMintMismatch
	}
	mintLayout, err := p.token.ParseMint(mint)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidMint, err)
	}
	cost, err := Cost(amount, record.Price, mintLayout.Decimals)
	if err != nil {
		return err
	}
	escrowLayout, err := p.token.ParseAccount(escrow)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrAuthorityMismatch, err)
	}
	if escrowLayout.Owner != authority.Key {
		return ErrAuthorityMismatch
	}
	if escrowLayout.Amount < amount {
		return ErrInsufficientEscrow
	}
	if buyer.Lamports < cost {
		return ErrInsufficientFunds
	}
	buyerAddress, err := p.locator.Locate(buyer.Key, mint.Key)
	if err != nil {
		return err
	}
	if buyerToken.Key != buyerAddress {
		return ErrInvalidBuyerAccount
	}
	if buyerToken.IsUnallocated() {
		ix, err := p.associated.InstructionCreate(buyer.Key, buyer.Key, mint.Key)
		if err != nil {
			return err
		}
		if err := ic.Invoke(ix); err != nil {
			return err
		}
		// the new account's rent came out of the buyer
		if buyer.Lamports < cost {
			return ErrInsufficientFunds
		}
	} else {
		existing, err := p.token.ParseAccount(buyerToken)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidBuyerAccount, err)
		}
		if existing.Owner != buyer.Key || existing.Mint != mint.Key {
			return ErrInvalidBuyerAccount
		}
	}

	if cost > 0 {
		if err := ic.Invoke(p.system.InstructionTransfer(buyer.Key, sale.Key, cost)); err != nil {
			return err
		}
	}
	seeds := ledger.SignerSeeds(AuthoritySigner(record.Id, record.Bump))
	err = ic.Invoke(p.token.InstructionTransfer(escrow.Key, buyerToken.Key, authority.Key, amount), seeds)
	if err != nil {
		return err
	}
	ic.Log("Tokens transferred!")
	p.log.Debug("tokens sold",
		zap.String("sale", sale.Key.String()), zap.String("buyer", buyer.Key.String()),
		zap.Uint64("amount", amount), zap.Uint64("cost", cost))
	return nil
}

func (p *Program) processWithdraw(ic ledger.InvokeContext) error {
	infos, err := accounts(ic, 3)
	if err != nil {
		return err
	}
	creator, sale := infos[0], infos[1]
	record, err := p.LoadSale(sale)
	if err != nil {
		return err
	}
	if !creator.IsSigner || creator.Key != record.Creator {
		return ErrUnauthorized
	}
	minimum := ic.Rent().MinimumBalance(len(sale.Data))
	if sale.Lamports <= minimum {
		return ErrNothingToWithdraw
	}
	proceeds := sale.Lamports - minimum
	if creator.Lamports > ^uint64(0)-proceeds {
		return ErrOverflow
	}
	sale.Lamports -= proceeds
	creator.Lamports += proceeds
	ic.Log("Withdrew %d lamports", proceeds)
	p.log.Info("proceeds withdrawn",
		zap.String("sale", sale.Key.String()), zap.Uint64("lamports", proceeds))
	return nil
}
