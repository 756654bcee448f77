package crowdsale

import (
	"encoding/binary"
	"github.com/egaotan/solana-crowdsale/program"
	"github.com/egaotan/solana-crowdsale/spltoken"
	"github.com/gagliardetto/solana-go"
)

var (
	InitializeDiscriminator = discriminator("global", "initialize")
	BuyTokensDiscriminator  = discriminator("global", "buy_tokens")
	WithdrawDiscriminator   = discriminator("global", "withdraw")
)

type Operation string

const (
	OperationInitialize Operation = "initialize"
	OperationBuyTokens  Operation = "buy_tokens"
	OperationWithdraw   Operation = "withdraw"
)

// SaleIndex is the position of the sale account in the operation's
// account list.
func (o Operation) SaleIndex() int {
	if o == OperationBuyTokens {
		return 2
	}
	return 1
}

// DecodedInstruction is what crowdsale instruction data carries.
type DecodedInstruction struct {
	Operation Operation
	Id        solana.PublicKey
	Price     uint64
	Amount    uint64
}

func DecodeInstruction(data []byte) (*DecodedInstruction, error) {
	if len(data) < 8 {
		return nil, ErrInvalidInstruction
	}
	var tag [8]byte
	copy(tag[:], data[:8])
	args := data[8:]
	switch tag {
	case InitializeDiscriminator:
		if len(args) != 40 {
			return nil, ErrInvalidInstruction
		}
		return &DecodedInstruction{
			Operation: OperationInitialize,
			Id:        solana.PublicKeyFromBytes(args[:32]),
			Price:     binary.LittleEndian.Uint64(args[32:]),
		}, nil
	case BuyTokensDiscriminator:
		if len(args) != 8 {
			return nil, ErrInvalidInstruction
		}
		return &DecodedInstruction{Operation: OperationBuyTokens, Amount: binary.LittleEndian.Uint64(args)}, nil
	case WithdrawDiscriminator:
		if len(args) != 0 {
			return nil, ErrInvalidInstruction
		}
		return &DecodedInstruction{Operation: OperationWithdraw}, nil
	default:
		return nil, ErrInvalidInstruction
	}
}

// NewInitializeInstruction creates the sale identified by id for mint. The
// escrow is the associated token account of the sale authority and is
// created when missing.
//
// accounts: [0] creator, [1] sale, [2] mint, [3] authority, [4] escrow,
// [5] system program, [6] token program, [7] associated token program
func NewInitializeInstruction(programID solana.PublicKey, locator spltoken.AccountLocator, creator solana.PublicKey, id solana.PublicKey, mint solana.PublicKey, price uint64) (solana.Instruction, error) {
	sale, _, err := DeriveSaleAddress(programID, id)
	if err != nil {
		return nil, err
	}
	authority, _, err := DeriveAuthorityAddress(programID, id)
	if err != nil {
		return nil, err
	}
	escrow, err := locator.Locate(authority, mint)
	if err != nil {
		return nil, err
	}
	data := make([]byte, 48)
	copy(data[0:8], InitializeDiscriminator[:])
	copy(data[8:40], id.Bytes())
	binary.LittleEndian.PutUint64(data[40:48], price)
	instruction := &program.Instruction{
		IsAccounts: []*solana.AccountMeta{
			program.Meta(creator, true, true),
			program.Meta(sale, false, true),
			program.Meta(mint, false, false),
			program.Meta(authority, false, false),
			program.Meta(escrow, false, true),
			program.Meta(program.System, false, false),
			program.Meta(program.Token, false, false),
			program.Meta(program.AssociatedToken, false, false),
		},
		IsData:      data,
		IsProgramID: programID,
	}
	return instruction, nil
}

// accounts: [0] buyer, [1] buyer token account, [2] sale, [3] escrow,
// [4] authority, [5] mint, [6] token program, [7] associated token program,
// [8] system program
func NewBuyTokensInstruction(programID solana.PublicKey, locator spltoken.AccountLocator, buyer solana.PublicKey, id solana.PublicKey, mint solana.PublicKey, amount uint64) (solana.Instruction, error) {
	sale, _, err := DeriveSaleAddress(programID, id)
	if err != nil {
		return nil, err
	}
	authority, _, err := DeriveAuthorityAddress(programID, id)
	if err != nil {
		return nil, err
	}
	escrow, err := locator.Locate(authority, mint)
	if err != nil {
		return nil, err
	}
	buyerToken, err := locator.Locate(buyer, mint)
	if err != nil {
		return nil, err
	}
	data := make([]byte, 16)
	copy(data[0:8], BuyTokensDiscriminator[:])
	binary.LittleEndian.PutUint64(data[8:16], amount)
	instruction := &program.Instruction{
		IsAccounts: []*solana.AccountMeta{
			program.Meta(buyer, true, true),
			program.Meta(buyerToken, false, true),
			program.Meta(sale, false, true),
			program.Meta(escrow, false, true),
			program.Meta(authority, false, false),
			program.Meta(mint, false, false),
			program.Meta(program.Token, false, false),
			program.Meta(program.AssociatedToken, false, false),
			program.Meta(program.System, false, false),
		},
		IsData:      data,
		IsProgramID: programID,
	}
	return instruction, nil
}

// accounts: [0] creator, [1] sale, [2] system program
func NewWithdrawInstruction(programID solana.PublicKey, creator solana.PublicKey, id solana.PublicKey) (solana.Instruction, error) {
	sale, _, err := DeriveSaleAddress(programID, id)
	if err != nil {
		return nil, err
	}
	instruction := &program.Instruction{
		IsAccounts: []*solana.AccountMeta{
			program.Meta(creator, true, true),
			program.Meta(sale, false, true),
			program.Meta(program.System, false, false),
		},
		IsData:      WithdrawDiscriminator[:],
		IsProgramID: programID,
	}
	return instruction, nil
}
