package spltoken

import (
	"errors"
	"github.com/egaotan/solana-crowdsale/ledger"
	"github.com/egaotan/solana-crowdsale/program"
	"github.com/egaotan/solana-crowdsale/system"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

const (
	InstructionCreateAssociated           = 0
	InstructionCreateAssociatedIdempotent = 1
)

var ErrInvalidAssociatedAddress = errors.New("associated address does not match seed derivation")

// AccountLocator returns the canonical token account of owner for mint.
type AccountLocator interface {
	Locate(owner solana.PublicKey, mint solana.PublicKey) (solana.PublicKey, error)
}

type LocatorFunc func(owner solana.PublicKey, mint solana.PublicKey) (solana.PublicKey, error)

func (f LocatorFunc) Locate(owner solana.PublicKey, mint solana.PublicKey) (solana.PublicKey, error) {
	return f(owner, mint)
}

// DefaultLocator finds associated token accounts of the deployed token program.
var DefaultLocator AccountLocator = LocatorFunc(func(owner solana.PublicKey, mint solana.PublicKey) (solana.PublicKey, error) {
	address, _, err := FindAssociatedAddress(owner, mint)
	return address, err
})

func FindAssociatedAddress(owner solana.PublicKey, mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{
			owner.Bytes(),
			program.Token.Bytes(),
			mint.Bytes(),
		},
		program.AssociatedToken,
	)
}

// AssociatedProgram creates token accounts at addresses derived from
// (owner, token program, mint).
type AssociatedProgram struct {
	log    *zap.Logger
	id     solana.PublicKey
	token  *Program
	system *system.Program
}

func NewAssociatedProgram(logger *zap.Logger, token *Program, systemProgram *system.Program) *AssociatedProgram {
	p := &AssociatedProgram{
		log:    logger.Named("associated token"),
		id:     program.AssociatedToken,
		token:  token,
		system: systemProgram,
	}
	return p
}

func (p *AssociatedProgram) Name() string {
	return "associated token"
}

func (p *AssociatedProgram) Id() solana.PublicKey {
	return p.id
}

func (p *AssociatedProgram) ProgramID() solana.PublicKey {
	return p.id
}

func (p *AssociatedProgram) Locate(owner solana.PublicKey, mint solana.PublicKey) (solana.PublicKey, error) {
	address, _, err := p.derive(owner, mint)
	return address, err
}

func (p *AssociatedProgram) derive(owner solana.PublicKey, mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{
			owner.Bytes(),
			p.token.Id().Bytes(),
			mint.Bytes(),
		},
		p.id,
	)
}

// accounts: [0] payer, [1] associated account, [2] owner, [3] mint,
// [4] system program, [5] token program
func (p *AssociatedProgram) Process(ic ledger.InvokeContext, data []byte) error {
	idempotent := false
	if len(data) > 0 {
		switch data[0] {
		case InstructionCreateAssociated:
		case InstructionCreateAssociatedIdempotent:
			idempotent = true
		default:
			return ErrInvalidInstruction
		}
	}
	accounts := ic.Accounts()
	if len(accounts) < 6 {
		return ledger.ErrNotEnoughAccountKeys
	}
	payer, associated, owner, mint := accounts[0], accounts[1], accounts[2], accounts[3]
	address, bump, err := p.derive(owner.Key, mint.Key)
	if err != nil {
		return err
	}
	if address != associated.Key {
		return ErrInvalidAssociatedAddress
	}
	if !associated.IsUnallocated() {
		if !idempotent {
			return system.ErrAccountAlreadyInUse
		}
		existing, err := p.token.ParseAccount(associated)
		if err != nil {
			return err
		}
		if existing.Owner != owner.Key {
			return ErrOwnerMismatch
		}
		if existing.Mint != mint.Key {
			return ErrMintMismatch
		}
		return nil
	}
	seeds := ledger.SignerSeeds{owner.Key.Bytes(), p.token.Id().Bytes(), mint.Key.Bytes(), {bump}}
	err = p.system.Create(ic, payer, associated, uint64(TokenLayoutSize), p.token.Id(), seeds)
	if err != nil {
		return err
	}
	err = ic.Invoke(p.token.InstructionInitializeAccount3(associated.Key, mint.Key, owner.Key))
	if err != nil {
		return err
	}
	p.log.Debug("associated account created",
		zap.String("account", associated.Key.String()), zap.String("owner", owner.Key.String()))
	return nil
}

func (p *AssociatedProgram) instructionCreate(tag byte, payer solana.PublicKey, owner solana.PublicKey, mint solana.PublicKey) (solana.Instruction, error) {
	address, err := p.Locate(owner, mint)
	if err != nil {
		return nil, err
	}
	instruction := &program.Instruction{
		IsAccounts: []*solana.AccountMeta{
			{PublicKey: payer, IsSigner: true, IsWritable: true},
			{PublicKey: address, IsSigner: false, IsWritable: true},
			{PublicKey: owner, IsSigner: false, IsWritable: false},
			{PublicKey: mint, IsSigner: false, IsWritable: false},
			{PublicKey: p.system.Id(), IsSigner: false, IsWritable: false},
			{PublicKey: p.token.Id(), IsSigner: false, IsWritable: false},
		},
		IsData:      []byte{tag},
		IsProgramID: p.id,
	}
	return instruction, nil
}

func (p *AssociatedProgram) InstructionCreate(payer solana.PublicKey, owner solana.PublicKey, mint solana.PublicKey) (solana.Instruction, error) {
	return p.instructionCreate(InstructionCreateAssociated, payer, owner, mint)
}

func (p *AssociatedProgram) InstructionCreateIdempotent(payer solana.PublicKey, owner solana.PublicKey, mint solana.PublicKey) (solana.Instruction, error) {
	return p.instructionCreate(InstructionCreateAssociatedIdempotent, payer, owner, mint)
}
