package system

import (
	"encoding/binary"
	"errors"
	"github.com/egaotan/solana-crowdsale/ledger"
	"github.com/egaotan/solana-crowdsale/program"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

const (
	InstructionCreateAccount = iota
	InstructionAssign
	InstructionTransfer
)

const InstructionAllocate = 8

const MaxAccountDataSize = 10 * 1024 * 1024

var (
	ErrInvalidInstructionData   = errors.New("invalid instruction data")
	ErrInsufficientFunds        = errors.New("insufficient funds")
	ErrAccountAlreadyInUse      = errors.New("account already in use")
	ErrInvalidAccountOwner      = errors.New("invalid account owner")
	ErrAccountNotRentExempt     = errors.New("account not rent exempt")
	ErrMissingRequiredSignature = errors.New("missing required signature")
	ErrAccountDataTooLarge      = errors.New("account data too large")
	ErrLamportOverflow          = errors.New("lamport overflow")
)

type Program struct {
	log *zap.Logger
	id  solana.PublicKey
}

func NewProgram(logger *zap.Logger) *Program {
	p := &Program{
		log: logger.Named("system"),
		id:  program.System,
	}
	return p
}

func (p *Program) Name() string {
	return "system"
}

func (p *Program) Id() solana.PublicKey {
	return p.id
}

func (p *Program) ProgramID() solana.PublicKey {
	return p.id
}

func (p *Program) Process(ic ledger.InvokeContext, data []byte) error {
	if len(data) < 4 {
		return ErrInvalidInstructionData
	}
	switch binary.LittleEndian.Uint32(data[:4]) {
	case InstructionCreateAccount:
		return p.processCreateAccount(ic, data[4:])
	case InstructionAssign:
		return p.processAssign(ic, data[4:])
	case InstructionTransfer:
		return p.processTransfer(ic, data[4:])
	case InstructionAllocate:
		return p.processAllocate(ic, data[4:])
	default:
		return ErrInvalidInstructionData
	}
}

// accounts: [0] funder, [1] new account
func (p *Program) processCreateAccount(ic ledger.InvokeContext, data []byte) error {
	if len(data) < 48 {
		return ErrInvalidInstructionData
	}
	lamports := binary.LittleEndian.Uint64(data[0:8])
	space := binary.LittleEndian.Uint64(data[8:16])
	owner := solana.PublicKeyFromBytes(data[16:48])
	if space > MaxAccountDataSize {
		return ErrAccountDataTooLarge
	}
	funder, err := ic.Account(0)
	if err != nil {
		return err
	}
	created, err := ic.Account(1)
	if err != nil {
		return err
	}
	if !funder.IsSigner || !created.IsSigner {
		return ErrMissingRequiredSignature
	}
	if created.Owner != p.id || len(created.Data) > 0 || created.Lamports > 0 {
		return ErrAccountAlreadyInUse
	}
	if funder.Lamports < lamports {
		return ErrInsufficientFunds
	}
	if lamports < ic.Rent().MinimumBalance(int(space)) {
		return ErrAccountNotRentExempt
	}
	funder.Lamports -= lamports
	created.Lamports = lamports
	created.Data = make([]byte, space)
	created.Owner = owner
	return nil
}

// accounts: [0] account
func (p *Program) processAssign(ic ledger.InvokeContext, data []byte) error {
	if len(data) < 32 {
		return ErrInvalidInstructionData
	}
	account, err := ic.Account(0)
	if err != nil {
		return err
	}
	if !account.IsSigner {
		return ErrMissingRequiredSignature
	}
	if account.Owner != p.id {
		return ErrInvalidAccountOwner
	}
	account.Owner = solana.PublicKeyFromBytes(data[0:32])
	return nil
}

// accounts: [0] account
func (p *Program) processAllocate(ic ledger.InvokeContext, data []byte) error {
	if len(data) < 8 {
		return ErrInvalidInstructionData
	}
	space := binary.LittleEndian.Uint64(data[0:8])
	if space > MaxAccountDataSize {
		return ErrAccountDataTooLarge
	}
	account, err := ic.Account(0)
	if err != nil {
		return err
	}
	if !account.IsSigner {
		return ErrMissingRequiredSignature
	}
	if account.Owner != p.id || len(account.Data) > 0 {
		return ErrAccountAlreadyInUse
	}
	account.Data = make([]byte, space)
	return nil
}

// accounts: [0] from, [1] to
func (p *Program) processTransfer(ic ledger.InvokeContext, data []byte) error {
	if len(data) < 8 {
		return ErrInvalidInstructionData
	}
	lamports := binary.LittleEndian.Uint64(data[0:8])
	from, err := ic.Account(0)
	if err != nil {
		return err
	}
	to, err := ic.Account(1)
	if err != nil {
		return err
	}
	if !from.IsSigner {
		return ErrMissingRequiredSignature
	}
	if len(from.Data) > 0 {
		return ErrInvalidAccountOwner
	}
	if from.Lamports < lamports {
		p.log.Debug("transfer: insufficient lamports",
			zap.String("from", from.Key.String()), zap.Uint64("need", lamports), zap.Uint64("have", from.Lamports))
		return ErrInsufficientFunds
	}
	if to.Lamports > ^uint64(0)-lamports {
		return ErrLamportOverflow
	}
	from.Lamports -= lamports
	to.Lamports += lamports
	return nil
}

// Create invokes the system program to allocate created with space bytes for
// owner, funded by payer up to the rent-exempt minimum. An address that
// already holds lamports but no data is topped up, allocated and assigned
// instead of failing the way CreateAccount does.
func (p *Program) Create(ic ledger.InvokeContext, payer *ledger.AccountInfo, created *ledger.AccountInfo, space uint64, owner solana.PublicKey, seeds ...ledger.SignerSeeds) error {
	lamports := ic.Rent().MinimumBalance(int(space))
	if created.Lamports == 0 {
		return ic.Invoke(p.InstructionCreateAccount(payer.Key, created.Key, lamports, space, owner), seeds...)
	}
	if !created.IsUnallocated() {
		return ErrAccountAlreadyInUse
	}
	if created.Lamports < lamports {
		if err := ic.Invoke(p.InstructionTransfer(payer.Key, created.Key, lamports-created.Lamports)); err != nil {
			return err
		}
	}
	if err := ic.Invoke(p.InstructionAllocate(created.Key, space), seeds...); err != nil {
		return err
	}
	return ic.Invoke(p.InstructionAssign(created.Key, owner), seeds...)
}

func (p *Program) InstructionCreateAccount(fromKey solana.PublicKey, newKey solana.PublicKey, lamports uint64, space uint64, ownerId solana.PublicKey) solana.Instruction {
	data := make([]byte, 52)
	binary.LittleEndian.PutUint32(data[0:], InstructionCreateAccount)
	binary.LittleEndian.PutUint64(data[4:], lamports)
	binary.LittleEndian.PutUint64(data[12:], space)
	copy(data[20:], ownerId.Bytes())
	instruction := &program.Instruction{
		IsAccounts: []*solana.AccountMeta{
			{PublicKey: fromKey, IsSigner: true, IsWritable: true},
			{PublicKey: newKey, IsSigner: true, IsWritable: true},
		},
		IsData:      data,
		IsProgramID: p.id,
	}
	return instruction
}

func (p *Program) InstructionAssign(key solana.PublicKey, ownerId solana.PublicKey) solana.Instruction {
	data := make([]byte, 36)
	binary.LittleEndian.PutUint32(data[0:], InstructionAssign)
	copy(data[4:], ownerId.Bytes())
	instruction := &program.Instruction{
		IsAccounts: []*solana.AccountMeta{
			{PublicKey: key, IsSigner: true, IsWritable: true},
		},
		IsData:      data,
		IsProgramID: p.id,
	}
	return instruction
}

func (p *Program) InstructionAllocate(key solana.PublicKey, space uint64) solana.Instruction {
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:], InstructionAllocate)
	binary.LittleEndian.PutUint64(data[4:], space)
	instruction := &program.Instruction{
		IsAccounts: []*solana.AccountMeta{
			{PublicKey: key, IsSigner: true, IsWritable: true},
		},
		IsData:      data,
		IsProgramID: p.id,
	}
	return instruction
}

func (p *Program) InstructionTransfer(fromKey solana.PublicKey, toKey solana.PublicKey, lamports uint64) solana.Instruction {
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:], InstructionTransfer)
	binary.LittleEndian.PutUint64(data[4:], lamports)
	instruction := &program.Instruction{
		IsAccounts: []*solana.AccountMeta{
			{PublicKey: fromKey, IsSigner: true, IsWritable: true},
			{PublicKey: toKey, IsSigner: false, IsWritable: true},
		},
		IsData:      data,
		IsProgramID: p.id,
	}
	return instruction
}
