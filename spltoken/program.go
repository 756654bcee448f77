package spltoken

import (
	"encoding/binary"
	"errors"
	"github.com/egaotan/solana-crowdsale/ledger"
	"github.com/egaotan/solana-crowdsale/program"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

const (
	InstructionInitializeMint     = 0
	InstructionInitializeAccount  = 1
	InstructionTransfer           = 3
	InstructionMintTo             = 7
	InstructionInitializeAccount3 = 18
)

var (
	ErrInvalidInstruction       = errors.New("invalid token instruction")
	ErrAlreadyInUse             = errors.New("account or token already in use")
	ErrUninitializedState       = errors.New("state is uninitialized")
	ErrInvalidOwner             = errors.New("account not owned by the token program")
	ErrOwnerMismatch            = errors.New("owner does not match")
	ErrMintMismatch             = errors.New("account not associated with this mint")
	ErrInsufficientFunds        = errors.New("insufficient funds")
	ErrNotRentExempt            = errors.New("lamport balance below rent-exempt threshold")
	ErrFixedSupply              = errors.New("fixed supply")
	ErrOverflow                 = errors.New("operation overflowed")
	ErrAccountFrozen            = errors.New("account is frozen")
	ErrMissingRequiredSignature = errors.New("missing required signature")
)

type Program struct {
	log *zap.Logger
	id  solana.PublicKey
}

func NewProgram(logger *zap.Logger) *Program {
	p := &Program{
		log: logger.Named("spl token"),
		id:  program.Token,
	}
	return p
}

func (p *Program) Name() string {
	return "spl token"
}

func (p *Program) Id() solana.PublicKey {
	return p.id
}

func (p *Program) ProgramID() solana.PublicKey {
	return p.id
}

func (p *Program) Process(ic ledger.InvokeContext, data []byte) error {
	if len(data) < 1 {
		return ErrInvalidInstruction
	}
	switch data[0] {
	case InstructionInitializeMint:
		return p.processInitializeMint(ic, data[1:])
	case InstructionInitializeAccount:
		ownerInfo, err := ic.Account(2)
		if err != nil {
			return err
		}
		return p.processInitializeAccount(ic, ownerInfo.Key)
	case InstructionInitializeAccount3:
		if len(data) != 33 {
			return ErrInvalidInstruction
		}
		return p.processInitializeAccount(ic, solana.PublicKeyFromBytes(data[1:]))
	case InstructionTransfer:
		if len(data) != 9 {
			return ErrInvalidInstruction
		}
		return p.processTransfer(ic, binary.LittleEndian.Uint64(data[1:]))
	case InstructionMintTo:
		if len(data) != 9 {
			return ErrInvalidInstruction
		}
		return p.processMintTo(ic, binary.LittleEndian.Uint64(data[1:]))
	default:
		return ErrInvalidInstruction
	}
}

// ParseMint reads a mint account owned by the token program.
func (p *Program) ParseMint(info *ledger.AccountInfo) (MintLayout, error) {
	if info.Owner != p.id {
		return MintLayout{}, ErrInvalidOwner
	}
	mint, err := DecodeMint(info.Data)
	if err != nil {
		return mint, err
	}
	if mint.IsInitialized == 0 {
		return mint, ErrUninitializedState
	}
	return mint, nil
}

// ParseAccount reads an initialized token account owned by the token program.
func (p *Program) ParseAccount(info *ledger.AccountInfo) (AccountLayout, error) {
	if info.Owner != p.id {
		return AccountLayout{}, ErrInvalidOwner
	}
	account, err := DecodeAccount(info.Data)
	if err != nil {
		return account, err
	}
	if account.State == AccountStateUninitialized {
		return account, ErrUninitializedState
	}
	return account, nil
}

// accounts: [0] mint
func (p *Program) processInitializeMint(ic ledger.InvokeContext, data []byte) error {
	if len(data) < 34 {
		return ErrInvalidInstruction
	}
	info, err := ic.Account(0)
	if err != nil {
		return err
	}
	if info.Owner != p.id || len(info.Data) != MintLayoutSize {
		return ErrInvalidOwner
	}
	current, err := DecodeMint(info.Data)
	if err != nil {
		return err
	}
	if current.IsInitialized != 0 {
		return ErrAlreadyInUse
	}
	if !ic.Rent().IsExempt(info.Lamports, len(info.Data)) {
		return ErrNotRentExempt
	}
	mint := MintLayout{
		MintAuthorityOption: optionSome,
		MintAuthority:       solana.PublicKeyFromBytes(data[1:33]),
		Decimals:            data[0],
		IsInitialized:       1,
	}
	if data[33] == 1 {
		if len(data) < 66 {
			return ErrInvalidInstruction
		}
		mint.FreezeAuthorityOption = optionSome
		mint.FreezeAuthority = solana.PublicKeyFromBytes(data[34:66])
	}
	copy(info.Data, mint.Encode())
	return nil
}

// accounts: [0] account, [1] mint
func (p *Program) processInitializeAccount(ic ledger.InvokeContext, owner solana.PublicKey) error {
	info, err := ic.Account(0)
	if err != nil {
		return err
	}
	mintInfo, err := ic.Account(1)
	if err != nil {
		return err
	}
	if info.Owner != p.id || len(info.Data) != TokenLayoutSize {
		return ErrInvalidOwner
	}
	current, err := DecodeAccount(info.Data)
	if err != nil {
		return err
	}
	if current.State != AccountStateUninitialized {
		return ErrAlreadyInUse
	}
	if !ic.Rent().IsExempt(info.Lamports, len(info.Data)) {
		return ErrNotRentExempt
	}
	if _, err := p.ParseMint(mintInfo); err != nil {
		return err
	}
	account := AccountLayout{
		Mint:  mintInfo.Key,
		Owner: owner,
		State: AccountStateInitialized,
	}
	copy(info.Data, account.Encode())
	return nil
}

// accounts: [0] source, [1] destination, [2] source owner
func (p *Program) processTransfer(ic ledger.InvokeContext, amount uint64) error {
	sourceInfo, err := ic.Account(0)
	if err != nil {
		return err
	}
	destinationInfo, err := ic.Account(1)
	if err != nil {
		return err
	}
	authorityInfo, err := ic.Account(2)
	if err != nil {
		return err
	}
	source, err := p.ParseAccount(sourceInfo)
	if err != nil {
		return err
	}
	destination, err := p.ParseAccount(destinationInfo)
	if err != nil {
		return err
	}
	if source.State == AccountStateFrozen || destination.State == AccountStateFrozen {
		return ErrAccountFrozen
	}
	if source.Mint != destination.Mint {
		return ErrMintMismatch
	}
	if source.Owner != authorityInfo.Key {
		return ErrOwnerMismatch
	}
	if !authorityInfo.IsSigner {
		return ErrMissingRequiredSignature
	}
	if source.Amount < amount {
		return ErrInsufficientFunds
	}
	if sourceInfo.Key == destinationInfo.Key {
		return nil
	}
	if destination.Amount > ^uint64(0)-amount {
		return ErrOverflow
	}
	source.Amount -= amount
	destination.Amount += amount
	copy(sourceInfo.Data, source.Encode())
	copy(destinationInfo.Data, destination.Encode())
	p.log.Debug("transfer",
		zap.String("from", sourceInfo.Key.String()), zap.String("to", destinationInfo.Key.String()), zap.Uint64("amount", amount))
	return nil
}

// accounts: [0] mint, [1] destination, [2] mint authority
func (p *Program) processMintTo(ic ledger.InvokeContext, amount uint64) error {
	mintInfo, err := ic.Account(0)
	if err != nil {
		return err
	}
	destinationInfo, err := ic.Account(1)
	if err != nil {
		return err
	}
	authorityInfo, err := ic.Account(2)
	if err != nil {
		return err
	}
	mint, err := p.ParseMint(mintInfo)
	if err != nil {
		return err
	}
	destination, err := p.ParseAccount(destinationInfo)
	if err != nil {
		return err
	}
	if destination.Mint != mintInfo.Key {
		return ErrMintMismatch
	}
	if !mint.HasMintAuthority() {
		return ErrFixedSupply
	}
	if mint.MintAuthority != authorityInfo.Key {
		return ErrOwnerMismatch
	}
	if !authorityInfo.IsSigner {
		return ErrMissingRequiredSignature
	}
	if mint.Supply > ^uint64(0)-amount {
		return ErrOverflow
	}
	mint.Supply += amount
	destination.Amount += amount
	copy(mintInfo.Data, mint.Encode())
	copy(destinationInfo.Data, destination.Encode())
	return nil
}

func (p *Program) InstructionInitializeMint(mint solana.PublicKey, decimals uint8, mintAuthority solana.PublicKey, freezeAuthority *solana.PublicKey) solana.Instruction {
	data := make([]byte, 35, 67)
	data[0] = InstructionInitializeMint
	data[1] = decimals
	copy(data[2:34], mintAuthority.Bytes())
	if freezeAuthority != nil {
		data[34] = 1
		data = append(data, freezeAuthority.Bytes()...)
	}
	instruction := &program.Instruction{
		IsAccounts: []*solana.AccountMeta{
			{PublicKey: mint, IsSigner: false, IsWritable: true},
			{PublicKey: program.SysRent, IsSigner: false, IsWritable: false},
		},
		IsData:      data,
		IsProgramID: p.id,
	}
	return instruction
}

func (p *Program) InstructionInitializeAccount(account solana.PublicKey, mint solana.PublicKey, owner solana.PublicKey) solana.Instruction {
	data := make([]byte, 1)
	data[0] = InstructionInitializeAccount
	instruction := &program.Instruction{
		IsAccounts: []*solana.AccountMeta{
			{PublicKey: account, IsSigner: false, IsWritable: true},
			{PublicKey: mint, IsSigner: false, IsWritable: false},
			{PublicKey: owner, IsSigner: false, IsWritable: false},
			{PublicKey: program.SysRent, IsSigner: false, IsWritable: false},
		},
		IsData:      data,
		IsProgramID: p.id,
	}
	return instruction
}

func (p *Program) InstructionInitializeAccount3(account solana.PublicKey, mint solana.PublicKey, owner solana.PublicKey) solana.Instruction {
	data := make([]byte, 33)
	data[0] = InstructionInitializeAccount3
	copy(data[1:], owner.Bytes())
	instruction := &program.Instruction{
		IsAccounts: []*solana.AccountMeta{
			{PublicKey: account, IsSigner: false, IsWritable: true},
			{PublicKey: mint, IsSigner: false, IsWritable: false},
		},
		IsData:      data,
		IsProgramID: p.id,
	}
	return instruction
}

func (p *Program) InstructionTransfer(source solana.PublicKey, destination solana.PublicKey, owner solana.PublicKey, amount uint64) solana.Instruction {
	data := make([]byte, 9)
	data[0] = InstructionTransfer
	binary.LittleEndian.PutUint64(data[1:], amount)
	instruction := &program.Instruction{
		IsAccounts: []*solana.AccountMeta{
			{PublicKey: source, IsSigner: false, IsWritable: true},
			{PublicKey: destination, IsSigner: false, IsWritable: true},
			{PublicKey: owner, IsSigner: true, IsWritable: false},
		},
		IsData:      data,
		IsProgramID: p.id,
	}
	return instruction
}

func (p *Program) InstructionMintTo(mint solana.PublicKey, destination solana.PublicKey, authority solana.PublicKey, amount uint64) solana.Instruction {
	data := make([]byte, 9)
	data[0] = InstructionMintTo
	binary.LittleEndian.PutUint64(data[1:], amount)
	instruction := &program.Instruction{
		IsAccounts: []*solana.AccountMeta{
			{PublicKey: mint, IsSigner: false, IsWritable: true},
			{PublicKey: destination, IsSigner: false, IsWritable: true},
			{PublicKey: authority, IsSigner: true, IsWritable: false},
		},
		IsData:      data,
		IsProgramID: p.id,
	}
	return instruction
}
