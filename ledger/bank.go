package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"sync"
)

const (
	LamportsPerSignature = uint64(5000)
	MaxRecentBlockhashes = 150
)

var NativeLoader = solana.MustPublicKeyFromBase58("NativeLoader1111111111111111111111111111111")

// Receipt describes a committed transaction.
type Receipt struct {
	Signature solana.Signature
	Slot      uint64
	Fee       uint64
	Logs      []string
	Message   *solana.Message
}

// Bank holds every account and applies transactions one at a time. A
// transaction either commits all of its effects or none of them.
type Bank struct {
	logger    *zap.Logger
	mu        sync.Mutex
	rent      Rent
	accounts  map[solana.PublicKey]*Account
	programs  map[solana.PublicKey]Processor
	slot      uint64
	blockhash []solana.Hash
	processed map[solana.Signature]uint64
}

func NewBank(logger *zap.Logger) *Bank {
	b := &Bank{
		logger:    logger.Named("bank"),
		rent:      DefaultRent(),
		accounts:  make(map[solana.PublicKey]*Account),
		programs:  make(map[solana.PublicKey]Processor),
		blockhash: make([]solana.Hash, 0, MaxRecentBlockhashes),
		processed: make(map[solana.Signature]uint64),
	}
	b.advance()
	return b
}

// RegisterProgram deploys a processor at its program id.
func (b *Bank) RegisterProgram(p Processor) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.programs[p.ProgramID()] = p
	b.accounts[p.ProgramID()] = &Account{
		Lamports:   1,
		Owner:      NativeLoader,
		Data:       []byte{},
		Executable: true,
	}
	b.logger.Info("program deployed", zap.String("program", p.ProgramID().String()))
}

func (b *Bank) Rent() Rent {
	return b.rent
}

func (b *Bank) MinimumBalanceForRentExemption(size uint64) uint64 {
	return b.rent.MinimumBalance(int(size))
}

func (b *Bank) Slot() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.slot
}

func (b *Bank) LatestBlockhash() solana.Hash {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.blockhash[len(b.blockhash)-1]
}

// Account returns a copy of the stored account.
func (b *Bank) Account(key solana.PublicKey) (*Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	account, ok := b.accounts[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, key)
	}
	return account.Clone(), nil
}

func (b *Bank) Balance(key solana.PublicKey) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	account, ok := b.accounts[key]
	if !ok {
		return 0
	}
	return account.Lamports
}

// SetAccount overwrites an account outside of any transaction, the way a
// genesis config or a test fixture would.
func (b *Bank) SetAccount(key solana.PublicKey, account *Account) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accounts[key] = account.Clone()
}

// Airdrop credits lamports to a system account, creating it when absent.
func (b *Bank) Airdrop(key solana.PublicKey, lamports uint64) (solana.Signature, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	account, ok := b.accounts[key]
	if !ok {
		account = emptyAccount()
		b.accounts[key] = account
	}
	if account.Lamports > ^uint64(0)-lamports {
		return solana.Signature{}, fmt.Errorf("airdrop to %s overflows balance", key)
	}
	account.Lamports += lamports
	slot := b.slot
	b.advance()
	var signature solana.Signature
	hash := b.blockhash[len(b.blockhash)-1]
	copy(signature[:], hash[:])
	copy(signature[32:], key[:])
	b.processed[signature] = slot
	b.logger.Debug("airdrop", zap.String("to", key.String()), zap.Uint64("lamports", lamports))
	return signature, nil
}

// Send builds a transaction from instructions, signs it with signers (the
// first one pays the fee) and processes it.
func (b *Bank) Send(ctx context.Context, instructions []solana.Instruction, signers ...solana.PrivateKey) (*Receipt, error) {
	if len(signers) == 0 {
		return nil, ErrSignatureFailure
	}
	tx, err := solana.NewTransaction(instructions, b.LatestBlockhash(), solana.TransactionPayer(signers[0].PublicKey()))
	if err != nil {
		return nil, err
	}
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		for i := range signers {
			if signers[i].PublicKey() == key {
				return &signers[i]
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return b.ProcessTransaction(ctx, tx)
}

// ProcessTransaction verifies and executes a signed transaction. On failure
// the returned error is a *TransactionError and the bank is unchanged.
func (b *Bank) ProcessTransaction(ctx context.Context, tx *solana.Transaction) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(tx.Signatures) == 0 {
		return nil, ErrSignatureFailure
	}
	signature := tx.Signatures[0]
	if len(tx.Message.Instructions) == 0 {
		return nil, &TransactionError{Signature: signature, Err: ErrEmptyTransaction}
	}
	if err := tx.VerifySignatures(); err != nil {
		return nil, &TransactionError{Signature: signature, Err: fmt.Errorf("%w: %s", ErrSignatureFailure, err)}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.processed[signature]; ok {
		return nil, &TransactionError{Signature: signature, Err: ErrAlreadyProcessed}
	}
	if !b.isRecent(tx.Message.RecentBlockhash) {
		return nil, &TransactionError{Signature: signature, Err: ErrBlockhashNotFound}
	}

	exec := newExecutor(b)
	fee := LamportsPerSignature * uint64(len(tx.Signatures))
	payer := exec.load(tx.Message.AccountKeys[0])
	if payer.Lamports < fee || payer.Owner != solana.SystemProgramID {
		return nil, &TransactionError{Signature: signature, Err: ErrInsufficientFundsForFee}
	}
	payer.Lamports -= fee

	for index, compiled := range tx.Message.Instructions {
		programID, infos, err := b.resolve(exec, &tx.Message, compiled)
		if err != nil {
			return nil, &TransactionError{Signature: signature, Logs: exec.logs, Err: &InstructionError{Index: index, Err: err}}
		}
		if err := exec.execute(programID, infos, compiled.Data); err != nil {
			b.logger.Debug("transaction failed",
				zap.String("signature", signature.String()), zap.Int("instruction", index), zap.Error(err))
			return nil, &TransactionError{Signature: signature, Logs: exec.logs, Err: &InstructionError{Index: index, Err: err}}
		}
	}
	if err := exec.checkRent(); err != nil {
		return nil, &TransactionError{Signature: signature, Logs: exec.logs, Err: err}
	}

	exec.commit()
	b.processed[signature] = b.slot
	slot := b.slot
	b.advance()
	b.logger.Debug("transaction committed",
		zap.String("signature", signature.String()), zap.Uint64("slot", slot), zap.Uint64("fee", fee))
	return &Receipt{
		Signature: signature,
		Slot:      slot,
		Fee:       fee,
		Logs:      exec.logs,
		Message:   &tx.Message,
	}, nil
}

// SignatureStatus returns the slot a transaction or airdrop was committed in.
func (b *Bank) SignatureStatus(signature solana.Signature) (uint64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	slot, ok := b.processed[signature]
	return slot, ok
}

// Expire drops every recent blockhash but the newest one. Transactions built
// before the call are rejected with ErrBlockhashNotFound.
func (b *Bank) Expire() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := 0; i < MaxRecentBlockhashes; i++ {
		b.advance()
	}
}

func (b *Bank) resolve(exec *executor, message *solana.Message, compiled solana.CompiledInstruction) (solana.PublicKey, []*AccountInfo, error) {
	keys := message.AccountKeys
	if int(compiled.ProgramIDIndex) >= len(keys) {
		return solana.PublicKey{}, nil, ErrNotEnoughAccountKeys
	}
	programID := keys[compiled.ProgramIDIndex]
	infos := make([]*AccountInfo, 0, len(compiled.Accounts))
	for _, index := range compiled.Accounts {
		if int(index) >= len(keys) {
			return solana.PublicKey{}, nil, ErrNotEnoughAccountKeys
		}
		key := keys[index]
		infos = append(infos, &AccountInfo{
			Key:        key,
			IsSigner:   isSigner(message, int(index)),
			IsWritable: isWritable(message, int(index)),
			Account:    exec.load(key),
		})
	}
	return programID, infos, nil
}

func isSigner(message *solana.Message, index int) bool {
	return index < int(message.Header.NumRequiredSignatures)
}

func isWritable(message *solana.Message, index int) bool {
	signed := int(message.Header.NumRequiredSignatures)
	if index < signed {
		return index < signed-int(message.Header.NumReadonlySignedAccounts)
	}
	return index < len(message.AccountKeys)-int(message.Header.NumReadonlyUnsignedAccounts)
}

func (b *Bank) isRecent(hash solana.Hash) bool {
	for _, recent := range b.blockhash {
		if recent == hash {
			return true
		}
	}
	return false
}

// advance closes the current slot. Callers hold the lock.
func (b *Bank) advance() {
	b.slot++
	var previous solana.Hash
	if len(b.blockhash) > 0 {
		previous = b.blockhash[len(b.blockhash)-1]
	}
	buf := make([]byte, 40)
	copy(buf, previous[:])
	binary.LittleEndian.PutUint64(buf[32:], b.slot)
	b.blockhash = append(b.blockhash, solana.Hash(sha256.Sum256(buf)))
	if len(b.blockhash) > MaxRecentBlockhashes {
		b.blockhash = b.blockhash[len(b.blockhash)-MaxRecentBlockhashes:]
	}
}
