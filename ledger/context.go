package ledger

import (
	"fmt"
	"github.com/gagliardetto/solana-go"
)

const MaxInvokeDepth = 4

// SignerSeeds is the proof a program presents in place of a signature for
// an address it derived. The last element is the bump.
type SignerSeeds [][]byte

// Processor is an on-ledger program.
type Processor interface {
	ProgramID() solana.PublicKey
	Process(ic InvokeContext, data []byte) error
}

// InvokeContext is what a processor sees while executing one instruction.
type InvokeContext interface {
	ProgramID() solana.PublicKey
	Account(index int) (*AccountInfo, error)
	Accounts() []*AccountInfo
	Rent() Rent
	Log(format string, args ...interface{})
	// Invoke runs another program with a subset of the current accounts.
	// Addresses derived by the calling program from one of the signer seeds
	// are treated as signers.
	Invoke(ix solana.Instruction, signers ...SignerSeeds) error
}

type invokeContext struct {
	exec      *executor
	programID solana.PublicKey
	accounts  []*AccountInfo
	pre       map[solana.PublicKey]*Account
	depth     int
}

func (ic *invokeContext) ProgramID() solana.PublicKey {
	return ic.programID
}

func (ic *invokeContext) Account(index int) (*AccountInfo, error) {
	if index < 0 || index >= len(ic.accounts) {
		return nil, ErrNotEnoughAccountKeys
	}
	return ic.accounts[index], nil
}

func (ic *invokeContext) Accounts() []*AccountInfo {
	return ic.accounts
}

func (ic *invokeContext) Rent() Rent {
	return ic.exec.bank.rent
}

func (ic *invokeContext) Log(format string, args ...interface{}) {
	ic.exec.log("Program log: " + fmt.Sprintf(format, args...))
}

func (ic *invokeContext) Invoke(ix solana.Instruction, signers ...SignerSeeds) error {
	if ic.depth >= MaxInvokeDepth {
		return ErrCallDepth
	}
	derived := make(map[solana.PublicKey]bool, len(signers))
	for _, seeds := range signers {
		address, err := solana.CreateProgramAddress(seeds, ic.programID)
		if err != nil {
			return ErrInvalidSeeds
		}
		derived[address] = true
	}
	programID := ix.ProgramID()
	if ic.find(programID) == nil {
		return fmt.Errorf("%w: program %s", ErrMissingAccount, programID)
	}
	// a program may call itself but not be re-entered through another one
	if programID != ic.programID && ic.exec.running(programID) {
		return fmt.Errorf("%w: %s", ErrReentrancyNotAllowed, programID)
	}
	metas := ix.Accounts()
	infos := make([]*AccountInfo, 0, len(metas))
	for _, meta := range metas {
		caller := ic.find(meta.PublicKey)
		if caller == nil {
			return fmt.Errorf("%w: %s", ErrMissingAccount, meta.PublicKey)
		}
		if meta.IsWritable && !caller.IsWritable {
			return fmt.Errorf("%w: %s is not writable", ErrPrivilegeEscalation, meta.PublicKey)
		}
		if meta.IsSigner && !caller.IsSigner && !derived[meta.PublicKey] {
			return fmt.Errorf("%w: %s did not sign", ErrPrivilegeEscalation, meta.PublicKey)
		}
		infos = append(infos, &AccountInfo{
			Key:        meta.PublicKey,
			IsSigner:   meta.IsSigner,
			IsWritable: meta.IsWritable,
			Account:    caller.Account,
		})
	}
	data, err := ix.Data()
	if err != nil {
		return err
	}
	// changes made by the caller so far are checked against the caller
	if err := verify(ic.programID, ic.accounts, ic.pre); err != nil {
		return err
	}
	if err := ic.exec.execute(programID, infos, data); err != nil {
		return err
	}
	ic.pre = snapshot(ic.accounts)
	return nil
}

func (ic *invokeContext) find(key solana.PublicKey) *AccountInfo {
	var found *AccountInfo
	for _, info := range ic.accounts {
		if info.Key != key {
			continue
		}
		if found == nil {
			found = info
			continue
		}
		// the same key may appear more than once, privileges are merged
		if info.IsSigner || info.IsWritable {
			found = &AccountInfo{
				Key:        key,
				IsSigner:   found.IsSigner || info.IsSigner,
				IsWritable: found.IsWritable || info.IsWritable,
				Account:    found.Account,
			}
		}
	}
	return found
}
