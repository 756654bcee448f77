package ledger

import (
	"bytes"
	"fmt"
	"github.com/badgerodon/collections/stack"
	"github.com/gagliardetto/solana-go"
)

// executor runs one transaction against a copy-on-write overlay of the bank.
// Nothing reaches the bank unless commit is called.
type executor struct {
	bank    *Bank
	overlay map[solana.PublicKey]*Account
	logs    []string
	calls   *stack.Stack
	active  map[solana.PublicKey]int
}

func newExecutor(bank *Bank) *executor {
	return &executor{
		bank:    bank,
		overlay: make(map[solana.PublicKey]*Account),
		logs:    make([]string, 0),
		calls:   stack.New(),
		active:  make(map[solana.PublicKey]int),
	}
}

// running reports whether programID has a frame on the call stack.
func (e *executor) running(programID solana.PublicKey) bool {
	return e.active[programID] > 0
}

func (e *executor) push(programID solana.PublicKey) {
	e.calls.Push(programID)
	e.active[programID]++
}

func (e *executor) pop() {
	programID := e.calls.Pop().(solana.PublicKey)
	e.active[programID]--
}

func (e *executor) load(key solana.PublicKey) *Account {
	if account, ok := e.overlay[key]; ok {
		return account
	}
	account, ok := e.bank.accounts[key]
	if ok {
		account = account.Clone()
	} else {
		account = emptyAccount()
	}
	e.overlay[key] = account
	return account
}

func (e *executor) log(line string) {
	e.logs = append(e.logs, line)
}

func (e *executor) execute(programID solana.PublicKey, infos []*AccountInfo, data []byte) error {
	processor, ok := e.bank.programs[programID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrProgramNotFound, programID)
	}
	e.push(programID)
	defer e.pop()
	depth := e.calls.Len()
	ic := &invokeContext{
		exec:      e,
		programID: programID,
		accounts:  infos,
		pre:       snapshot(infos),
		depth:     depth,
	}
	e.log(fmt.Sprintf("Program %s invoke [%d]", programID, depth))
	if err := processor.Process(ic, data); err != nil {
		e.log(fmt.Sprintf("Program %s failed: %s", programID, err))
		return err
	}
	if err := verify(programID, ic.accounts, ic.pre); err != nil {
		e.log(fmt.Sprintf("Program %s failed: %s", programID, err))
		return err
	}
	e.log(fmt.Sprintf("Program %s success", programID))
	return nil
}

// checkRent rejects any touched account left holding data below the
// rent-exempt minimum. Closed accounts (zero lamports) are fine.
func (e *executor) checkRent() error {
	for key, account := range e.overlay {
		if account.Lamports == 0 || len(account.Data) == 0 {
			continue
		}
		if !e.bank.rent.IsExempt(account.Lamports, len(account.Data)) {
			return fmt.Errorf("%w: %s", ErrInsufficientFundsForRent, key)
		}
	}
	return nil
}

func (e *executor) commit() {
	for key, account := range e.overlay {
		if account.Lamports == 0 && !account.Executable {
			delete(e.bank.accounts, key)
			continue
		}
		e.bank.accounts[key] = account
	}
}

func snapshot(infos []*AccountInfo) map[solana.PublicKey]*Account {
	pre := make(map[solana.PublicKey]*Account, len(infos))
	for _, info := range infos {
		if _, ok := pre[info.Key]; ok {
			continue
		}
		pre[info.Key] = info.Account.Clone()
	}
	return pre
}

// verify enforces the rules the runtime applies to every instruction: only the
// owner may debit or rewrite an account, read-only accounts stay untouched
// and lamports are conserved.
func verify(programID solana.PublicKey, infos []*AccountInfo, pre map[solana.PublicKey]*Account) error {
	writable := make(map[solana.PublicKey]bool, len(infos))
	current := make(map[solana.PublicKey]*Account, len(infos))
	for _, info := range infos {
		writable[info.Key] = writable[info.Key] || info.IsWritable
		current[info.Key] = info.Account
	}
	var before, after uint64
	for key, post := range current {
		old, ok := pre[key]
		if !ok {
			continue
		}
		before += old.Lamports
		after += post.Lamports
		if old.equal(post) {
			continue
		}
		if !writable[key] {
			if old.Lamports != post.Lamports {
				return fmt.Errorf("%w: %s", ErrReadonlyLamportChange, key)
			}
			return fmt.Errorf("%w: %s", ErrReadonlyDataModified, key)
		}
		if old.Executable != post.Executable {
			return fmt.Errorf("%w: %s", ErrModifiedProgramID, key)
		}
		if old.Owner != post.Owner {
			if old.Owner != programID || !zeroed(post.Data) {
				return fmt.Errorf("%w: %s", ErrModifiedProgramID, key)
			}
		}
		if post.Lamports < old.Lamports && old.Owner != programID {
			return fmt.Errorf("%w: %s", ErrExternalLamportSpend, key)
		}
		if !bytes.Equal(old.Data, post.Data) && old.Owner != programID {
			return fmt.Errorf("%w: %s", ErrExternalDataModified, key)
		}
	}
	if before != after {
		return ErrUnbalancedInstruction
	}
	return nil
}

func zeroed(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}
