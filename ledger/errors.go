package ledger

import (
	"errors"
	"fmt"
	"github.com/gagliardetto/solana-go"
)

var (
	ErrEmptyTransaction         = errors.New("transaction has no instructions")
	ErrSignatureFailure         = errors.New("transaction did not pass signature verification")
	ErrBlockhashNotFound        = errors.New("blockhash not found")
	ErrAlreadyProcessed         = errors.New("this transaction has already been processed")
	ErrInsufficientFundsForFee  = errors.New("insufficient funds for fee")
	ErrInsufficientFundsForRent = errors.New("transaction results in an account with insufficient funds for rent")
	ErrProgramNotFound          = errors.New("attempt to load a program that does not exist")
	ErrMissingAccount           = errors.New("an account required by the instruction is missing")
	ErrNotEnoughAccountKeys     = errors.New("insufficient account keys for instruction")
	ErrReadonlyDataModified     = errors.New("instruction modified data of a read-only account")
	ErrReadonlyLamportChange    = errors.New("instruction changed the balance of a read-only account")
	ErrExternalDataModified     = errors.New("instruction modified data of an account it does not own")
	ErrExternalLamportSpend     = errors.New("instruction spent from the balance of an account it does not own")
	ErrModifiedProgramID        = errors.New("instruction illegally modified the program id of an account")
	ErrUnbalancedInstruction    = errors.New("sum of account balances before and after instruction do not match")
	ErrPrivilegeEscalation      = errors.New("cross-program invocation with unauthorized signer or writable account")
	ErrInvalidSeeds             = errors.New("provided seeds do not result in a valid address")
	ErrCallDepth                = errors.New("cross-program invocation call depth too deep")
	ErrReentrancyNotAllowed     = errors.New("cross-program invocation reentrancy not allowed for this instruction")
	ErrAccountNotFound          = errors.New("account not found")
)

// InstructionError reports the failing instruction of a transaction. The
// wrapped error is whatever the program returned.
type InstructionError struct {
	Index int
	Err   error
}

func (e *InstructionError) Error() string {
	return fmt.Sprintf("error processing instruction %d: %s", e.Index, e.Err)
}

func (e *InstructionError) Unwrap() error {
	return e.Err
}

// TransactionError carries the logs collected before the failure.
type TransactionError struct {
	Signature solana.Signature
	Logs      []string
	Err       error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction %s failed: %s", e.Signature, e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}
