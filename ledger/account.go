package ledger

import (
	"bytes"
	"github.com/gagliardetto/solana-go"
)

// Account is the persisted state stored at one address.
type Account struct {
	Lamports   uint64
	Owner      solana.PublicKey
	Data       []byte
	Executable bool
}

func (a *Account) Clone() *Account {
	data := make([]byte, len(a.Data))
	copy(data, a.Data)
	return &Account{
		Lamports:   a.Lamports,
		Owner:      a.Owner,
		Data:       data,
		Executable: a.Executable,
	}
}

// IsUnallocated reports whether the account is a plain system account with
// no data. It may already hold lamports.
func (a *Account) IsUnallocated() bool {
	return len(a.Data) == 0 && a.Owner == solana.SystemProgramID && !a.Executable
}

func (a *Account) equal(b *Account) bool {
	return a.Lamports == b.Lamports && a.Owner == b.Owner && a.Executable == b.Executable && bytes.Equal(a.Data, b.Data)
}

func emptyAccount() *Account {
	return &Account{Owner: solana.SystemProgramID, Data: []byte{}}
}

// AccountInfo is the view of an account handed to a program. The embedded
// Account points into the transaction overlay so writes are visible to
// every later instruction of the same transaction.
type AccountInfo struct {
	Key        solana.PublicKey
	IsSigner   bool
	IsWritable bool
	*Account
}
