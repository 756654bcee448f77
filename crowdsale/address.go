package crowdsale

import (
	"fmt"
	"github.com/gagliardetto/solana-go"
)

var AuthoritySeed = []byte("authority")

// DeriveSaleAddress derives the sale record address.
// Seeds: [id]
func DeriveSaleAddress(programID solana.PublicKey, id solana.PublicKey) (solana.PublicKey, uint8, error) {
	address, bump, err := solana.FindProgramAddress(
		[][]byte{
			id.Bytes(),
		},
		programID,
	)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("%w: sale %s: %s", ErrDerivation, id, err)
	}
	return address, bump, nil
}

// DeriveAuthorityAddress derives the address that owns the escrow token account.
// Seeds: [id, "authority"]
func DeriveAuthorityAddress(programID solana.PublicKey, id solana.PublicKey) (solana.PublicKey, uint8, error) {
	address, bump, err := solana.FindProgramAddress(
		[][]byte{
			id.Bytes(),
			AuthoritySeed,
		},
		programID,
	)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("%w: authority %s: %s", ErrDerivation, id, err)
	}
	return address, bump, nil
}

// AuthoritySigner is the seed list the program presents to sign for the
// authority address of id.
func AuthoritySigner(id solana.PublicKey, bump uint8) [][]byte {
	return [][]byte{id.Bytes(), AuthoritySeed, {bump}}
}

// VerifyAuthority recomputes the authority address from a stored bump and
// checks it against address.
func VerifyAuthority(programID solana.PublicKey, id solana.PublicKey, bump uint8, address solana.PublicKey) error {
	expected, err := solana.CreateProgramAddress(AuthoritySigner(id, bump), programID)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrAuthorityMismatch, err)
	}
	if expected != address {
		return fmt.Errorf("%w: expected %s, actual %s", ErrAuthorityMismatch, expected, address)
	}
	return nil
}
