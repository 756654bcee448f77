package crowdsale

import (
	"github.com/egaotan/solana-crowdsale/program"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestDeriveAddresses(t *testing.T) {
	id := solana.NewWallet().PublicKey()
	sale, saleBump, err := DeriveSaleAddress(program.Crowdsale, id)
	require.NoError(t, err)
	again, againBump, err := DeriveSaleAddress(program.Crowdsale, id)
	require.NoError(t, err)
	assert.Equal(t, sale, again)
	assert.Equal(t, saleBump, againBump)

	authority, bump, err := DeriveAuthorityAddress(program.Crowdsale, id)
	require.NoError(t, err)
	assert.NotEqual(t, sale, authority)
	require.NoError(t, VerifyAuthority(program.Crowdsale, id, bump, authority))
	require.ErrorIs(t, VerifyAuthority(program.Crowdsale, id, bump, sale), ErrAuthorityMismatch)

	other, _, err := DeriveSaleAddress(solana.SystemProgramID, id)
	require.NoError(t, err)
	assert.NotEqual(t, sale, other)
}

func TestErrorFromCode(t *testing.T) {
	e, ok := ErrorFromCode(6004)
	require.True(t, ok)
	assert.Equal(t, ErrSaleClosed, e)
	assert.Equal(t, KindSaleClosed, e.Kind)
	_, ok = ErrorFromCode(42)
	assert.False(t, ok)
	assert.Equal(t, "NothingToWithdraw (6009): no proceeds above the rent-exempt minimum", ErrNothingToWithdraw.Error())
}
