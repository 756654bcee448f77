package spltoken

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"github.com/gagliardetto/solana-go"
)

const (
	TokenLayoutSize = 165
	MintLayoutSize  = 82
)

const (
	AccountStateUninitialized uint8 = iota
	AccountStateInitialized
	AccountStateFrozen
)

var optionSome = [4]byte{1, 0, 0, 0}

// AccountLayout is a token account: who owns how much of which mint.
type AccountLayout struct {
	Mint                 solana.PublicKey
	Owner                solana.PublicKey
	Amount               uint64
	DelegateOption       [4]byte
	Delegate             solana.PublicKey
	State                uint8
	IsNativeOption       [4]byte
	IsNative             uint64
	DelegatedAmount      uint64
	CloseAuthorityOption [4]byte
	CloseAuthority       solana.PublicKey
}

type MintLayout struct {
	MintAuthorityOption   [4]byte
	MintAuthority         solana.PublicKey
	Supply                uint64
	Decimals              byte
	IsInitialized         uint8
	FreezeAuthorityOption [4]byte
	FreezeAuthority       solana.PublicKey
}

func (m *MintLayout) HasMintAuthority() bool {
	return m.MintAuthorityOption == optionSome
}

type KeyedAccount struct {
	Key    solana.PublicKey
	Height uint64
	AccountLayout
}

type KeyedMint struct {
	Key    solana.PublicKey
	Height uint64
	MintLayout
}

func DecodeAccount(data []byte) (AccountLayout, error) {
	account := AccountLayout{}
	if len(data) != TokenLayoutSize {
		return account, fmt.Errorf("spl token account data size is not valid, expected: %d, actual: %d", TokenLayoutSize, len(data))
	}
	buf := bytes.NewReader(data)
	err := binary.Read(buf, binary.LittleEndian, &account)
	if err != nil {
		return account, fmt.Errorf("spl token account data is not valid, err: %s", err)
	}
	return account, nil
}

func (a *AccountLayout) Encode() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, TokenLayoutSize))
	// writes into a bytes.Buffer cannot fail
	_ = binary.Write(buf, binary.LittleEndian, a)
	return buf.Bytes()
}

func DecodeMint(data []byte) (MintLayout, error) {
	mint := MintLayout{}
	if len(data) != MintLayoutSize {
		return mint, fmt.Errorf("spl token mint data size is not valid, expected: %d, actual: %d", MintLayoutSize, len(data))
	}
	buf := bytes.NewReader(data)
	err := binary.Read(buf, binary.LittleEndian, &mint)
	if err != nil {
		return mint, fmt.Errorf("spl token mint data is not valid, err: %s", err)
	}
	return mint, nil
}

func (m *MintLayout) Encode() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, MintLayoutSize))
	// writes into a bytes.Buffer cannot fail
	_ = binary.Write(buf, binary.LittleEndian, m)
	return buf.Bytes()
}
