package crowdsale

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"github.com/gagliardetto/solana-go"
)

const SaleLayoutSize = 146

type Status uint8

const (
	StatusOpen Status = iota
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusClosed:
		return "closed"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Transition returns next if a sale in status s may move to it. Open may
// only become Closed and Closed is final.
func (s Status) Transition(next Status) (Status, error) {
	if s == StatusOpen && next == StatusClosed {
		return next, nil
	}
	return s, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, next)
}

var SaleDiscriminator = discriminator("account", "Crowdsale")

func discriminator(namespace string, name string) [8]byte {
	sum := sha256.Sum256([]byte(namespace + ":" + name))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}

// SaleLayout is the on-ledger sale record.
type SaleLayout struct {
	Discriminator [8]byte
	Id            solana.PublicKey
	Price         uint64
	Status        Status
	TokenMint     solana.PublicKey
	TokenAccount  solana.PublicKey
	Bump          uint8
	Creator       solana.PublicKey
}

func DecodeSale(data []byte) (*SaleLayout, error) {
	if len(data) != SaleLayoutSize {
		return nil, fmt.Errorf("%w: size %d", ErrInvalidAccountData, len(data))
	}
	sale := &SaleLayout{}
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, sale); err != nil {
		return nil, err
	}
	if sale.Discriminator != SaleDiscriminator {
		return nil, fmt.Errorf("%w: discriminator %x", ErrInvalidAccountData, sale.Discriminator)
	}
	if sale.Status > StatusClosed {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAccountData, sale.Status)
	}
	return sale, nil
}

func (s *SaleLayout) Encode() []byte {
	s.Discriminator = SaleDiscriminator
	buf := bytes.NewBuffer(make([]byte, 0, SaleLayoutSize))
	// SaleLayout has a fixed size, so writing it into a bytes.Buffer cannot fail
	_ = binary.Write(buf, binary.LittleEndian, s)
	return buf.Bytes()
}

func (s *SaleLayout) IsOpen() bool {
	return s.Status == StatusOpen
}
