package ledger

const (
	AccountStorageOverhead     = uint64(128)
	DefaultLamportsPerByteYear = uint64(3480)
	DefaultExemptionThreshold  = uint64(2)
)

type Rent struct {
	LamportsPerByteYear uint64
	ExemptionThreshold  uint64
}

func DefaultRent() Rent {
	return Rent{
		LamportsPerByteYear: DefaultLamportsPerByteYear,
		ExemptionThreshold:  DefaultExemptionThreshold,
	}
}

// MinimumBalance is the balance an account holding dataLen bytes must keep
// to stay stored.
func (r Rent) MinimumBalance(dataLen int) uint64 {
	return (AccountStorageOverhead + uint64(dataLen)) * r.LamportsPerByteYear * r.ExemptionThreshold
}

func (r Rent) IsExempt(lamports uint64, dataLen int) bool {
	return lamports >= r.MinimumBalance(dataLen)
}
