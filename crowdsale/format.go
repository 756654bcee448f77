package crowdsale

import (
	"github.com/egaotan/solana-crowdsale/program"
	"github.com/shopspring/decimal"
	"math/big"
)

func FormatLamports(lamports uint64) string {
	return FormatTokens(lamports, program.DefaultDecimals)
}

func FormatTokens(amount uint64, decimals uint8) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -int32(decimals)).String()
}

// ParseTokens converts a decimal string such as "1.5" to base units.
func ParseTokens(value string, decimals uint8) (uint64, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, err
	}
	if d.IsNegative() {
		return 0, ErrInvalidAmount
	}
	scaled := d.Shift(int32(decimals)).Truncate(0).BigInt()
	if !scaled.IsUint64() {
		return 0, ErrOverflow
	}
	return scaled.Uint64(), nil
}
