package crowdsale

import "math/big"

// Cost returns the lamports owed for amount base units of a token with the
// given decimals at price lamports per whole token, rounded down.
func Cost(amount uint64, price uint64, decimals uint8) (uint64, error) {
	cost := new(big.Int).Mul(new(big.Int).SetUint64(amount), new(big.Int).SetUint64(price))
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	cost.Quo(cost, scale)
	if !cost.IsUint64() {
		return 0, ErrOverflow
	}
	return cost.Uint64(), nil
}
