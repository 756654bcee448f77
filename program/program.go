package program

import "github.com/gagliardetto/solana-go"

var (
	Crowdsale       = solana.MustPublicKeyFromBase58("4tAj8UbxCCVChy785xKz4ZK17vKch3CAbwM8co7u8VUb")
	Token           = solana.MustPublicKeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	AssociatedToken = solana.MustPublicKeyFromBase58("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
	System          = solana.MustPublicKeyFromBase58("11111111111111111111111111111111")
	SysRent         = solana.MustPublicKeyFromBase58("SysvarRent111111111111111111111111111111111")
)

var (
	LamportsPerSol  = uint64(1000000000)
	DefaultDecimals = uint8(9)
)
