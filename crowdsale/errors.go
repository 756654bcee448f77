package crowdsale

import "fmt"

type ErrorKind int

const (
	KindInvalidConfiguration ErrorKind = iota
	KindAlreadyInitialized
	KindAuthorityMismatch
	KindSaleClosed
	KindInsufficientFunds
	KindOverflow
	KindUnauthorized
	KindNothingToWithdraw
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidConfiguration:
		return "InvalidConfiguration"
	case KindAlreadyInitialized:
		return "AlreadyInitialized"
	case KindAuthorityMismatch:
		return "AuthorityMismatch"
	case KindSaleClosed:
		return "SaleClosed"
	case KindInsufficientFunds:
		return "InsufficientFunds"
	case KindOverflow:
		return "Overflow"
	case KindUnauthorized:
		return "Unauthorized"
	case KindNothingToWithdraw:
		return "NothingToWithdraw"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is a program error with a stable custom code, the way it is
// reported back to clients.
type Error struct {
	Code uint32
	Name string
	Msg  string
	Kind ErrorKind
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Name, e.Code, e.Msg)
}

const ErrorCodeOffset = 6000

var (
	ErrInvalidPrice         = &Error{6000, "InvalidPrice", "price must be greater than zero", KindInvalidConfiguration}
	ErrInvalidAmount        = &Error{6001, "InvalidAmount", "amount must be greater than zero", KindInvalidConfiguration}
	ErrAlreadyInitialized   = &Error{6002, "AlreadyInitialized", "sale already exists for this identifier", KindAlreadyInitialized}
	ErrAuthorityMismatch    = &Error{6003, "AuthorityMismatch", "escrow is not controlled by the derived sale authority", KindAuthorityMismatch}
	ErrSaleClosed           = &Error{6004, "SaleClosed", "sale is not open", KindSaleClosed}
	ErrInsufficientFunds    = &Error{6005, "InsufficientFunds", "buyer cannot pay for the requested amount", KindInsufficientFunds}
	ErrInsufficientEscrow   = &Error{6006, "InsufficientEscrow", "escrow holds fewer tokens than requested", KindInsufficientFunds}
	ErrOverflow             = &Error{6007, "Overflow", "arithmetic overflow", KindOverflow}
	ErrUnauthorized         = &Error{6008, "Unauthorized", "signer is not the creator of this sale", KindUnauthorized}
	ErrNothingToWithdraw    = &Error{6009, "NothingToWithdraw", "no proceeds above the rent-exempt minimum", KindNothingToWithdraw}
	ErrInvalidSaleAddress   = &Error{6010, "InvalidSaleAddress", "sale address does not match its derivation", KindInvalidConfiguration}
	ErrInvalidMint          = &Error{6011, "InvalidMint", "token mint is not an initialized mint", KindInvalidConfiguration}
	ErrMintMismatch         = &Error{6012, "MintMismatch", "token mint does not match the sale", KindInvalidConfiguration}
	ErrInvalidBuyerAccount  = &Error{6013, "InvalidBuyerAccount", "buyer token account is not the buyer's account for this mint", KindInvalidConfiguration}
	ErrInvalidAccountData   = &Error{6014, "InvalidAccountData", "account data does not hold a sale record", KindInvalidConfiguration}
	ErrDerivation           = &Error{6015, "Derivation", "no valid program address for these seeds", KindInvalidConfiguration}
	ErrInvalidInstruction   = &Error{6016, "InvalidInstruction", "instruction data could not be decoded", KindInvalidConfiguration}
	ErrMissingSigner        = &Error{6017, "MissingSigner", "required signature is missing", KindUnauthorized}
	ErrInvalidTransition    = &Error{6018, "InvalidTransition", "sale status cannot move to the requested state", KindInvalidConfiguration}
	ErrNotEnoughAccountKeys = &Error{6019, "NotEnoughAccountKeys", "instruction is missing accounts", KindInvalidConfiguration}
)

var errorsByCode = map[uint32]*Error{}

func init() {
	for _, e := range []*Error{
		ErrInvalidPrice, ErrInvalidAmount, ErrAlreadyInitialized, ErrAuthorityMismatch, ErrSaleClosed,
		ErrInsufficientFunds, ErrInsufficientEscrow, ErrOverflow, ErrUnauthorized, ErrNothingToWithdraw,
		ErrInvalidSaleAddress, ErrInvalidMint, ErrMintMismatch, ErrInvalidBuyerAccount, ErrInvalidAccountData,
		ErrDerivation, ErrInvalidInstruction, ErrMissingSigner, ErrInvalidTransition, ErrNotEnoughAccountKeys,
	} {
		errorsByCode[e.Code] = e
	}
}

// ErrorFromCode maps a custom program error code back to its error.
func ErrorFromCode(code uint32) (*Error, bool) {
	e, ok := errorsByCode[code]
	return e, ok
}
