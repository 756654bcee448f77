package localnet

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/egaotan/solana-crowdsale/crowdsale"
	"github.com/egaotan/solana-crowdsale/ledger"
	"github.com/egaotan/solana-crowdsale/spltoken"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"math/big"
	"net/http"
)

const (
	CodeParseError        = -32700
	CodeInvalidRequest    = -32600
	CodeMethodNotFound    = -32601
	CodeInvalidParams     = -32602
	CodeTransactionFailed = -32002
	CodeSignatureFailure  = -32003
	Version               = "1.18.26"
)

type rpcRequest struct {
	Jsonrpc string            `json:"jsonrpc"`
	Id      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type rpcResponse struct {
	Jsonrpc string          `json:"jsonrpc"`
	Id      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcContext struct {
	Slot uint64 `json:"slot"`
}

type contextValue struct {
	Context rpcContext  `json:"context"`
	Value   interface{} `json:"value"`
}

type accountValue struct {
	Lamports   uint64    `json:"lamports"`
	Owner      string    `json:"owner"`
	Data       [2]string `json:"data"`
	Executable bool      `json:"executable"`
	RentEpoch  uint64    `json:"rentEpoch"`
	Space      uint64    `json:"space"`
}

type blockhashValue struct {
	Blockhash            string `json:"blockhash"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

type tokenAmountValue struct {
	Amount         string  `json:"amount"`
	Decimals       uint8   `json:"decimals"`
	UiAmount       float64 `json:"uiAmount"`
	UiAmountString string  `json:"uiAmountString"`
}

type signatureStatusValue struct {
	Slot               uint64      `json:"slot"`
	Confirmations      *uint64     `json:"confirmations"`
	Err                interface{} `json:"err"`
	ConfirmationStatus string      `json:"confirmationStatus"`
}

type transactionOpts struct {
	Encoding string `json:"encoding"`
}

type signatureStatusOpts struct {
	SearchTransactionHistory bool `json:"searchTransactionHistory"`
}

func invalidParams(format string, args ...interface{}) *rpcError {
	return &rpcError{Code: CodeInvalidParams, Message: "Invalid params: " + fmt.Sprintf(format, args...)}
}

func param(params []json.RawMessage, i int, v interface{}) *rpcError {
	if i >= len(params) {
		return invalidParams("expected at least %d params", i+1)
	}
	if err := json.Unmarshal(params[i], v); err != nil {
		return invalidParams("param %d: %s", i, err)
	}
	return nil
}

func optional(params []json.RawMessage, i int, v interface{}) *rpcError {
	if i >= len(params) {
		return nil
	}
	return param(params, i, v)
}

func paramKey(params []json.RawMessage, i int) (solana.PublicKey, *rpcError) {
	var value string
	if err := param(params, i, &value); err != nil {
		return solana.PublicKey{}, err
	}
	key, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		return solana.PublicKey{}, invalidParams("%s", err)
	}
	return key, nil
}

func (node *Node) handleRPC(c *gin.Context) {
	var req rpcRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, &rpcResponse{Jsonrpc: "2.0", Error: &rpcError{Code: CodeParseError, Message: "Parse error"}})
		return
	}
	if req.Method == "" {
		c.JSON(http.StatusOK, &rpcResponse{Jsonrpc: "2.0", Id: req.Id, Error: &rpcError{Code: CodeInvalidRequest, Message: "Invalid request"}})
		return
	}
	result, rpcErr := node.dispatch(c.Request.Context(), req.Method, req.Params)
	if rpcErr != nil {
		node.logger.Debug("rpc failed", zap.String("method", req.Method), zap.String("error", rpcErr.Message))
		c.JSON(http.StatusOK, &rpcResponse{Jsonrpc: "2.0", Id: req.Id, Error: rpcErr})
		return
	}
	c.JSON(http.StatusOK, &rpcResponse{Jsonrpc: "2.0", Id: req.Id, Result: result})
}

func (node *Node) dispatch(ctx context.Context, method string, params []json.RawMessage) (interface{}, *rpcError) {
	switch method {
	case "getAccountInfo":
		return node.getAccountInfo(params)
	case "getBalance":
		return node.getBalance(params)
	case "getLatestBlockhash":
		return node.getLatestBlockhash()
	case "getMinimumBalanceForRentExemption":
		return node.getMinimumBalanceForRentExemption(params)
	case "getTokenAccountBalance":
		return node.getTokenAccountBalance(params)
	case "getSignatureStatuses":
		return node.getSignatureStatuses(params)
	case "requestAirdrop":
		return node.requestAirdrop(params)
	case "sendTransaction":
		return node.sendTransaction(ctx, params)
	case "getSlot":
		return node.bank.Slot(), nil
	case "getHealth":
		return "ok", nil
	case "getVersion":
		return map[string]interface{}{"solana-core": Version, "feature-set": 0}, nil
	default:
		return nil, &rpcError{Code: CodeMethodNotFound, Message: "Method not found"}
	}
}

func (node *Node) context() rpcContext {
	return rpcContext{Slot: node.bank.Slot()}
}

func (node *Node) getAccountInfo(params []json.RawMessage) (interface{}, *rpcError) {
	key, rpcErr := paramKey(params, 0)
	if rpcErr != nil {
		return nil, rpcErr
	}
	result := &contextValue{Context: node.context()}
	account, err := node.bank.Account(key)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return result, nil
	}
	result.Value = &accountValue{
		Lamports:   account.Lamports,
		Owner:      account.Owner.String(),
		Data:       [2]string{base64.StdEncoding.EncodeToString(account.Data), "base64"},
		Executable: account.Executable,
		Space:      uint64(len(account.Data)),
	}
	return result, nil
}

func (node *Node) getBalance(params []json.RawMessage) (interface{}, *rpcError) {
	key, rpcErr := paramKey(params, 0)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return &contextValue{Context: node.context(), Value: node.bank.Balance(key)}, nil
}

func (node *Node) getLatestBlockhash() (interface{}, *rpcError) {
	ctx := node.context()
	return &contextValue{
		Context: ctx,
		Value: &blockhashValue{
			Blockhash:            node.bank.LatestBlockhash().String(),
			LastValidBlockHeight: ctx.Slot + ledger.MaxRecentBlockhashes,
		},
	}, nil
}

func (node *Node) getMinimumBalanceForRentExemption(params []json.RawMessage) (interface{}, *rpcError) {
	var size uint64
	if rpcErr := param(params, 0, &size); rpcErr != nil {
		return nil, rpcErr
	}
	return node.bank.MinimumBalanceForRentExemption(size), nil
}

func (node *Node) getTokenAccountBalance(params []json.RawMessage) (interface{}, *rpcError) {
	key, rpcErr := paramKey(params, 0)
	if rpcErr != nil {
		return nil, rpcErr
	}
	account, err := node.bank.Account(key)
	if err != nil || account.Owner != node.token.Id() {
		return nil, invalidParams("could not find account")
	}
	layout, err := spltoken.DecodeAccount(account.Data)
	if err != nil {
		return nil, invalidParams("not a Token account")
	}
	mint, err := node.bank.Account(layout.Mint)
	if err != nil {
		return nil, invalidParams("could not find mint")
	}
	mintLayout, err := spltoken.DecodeMint(mint.Data)
	if err != nil {
		return nil, invalidParams("not a Token mint")
	}
	ui := decimal.NewFromBigInt(new(big.Int).SetUint64(layout.Amount), -int32(mintLayout.Decimals))
	return &contextValue{
		Context: node.context(),
		Value: &tokenAmountValue{
			Amount:         fmt.Sprintf("%d", layout.Amount),
			Decimals:       mintLayout.Decimals,
			UiAmount:       ui.InexactFloat64(),
			UiAmountString: crowdsale.FormatTokens(layout.Amount, mintLayout.Decimals),
		},
	}, nil
}

func (node *Node) getSignatureStatuses(params []json.RawMessage) (interface{}, *rpcError) {
	var values []string
	if rpcErr := param(params, 0, &values); rpcErr != nil {
		return nil, rpcErr
	}
	var opts signatureStatusOpts
	if rpcErr := optional(params, 1, &opts); rpcErr != nil {
		return nil, rpcErr
	}
	statuses := make([]*signatureStatusValue, 0, len(values))
	for _, value := range values {
		signature, err := solana.SignatureFromBase58(value)
		if err != nil {
			return nil, invalidParams("%s", err)
		}
		slot, ok := node.bank.SignatureStatus(signature)
		if !ok {
			statuses = append(statuses, nil)
			continue
		}
		statuses = append(statuses, &signatureStatusValue{Slot: slot, ConfirmationStatus: "finalized"})
	}
	return &contextValue{Context: node.context(), Value: statuses}, nil
}

func (node *Node) requestAirdrop(params []json.RawMessage) (interface{}, *rpcError) {
	key, rpcErr := paramKey(params, 0)
	if rpcErr != nil {
		return nil, rpcErr
	}
	var lamports uint64
	if rpcErr := param(params, 1, &lamports); rpcErr != nil {
		return nil, rpcErr
	}
	signature, err := node.bank.Airdrop(key, lamports)
	if err != nil {
		return nil, &rpcError{Code: CodeInvalidRequest, Message: err.Error()}
	}
	return signature.String(), nil
}

func (node *Node) sendTransaction(ctx context.Context, params []json.RawMessage) (interface{}, *rpcError) {
	var encoded string
	if rpcErr := param(params, 0, &encoded); rpcErr != nil {
		return nil, rpcErr
	}
	var opts transactionOpts
	if rpcErr := optional(params, 1, &opts); rpcErr != nil {
		return nil, rpcErr
	}
	var data []byte
	var err error
	switch opts.Encoding {
	case "base64":
		data, err = base64.StdEncoding.DecodeString(encoded)
	case "base58":
		data, err = base58.Decode(encoded)
	case "":
		// base58 is the documented default, some clients send base64 anyway
		if data, err = base58.Decode(encoded); err != nil {
			data, err = base64.StdEncoding.DecodeString(encoded)
		}
	default:
		return nil, invalidParams("unsupported encoding %q", opts.Encoding)
	}
	if err != nil {
		return nil, invalidParams("invalid transaction encoding: %s", err)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(data))
	if err != nil {
		return nil, invalidParams("failed to deserialize transaction: %s", err)
	}
	receipt, err := node.Process(ctx, tx)
	if err != nil {
		return nil, transactionError(err)
	}
	return receipt.Signature.String(), nil
}

// transactionError reports a failed transaction the way a validator's
// preflight check does, including the custom program error code.
func transactionError(err error) *rpcError {
	if errors.Is(err, ledger.ErrSignatureFailure) {
		return &rpcError{Code: CodeSignatureFailure, Message: "Transaction signature verification failure"}
	}
	logs := make([]string, 0)
	var txErr *ledger.TransactionError
	if errors.As(err, &txErr) && txErr.Logs != nil {
		logs = txErr.Logs
	}
	var cause interface{}
	var message string
	var instructionErr *ledger.InstructionError
	var programErr *crowdsale.Error
	switch {
	case errors.Is(err, ledger.ErrBlockhashNotFound):
		cause, message = "BlockhashNotFound", "Blockhash not found"
	case errors.Is(err, ledger.ErrAlreadyProcessed):
		cause, message = "AlreadyProcessed", "This transaction has already been processed"
	case errors.Is(err, ledger.ErrInsufficientFundsForFee):
		cause, message = "InsufficientFundsForFee", "Attempt to debit an account but found no record of a prior credit."
	case errors.Is(err, ledger.ErrInsufficientFundsForRent):
		cause, message = "InsufficientFundsForRent", "Transaction results in an account with insufficient funds for rent"
	case errors.As(err, &instructionErr):
		var detail interface{} = instructionErr.Err.Error()
		message = fmt.Sprintf("Error processing Instruction %d: %s", instructionErr.Index, instructionErr.Err)
		if errors.As(instructionErr.Err, &programErr) {
			detail = map[string]uint32{"Custom": programErr.Code}
			message = fmt.Sprintf("Error processing Instruction %d: custom program error: 0x%x", instructionErr.Index, programErr.Code)
		}
		cause = map[string]interface{}{"InstructionError": []interface{}{instructionErr.Index, detail}}
	default:
		cause, message = err.Error(), err.Error()
	}
	return &rpcError{
		Code:    CodeTransactionFailed,
		Message: "Transaction simulation failed: " + message,
		Data: map[string]interface{}{
			"err":  cause,
			"logs": logs,
		},
	}
}
