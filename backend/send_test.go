package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"github.com/egaotan/solana-crowdsale/crowdsale"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func rpcError(t *testing.T, raw string) *jsonrpc.RPCError {
	var data interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &data))
	return &jsonrpc.RPCError{Code: -32002, Message: "Transaction simulation failed", Data: data}
}

func TestParseSendError(t *testing.T) {
	err := rpcError(t, `{"err":{"InstructionError":[1,{"Custom":6004}]},"logs":["Program log: Instruction: BuyTokens"]}`)
	sendErr := parseSendError(solana.Signature{}, fmt.Errorf("send: %w", err))
	assert.Equal(t, 1, sendErr.Instruction)
	assert.Equal(t, []string{"Program log: Instruction: BuyTokens"}, sendErr.Logs)
	require.ErrorIs(t, sendErr, crowdsale.ErrSaleClosed)
	var target *jsonrpc.RPCError
	require.True(t, errors.As(sendErr, &target))

	// runtime failures carry no custom code
	sendErr = parseSendError(solana.Signature{}, rpcError(t, `{"err":{"InstructionError":[0,"insufficient funds"]},"logs":[]}`))
	assert.Nil(t, sendErr.Program)
	assert.Equal(t, 0, sendErr.Instruction)

	sendErr = parseSendError(solana.Signature{}, rpcError(t, `{"err":"AlreadyProcessed","logs":[]}`))
	assert.Nil(t, sendErr.Program)
	assert.Equal(t, -1, sendErr.Instruction)

	plain := errors.New("connection refused")
	sendErr = parseSendError(solana.Signature{}, plain)
	require.ErrorIs(t, sendErr, plain)
	assert.Equal(t, "connection refused", sendErr.Error())
}

func TestAsUint(t *testing.T) {
	v, ok := asUint(json.Number("6009"))
	assert.True(t, ok)
	assert.Equal(t, uint64(6009), v)
	_, ok = asUint(json.Number("-1"))
	assert.False(t, ok)
	_, ok = asUint("6009")
	assert.False(t, ok)
}

func TestIsBlockhashNotFound(t *testing.T) {
	assert.True(t, isBlockhashNotFound(errors.New("(-32002) Transaction simulation failed: Blockhash not found")))
	assert.False(t, isBlockhashNotFound(errors.New("custom program error: 0x1774")))
}
