package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/cenkalti/backoff/v4"
	"github.com/egaotan/solana-crowdsale/crowdsale"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"go.uber.org/zap"
	"strings"
)

var (
	ErrMissingWallet = errors.New("wallet not imported")
	ErrNotConfirmed  = errors.New("transaction not confirmed")
)

// SendError is a rejected transaction. It unwraps to the decoded program
// error, when there is one, and to the raw rpc error.
type SendError struct {
	Signature   solana.Signature
	Instruction int
	Program     *crowdsale.Error
	Logs        []string
	Err         error
}

func (e *SendError) Error() string {
	if e.Program != nil {
		return fmt.Sprintf("instruction %d failed: %s", e.Instruction, e.Program)
	}
	return e.Err.Error()
}

func (e *SendError) Unwrap() []error {
	if e.Program != nil {
		return []error{e.Program, e.Err}
	}
	return []error{e.Err}
}

// parseSendError decodes the simulation failure a node reports as
// {"err": {"InstructionError": [index, {"Custom": code}]}, "logs": [...]}.
func parseSendError(signature solana.Signature, err error) *SendError {
	sendErr := &SendError{Signature: signature, Instruction: -1, Err: err}
	var rpcErr *jsonrpc.RPCError
	if !errors.As(err, &rpcErr) {
		return sendErr
	}
	data, ok := rpcErr.Data.(map[string]interface{})
	if !ok {
		return sendErr
	}
	if logs, ok := data["logs"].([]interface{}); ok {
		for _, line := range logs {
			if s, ok := line.(string); ok {
				sendErr.Logs = append(sendErr.Logs, s)
			}
		}
	}
	cause, ok := data["err"].(map[string]interface{})
	if !ok {
		return sendErr
	}
	instruction, ok := cause["InstructionError"].([]interface{})
	if !ok || len(instruction) != 2 {
		return sendErr
	}
	if index, ok := asUint(instruction[0]); ok {
		sendErr.Instruction = int(index)
	}
	detail, ok := instruction[1].(map[string]interface{})
	if !ok {
		return sendErr
	}
	if code, ok := asUint(detail["Custom"]); ok {
		if programErr, ok := crowdsale.ErrorFromCode(uint32(code)); ok {
			sendErr.Program = programErr
		}
	}
	return sendErr
}

func asUint(v interface{}) (uint64, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		return uint64(i), err == nil && i >= 0
	case float64:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case int:
		return uint64(n), n >= 0
	case uint32:
		return uint64(n), true
	case uint64:
		return n, true
	}
	return 0, false
}

func isBlockhashNotFound(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "blockhash not found")
}

// Send signs instructions with the imported wallets, payer first, and submits
// them. A transaction rejected for an expired blockhash is rebuilt against a
// fresh one; any other rejection is returned as a *SendError.
func (backend *Backend) Send(ctx context.Context, instructions []solana.Instruction, payer solana.PublicKey) (solana.Signature, error) {
	if backend.getWallet(payer) == nil {
		return solana.Signature{}, fmt.Errorf("%w: %s", ErrMissingWallet, payer)
	}
	exponential := backoff.NewExponentialBackOff()
	exponential.InitialInterval = backend.interval
	policy := backoff.WithContext(backoff.WithMaxRetries(exponential, backend.retries), ctx)
	return backoff.RetryWithData(func() (solana.Signature, error) {
		tx, err := backend.build(ctx, instructions, payer)
		if err != nil {
			return solana.Signature{}, backoff.Permanent(err)
		}
		signature, err := backend.rpcClient.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
			PreflightCommitment: backend.commitment,
		})
		if err == nil {
			backend.logger.Debug("transaction sent", zap.String("signature", signature.String()))
			return signature, nil
		}
		if isBlockhashNotFound(err) {
			backend.logger.Info("blockhash expired, rebuilding transaction", zap.Error(err))
			return solana.Signature{}, err
		}
		backend.logger.Warn("transaction rejected", zap.String("signature", tx.Signatures[0].String()), zap.Error(err))
		return solana.Signature{}, backoff.Permanent(parseSendError(tx.Signatures[0], err))
	}, policy)
}

func (backend *Backend) build(ctx context.Context, instructions []solana.Instruction, payer solana.PublicKey) (*solana.Transaction, error) {
	latest, err := backend.rpcClient.GetLatestBlockhash(ctx, backend.commitment)
	if err != nil {
		return nil, err
	}
	tx, err := solana.NewTransaction(instructions, latest.Value.Blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return nil, err
	}
	var missing []solana.PublicKey
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		wallet := backend.getWallet(key)
		if wallet == nil {
			missing = append(missing, key)
		}
		return wallet
	})
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingWallet, missing[0])
	}
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// Confirm polls the signature status until the transaction is seen or the
// retries run out.
func (backend *Backend) Confirm(ctx context.Context, signature solana.Signature) (uint64, error) {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(backend.interval), backend.retries), ctx)
	return backoff.RetryWithData(func() (uint64, error) {
		response, err := backend.rpcClient.GetSignatureStatuses(ctx, true, signature)
		if err != nil {
			return 0, err
		}
		if len(response.Value) == 0 || response.Value[0] == nil {
			return 0, fmt.Errorf("%w: %s", ErrNotConfirmed, signature)
		}
		status := response.Value[0]
		if status.Err != nil {
			return 0, backoff.Permanent(fmt.Errorf("transaction %s failed: %v", signature, status.Err))
		}
		return status.Slot, nil
	}, policy)
}

// Airdrop requests lamports for pubkey and waits until they land.
func (backend *Backend) Airdrop(ctx context.Context, pubkey solana.PublicKey, lamports uint64) (solana.Signature, error) {
	signature, err := backend.rpcClient.RequestAirdrop(ctx, pubkey, lamports, backend.commitment)
	if err != nil {
		return solana.Signature{}, err
	}
	if _, err := backend.Confirm(ctx, signature); err != nil {
		return signature, err
	}
	backend.logger.Info("airdrop", zap.String("to", pubkey.String()), zap.Uint64("lamports", lamports))
	return signature, nil
}
