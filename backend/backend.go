package backend

import (
	"context"
	"github.com/egaotan/solana-crowdsale/spltoken"
	"github.com/egaotan/solana-crowdsale/system"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
	"time"
)

const (
	DefaultRetries  = uint64(5)
	DefaultInterval = 500 * time.Millisecond
)

// Backend talks to one RPC node on behalf of the wallets imported into it.
type Backend struct {
	ctx        context.Context
	logger     *zap.Logger
	rpcClient  *rpc.Client
	wallets    []*Wallet
	commitment rpc.CommitmentType
	retries    uint64
	interval   time.Duration
	system     *system.Program
	token      *spltoken.Program
	associated *spltoken.AssociatedProgram
}

func NewBackend(ctx context.Context, logger *zap.Logger, endpoint string) *Backend {
	backend := &Backend{
		ctx:        ctx,
		logger:     logger.Named("backend"),
		rpcClient:  rpc.New(endpoint),
		wallets:    make([]*Wallet, 0),
		commitment: rpc.CommitmentConfirmed,
		retries:    DefaultRetries,
		interval:   DefaultInterval,
	}
	// only used to build instructions
	backend.system = system.NewProgram(backend.logger)
	backend.token = spltoken.NewProgram(backend.logger)
	backend.associated = spltoken.NewAssociatedProgram(backend.logger, backend.token, backend.system)
	return backend
}

// SetRetry bounds how often Send resubmits after an expired blockhash.
func (backend *Backend) SetRetry(retries uint64, interval time.Duration) {
	backend.retries = retries
	backend.interval = interval
}

func (backend *Backend) SetCommitment(commitment rpc.CommitmentType) {
	backend.commitment = commitment
}

func (backend *Backend) RpcClient() *rpc.Client {
	return backend.rpcClient
}
