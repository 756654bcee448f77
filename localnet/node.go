package localnet

import (
	"context"
	"encoding/json"
	"errors"
	"github.com/egaotan/solana-crowdsale/crowdsale"
	"github.com/egaotan/solana-crowdsale/ledger"
	"github.com/egaotan/solana-crowdsale/program"
	"github.com/egaotan/solana-crowdsale/spltoken"
	"github.com/egaotan/solana-crowdsale/store"
	"github.com/egaotan/solana-crowdsale/system"
	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"net/http"
	"sync"
)

// Recorder receives every crowdsale instruction the node processes.
type Recorder interface {
	StoreExecution(execution *store.Execution)
	StoreSale(sale *store.Sale)
	GetExecutions(sale string) ([]*store.Execution, error)
}

// Listener is told about every journaled execution.
type Listener interface {
	OnExecution(execution *store.Execution)
}

// Node is a single-process validator: a bank with the system, token,
// associated token and crowdsale programs deployed.
type Node struct {
	ctx        context.Context
	logger     *zap.Logger
	mu         sync.Mutex
	bank       *ledger.Bank
	programID  solana.PublicKey
	system     *system.Program
	token      *spltoken.Program
	associated *spltoken.AssociatedProgram
	crowdsale  *crowdsale.Program
	recorder   Recorder
	listeners  []Listener
	listen     string
	maxConns   int
	addr       string
	httpServer *http.Server
}

func NewNode(ctx context.Context, logger *zap.Logger, programID solana.PublicKey, listen string) *Node {
	node := &Node{
		ctx:       ctx,
		logger:    logger.Named("localnet"),
		bank:      ledger.NewBank(logger),
		programID: programID,
		listen:    listen,
		maxConns:  DefaultMaxConns,
	}
	node.system = system.NewProgram(logger)
	node.token = spltoken.NewProgram(logger)
	node.associated = spltoken.NewAssociatedProgram(logger, node.token, node.system)
	node.crowdsale = crowdsale.NewProgram(logger, programID, node.system, node.token, node.associated, node.associated)
	node.bank.RegisterProgram(node.system)
	node.bank.RegisterProgram(node.token)
	node.bank.RegisterProgram(node.associated)
	node.bank.RegisterProgram(node.crowdsale)
	return node
}

func (node *Node) Bank() *ledger.Bank {
	return node.bank
}

func (node *Node) ProgramID() solana.PublicKey {
	return node.programID
}

func (node *Node) SetRecorder(recorder Recorder) {
	node.recorder = recorder
}

func (node *Node) AddListener(listener Listener) {
	node.listeners = append(node.listeners, listener)
}

type pending struct {
	execution *store.Execution
	sale      solana.PublicKey
	before    uint64
}

// Process runs tx against the bank and journals its crowdsale instructions.
func (node *Node) Process(ctx context.Context, tx *solana.Transaction) (*ledger.Receipt, error) {
	node.mu.Lock()
	defer node.mu.Unlock()

	executions := node.collect(tx)
	receipt, err := node.bank.ProcessTransaction(ctx, tx)
	if (node.recorder == nil && len(node.listeners) == 0) || len(executions) == 0 {
		return receipt, err
	}
	slot := node.bank.Slot()
	var logs []string
	if receipt != nil {
		slot = receipt.Slot
		logs = receipt.Logs
	}
	var txErr *ledger.TransactionError
	if errors.As(err, &txErr) {
		logs = txErr.Logs
	}
	encoded, _ := json.Marshal(logs)
	for _, p := range executions {
		p.execution.Slot = slot
		p.execution.Logs = encoded
		if err != nil {
			p.execution.Status = store.StatusFailed
			p.execution.Error = err.Error()
		} else {
			p.execution.Status = store.StatusSuccess
			after := node.bank.Balance(p.sale)
			if after > p.before {
				p.execution.Lamports = after - p.before
			} else {
				p.execution.Lamports = p.before - after
			}
			node.snapshot(p.sale, slot)
		}
		if node.recorder != nil {
			node.recorder.StoreExecution(p.execution)
		}
		for _, listener := range node.listeners {
			listener.OnExecution(p.execution)
		}
	}
	return receipt, err
}

func (node *Node) collect(tx *solana.Transaction) []*pending {
	executions := make([]*pending, 0)
	if len(tx.Signatures) == 0 {
		return executions
	}
	keys := tx.Message.AccountKeys
	for index, compiled := range tx.Message.Instructions {
		if int(compiled.ProgramIDIndex) >= len(keys) || keys[compiled.ProgramIDIndex] != node.programID {
			continue
		}
		decoded, err := crowdsale.DecodeInstruction(compiled.Data)
		if err != nil {
			continue
		}
		saleIndex := decoded.Operation.SaleIndex()
		if len(compiled.Accounts) <= saleIndex || int(compiled.Accounts[saleIndex]) >= len(keys) || int(compiled.Accounts[0]) >= len(keys) {
			continue
		}
		sale := keys[compiled.Accounts[saleIndex]]
		amount := decoded.Amount
		if decoded.Operation == crowdsale.OperationInitialize {
			amount = decoded.Price
		}
		executions = append(executions, &pending{
			execution: &store.Execution{
				Id:        uuid.NewString(),
				Signature: tx.Signatures[0].String(),
				Position:  index,
				Operation: string(decoded.Operation),
				Sale:      sale.String(),
				Signer:    keys[compiled.Accounts[0]].String(),
				Amount:    amount,
			},
			sale:   sale,
			before: node.bank.Balance(sale),
		})
	}
	return executions
}

func (node *Node) snapshot(address solana.PublicKey, slot uint64) {
	if node.recorder == nil {
		return
	}
	account, err := node.bank.Account(address)
	if err != nil {
		return
	}
	sale, err := crowdsale.DecodeSale(account.Data)
	if err != nil {
		return
	}
	node.recorder.StoreSale(&store.Sale{
		Address: address.String(),
		SaleId:  sale.Id.String(),
		Mint:    sale.TokenMint.String(),
		Escrow:  sale.TokenAccount.String(),
		Creator: sale.Creator.String(),
		Price:   sale.Price,
		Status:  sale.Status.String(),
		Slot:    slot,
	})
}

// SaleView is a sale record with its balances, formatted for people.
type SaleView struct {
	Address         string `json:"address"`
	Id              string `json:"id"`
	Creator         string `json:"creator"`
	Authority       string `json:"authority"`
	Mint            string `json:"mint"`
	Escrow          string `json:"escrow"`
	Status          string `json:"status"`
	Price           uint64 `json:"price"`
	PriceSol        string `json:"price_sol"`
	Balance         uint64 `json:"balance"`
	BalanceSol      string `json:"balance_sol"`
	Withdrawable    uint64 `json:"withdrawable"`
	WithdrawableSol string `json:"withdrawable_sol"`
	EscrowTokens    uint64 `json:"escrow_tokens"`
	EscrowTokensUi  string `json:"escrow_tokens_ui"`
	Decimals        uint8  `json:"decimals"`
}

// Sale looks a sale up by its identifier only; every address is derived.
func (node *Node) Sale(id solana.PublicKey) (*SaleView, error) {
	address, _, err := crowdsale.DeriveSaleAddress(node.programID, id)
	if err != nil {
		return nil, err
	}
	authority, _, err := crowdsale.DeriveAuthorityAddress(node.programID, id)
	if err != nil {
		return nil, err
	}
	account, err := node.bank.Account(address)
	if err != nil {
		return nil, err
	}
	if account.Owner != node.programID {
		return nil, crowdsale.ErrInvalidAccountData
	}
	sale, err := crowdsale.DecodeSale(account.Data)
	if err != nil {
		return nil, err
	}
	view := &SaleView{
		Address:    address.String(),
		Id:         sale.Id.String(),
		Creator:    sale.Creator.String(),
		Authority:  authority.String(),
		Mint:       sale.TokenMint.String(),
		Escrow:     sale.TokenAccount.String(),
		Status:     sale.Status.String(),
		Price:      sale.Price,
		PriceSol:   crowdsale.FormatLamports(sale.Price),
		Balance:    account.Lamports,
		BalanceSol: crowdsale.FormatLamports(account.Lamports),
		Decimals:   program.DefaultDecimals,
	}
	if minimum := node.bank.MinimumBalanceForRentExemption(uint64(len(account.Data))); account.Lamports > minimum {
		view.Withdrawable = account.Lamports - minimum
	}
	view.WithdrawableSol = crowdsale.FormatLamports(view.Withdrawable)
	if mint, err := node.bank.Account(sale.TokenMint); err == nil {
		if layout, err := spltoken.DecodeMint(mint.Data); err == nil {
			view.Decimals = layout.Decimals
		}
	}
	if escrow, err := node.bank.Account(sale.TokenAccount); err == nil {
		if layout, err := spltoken.DecodeAccount(escrow.Data); err == nil {
			view.EscrowTokens = layout.Amount
		}
	}
	view.EscrowTokensUi = crowdsale.FormatTokens(view.EscrowTokens, view.Decimals)
	return view, nil
}
