package store

import (
	"context"
	"go.uber.org/zap"
	"sync"
)

// Store writes executions and sale snapshots from a single goroutine so
// callers on the transaction path never wait for the database.
type Store struct {
	ctx           context.Context
	cancel        context.CancelFunc
	logger        *zap.Logger
	wg            sync.WaitGroup
	executionChan chan *Execution
	saleChan      chan *Sale
	dao           *Dao
}

func NewStore(ctx context.Context, logger *zap.Logger, dao *Dao) *Store {
	ctx, cancel := context.WithCancel(ctx)
	s := &Store{
		ctx:           ctx,
		cancel:        cancel,
		logger:        logger.Named("store"),
		executionChan: make(chan *Execution, 32),
		saleChan:      make(chan *Sale, 32),
		dao:           dao,
	}
	return s
}

func (s *Store) Start() {
	s.wg.Add(1)
	go s.store()
}

// Stop flushes what is already queued and waits for the writer to exit.
func (s *Store) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Store) store() {
	defer s.wg.Done()
	for {
		select {
		case execution := <-s.executionChan:
			s.saveExecution(execution)
		case sale := <-s.saleChan:
			s.saveSale(sale)
		case <-s.ctx.Done():
			s.drain()
			return
		}
	}
}

func (s *Store) drain() {
	for {
		select {
		case execution := <-s.executionChan:
			s.saveExecution(execution)
		case sale := <-s.saleChan:
			s.saveSale(sale)
		default:
			return
		}
	}
}

func (s *Store) saveExecution(execution *Execution) {
	if err := s.dao.SaveExecution(execution); err != nil {
		s.logger.Error("save execution", zap.String("signature", execution.Signature), zap.Error(err))
	}
}

func (s *Store) saveSale(sale *Sale) {
	if err := s.dao.SaveSale(sale); err != nil {
		s.logger.Error("save sale", zap.String("sale", sale.Address), zap.Error(err))
	}
}

func (s *Store) StoreExecution(execution *Execution) {
	select {
	case s.executionChan <- execution:
	case <-s.ctx.Done():
		s.logger.Warn("store stopped, execution dropped", zap.String("signature", execution.Signature))
	}
}

func (s *Store) StoreSale(sale *Sale) {
	select {
	case s.saleChan <- sale:
	case <-s.ctx.Done():
		s.logger.Warn("store stopped, sale dropped", zap.String("sale", sale.Address))
	}
}

func (s *Store) GetExecutions(sale string) ([]*Execution, error) {
	return s.dao.SelectExecutions(sale)
}

func (s *Store) GetSale(address string) (*Sale, error) {
	return s.dao.SelectSale(address)
}
