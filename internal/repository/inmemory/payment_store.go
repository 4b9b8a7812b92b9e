package inmemory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"payflow/internal/domain/payment"
	"payflow/internal/repository"
	payflow_errors "payflow/pkg/errors"
)

// PaymentStore is an in-memory PaymentRepository with the same version
// compare-and-swap semantics as the Postgres implementation. It backs the
// mutator and coordinator tests.
type PaymentStore struct {
	mu              sync.RWMutex
	payments        map[uuid.UUID]payment.Payment
	idempotencyKeys map[string]uuid.UUID
}

func NewPaymentStore() *PaymentStore {
	return &PaymentStore{
		payments:        make(map[uuid.UUID]payment.Payment),
		idempotencyKeys: make(map[string]uuid.UUID),
	}
}

func (s *PaymentStore) Create(ctx context.Context, tx repository.DBTX, p *payment.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.idempotencyKeys[p.IdempotencyKey]; exists {
		return payflow_errors.ErrDuplicateRequest
	}
	s.payments[p.ID] = clone(p)
	s.idempotencyKeys[p.IdempotencyKey] = p.ID
	return nil
}

func (s *PaymentStore) GetByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.payments[id]
	if !ok {
		return nil, payflow_errors.ErrNotFound
	}
	cp := clone(&p)
	return &cp, nil
}

func (s *PaymentStore) GetByIDForUpdate(ctx context.Context, tx repository.DBTX, id uuid.UUID) (*payment.Payment, error) {
	return s.GetByID(ctx, id)
}

func (s *PaymentStore) GetByIdempotencyKey(ctx context.Context, key string) (*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.idempotencyKeys[key]
	if !ok {
		return nil, payflow_errors.ErrNotFound
	}
	p := s.payments[id]
	cp := clone(&p)
	return &cp, nil
}

func (s *PaymentStore) UpdateVersioned(ctx context.Context, tx repository.DBTX, p *payment.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.payments[p.ID]
	if !ok {
		return payflow_errors.ErrNotFound
	}
	if stored.Version != p.Version {
		return repository.ErrVersionConflict
	}
	next := clone(p)
	next.Version = p.Version + 1
	s.payments[p.ID] = next
	p.Version = next.Version
	return nil
}

func (s *PaymentStore) ListByMerchant(ctx context.Context, merchantID string, page, limit int) ([]payment.Payment, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []payment.Payment
	for _, p := range s.payments {
		if p.MerchantID == merchantID {
			all = append(all, clone(&p))
		}
	}
	total := int64(len(all))
	start := (page - 1) * limit
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

// ForceVersion bumps the stored version out from under a loaded copy,
// simulating a concurrent writer winning the race.
func (s *PaymentStore) ForceVersion(id uuid.UUID, version int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.payments[id]; ok {
		p.Version = version
		s.payments[id] = p
	}
}

type paymentSnapshot struct {
	payments        map[uuid.UUID]payment.Payment
	idempotencyKeys map[string]uuid.UUID
}

func (s *PaymentStore) snapshot() interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := paymentSnapshot{
		payments:        make(map[uuid.UUID]payment.Payment, len(s.payments)),
		idempotencyKeys: make(map[string]uuid.UUID, len(s.idempotencyKeys)),
	}
	for id, p := range s.payments {
		snap.payments[id] = clone(&p)
	}
	for key, id := range s.idempotencyKeys {
		snap.idempotencyKeys[key] = id
	}
	return snap
}

func (s *PaymentStore) restore(v interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := v.(paymentSnapshot)
	s.payments = snap.payments
	s.idempotencyKeys = snap.idempotencyKeys
}

func clone(p *payment.Payment) payment.Payment {
	cp := *p
	if p.Metadata != nil {
		cp.Metadata = make(map[string]string, len(p.Metadata))
		for k, v := range p.Metadata {
			cp.Metadata[k] = v
		}
	}
	return cp
}
