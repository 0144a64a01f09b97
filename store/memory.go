package store

import (
	"context"
	"sync"

	"github.com/rami2212/digitex-backend/models"
)

// MemoryOrderStore is an in-memory OrderStore used in tests. It honors the
// same exclusivity contract as the gorm store: UpdatePayment runs mutate
// under a store-wide lock.
type MemoryOrderStore struct {
	mu     sync.Mutex
	nextID uint
	orders map[uint]*models.Order
}

func NewMemoryOrderStore() *MemoryOrderStore {
	return &MemoryOrderStore{nextID: 1, orders: make(map[uint]*models.Order)}
}

func cloneOrder(o *models.Order) *models.Order {
	cp := *o
	cp.Items = append([]models.OrderItem(nil), o.Items...)
	if o.PaymentIntentRef != nil {
		ref := *o.PaymentIntentRef
		cp.PaymentIntentRef = &ref
	}
	if o.PaidAt != nil {
		t := *o.PaidAt
		cp.PaidAt = &t
	}
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		cp.DeliveredAt = &t
	}
	return &cp
}

func (s *MemoryOrderStore) Create(_ context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if order.ID == 0 {
		order.ID = s.nextID
		s.nextID++
	}
	s.orders[order.ID] = cloneOrder(order)
	return nil
}

func (s *MemoryOrderStore) Get(_ context.Context, orderID uint) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (s *MemoryOrderStore) GetByRef(_ context.Context, orderRef string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.OrderRef == orderRef {
			return cloneOrder(o), nil
		}
	}
	return nil, ErrOrderNotFound
}

func (s *MemoryOrderStore) FindByIntentRef(_ context.Context, intentRef string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.PaymentIntentRef != nil && *o.PaymentIntentRef == intentRef {
			return cloneOrder(o), nil
		}
	}
	return nil, ErrOrderNotFound
}

func (s *MemoryOrderStore) UpdatePayment(_ context.Context, orderID uint, mutate func(*models.Order) error) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	cp := cloneOrder(o)
	if err := mutate(cp); err != nil {
		return nil, err
	}
	s.orders[orderID] = cp
	return cloneOrder(cp), nil
}
