package account

import (
	"sync"
)

type customerData struct {
	profile   Profile
	addresses []Address
	payments  []PaymentMethod
	wishlist  []string
	orders    []Order
}

// Store keeps customer data in process memory.
type Store struct {
	mu        sync.RWMutex
	customers map[string]*customerData
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{customers: map[string]*customerData{}}
}

func (s *Store) update(customerID string, fn func(*customerData) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.customers == nil {
		s.customers = map[string]*customerData{}
	}
	data, ok := s.customers[customerID]
	if !ok {
		data = &customerData{profile: Profile{CustomerID: customerID}}
		s.customers[customerID] = data
	}
	return fn(data)
}

func (s *Store) view(customerID string, fn func(*customerData)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.customers[customerID]
	if !ok {
		data = &customerData{profile: Profile{CustomerID: customerID}}
	}
	fn(data)
}

func (s *Store) each(fn func(customerID string, data *customerData)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, data := range s.customers {
		fn(id, data)
	}
}
