// Package memory holds in-process implementations of the card and wallet
// repositories. They back the service and handler tests.
package memory

import (
	"sync"
	"time"

	"rewardjar-service/internal/domain/card"
	"rewardjar-service/internal/domain/wallet"
)

// Store holds all state behind one lock so multi-entity operations, like a
// tag bump plus enqueue, are atomic.
type Store struct {
	mu sync.RWMutex

	templates     map[string]card.Template
	businesses    map[string]card.Business
	customerCards map[string]card.CustomerCard
	passes        map[string]wallet.Pass
	devices       map[string]wallet.Device
	registrations map[[2]string]time.Time
	queue         map[string]wallet.QueueItem

	// Now is the clock used for timestamps.
	Now func() time.Time
}

func New() *Store {
	return &Store{
		templates:     map[string]card.Template{},
		businesses:    map[string]card.Business{},
		customerCards: map[string]card.CustomerCard{},
		passes:        map[string]wallet.Pass{},
		devices:       map[string]wallet.Device{},
		registrations: map[[2]string]time.Time{},
		queue:         map[string]wallet.QueueItem{},
		Now:           time.Now,
	}
}

func (s *Store) Cards() *CardRepository     { return &CardRepository{s: s} }
func (s *Store) Passes() *PassRepository    { return &PassRepository{s: s} }
func (s *Store) Devices() *DeviceRepository { return &DeviceRepository{s: s} }
func (s *Store) Queue() *QueueRepository    { return &QueueRepository{s: s} }

// PutBusiness seeds a business.
func (s *Store) PutBusiness(b card.Business) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.businesses[b.ID] = b
}

// PutTemplate seeds a card template.
func (s *Store) PutTemplate(t card.Template) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[t.ID] = t
}

// PutCustomerCard seeds a customer card; its Template and Business are
// resolved on read.
func (s *Store) PutCustomerCard(cc card.CustomerCard) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cc.Status == "" {
		cc.Status = card.CardStatusActive
	}
	s.customerCards[cc.ID] = cc
}

// PutPass seeds a wallet pass.
func (s *Store) PutPass(p wallet.Pass) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passes[p.ID] = p
}

// QueueItems returns a copy of every queue item.
func (s *Store) QueueItems() []wallet.QueueItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]wallet.QueueItem, 0, len(s.queue))
	for _, q := range s.queue {
		items = append(items, q)
	}
	sortQueue(items)
	return items
}
