// Package memory provides an in-process store.Store. Records are deep
// copied on the way in and out, so callers never share state with it.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/xraph/stockwise"
	"github.com/xraph/stockwise/id"
	"github.com/xraph/stockwise/item"
	"github.com/xraph/stockwise/receipt"
	"github.com/xraph/stockwise/requirement"
	"github.com/xraph/stockwise/store"
	"github.com/xraph/stockwise/usage"
	"github.com/xraph/stockwise/user"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	// Items keyed by item number
	items map[string]*item.Item

	receipts     map[string]*receipt.Receipt
	usages       map[string]*usage.Usage
	requirements map[string]*requirement.Requirement

	// Users keyed by storage id
	users map[string]*user.User

	closed bool
}

func New() *Store {
	return &Store{
		items:        make(map[string]*item.Item),
		receipts:     make(map[string]*receipt.Receipt),
		usages:       make(map[string]*usage.Usage),
		requirements: make(map[string]*requirement.Requirement),
		users:        make(map[string]*user.User),
	}
}

// Item Store implementation
func (s *Store) CreateItem(_ context.Context, it *item.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[it.ItemID]; exists {
		return stockwise.ErrAlreadyExists
	}
	for _, existing := range s.items {
		if existing.ID.String() == it.ID.String() {
			return stockwise.ErrAlreadyExists
		}
	}
	s.items[it.ItemID] = it.Clone()
	return nil
}

func (s *Store) GetItem(_ context.Context, itemID string) (*item.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if it, ok := s.items[itemID]; ok {
		return it.Clone(), nil
	}
	return nil, stockwise.ErrItemNotFound
}

func (s *Store) GetItemByID(_ context.Context, itemID id.ItemID) (*item.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, it := range s.items {
		if it.ID.String() == itemID.String() {
			return it.Clone(), nil
		}
	}
	return nil, stockwise.ErrItemNotFound
}

func (s *Store) ListItems(_ context.Context, opts item.ListOpts) ([]*item.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(opts.Search)
	result := make([]*item.Item, 0, len(s.items))
	for _, it := range s.items {
		if search != "" &&
			!strings.Contains(strings.ToLower(it.ItemID), search) &&
			!strings.Contains(strings.ToLower(it.Description), search) &&
			!strings.Contains(strings.ToLower(it.Material), search) {
			continue
		}
		result = append(result, it.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ItemID < result[j].ItemID })

	// Apply limit/offset
	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

func (s *Store) UpdateItem(_ context.Context, it *item.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.items[it.ItemID]
	if !ok || existing.ID.String() != it.ID.String() {
		return stockwise.ErrItemNotFound
	}
	if existing.Version != it.Version {
		return stockwise.ErrVersionConflict
	}
	it.Version++
	s.items[it.ItemID] = it.Clone()
	return nil
}

func (s *Store) DeleteItem(_ context.Context, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[itemID]; !ok {
		return stockwise.ErrItemNotFound
	}
	delete(s.items, itemID)
	return nil
}

func (s *Store) LatestItemID(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := ""
	for itemID := range s.items {
		if item.IsNumber(itemID) && itemID > latest {
			latest = itemID
		}
	}
	return latest, nil
}

func (s *Store) ResetHistory(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, it := range s.items {
		it.History = nil
		it.Version++
		it.Touch()
		n++
	}
	return n, nil
}

// Receipt Store implementation
func (s *Store) CreateReceipt(_ context.Context, r *receipt.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.receipts[r.ID.String()]; exists {
		return stockwise.ErrAlreadyExists
	}
	s.receipts[r.ID.String()] = r.Clone()
	return nil
}

func (s *Store) GetReceipt(_ context.Context, receiptID id.ReceiptID) (*receipt.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if r, ok := s.receipts[receiptID.String()]; ok {
		return r.Clone(), nil
	}
	return nil, stockwise.ErrReceiptNotFound
}

func (s *Store) ListReceipts(_ context.Context) ([]*receipt.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*receipt.Receipt, 0, len(s.receipts))
	for _, r := range s.receipts {
		result = append(result, r.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID.String() < result[j].ID.String() })
	return result, nil
}

func (s *Store) UpdateReceipt(_ context.Context, r *receipt.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.receipts[r.ID.String()]; !exists {
		return stockwise.ErrReceiptNotFound
	}
	s.receipts[r.ID.String()] = r.Clone()
	return nil
}

func (s *Store) DeleteReceipt(_ context.Context, receiptID id.ReceiptID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.receipts[receiptID.String()]; !exists {
		return stockwise.ErrReceiptNotFound
	}
	delete(s.receipts, receiptID.String())
	return nil
}

func (s *Store) DeleteAllReceipts(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int64(len(s.receipts))
	s.receipts = make(map[string]*receipt.Receipt)
	return n, nil
}

// Usage Store implementation
func (s *Store) CreateUsage(_ context.Context, u *usage.Usage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usages[u.ID.String()]; exists {
		return stockwise.ErrAlreadyExists
	}
	s.usages[u.ID.String()] = u.Clone()
	return nil
}

func (s *Store) GetUsage(_ context.Context, usageID id.UsageID) (*usage.Usage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if u, ok := s.usages[usageID.String()]; ok {
		return u.Clone(), nil
	}
	return nil, stockwise.ErrUsageNotFound
}

func (s *Store) ListUsages(_ context.Context) ([]*usage.Usage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*usage.Usage, 0, len(s.usages))
	for _, u := range s.usages {
		result = append(result, u.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID.String() < result[j].ID.String() })
	return result, nil
}

func (s *Store) UpdateUsage(_ context.Context, u *usage.Usage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usages[u.ID.String()]; !exists {
		return stockwise.ErrUsageNotFound
	}
	s.usages[u.ID.String()] = u.Clone()
	return nil
}

func (s *Store) DeleteUsage(_ context.Context, usageID id.UsageID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usages[usageID.String()]; !exists {
		return stockwise.ErrUsageNotFound
	}
	delete(s.usages, usageID.String())
	return nil
}

func (s *Store) DeleteAllUsages(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int64(len(s.usages))
	s.usages = make(map[string]*usage.Usage)
	return n, nil
}

// Requirement Store implementation
func (s *Store) CreateRequirement(_ context.Context, r *requirement.Requirement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.requirements[r.ID.String()]; exists {
		return stockwise.ErrAlreadyExists
	}
	s.requirements[r.ID.String()] = r.Clone()
	return nil
}

func (s *Store) GetRequirement(_ context.Context, requirementID id.RequirementID) (*requirement.Requirement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if r, ok := s.requirements[requirementID.String()]; ok {
		return r.Clone(), nil
	}
	return nil, stockwise.ErrRequirementNotFound
}

func (s *Store) ListRequirements(_ context.Context) ([]*requirement.Requirement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*requirement.Requirement, 0, len(s.requirements))
	for _, r := range s.requirements {
		result = append(result, r.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID.String() < result[j].ID.String() })
	return result, nil
}

func (s *Store) UpdateRequirement(_ context.Context, r *requirement.Requirement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.requirements[r.ID.String()]; !exists {
		return stockwise.ErrRequirementNotFound
	}
	s.requirements[r.ID.String()] = r.Clone()
	return nil
}

func (s *Store) DeleteRequirement(_ context.Context, requirementID id.RequirementID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.requirements[requirementID.String()]; !exists {
		return stockwise.ErrRequirementNotFound
	}
	delete(s.requirements, requirementID.String())
	return nil
}

func (s *Store) DeleteAllRequirements(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int64(len(s.requirements))
	s.requirements = make(map[string]*requirement.Requirement)
	return n, nil
}

// User Store implementation
func (s *Store) CreateUser(_ context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[u.ID.String()]; exists {
		return stockwise.ErrAlreadyExists
	}
	if err := s.checkUnique(u); err != nil {
		return err
	}
	s.users[u.ID.String()] = u.Clone()
	return nil
}

func (s *Store) GetUser(_ context.Context, userID string) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.UserID == userID {
			return u.Clone(), nil
		}
	}
	return nil, stockwise.ErrUserNotFound
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email == email {
			return u.Clone(), nil
		}
	}
	return nil, stockwise.ErrUserNotFound
}

func (s *Store) UpdateUser(_ context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[u.ID.String()]; !exists {
		return stockwise.ErrUserNotFound
	}
	if err := s.checkUnique(u); err != nil {
		return err
	}
	s.users[u.ID.String()] = u.Clone()
	return nil
}

func (s *Store) DeleteUser(_ context.Context, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[userID.String()]; !exists {
		return stockwise.ErrUserNotFound
	}
	delete(s.users, userID.String())
	return nil
}

// checkUnique must be called with the write lock held.
func (s *Store) checkUnique(u *user.User) error {
	for key, existing := range s.users {
		if key == u.ID.String() {
			continue
		}
		if existing.UserID == u.UserID {
			return stockwise.ErrUsernameTaken
		}
		if existing.Email == u.Email {
			return stockwise.ErrEmailTaken
		}
	}
	return nil
}

// Core methods
func (s *Store) Migrate(_ context.Context) error {
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return stockwise.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}
