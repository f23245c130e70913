// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mock

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/domain/model"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/domain/port"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/constants"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/errors"
)

// Global mock repository instance to share data between all repositories
var (
	globalMockRepo     *MockRepository
	globalMockRepoOnce = &sync.Once{}
)

// MockRepository is an in-memory implementation of every storage port. It
// mirrors the NATS storage semantics: revisions start at 1, updates and
// deletes check the expected revision, and (list, email) reservations are
// separate keys.
type MockRepository struct {
	lists               map[int64]*model.List
	listIDsByCID        map[string]int64
	fields              map[int64][]model.FieldDefinition
	subscribers         map[string]*model.Subscriber // cid -> subscriber
	subscriberRevisions map[string]uint64            // cid -> revision
	subscriberIndexKeys map[string]string            // reservation key -> cid
	keyRevisions        map[string]uint64            // reservation key -> revision
	blacklist           map[string]*model.BlacklistEntry
	confirmations       map[string]*model.PendingConfirmation
	nextSubscriberID    int64
	operationErrors     map[string]error
	mu                  sync.RWMutex // Protect concurrent access to maps
}

// NewMockRepository returns the shared mock repository, seeding it with a
// sample list on first use.
func NewMockRepository() *MockRepository {
	globalMockRepoOnce.Do(func() {
		globalMockRepo = &MockRepository{}
		globalMockRepo.reset()

		now := time.Now()
		globalMockRepo.AddList(&model.List{
			ID:        1,
			CID:       "sample-list",
			Name:      "Sample Announcements",
			CreatedAt: now.Add(-24 * time.Hour),
		})
		globalMockRepo.AddFields(1, []model.FieldDefinition{
			{Key: "company", Name: "Company", Column: "custom_field1", Type: model.FieldTypeText},
			{Key: "interests", Name: "Interests", Type: model.FieldTypeCheckbox, Options: []model.FieldDefinition{
				{Key: "interest_cloud", Name: "Cloud", Column: "custom_field2", Type: model.FieldTypeOption},
				{Key: "interest_security", Name: "Security", Column: "custom_field3", Type: model.FieldTypeOption},
			}},
		})
	})

	return globalMockRepo
}

func (m *MockRepository) reset() {
	m.lists = make(map[int64]*model.List)
	m.listIDsByCID = make(map[string]int64)
	m.fields = make(map[int64][]model.FieldDefinition)
	m.subscribers = make(map[string]*model.Subscriber)
	m.subscriberRevisions = make(map[string]uint64)
	m.subscriberIndexKeys = make(map[string]string)
	m.keyRevisions = make(map[string]uint64)
	m.blacklist = make(map[string]*model.BlacklistEntry)
	m.confirmations = make(map[string]*model.PendingConfirmation)
	m.nextSubscriberID = 0
	m.operationErrors = make(map[string]error)
}

// NewMockCatalogReader returns the repository as a list and field reader
func NewMockCatalogReader(mock *MockRepository) port.CatalogReader {
	return mock
}

// NewMockSubscriberRepository returns the repository as subscriber storage
func NewMockSubscriberRepository(mock *MockRepository) port.SubscriberRepository {
	return mock
}

// NewMockBlacklistRepository returns the repository as blacklist storage
func NewMockBlacklistRepository(mock *MockRepository) port.BlacklistRepository {
	return mock
}

// NewMockConfirmationStore returns the repository as confirmation storage
func NewMockConfirmationStore(mock *MockRepository) port.ConfirmationStore {
	return mock
}

func reservationKey(listID int64, email string) string {
	return fmt.Sprintf(constants.KVLookupSubscriberEmailPrefix, model.SubscriberIndexKey(listID, email))
}

// IsReady reports the simulated readiness of the storage
func (m *MockRepository) IsReady(ctx context.Context) error {
	return m.simulatedError("IsReady")
}

// Lists

// GetListByCID retrieves a list by its public code
func (m *MockRepository) GetListByCID(ctx context.Context, cid string) (*model.List, error) {
	if err := m.simulatedError("GetListByCID"); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.listIDsByCID[cid]
	if !ok {
		return nil, errors.NewNotFound("list not found")
	}
	list := *m.lists[id]
	return &list, nil
}

// GetListByID retrieves a list by its numeric id
func (m *MockRepository) GetListByID(ctx context.Context, id int64) (*model.List, error) {
	if err := m.simulatedError("GetListByID"); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	list, ok := m.lists[id]
	if !ok {
		return nil, errors.NewNotFound("list not found")
	}
	listCopy := *list
	return &listCopy, nil
}

// ListFields returns the field schema of a list; lists without one have an
// empty schema
func (m *MockRepository) ListFields(ctx context.Context, listID int64) ([]model.FieldDefinition, error) {
	if err := m.simulatedError("ListFields"); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Clone(m.fields[listID]), nil
}

// Subscribers

// GetSubscriberByEmail retrieves the subscriber holding email on the list
func (m *MockRepository) GetSubscriberByEmail(ctx context.Context, listID int64, email string) (*model.Subscriber, uint64, error) {
	if err := m.simulatedError("GetSubscriberByEmail"); err != nil {
		return nil, 0, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	cid, ok := m.subscriberIndexKeys[reservationKey(listID, email)]
	if !ok {
		return nil, 0, errors.NewNotFound("subscriber not found")
	}
	return m.subscriberCopy(cid), m.subscriberRevisions[cid], nil
}

// GetSubscriberByCID retrieves a subscriber by its public code
func (m *MockRepository) GetSubscriberByCID(ctx context.Context, cid string) (*model.Subscriber, uint64, error) {
	if err := m.simulatedError("GetSubscriberByCID"); err != nil {
		return nil, 0, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.subscribers[cid]; !ok {
		return nil, 0, errors.NewNotFound("subscriber not found")
	}
	return m.subscriberCopy(cid), m.subscriberRevisions[cid], nil
}

// UniqueSubscriberEmail reserves the (list, email) pair
func (m *MockRepository) UniqueSubscriberEmail(ctx context.Context, subscriber *model.Subscriber) (string, error) {
	if err := m.simulatedError("UniqueSubscriberEmail"); err != nil {
		return "", err
	}

	key := reservationKey(subscriber.ListID, subscriber.Email)
	slog.DebugContext(ctx, "mock: reserving subscriber email", "constraint_key", key)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.keyRevisions[key]; exists {
		return "", errors.NewConflict("subscriber already exists for this email")
	}
	m.keyRevisions[key] = 1
	return key, nil
}

// CreateSubscriber stores a new subscriber and assigns its numeric id
func (m *MockRepository) CreateSubscriber(ctx context.Context, subscriber *model.Subscriber) (*model.Subscriber, uint64, error) {
	if err := m.simulatedError("CreateSubscriber"); err != nil {
		return nil, 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.subscribers[subscriber.CID]; exists {
		return nil, 0, errors.NewConflict(fmt.Sprintf("subscriber with cid %s already exists", subscriber.CID))
	}

	m.nextSubscriberID++
	stored := *subscriber
	stored.ID = m.nextSubscriberID
	stored.Fields = maps.Clone(subscriber.Fields)

	m.subscribers[stored.CID] = &stored
	m.subscriberRevisions[stored.CID] = 1
	key := reservationKey(stored.ListID, stored.Email)
	m.subscriberIndexKeys[key] = stored.CID
	if _, ok := m.keyRevisions[key]; !ok {
		m.keyRevisions[key] = 1
	}

	return m.subscriberCopy(stored.CID), 1, nil
}

// UpdateSubscriber replaces a subscriber, moving its email reservation when
// the address changed
func (m *MockRepository) UpdateSubscriber(ctx context.Context, subscriber *model.Subscriber, expectedRevision uint64) (*model.Subscriber, uint64, error) {
	if err := m.simulatedError("UpdateSubscriber"); err != nil {
		return nil, 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.subscribers[subscriber.CID]
	if !ok {
		return nil, 0, errors.NewNotFound("subscriber not found")
	}
	if m.subscriberRevisions[subscriber.CID] != expectedRevision {
		return nil, 0, errors.NewConflict("subscriber has been modified by another process")
	}

	oldKey := reservationKey(current.ListID, current.Email)
	newKey := reservationKey(subscriber.ListID, subscriber.Email)
	if oldKey != newKey {
		if _, taken := m.keyRevisions[newKey]; taken {
			return nil, 0, errors.NewConflict("subscriber already exists for this email")
		}
		delete(m.keyRevisions, oldKey)
		delete(m.subscriberIndexKeys, oldKey)
		m.keyRevisions[newKey] = 1
		m.subscriberIndexKeys[newKey] = subscriber.CID
	}

	stored := *subscriber
	stored.Fields = maps.Clone(subscriber.Fields)
	m.subscribers[subscriber.CID] = &stored
	m.subscriberRevisions[subscriber.CID] = expectedRevision + 1

	return m.subscriberCopy(subscriber.CID), expectedRevision + 1, nil
}

// DeleteSubscriber removes a subscriber and its email reservation
func (m *MockRepository) DeleteSubscriber(ctx context.Context, subscriber *model.Subscriber, expectedRevision uint64) error {
	if err := m.simulatedError("DeleteSubscriber"); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.subscribers[subscriber.CID]
	if !ok {
		return errors.NewNotFound("subscriber not found")
	}
	if m.subscriberRevisions[subscriber.CID] != expectedRevision {
		return errors.NewConflict("subscriber has been modified by another process")
	}

	key := reservationKey(current.ListID, current.Email)
	delete(m.keyRevisions, key)
	delete(m.subscriberIndexKeys, key)
	delete(m.subscribers, subscriber.CID)
	delete(m.subscriberRevisions, subscriber.CID)
	return nil
}

// GetKeyRevision retrieves the revision of a reservation key or subscriber cid
func (m *MockRepository) GetKeyRevision(ctx context.Context, key string) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if rev, ok := m.keyRevisions[key]; ok {
		return rev, nil
	}
	if rev, ok := m.subscriberRevisions[key]; ok {
		return rev, nil
	}
	return 0, errors.NewNotFound("key not found")
}

// Delete removes a raw key, used for rollback
func (m *MockRepository) Delete(ctx context.Context, key string, revision uint64) error {
	if err := m.simulatedError("Delete"); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.keyRevisions, key)
	delete(m.subscriberIndexKeys, key)
	delete(m.subscribers, key)
	delete(m.subscriberRevisions, key)
	return nil
}

// Blacklist

// IsBlacklisted reports whether email is blacklisted
func (m *MockRepository) IsBlacklisted(ctx context.Context, email string) (bool, error) {
	if err := m.simulatedError("IsBlacklisted"); err != nil {
		return false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.blacklist[model.NormalizeEmail(email)]
	return ok, nil
}

// AddBlacklistEntry blacklists an address
func (m *MockRepository) AddBlacklistEntry(ctx context.Context, entry *model.BlacklistEntry) error {
	if err := m.simulatedError("AddBlacklistEntry"); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	email := model.NormalizeEmail(entry.Email)
	if _, exists := m.blacklist[email]; !exists {
		stored := *entry
		stored.Email = email
		m.blacklist[email] = &stored
	}
	return nil
}

// RemoveBlacklistEntry lifts a blacklist entry
func (m *MockRepository) RemoveBlacklistEntry(ctx context.Context, email string) error {
	if err := m.simulatedError("RemoveBlacklistEntry"); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.blacklist, model.NormalizeEmail(email))
	return nil
}

// Confirmations

// CreatePendingConfirmation stores a pending confirmation
func (m *MockRepository) CreatePendingConfirmation(ctx context.Context, pending *model.PendingConfirmation) error {
	if err := m.simulatedError("CreatePendingConfirmation"); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.confirmations[pending.Token]; exists {
		return errors.NewConflict("confirmation token already exists")
	}
	stored := *pending
	m.confirmations[pending.Token] = &stored
	return nil
}

// DeletePendingConfirmation removes a pending confirmation
func (m *MockRepository) DeletePendingConfirmation(ctx context.Context, token string) error {
	if err := m.simulatedError("DeletePendingConfirmation"); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.confirmations, token)
	return nil
}

// Test helpers

// AddList adds a list to the catalog
func (m *MockRepository) AddList(list *model.List) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *list
	m.lists[list.ID] = &stored
	m.listIDsByCID[list.CID] = list.ID
}

// AddFields sets the field schema of a list
func (m *MockRepository) AddFields(listID int64, fields []model.FieldDefinition) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.fields[listID] = slices.Clone(fields)
}

// AddSubscriber stores a subscriber at revision 1, assigning an id when unset
func (m *MockRepository) AddSubscriber(subscriber *model.Subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *subscriber
	if stored.ID == 0 {
		m.nextSubscriberID++
		stored.ID = m.nextSubscriberID
	} else if stored.ID > m.nextSubscriberID {
		m.nextSubscriberID = stored.ID
	}
	if stored.Source == "" {
		stored.Source = constants.SourceMock
	}

	key := reservationKey(stored.ListID, stored.Email)
	m.subscribers[stored.CID] = &stored
	m.subscriberRevisions[stored.CID] = 1
	m.subscriberIndexKeys[key] = stored.CID
	m.keyRevisions[key] = 1
}

// AddBlacklisted blacklists an address
func (m *MockRepository) AddBlacklisted(email string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	normalized := model.NormalizeEmail(email)
	m.blacklist[normalized] = &model.BlacklistEntry{Email: normalized, CreatedAt: time.Now().UTC()}
}

// GetSubscriber returns a copy of the stored subscriber, or nil
func (m *MockRepository) GetSubscriber(cid string) *model.Subscriber {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.subscribers[cid]; !ok {
		return nil
	}
	return m.subscriberCopy(cid)
}

// GetPendingConfirmation returns a copy of a stored confirmation, or nil
func (m *MockRepository) GetPendingConfirmation(token string) *model.PendingConfirmation {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pending, ok := m.confirmations[token]
	if !ok {
		return nil
	}
	pendingCopy := *pending
	return &pendingCopy
}

// GetSubscriberCount returns the number of stored subscribers
func (m *MockRepository) GetSubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscribers)
}

// GetConfirmationCount returns the number of stored pending confirmations
func (m *MockRepository) GetConfirmationCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.confirmations)
}

// GetReservationCount returns the number of (list, email) reservations
func (m *MockRepository) GetReservationCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.keyRevisions)
}

// ClearAll removes every record and simulated error
func (m *MockRepository) ClearAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
}

// SetErrorForOperation makes the named method return err until cleared
func (m *MockRepository) SetErrorForOperation(operation string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operationErrors[operation] = err
}

// ClearErrorSimulation removes every simulated error
func (m *MockRepository) ClearErrorSimulation() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operationErrors = make(map[string]error)
}

func (m *MockRepository) simulatedError(operation string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.operationErrors[operation]
}

// subscriberCopy must be called with the lock held
func (m *MockRepository) subscriberCopy(cid string) *model.Subscriber {
	sub := *m.subscribers[cid]
	sub.Fields = maps.Clone(sub.Fields)
	if sub.UnsubscribedAt != nil {
		at := *sub.UnsubscribedAt
		sub.UnsubscribedAt = &at
	}
	return &sub
}
