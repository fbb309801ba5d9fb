package service

// In-memory implementations of the store interfaces, mutex-guarded so the
// concurrency tests exercise the same at-most-once guarantees the Redis
// implementations provide.

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/okozhin/icewheel/internal/domain"
)

type fakeBalances struct {
	mu       sync.Mutex
	balances map[string]int64
	failNext bool
}

func newFakeBalances() *fakeBalances {
	return &fakeBalances{balances: make(map[string]int64)}
}

func (f *fakeBalances) Get(_ context.Context, account string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[account], nil
}

func (f *fakeBalances) Increment(_ context.Context, account string, delta int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return 0, fmt.Errorf("store unavailable")
	}
	if f.balances[account]+delta < 0 {
		return f.balances[account], domain.ErrInsufficientFunds
	}
	f.balances[account] += delta
	return f.balances[account], nil
}

type fakeBetBook struct {
	mu      sync.Mutex
	buckets map[string]map[string]int64 // "round:account" -> kind -> nano
	pending map[string]map[int64]bool   // account -> rounds
}

func newFakeBetBook() *fakeBetBook {
	return &fakeBetBook{
		buckets: make(map[string]map[string]int64),
		pending: make(map[string]map[int64]bool),
	}
}

func bucketKey(roundID int64, account string) string {
	return strconv.FormatInt(roundID, 10) + ":" + account
}

func (f *fakeBetBook) Accumulate(_ context.Context, roundID int64, account, kind string, nano int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := bucketKey(roundID, account)
	if f.buckets[k] == nil {
		f.buckets[k] = make(map[string]int64)
	}
	f.buckets[k][kind] += nano
	return nil
}

func (f *fakeBetBook) Buckets(_ context.Context, roundID int64, account string) (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int64)
	for kind, nano := range f.buckets[bucketKey(roundID, account)] {
		out[kind] = nano
	}
	return out, nil
}

func (f *fakeBetBook) Clear(_ context.Context, roundID int64, account string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.buckets, bucketKey(roundID, account))
	return nil
}

func (f *fakeBetBook) AddPending(_ context.Context, account string, roundID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending[account] == nil {
		f.pending[account] = make(map[int64]bool)
	}
	f.pending[account][roundID] = true
	return nil
}

func (f *fakeBetBook) RemovePending(_ context.Context, account string, roundID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.pending[account], roundID)
	return nil
}

func (f *fakeBetBook) Pending(_ context.Context, account string) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rounds := make([]int64, 0, len(f.pending[account]))
	for r := range f.pending[account] {
		rounds = append(rounds, r)
	}
	sort.Slice(rounds, func(i, j int) bool { return rounds[i] < rounds[j] })
	return rounds, nil
}

type fakeMarkers struct {
	mu      sync.Mutex
	markers map[string]bool
}

func newFakeMarkers() *fakeMarkers {
	return &fakeMarkers{markers: make(map[string]bool)}
}

func (f *fakeMarkers) acquire(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markers[key] {
		return false
	}
	f.markers[key] = true
	return true
}

func (f *fakeMarkers) AcquireSettlement(_ context.Context, roundID int64, account string, _ time.Duration) (bool, error) {
	return f.acquire(fmt.Sprintf("settled:%d:%s", roundID, account)), nil
}

func (f *fakeMarkers) AcquireCredit(_ context.Context, transferID string, _ time.Duration) (bool, error) {
	return f.acquire("credit:" + transferID), nil
}

func (f *fakeMarkers) CreditExists(_ context.Context, transferID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.markers["credit:"+transferID], nil
}

func (f *fakeMarkers) ReserveSalt(_ context.Context, exactNano int64, _ time.Duration) (bool, error) {
	return f.acquire("salt:" + strconv.FormatInt(exactNano, 10)), nil
}

type fakeLocks struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeLocks() *fakeLocks {
	return &fakeLocks{held: make(map[string]bool)}
}

func (f *fakeLocks) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[key] {
		return nil, domain.ErrLockHeld
	}
	f.held[key] = true
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.held, key)
	}, nil
}

type fakeHistoryStore struct {
	mu      sync.Mutex
	entries []domain.HistoryEntry
	head    int64
	hasHead bool
	corrupt bool
}

func newFakeHistoryStore() *fakeHistoryStore {
	return &fakeHistoryStore{}
}

func (f *fakeHistoryStore) Entries(_ context.Context) ([]domain.HistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.corrupt {
		return nil, domain.ErrCorruptHistory
	}
	out := make([]domain.HistoryEntry, len(f.entries))
	copy(out, f.entries)
	return out, nil
}

func (f *fakeHistoryStore) Append(_ context.Context, entries ...domain.HistoryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entries...)
	return nil
}

func (f *fakeHistoryStore) Trim(_ context.Context, max int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.entries) > max {
		f.entries = f.entries[len(f.entries)-max:]
	}
	return nil
}

func (f *fakeHistoryStore) Replace(_ context.Context, entries []domain.HistoryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = make([]domain.HistoryEntry, len(entries))
	copy(f.entries, entries)
	f.corrupt = false
	return nil
}

func (f *fakeHistoryStore) Head(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.hasHead {
		return 0, domain.ErrNotFound
	}
	return f.head, nil
}

func (f *fakeHistoryStore) SetHead(_ context.Context, roundID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.head = roundID
	f.hasHead = true
	return nil
}

type fakeIntents struct {
	mu      sync.Mutex
	intents map[string]domain.DepositIntent
	pending map[string]map[string]bool
}

func newFakeIntents() *fakeIntents {
	return &fakeIntents{
		intents: make(map[string]domain.DepositIntent),
		pending: make(map[string]map[string]bool),
	}
}

func (f *fakeIntents) Put(_ context.Context, intent domain.DepositIntent, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intents[intent.ID] = intent
	return nil
}

func (f *fakeIntents) Get(_ context.Context, id string) (domain.DepositIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	intent, ok := f.intents[id]
	if !ok {
		return domain.DepositIntent{}, domain.ErrNotFound
	}
	return intent, nil
}

func (f *fakeIntents) AddPending(_ context.Context, account, intentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending[account] == nil {
		f.pending[account] = make(map[string]bool)
	}
	f.pending[account][intentID] = true
	return nil
}

func (f *fakeIntents) RemovePending(_ context.Context, account, intentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.pending[account], intentID)
	return nil
}

func (f *fakeIntents) Pending(_ context.Context, account string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.pending[account]))
	for id := range f.pending[account] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

type fakeQuerier struct {
	mu        sync.Mutex
	transfers []domain.Transfer
	err       error
}

func (f *fakeQuerier) RecentTransfers(_ context.Context, _ string, _ int) ([]domain.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.Transfer, len(f.transfers))
	copy(out, f.transfers)
	return out, nil
}

func (f *fakeQuerier) setTransfers(ts []domain.Transfer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transfers = ts
}

type fakeIdentity struct {
	mu        sync.Mutex
	wallets   map[int64]string
	usernames map[string]int64
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{
		wallets:   make(map[int64]string),
		usernames: make(map[string]int64),
	}
}

func (f *fakeIdentity) BindWallet(_ context.Context, telegramID int64, wallet string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wallets[telegramID] = wallet
	return nil
}

func (f *fakeIdentity) BindUsername(_ context.Context, username string, telegramID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.usernames[username] = telegramID
	return nil
}

func (f *fakeIdentity) WalletByTelegramID(_ context.Context, telegramID int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wallet, ok := f.wallets[telegramID]
	if !ok {
		return "", domain.ErrNotFound
	}
	return wallet, nil
}

func (f *fakeIdentity) TelegramIDByUsername(_ context.Context, username string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.usernames[username]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return id, nil
}

type fakeAdminTokens struct {
	mu     sync.Mutex
	tokens map[string]bool
}

func newFakeAdminTokens() *fakeAdminTokens {
	return &fakeAdminTokens{tokens: make(map[string]bool)}
}

func (f *fakeAdminTokens) Validate(_ context.Context, token string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokens[token], nil
}

func (f *fakeAdminTokens) Issue(_ context.Context, token string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[token] = true
	return nil
}
