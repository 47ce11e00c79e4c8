// Package memory provides an in-memory engine.Store for tests and local
// development. A single mutex held for the whole of WithinTx stands in for
// the per-row locks of the SQL store: concurrent transactions serialize, so
// the second of two racing confirmations observes the first one's writes.
// State is snapshotted on entry and restored when the callback fails, so a
// failed transaction leaves no partial writes behind.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"installments/internal/engine"
)

type Store struct {
	mu sync.Mutex

	payments  map[string]*engine.Payment
	contracts map[string]*engine.Contract
	balances  map[string]*engine.Balance
	credited  map[string]bool
	debtors   map[string]*engine.Debtor
	edits     map[string][]engine.EditRecord
	audits    []AuditEntry

	seq int
}

// AuditEntry is what RecordChange captures; exposed for test assertions.
type AuditEntry struct {
	Entity   string
	EntityID string
	Actor    string
	Diffs    map[string]engine.FieldDiff
	Metadata map[string]any
	At       time.Time
}

func New() *Store {
	return &Store{
		payments:  make(map[string]*engine.Payment),
		contracts: make(map[string]*engine.Contract),
		balances:  make(map[string]*engine.Balance),
		credited:  make(map[string]bool),
		debtors:   make(map[string]*engine.Debtor),
		edits:     make(map[string][]engine.EditRecord),
	}
}

// session is the unlocked view handed to WithinTx callbacks. The outer Store
// methods take the lock and delegate here.
type session struct {
	s *Store
}

var (
	_ engine.Store = (*Store)(nil)
	_ engine.Store = (*session)(nil)
)

func (s *Store) WithinTx(ctx context.Context, fn func(engine.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshot()
	if err := fn(&session{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// snapshot deep-copies all state so a failed callback can roll back.
type snapshot struct {
	payments  map[string]*engine.Payment
	contracts map[string]*engine.Contract
	balances  map[string]*engine.Balance
	credited  map[string]bool
	debtors   map[string]*engine.Debtor
	edits     map[string][]engine.EditRecord
	audits    []AuditEntry
	seq       int
}

func (s *Store) snapshot() snapshot {
	snap := snapshot{
		payments:  make(map[string]*engine.Payment, len(s.payments)),
		contracts: make(map[string]*engine.Contract, len(s.contracts)),
		balances:  make(map[string]*engine.Balance, len(s.balances)),
		credited:  make(map[string]bool, len(s.credited)),
		debtors:   make(map[string]*engine.Debtor, len(s.debtors)),
		edits:     make(map[string][]engine.EditRecord, len(s.edits)),
		audits:    append([]AuditEntry(nil), s.audits...),
		seq:       s.seq,
	}
	for id, p := range s.payments {
		snap.payments[id] = clonePayment(p)
	}
	for id, c := range s.contracts {
		snap.contracts[id] = cloneContract(c)
	}
	for id, b := range s.balances {
		cp := *b
		snap.balances[id] = &cp
	}
	for id, v := range s.credited {
		snap.credited[id] = v
	}
	for id, d := range s.debtors {
		cp := *d
		snap.debtors[id] = &cp
	}
	for id, recs := range s.edits {
		snap.edits[id] = append([]engine.EditRecord(nil), recs...)
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.payments = snap.payments
	s.contracts = snap.contracts
	s.balances = snap.balances
	s.credited = snap.credited
	s.debtors = snap.debtors
	s.edits = snap.edits
	s.audits = snap.audits
	s.seq = snap.seq
}

// Nested transactions join the ambient one.
func (t *session) WithinTx(ctx context.Context, fn func(engine.Store) error) error {
	return fn(t)
}

func (s *Store) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%06d", prefix, s.seq)
}

// --- payments ---

func (t *session) CreatePayment(_ context.Context, p *engine.Payment) error {
	if p.ID == "" {
		p.ID = t.s.nextID("pay")
	}
	if _, ok := t.s.payments[p.ID]; ok {
		return engine.Conflict("DUPLICATE_ID", "payment id already exists")
	}
	cp := clonePayment(p)
	t.s.payments[p.ID] = cp
	return nil
}

func (t *session) GetPayment(_ context.Context, id string) (*engine.Payment, error) {
	p, ok := t.s.payments[id]
	if !ok {
		return nil, engine.NotFound(engine.CodePaymentNotFound, "payment not found")
	}
	return clonePayment(p), nil
}

func (t *session) GetPaymentForUpdate(ctx context.Context, id string) (*engine.Payment, error) {
	return t.GetPayment(ctx, id)
}

func (t *session) UpdatePayment(_ context.Context, p *engine.Payment) error {
	if _, ok := t.s.payments[p.ID]; !ok {
		return engine.NotFound(engine.CodePaymentNotFound, "payment not found")
	}
	t.s.payments[p.ID] = clonePayment(p)
	return nil
}

func (t *session) ListContractPayments(_ context.Context, contractID string) ([]*engine.Payment, error) {
	var out []*engine.Payment
	for _, p := range t.s.payments {
		if p.ContractID == contractID {
			out = append(out, clonePayment(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *session) ListExpiredPending(_ context.Context, before time.Time) ([]string, error) {
	var ids []string
	for _, p := range t.s.payments {
		if p.Status == engine.PaymentPending && !p.IsPaid && p.CreatedAt.Before(before) {
			ids = append(ids, p.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// --- contracts ---

func (t *session) CreateContract(_ context.Context, c *engine.Contract) error {
	if c.ID == "" {
		c.ID = t.s.nextID("ct")
	}
	if _, ok := t.s.contracts[c.ID]; ok {
		return engine.Conflict("DUPLICATE_ID", "contract id already exists")
	}
	t.s.contracts[c.ID] = cloneContract(c)
	return nil
}

func (t *session) GetContract(_ context.Context, id string) (*engine.Contract, error) {
	c, ok := t.s.contracts[id]
	if !ok {
		return nil, engine.NotFound(engine.CodeContractNotFound, "contract not found")
	}
	return cloneContract(c), nil
}

func (t *session) GetContractForUpdate(ctx context.Context, id string) (*engine.Contract, error) {
	return t.GetContract(ctx, id)
}

func (t *session) ActiveContractForCustomer(_ context.Context, customerID string) (*engine.Contract, error) {
	var found *engine.Contract
	for _, c := range t.s.contracts {
		if c.CustomerID != customerID || c.DeletedAt != nil || c.Status == engine.ContractCancelled {
			continue
		}
		if found == nil || c.CreatedAt.Before(found.CreatedAt) {
			found = c
		}
	}
	if found == nil {
		return nil, engine.NotFound(engine.CodeContractNotFound, "no active contract for customer")
	}
	return cloneContract(found), nil
}

func (t *session) UpdateContract(_ context.Context, c *engine.Contract) error {
	if _, ok := t.s.contracts[c.ID]; !ok {
		return engine.NotFound(engine.CodeContractNotFound, "contract not found")
	}
	t.s.contracts[c.ID] = cloneContract(c)
	return nil
}

func (t *session) AppendEdit(_ context.Context, rec engine.EditRecord) error {
	t.s.edits[rec.ContractID] = append(t.s.edits[rec.ContractID], rec)
	return nil
}

func (t *session) ListEdits(_ context.Context, contractID string) ([]engine.EditRecord, error) {
	out := make([]engine.EditRecord, len(t.s.edits[contractID]))
	copy(out, t.s.edits[contractID])
	return out, nil
}

// --- balances ---

func (t *session) Credit(_ context.Context, managerID string, currency engine.Currency, amount decimal.Decimal, paymentID string) (bool, error) {
	if t.s.credited[paymentID] {
		return false, nil
	}
	t.s.credited[paymentID] = true
	t.s.applyBalance(managerID, currency, amount)
	return true, nil
}

func (t *session) Adjust(_ context.Context, managerID string, currency engine.Currency, delta decimal.Decimal, _ string) error {
	t.s.applyBalance(managerID, currency, delta)
	return nil
}

func (s *Store) applyBalance(managerID string, currency engine.Currency, delta decimal.Decimal) {
	b, ok := s.balances[managerID]
	if !ok {
		b = &engine.Balance{ManagerID: managerID, Dollar: decimal.Zero, Sum: decimal.Zero}
		s.balances[managerID] = b
	}
	switch currency {
	case engine.CurrencySum:
		b.Sum = b.Sum.Add(delta)
	default:
		b.Dollar = b.Dollar.Add(delta)
	}
	b.UpdatedAt = time.Now()
}

func (t *session) GetBalance(_ context.Context, managerID string) (*engine.Balance, error) {
	b, ok := t.s.balances[managerID]
	if !ok {
		return nil, engine.NotFound(engine.CodeBalanceNotFound, "no balance for manager")
	}
	cp := *b
	return &cp, nil
}

// --- debtors ---

func (t *session) DeleteDebtor(_ context.Context, contractID string) error {
	delete(t.s.debtors, contractID)
	return nil
}

// --- audit ---

func (t *session) RecordChange(_ context.Context, entity, entityID, actorID string, diffs map[string]engine.FieldDiff, metadata map[string]any) error {
	t.s.audits = append(t.s.audits, AuditEntry{
		Entity:   entity,
		EntityID: entityID,
		Actor:    actorID,
		Diffs:    diffs,
		Metadata: metadata,
		At:       time.Now(),
	})
	return nil
}

// --- locked passthroughs for use outside WithinTx ---

func (s *Store) CreatePayment(ctx context.Context, p *engine.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&session{s: s}).CreatePayment(ctx, p)
}

func (s *Store) GetPayment(ctx context.Context, id string) (*engine.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&session{s: s}).GetPayment(ctx, id)
}

func (s *Store) GetPaymentForUpdate(ctx context.Context, id string) (*engine.Payment, error) {
	return s.GetPayment(ctx, id)
}

func (s *Store) UpdatePayment(ctx context.Context, p *engine.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&session{s: s}).UpdatePayment(ctx, p)
}

func (s *Store) ListContractPayments(ctx context.Context, contractID string) ([]*engine.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&session{s: s}).ListContractPayments(ctx, contractID)
}

func (s *Store) ListExpiredPending(ctx context.Context, before time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&session{s: s}).ListExpiredPending(ctx, before)
}

func (s *Store) CreateContract(ctx context.Context, c *engine.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&session{s: s}).CreateContract(ctx, c)
}

func (s *Store) GetContract(ctx context.Context, id string) (*engine.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&session{s: s}).GetContract(ctx, id)
}

func (s *Store) GetContractForUpdate(ctx context.Context, id string) (*engine.Contract, error) {
	return s.GetContract(ctx, id)
}

func (s *Store) ActiveContractForCustomer(ctx context.Context, customerID string) (*engine.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&session{s: s}).ActiveContractForCustomer(ctx, customerID)
}

func (s *Store) UpdateContract(ctx context.Context, c *engine.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&session{s: s}).UpdateContract(ctx, c)
}

func (s *Store) AppendEdit(ctx context.Context, rec engine.EditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&session{s: s}).AppendEdit(ctx, rec)
}

func (s *Store) ListEdits(ctx context.Context, contractID string) ([]engine.EditRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&session{s: s}).ListEdits(ctx, contractID)
}

func (s *Store) Credit(ctx context.Context, managerID string, currency engine.Currency, amount decimal.Decimal, paymentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&session{s: s}).Credit(ctx, managerID, currency, amount, paymentID)
}

func (s *Store) Adjust(ctx context.Context, managerID string, currency engine.Currency, delta decimal.Decimal, reference string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&session{s: s}).Adjust(ctx, managerID, currency, delta, reference)
}

func (s *Store) GetBalance(ctx context.Context, managerID string) (*engine.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&session{s: s}).GetBalance(ctx, managerID)
}

func (s *Store) DeleteDebtor(ctx context.Context, contractID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&session{s: s}).DeleteDebtor(ctx, contractID)
}

func (s *Store) RecordChange(ctx context.Context, entity, entityID, actorID string, diffs map[string]engine.FieldDiff, metadata map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&session{s: s}).RecordChange(ctx, entity, entityID, actorID, diffs, metadata)
}

// --- test helpers ---

// PutDebtor seeds an overdue marker; the real recomputation job lives outside
// this service.
func (s *Store) PutDebtor(d *engine.Debtor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *d
	s.debtors[d.ContractID] = &cp
}

// HasDebtor reports whether a contract currently carries an overdue marker.
func (s *Store) HasDebtor(contractID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.debtors[contractID]
	return ok
}

// Audits returns a copy of recorded audit entries.
func (s *Store) Audits() []AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AuditEntry, len(s.audits))
	copy(out, s.audits)
	return out
}

func clonePayment(p *engine.Payment) *engine.Payment {
	cp := *p
	if p.ActualAmount != nil {
		v := *p.ActualAmount
		cp.ActualAmount = &v
	}
	if p.ExpectedAmount != nil {
		v := *p.ExpectedAmount
		cp.ExpectedAmount = &v
	}
	if p.ConfirmedAt != nil {
		v := *p.ConfirmedAt
		cp.ConfirmedAt = &v
	}
	return &cp
}

func cloneContract(c *engine.Contract) *engine.Contract {
	cp := *c
	cp.PaymentIDs = append([]string(nil), c.PaymentIDs...)
	if c.PreviousPaymentDate != nil {
		v := *c.PreviousPaymentDate
		cp.PreviousPaymentDate = &v
	}
	if c.PostponedAt != nil {
		v := *c.PostponedAt
		cp.PostponedAt = &v
	}
	if c.DeletedAt != nil {
		v := *c.DeletedAt
		cp.DeletedAt = &v
	}
	return &cp
}
