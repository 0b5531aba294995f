package app_test

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"recharge-store/internal/app"
	"recharge-store/internal/core/domain"
	"recharge-store/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// memStore is an in-memory stand-in for the PostgreSQL schema. Rows are
// copied on the way in and out so services cannot mutate stored state
// without going through a repository.
type memStore struct {
	mu            sync.RWMutex
	users         map[uuid.UUID]domain.User
	wallets       map[uuid.UUID]domain.Wallet // keyed by user
	transactions  map[uuid.UUID]domain.Transaction
	orders        map[uuid.UUID]domain.Order
	products      map[uuid.UUID]domain.Product
	coupons       map[uuid.UUID]domain.Coupon
	notifications map[uuid.UUID]domain.Notification
	tasks         map[uuid.UUID]domain.DeliveryTask
	audit         []domain.AuditLog
}

func newMemStore() *memStore {
	return &memStore{
		users:         make(map[uuid.UUID]domain.User),
		wallets:       make(map[uuid.UUID]domain.Wallet),
		transactions:  make(map[uuid.UUID]domain.Transaction),
		orders:        make(map[uuid.UUID]domain.Order),
		products:      make(map[uuid.UUID]domain.Product),
		coupons:       make(map[uuid.UUID]domain.Coupon),
		notifications: make(map[uuid.UUID]domain.Notification),
		tasks:         make(map[uuid.UUID]domain.DeliveryTask),
	}
}

func (s *memStore) repositories() app.Repositories {
	return app.Repositories{
		Users:         memUserRepo{s},
		Wallets:       memWalletRepo{s},
		Transactions:  memTransactionRepo{s},
		Orders:        memOrderRepo{s},
		Products:      memProductRepo{s},
		Coupons:       memCouponRepo{s},
		Notifications: memNotificationRepo{s},
		Deliveries:    memDeliveryRepo{s},
		Audit:         memAuditRepo{s},
		Reports:       memReportRepo{s},
		Transactor:    newMemTransactor(),
	}
}

func paginate[T any](items []T, p ports.PageRequest) []T {
	p = p.Normalize(20, 100)
	start := p.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + p.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func inRange(t time.Time, r domain.DateRange) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// --- Users ---

type memUserRepo struct{ *memStore }

func (r memUserRepo) Create(_ context.Context, _ pgx.Tx, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if strings.EqualFold(existing.Email, u.Email) || strings.EqualFold(existing.Username, u.Username) {
			return errors.New("duplicate user")
		}
	}
	r.users[u.ID] = *u
	return nil
}

func (r memUserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r memUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, nil
}

func (r memUserRepo) ExistsByEmailOrUsername(_ context.Context, email, username string) (bool, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var emailTaken, usernameTaken bool
	for _, u := range r.users {
		emailTaken = emailTaken || strings.EqualFold(u.Email, email)
		usernameTaken = usernameTaken || strings.EqualFold(u.Username, username)
	}
	return emailTaken, usernameTaken, nil
}

func (r memUserRepo) update(id uuid.UUID, fn func(u *domain.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return errors.New("user not found")
	}
	fn(&u)
	r.users[id] = u
	return nil
}

func (r memUserRepo) UpdateProfile(_ context.Context, u *domain.User) error {
	return r.update(u.ID, func(stored *domain.User) {
		stored.Username, stored.Phone, stored.UpdatedAt = u.Username, u.Phone, u.UpdatedAt
	})
}

func (r memUserRepo) UpdateLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	return r.update(id, func(u *domain.User) { u.LastLoginAt = &at })
}

func (r memUserRepo) SetWalletBalance(_ context.Context, _ pgx.Tx, id uuid.UUID, balance decimal.Decimal) error {
	return r.update(id, func(u *domain.User) { u.WalletBalance = balance })
}

func (r memUserRepo) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	return r.update(id, func(u *domain.User) { u.IsActive = active })
}

func (r memUserRepo) SetRole(_ context.Context, id uuid.UUID, role domain.UserRole) error {
	return r.update(id, func(u *domain.User) { u.Role = role })
}

func (r memUserRepo) List(_ context.Context, f ports.UserFilter) ([]domain.User, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.User
	for _, u := range r.users {
		if f.Search == "" || strings.Contains(u.Username, f.Search) || strings.Contains(u.Email, f.Search) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, f.PageRequest), int64(len(out)), nil
}

// --- Wallets ---

type memWalletRepo struct{ *memStore }

func (r memWalletRepo) Create(_ context.Context, _ pgx.Tx, w *domain.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.wallets[w.UserID]; ok {
		return errors.New("wallet exists")
	}
	r.wallets[w.UserID] = *w
	return nil
}

func (r memWalletRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.wallets[userID]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (r memWalletRepo) GetOrCreate(ctx context.Context, userID uuid.UUID, currency string) (*domain.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[userID]
	if !ok {
		w = *domain.NewWallet(userID, currency, time.Now().UTC())
		r.wallets[userID] = w
	}
	return &w, nil
}

func (r memWalletRepo) GetByUserIDForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.Wallet, error) {
	lockRow(tx, "wallets", userID)
	return r.GetByUserID(ctx, userID)
}

func (r memWalletRepo) Update(_ context.Context, _ pgx.Tx, w *domain.Wallet) error {
	if w.Balance.IsNegative() {
		return ports.ErrNegativeBalance
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wallets[w.UserID] = *w
	return nil
}

// --- Transactions ---

type memTransactionRepo struct{ *memStore }

func (r memTransactionRepo) Create(_ context.Context, _ pgx.Tx, t *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transactions[t.ID] = *t
	return nil
}

func (r memTransactionRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.transactions[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (r memTransactionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Transaction, error) {
	lockRow(tx, "transactions", id)
	return r.GetByID(ctx, id)
}

func (r memTransactionRepo) UpdateStatus(_ context.Context, _ pgx.Tx, t *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transactions[t.ID] = *t
	return nil
}

func (r memTransactionRepo) SumPendingWithdrawals(_ context.Context, _ pgx.Tx, userID uuid.UUID) (decimal.Decimal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sum := decimal.Zero
	for _, t := range r.transactions {
		if t.UserID == userID && t.Type == domain.TransactionTypeWithdrawal && t.Status == domain.TransactionStatusPending {
			sum = sum.Add(t.Amount)
		}
	}
	return sum, nil
}

func (r memTransactionRepo) List(_ context.Context, f ports.TransactionFilter) ([]domain.Transaction, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Transaction
	for _, t := range r.transactions {
		if f.UserID != nil && t.UserID != *f.UserID {
			continue
		}
		if (f.Type != "" && t.Type != f.Type) || (f.Status != "" && t.Status != f.Status) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, f.PageRequest), int64(len(out)), nil
}

// --- Orders ---

type memOrderRepo struct{ *memStore }

func (r memOrderRepo) Create(_ context.Context, _ pgx.Tx, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = *o
	return nil
}

func (r memOrderRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (r memOrderRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Order, error) {
	lockRow(tx, "orders", id)
	return r.GetByID(ctx, id)
}

func (r memOrderRepo) Update(_ context.Context, _ pgx.Tx, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[o.ID]; !ok {
		return errors.New("order not found")
	}
	r.orders[o.ID] = *o
	return nil
}

func (r memOrderRepo) List(_ context.Context, f ports.OrderFilter) ([]domain.Order, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Order
	for _, o := range r.orders {
		if f.UserID != nil && o.UserID != *f.UserID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, f.PageRequest), int64(len(out)), nil
}

// --- Products ---

type memProductRepo struct{ *memStore }

func (r memProductRepo) Create(_ context.Context, p *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[p.ID] = *p
	return nil
}

func (r memProductRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r memProductRepo) Update(_ context.Context, p *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[p.ID] = *p
	return nil
}

func (r memProductRepo) List(_ context.Context, f ports.ProductFilter) ([]domain.Product, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Product
	for _, p := range r.products {
		if (f.Category != "" && p.Category != f.Category) || (f.Status != "" && p.Status != f.Status) {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, f.PageRequest), int64(len(out)), nil
}

// --- Coupons ---

type memCouponRepo struct{ *memStore }

func (r memCouponRepo) Create(_ context.Context, c *domain.Coupon) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.coupons {
		if existing.Code == c.Code {
			return ports.ErrAlreadyExists
		}
	}
	r.coupons[c.ID] = *c
	return nil
}

func (r memCouponRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Coupon, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.coupons[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r memCouponRepo) GetByCode(_ context.Context, code string) (*domain.Coupon, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.coupons {
		if c.Code == code {
			return &c, nil
		}
	}
	return nil, nil
}

func (r memCouponRepo) Update(_ context.Context, c *domain.Coupon) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.coupons[c.ID] = *c
	return nil
}

func (r memCouponRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.coupons, id)
	return nil
}

func (r memCouponRepo) List(_ context.Context, p ports.PageRequest) ([]domain.Coupon, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Coupon, 0, len(r.coupons))
	for _, c := range r.coupons {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, p), int64(len(out)), nil
}

func (r memCouponRepo) Redeem(_ context.Context, _ pgx.Tx, id uuid.UUID, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.coupons[id]
	if !ok || !c.IsActive || c.UsedCount >= c.UsageLimit || now.Before(c.ValidFrom) || now.After(c.ValidUntil) {
		return false, nil
	}
	c.UsedCount++
	c.UpdatedAt = now
	r.coupons[id] = c
	return true, nil
}

// --- Notifications ---

type memNotificationRepo struct{ *memStore }

func (r memNotificationRepo) Create(_ context.Context, n *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications[n.ID] = *n
	return nil
}

func (r memNotificationRepo) List(_ context.Context, userID uuid.UUID, f ports.NotificationFilter) ([]domain.Notification, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Notification
	for _, n := range r.notifications {
		if n.UserID == userID && (!f.UnreadOnly || !n.IsRead) {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, f.PageRequest), int64(len(out)), nil
}

func (r memNotificationRepo) CountUnread(_ context.Context, userID uuid.UUID) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, item := range r.notifications {
		if item.UserID == userID && !item.IsRead {
			n++
		}
	}
	return n, nil
}

func (r memNotificationRepo) MarkRead(_ context.Context, userID, id uuid.UUID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok || n.UserID != userID {
		return false, nil
	}
	n.IsRead, n.ReadAt = true, &at
	r.notifications[id] = n
	return true, nil
}

func (r memNotificationRepo) MarkAllRead(_ context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for id, n := range r.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead, n.ReadAt = true, &at
			r.notifications[id] = n
			count++
		}
	}
	return count, nil
}

func (r memNotificationRepo) Delete(_ context.Context, userID, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok || n.UserID != userID {
		return false, nil
	}
	delete(r.notifications, id)
	return true, nil
}

func (r memNotificationRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for id, n := range r.notifications {
		if n.CreatedAt.Before(cutoff) {
			delete(r.notifications, id)
			count++
		}
	}
	return count, nil
}

// --- Delivery tasks ---

type memDeliveryRepo struct{ *memStore }

func (r memDeliveryRepo) Enqueue(_ context.Context, _ pgx.Tx, t *domain.DeliveryTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[t.ID] = *t
	return nil
}

func (r memDeliveryRepo) ClaimDue(_ context.Context, now time.Time, limit int) ([]domain.DeliveryTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []domain.DeliveryTask
	for _, t := range r.tasks {
		if t.Status == domain.DeliveryStatusQueued && !t.RunAt.After(now) {
			due = append(due, t)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].RunAt.Before(due[j].RunAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	for i := range due {
		due[i].Status = domain.DeliveryStatusRunning
		due[i].Attempts++
		due[i].UpdatedAt = now
		r.tasks[due[i].ID] = due[i]
	}
	return due, nil
}

func (r memDeliveryRepo) setStatus(id uuid.UUID, status domain.DeliveryStatus, lastErr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return errors.New("task not found")
	}
	t.Status = status
	if lastErr != "" {
		t.LastError = &lastErr
	}
	r.tasks[id] = t
	return nil
}

func (r memDeliveryRepo) Complete(_ context.Context, _ pgx.Tx, id uuid.UUID) error {
	return r.setStatus(id, domain.DeliveryStatusDone, "")
}

func (r memDeliveryRepo) Fail(_ context.Context, _ pgx.Tx, id uuid.UUID, lastErr string) error {
	return r.setStatus(id, domain.DeliveryStatusFailed, lastErr)
}

func (r memDeliveryRepo) Reschedule(_ context.Context, id uuid.UUID, runAt time.Time, lastErr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return errors.New("task not found")
	}
	t.Status, t.RunAt, t.LastError = domain.DeliveryStatusQueued, runAt, &lastErr
	r.tasks[id] = t
	return nil
}

func (r memDeliveryRepo) RequeueStale(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, t := range r.tasks {
		if t.Status == domain.DeliveryStatusRunning && t.UpdatedAt.Before(cutoff) {
			t.Status = domain.DeliveryStatusQueued
			r.tasks[id] = t
			n++
		}
	}
	return n, nil
}

// --- Audit ---

type memAuditRepo struct{ *memStore }

func (r memAuditRepo) Create(_ context.Context, entry *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audit = append(r.audit, *entry)
	return nil
}

func (s *memStore) auditActions() []domain.AuditAction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AuditAction, len(s.audit))
	for i, e := range s.audit {
		out[i] = e.Action
	}
	return out
}

// --- Reports ---

type memReportRepo struct{ *memStore }

func (r memReportRepo) CountUsers(context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.users)), nil
}

func (r memReportRepo) CountProducts(context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.products)), nil
}

func (r memReportRepo) OrderTotals(context.Context) (int64, int64, decimal.Decimal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var total, pending int64
	revenue := decimal.Zero
	for _, o := range r.orders {
		total++
		switch o.Status {
		case domain.OrderStatusPending:
			pending++
		case domain.OrderStatusCompleted:
			revenue = revenue.Add(o.TotalAmount)
		}
	}
	return total, pending, revenue, nil
}

func (r memReportRepo) AggregateOrders(_ context.Context, rng domain.DateRange) (*domain.OrderAggregate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	agg := &domain.OrderAggregate{CompletedSales: decimal.Zero}
	for _, o := range r.orders {
		if !inRange(o.CreatedAt, rng) {
			continue
		}
		agg.TotalOrders++
		if o.Status == domain.OrderStatusCompleted {
			agg.CompletedOrders++
			agg.CompletedSales = agg.CompletedSales.Add(o.TotalAmount)
		}
		if o.PaymentStatus == domain.PaymentStatusPaid || o.PaymentStatus == domain.PaymentStatusRefunded {
			agg.PaidOrders++
		}
	}
	return agg, nil
}

func (r memReportRepo) CountNewUsers(_ context.Context, rng domain.DateRange) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, u := range r.users {
		if inRange(u.CreatedAt, rng) {
			n++
		}
	}
	return n, nil
}

func (r memReportRepo) DailySales(_ context.Context, rng domain.DateRange) ([]domain.DailySales, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	byDay := make(map[string]*domain.DailySales)
	for _, o := range r.orders {
		if o.Status != domain.OrderStatusCompleted || !inRange(o.CreatedAt, rng) {
			continue
		}
		day := o.CreatedAt.UTC().Format(time.DateOnly)
		if byDay[day] == nil {
			byDay[day] = &domain.DailySales{Date: day, Amount: decimal.Zero}
		}
		byDay[day].Amount = byDay[day].Amount.Add(o.TotalAmount)
		byDay[day].Orders++
	}
	out := make([]domain.DailySales, 0, len(byDay))
	for _, d := range byDay {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (r memReportRepo) TopProducts(_ context.Context, rng domain.DateRange, limit int) ([]domain.TopProduct, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	byProduct := make(map[uuid.UUID]*domain.TopProduct)
	for _, o := range r.orders {
		if o.Status != domain.OrderStatusCompleted || !inRange(o.CreatedAt, rng) {
			continue
		}
		if byProduct[o.ProductID] == nil {
			byProduct[o.ProductID] = &domain.TopProduct{ProductID: o.ProductID, Name: r.products[o.ProductID].Name, Revenue: decimal.Zero}
		}
		byProduct[o.ProductID].Sales++
		byProduct[o.ProductID].Revenue = byProduct[o.ProductID].Revenue.Add(o.TotalAmount)
	}
	out := make([]domain.TopProduct, 0, len(byProduct))
	for _, p := range byProduct {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sales > out[j].Sales })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memReportRepo) UserStats(_ context.Context, userID uuid.UUID) (*domain.UserStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stats := &domain.UserStats{TotalSpent: decimal.Zero}
	for _, o := range r.orders {
		if o.UserID != userID {
			continue
		}
		stats.TotalOrders++
		switch o.Status {
		case domain.OrderStatusCompleted:
			stats.CompletedOrders++
		case domain.OrderStatusPending:
			stats.PendingOrders++
		}
		if o.PaymentStatus == domain.PaymentStatusPaid {
			stats.TotalSpent = stats.TotalSpent.Add(o.TotalAmount)
		}
	}
	return stats, nil
}

// --- Transactor ---

// memTransactor hands out transactions that hold row locks until Commit or
// Rollback. Only the ForUpdate reads take a lock, as SELECT ... FOR UPDATE
// does, so a service that forgets one races here the way it would in
// PostgreSQL.
type memTransactor struct {
	mu   sync.Mutex
	rows map[string]*sync.Mutex
}

func newMemTransactor() *memTransactor {
	return &memTransactor{rows: make(map[string]*sync.Mutex)}
}

func (t *memTransactor) Begin(context.Context) (pgx.Tx, error) {
	return &memTx{owner: t, held: make(map[string]*sync.Mutex)}, nil
}

func (t *memTransactor) row(key string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.rows[key]
	if !ok {
		m = &sync.Mutex{}
		t.rows[key] = m
	}
	return m
}

// memTx releases its row locks on the first Commit or Rollback.
type memTx struct {
	owner *memTransactor
	mu    sync.Mutex
	held  map[string]*sync.Mutex
	once  sync.Once
}

func (t *memTx) lock(key string) {
	t.mu.Lock()
	_, ok := t.held[key]
	t.mu.Unlock()
	if ok {
		return
	}
	m := t.owner.row(key)
	m.Lock()
	t.mu.Lock()
	t.held[key] = m
	t.mu.Unlock()
}

func (t *memTx) end() error {
	t.once.Do(func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		for _, m := range t.held {
			m.Unlock()
		}
		t.held = nil
	})
	return nil
}

// lockRow takes the row lock for key when tx is an in-memory transaction.
func lockRow(tx pgx.Tx, table string, id uuid.UUID) {
	if mt, ok := tx.(*memTx); ok {
		mt.lock(table + ":" + id.String())
	}
}

func (t *memTx) Begin(context.Context) (pgx.Tx, error) { return t, nil }
func (t *memTx) Commit(context.Context) error          { return t.end() }
func (t *memTx) Rollback(context.Context) error        { return t.end() }
func (t *memTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *memTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (t *memTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (t *memTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *memTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *memTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (t *memTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (t *memTx) Conn() *pgx.Conn                                         { return nil }
