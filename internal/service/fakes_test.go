package service

import (
	"context"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/mensa-reservation/internal/model"
	"github.com/iliyamo/mensa-reservation/internal/payment"
	"github.com/iliyamo/mensa-reservation/internal/repository"
)

func quietLog() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// memMenus is an in-memory MenuStore.
type memMenus struct {
	mu     sync.Mutex
	nextID uint64
	byID   map[uint64]model.Menu
}

func newMemMenus() *memMenus { return &memMenus{byID: map[uint64]model.Menu{}} }

func (s *memMenus) Create(_ context.Context, m *model.Menu) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.byID {
		if o.Date.Equal(m.Date) {
			return &repository.DuplicateError{Key: "uq_menus_date"}
		}
	}
	s.nextID++
	m.ID = s.nextID
	m.CreatedAt = time.Now().UTC()
	s.byID[m.ID] = *m
	return nil
}

func (s *memMenus) Update(_ context.Context, m *model.Menu) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.byID[m.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if cur.ManagerID != m.ManagerID {
		return repository.ErrForbidden
	}
	for _, o := range s.byID {
		if o.ID != m.ID && o.Date.Equal(m.Date) {
			return &repository.DuplicateError{Key: "uq_menus_date"}
		}
	}
	s.byID[m.ID] = *m
	return nil
}

func (s *memMenus) GetByID(_ context.Context, id uint64) (*model.Menu, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &m, nil
}

func (s *memMenus) GetByDate(_ context.Context, day time.Time) (*model.Menu, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.byID {
		if m.Date.Equal(day) {
			return &m, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memMenus) ListAvailable(_ context.Context, from time.Time) ([]model.Menu, error) {
	return s.filter(func(m model.Menu) bool { return m.Available && !m.Date.Before(from) }, false), nil
}

func (s *memMenus) ListByManager(_ context.Context, managerID uint64) ([]model.Menu, error) {
	return s.filter(func(m model.Menu) bool { return m.ManagerID == managerID }, true), nil
}

func (s *memMenus) filter(keep func(model.Menu) bool, desc bool) []model.Menu {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Menu{}
	for _, m := range s.byID {
		if keep(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if desc {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// memReservations is an in-memory ReservationStore.  With guard off,
// InsertWithinCapacity inserts blindly, leaving the invariants to the
// service's lock.
type memReservations struct {
	mu     sync.Mutex
	nextID uint64
	rows   map[uint64]model.Reservation
	txs    []model.Transaction
	guard  bool
	menus  *memMenus
	users  *memUsers
}

func newMemReservations(menus *memMenus, users *memUsers) *memReservations {
	return &memReservations{rows: map[uint64]model.Reservation{}, guard: true, menus: menus, users: users}
}

func (s *memReservations) InsertWithinCapacity(_ context.Context, r *model.Reservation, capacity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.guard {
		taken := 0
		for _, o := range s.rows {
			if !o.Status.IsActive() || o.MenuID != r.MenuID {
				continue
			}
			if o.UserID == r.UserID {
				return repository.ErrActiveExists
			}
			if o.PickupSlot == r.PickupSlot {
				taken++
			}
		}
		if taken >= capacity {
			return repository.ErrCapacity
		}
	}
	s.nextID++
	now := time.Now().UTC()
	r.ID, r.Status, r.CreatedAt, r.UpdatedAt = s.nextID, model.StatusPending, now, now
	s.rows[r.ID] = *r
	return nil
}

func (s *memReservations) GetByID(_ context.Context, id uint64) (*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (s *memReservations) GetDetail(ctx context.Context, id uint64) (*model.ReservationDetail, error) {
	r, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	d := s.detail(*r)
	return &d, nil
}

func (s *memReservations) detail(r model.Reservation) model.ReservationDetail {
	d := model.ReservationDetail{Reservation: r}
	if m, err := s.menus.GetByID(context.Background(), r.MenuID); err == nil {
		d.MenuDate, d.FirstCourse, d.MainCourse, d.SideDish = m.Date, m.FirstCourse, m.MainCourse, m.SideDish
	}
	if s.users != nil {
		if u, err := s.users.GetByID(context.Background(), r.UserID); err == nil {
			d.Username = u.Username
		}
	}
	return d
}

func (s *memReservations) FindActive(_ context.Context, userID, menuID uint64) (*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.UserID == userID && r.MenuID == menuID && r.Status.IsActive() {
			return &r, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memReservations) CountActiveBySlot(_ context.Context, menuID uint64, slot string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.rows {
		if r.MenuID == menuID && r.PickupSlot == slot && r.Status.IsActive() {
			n++
		}
	}
	return n, nil
}

func (s *memReservations) CountActiveByMenu(_ context.Context, menuID uint64) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]int{}
	for _, r := range s.rows {
		if r.MenuID == menuID && r.Status.IsActive() {
			out[r.PickupSlot]++
		}
	}
	return out, nil
}

func (s *memReservations) UpdateStatus(_ context.Context, id uint64, next model.Status, from ...model.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok || !statusIn(r.Status, from) {
		return repository.ErrStale
	}
	r.Status, r.UpdatedAt = next, time.Now().UTC()
	s.rows[id] = r
	return nil
}

func (s *memReservations) SetPaymentRef(_ context.Context, id uint64, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok || r.Status != model.StatusPending {
		return repository.ErrStale
	}
	r.PaymentRef = &ref
	s.rows[id] = r
	return nil
}

func (s *memReservations) RecordPayment(_ context.Context, reservationID uint64, t *model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[reservationID]
	if !ok || !r.Status.CanTransition(model.StatusPaid) {
		return repository.ErrStale
	}
	r.Status = model.StatusPaid
	s.rows[reservationID] = r
	t.ID = uint64(len(s.txs) + 1)
	t.ReservationID = &reservationID
	t.CreatedAt = time.Now().UTC()
	s.txs = append(s.txs, *t)
	return nil
}

func (s *memReservations) ListByUser(_ context.Context, userID uint64) ([]model.ReservationDetail, error) {
	return s.list(func(r model.Reservation) bool { return r.UserID == userID }), nil
}

func (s *memReservations) ListByMenu(_ context.Context, menuID uint64, statuses ...model.Status) ([]model.ReservationDetail, error) {
	out := s.list(func(r model.Reservation) bool { return r.MenuID == menuID && statusIn(r.Status, statuses) })
	sort.Slice(out, func(i, j int) bool { return out[i].PickupSlot < out[j].PickupSlot })
	return out, nil
}

func (s *memReservations) ListTransactions(_ context.Context, userID uint64, limit int) ([]model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Transaction{}
	for i := len(s.txs) - 1; i >= 0 && len(out) < limit; i-- {
		if s.txs[i].UserID == userID {
			out = append(out, s.txs[i])
		}
	}
	return out, nil
}

func (s *memReservations) list(keep func(model.Reservation) bool) []model.ReservationDetail {
	s.mu.Lock()
	rows := make([]model.Reservation, 0, len(s.rows))
	for _, r := range s.rows {
		if keep(r) {
			rows = append(rows, r)
		}
	}
	s.mu.Unlock()
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	out := make([]model.ReservationDetail, 0, len(rows))
	for _, r := range rows {
		out = append(out, s.detail(r))
	}
	return out
}

func (s *memReservations) transactionsFor(reservationID uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.txs {
		if t.ReservationID != nil && *t.ReservationID == reservationID {
			n++
		}
	}
	return n
}

func (s *memReservations) status(id uint64) model.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[id].Status
}

// force puts a reservation into any state, bypassing the guards.
func (s *memReservations) force(id uint64, st model.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.rows[id]
	r.Status = st
	s.rows[id] = r
}

func statusIn(s model.Status, set []model.Status) bool {
	for _, x := range set {
		if s == x {
			return true
		}
	}
	return false
}

// memTransactions adapts memReservations to TransactionStore.
type memTransactions struct{ r *memReservations }

func (t memTransactions) ListByUser(ctx context.Context, userID uint64, limit int) ([]model.Transaction, error) {
	return t.r.ListTransactions(ctx, userID, limit)
}

// memUsers is an in-memory UserStore.
type memUsers struct {
	mu     sync.Mutex
	nextID uint64
	byID   map[uint64]model.User
}

func newMemUsers() *memUsers { return &memUsers{byID: map[uint64]model.User{}} }

func (s *memUsers) add(u model.User) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	u.ID = s.nextID
	u.IsActive = true
	s.byID[u.ID] = u
	return u
}

func (s *memUsers) Create(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.byID {
		if o.Email == u.Email {
			return &repository.DuplicateError{Key: "uq_users_email"}
		}
	}
	s.nextID++
	u.ID = s.nextID
	s.byID[u.ID] = *u
	return nil
}

func (s *memUsers) GetByID(_ context.Context, id uint64) (*model.User, error) {
	return s.find(func(u model.User) bool { return u.ID == id })
}

func (s *memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	return s.find(func(u model.User) bool { return u.Email == strings.ToLower(email) })
}

func (s *memUsers) GetByUsername(_ context.Context, username string) (*model.User, error) {
	return s.find(func(u model.User) bool { return u.Username == username })
}

func (s *memUsers) GetByStudentID(_ context.Context, sid string) (*model.User, error) {
	return s.find(func(u model.User) bool { return u.StudentID != nil && *u.StudentID == sid })
}

func (s *memUsers) GetByLogin(ctx context.Context, login string) (*model.User, error) {
	if strings.Contains(login, "@") {
		return s.GetByEmail(ctx, login)
	}
	return s.GetByUsername(ctx, login)
}

func (s *memUsers) UpdateProfile(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[u.ID] = *u
	return nil
}

func (s *memUsers) UpdatePassword(_ context.Context, id uint64, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = hash
	s.byID[id] = u
	return nil
}

func (s *memUsers) find(match func(model.User) bool) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.byID {
		if match(u) {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

// memTokens is an in-memory TokenStore.
type memTokens struct {
	mu      sync.Mutex
	byHash  map[string]uint64
	revoked map[string]bool
}

func newMemTokens() *memTokens {
	return &memTokens{byHash: map[string]uint64{}, revoked: map[string]bool{}}
}

func (s *memTokens) StoreRefresh(_ context.Context, userID uint64, hash string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byHash[hash] = userID
	return nil
}

func (s *memTokens) ValidateRefresh(_ context.Context, hash string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	uid, ok := s.byHash[hash]
	if !ok || s.revoked[hash] {
		return 0, repository.ErrNotFound
	}
	return uid, nil
}

func (s *memTokens) RevokeByHash(_ context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[hash] = true
	return nil
}

func (s *memTokens) RevokeAllForUser(_ context.Context, userID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for h, uid := range s.byHash {
		if uid == userID {
			s.revoked[h] = true
		}
	}
	return nil
}

// recordingNotifier remembers which notifications were requested.
type recordingNotifier struct {
	mu     sync.Mutex
	events []string
	token  string
}

func (n *recordingNotifier) add(kind string, id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, kind+":"+strconvU(id))
}

func (n *recordingNotifier) ReservationConfirmed(_ context.Context, _ model.User, r model.Reservation, _ model.Menu, _ decimal.Decimal) {
	n.add("confirmed", r.ID)
}

func (n *recordingNotifier) ReservationCancelled(_ context.Context, _ model.User, r model.Reservation, _ model.Menu) {
	n.add("cancelled", r.ID)
}

func (n *recordingNotifier) PickupReminder(_ context.Context, _ model.User, r model.Reservation, _ model.Menu) {
	n.add("reminder", r.ID)
}

func (n *recordingNotifier) PasswordReset(_ context.Context, u model.User, token string, _ time.Duration) {
	n.mu.Lock()
	n.token = token
	n.mu.Unlock()
	n.add("reset", u.ID)
}

func (n *recordingNotifier) list() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

// stubGateway is a scripted payment.Gateway.
type stubGateway struct {
	createErr  error
	captureErr error
	status     string
	block      bool
	captures   int
}

func (g *stubGateway) CreateOrder(ctx context.Context, _ decimal.Decimal, _, _ string) (payment.Order, error) {
	if g.createErr != nil {
		return payment.Order{}, g.createErr
	}
	return payment.Order{ID: "ORDER-1", Status: "CREATED"}, nil
}

func (g *stubGateway) CaptureOrder(ctx context.Context, orderID string) (payment.Capture, error) {
	g.captures++
	if g.block {
		<-ctx.Done()
		return payment.Capture{}, ctx.Err()
	}
	if g.captureErr != nil {
		return payment.Capture{}, g.captureErr
	}
	return payment.Capture{OrderID: orderID, Status: g.status, Raw: []byte(`{"status":"` + g.status + `"}`)}, nil
}

// noLock lets every caller in, so tests can exercise the store guard alone.
type noLock struct{}

func (noLock) Acquire(context.Context, string) (func(), error) { return func() {}, nil }

func strconvU(v uint64) string { return strconv.FormatUint(v, 10) }
