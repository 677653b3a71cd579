package storage

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mesh-intelligence/vento/pkg/types"
)

// Result label values for store operations.
const (
	resultOK       = "ok"
	resultNotFound = "not_found"
	resultConflict = "conflict"
	resultInvalid  = "invalid"
	resultError    = "error"
)

type metrics struct {
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		ops: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vento_store_operations_total",
			Help: "Record store operations by backend, operation and result",
		}, []string{"backend", "op", "result"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vento_store_operation_duration_seconds",
			Help:    "Record store operation latency",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"backend", "op"}),
	}
}

// classify maps a store error onto a low-cardinality result label.
func classify(err error) string {
	switch {
	case err == nil:
		return resultOK
	case errors.Is(err, types.ErrNotFound), errors.Is(err, types.ErrUserNotFound):
		return resultNotFound
	case errors.Is(err, types.ErrDuplicateID), errors.Is(err, types.ErrUsernameTaken),
		errors.Is(err, types.ErrInsufficientStock):
		return resultConflict
	case errors.Is(err, types.ErrInvalidID), errors.Is(err, types.ErrInvalidName),
		errors.Is(err, types.ErrInvalidPrice), errors.Is(err, types.ErrInvalidQuantity),
		errors.Is(err, types.ErrInvalidUsername), errors.Is(err, types.ErrInvalidPassword):
		return resultInvalid
	default:
		return resultError
	}
}

func (m *metrics) observe(backend, op string, start time.Time, err error) {
	m.ops.WithLabelValues(backend, op, classify(err)).Inc()
	m.duration.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
}

// Instrument wraps b so every store call is counted and timed. Metrics are
// registered with reg; pass prometheus.NewRegistry() in tests.
func Instrument(b types.Backend, reg prometheus.Registerer) types.Backend {
	m := newMetrics(reg)
	name := b.Name()
	return &instrumented{
		Backend:  b,
		products: &instrumentedProducts{next: b.Products(), m: m, backend: name},
		users:    &instrumentedUsers{next: b.Users(), m: m, backend: name},
	}
}

type instrumented struct {
	types.Backend
	products *instrumentedProducts
	users    *instrumentedUsers
}

func (i *instrumented) Products() types.ProductStore { return i.products }

func (i *instrumented) Users() types.UserStore { return i.users }

type instrumentedProducts struct {
	next    types.ProductStore
	m       *metrics
	backend string
}

func (p *instrumentedProducts) Exists(ctx context.Context, username string, id int64) (bool, error) {
	start := time.Now()
	ok, err := p.next.Exists(ctx, username, id)
	p.m.observe(p.backend, "product_exists", start, err)
	return ok, err
}

func (p *instrumentedProducts) Get(ctx context.Context, username string, id int64) (types.Product, error) {
	start := time.Now()
	prod, err := p.next.Get(ctx, username, id)
	p.m.observe(p.backend, "product_get", start, err)
	return prod, err
}

func (p *instrumentedProducts) List(ctx context.Context, username string) ([]types.Product, error) {
	start := time.Now()
	list, err := p.next.List(ctx, username)
	p.m.observe(p.backend, "product_list", start, err)
	return list, err
}

func (p *instrumentedProducts) Add(ctx context.Context, username string, prod types.Product) error {
	start := time.Now()
	err := p.next.Add(ctx, username, prod)
	p.m.observe(p.backend, "product_add", start, err)
	return err
}

func (p *instrumentedProducts) Update(ctx context.Context, username string, prod types.Product) error {
	start := time.Now()
	err := p.next.Update(ctx, username, prod)
	p.m.observe(p.backend, "product_update", start, err)
	return err
}

func (p *instrumentedProducts) Delete(ctx context.Context, username string, id int64) error {
	start := time.Now()
	err := p.next.Delete(ctx, username, id)
	p.m.observe(p.backend, "product_delete", start, err)
	return err
}

func (p *instrumentedProducts) AdjustQuantity(ctx context.Context, username string, id int64, delta int64) (types.Product, error) {
	start := time.Now()
	prod, err := p.next.AdjustQuantity(ctx, username, id, delta)
	p.m.observe(p.backend, "product_adjust", start, err)
	return prod, err
}

func (p *instrumentedProducts) Count(ctx context.Context, username string) (int, error) {
	start := time.Now()
	n, err := p.next.Count(ctx, username)
	p.m.observe(p.backend, "product_count", start, err)
	return n, err
}

func (p *instrumentedProducts) DeleteAllForUser(ctx context.Context, username string) error {
	start := time.Now()
	err := p.next.DeleteAllForUser(ctx, username)
	p.m.observe(p.backend, "product_delete_all", start, err)
	return err
}

func (p *instrumentedProducts) RenameOwner(ctx context.Context, from, to string) error {
	start := time.Now()
	err := p.next.RenameOwner(ctx, from, to)
	p.m.observe(p.backend, "product_rename_owner", start, err)
	return err
}

type instrumentedUsers struct {
	next    types.UserStore
	m       *metrics
	backend string
}

func (u *instrumentedUsers) Exists(ctx context.Context, username string) (bool, error) {
	start := time.Now()
	ok, err := u.next.Exists(ctx, username)
	u.m.observe(u.backend, "user_exists", start, err)
	return ok, err
}

func (u *instrumentedUsers) Get(ctx context.Context, username string) (types.User, error) {
	start := time.Now()
	user, err := u.next.Get(ctx, username)
	u.m.observe(u.backend, "user_get", start, err)
	return user, err
}

func (u *instrumentedUsers) List(ctx context.Context) ([]types.User, error) {
	start := time.Now()
	users, err := u.next.List(ctx)
	u.m.observe(u.backend, "user_list", start, err)
	return users, err
}

func (u *instrumentedUsers) Add(ctx context.Context, user types.User) error {
	start := time.Now()
	err := u.next.Add(ctx, user)
	u.m.observe(u.backend, "user_add", start, err)
	return err
}

func (u *instrumentedUsers) Update(ctx context.Context, oldUsername string, user types.User) error {
	start := time.Now()
	err := u.next.Update(ctx, oldUsername, user)
	u.m.observe(u.backend, "user_update", start, err)
	return err
}

func (u *instrumentedUsers) Delete(ctx context.Context, username string) error {
	start := time.Now()
	err := u.next.Delete(ctx, username)
	u.m.observe(u.backend, "user_delete", start, err)
	return err
}
