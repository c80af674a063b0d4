// Package mutation runs writes against the remote store as optimistic
// transactions over the query cache: snapshot, apply, then commit or roll
// back.
//
// Every key touched by an unsettled transaction has a journal holding the
// value it had before the first of those transactions began and the ordered
// updaters applied since. Rolling back a transaction recomputes the key from
// that base by replaying the surviving updaters, so a rollback restores the
// pre-mutation value when it is alone and never discards a later apply from
// an overlapping transaction.
package mutation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/talentflow/internal/apperr"
	"github.com/starford/talentflow/internal/metrics"
	"github.com/starford/talentflow/internal/querycache"
)

// Outcome is how a transaction settled.
type Outcome string

const (
	Committed  Outcome = "committed"
	RolledBack Outcome = "rolled_back"
)

// ErrSettled is returned when a settled transaction is used again.
var ErrSettled = errors.New("mutation: transaction already settled")

// Notification reports a settled mutation.
type Notification struct {
	ID      uuid.UUID
	Op      string
	Outcome Outcome
	Err     error
	At      time.Time
}

// Notifier receives a Notification for every settled transaction.
type Notifier interface {
	Notify(Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

type layerState int

const (
	pending layerState = iota
	committed
	rolledBack
)

type layer struct {
	fn    querycache.Updater
	set   bool
	state layerState
}

func (l *layer) apply(s querycache.Snapshot) querycache.Snapshot {
	if !s.OK && !l.set {
		return s
	}
	return querycache.Snapshot{Data: l.fn(s.Data), OK: true}
}

type journal struct {
	base   querycache.Snapshot
	layers []*layer
	refs   int
}

// prune folds settled layers at the head of the journal into its base.
func (j *journal) prune() {
	for len(j.layers) > 0 {
		head := j.layers[0]
		switch head.state {
		case pending:
			return
		case committed:
			j.base = head.apply(j.base)
		}
		j.layers = j.layers[1:]
	}
}

func (j *journal) replay() querycache.Snapshot {
	s := j.base
	for _, l := range j.layers {
		if l.state != rolledBack {
			s = l.apply(s)
		}
	}
	return s
}

// Coordinator serializes snapshot, apply and rollback across transactions.
type Coordinator struct {
	mu       sync.Mutex
	cache    *querycache.Cache
	journals map[string]*journal
	notifier Notifier
	log      *slog.Logger
	now      func() time.Time
	pending  sync.WaitGroup
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithNotifier sets the receiver of settle notifications.
func WithNotifier(n Notifier) Option {
	return func(c *Coordinator) { c.notifier = n }
}

// WithLogger sets the coordinator's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

// WithClock replaces the notification timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// New creates a Coordinator over cache.
func New(cache *querycache.Cache, opts ...Option) *Coordinator {
	c := &Coordinator{
		cache:    cache,
		journals: make(map[string]*journal),
		log:      slog.Default(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Cache returns the cache the coordinator writes to.
func (c *Coordinator) Cache() *querycache.Cache {
	return c.cache
}

// Tx is one optimistic mutation over a fixed set of keys.
type Tx struct {
	c       *Coordinator
	id      uuid.UUID
	op      string
	keys    map[string]querycache.Key
	layers  []*layer
	started time.Time
	settled bool
}

// Begin cancels in-flight reads of keys, holds them against refetches and
// records their current values.
func (c *Coordinator) Begin(op string, keys ...querycache.Key) *Tx {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx := &Tx{c: c, id: uuid.New(), op: op, keys: make(map[string]querycache.Key, len(keys)), started: time.Now()}
	for _, k := range keys {
		s := k.String()
		if _, dup := tx.keys[s]; dup {
			continue
		}
		tx.keys[s] = k
		snap := c.cache.Acquire(k)
		j, ok := c.journals[s]
		if !ok {
			j = &journal{base: snap}
			c.journals[s] = j
		}
		j.refs++
	}
	return tx
}

// ID returns the transaction id.
func (tx *Tx) ID() uuid.UUID { return tx.id }

// Op returns the operation name.
func (tx *Tx) Op() string { return tx.op }

// Apply optimistically patches key with fn. Keys without cached data are
// left empty. key must have been passed to Begin.
func (tx *Tx) Apply(key querycache.Key, fn querycache.Updater) error {
	return tx.record(key, &layer{fn: fn})
}

// Set optimistically stores v under key whether or not it holds data.
func (tx *Tx) Set(key querycache.Key, v any) error {
	return tx.record(key, &layer{fn: func(any) any { return v }, set: true})
}

func (tx *Tx) record(key querycache.Key, l *layer) error {
	c := tx.c
	c.mu.Lock()
	defer c.mu.Unlock()

	if tx.settled {
		return ErrSettled
	}
	s := key.String()
	if _, ok := tx.keys[s]; !ok {
		return fmt.Errorf("mutation: %s: key %s not begun: %w", tx.op, key, apperr.ErrValidation)
	}
	if l.set {
		c.cache.Set(key, l.fn(nil))
	} else {
		c.cache.Write(key, l.fn)
	}
	c.journals[s].layers = append(c.journals[s].layers, l)
	tx.layers = append(tx.layers, l)
	return nil
}

// Update is a typed Apply. fn is only called when key holds a T.
func Update[T any](tx *Tx, key querycache.Key, fn func(T) T) error {
	return tx.Apply(key, func(old any) any {
		v, ok := old.(T)
		if !ok {
			return old
		}
		return fn(v)
	})
}

// Commit keeps the optimistic values and releases the keys.
func (tx *Tx) Commit() error {
	return tx.settle(Committed, nil)
}

// Rollback undoes this transaction's updaters and releases the keys.
func (tx *Tx) Rollback(cause error) error {
	return tx.settle(RolledBack, cause)
}

func (tx *Tx) settle(outcome Outcome, cause error) error {
	c := tx.c
	c.mu.Lock()
	if tx.settled {
		c.mu.Unlock()
		return ErrSettled
	}
	tx.settled = true

	state := committed
	if outcome == RolledBack {
		state = rolledBack
	}
	for _, l := range tx.layers {
		l.state = state
	}
	for s, k := range tx.keys {
		j := c.journals[s]
		if outcome == RolledBack {
			c.cache.Restore(k, j.replay())
		}
		j.prune()
		j.refs--
		if j.refs == 0 {
			delete(c.journals, s)
		}
		c.cache.Release(k)
	}
	c.mu.Unlock()

	metrics.Mutations.WithLabelValues(tx.op, string(outcome)).Inc()
	metrics.MutationDuration.WithLabelValues(tx.op).Observe(time.Since(tx.started).Seconds())

	n := Notification{ID: tx.id, Op: tx.op, Outcome: outcome, Err: cause, At: c.now()}
	if outcome == RolledBack {
		attrs := []any{slog.String("op", tx.op), slog.String("id", tx.id.String()), slog.String("kind", apperr.Kind(cause))}
		if cause != nil {
			attrs = append(attrs, slog.String("error", cause.Error()))
		}
		c.log.Warn("mutation rolled back", attrs...)
	} else {
		c.log.Debug("mutation committed", slog.String("op", tx.op), slog.String("id", tx.id.String()))
	}
	if c.notifier != nil {
		c.notifier.Notify(n)
	}
	return nil
}

// Mutation describes one write routed through Run.
type Mutation struct {
	Op string
	// Keys are cancelled, held and snapshotted before Apply runs.
	Keys []querycache.Key
	// Apply patches the cache optimistically. Optional.
	Apply func(tx *Tx) error
	// Send performs the write on the remote store.
	Send func(ctx context.Context) error
	// Invalidate lists the key prefixes refetched after a successful Send.
	// Leave empty to keep the optimistic values as they are.
	Invalidate []querycache.Key
	// SettleDelay postpones the invalidation.
	SettleDelay time.Duration
}

// Run executes m: cancel, snapshot, apply, send, then commit or roll back.
// The Send error is returned after the rollback completes.
func (c *Coordinator) Run(ctx context.Context, m Mutation) error {
	tx := c.Begin(m.Op, m.Keys...)
	if m.Apply != nil {
		if err := m.Apply(tx); err != nil {
			_ = tx.Rollback(err)
			return err
		}
	}
	if err := m.Send(ctx); err != nil {
		_ = tx.Rollback(err)
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	c.reconcile(m.Invalidate, m.SettleDelay)
	return nil
}

func (c *Coordinator) reconcile(prefixes []querycache.Key, delay time.Duration) {
	if len(prefixes) == 0 {
		return
	}
	if delay <= 0 {
		for _, p := range prefixes {
			c.cache.Invalidate(p)
		}
		return
	}
	c.pending.Add(1)
	time.AfterFunc(delay, func() {
		defer c.pending.Done()
		for _, p := range prefixes {
			c.cache.Invalidate(p)
		}
	})
}

// Wait blocks until delayed invalidations have fired and the refetches they
// scheduled have finished.
func (c *Coordinator) Wait() {
	c.pending.Wait()
	c.cache.Wait()
}
