// Package offline is the local outbox for records created without a
// connection. Items are replayed in enqueue order and removed only after the
// remote end acknowledged them, so delivery is at-least-once: a crash between
// acknowledgement and removal sends the item again, and receivers must
// tolerate duplicates keyed by Item.ID.
package offline

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

// Record kinds understood by the sync endpoint.
const (
	KindProject     = "projects"
	KindCalculation = "calculations"
	KindLog         = "logs"
)

const (
	defaultInterval    = 30 * time.Second
	defaultMaxRetries  = 3
	defaultBaseBackoff = 500 * time.Millisecond
	defaultBatchSize   = 50
)

var ErrOffline = errors.New("offline")

// Item is one queued record.
type Item struct {
	Seq       int64           `json:"seq"`
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	LastError string          `json:"last_error"`
	CreatedAt time.Time       `json:"created_at"`
}

// Sender delivers one item to the remote end.
type Sender interface {
	Send(ctx context.Context, it Item) error
}

// Observer receives queue events, typically metrics.
type Observer interface {
	SyncSent(kind string)
	SyncFailed(kind string)
	QueueDepth(n int)
}

// Options configures a Manager. Zero values take defaults.
type Options struct {
	Interval    time.Duration
	MaxRetries  uint64
	BaseBackoff time.Duration
	BatchSize   int
	// Ping checks reachability before each scheduled flush. When nil, a
	// scheduled flush while offline attempts delivery and a success brings
	// the connection back online.
	Ping     func(ctx context.Context) error
	Logger   *slog.Logger
	Observer Observer
	// StartOnline is the initial connectivity state.
	StartOnline bool
}

// FlushResult summarises one replay pass.
type FlushResult struct {
	Sent      int `json:"sent"`
	Remaining int `json:"remaining"`
}

// Manager owns the queue table, the connectivity state and the replay loop.
type Manager struct {
	db     *sql.DB
	sender Sender
	conn   *Connectivity
	opts   Options
	log    *slog.Logger

	flushMu sync.Mutex
	wake    chan struct{}

	lifeMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a Manager over a migrated database. Call Start to run the
// background loop and Close to stop it.
func New(db *sql.DB, sender Sender, opts Options) *Manager {
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = defaultBaseBackoff
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		db:     db,
		sender: sender,
		conn:   NewConnectivity(opts.StartOnline),
		opts:   opts,
		log:    logger.With("component", "offline"),
		wake:   make(chan struct{}, 1),
	}
}

// Connectivity exposes the connection state owned by this manager.
func (m *Manager) Connectivity() *Connectivity {
	return m.conn
}

// Enqueue stores payload under id, generating one when id is empty, and
// returns the id. Enqueuing an id already queued is a no-op.
func (m *Manager) Enqueue(ctx context.Context, id, kind string, payload any) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode %s payload: %w", kind, err)
	}

	_, err = m.db.ExecContext(ctx, `
		INSERT INTO sync_queue (id, kind, payload, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, kind, string(raw), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", kind, err)
	}

	m.observeDepth(ctx)
	select {
	case m.wake <- struct{}{}:
	default:
	}
	return id, nil
}

// Pending lists queued items in replay order.
func (m *Manager) Pending(ctx context.Context) ([]Item, error) {
	return m.batch(ctx, -1)
}

// Len returns the number of queued items.
func (m *Manager) Len(ctx context.Context) (int, error) {
	var n int
	if err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count sync queue: %w", err)
	}
	return n, nil
}

func (m *Manager) batch(ctx context.Context, limit int) ([]Item, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT seq, id, kind, payload, attempts, last_error, created_at
		FROM sync_queue
		ORDER BY seq
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sync queue: %w", err)
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		var (
			it      Item
			payload string
			created string
		)
		if err := rows.Scan(&it.Seq, &it.ID, &it.Kind, &payload, &it.Attempts, &it.LastError, &created); err != nil {
			return nil, fmt.Errorf("scan sync item: %w", err)
		}
		it.Payload = json.RawMessage(payload)
		it.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sync queue: %w", err)
	}
	return items, nil
}

// Flush replays queued items in order. It stops at the first item that still
// fails after retries, marks the connection offline and returns that error.
func (m *Manager) Flush(ctx context.Context) (FlushResult, error) {
	return m.flush(ctx, false)
}

// flush with resume set sends even while offline; the first delivery that
// succeeds marks the connection online again.
func (m *Manager) flush(ctx context.Context, resume bool) (FlushResult, error) {
	m.flushMu.Lock()
	defer m.flushMu.Unlock()

	var res FlushResult
	if !resume && !m.conn.Online() {
		n, err := m.Len(ctx)
		if err != nil {
			return res, err
		}
		res.Remaining = n
		return res, ErrOffline
	}

	for {
		items, err := m.batch(ctx, m.opts.BatchSize)
		if err != nil {
			return res, err
		}
		if len(items) == 0 {
			break
		}

		for _, it := range items {
			if err := m.deliver(ctx, it); err != nil {
				m.conn.Set(false)
				n, lenErr := m.Len(ctx)
				if lenErr == nil {
					res.Remaining = n
				}
				m.log.Warn("sync paused", "id", it.ID, "kind", it.Kind, "sent", res.Sent, "remaining", res.Remaining, "error", err)
				return res, err
			}
			res.Sent++
			if resume {
				m.conn.Set(true)
			}
		}
	}

	m.observeDepth(ctx)
	if res.Sent > 0 {
		m.log.Info("sync flushed", "sent", res.Sent)
	}
	return res, nil
}

func (m *Manager) deliver(ctx context.Context, it Item) error {
	backoff := retry.WithMaxRetries(m.opts.MaxRetries, retry.NewExponential(m.opts.BaseBackoff))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		sendErr := m.sender.Send(ctx, it)
		if sendErr == nil {
			return nil
		}
		if _, err := m.db.ExecContext(ctx, `
			UPDATE sync_queue
			SET attempts = attempts + 1, last_error = ?
			WHERE id = ?
		`, sendErr.Error(), it.ID); err != nil {
			return fmt.Errorf("record sync attempt: %w", err)
		}
		if m.opts.Observer != nil {
			m.opts.Observer.SyncFailed(it.Kind)
		}
		return retry.RetryableError(sendErr)
	})
	if err != nil {
		return fmt.Errorf("send %s %s: %w", it.Kind, it.ID, err)
	}

	if _, err := m.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, it.ID); err != nil {
		return fmt.Errorf("remove delivered item %s: %w", it.ID, err)
	}
	if m.opts.Observer != nil {
		m.opts.Observer.SyncSent(it.Kind)
	}
	return nil
}

func (m *Manager) observeDepth(ctx context.Context) {
	if m.opts.Observer == nil {
		return
	}
	if n, err := m.Len(ctx); err == nil {
		m.opts.Observer.QueueDepth(n)
	}
}

// Start launches the replay loop. It flushes on every interval tick, after
// each Enqueue and whenever the connection comes back.
func (m *Manager) Start(ctx context.Context) {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()
	if m.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	changes, unsubscribe := m.conn.Subscribe()
	go func() {
		defer close(m.done)
		defer unsubscribe()

		ticker := time.NewTicker(m.opts.Interval)
		defer ticker.Stop()

		m.tick(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.tick(ctx)
			case <-m.wake:
				m.tick(ctx)
			case online := <-changes:
				if online {
					m.tick(ctx)
				}
			}
		}
	}()
}

func (m *Manager) tick(ctx context.Context) {
	resume := false
	if m.opts.Ping != nil {
		m.conn.Set(m.opts.Ping(ctx) == nil)
		if !m.conn.Online() {
			return
		}
	} else {
		// Without a reachability check the next delivery is the test.
		resume = !m.conn.Online()
	}
	if _, err := m.flush(ctx, resume); err != nil && !errors.Is(err, ErrOffline) && ctx.Err() == nil {
		m.log.Debug("scheduled flush failed", "error", err)
	}
}

// Close stops the replay loop and waits for it to exit. It is safe to call
// more than once and without Start.
func (m *Manager) Close() error {
	m.lifeMu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel = nil
	m.lifeMu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}
