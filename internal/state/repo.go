package state

import (
	"database/sql"
	"fmt"
	"sync"
)

// AccountStatus is the persisted view of one bot account's last known state.
// It survives restarts so operators can see historical login outcomes even
// while a bot is still connecting.
type AccountStatus struct {
	Username      string `json:"username"`
	State         string `json:"state"`
	Ready         bool   `json:"ready"`
	LoginAttempts int    `json:"login_attempts"`
	Proxy         string `json:"proxy"`
	LastError     string `json:"last_error"`
	LastReadyAtNs int64  `json:"last_ready_at_ns"`
	UpdatedAtNs   int64  `json:"updated_at_ns"`
}

// AccountRepo wraps state.db and provides CRUD for account statuses.
// All writes are serialized by an internal mutex.
type AccountRepo struct {
	db *sql.DB
	mu sync.Mutex
}

// NewAccountRepo creates an AccountRepo for the given state.db connection.
func NewAccountRepo(db *sql.DB) *AccountRepo {
	return &AccountRepo{db: db}
}

// Upsert inserts or updates an account status by username.
func (r *AccountRepo) Upsert(s AccountStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`
		INSERT INTO accounts (username, state, ready, login_attempts, proxy, last_error, last_ready_at_ns, updated_at_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			state            = excluded.state,
			ready            = excluded.ready,
			login_attempts   = excluded.login_attempts,
			proxy            = excluded.proxy,
			last_error       = excluded.last_error,
			last_ready_at_ns = CASE WHEN excluded.last_ready_at_ns > 0 THEN excluded.last_ready_at_ns ELSE accounts.last_ready_at_ns END,
			updated_at_ns    = excluded.updated_at_ns
	`, s.Username, s.State, boolToInt(s.Ready), s.LoginAttempts, s.Proxy, s.LastError, s.LastReadyAtNs, s.UpdatedAtNs)
	if err != nil {
		return fmt.Errorf("upsert account %s: %w", s.Username, err)
	}
	return nil
}

// Get returns the status for one account, or ErrNotFound.
func (r *AccountRepo) Get(username string) (*AccountStatus, error) {
	row := r.db.QueryRow(`
		SELECT username, state, ready, login_attempts, proxy, last_error, last_ready_at_ns, updated_at_ns
		FROM accounts WHERE username = ?`, username)

	var s AccountStatus
	var ready int
	if err := row.Scan(&s.Username, &s.State, &ready, &s.LoginAttempts, &s.Proxy, &s.LastError, &s.LastReadyAtNs, &s.UpdatedAtNs); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan account %s: %w", username, err)
	}
	s.Ready = ready != 0
	return &s, nil
}

// List returns all account statuses ordered by username.
func (r *AccountRepo) List() ([]AccountStatus, error) {
	rows, err := r.db.Query(`
		SELECT username, state, ready, login_attempts, proxy, last_error, last_ready_at_ns, updated_at_ns
		FROM accounts ORDER BY username ASC`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []AccountStatus
	for rows.Next() {
		var s AccountStatus
		var ready int
		if err := rows.Scan(&s.Username, &s.State, &ready, &s.LoginAttempts, &s.Proxy, &s.LastError, &s.LastReadyAtNs, &s.UpdatedAtNs); err != nil {
			return nil, fmt.Errorf("scan account row: %w", err)
		}
		s.Ready = ready != 0
		out = append(out, s)
	}
	return out, rows.Err()
}

// Delete removes an account status.
func (r *AccountRepo) Delete(username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec("DELETE FROM accounts WHERE username = ?", username)
	if err != nil {
		return fmt.Errorf("delete account %s: %w", username, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
