package inspectlog

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/floatrig/floatrig/internal/state"
)

// Repo manages rolling SQLite databases for inspect logs.
// Each DB is named inspect_logs-<unix_ms>.db and lives in logDir.
type Repo struct {
	logDir      string
	maxBytes    int64
	retainCount int

	// Active DB handle and path.
	activeDB   *sql.DB
	activePath string
}

// NewRepo creates a Repo that manages rolling inspect log databases.
// maxBytes controls when the active DB is rotated; retainCount sets how many
// historical DB files are kept.
func NewRepo(logDir string, maxBytes int64, retainCount int) *Repo {
	if maxBytes <= 0 {
		maxBytes = 256 * 1024 * 1024 // 256 MB default
	}
	if retainCount <= 0 {
		retainCount = 5
	}
	return &Repo{
		logDir:      logDir,
		maxBytes:    maxBytes,
		retainCount: retainCount,
	}
}

// Open opens (or creates) the active inspect log database. If a previous DB
// exists in the directory it is reused as active; a new one is created only
// when no existing DB is found. Over-retention files are pruned on startup.
func (r *Repo) Open() error {
	if err := os.MkdirAll(r.logDir, 0o755); err != nil {
		return fmt.Errorf("inspectlog repo mkdir %s: %w", r.logDir, err)
	}

	files, err := r.listDBFiles()
	if err != nil {
		return fmt.Errorf("inspectlog repo open: %w", err)
	}

	if len(files) > 0 {
		latest := files[len(files)-1]
		if err := r.openDB(latest); err != nil {
			return err
		}
		return r.Cleanup()
	}
	return r.rotateDB()
}

// Close closes the active DB.
func (r *Repo) Close() error {
	if r.activeDB != nil {
		err := r.activeDB.Close()
		r.activeDB = nil
		r.activePath = ""
		return err
	}
	return nil
}

// LogRow is one inspect outcome ready for DB insertion.
type LogRow struct {
	ID         string
	TsNs       int64
	Username   string
	BotIndex   int
	LinkHash   string
	OwnerID    string
	MarketID   string
	AssetID    string
	ItemID     uint64
	FloatValue float64
	PaintSeed  int32
	DefIndex   uint32
	PaintIndex uint32
	DurationNs int64
	OK         bool
	ErrorText  string
}

// InsertBatch inserts a batch of log rows in a single transaction. Returns
// the number of rows successfully inserted.
func (r *Repo) InsertBatch(entries []LogRow) (int, error) {
	if r.activeDB == nil {
		return 0, fmt.Errorf("inspectlog repo: no active db")
	}

	// Check if rotation is needed before insert.
	if err := r.maybeRotate(); err != nil {
		return 0, fmt.Errorf("inspectlog repo rotate: %w", err)
	}

	tx, err := r.activeDB.Begin()
	if err != nil {
		return 0, fmt.Errorf("inspectlog repo begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	insert, err := tx.Prepare(`INSERT OR IGNORE INTO inspect_logs (
		id, ts_ns, username, bot_index, link_hash,
		owner_id, market_id, asset_id, item_id,
		float_value, paint_seed, def_index, paint_index,
		duration_ns, ok, error_text
	) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return 0, fmt.Errorf("inspectlog repo prepare: %w", err)
	}
	defer insert.Close()

	inserted := 0
	for i := range entries {
		e := &entries[i]
		ok := 0
		if e.OK {
			ok = 1
		}
		_, err := insert.Exec(
			e.ID, e.TsNs, e.Username, e.BotIndex, e.LinkHash,
			e.OwnerID, e.MarketID, e.AssetID, e.ItemID,
			e.FloatValue, e.PaintSeed, e.DefIndex, e.PaintIndex,
			e.DurationNs, ok, e.ErrorText,
		)
		if err != nil {
			log.Printf("[inspectlog] warning: skip row id=%q insert failed: %v", e.ID, err)
			continue // skip individual row errors
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("inspectlog repo commit: %w", err)
	}
	return inserted, nil
}

// ListFilter specifies query filters for listing inspect logs.
type ListFilter struct {
	Username string
	LinkHash string
	OK       *int  // 0/1 filter
	Before   int64 // ts_ns < Before (0 means no upper bound)
	After    int64 // ts_ns > After (0 means no lower bound)
	Limit    int
	Offset   int
}

// List queries all retained DBs and returns matching rows ordered by ts_ns
// DESC, ties broken by id ASC.
func (r *Repo) List(f ListFilter) ([]LogRow, error) {
	files, err := r.listDBFiles()
	if err != nil {
		return nil, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 10000 {
		limit = 10000
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	// Fetch limit+offset rows per file, then globally merge-sort. Entry ts_ns
	// can be out of order relative to DB filename time, so no early stop.
	fetchLimit := limit + offset
	var results []LogRow
	for i := len(files) - 1; i >= 0; i-- {
		db, err := r.openReadOnly(files[i])
		if err != nil {
			log.Printf("[inspectlog] warning: list open db failed path=%q: %v", files[i], err)
			continue
		}
		rows, err := r.queryLogs(db, f, fetchLimit)
		if closeErr := db.Close(); closeErr != nil {
			log.Printf("[inspectlog] warning: list close db failed path=%q: %v", files[i], closeErr)
		}
		if err != nil {
			log.Printf("[inspectlog] warning: list query failed path=%q: %v", files[i], err)
			continue
		}
		results = append(results, rows...)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].TsNs != results[j].TsNs {
			return results[i].TsNs > results[j].TsNs
		}
		return results[i].ID < results[j].ID
	})
	if offset >= len(results) {
		return nil, nil
	}
	results = results[offset:]
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// GetByID looks up a single entry across all retained DBs.
func (r *Repo) GetByID(id string) (*LogRow, error) {
	files, err := r.listDBFiles()
	if err != nil {
		return nil, err
	}

	for i := len(files) - 1; i >= 0; i-- {
		db, err := r.openReadOnly(files[i])
		if err != nil {
			log.Printf("[inspectlog] warning: get_by_id open db failed path=%q id=%q: %v", files[i], id, err)
			continue
		}
		row, err := r.queryLogByID(db, id)
		if closeErr := db.Close(); closeErr != nil {
			log.Printf("[inspectlog] warning: get_by_id close db failed path=%q id=%q: %v", files[i], id, closeErr)
		}
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			log.Printf("[inspectlog] warning: get_by_id query failed path=%q id=%q: %v", files[i], id, err)
		}
		if err == nil && row != nil {
			return row, nil
		}
	}
	return nil, nil
}

// Cleanup prunes over-retention DB files, keeping the retainCount most
// recent (the active one is always latest). Safe to call on a schedule.
func (r *Repo) Cleanup() error {
	files, err := r.listDBFiles()
	if err != nil {
		return err
	}
	if len(files) <= r.retainCount {
		return nil
	}
	toRemove := files[:len(files)-r.retainCount]
	for _, f := range toRemove {
		os.Remove(f)
		// Also clean up WAL/SHM files.
		os.Remove(f + "-wal")
		os.Remove(f + "-shm")
	}
	return nil
}

// --- internal helpers ---

func (r *Repo) openDB(path string) error {
	db, err := state.OpenDB(path)
	if err != nil {
		return err
	}
	if err := state.InitDB(db, CreateDDL); err != nil {
		db.Close()
		return err
	}
	r.activeDB = db
	r.activePath = path
	return nil
}

func (r *Repo) rotateDB() error {
	if r.activeDB != nil {
		r.activeDB.Close()
		r.activeDB = nil
	}
	name := fmt.Sprintf("inspect_logs-%d.db", time.Now().UnixMilli())
	path := filepath.Join(r.logDir, name)
	if err := r.openDB(path); err != nil {
		return fmt.Errorf("inspectlog rotate: %w", err)
	}
	return r.Cleanup()
}

func (r *Repo) maybeRotate() error {
	if r.activePath == "" {
		return r.rotateDB()
	}
	totalSize, err := sqliteFilesSize(r.activePath)
	if err != nil {
		log.Printf("[inspectlog] warning: stat active db failed path=%q: %v", r.activePath, err)
		return nil // can't stat; skip rotation check
	}
	if totalSize >= r.maxBytes {
		return r.rotateDB()
	}
	return nil
}

func (r *Repo) listDBFiles() ([]string, error) {
	entries, err := os.ReadDir(r.logDir)
	if err != nil {
		return nil, fmt.Errorf("inspectlog list dir %s: %w", r.logDir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "inspect_logs-") && strings.HasSuffix(name, ".db") {
			files = append(files, filepath.Join(r.logDir, name))
		}
	}
	sort.Strings(files) // lexicographic sort == chronological for our naming
	return files, nil
}

func (r *Repo) openReadOnly(path string) (*sql.DB, error) {
	dsn := path + "?mode=ro"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

const logColumns = "id, ts_ns, username, bot_index, link_hash, owner_id, market_id, asset_id, item_id, float_value, paint_seed, def_index, paint_index, duration_ns, ok, error_text"

func (r *Repo) queryLogs(db *sql.DB, f ListFilter, limit int) ([]LogRow, error) {
	var where []string
	var args []interface{}

	if f.Username != "" {
		where = append(where, "username = ?")
		args = append(args, f.Username)
	}
	if f.LinkHash != "" {
		where = append(where, "link_hash = ?")
		args = append(args, f.LinkHash)
	}
	if f.OK != nil {
		where = append(where, "ok = ?")
		args = append(args, *f.OK)
	}
	if f.Before > 0 {
		where = append(where, "ts_ns < ?")
		args = append(args, f.Before)
	}
	if f.After > 0 {
		where = append(where, "ts_ns > ?")
		args = append(args, f.After)
	}

	q := "SELECT " + logColumns + " FROM inspect_logs"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY ts_ns DESC, id ASC LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []LogRow
	for rows.Next() {
		row, err := scanLogRow(rows.Scan)
		if err != nil {
			log.Printf("[inspectlog] warning: skip malformed row during scan: %v", err)
			continue
		}
		results = append(results, *row)
	}
	return results, rows.Err()
}

func (r *Repo) queryLogByID(db *sql.DB, id string) (*LogRow, error) {
	row := db.QueryRow("SELECT "+logColumns+" FROM inspect_logs WHERE id = ?", id)
	return scanLogRow(row.Scan)
}

func scanLogRow(scan func(dest ...any) error) (*LogRow, error) {
	var e LogRow
	var ok int
	err := scan(
		&e.ID, &e.TsNs, &e.Username, &e.BotIndex, &e.LinkHash,
		&e.OwnerID, &e.MarketID, &e.AssetID, &e.ItemID,
		&e.FloatValue, &e.PaintSeed, &e.DefIndex, &e.PaintIndex,
		&e.DurationNs, &ok, &e.ErrorText,
	)
	if err != nil {
		return nil, err
	}
	e.OK = ok != 0
	return &e, nil
}

// sqliteFilesSize returns the total size of a SQLite database set:
// base db file + optional -wal and -shm sidecar files.
func sqliteFilesSize(basePath string) (int64, error) {
	paths := []string{basePath, basePath + "-wal", basePath + "-shm"}
	var total int64
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, err
		}
		total += info.Size()
	}
	return total, nil
}
