package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // CGO-free SQLite driver

	"github.com/codewithboateng/adlint/internal/model"
)

// DB is the rule store backed by SQLite.
type DB struct {
	conn *sql.DB
	now  func() time.Time
}

// OpenSQLite opens (and creates if missing) a SQLite DB at path and ensures
// the schema exists.
func OpenSQLite(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, unavailable("open", err)
		}
	}
	// Pragmas via DSN keep it portable with the modernc driver.
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	c, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, unavailable("open", err)
	}
	db := New(c)
	if err := db.CreateSchema(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return db, nil
}

// New wraps an already opened connection. The schema is not touched.
func New(conn *sql.DB) *DB {
	return &DB{conn: conn, now: func() time.Time { return time.Now().UTC() }}
}

// SetClock replaces the timestamp source (tests).
func (db *DB) SetClock(now func() time.Time) { db.now = now }

func (db *DB) Close() error { return db.conn.Close() }

// CreateSchema ensures tables and indexes exist.
func (db *DB) CreateSchema() error {
	_, err := db.conn.Exec(`
CREATE TABLE IF NOT EXISTS pattern_rules (
  id          INTEGER PRIMARY KEY AUTOINCREMENT,
  pattern     TEXT NOT NULL,
  category    TEXT NOT NULL,    -- MEDICAL_CLAIM, ...
  severity    TEXT NOT NULL,    -- HIGH|MEDIUM|LOW
  legal_basis TEXT NOT NULL,
  suggestion  TEXT NOT NULL,
  is_active   INTEGER NOT NULL DEFAULT 1,
  description TEXT NOT NULL DEFAULT '',
  group_label TEXT NOT NULL DEFAULT '',
  created_at  TEXT NOT NULL,    -- RFC3339Nano
  updated_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rules_category ON pattern_rules(category);
CREATE INDEX IF NOT EXISTS idx_rules_active ON pattern_rules(is_active);

CREATE TABLE IF NOT EXISTS audit (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  ts TEXT NOT NULL,
  actor TEXT,
  action TEXT NOT NULL,
  resource TEXT,
  meta_json TEXT
);
`)
	if err != nil {
		return unavailable("create schema", err)
	}
	return nil
}

const ruleColumns = `id, pattern, category, severity, legal_basis, suggestion, is_active, description, group_label, created_at, updated_at`

// orderBy sorts by canonical category order, severity descending, then id.
var orderBy = func() string {
	var sb strings.Builder
	sb.WriteString(" ORDER BY (CASE category")
	for i, c := range model.Categories {
		fmt.Fprintf(&sb, " WHEN '%s' THEN %d", c, i)
	}
	fmt.Fprintf(&sb, " ELSE %d END),", len(model.Categories))
	sb.WriteString(" (CASE severity")
	for _, s := range model.Severities {
		fmt.Fprintf(&sb, " WHEN '%s' THEN %d", s, s.Rank())
	}
	sb.WriteString(" ELSE 0 END) DESC, id")
	return sb.String()
}()

// Add validates and inserts a rule, returning its new id. Timestamps are
// always set by the store.
func (db *DB) Add(r model.Rule) (int64, error) {
	if err := r.Check(); err != nil {
		return 0, err
	}
	ts := db.now().Format(time.RFC3339Nano)
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, unavailable("add", err)
	}
	defer func() { _ = tx.Rollback() }()

	id, err := insertRule(tx, r, ts)
	if err != nil {
		return 0, unavailable("add", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, unavailable("add", err)
	}
	return id, nil
}

func insertRule(tx *sql.Tx, r model.Rule, ts string) (int64, error) {
	res, err := tx.Exec(`
INSERT INTO pattern_rules
  (pattern, category, severity, legal_basis, suggestion, is_active, description, group_label, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Pattern, string(r.Category), string(r.Severity), r.LegalBasis, r.Suggestion,
		boolInt(r.Active), r.Description, r.Group, ts, ts)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Get returns the rule with id, or model.ErrRuleNotFound.
func (db *DB) Get(id int64) (model.Rule, error) {
	row := db.conn.QueryRow(`SELECT `+ruleColumns+` FROM pattern_rules WHERE id = ?`, id)
	r, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Rule{}, fmt.Errorf("rule %d: %w", id, model.ErrRuleNotFound)
	}
	if err != nil {
		return model.Rule{}, unavailable("get", err)
	}
	return r, nil
}

// ListActive returns active rules, optionally restricted to one category
// (empty category means all).
func (db *DB) ListActive(category model.Category) ([]model.Rule, error) {
	q := `SELECT ` + ruleColumns + ` FROM pattern_rules WHERE is_active = 1`
	var args []any
	if category != "" {
		q += ` AND category = ?`
		args = append(args, string(category))
	}
	return db.query("list active", q+orderBy, args...)
}

// ListAll returns every rule including inactive ones.
func (db *DB) ListAll() ([]model.Rule, error) {
	return db.query("list all", `SELECT `+ruleColumns+` FROM pattern_rules`+orderBy)
}

// Update replaces the mutable fields of an existing rule and returns the
// stored result.
func (db *DB) Update(r model.Rule) (model.Rule, error) {
	if err := r.Check(); err != nil {
		return model.Rule{}, err
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return model.Rule{}, unavailable("update", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(`
UPDATE pattern_rules
   SET pattern = ?, category = ?, severity = ?, legal_basis = ?, suggestion = ?,
       is_active = ?, description = ?, group_label = ?, updated_at = ?
 WHERE id = ?`,
		r.Pattern, string(r.Category), string(r.Severity), r.LegalBasis, r.Suggestion,
		boolInt(r.Active), r.Description, r.Group, db.now().Format(time.RFC3339Nano), r.ID)
	if err != nil {
		return model.Rule{}, unavailable("update", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Rule{}, fmt.Errorf("rule %d: %w", r.ID, model.ErrRuleNotFound)
	}
	out, err := scanRule(tx.QueryRow(`SELECT `+ruleColumns+` FROM pattern_rules WHERE id = ?`, r.ID))
	if err != nil {
		return model.Rule{}, unavailable("update", err)
	}
	if err := tx.Commit(); err != nil {
		return model.Rule{}, unavailable("update", err)
	}
	return out, nil
}

// Delete removes a rule and reports whether a row was removed.
func (db *DB) Delete(id int64) (bool, error) {
	return db.execAffected("delete", `DELETE FROM pattern_rules WHERE id = ?`, id)
}

// Deactivate sets is_active=0 and reports whether a row was changed.
func (db *DB) Deactivate(id int64) (bool, error) {
	return db.execAffected("deactivate",
		`UPDATE pattern_rules SET is_active = 0, updated_at = ? WHERE id = ?`,
		db.now().Format(time.RFC3339Nano), id)
}

// Search matches keyword case-insensitively against pattern, description
// and group label. Filtering happens here because SQLite's LIKE folds ASCII only.
func (db *DB) Search(keyword string) ([]model.Rule, error) {
	all, err := db.ListAll()
	if err != nil {
		return nil, err
	}
	return FilterRules(all, keyword), nil
}

// FilterRules keeps rules whose pattern, description or group contains keyword.
func FilterRules(rules []model.Rule, keyword string) []model.Rule {
	kw := strings.ToLower(strings.TrimSpace(keyword))
	out := []model.Rule{}
	for _, r := range rules {
		if strings.Contains(strings.ToLower(r.Pattern), kw) ||
			strings.Contains(strings.ToLower(r.Description), kw) ||
			strings.Contains(strings.ToLower(r.Group), kw) {
			out = append(out, r)
		}
	}
	return out
}

// Count returns the number of stored rules, active or not.
func (db *DB) Count() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM pattern_rules`).Scan(&n); err != nil {
		return 0, unavailable("count", err)
	}
	return n, nil
}

// Clear deletes every rule and returns how many were removed.
func (db *DB) Clear() (int64, error) {
	res, err := db.conn.Exec(`DELETE FROM pattern_rules`)
	if err != nil {
		return 0, unavailable("clear", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Statistics counts rules; the distributions cover active rules only. All
// three queries read the same snapshot.
func (db *DB) Statistics() (model.RuleStats, error) {
	st := model.RuleStats{
		ByCategory: map[model.Category]int{},
		BySeverity: map[model.Severity]int{},
		Source:     "database",
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return st, unavailable("statistics", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRow(`SELECT COUNT(*), COALESCE(SUM(is_active), 0) FROM pattern_rules`)
	if err := row.Scan(&st.Total, &st.Active); err != nil {
		return st, unavailable("statistics", err)
	}
	st.Inactive = st.Total - st.Active

	if err := groupCount(tx, `category`, func(k string, n int) { st.ByCategory[model.Category(k)] = n }); err != nil {
		return st, err
	}
	if err := groupCount(tx, `severity`, func(k string, n int) { st.BySeverity[model.Severity(k)] = n }); err != nil {
		return st, err
	}
	if err := tx.Commit(); err != nil {
		return st, unavailable("statistics", err)
	}
	return st, nil
}

func groupCount(tx *sql.Tx, col string, put func(string, int)) error {
	rows, err := tx.Query(`SELECT ` + col + `, COUNT(*) FROM pattern_rules WHERE is_active = 1 GROUP BY ` + col)
	if err != nil {
		return unavailable("statistics", err)
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		var n int
		if err := rows.Scan(&k, &n); err != nil {
			return unavailable("statistics", err)
		}
		put(k, n)
	}
	if err := rows.Err(); err != nil {
		return unavailable("statistics", err)
	}
	return nil
}

func (db *DB) query(op, q string, args ...any) ([]model.Rule, error) {
	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer rows.Close()

	out := []model.Rule{}
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, unavailable(op, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(op, err)
	}
	return out, nil
}

func (db *DB) execAffected(op, q string, args ...any) (bool, error) {
	res, err := db.conn.Exec(q, args...)
	if err != nil {
		return false, unavailable(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, unavailable(op, err)
	}
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRule(s scanner) (model.Rule, error) {
	var (
		r                  model.Rule
		category, severity string
		created, updated   string
	)
	if err := s.Scan(&r.ID, &r.Pattern, &category, &severity, &r.LegalBasis, &r.Suggestion,
		&r.Active, &r.Description, &r.Group, &created, &updated); err != nil {
		return model.Rule{}, err
	}
	r.Category = model.Category(category)
	r.Severity = model.Severity(severity)
	r.CreatedAt = parseTime(created)
	r.UpdatedAt = parseTime(updated)
	return r, nil
}

// parseTime accepts RFC3339Nano first, then RFC3339; unparsable values stay zero.
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func unavailable(op string, err error) error {
	return &model.UnavailableError{Op: op, Err: err}
}
