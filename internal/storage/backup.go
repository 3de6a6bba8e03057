package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/codewithboateng/adlint/internal/model"
)

// Format selects the backup encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor picks YAML for .yaml/.yml paths and JSON otherwise.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Record is one rule in a backup file. Ids and timestamps are not carried.
type Record struct {
	Pattern     string         `json:"pattern" yaml:"pattern"`
	Category    model.Category `json:"category" yaml:"category"`
	Severity    model.Severity `json:"severity" yaml:"severity"`
	LegalBasis  string         `json:"legal_basis" yaml:"legal_basis"`
	Suggestion  string         `json:"suggestion" yaml:"suggestion"`
	Active      *bool          `json:"is_active" yaml:"is_active"`
	Description string         `json:"description" yaml:"description"`
	Group       string         `json:"group_label" yaml:"group_label"`
}

func toRecord(r model.Rule) Record {
	active := r.Active
	return Record{
		Pattern:     r.Pattern,
		Category:    r.Category,
		Severity:    r.Severity,
		LegalBasis:  r.LegalBasis,
		Suggestion:  r.Suggestion,
		Active:      &active,
		Description: r.Description,
		Group:       r.Group,
	}
}

// Rule converts a record back into an unsaved rule. A missing is_active
// restores as active.
func (rec Record) Rule() model.Rule {
	active := true
	if rec.Active != nil {
		active = *rec.Active
	}
	return model.Rule{
		Pattern:     rec.Pattern,
		Category:    rec.Category,
		Severity:    rec.Severity,
		LegalBasis:  rec.LegalBasis,
		Suggestion:  rec.Suggestion,
		Active:      active,
		Description: rec.Description,
		Group:       rec.Group,
	}
}

// EncodeBackup writes rules to w as a sequence of records.
func EncodeBackup(w io.Writer, rules []model.Rule, f Format) error {
	recs := make([]Record, 0, len(rules))
	for _, r := range rules {
		recs = append(recs, toRecord(r))
	}
	if f == FormatYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(recs); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(recs)
}

// DecodeBackup reads and validates a sequence of records.
func DecodeBackup(r io.Reader, f Format) ([]model.Rule, error) {
	var recs []Record
	var err error
	if f == FormatYAML {
		err = yaml.NewDecoder(r).Decode(&recs)
		if err == io.EOF {
			err = nil
		}
	} else {
		err = json.NewDecoder(r).Decode(&recs)
	}
	if err != nil {
		return nil, fmt.Errorf("decode backup: %w", err)
	}
	out := make([]model.Rule, 0, len(recs))
	for i, rec := range recs {
		rule := rec.Rule()
		if err := rule.Check(); err != nil {
			return nil, fmt.Errorf("backup record %d: %w", i, err)
		}
		out = append(out, rule)
	}
	return out, nil
}

// Backup writes every rule, including inactive ones, to path.
func (db *DB) Backup(path string) error {
	rules, err := db.ListAll()
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create backup: %w", err)
	}
	defer f.Close()
	if err := EncodeBackup(f, rules, FormatFor(path)); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	return f.Close()
}

// Restore loads a backup from path. All records are validated before any
// write; with clearExisting the table is emptied in the same transaction.
// It returns the number of rules inserted.
func (db *DB) Restore(path string, clearExisting bool) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open backup: %w", err)
	}
	defer f.Close()
	rules, err := DecodeBackup(f, FormatFor(path))
	if err != nil {
		return 0, err
	}
	return db.restoreRules(rules, clearExisting)
}

func (db *DB) restoreRules(rules []model.Rule, clearExisting bool) (int, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, unavailable("restore", err)
	}
	defer func() { _ = tx.Rollback() }()

	if clearExisting {
		if _, err := tx.Exec(`DELETE FROM pattern_rules`); err != nil {
			return 0, unavailable("restore", err)
		}
	}
	ts := db.now().Format(time.RFC3339Nano)
	for _, r := range rules {
		if _, err := insertRule(tx, r, ts); err != nil {
			return 0, unavailable("restore", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, unavailable("restore", err)
	}
	return len(rules), nil
}
