package rules

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codewithboateng/adlint/internal/model"
	"github.com/codewithboateng/adlint/internal/storage"
)

func newPersistent(t *testing.T) (*Provider, *storage.DB) {
	t.Helper()
	db, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "patterns.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	p := NewProvider(db, nil, nil)
	require.NoError(t, p.Initialize())
	require.Equal(t, ModePersistent, p.Mode())
	return p, db
}

func custom(pattern string) model.Rule {
	return model.Rule{
		Pattern:    pattern,
		Category:   model.CategoryExaggeratedEffect,
		Severity:   model.SeverityMedium,
		LegalBasis: "표시·광고의 공정화에 관한 법률",
		Suggestion: "완화된 표현을 사용하세요",
		Active:     true,
	}
}

func scanTexts(t *testing.T, p *Provider, text string) []string {
	t.Helper()
	vs, err := NewEngine(nil).Scan(p.Ruleset(), text)
	require.NoError(t, err)
	out := []string{}
	for _, v := range vs {
		out = append(out, v.Text)
	}
	return out
}

func TestInitializeSeedsEmptyStore(t *testing.T) {
	p, db := newPersistent(t)

	n, err := db.Count()
	require.NoError(t, err)
	assert.Equal(t, len(Builtin()), n)
	assert.Equal(t, len(Builtin()), p.Ruleset().Len())

	// A second provider over the same store does not seed again.
	p2 := NewProvider(db, nil, nil)
	require.NoError(t, p2.Initialize())
	n, err = db.Count()
	require.NoError(t, err)
	assert.Equal(t, len(Builtin()), n)
}

func TestAddRuleReloads(t *testing.T) {
	p, _ := newPersistent(t)
	v0 := p.Ruleset().Version

	assert.Empty(t, scanTexts(t, p, "피부 탄력 끝판왕"))
	id, err := p.AddRule(custom(`끝판왕`))
	require.NoError(t, err)
	assert.Greater(t, p.Ruleset().Version, v0)
	assert.Equal(t, []string{"끝판왕"}, scanTexts(t, p, "피부 탄력 끝판왕"))

	got, err := p.Get(id)
	require.NoError(t, err)
	assert.Equal(t, model.GroupCustom, got.Group)
}

func TestAddRuleRejectsBadPatternWithoutSideEffects(t *testing.T) {
	p, db := newPersistent(t)
	before, err := db.Count()
	require.NoError(t, err)
	v0 := p.Ruleset().Version

	_, err = p.AddRule(custom(`(끝판왕`))
	assert.ErrorIs(t, err, model.ErrInvalidPattern)

	after, err := db.Count()
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, v0, p.Ruleset().Version)
}

func TestRuleLifecycle(t *testing.T) {
	p, _ := newPersistent(t)
	id, err := p.AddRule(custom(`끝판왕`))
	require.NoError(t, err)

	require.NoError(t, p.DeactivateRule(id))
	assert.Empty(t, scanTexts(t, p, "끝판왕"))
	all, err := p.Rules(true)
	require.NoError(t, err)
	active, err := p.Rules(false)
	require.NoError(t, err)
	assert.Equal(t, len(all)-1, len(active))

	got, err := p.SetActive(id, true)
	require.NoError(t, err)
	assert.True(t, got.Active)
	assert.Equal(t, []string{"끝판왕"}, scanTexts(t, p, "끝판왕"))

	got.Severity = model.SeverityHigh
	got.Pattern = `끝판\s*왕`
	updated, err := p.UpdateRule(got)
	require.NoError(t, err)
	assert.Equal(t, model.SeverityHigh, updated.Severity)
	assert.Equal(t, []string{"끝판 왕"}, scanTexts(t, p, "끝판 왕"))

	require.NoError(t, p.DeleteRule(id))
	assert.ErrorIs(t, p.DeleteRule(id), model.ErrRuleNotFound)
	assert.ErrorIs(t, p.DeactivateRule(id), model.ErrRuleNotFound)
	_, err = p.Get(id)
	assert.ErrorIs(t, err, model.ErrRuleNotFound)
}

func TestSearchAndStatistics(t *testing.T) {
	p, _ := newPersistent(t)
	found, err := p.Search("부작용")
	require.NoError(t, err)
	assert.Len(t, found, 1)

	st, err := p.Statistics()
	require.NoError(t, err)
	assert.Equal(t, "database", st.Source)
	assert.Equal(t, 9, st.Active)
	assert.Equal(t, 2, st.ByCategory[model.CategoryMedicalClaim])
}

func TestResetToDefaults(t *testing.T) {
	p, db := newPersistent(t)
	_, err := p.AddRule(custom(`끝판왕`))
	require.NoError(t, err)

	n, err := p.ResetToDefaults()
	require.NoError(t, err)
	assert.Equal(t, 9, n)
	count, err := db.Count()
	require.NoError(t, err)
	assert.Equal(t, 9, count)
	assert.Empty(t, scanTexts(t, p, "끝판왕"))
}

func TestSeedDuplicatesCatalog(t *testing.T) {
	p, db := newPersistent(t)
	n, err := p.Seed()
	require.NoError(t, err)
	assert.Equal(t, 9, n)
	count, err := db.Count()
	require.NoError(t, err)
	assert.Equal(t, 18, count)

	vs, err := NewEngine(nil).Scan(p.Ruleset(), "병원 추천")
	require.NoError(t, err)
	assert.Len(t, vs, 1, "duplicate rules are deduplicated at match time")
}

func TestBackupRestoreThroughProvider(t *testing.T) {
	p, _ := newPersistent(t)
	_, err := p.AddRule(custom(`끝판왕`))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, p.Backup(path))

	_, err = p.ResetToDefaults()
	require.NoError(t, err)
	assert.Empty(t, scanTexts(t, p, "끝판왕"))

	n, err := p.Restore(path, true)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, []string{"끝판왕"}, scanTexts(t, p, "끝판왕"))
}

func TestUnreachableStoreFallsBack(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM pattern_rules`).WillReturnError(errors.New("unable to open database file"))

	p := NewProvider(storage.New(conn), nil, nil)
	require.NoError(t, p.Initialize())
	assert.Equal(t, ModeFallback, p.Mode())
	require.NotNil(t, p.Ruleset())
	assert.Equal(t, len(Builtin()), p.Ruleset().Len())

	_, err = p.AddRule(custom(`끝판왕`))
	assert.ErrorIs(t, err, model.ErrUnsupported)
	_, err = p.UpdateRule(custom(`끝판왕`))
	assert.ErrorIs(t, err, model.ErrUnsupported)
	assert.ErrorIs(t, p.DeleteRule(1), model.ErrUnsupported)
	assert.ErrorIs(t, p.DeactivateRule(1), model.ErrUnsupported)
	_, err = p.ResetToDefaults()
	assert.ErrorIs(t, err, model.ErrUnsupported)
	assert.ErrorIs(t, p.Backup("x.json"), model.ErrUnsupported)

	st, err := p.Statistics()
	require.NoError(t, err)
	assert.Equal(t, "builtin", st.Source)
	assert.Equal(t, 9, st.Total)

	found, err := p.Search("부작용")
	require.NoError(t, err)
	assert.Len(t, found, 1)

	vs, err := NewEngine(nil).Scan(p.Ruleset(), "이 제품은 100% 안전하며 부작용이 없습니다")
	require.NoError(t, err)
	assert.Len(t, vs, 2)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNilStoreUsesCatalog(t *testing.T) {
	p := NewProvider(nil, nil, nil)
	assert.Nil(t, p.Ruleset())
	require.NoError(t, p.Initialize())
	assert.Equal(t, ModeFallback, p.Mode())
	v := p.Ruleset().Version
	require.NoError(t, p.Reload())
	assert.Greater(t, p.Ruleset().Version, v)
}

type failingLoader struct{}

func (failingLoader) Load() ([]model.Rule, error) { return nil, errors.New("pack missing") }

func TestFallbackWithoutCatalogFails(t *testing.T) {
	p := NewProvider(nil, failingLoader{}, nil)
	err := p.Initialize()
	require.Error(t, err)
	assert.Nil(t, p.Ruleset())
	assert.Equal(t, err, p.Initialize(), "initialization runs once")
}

// flakyStore fails ListActive on demand.
type flakyStore struct {
	Store
	listErr error
}

func (s *flakyStore) ListActive(c model.Category) ([]model.Rule, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.Store.ListActive(c)
}

func TestReloadFailureKeepsSnapshot(t *testing.T) {
	db, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "patterns.db"))
	require.NoError(t, err)
	defer db.Close()

	fs := &flakyStore{Store: db}
	p := NewProvider(fs, nil, nil)
	require.NoError(t, p.Initialize())
	before := p.Ruleset()

	fs.listErr = &model.UnavailableError{Op: "list active", Err: errors.New("database is locked")}
	err = p.Reload()
	assert.ErrorIs(t, err, model.ErrStoreUnavailable)
	assert.Same(t, before, p.Ruleset())
	assert.Equal(t, ModePersistent, p.Mode())
}

func TestFallbackReloadDuringReads(t *testing.T) {
	p := NewProvider(nil, nil, nil)
	require.NoError(t, p.Initialize())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				assert.NoError(t, p.Reload())
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				st, err := p.Statistics()
				assert.NoError(t, err)
				assert.Equal(t, 9, st.Total)
				rs, err := p.Rules(false)
				assert.NoError(t, err)
				assert.Len(t, rs, 9)
				found, err := p.Search("부작용")
				assert.NoError(t, err)
				assert.Len(t, found, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, ModeFallback, p.Mode())
}
