package rules

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/codewithboateng/adlint/internal/model"
	"github.com/codewithboateng/adlint/internal/storage"
)

// Store is the persistence contract the provider needs. *storage.DB
// satisfies it.
type Store interface {
	Count() (int, error)
	Add(model.Rule) (int64, error)
	Get(id int64) (model.Rule, error)
	ListActive(model.Category) ([]model.Rule, error)
	ListAll() ([]model.Rule, error)
	Update(model.Rule) (model.Rule, error)
	Delete(id int64) (bool, error)
	Deactivate(id int64) (bool, error)
	Search(keyword string) ([]model.Rule, error)
	Statistics() (model.RuleStats, error)
	Clear() (int64, error)
	Backup(path string) error
	Restore(path string, clearExisting bool) (int, error)
}

// Mode is the provider state chosen at Initialize.
type Mode int

const (
	ModeUninitialized Mode = iota
	ModePersistent
	ModeFallback
)

func (m Mode) String() string {
	switch m {
	case ModePersistent:
		return "persistent"
	case ModeFallback:
		return "fallback"
	default:
		return "uninitialized"
	}
}

// Provider owns the current ruleset snapshot. In persistent mode it reads
// and writes through the store; in fallback mode it serves the catalog
// read-only. The mode is fixed by Initialize.
type Provider struct {
	store  Store
	loader Loader
	logger *slog.Logger

	initOnce sync.Once
	initErr  error
	mode     atomic.Int32
	version  atomic.Uint64
	current  atomic.Pointer[Ruleset]

	// fallback holds the catalog copy served when the store is unreachable.
	// It is swapped whole on reload like current.
	fallback atomic.Pointer[[]model.Rule]
}

// NewProvider wires a provider. A nil store means the in-memory catalog only;
// a nil loader means the built-in catalog.
func NewProvider(store Store, loader Loader, logger *slog.Logger) *Provider {
	if loader == nil {
		loader = BuiltinLoader{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{store: store, loader: loader, logger: logger}
}

// Initialize chooses the provider mode. A reachable empty store is seeded
// from the loader; an unreachable store puts the provider in fallback mode.
// Only a loader failure in fallback mode is returned as an error.
func (p *Provider) Initialize() error {
	p.initOnce.Do(func() { p.initErr = p.initialize() })
	return p.initErr
}

func (p *Provider) initialize() error {
	if p.store == nil {
		p.logger.Info("persistent rule store disabled, using catalog")
		return p.enterFallback()
	}
	n, err := p.store.Count()
	if err != nil {
		p.logger.Warn("rule store unavailable, falling back to catalog", "err", err)
		return p.enterFallback()
	}
	if n == 0 {
		added, err := p.seed()
		if err != nil {
			if errors.Is(err, model.ErrStoreUnavailable) {
				p.logger.Warn("seeding rule store failed, falling back to catalog", "err", err)
				return p.enterFallback()
			}
			return err
		}
		p.logger.Info("seeded empty rule store from catalog", "rules", added)
	}
	p.mode.Store(int32(ModePersistent))
	if err := p.Reload(); err != nil {
		p.logger.Warn("initial rule load failed, falling back to catalog", "err", err)
		return p.enterFallback()
	}
	return nil
}

func (p *Provider) enterFallback() error {
	rules, err := p.loader.Load()
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	p.fallback.Store(&rules)
	p.mode.Store(int32(ModeFallback))
	p.publish(rules)
	return nil
}

func (p *Provider) seed() (int, error) {
	rules, err := p.loader.Load()
	if err != nil {
		return 0, fmt.Errorf("load catalog: %w", err)
	}
	for i, r := range rules {
		if _, err := p.store.Add(r); err != nil {
			return i, err
		}
	}
	return len(rules), nil
}

func (p *Provider) publish(rules []model.Rule) *Ruleset {
	rs := NewRuleset(rules, p.version.Add(1))
	p.current.Store(rs)
	p.logger.Debug("ruleset published", "version", rs.Version, "rules", rs.Len(), "mode", p.Mode().String())
	return rs
}

func (p *Provider) Mode() Mode { return Mode(p.mode.Load()) }

// catalog returns the fallback rules. The slice is never mutated after it
// is stored.
func (p *Provider) catalog() []model.Rule {
	if rs := p.fallback.Load(); rs != nil {
		return *rs
	}
	return nil
}

// Ruleset returns the current snapshot, or nil before Initialize.
func (p *Provider) Ruleset() *Ruleset { return p.current.Load() }

// Reload recomputes the snapshot. In persistent mode it reads the store;
// on failure the previous snapshot stays in place and the error is
// returned. In fallback mode it re-reads the loader.
func (p *Provider) Reload() error {
	switch p.Mode() {
	case ModePersistent:
		rules, err := p.store.ListActive("")
		if err != nil {
			return fmt.Errorf("reload rules: %w", err)
		}
		p.publish(rules)
		return nil
	case ModeFallback:
		rules, err := p.loader.Load()
		if err != nil {
			return fmt.Errorf("reload catalog: %w", err)
		}
		p.fallback.Store(&rules)
		p.publish(rules)
		return nil
	default:
		return fmt.Errorf("reload rules: provider not initialized")
	}
}

func (p *Provider) writable(op string) error {
	if p.Mode() != ModePersistent {
		return fmt.Errorf("%s: %w", op, model.ErrUnsupported)
	}
	return nil
}

// AddRule validates the pattern before touching the store, persists the
// rule and reloads. An empty group becomes the custom group.
func (p *Provider) AddRule(r model.Rule) (int64, error) {
	if err := p.writable("add rule"); err != nil {
		return 0, err
	}
	if _, err := model.CompilePattern(r.Pattern); err != nil {
		return 0, err
	}
	if r.Group == "" {
		r.Group = model.GroupCustom
	}
	id, err := p.store.Add(r)
	if err != nil {
		return 0, err
	}
	return id, p.Reload()
}

// UpdateRule replaces a rule's mutable fields and reloads.
func (p *Provider) UpdateRule(r model.Rule) (model.Rule, error) {
	if err := p.writable("update rule"); err != nil {
		return model.Rule{}, err
	}
	if _, err := model.CompilePattern(r.Pattern); err != nil {
		return model.Rule{}, err
	}
	out, err := p.store.Update(r)
	if err != nil {
		return model.Rule{}, err
	}
	return out, p.Reload()
}

// DeleteRule hard-deletes a rule. A missing id is model.ErrRuleNotFound.
func (p *Provider) DeleteRule(id int64) error {
	if err := p.writable("delete rule"); err != nil {
		return err
	}
	ok, err := p.store.Delete(id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("rule %d: %w", id, model.ErrRuleNotFound)
	}
	return p.Reload()
}

// DeactivateRule soft-disables a rule.
func (p *Provider) DeactivateRule(id int64) error {
	if err := p.writable("deactivate rule"); err != nil {
		return err
	}
	ok, err := p.store.Deactivate(id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("rule %d: %w", id, model.ErrRuleNotFound)
	}
	return p.Reload()
}

// SetActive toggles a rule's active flag.
func (p *Provider) SetActive(id int64, active bool) (model.Rule, error) {
	if err := p.writable("set rule status"); err != nil {
		return model.Rule{}, err
	}
	r, err := p.store.Get(id)
	if err != nil {
		return model.Rule{}, err
	}
	r.Active = active
	return p.UpdateRule(r)
}

// Get returns one stored rule. Catalog rules have no ids, so fallback mode
// always reports not found.
func (p *Provider) Get(id int64) (model.Rule, error) {
	if p.Mode() != ModePersistent {
		return model.Rule{}, fmt.Errorf("rule %d: %w", id, model.ErrRuleNotFound)
	}
	return p.store.Get(id)
}

// Rules lists rules in store order; includeInactive adds disabled ones.
func (p *Provider) Rules(includeInactive bool) ([]model.Rule, error) {
	if p.Mode() != ModePersistent {
		catalog := p.catalog()
		rs := make([]model.Rule, 0, len(catalog))
		for _, r := range catalog {
			if r.Active || includeInactive {
				rs = append(rs, r)
			}
		}
		return rs, nil
	}
	if includeInactive {
		return p.store.ListAll()
	}
	return p.store.ListActive("")
}

// Search finds rules by keyword over pattern, description and group.
func (p *Provider) Search(keyword string) ([]model.Rule, error) {
	if p.Mode() != ModePersistent {
		return storage.FilterRules(p.catalog(), keyword), nil
	}
	return p.store.Search(keyword)
}

// Statistics reports repository counts. Fallback counts come from the catalog.
func (p *Provider) Statistics() (model.RuleStats, error) {
	if p.Mode() == ModePersistent {
		return p.store.Statistics()
	}
	st := model.RuleStats{
		ByCategory: map[model.Category]int{},
		BySeverity: map[model.Severity]int{},
		Source:     "builtin",
	}
	for _, r := range p.catalog() {
		st.Total++
		if !r.Active {
			continue
		}
		st.Active++
		st.ByCategory[r.Category]++
		st.BySeverity[r.Severity]++
	}
	st.Inactive = st.Total - st.Active
	return st, nil
}

// Seed adds the catalog to the store regardless of its contents and
// returns how many rules were added.
func (p *Provider) Seed() (int, error) {
	if err := p.writable("seed rules"); err != nil {
		return 0, err
	}
	n, err := p.seed()
	if err != nil {
		return n, err
	}
	return n, p.Reload()
}

// ResetToDefaults clears every rule and reseeds from the catalog.
func (p *Provider) ResetToDefaults() (int, error) {
	if err := p.writable("reset rules"); err != nil {
		return 0, err
	}
	removed, err := p.store.Clear()
	if err != nil {
		return 0, err
	}
	p.logger.Info("rule store cleared", "removed", removed)
	return p.Seed()
}

// Backup writes every rule to path.
func (p *Provider) Backup(path string) error {
	if err := p.writable("backup rules"); err != nil {
		return err
	}
	return p.store.Backup(path)
}

// Restore loads rules from a backup file and reloads.
func (p *Provider) Restore(path string, clearExisting bool) (int, error) {
	if err := p.writable("restore rules"); err != nil {
		return 0, err
	}
	n, err := p.store.Restore(path, clearExisting)
	if err != nil {
		return 0, err
	}
	return n, p.Reload()
}

// Validation is the result of ValidatePattern.
type Validation struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

// ValidatePattern checks pattern syntax without side effects.
func ValidatePattern(pattern string) Validation {
	if _, err := model.CompilePattern(pattern); err != nil {
		var pe *model.PatternError
		if errors.As(err, &pe) && pe.Err != nil {
			return Validation{Valid: false, Message: "정규식 오류: " + pe.Err.Error()}
		}
		return Validation{Valid: false, Message: "정규식 오류: " + err.Error()}
	}
	return Validation{Valid: true, Message: "유효한 정규식 패턴입니다."}
}
