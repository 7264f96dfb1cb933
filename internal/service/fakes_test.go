package service_test

import (
	"context"
	"sync"

	"taxops/internal/model"
	"taxops/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// fakeStore is an in-memory stand-in for the Postgres-backed repositories.
// It reproduces the behaviors the services depend on: not-found semantics,
// the generation unique index, and copy-on-read so Update actually matters.
type fakeStore struct {
	mu sync.Mutex

	tenants     []model.Tenant
	versions    []model.RulebookVersion
	rules       []model.RulebookRule
	clients     []model.Client
	overrides   []model.RuleOverride
	generations []model.TaskGeneration
	tasks       []model.Task
	audits      []model.AuditLog
}

func newFakeStore() *fakeStore {
	return &fakeStore{}
}

// --- TenantRepository ---

type fakeTenantRepo struct{ s *fakeStore }

func (r *fakeTenantRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Tenant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.tenants {
		if r.s.tenants[i].ID == id {
			t := r.s.tenants[i]
			return &t, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeTenantRepo) GetByCode(_ context.Context, code string) (*model.Tenant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.tenants {
		if r.s.tenants[i].Code == code {
			t := r.s.tenants[i]
			return &t, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeTenantRepo) ListActive(_ context.Context) ([]model.Tenant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Tenant
	for _, t := range r.s.tenants {
		if t.IsActive {
			out = append(out, t)
		}
	}
	return out, nil
}

// --- RulebookVersionRepository ---

type fakeVersionRepo struct{ s *fakeStore }

func (r *fakeVersionRepo) Create(_ context.Context, version *model.RulebookVersion) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if version.ID == uuid.Nil {
		version.ID = uuid.New()
	}
	r.s.versions = append(r.s.versions, *version)
	return nil
}

func (r *fakeVersionRepo) Update(_ context.Context, version *model.RulebookVersion) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.versions {
		if r.s.versions[i].ID == version.ID {
			r.s.versions[i] = *version
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakeVersionRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*model.RulebookVersion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.versions {
		if r.s.versions[i].TenantID == tenantID && r.s.versions[i].ID == id {
			v := r.s.versions[i]
			return &v, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeVersionRepo) FindByCode(_ context.Context, tenantID uuid.UUID, code string) (*model.RulebookVersion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.versions {
		if r.s.versions[i].TenantID == tenantID && r.s.versions[i].Code == code {
			v := r.s.versions[i]
			return &v, nil
		}
	}
	return nil, nil
}

func (r *fakeVersionRepo) FindActive(_ context.Context, tenantID uuid.UUID) (*model.RulebookVersion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.versions {
		if r.s.versions[i].TenantID == tenantID && r.s.versions[i].IsActive {
			v := r.s.versions[i]
			return &v, nil
		}
	}
	return nil, nil
}

func (r *fakeVersionRepo) List(_ context.Context, tenantID uuid.UUID) ([]model.RulebookVersion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.RulebookVersion
	for _, v := range r.s.versions {
		if v.TenantID == tenantID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r *fakeVersionRepo) DeactivateAll(_ context.Context, tenantID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.versions {
		if r.s.versions[i].TenantID == tenantID {
			r.s.versions[i].IsActive = false
		}
	}
	return nil
}

func (r *fakeVersionRepo) SetActive(_ context.Context, tenantID, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.versions {
		if r.s.versions[i].TenantID == tenantID && r.s.versions[i].ID == id {
			r.s.versions[i].IsActive = true
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// --- RulebookRuleRepository ---

type fakeRuleRepo struct{ s *fakeStore }

func (r *fakeRuleRepo) Create(_ context.Context, rule *model.RulebookRule) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	r.s.rules = append(r.s.rules, *rule)
	return nil
}

func (r *fakeRuleRepo) Update(_ context.Context, rule *model.RulebookRule) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.rules {
		if r.s.rules[i].ID == rule.ID {
			r.s.rules[i] = *rule
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakeRuleRepo) Delete(_ context.Context, tenantID, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.rules {
		if r.s.rules[i].TenantID == tenantID && r.s.rules[i].ID == id {
			r.s.rules = append(r.s.rules[:i], r.s.rules[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *fakeRuleRepo) DeleteByVersion(_ context.Context, tenantID, versionID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := r.s.rules[:0]
	for _, rule := range r.s.rules {
		if !(rule.TenantID == tenantID && rule.VersionID == versionID) {
			kept = append(kept, rule)
		}
	}
	r.s.rules = kept
	return nil
}

func (r *fakeRuleRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*model.RulebookRule, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.rules {
		if r.s.rules[i].TenantID == tenantID && r.s.rules[i].ID == id {
			rule := r.s.rules[i]
			return &rule, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRuleRepo) FindByCode(_ context.Context, tenantID, versionID uuid.UUID, code string) (*model.RulebookRule, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.rules {
		if r.s.rules[i].TenantID == tenantID && r.s.rules[i].VersionID == versionID && r.s.rules[i].Code == code {
			rule := r.s.rules[i]
			return &rule, nil
		}
	}
	return nil, nil
}

func (r *fakeRuleRepo) List(_ context.Context, tenantID, versionID uuid.UUID) ([]model.RulebookRule, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.RulebookRule
	for _, rule := range r.s.rules {
		if rule.TenantID == tenantID && rule.VersionID == versionID {
			out = append(out, rule)
		}
	}
	return out, nil
}

func (r *fakeRuleRepo) ListActive(_ context.Context, tenantID, versionID uuid.UUID) ([]model.RulebookRule, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.RulebookRule
	for _, rule := range r.s.rules {
		if rule.TenantID == tenantID && rule.VersionID == versionID && rule.IsActive {
			out = append(out, rule)
		}
	}
	return out, nil
}

// --- ClientRepository ---

type fakeClientRepo struct{ s *fakeStore }

func (r *fakeClientRepo) Create(_ context.Context, client *model.Client) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if client.ID == uuid.Nil {
		client.ID = uuid.New()
	}
	r.s.clients = append(r.s.clients, *client)
	return nil
}

func (r *fakeClientRepo) Update(_ context.Context, client *model.Client) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.clients {
		if r.s.clients[i].ID == client.ID {
			r.s.clients[i] = *client
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakeClientRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*model.Client, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.clients {
		if r.s.clients[i].TenantID == tenantID && r.s.clients[i].ID == id {
			c := r.s.clients[i]
			return &c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeClientRepo) List(_ context.Context, tenantID uuid.UUID, page, limit int) ([]model.Client, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Client
	for _, c := range r.s.clients {
		if c.TenantID == tenantID {
			out = append(out, c)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeClientRepo) ListActive(_ context.Context, tenantID uuid.UUID, clientID *uuid.UUID) ([]model.Client, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Client
	for _, c := range r.s.clients {
		if c.TenantID != tenantID || c.Status != model.ClientStatusActive {
			continue
		}
		if clientID != nil && c.ID != *clientID {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// --- RuleOverrideRepository ---

type fakeOverrideRepo struct{ s *fakeStore }

func (r *fakeOverrideRepo) Upsert(_ context.Context, override *model.RuleOverride) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.overrides {
		o := &r.s.overrides[i]
		if o.TenantID == override.TenantID && o.ClientID == override.ClientID && o.RuleID == override.RuleID {
			override.ID = o.ID
			r.s.overrides[i] = *override
			return nil
		}
	}
	if override.ID == uuid.Nil {
		override.ID = uuid.New()
	}
	r.s.overrides = append(r.s.overrides, *override)
	return nil
}

func (r *fakeOverrideRepo) Find(_ context.Context, tenantID, clientID, ruleID uuid.UUID) (*model.RuleOverride, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.overrides {
		o := r.s.overrides[i]
		if o.TenantID == tenantID && o.ClientID == clientID && o.RuleID == ruleID {
			return &o, nil
		}
	}
	return nil, nil
}

func (r *fakeOverrideRepo) ListByClient(_ context.Context, tenantID, clientID uuid.UUID) ([]model.RuleOverride, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.RuleOverride
	for _, o := range r.s.overrides {
		if o.TenantID == tenantID && o.ClientID == clientID {
			out = append(out, o)
		}
	}
	return out, nil
}

// --- TaskGenerationRepository ---

type fakeGenerationRepo struct {
	s *fakeStore
	// findMiss makes Find report no row even when one exists, simulating a
	// concurrent writer landing between the lookup and the insert.
	findMiss bool
}

func (r *fakeGenerationRepo) Find(_ context.Context, tenantID, clientID, ruleID uuid.UUID, periodKey string) (*model.TaskGeneration, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.findMiss {
		return nil, nil
	}
	for i := range r.s.generations {
		g := r.s.generations[i]
		if g.TenantID == tenantID && g.ClientID == clientID && g.RuleID == ruleID && g.PeriodKey == periodKey {
			return &g, nil
		}
	}
	return nil, nil
}

/// Insert mimics the ON CONFLICT DO NOTHING unique index: a duplicate
// (tenant, client, rule, period) tuple reports created=false.
func (r *fakeGenerationRepo) Insert(_ context.Context, record *model.TaskGeneration) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, g := range r.s.generations {
		if g.TenantID == record.TenantID && g.ClientID == record.ClientID &&
			g.RuleID == record.RuleID && g.PeriodKey == record.PeriodKey {
			return false, nil
		}
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	r.s.generations = append(r.s.generations, *record)
	return true, nil
}

func (r *fakeGenerationRepo) Update(_ context.Context, record *model.TaskGeneration) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.generations {
		if r.s.generations[i].ID == record.ID {
			r.s.generations[i] = *record
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakeGenerationRepo) List(_ context.Context, tenantID uuid.UUID, filter repository.GenerationFilter, page, limit int) ([]model.TaskGeneration, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.TaskGeneration
	for _, g := range r.s.generations {
		if g.TenantID != tenantID {
			continue
		}
		if filter.ClientID != nil && g.ClientID != *filter.ClientID {
			continue
		}
		if filter.RuleID != nil && g.RuleID != *filter.RuleID {
			continue
		}
		if filter.Status != "" && g.Status != filter.Status {
			continue
		}
		if filter.DueBefore != nil && !g.ScheduledDueDate.Before(*filter.DueBefore) {
			continue
		}
		out = append(out, g)
	}
	return out, int64(len(out)), nil
}

// --- TaskRepository ---

type fakeTaskRepo struct {
	s *fakeStore
	// failNext makes the next Create fail, to exercise the record-without-task
	// retry path.
	failNext error
}

func (r *fakeTaskRepo) Create(_ context.Context, task *model.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.failNext != nil {
		err := r.failNext
		r.failNext = nil
		return err
	}
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	r.s.tasks = append(r.s.tasks, *task)
	return nil
}

func (r *fakeTaskRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*model.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.tasks {
		if r.s.tasks[i].TenantID == tenantID && r.s.tasks[i].ID == id {
			t := r.s.tasks[i]
			return &t, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// --- AuditLogRepository ---

type fakeAuditRepo struct{ s *fakeStore }

func (r *fakeAuditRepo) Create(_ context.Context, entry *model.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.audits = append(r.s.audits, *entry)
	return nil
}

func (r *fakeAuditRepo) List(_ context.Context, page, limit int) ([]model.AuditLog, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]model.AuditLog(nil), r.s.audits...), int64(len(r.s.audits)), nil
}

// --- TransactionManager ---

// fakeTxManager runs the function directly; atomicity is not simulated.
type fakeTxManager struct{}

func (fakeTxManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

// --- Broadcaster ---

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []any
}

func (b *fakeBroadcaster) BroadcastJSON(v any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, v)
}

func (b *fakeBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}
