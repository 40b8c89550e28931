package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/zebramusic/cloackroom-app-sub001/internal/model"
)

// NewMemoryRepositories はプロセス内メモリに保持するリポジトリ一式を生成する。
// DATABASE_URL未設定時の開発用およびテスト用。
func NewMemoryRepositories() *Repositories {
	return &Repositories{
		Staff:          NewMemoryStaffRepo(),
		Admins:         NewMemoryAdminRepo(),
		Sessions:       NewMemorySessionRepo(),
		PasswordResets: NewMemoryPasswordResetRepo(),
		Events:         NewMemoryEventRepo(),
		Handovers:      NewMemoryHandoverRepo(),
	}
}

// --- staff ---

// MemoryStaffRepo はインメモリのスタッフリポジトリ。
type MemoryStaffRepo struct {
	mu    sync.RWMutex
	items map[string]*model.Staff
	seq   int
	order map[string]int
}

// NewMemoryStaffRepo はMemoryStaffRepoを生成する。
func NewMemoryStaffRepo() *MemoryStaffRepo {
	return &MemoryStaffRepo{items: make(map[string]*model.Staff), order: make(map[string]int)}
}

func copyStaff(s *model.Staff) *model.Staff {
	c := *s
	return &c
}

func (r *MemoryStaffRepo) emailTaken(email, exceptID string) bool {
	for id, s := range r.items {
		if id != exceptID && strings.EqualFold(s.Email, email) {
			return true
		}
	}
	return false
}

func (r *MemoryStaffRepo) FindByID(_ context.Context, id string) (*model.Staff, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.items[id]; ok {
		return copyStaff(s), nil
	}
	return nil, nil
}

func (r *MemoryStaffRepo) FindByEmail(_ context.Context, email string) (*model.Staff, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.items {
		if strings.EqualFold(s.Email, email) {
			return copyStaff(s), nil
		}
	}
	return nil, nil
}

func (r *MemoryStaffRepo) List(_ context.Context) ([]*model.Staff, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*model.Staff, 0, len(r.items))
	for _, s := range r.items {
		result = append(result, copyStaff(s))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt > result[j].CreatedAt
		}
		return r.order[result[i].ID] > r.order[result[j].ID]
	})
	return result, nil
}

func (r *MemoryStaffRepo) Create(_ context.Context, s *model.Staff) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.emailTaken(s.Email, "") {
		return model.ErrDuplicateEmail
	}
	r.seq++
	r.order[s.ID] = r.seq
	r.items[s.ID] = copyStaff(s)
	return nil
}

func (r *MemoryStaffRepo) Update(_ context.Context, s *model.Staff) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.items[s.ID]
	if !ok {
		return nil
	}
	if r.emailTaken(s.Email, s.ID) {
		return model.ErrDuplicateEmail
	}
	updated := copyStaff(s)
	updated.PasswordHash = cur.PasswordHash
	updated.CreatedAt = cur.CreatedAt
	r.items[s.ID] = updated
	return nil
}

func (r *MemoryStaffRepo) UpdatePasswordHash(_ context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.items[id]; ok {
		s.PasswordHash = hash
	}
	return nil
}

func (r *MemoryStaffRepo) Delete(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return false, nil
	}
	delete(r.items, id)
	delete(r.order, id)
	return true, nil
}

// --- admins ---

// MemoryAdminRepo はインメモリの管理者リポジトリ。
type MemoryAdminRepo struct {
	mu    sync.RWMutex
	items map[string]*model.Admin
	seq   int
	order map[string]int
}

// NewMemoryAdminRepo はMemoryAdminRepoを生成する。
func NewMemoryAdminRepo() *MemoryAdminRepo {
	return &MemoryAdminRepo{items: make(map[string]*model.Admin), order: make(map[string]int)}
}

func copyAdmin(a *model.Admin) *model.Admin {
	c := *a
	return &c
}

func (r *MemoryAdminRepo) emailTaken(email, exceptID string) bool {
	for id, a := range r.items {
		if id != exceptID && strings.EqualFold(a.Email, email) {
			return true
		}
	}
	return false
}

func (r *MemoryAdminRepo) FindByID(_ context.Context, id string) (*model.Admin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if a, ok := r.items[id]; ok {
		return copyAdmin(a), nil
	}
	return nil, nil
}

func (r *MemoryAdminRepo) FindByEmail(_ context.Context, email string) (*model.Admin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.items {
		if strings.EqualFold(a.Email, email) {
			return copyAdmin(a), nil
		}
	}
	return nil, nil
}

func (r *MemoryAdminRepo) List(_ context.Context) ([]*model.Admin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*model.Admin, 0, len(r.items))
	for _, a := range r.items {
		result = append(result, copyAdmin(a))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt > result[j].CreatedAt
		}
		return r.order[result[i].ID] > r.order[result[j].ID]
	})
	return result, nil
}

func (r *MemoryAdminRepo) Create(_ context.Context, a *model.Admin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.emailTaken(a.Email, "") {
		return model.ErrDuplicateEmail
	}
	r.seq++
	r.order[a.ID] = r.seq
	r.items[a.ID] = copyAdmin(a)
	return nil
}

func (r *MemoryAdminRepo) Update(_ context.Context, a *model.Admin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.items[a.ID]
	if !ok {
		return nil
	}
	if r.emailTaken(a.Email, a.ID) {
		return model.ErrDuplicateEmail
	}
	updated := copyAdmin(a)
	updated.PasswordHash = cur.PasswordHash
	updated.CreatedAt = cur.CreatedAt
	r.items[a.ID] = updated
	return nil
}

func (r *MemoryAdminRepo) UpdatePasswordHash(_ context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.items[id]; ok {
		a.PasswordHash = hash
	}
	return nil
}

func (r *MemoryAdminRepo) Delete(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return false, nil
	}
	delete(r.items, id)
	delete(r.order, id)
	return true, nil
}

// --- sessions ---

// MemorySessionRepo はインメモリのセッションリポジトリ。
type MemorySessionRepo struct {
	mu    sync.RWMutex
	items map[string]model.Session
}

// NewMemorySessionRepo はMemorySessionRepoを生成する。
func NewMemorySessionRepo() *MemorySessionRepo {
	return &MemorySessionRepo{items: make(map[string]model.Session)}
}

func (r *MemorySessionRepo) Upsert(_ context.Context, s *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[s.Token] = *s
	return nil
}

func (r *MemorySessionRepo) FindByToken(_ context.Context, token string) (*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.items[token]; ok {
		return &s, nil
	}
	return nil, nil
}

func (r *MemorySessionRepo) DeleteByToken(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, token)
	return nil
}

func (r *MemorySessionRepo) DeleteByOwner(_ context.Context, ownerID string, role model.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for token, s := range r.items {
		if s.StaffID == ownerID && s.UserType == role {
			delete(r.items, token)
		}
	}
	return nil
}

func (r *MemorySessionRepo) DeleteExpired(_ context.Context, nowMs int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for token, s := range r.items {
		if s.ExpiresAt <= nowMs {
			delete(r.items, token)
			n++
		}
	}
	return n, nil
}

// --- password reset tokens ---

// MemoryPasswordResetRepo はインメモリのパスワード再設定トークンリポジトリ。
type MemoryPasswordResetRepo struct {
	mu    sync.Mutex
	items map[string]model.PasswordResetToken
}

// NewMemoryPasswordResetRepo はMemoryPasswordResetRepoを生成する。
func NewMemoryPasswordResetRepo() *MemoryPasswordResetRepo {
	return &MemoryPasswordResetRepo{items: make(map[string]model.PasswordResetToken)}
}

func (r *MemoryPasswordResetRepo) Create(_ context.Context, t *model.PasswordResetToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[t.Token] = *t
	return nil
}

func (r *MemoryPasswordResetRepo) FindByToken(_ context.Context, token string) (*model.PasswordResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.items[token]; ok {
		return &t, nil
	}
	return nil, nil
}

// ConsumeIfValid は単一のロック区間で検証と使用済み化を行う。
func (r *MemoryPasswordResetRepo) ConsumeIfValid(_ context.Context, token string, nowMs int64) (*model.PasswordResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[token]
	if !ok || !t.IsRedeemableAt(nowMs) {
		return nil, nil
	}
	t.Used = true
	r.items[token] = t
	return &t, nil
}

func (r *MemoryPasswordResetRepo) DeleteStale(_ context.Context, nowMs int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for token, t := range r.items {
		if t.Used || t.ExpiresAt <= nowMs {
			delete(r.items, token)
			n++
		}
	}
	return n, nil
}

// --- events ---

// MemoryEventRepo はインメモリのイベントリポジトリ。
type MemoryEventRepo struct {
	mu    sync.RWMutex
	items map[string]*model.Event
}

// NewMemoryEventRepo はMemoryEventRepoを生成する。
func NewMemoryEventRepo() *MemoryEventRepo {
	return &MemoryEventRepo{items: make(map[string]*model.Event)}
}

func copyEvent(e *model.Event) *model.Event {
	c := *e
	if e.UpdatedAt != nil {
		u := *e.UpdatedAt
		c.UpdatedAt = &u
	}
	return &c
}

func sortEventsDesc(events []*model.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].StartsAt != events[j].StartsAt {
			return events[i].StartsAt > events[j].StartsAt
		}
		return events[i].ID > events[j].ID
	})
}

func (r *MemoryEventRepo) FindByID(_ context.Context, id string) (*model.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.items[id]; ok {
		return copyEvent(e), nil
	}
	return nil, nil
}

func (r *MemoryEventRepo) List(_ context.Context) ([]*model.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*model.Event, 0, len(r.items))
	for _, e := range r.items {
		result = append(result, copyEvent(e))
	}
	sortEventsDesc(result)
	return result, nil
}

func (r *MemoryEventRepo) ListActiveAt(_ context.Context, nowMs int64) ([]*model.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*model.Event
	for _, e := range r.items {
		if e.StartsAt <= nowMs && nowMs <= e.EndsAt {
			result = append(result, copyEvent(e))
		}
	}
	sortEventsDesc(result)
	return result, nil
}

func (r *MemoryEventRepo) Create(_ context.Context, e *model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[e.ID] = copyEvent(e)
	return nil
}

func (r *MemoryEventRepo) Update(_ context.Context, e *model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[e.ID]; ok {
		r.items[e.ID] = copyEvent(e)
	}
	return nil
}

func (r *MemoryEventRepo) Delete(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return false, nil
	}
	delete(r.items, id)
	return true, nil
}

// --- handovers ---

// MemoryHandoverRepo はインメモリの受付記録リポジトリ。
type MemoryHandoverRepo struct {
	mu    sync.RWMutex
	items []*model.Handover
}

// NewMemoryHandoverRepo はMemoryHandoverRepoを生成する。
func NewMemoryHandoverRepo() *MemoryHandoverRepo {
	return &MemoryHandoverRepo{}
}

func copyHandover(h *model.Handover) *model.Handover {
	c := *h
	c.PhotoURLs = append([]string(nil), h.PhotoURLs...)
	if h.PrintedAt != nil {
		p := *h.PrintedAt
		c.PrintedAt = &p
	}
	return &c
}

func (r *MemoryHandoverRepo) FindByID(_ context.Context, id string) (*model.Handover, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, h := range r.items {
		if h.ID == id {
			return copyHandover(h), nil
		}
	}
	return nil, nil
}

// List は挿入順の逆順を作成日時の同値時の順序として使う。
func (r *MemoryHandoverRepo) List(_ context.Context, filter model.HandoverFilter) ([]*model.Handover, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*model.Handover
	for i := len(r.items) - 1; i >= 0; i-- {
		h := r.items[i]
		if filter.EventID != "" && h.EventID != filter.EventID {
			continue
		}
		if filter.StaffID != "" && h.StaffID != filter.StaffID {
			continue
		}
		result = append(result, copyHandover(h))
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt > result[j].CreatedAt
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (r *MemoryHandoverRepo) Create(_ context.Context, h *model.Handover) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, copyHandover(h))
	return nil
}

func (r *MemoryHandoverRepo) MarkPrinted(_ context.Context, id string, atMs int64) (*model.Handover, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range r.items {
		if h.ID == id {
			at := atMs
			h.PrintedAt = &at
			h.PrintCount++
			return copyHandover(h), nil
		}
	}
	return nil, nil
}

// compile-time interface checks
var (
	_ StaffRepository         = (*MemoryStaffRepo)(nil)
	_ AdminRepository         = (*MemoryAdminRepo)(nil)
	_ SessionRepository       = (*MemorySessionRepo)(nil)
	_ PasswordResetRepository = (*MemoryPasswordResetRepo)(nil)
	_ EventRepository         = (*MemoryEventRepo)(nil)
	_ HandoverRepository      = (*MemoryHandoverRepo)(nil)
)
