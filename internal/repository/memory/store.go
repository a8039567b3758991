package memory

/*
Пакет memory — встраиваемая реализация хранилищ для тестов и локальной
разработки. Повторяет семантику postgres-слоя: атомарность решения
и счетчиков обеспечивается общим мьютексом вместо транзакции.
*/

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/freightops-pro/fopsbackend-sub006/internal/domain"
)

type Store struct {
	mu      sync.Mutex
	actions map[string]*domain.Action
	rules   map[string]*domain.AutonomyRule
	// seq фиксирует порядок вставки: тай-брейк при равных created_at
	seq   map[string]int
	count int
}

func NewStore() *Store {
	return &Store{
		actions: make(map[string]*domain.Action),
		rules:   make(map[string]*domain.AutonomyRule),
		seq:     make(map[string]int),
	}
}

func cloneAction(a *domain.Action) *domain.Action {
	cp := *a
	cp.RiskFactors = append([]domain.RuleMatch(nil), a.RiskFactors...)
	if a.EntityData != nil {
		cp.EntityData = make(map[string]any, len(a.EntityData))
		for k, v := range a.EntityData {
			cp.EntityData[k] = v
		}
	}
	return &cp
}

/* ---------------- Действия -------------------------------------------- */

func (s *Store) CreateAction(_ context.Context, a *domain.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
	s.seq[a.ID] = s.count
	s.actions[a.ID] = cloneAction(a)
	return nil
}

func (s *Store) GetAction(_ context.Context, id string) (*domain.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actions[id]
	if !ok {
		return nil, domain.ErrActionNotFound
	}
	return cloneAction(a), nil
}

func (s *Store) FindPending(_ context.Context, f domain.PendingFilter) ([]*domain.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]*domain.Action, 0)
	for _, a := range s.actions {
		if a.Status != domain.StatusPending {
			continue
		}
		if f.Assignee != "" && a.Assignee != f.Assignee {
			continue
		}
		if f.ActionType != "" && a.ActionType != f.ActionType {
			continue
		}
		matched = append(matched, a)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		si, sj := matched[i].RiskLevel.Severity(), matched[j].RiskLevel.Severity()
		if si != sj {
			return si > sj
		}
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return s.seq[matched[i].ID] < s.seq[matched[j].ID]
	})

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}

	out := make([]*domain.Action, 0, len(matched))
	for _, a := range matched {
		out = append(out, cloneAction(a))
	}
	return out, nil
}

// ApplyDecision повторяет транзакцию postgres-слоя: проверка перехода,
// мутация действия и счетчики правил — под одним захватом мьютекса.
func (s *Store) ApplyDecision(_ context.Context, d domain.Decision) (*domain.Action, []domain.RulePromotion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.actions[d.ActionID]
	if !ok {
		return nil, nil, domain.ErrActionNotFound
	}
	if err := a.Status.CanTransitionTo(d.Status); err != nil {
		return nil, nil, err
	}

	a.Status = d.Status
	a.ReviewedBy = &d.ReviewerID
	t := d.DecidedAt
	a.ReviewedAt = &t
	if d.Status != domain.StatusRejected {
		exec := d.DecidedAt
		a.ExecutedAt = &exec
	}
	a.HumanEdits = d.HumanEdits
	a.WasEdited = d.HumanEdits != nil
	a.EditSimilarityScore = d.EditSimilarityScore
	a.RejectionReason = d.RejectionReason

	var promoted []domain.RulePromotion
	for _, m := range a.RiskFactors {
		r, ok := s.rules[m.RuleID]
		if !ok {
			continue
		}
		r.Stats.TotalActions++
		switch d.Status {
		case domain.StatusApprovedWithEdits:
			r.Stats.ApprovedWithEdits++
		case domain.StatusRejected:
			r.Stats.Rejected++
		default:
			r.Stats.ApprovedWithoutEdits++
		}
		r.UpdatedAt = d.DecidedAt

		if r.PromotionEligible() {
			r.IsLevel3Enabled = true
			promoted = append(promoted, domain.RulePromotion{
				RuleID:               r.ID,
				Name:                 r.Name,
				TotalActions:         r.Stats.TotalActions,
				ApprovedWithoutEdits: r.Stats.ApprovedWithoutEdits,
				ApprovalRate:         float64(r.Stats.ApprovedWithoutEdits) / float64(r.Stats.TotalActions) * 100,
			})
		}
	}

	return cloneAction(a), promoted, nil
}

func (s *Store) ExpireDue(_ context.Context, now time.Time) ([]domain.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expired := make([]domain.Action, 0)
	for _, a := range s.actions {
		if a.Status != domain.StatusPending || a.ExpiresAt == nil || a.ExpiresAt.After(now) {
			continue
		}
		a.Status = domain.StatusExpired
		expired = append(expired, domain.Action{
			ID: a.ID, AgentName: a.AgentName, ActionType: a.ActionType,
			RiskLevel: a.RiskLevel, Status: domain.StatusExpired,
		})
	}
	return expired, nil
}

/* ---------------- Правила --------------------------------------------- */

func (s *Store) GetRuleByID(_ context.Context, id string) (*domain.AutonomyRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[id]
	if !ok {
		return nil, domain.ErrRuleNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *Store) ListActiveRules(_ context.Context) ([]domain.AutonomyRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AutonomyRule, 0)
	for _, r := range s.rules {
		if r.Active {
			out = append(out, *r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out, nil
}

func (s *Store) ListRules(_ context.Context) ([]domain.AutonomyRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AutonomyRule, 0)
	for _, r := range s.rules {
		out = append(out, *r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out, nil
}

func (s *Store) CreateRule(_ context.Context, r *domain.AutonomyRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.rules[r.ID] = &cp
	return nil
}

func (s *Store) UpdateRule(_ context.Context, r *domain.AutonomyRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.rules[r.ID]
	if !ok {
		return domain.ErrRuleNotFound
	}
	cp := *r
	cp.Stats = existing.Stats // счетчики пишет только транзакция решения
	s.rules[r.ID] = &cp
	return nil
}

func (s *Store) DeactivateRule(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[id]
	if !ok {
		return domain.ErrRuleNotFound
	}
	r.Active = false
	return nil
}

func (s *Store) SeedDefaultRules(_ context.Context, rules []domain.AutonomyRule) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var inserted int64
	for _, r := range rules {
		if s.ruleExistsLocked(r.Name, r.AgentName) {
			continue
		}
		cp := r
		s.rules[r.ID] = &cp
		inserted++
	}
	return inserted, nil
}

func (s *Store) ruleExistsLocked(name, agentName string) bool {
	for _, r := range s.rules {
		if r.Name == name && r.AgentName == agentName {
			return true
		}
	}
	return false
}

// ActiveRules реализует risk.RuleSource напрямую, без RAM-кэша:
// в тестах лишний слой синхронизации не нужен.
func (s *Store) ActiveRules(_ context.Context, actionType domain.ActionType, agentName string) ([]domain.AutonomyRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AutonomyRule, 0)
	for _, r := range s.rules {
		if !r.Active || r.ActionType != actionType {
			continue
		}
		if r.AgentName != agentName && r.AgentName != "*" {
			continue
		}
		out = append(out, *r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out, nil
}

/* ---------------- Статистика ------------------------------------------ */

func (s *Store) PendingCountsByRisk(_ context.Context) (map[domain.RiskLevel]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[domain.RiskLevel]int64)
	for _, a := range s.actions {
		if a.Status == domain.StatusPending {
			counts[a.RiskLevel]++
		}
	}
	return counts, nil
}

func (s *Store) PendingCountsByType(_ context.Context) (map[domain.ActionType]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[domain.ActionType]int64)
	for _, a := range s.actions {
		if a.Status == domain.StatusPending {
			counts[a.ActionType]++
		}
	}
	return counts, nil
}

func (s *Store) TodayCountsByStatus(_ context.Context) (map[domain.ActionStatus]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	midnight := time.Now().Truncate(24 * time.Hour)
	counts := make(map[domain.ActionStatus]int64)
	for _, a := range s.actions {
		if !a.CreatedAt.Before(midnight) {
			counts[a.Status]++
		}
	}
	return counts, nil
}
