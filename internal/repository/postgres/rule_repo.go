package postgres

/*
Файл rule_repo.go отвечает за хранение правил автономии. Долговременное
хранение живет в PostgreSQL; мгновенная оценка риска работает с RAM-кэшем,
который перечитывает этот слой при старте и по сигналу инвалидации.
*/

import (
	"context"
	"errors"
	"fmt"

	"github.com/freightops-pro/fopsbackend-sub006/internal/domain"
	"github.com/jackc/pgx/v5"
)

const ruleColumns = `id, action_type, agent_name, name,
	condition_field, condition_operator, condition_value,
	resulting_risk, priority, active, is_level_3_enabled,
	total_actions, approved_without_edits, approved_with_edits, rejected,
	auto_promote_threshold, created_at, updated_at`

func scanRule(row pgx.Row) (*domain.AutonomyRule, error) {
	var r domain.AutonomyRule
	err := row.Scan(
		&r.ID, &r.ActionType, &r.AgentName, &r.Name,
		&r.Condition.Field, &r.Condition.Operator, &r.Condition.Value,
		&r.ResultingRisk, &r.Priority, &r.Active, &r.IsLevel3Enabled,
		&r.Stats.TotalActions, &r.Stats.ApprovedWithoutEdits, &r.Stats.ApprovedWithEdits, &r.Stats.Rejected,
		&r.AutoPromoteThreshold, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *Repo) GetRuleByID(ctx context.Context, id string) (*domain.AutonomyRule, error) {
	rule, err := scanRule(r.pool.QueryRow(ctx,
		`SELECT `+ruleColumns+` FROM autonomy_rules WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRuleNotFound
		}
		return nil, fmt.Errorf("postgres: failed to get rule: %w", err)
	}
	return rule, nil
}

// ListActiveRules — холодная загрузка всего набора активных правил для кэша.
func (r *Repo) ListActiveRules(ctx context.Context) ([]domain.AutonomyRule, error) {
	return r.listRules(ctx, `SELECT `+ruleColumns+` FROM autonomy_rules WHERE active ORDER BY priority DESC`)
}

// ListRules — полный список для админки, включая деактивированные.
func (r *Repo) ListRules(ctx context.Context) ([]domain.AutonomyRule, error) {
	return r.listRules(ctx, `SELECT `+ruleColumns+` FROM autonomy_rules ORDER BY action_type, priority DESC`)
}

func (r *Repo) listRules(ctx context.Context, query string) ([]domain.AutonomyRule, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query rules: %w", err)
	}
	defer rows.Close()

	results := make([]domain.AutonomyRule, 0)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan rule: %w", err)
		}
		results = append(results, *rule)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}
	return results, nil
}

// CreateRule создает новую запись. agent_name = '*' задает правило для всех агентов.
func (r *Repo) CreateRule(ctx context.Context, rule *domain.AutonomyRule) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO autonomy_rules (id, action_type, agent_name, name,
			condition_field, condition_operator, condition_value,
			resulting_risk, priority, active, is_level_3_enabled, auto_promote_threshold)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		rule.ID, rule.ActionType, rule.AgentName, rule.Name,
		rule.Condition.Field, rule.Condition.Operator, rule.Condition.Value,
		rule.ResultingRisk, rule.Priority, rule.Active, rule.IsLevel3Enabled, rule.AutoPromoteThreshold,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to create rule: %w", err)
	}
	return nil
}

// UpdateRule обновляет авторинговые поля правила. Счетчики обратной связи
// этим путем не трогаются — их пишет только транзакция решения.
func (r *Repo) UpdateRule(ctx context.Context, rule *domain.AutonomyRule) error {
	ct, err := r.pool.Exec(ctx, `
		UPDATE autonomy_rules
		SET name = $2,
		    condition_field = $3,
		    condition_operator = $4,
		    condition_value = $5,
		    resulting_risk = $6,
		    priority = $7,
		    active = $8,
		    is_level_3_enabled = $9,
		    auto_promote_threshold = $10,
		    updated_at = NOW()
		WHERE id = $1`,
		rule.ID, rule.Name,
		rule.Condition.Field, rule.Condition.Operator, rule.Condition.Value,
		rule.ResultingRisk, rule.Priority, rule.Active, rule.IsLevel3Enabled, rule.AutoPromoteThreshold,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to update rule: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrRuleNotFound
	}
	return nil
}

// DeactivateRule — мягкое отключение. Правила никогда не удаляются физически:
// на их ID ссылаются risk_factors уже разрешенных действий.
func (r *Repo) DeactivateRule(ctx context.Context, id string) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE autonomy_rules SET active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: failed to deactivate rule: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrRuleNotFound
	}
	return nil
}

// SeedDefaultRules — идемпотентное сидирование: вставляются только правила,
// чья пара (name, agent_name) еще не встречалась. Возвращает число вставленных.
func (r *Repo) SeedDefaultRules(ctx context.Context, rules []domain.AutonomyRule) (int64, error) {
	var inserted int64
	for _, rule := range rules {
		ct, err := r.pool.Exec(ctx, `
			INSERT INTO autonomy_rules (id, action_type, agent_name, name,
				condition_field, condition_operator, condition_value,
				resulting_risk, priority, active, is_level_3_enabled, auto_promote_threshold)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
			ON CONFLICT (name, agent_name) DO NOTHING`,
			rule.ID, rule.ActionType, rule.AgentName, rule.Name,
			rule.Condition.Field, rule.Condition.Operator, rule.Condition.Value,
			rule.ResultingRisk, rule.Priority, rule.Active, rule.IsLevel3Enabled, rule.AutoPromoteThreshold,
		)
		if err != nil {
			return inserted, fmt.Errorf("postgres: failed to seed rule %q: %w", rule.Name, err)
		}
		inserted += ct.RowsAffected()
	}
	return inserted, nil
}
