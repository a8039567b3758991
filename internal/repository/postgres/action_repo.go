package postgres

/*
Файл action_repo.go содержит персистентность действий и атомарные переходы
их конечного автомата. Ключевой прием — условный UPDATE под row-level lock
(SELECT ... FOR UPDATE + проверка статуса), предотвращающий Double Decision,
когда два ревьюера одновременно резолвят одно действие.
*/

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/freightops-pro/fopsbackend-sub006/internal/domain"
	"github.com/jackc/pgx/v5"
)

const actionColumns = `id, action_type, risk_level, status, agent_name,
	title, description, draft_content, reasoning,
	entity_type, entity_id, entity_name, risk_factors, entity_data,
	assignee, reviewed_by, created_at, expires_at, executed_at, reviewed_at,
	human_edits, was_edited, edit_similarity_score, rejection_reason`

// CreateAction сохраняет новое действие. Статус и executed_at уже решены
// Queue Manager'ом: AUTO_EXECUTED получает executed_at в момент создания.
func (r *Repo) CreateAction(ctx context.Context, a *domain.Action) error {
	factors, err := json.Marshal(a.RiskFactors)
	if err != nil {
		return fmt.Errorf("postgres: marshal risk_factors: %w", err)
	}
	snapshot, err := json.Marshal(a.EntityData)
	if err != nil {
		return fmt.Errorf("postgres: marshal entity_data: %w", err)
	}

	query := `INSERT INTO actions (` + actionColumns + `)
	          VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)`

	_, err = r.pool.Exec(ctx, query,
		a.ID, a.ActionType, a.RiskLevel, a.Status, a.AgentName,
		a.Title, a.Description, a.DraftContent, a.Reasoning,
		a.Entity.Type, a.Entity.ID, a.Entity.Name, factors, snapshot,
		a.Assignee, a.ReviewedBy, a.CreatedAt, a.ExpiresAt, a.ExecutedAt, a.ReviewedAt,
		a.HumanEdits, a.WasEdited, a.EditSimilarityScore, a.RejectionReason,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to create action: %w", err)
	}
	return nil
}

// GetAction возвращает действие по ID или типизированный NotFound.
func (r *Repo) GetAction(ctx context.Context, id string) (*domain.Action, error) {
	return getAction(ctx, r.pool, id)
}

func getAction(ctx context.Context, q querier, id string) (*domain.Action, error) {
	row := q.QueryRow(ctx, `SELECT `+actionColumns+` FROM actions WHERE id = $1`, id)

	a, err := scanAction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrActionNotFound
		}
		return nil, fmt.Errorf("postgres: failed to get action: %w", err)
	}
	return a, nil
}

func scanAction(row pgx.Row) (*domain.Action, error) {
	var a domain.Action
	var factors, snapshot []byte

	err := row.Scan(
		&a.ID, &a.ActionType, &a.RiskLevel, &a.Status, &a.AgentName,
		&a.Title, &a.Description, &a.DraftContent, &a.Reasoning,
		&a.Entity.Type, &a.Entity.ID, &a.Entity.Name, &factors, &snapshot,
		&a.Assignee, &a.ReviewedBy, &a.CreatedAt, &a.ExpiresAt, &a.ExecutedAt, &a.ReviewedAt,
		&a.HumanEdits, &a.WasEdited, &a.EditSimilarityScore, &a.RejectionReason,
	)
	if err != nil {
		return nil, err
	}

	if len(factors) > 0 {
		if err := json.Unmarshal(factors, &a.RiskFactors); err != nil {
			return nil, fmt.Errorf("corrupted risk_factors: %w", err)
		}
	}
	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &a.EntityData); err != nil {
			return nil, fmt.Errorf("corrupted entity_data: %w", err)
		}
	}
	return &a, nil
}

// FindPending — выборка очереди ревью: худший риск первым, внутри уровня —
// старые раньше новых. Дисциплина priority-aging: срочное всплывает наверх,
// но старые низкорисковые заявки не голодают бесконечно.
func (r *Repo) FindPending(ctx context.Context, f domain.PendingFilter) ([]*domain.Action, error) {
	query := `SELECT ` + actionColumns + ` FROM actions WHERE status = 'PENDING'`

	args := make([]any, 0, 3)
	if f.Assignee != "" {
		args = append(args, f.Assignee)
		query += fmt.Sprintf(" AND assignee = $%d", len(args))
	}
	if f.ActionType != "" {
		args = append(args, f.ActionType)
		query += fmt.Sprintf(" AND action_type = $%d", len(args))
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(`
		ORDER BY CASE risk_level
			WHEN 'CRITICAL' THEN 4
			WHEN 'HIGH' THEN 3
			WHEN 'MEDIUM' THEN 2
			ELSE 1
		END DESC, created_at ASC
		LIMIT $%d`, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query pending actions: %w", err)
	}
	defer rows.Close()

	// Инициализируем пустой слайс, чтобы в JSON был [] вместо null
	results := make([]*domain.Action, 0)
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan action: %w", err)
		}
		results = append(results, a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}
	return results, nil
}

// ApplyDecision атомарно применяет решение ревьюера: переход статуса и
// инкременты счетчиков всех сработавших правил коммитятся одной транзакцией.
// Возвращает финальное состояние действия и список промоушенов Level 3.
func (r *Repo) ApplyDecision(ctx context.Context, d domain.Decision) (*domain.Action, []domain.RulePromotion, error) {
	var updated *domain.Action
	var promoted []domain.RulePromotion

	err := r.withinTx(ctx, func(tx pgx.Tx) error {
		// 1. Блокируем строку и проверяем легальность перехода.
		// FOR UPDATE держит конкурентного ревьюера до нашего коммита,
		// после чего его попытка упадет на проверке статуса.
		var current domain.ActionStatus
		var factorsRaw []byte
		err := tx.QueryRow(ctx,
			`SELECT status, risk_factors FROM actions WHERE id = $1 FOR UPDATE`,
			d.ActionID).Scan(&current, &factorsRaw)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrActionNotFound
		}
		if err != nil {
			return fmt.Errorf("postgres: failed to lock action: %w", err)
		}
		if err := current.CanTransitionTo(d.Status); err != nil {
			return err
		}

		// 2. Сам переход. executed_at выставляется только для апрувов:
		// отклоненное действие ничего не исполняло.
		var executedAt *time.Time
		if d.Status != domain.StatusRejected {
			t := d.DecidedAt
			executedAt = &t
		}

		_, err = tx.Exec(ctx, `
			UPDATE actions
			SET status = $2,
			    reviewed_by = $3,
			    reviewed_at = $4,
			    executed_at = COALESCE($5, executed_at),
			    human_edits = $6,
			    was_edited = $7,
			    edit_similarity_score = $8,
			    rejection_reason = $9
			WHERE id = $1`,
			d.ActionID, d.Status, d.ReviewerID, d.DecidedAt, executedAt,
			d.HumanEdits, d.HumanEdits != nil, d.EditSimilarityScore, d.RejectionReason,
		)
		if err != nil {
			return fmt.Errorf("postgres: failed to apply decision: %w", err)
		}

		// 3. Счетчики обратной связи. Инкременты по месту (x = x + 1) —
		// атомарны на уровне строки, lost update при конкурентных ревью исключен.
		var matches []domain.RuleMatch
		if len(factorsRaw) > 0 {
			if err := json.Unmarshal(factorsRaw, &matches); err != nil {
				return fmt.Errorf("postgres: corrupted risk_factors: %w", err)
			}
		}

		bucket := counterColumn(d.Status)
		ruleIDs := make([]string, 0, len(matches))
		for _, m := range matches {
			ruleIDs = append(ruleIDs, m.RuleID)
			_, err := tx.Exec(ctx,
				`UPDATE autonomy_rules
				 SET total_actions = total_actions + 1,
				     `+bucket+` = `+bucket+` + 1,
				     updated_at = NOW()
				 WHERE id = $1`, m.RuleID)
			if err != nil {
				return fmt.Errorf("postgres: failed to bump rule counters: %w", err)
			}
		}

		// 4. Авто-промоушен Level 3. Однонаправленный: флаг ставится здесь
		// и никогда не снимается автоматикой (только руками через админку).
		if len(ruleIDs) > 0 {
			rows, err := tx.Query(ctx, `
				UPDATE autonomy_rules
				SET is_level_3_enabled = TRUE, updated_at = NOW()
				WHERE id = ANY($1)
				  AND active
				  AND NOT is_level_3_enabled
				  AND total_actions >= 100
				  AND approved_without_edits * 100 >= total_actions * auto_promote_threshold
				RETURNING id, name, total_actions, approved_without_edits`, ruleIDs)
			if err != nil {
				return fmt.Errorf("postgres: promotion check failed: %w", err)
			}
			for rows.Next() {
				var p domain.RulePromotion
				if err := rows.Scan(&p.RuleID, &p.Name, &p.TotalActions, &p.ApprovedWithoutEdits); err != nil {
					rows.Close()
					return fmt.Errorf("postgres: failed to scan promotion: %w", err)
				}
				p.ApprovalRate = float64(p.ApprovedWithoutEdits) / float64(p.TotalActions) * 100
				promoted = append(promoted, p)
			}
			rows.Close()
			if err := rows.Err(); err != nil {
				return fmt.Errorf("postgres: promotion rows error: %w", err)
			}
		}

		// 5. Отдаем наружу финальное состояние из той же транзакции
		updated, err = getAction(ctx, tx, d.ActionID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return updated, promoted, nil
}

// counterColumn маппит финальный статус на колонку счетчика.
// Закрытый switch — имя колонки никогда не приходит извне.
func counterColumn(status domain.ActionStatus) string {
	switch status {
	case domain.StatusApprovedWithEdits:
		return "approved_with_edits"
	case domain.StatusRejected:
		return "rejected"
	default:
		return "approved_without_edits"
	}
}

// ExpireDue переводит просроченные PENDING-действия в EXPIRED.
// WHERE-гард делает гонку с параллельным решением тихим no-op:
// уже терминальная строка просто не попадает под UPDATE.
func (r *Repo) ExpireDue(ctx context.Context, now time.Time) ([]domain.Action, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE actions
		SET status = 'EXPIRED'
		WHERE status = 'PENDING' AND expires_at IS NOT NULL AND expires_at <= $1
		RETURNING id, agent_name, action_type, risk_level`, now)
	if err != nil {
		return nil, fmt.Errorf("postgres: expiry sweep failed: %w", err)
	}
	defer rows.Close()

	expired := make([]domain.Action, 0)
	for rows.Next() {
		var a domain.Action
		if err := rows.Scan(&a.ID, &a.AgentName, &a.ActionType, &a.RiskLevel); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan expired action: %w", err)
		}
		a.Status = domain.StatusExpired
		expired = append(expired, a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}
	return expired, nil
}
