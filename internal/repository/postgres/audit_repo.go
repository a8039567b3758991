package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/freightops-pro/fopsbackend-sub006/internal/audit"
)

// WriteBatch сохраняет пачку событий журнала решений одним INSERT.
// Вызывается воркером audit.Trail по таймеру или при заполнении пачки.
func (r *Repo) WriteBatch(ctx context.Context, events []audit.Event) error {
	if len(events) == 0 {
		return nil
	}

	// Количество колонок в таблице audit_logs
	numFields := 9
	placeholderStr := ""
	vals := make([]any, 0, len(events)*numFields)

	// Динамически строим запрос для пакетной вставки
	for i, e := range events {
		p := i * numFields
		placeholderStr += fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d),",
			p+1, p+2, p+3, p+4, p+5, p+6, p+7, p+8, p+9)

		vals = append(vals,
			e.ID, e.ActionID, e.AgentName, e.ActionType,
			e.RiskLevel, e.Kind, e.Actor, e.Note, e.Timestamp,
		)
	}

	query := fmt.Sprintf(
		"INSERT INTO audit_logs (id, action_id, agent_name, action_type, risk_level, kind, actor, note, timestamp) VALUES %s",
		strings.TrimSuffix(placeholderStr, ","),
	)

	_, err := r.pool.Exec(ctx, query, vals...)
	return err
}
