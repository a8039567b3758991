package domain

import "errors"

// Таксономия ошибок подсистемы. Наружу уходят только типизированные отказы,
// хендлеры маппят их на HTTP-коды через errors.Is.
var (
	// ErrActionNotFound — id не резолвится ни в одно действие.
	ErrActionNotFound = errors.New("action not found")

	// ErrRuleNotFound — id не резолвится ни в одно правило.
	ErrRuleNotFound = errors.New("autonomy rule not found")

	// ErrAlreadyResolved — операция неприменима к текущему статусу
	// (например, approve по уже отклоненному действию). Мутации не происходит.
	ErrAlreadyResolved = errors.New("action already resolved")

	// ErrInvalidTransition — переход запрещен таблицей конечного автомата.
	ErrInvalidTransition = errors.New("invalid action status transition")

	// ErrValidation — некорректный ввод на этапе авторинга или вызова
	// (пустая причина отказа, битое условие правила и т.п.).
	ErrValidation = errors.New("validation error")
)
