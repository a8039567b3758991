package dispatch

import (
	"fmt"
	"time"
)

// ThrottleError сигнализирует, что исполнитель просит снизить темп.
// RetryAfter берется из одноименного заголовка и учитывается ретраями.
type ThrottleError struct {
	RetryAfter time.Duration
	Cause      error
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("throttled: retry after %v (cause: %v)", e.RetryAfter, e.Cause)
}
