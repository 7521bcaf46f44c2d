package domain

// Contratos do throttling por comprador na rota de seckill.

import "time"

type Key string

// Limiter decide se uma ação é permitida agora.
// A infra usa token-bucket (golang.org/x/time/rate).
type Limiter interface {
	Allow() bool
}

// LimiterStore obtém um limiter por chave (usuário ou IP).
type LimiterStore interface {
	Get(Key) Limiter
}

type Decision struct {
	Allowed bool
	// RetryAfter vai em Retry-After quando bloquear. 0 = sem recomendação.
	RetryAfter time.Duration
}
