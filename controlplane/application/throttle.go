package application

import (
	"time"

	"localdeals/controlplane/domain"
)

// ThrottleService decide se um comprador pode tentar a compra agora.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type ThrottleService struct {
	Store      domain.LimiterStore
	RetryAfter time.Duration
}

func (s ThrottleService) Decide(key domain.Key) domain.Decision {
	if s.Store == nil {
		return domain.Decision{Allowed: true}
	}
	if s.RetryAfter <= 0 {
		s.RetryAfter = 1 * time.Second
	}

	lim := s.Store.Get(key)
	if lim == nil || lim.Allow() {
		return domain.Decision{Allowed: true}
	}
	return domain.Decision{Allowed: false, RetryAfter: s.RetryAfter}
}
