package domain

import (
	"context"
	"time"
)

// VerdictEvent registra uma decisão de admissão.
//
// Cuidado com cardinalidade: UserID não entra nas chaves agregadas.
type VerdictEvent struct {
	VoucherID int64
	UserID    int64
	Verdict   Verdict

	At time.Time
}

// StatsStore persiste estatísticas de admissão.
// Quem chama trata erro como best-effort (nunca derruba a compra).
type StatsStore interface {
	Record(ctx context.Context, ev VerdictEvent) error
}
