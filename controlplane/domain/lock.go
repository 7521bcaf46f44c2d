package domain

import (
	"context"
	"time"
)

// LockToken identifica uma posse de lock. Owner é único por tentativa.
type LockToken struct {
	Resource  string
	Owner     string
	ExpiresAt time.Time
}

// Locker é exclusão mútua sobre um recurso nomeado.
//
// TryAcquire nunca bloqueia nem tenta de novo: devolve granted=false quando outro
// dono detém o recurso. Release só apaga a chave se o dono ainda for o do token;
// liberar um token vencido (já readquirido por outro) é no-op.
//
// Um erro em Release significa "estado do lock desconhecido": o lease resolve.
type Locker interface {
	TryAcquire(ctx context.Context, resource string, lease time.Duration) (LockToken, bool, error)
	Release(ctx context.Context, token LockToken) error
}
