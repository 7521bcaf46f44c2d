package domain

import "context"

// IDGenerator emite ids de 64 bits monotônicos por namespace.
//
// Layout: segundos desde uma época fixa nos bits altos, contador diário por
// namespace nos 32 bits baixos. Esgotar o contador dentro de um segundo não é
// tratado.
type IDGenerator interface {
	NextID(ctx context.Context, namespace string) (int64, error)
}
