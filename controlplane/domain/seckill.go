package domain

import (
	"context"
	"time"
)

// Verdict é o resultado ternário (mais janela de venda) da admissão atômica.
type Verdict int

const (
	Admitted Verdict = iota
	SoldOut
	Duplicate
	NotStarted
	Ended
)

func (v Verdict) String() string {
	switch v {
	case Admitted:
		return "admitted"
	case SoldOut:
		return "sold_out"
	case Duplicate:
		return "duplicate"
	case NotStarted:
		return "not_started"
	case Ended:
		return "ended"
	}
	return "unknown"
}

// Reason é a mensagem devolvida ao usuário final quando a compra é rejeitada.
func (v Verdict) Reason() string {
	switch v {
	case SoldOut:
		return "insufficient stock"
	case Duplicate:
		return "one order per user"
	case NotStarted:
		return "sale has not started"
	case Ended:
		return "sale has ended"
	}
	return ""
}

type VoucherStock struct {
	VoucherID   int64     `json:"voucherId"`
	Stock       int64     `json:"stock"`
	WindowStart time.Time `json:"beginTime"`
	WindowEnd   time.Time `json:"endTime"`
}

type OrderIntent struct {
	OrderID    int64
	UserID     int64
	VoucherID  int64
	EnqueuedAt time.Time
}

type Order struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	VoucherID int64     `json:"voucherId"`
	CreatedAt time.Time `json:"createdAt"`
}

type PurchaseResult struct {
	OrderID int64
	Verdict Verdict
}

// Admitter avalia, numa única ida atômica ao store, se a compra é permitida:
// duplicidade, janela, estoque, decremento, registro de dedup e enfileiramento.
type Admitter interface {
	Admit(ctx context.Context, intent OrderIntent) (Verdict, error)
	// Stock semeia o estoque e a janela da campanha.
	Stock(ctx context.Context, v VoucherStock) error
	// Restock é a única operação que pode aumentar o estoque.
	Restock(ctx context.Context, voucherID, stock int64) error
	Remaining(ctx context.Context, voucherID int64) (int64, error)
}

// OrderRepository é o sistema de registro dos pedidos finalizados.
// Insert devolve ErrPersistenceConflict se (userId, voucherId) já existe.
type OrderRepository interface {
	Exists(ctx context.Context, userID, voucherID int64) (bool, error)
	Insert(ctx context.Context, order Order) error
}

type VoucherRepository interface {
	CreateSeckill(ctx context.Context, v VoucherStock) error
	SetStock(ctx context.Context, voucherID, stock int64) error
}

// OrderPublisher anuncia pedidos persistidos. Falhas são best-effort.
type OrderPublisher interface {
	OrderCreated(ctx context.Context, order Order) error
}
