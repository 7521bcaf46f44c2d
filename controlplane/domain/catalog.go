package domain

import (
	"context"
	"time"
)

// Strategy escolhe o caminho de leitura do cache.
type Strategy string

const (
	// PassThrough grava NullMarker para ausentes (anti-penetração).
	PassThrough Strategy = "passthrough"
	// Mutex reconstrói sob lock por chave (anti-breakdown, frescor forte).
	Mutex Strategy = "mutex"
	// LogicalExpire devolve dado vencido e reconstrói em background.
	LogicalExpire Strategy = "logical"
)

func ParseStrategy(s string) (Strategy, bool) {
	switch Strategy(s) {
	case PassThrough, Mutex, LogicalExpire:
		return Strategy(s), true
	case "":
		return PassThrough, true
	}
	return "", false
}

type Shop struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	TypeID    int64     `json:"typeId"`
	Area      string    `json:"area"`
	Address   string    `json:"address"`
	AvgPrice  int64     `json:"avgPrice"`
	Score     int       `json:"score"`
	OpenHours string    `json:"openHours"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ShopRepository é o colaborador relacional do catálogo.
// LoadByID devolve ErrNotFound quando a loja não existe.
type ShopRepository interface {
	LoadByID(ctx context.Context, id int64) (Shop, error)
	Update(ctx context.Context, shop Shop) error
}

// ShopCache é a visão do cache que o caso de uso de catálogo enxerga.
type ShopCache interface {
	Get(ctx context.Context, id int64, strategy Strategy) (Shop, bool, error)
	SetLogical(ctx context.Context, id int64, shop Shop) error
	Invalidate(ctx context.Context, id int64) error
}
