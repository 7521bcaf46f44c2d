package domain

import "context"

// SlotPool representa capacidade finita (ex: requisições em voo).
//
// Acquire bloqueia até conseguir uma vaga ou até o ctx encerrar.
// Ao adquirir, retorna um release que deve ser chamado exatamente uma vez.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
}

// VoucherSlots limita as compras em voo por voucher. Um voucher quente não
// consome todas as vagas do servidor enquanto os demais esperam.
type VoucherSlots interface {
	Acquire(ctx context.Context, voucherID int64) (release func(), ok bool)
}
