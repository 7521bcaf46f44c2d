package application

import (
	"context"
	"time"

	"localdeals/controlplane/domain"
)

// ConcurrencyService concentra a aquisição de vagas com timeout: vagas do
// servidor (Pool) e vagas por voucher (Vouchers). Qualquer um nil libera direto.
type ConcurrencyService struct {
	Pool           domain.SlotPool
	Vouchers       domain.VoucherSlots
	AcquireTimeout time.Duration
}

// Acquire tenta adquirir uma vaga do servidor.
// AcquireTimeout <= 0 espera até o ctx cancelar; > 0 espera no máximo isso.
func (s ConcurrencyService) Acquire(ctx context.Context) (func(), bool) {
	if s.Pool == nil {
		return func() {}, true
	}
	return s.wait(ctx, s.Pool.Acquire)
}

// AcquireVoucher tenta adquirir uma vaga de compra no voucher, com o mesmo timeout.
func (s ConcurrencyService) AcquireVoucher(ctx context.Context, voucherID int64) (func(), bool) {
	if s.Vouchers == nil {
		return func() {}, true
	}
	return s.wait(ctx, func(ctx context.Context) (func(), bool) {
		return s.Vouchers.Acquire(ctx, voucherID)
	})
}

func (s ConcurrencyService) wait(ctx context.Context, acquire func(context.Context) (func(), bool)) (func(), bool) {
	if s.AcquireTimeout <= 0 {
		return acquire(ctx)
	}
	acqCtx, cancel := context.WithTimeout(ctx, s.AcquireTimeout)
	defer cancel()
	return acquire(acqCtx)
}
