package application

import (
	"context"
	"fmt"

	"localdeals/controlplane/domain"
)

// VoucherService administra as campanhas: grava o voucher no banco e semeia
// estoque e janela no Redis, onde a admissão acontece.
type VoucherService struct {
	Vouchers  domain.VoucherRepository
	Admission domain.Admitter
}

func (s VoucherService) AddSeckillVoucher(ctx context.Context, v domain.VoucherStock) error {
	if v.VoucherID <= 0 {
		return fmt.Errorf("%w: voucher id is required", domain.ErrInvalidArgument)
	}
	if v.Stock < 0 {
		return fmt.Errorf("%w: stock must be >= 0", domain.ErrInvalidArgument)
	}
	if !v.WindowStart.IsZero() && !v.WindowEnd.IsZero() && !v.WindowEnd.After(v.WindowStart) {
		return fmt.Errorf("%w: end time must be after begin time", domain.ErrInvalidArgument)
	}
	if err := s.Vouchers.CreateSeckill(ctx, v); err != nil {
		return err
	}
	return s.Admission.Stock(ctx, v)
}

func (s VoucherService) Restock(ctx context.Context, voucherID, stock int64) error {
	if stock < 0 {
		return fmt.Errorf("%w: stock must be >= 0", domain.ErrInvalidArgument)
	}
	if err := s.Vouchers.SetStock(ctx, voucherID, stock); err != nil {
		return err
	}
	return s.Admission.Restock(ctx, voucherID, stock)
}

func (s VoucherService) Remaining(ctx context.Context, voucherID int64) (int64, error) {
	return s.Admission.Remaining(ctx, voucherID)
}
