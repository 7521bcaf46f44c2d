package application

import (
	"context"
	"time"

	"localdeals/controlplane/domain"

	"github.com/rs/zerolog/log"
)

// OrderNamespace é o namespace do gerador de ids para pedidos.
const OrderNamespace = "order"

// SeckillService é o portão de admissão: gera o orderId e chama o script
// atômico. Nunca toca o banco relacional nem o lock distribuído.
type SeckillService struct {
	IDs       domain.IDGenerator
	Admission domain.Admitter
	Stats     domain.StatsStore
	Now       func() time.Time
}

// Purchase devolve o veredicto como valor; erro só para falha do store,
// e nesse caso a compra não é admitida.
func (s SeckillService) Purchase(ctx context.Context, userID, voucherID int64) (domain.PurchaseResult, error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	orderID, err := s.IDs.NextID(ctx, OrderNamespace)
	if err != nil {
		return domain.PurchaseResult{}, err
	}

	at := now()
	verdict, err := s.Admission.Admit(ctx, domain.OrderIntent{
		OrderID:    orderID,
		UserID:     userID,
		VoucherID:  voucherID,
		EnqueuedAt: at,
	})
	if err != nil {
		return domain.PurchaseResult{}, err
	}

	if s.Stats != nil {
		if err := s.Stats.Record(ctx, domain.VerdictEvent{
			VoucherID: voucherID,
			UserID:    userID,
			Verdict:   verdict,
			At:        at,
		}); err != nil {
			log.Warn().Err(err).Int64("voucher_id", voucherID).Msg("record verdict")
		}
	}

	res := domain.PurchaseResult{Verdict: verdict}
	if verdict == domain.Admitted {
		res.OrderID = orderID
	}
	return res, nil
}
