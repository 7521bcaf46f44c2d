package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"localdeals/controlplane/domain"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// OrderWorker consome intents admitidos e persiste cada pedido uma única vez.
//
// Por intent: lock order:<userId> -> existe? -> insere -> libera -> ack.
// Lock ocupado não confirma a entrada: ela fica pendente para a recuperação.
// O ack só acontece depois da persistência (ou do no-op idempotente); um
// crash antes disso deixa a entrada no pending set do consumidor, que é
// reprocessado por RecoverPending no próximo início.
type OrderWorker struct {
	Queue     domain.IntentQueue
	Locker    domain.Locker
	Orders    domain.OrderRepository
	Publisher domain.OrderPublisher

	// Consumer é o nome fixo deste worker dentro do grupo.
	Consumer   string
	LockLease  time.Duration
	RetryDelay time.Duration
	Now        func() time.Time
}

func (w *OrderWorker) setDefaults() {
	if w.Consumer == "" {
		w.Consumer = "c1"
	}
	if w.LockLease <= 0 {
		w.LockLease = 5 * time.Second
	}
	if w.RetryDelay <= 0 {
		w.RetryDelay = 20 * time.Millisecond
	}
	if w.Now == nil {
		w.Now = time.Now
	}
}

// Run recupera o pending set e depois acompanha o stream até o ctx encerrar.
// Falhas no meio do loop nunca derrubam o worker: são logadas e disparam uma
// nova recuperação.
func (w *OrderWorker) Run(ctx context.Context) error {
	w.setDefaults()
	log.Info().Str("consumer", w.Consumer).Msg("order worker starting")

	if err := w.RecoverPending(ctx); err != nil {
		return nil
	}
	for {
		if ctx.Err() != nil {
			log.Info().Str("consumer", w.Consumer).Msg("order worker stopped")
			return nil
		}
		if _, err := w.ProcessNext(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			logFault(err).Err(err).Str("consumer", w.Consumer).Msg("process order intent")
			if err := w.RecoverPending(ctx); err != nil {
				continue
			}
		}
	}
}

// ProcessNext lê um lote novo (bloqueando até o timeout da fila) e o processa.
func (w *OrderWorker) ProcessNext(ctx context.Context) (int, error) {
	w.setDefaults()
	ds, err := w.Queue.ReadNew(ctx, w.Consumer)
	if err != nil {
		return 0, err
	}
	return w.handleBatch(ctx, ds)
}

// RecoverPending reprocessa, desde o início, as entradas entregues a este
// consumidor e nunca confirmadas, até o pending set esvaziar. Uma entrada cujo
// lock de usuário está ocupado é tentada de novo a cada RetryDelay até o lease
// vencer. Só retorna erro quando o ctx encerra.
func (w *OrderWorker) RecoverPending(ctx context.Context) error {
	w.setDefaults()
	recovered := 0
	for {
		ds, err := w.Queue.ReadPending(ctx, w.Consumer)
		if err == nil && len(ds) == 0 {
			if recovered > 0 {
				log.Info().Int("recovered", recovered).Str("consumer", w.Consumer).Msg("pending set drained")
			}
			return nil
		}
		if err == nil {
			var n int
			n, err = w.handleBatch(ctx, ds)
			recovered += n
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, domain.ErrLockNotAcquired) {
				log.Debug().Err(err).Str("consumer", w.Consumer).Msg("order lock busy, retrying pending intent")
			} else {
				log.Error().Err(err).Str("consumer", w.Consumer).Msg("recover pending intents")
			}
			if err := sleepCtx(ctx, w.RetryDelay); err != nil {
				return err
			}
		}
	}
}

func (w *OrderWorker) handleBatch(ctx context.Context, ds []domain.Delivery) (int, error) {
	n := 0
	for _, d := range ds {
		if err := w.handle(ctx, d); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (w *OrderWorker) handle(ctx context.Context, d domain.Delivery) error {
	if d.Err != nil {
		// mensagem ilegível nunca vai ficar legível: confirma e segue
		log.Error().Err(d.Err).Str("entry", d.ID).Msg("invalid intent, skipping")
		return w.Queue.Ack(ctx, d.ID)
	}

	in := d.Intent
	resource := "order:" + strconv.FormatInt(in.UserID, 10)
	tok, ok, err := w.Locker.TryAcquire(ctx, resource, w.LockLease)
	if err != nil {
		return err
	}
	if !ok {
		// sem ack: a entrada continua no pending set e volta na próxima
		// recuperação, depois que o lease do dono atual vencer. Pode ser um
		// worker que caiu segurando o lock; a checagem de existência mantém o
		// reprocessamento idempotente.
		return fmt.Errorf("order %d: %s: %w", in.OrderID, resource, domain.ErrLockNotAcquired)
	}

	if err := w.persistLocked(ctx, in, tok); err != nil {
		return fmt.Errorf("order %d: %w", in.OrderID, err)
	}
	return w.Queue.Ack(ctx, d.ID)
}

func (w *OrderWorker) persistLocked(ctx context.Context, in domain.OrderIntent, tok domain.LockToken) error {
	defer func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := w.Locker.Release(rctx, tok); err != nil {
			log.Error().Err(err).Str("resource", tok.Resource).Msg("release order lock")
		}
	}()

	exists, err := w.Orders.Exists(ctx, in.UserID, in.VoucherID)
	if err != nil {
		return err
	}
	if exists {
		// replay de uma entrada já persistida ou admissão duplicada
		log.Warn().
			Err(domain.ErrDuplicateAdmission).
			Int64("order_id", in.OrderID).
			Int64("user_id", in.UserID).
			Int64("voucher_id", in.VoucherID).
			Msg("order already exists, skipping")
		return nil
	}

	order := domain.Order{
		ID:        in.OrderID,
		UserID:    in.UserID,
		VoucherID: in.VoucherID,
		CreatedAt: w.Now(),
	}
	if err := w.Orders.Insert(ctx, order); err != nil {
		if !errors.Is(err, domain.ErrPersistenceConflict) {
			return err
		}
		exists, xerr := w.Orders.Exists(ctx, in.UserID, in.VoucherID)
		if xerr != nil {
			return xerr
		}
		if !exists {
			return err
		}
		log.Warn().Int64("order_id", in.OrderID).Msg("insert conflict on existing order, treating as done")
		return nil
	}

	log.Info().Int64("order_id", order.ID).Int64("user_id", order.UserID).Int64("voucher_id", order.VoucherID).Msg("order persisted")
	if w.Publisher != nil {
		if err := w.Publisher.OrderCreated(ctx, order); err != nil {
			log.Warn().Err(err).Int64("order_id", order.ID).Msg("publish order created")
		}
	}
	return nil
}

// logFault rebaixa lock ocupado para warn: é esperado e se resolve sozinho.
func logFault(err error) *zerolog.Event {
	if errors.Is(err, domain.ErrLockNotAcquired) {
		return log.Warn()
	}
	return log.Error()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
