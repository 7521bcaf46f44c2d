package infra

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// RebuildPool executa tarefas destacadas do caminho de requisição com
// concorrência limitada: `workers` goroutines fixas lendo de uma fila de
// capacidade `queue`.
//
// Submit nunca bloqueia. Close para de aceitar tarefas, drena a fila e espera
// os workers; se o ctx de Close expirar, o ctx das tarefas é cancelado e as
// restantes são abandonadas (cada tarefa é responsável por liberar seus locks).
type RebuildPool struct {
	mu     sync.RWMutex
	closed bool
	tasks  chan func(context.Context)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRebuildPool(workers, queue int) *RebuildPool {
	if workers <= 0 {
		workers = 1
	}
	if queue < 0 {
		queue = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &RebuildPool{
		tasks:  make(chan func(context.Context), queue),
		ctx:    ctx,
		cancel: cancel,
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.run()
	}
	return p
}

func (p *RebuildPool) run() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.exec(task)
	}
}

// exec isola o pânico de uma tarefa: o worker segue vivo para as próximas.
func (p *RebuildPool) exec(task func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("rebuild task panicked")
		}
	}()
	task(p.ctx)
}

// Submit enfileira a tarefa. Retorna false se a fila estiver cheia ou o pool fechado.
func (p *RebuildPool) Submit(task func(ctx context.Context)) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.tasks <- task:
		return true
	default:
		return false
	}
}

func (p *RebuildPool) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}
