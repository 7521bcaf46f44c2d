package domain

import "context"

// Delivery é uma entrada do stream entregue a um consumidor.
// Err != nil quando a mensagem não pôde ser decodificada em OrderIntent.
type Delivery struct {
	ID     string
	Intent OrderIntent
	Err    error
}

// IntentQueue é a fila durável com semântica de grupo de consumidores.
//
// ReadNew lê entradas nunca entregues (bloqueando até o timeout configurado).
// ReadPending relê, desde o início, o pending set do próprio consumidor:
// entregues e nunca confirmadas. Ack remove do pending set.
type IntentQueue interface {
	Enqueue(ctx context.Context, intent OrderIntent) (string, error)
	ReadNew(ctx context.Context, consumer string) ([]Delivery, error)
	ReadPending(ctx context.Context, consumer string) ([]Delivery, error)
	Ack(ctx context.Context, ids ...string) error
}
