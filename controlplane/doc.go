// Package controlplane fornece os adapters HTTP (gorilla/mux) do plano de
// controle de cache e seckill.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos (sem Redis, Postgres ou net/http)
//   - application: casos de uso (admissão, worker de pedidos, catálogo, vouchers, throttling)
//   - infra: Redis (lock, ids, cache, script de admissão, stream), Postgres, Kafka, memória
//   - controlplane (este pacote): rotas HTTP + identidade do chamador + tradução para status/JSON
//
// Fluxo de uma compra:
//
//  1. Resolve o comprador (X-User-Id, colocado pelo interceptor de autenticação)
//  2. Throttle por comprador (token bucket)
//  3. SeckillService.Purchase: id + script atômico (o intent entra no stream)
//  4. Responde com o orderId ou com o motivo da rejeição
//
// O pedido em si é persistido depois, pelo application.OrderWorker.
package controlplane
