// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - RedisLocker: SET NX PX com token de dono + compare-and-delete em Lua
//   - RedisIDWorker: timestamp << 32 | INCR diário por namespace
//   - Cache: cache-aside com NullMarker, mutex e expiração lógica
//   - RedisAdmitter: script de admissão do seckill (estoque + dedup + XADD)
//   - RedisStreamQueue: fila durável com grupo de consumidores e pending set
//   - RebuildPool: workers fixos para reconstruções em background
//   - LimiterStore: token bucket por comprador usando golang.org/x/time/rate
//   - RedisStatsStore / MemoryStatsStore: contadores de veredictos
//   - Postgres*: colaborador relacional via pgxpool
//   - KafkaPublisher: eventos order.created via kafka-go
package infra
