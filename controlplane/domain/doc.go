// Package domain define os contratos e tipos do plano de controle de cache e seckill.
//
// Este pacote não depende de Redis, Postgres, Kafka nem de net/http.
// Os casos de uso (application) dependem apenas destas portas; as implementações
// concretas ficam em infra.
package domain
