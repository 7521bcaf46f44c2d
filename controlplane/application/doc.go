// Package application contém os casos de uso do plano de controle:
// compra relâmpago (admissão), cumprimento assíncrono dos pedidos, leitura do
// catálogo via cache, administração de vouchers e throttling.
//
// Ele depende apenas do pacote domain e não conhece Redis, Postgres nem net/http.
// Ex.: SeckillService.Purchase devolve um PurchaseResult (veredicto + orderId).
package application
