// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация jobs, в том числе отложенных через per-message TTL
//   - consumer.go   — потребление jobs воркером
//
// Exchanges:
//   - ringer.jobs — jobs доставки (ready — немедленные, deferred — отложенные)
//   - ringer.dlq  — dead letter queue для провалившихся jobs
package mq
