// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go          — Handler с DI (репозитории, dispatcher, logger)
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — middleware (logging, recovery)
//   - response.go         — унифицированные JSON-ответы и обработка ошибок
//   - dto.go              — Data Transfer Objects (request/response)
//   - reminder_handler.go — обработчики для /reminders
//
// API предоставляет REST endpoints для управления напоминаниями:
// создание, правка, журнал исходов доставки и ручная доставка.
package api
