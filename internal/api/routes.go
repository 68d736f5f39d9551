package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Reminders
	mux.Handle("GET /api/v1/reminders", chain(http.HandlerFunc(h.ListReminders)))
	mux.Handle("POST /api/v1/reminders", chain(http.HandlerFunc(h.CreateReminder)))
	mux.Handle("GET /api/v1/reminders/{id}", chain(http.HandlerFunc(h.GetReminder)))
	mux.Handle("PUT /api/v1/reminders/{id}", chain(http.HandlerFunc(h.UpdateReminder)))

	// Delivery
	mux.Handle("GET /api/v1/reminders/{id}/attempts", chain(http.HandlerFunc(h.ListReminderAttempts)))
	mux.Handle("POST /api/v1/reminders/{id}/deliver", chain(http.HandlerFunc(h.DeliverReminder)))
}
