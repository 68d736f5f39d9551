package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Ringer/internal/domain"
	"github.com/shaiso/Ringer/internal/repo"
	"github.com/shaiso/Ringer/internal/timeexpr"
)

// CreateReminder создаёт напоминание и ставит jobs доставки.
// POST /api/v1/reminders
func (h *Handler) CreateReminder(w http.ResponseWriter, r *http.Request) {
	var req CreateReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid JSON body")
		return
	}

	if req.ChannelID == "" {
		BadRequest(w, "channel_id is required")
		return
	}
	if req.Title == "" {
		BadRequest(w, "title is required")
		return
	}
	if req.LeadTimeSec < 0 {
		BadRequest(w, "lead_time_sec must be non-negative")
		return
	}

	scheduledAt, err := timeexpr.Parse(req.TimeExpression, time.Now(), h.loc)
	if err != nil {
		// Текст UnrecognizedError уходит пользователю дословно.
		BadRequest(w, err.Error())
		return
	}

	rem := &domain.Reminder{
		ID:          uuid.New(),
		ChannelID:   req.ChannelID,
		Title:       req.Title,
		ScheduledAt: scheduledAt,
		LeadTime:    time.Duration(req.LeadTimeSec) * time.Second,
		CreatedAt:   time.Now().UTC(),
	}

	if err := h.reminderRepo.Create(r.Context(), rem); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	// Провал постановки не откатывает создание: sweep доберёт доставку.
	if err := h.dispatcher.ScheduleReminder(r.Context(), rem); err != nil {
		h.logger.Error("failed to dispatch reminder jobs",
			"reminder_id", rem.ID,
			"error", err,
		)
	}

	h.logger.Info("reminder created",
		"reminder_id", rem.ID,
		"scheduled_at", rem.ScheduledAt,
	)

	Created(w, ReminderFromDomain(rem))
}

// ListReminders возвращает список напоминаний с фильтрацией.
// GET /api/v1/reminders?channel_id=...&pending=...&limit=...&offset=...
func (h *Handler) ListReminders(w http.ResponseWriter, r *http.Request) {
	filter := repo.ReminderFilter{
		ChannelID: r.URL.Query().Get("channel_id"),
		Limit:     50,
	}

	if pendingStr := r.URL.Query().Get("pending"); pendingStr != "" {
		delivered := pendingStr != "true"
		filter.Delivered = &delivered
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		filter.Limit = parseIntDefault(limitStr, 50)
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		filter.Offset = parseIntDefault(offsetStr, 0)
	}

	reminders, err := h.reminderRepo.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]ReminderResponse, len(reminders))
	for i := range reminders {
		result[i] = ReminderFromDomain(&reminders[i])
	}

	List(w, result, len(result))
}

// GetReminder возвращает напоминание по ID.
// GET /api/v1/reminders/{id}
func (h *Handler) GetReminder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid reminder id")
		return
	}

	rem, err := h.reminderRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "reminder not found") {
		return
	}

	Success(w, ReminderFromDomain(rem))
}

// UpdateReminder правит title, время и lead time недоставленного
// напоминания. Правка перегенерирует аудио; смена времени дополнительно
// ставит новые звонки — уже стоящие jobs отбрасываются воркером
// как устаревшие.
// PUT /api/v1/reminders/{id}
func (h *Handler) UpdateReminder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid reminder id")
		return
	}

	var req UpdateReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid JSON body")
		return
	}
	if req.NewTitle == nil && req.NewTimeExpression == nil && req.NewLeadTimeSec == nil {
		BadRequest(w, "nothing to update")
		return
	}

	rem, err := h.reminderRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "reminder not found") {
		return
	}
	if rem.Delivered {
		AlreadyDelivered(w, "reminder is already delivered")
		return
	}

	timeChanged := false
	leadChanged := false
	if req.NewTitle != nil {
		if *req.NewTitle == "" {
			BadRequest(w, "title must not be empty")
			return
		}
		rem.Title = *req.NewTitle
	}
	if req.NewTimeExpression != nil {
		scheduledAt, err := timeexpr.Parse(*req.NewTimeExpression, time.Now(), h.loc)
		if err != nil {
			BadRequest(w, err.Error())
			return
		}
		timeChanged = !scheduledAt.Equal(rem.ScheduledAt)
		rem.ScheduledAt = scheduledAt
	}
	if req.NewLeadTimeSec != nil {
		if *req.NewLeadTimeSec < 0 {
			BadRequest(w, "new_lead_time_sec must be non-negative")
			return
		}
		newLead := time.Duration(*req.NewLeadTimeSec) * time.Second
		leadChanged = newLead != rem.LeadTime
		rem.LeadTime = newLead
	}

	if err := h.reminderRepo.Update(r.Context(), rem); err != nil {
		HandleRepoError(w, h.logger, err, "reminder not found")
		return
	}

	// Правка перегенерирует артефакт; смена времени или lead time —
	// и звонки (дубли финальных jobs безвредны под guard-ом).
	if timeChanged || leadChanged {
		err = h.dispatcher.ScheduleReminder(r.Context(), rem)
	} else {
		err = h.dispatcher.Schedule(r.Context(), &domain.Job{
			Kind:         domain.JobSpeechGenerate,
			ReminderID:   rem.ID,
			ScheduledFor: rem.ScheduledAt,
		}, time.Time{})
	}
	if err != nil {
		h.logger.Error("failed to re-dispatch reminder jobs",
			"reminder_id", rem.ID,
			"error", err,
		)
	}

	h.logger.Info("reminder updated",
		"reminder_id", rem.ID,
		"scheduled_at", rem.ScheduledAt,
		"time_changed", timeChanged,
	)

	Success(w, ReminderFromDomain(rem))
}

// ListReminderAttempts возвращает журнал исходов доставки.
// GET /api/v1/reminders/{id}/attempts
func (h *Handler) ListReminderAttempts(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid reminder id")
		return
	}

	if _, err := h.reminderRepo.GetByID(r.Context(), id); HandleRepoError(w, h.logger, err, "reminder not found") {
		return
	}

	attempts, err := h.attemptRepo.ListByReminder(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]AttemptResponse, len(attempts))
	for i := range attempts {
		result[i] = AttemptFromDomain(&attempts[i])
	}

	List(w, result, len(result))
}

// DeliverReminder вручную ставит немедленный финальный звонок.
// Идемпотентно: доставленное напоминание отклоняется с 422.
// POST /api/v1/reminders/{id}/deliver
func (h *Handler) DeliverReminder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid reminder id")
		return
	}

	rem, err := h.reminderRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "reminder not found") {
		return
	}
	if rem.Delivered {
		AlreadyDelivered(w, "reminder is already delivered")
		return
	}

	// ScheduledFor не захватывается: ручная доставка валидна всегда.
	job := &domain.Job{
		Kind:       domain.JobCallDeliver,
		ReminderID: rem.ID,
		Final:      true,
	}
	if err := h.dispatcher.Schedule(r.Context(), job, time.Time{}); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	h.logger.Info("manual delivery submitted", "reminder_id", rem.ID)

	JSON(w, http.StatusAccepted, DataResponse{Data: ReminderFromDomain(rem)})
}

// parseIntDefault парсит int с fallback на значение по умолчанию.
func parseIntDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}
