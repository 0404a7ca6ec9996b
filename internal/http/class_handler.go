package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/example/class-scheduler/internal/application"
	"github.com/example/class-scheduler/internal/cache"
)

type classService interface {
	CreateClass(ctx context.Context, params application.CreateClassParams) (application.Class, error)
	UpdateClass(ctx context.Context, params application.UpdateClassParams) (application.Class, error)
	DetachSession(ctx context.Context, params application.DetachSessionParams) (application.Class, error)
	CancelSession(ctx context.Context, params application.CancelSessionParams) (application.Class, error)
	GetClass(ctx context.Context, id string) (application.Class, error)
	ListClasses(ctx context.Context, params application.ListClassesParams) ([]application.Class, error)
	DeleteClass(ctx context.Context, id string) error
	PreviewSchedule(ctx context.Context, input application.RuleInput) ([]application.SessionPreview, error)
}

type ClassHandler struct {
	service   classService
	store     cache.Store
	cacheTTL  time.Duration
	responder responder
	logger    *slog.Logger
}

// NewClassHandler creates a ClassHandler. store may be nil, in which case
// reads always go to the service.
func NewClassHandler(service classService, store cache.Store, cacheTTL time.Duration, logger *slog.Logger) *ClassHandler {
	base := defaultLogger(logger)
	if store == nil {
		store = cache.Noop{}
	}
	return &ClassHandler{
		service:   service,
		store:     store,
		cacheTTL:  cacheTTL,
		responder: newResponder(base),
		logger:    base,
	}
}

func (h *ClassHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ClassHandler", operation, attrs...)
}

func (h *ClassHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req classRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode class request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create")

	class, err := h.service.CreateClass(r.Context(), application.CreateClassParams{Input: req.toInput()})
	if err != nil {
		logger.ErrorContext(r.Context(), "class creation failed", "error", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("class_id", class.ID, "session_count", len(class.Sessions)).InfoContext(r.Context(), "class created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, classResponse{Class: toClassDTO(class)})
}

func (h *ClassHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	classID, ok := ClassIDFromContext(r.Context())
	if !ok || strings.TrimSpace(classID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidClassID)
		return
	}

	var req classRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "class_id", classID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode class update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "class_id", classID)

	class, err := h.service.UpdateClass(r.Context(), application.UpdateClassParams{
		ClassID: classID,
		Input:   req.toInput(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "class update failed", "error", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("session_count", len(class.Sessions)).InfoContext(r.Context(), "class updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, classResponse{Class: toClassDTO(class)})
}

func (h *ClassHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	classID, ok := ClassIDFromContext(r.Context())
	if !ok || strings.TrimSpace(classID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidClassID)
		return
	}

	h.respondCached(r.Context(), w, "class:"+classID, func() (any, error) {
		class, err := h.service.GetClass(r.Context(), classID)
		if err != nil {
			return nil, err
		}
		return classResponse{Class: toClassDTO(class)}, nil
	})
}

func (h *ClassHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	params, err := parseListParams(r)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	h.respondCached(r.Context(), w, "list?"+r.URL.RawQuery, func() (any, error) {
		classes, err := h.service.ListClasses(r.Context(), params)
		if err != nil {
			return nil, err
		}
		return listClassesResponse{Classes: toClassDTOs(classes)}, nil
	})
}

func (h *ClassHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	classID, ok := ClassIDFromContext(r.Context())
	if !ok || strings.TrimSpace(classID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidClassID)
		return
	}

	logger := h.log(r.Context(), "Delete", "class_id", classID)
	if err := h.service.DeleteClass(r.Context(), classID); err != nil {
		logger.ErrorContext(r.Context(), "class delete failed", "error", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "class deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *ClassHandler) Detach(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	classID, ok := ClassIDFromContext(r.Context())
	if !ok || strings.TrimSpace(classID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidClassID)
		return
	}

	var req detachRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Detach", "class_id", classID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode detach request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	params, err := req.toParams(classID)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	logger := h.log(r.Context(), "Detach", "class_id", classID, "session_id", params.SessionID)

	class, err := h.service.DetachSession(r.Context(), params)
	if err != nil {
		logger.ErrorContext(r.Context(), "session detach failed", "error", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("detached_class_id", class.ID).InfoContext(r.Context(), "session detached")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, classResponse{Class: toClassDTO(class)})
}

func (h *ClassHandler) CancelSession(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	classID, ok := ClassIDFromContext(r.Context())
	if !ok || strings.TrimSpace(classID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidClassID)
		return
	}
	sessionID, ok := SessionIDFromContext(r.Context())
	if !ok || strings.TrimSpace(sessionID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSessionID)
		return
	}

	logger := h.log(r.Context(), "CancelSession", "class_id", classID, "session_id", sessionID)

	class, err := h.service.CancelSession(r.Context(), application.CancelSessionParams{
		ClassID:   classID,
		SessionID: sessionID,
		Reason:    r.URL.Query().Get("reason"),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "session cancel failed", "error", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "session cancelled")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, classResponse{Class: toClassDTO(class)})
}

func (h *ClassHandler) Preview(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Preview", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode preview request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Preview")

	previews, err := h.service.PreviewSchedule(r.Context(), req.toRuleInput())
	if err != nil {
		logger.ErrorContext(r.Context(), "schedule preview failed", "error", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("session_count", len(previews)).InfoContext(r.Context(), "schedule previewed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, previewResponse{Sessions: toPreviewDTOs(previews)})
}

// Calendar serves the class schedule as an iCalendar feed.
func (h *ClassHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	classID, ok := ClassIDFromContext(r.Context())
	if !ok || strings.TrimSpace(classID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidClassID)
		return
	}

	logger := h.log(r.Context(), "Calendar", "class_id", classID)

	class, err := h.service.GetClass(r.Context(), classID)
	if err != nil {
		logger.ErrorContext(r.Context(), "calendar feed failed", "error", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	stamp := time.Now()
	for _, session := range class.Sessions {
		event := cal.AddEvent(fmt.Sprintf("%s@class-scheduler", session.ID))
		event.SetDtStampTime(stamp)
		event.SetStartAt(session.Start)
		event.SetEndAt(session.End)
		event.SetSummary(class.Title)
		if class.Description != "" {
			event.SetDescription(class.Description)
		}
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	if err := cal.SerializeTo(w); err != nil {
		logger.ErrorContext(r.Context(), "failed to serialize calendar", "error", err)
	}
}

// respondCached serves a read through the cache: a hit replays the stored
// payload, a miss builds the response, stores it, and serves it.
func (h *ClassHandler) respondCached(ctx context.Context, w http.ResponseWriter, key string, build func() (any, error)) {
	if payload, hit, err := h.store.Get(ctx, cache.TagClasses, key); err != nil {
		h.log(ctx, "cache").WarnContext(ctx, "cache read failed", "key", key, "error", err)
	} else if hit {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(payload); err != nil {
			h.log(ctx, "cache").ErrorContext(ctx, "failed to write cached response", "error", err)
		}
		return
	}

	response, err := build()
	if err != nil {
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	payload, err := json.Marshal(response)
	if err != nil {
		h.responder.writeError(ctx, w, http.StatusInternalServerError, err)
		return
	}
	if err := h.store.Set(ctx, cache.TagClasses, key, payload, h.cacheTTL); err != nil {
		h.log(ctx, "cache").WarnContext(ctx, "cache write failed", "key", key, "error", err)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(payload); err != nil {
		h.log(ctx, "cache").ErrorContext(ctx, "failed to write response", "error", err)
	}
}

func parseListParams(r *http.Request) (application.ListClassesParams, error) {
	query := r.URL.Query()
	params := application.ListClassesParams{
		InstructorID: query.Get("instructor_id"),
		RoomID:       query.Get("room_id"),
	}
	if raw := query.Get("starts_after"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return params, fmt.Errorf("starts_after %q is not a valid RFC 3339 timestamp", raw)
		}
		params.StartsAfter = &t
	}
	if raw := query.Get("ends_before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return params, fmt.Errorf("ends_before %q is not a valid RFC 3339 timestamp", raw)
		}
		params.EndsBefore = &t
	}
	return params, nil
}

type ruleRequest struct {
	Kind         string        `json:"kind"`
	SeriesStart  string        `json:"series_start"`
	SeriesEnd    string        `json:"series_end"`
	IntervalUnit int           `json:"interval_unit"`
	Weekdays     []int         `json:"weekdays"`
	MonthDays    []int         `json:"month_days"`
	ManualDates  []string      `json:"manual_dates"`
	TimeSlots    []timeSlotDTO `json:"time_slots"`
}

func (r ruleRequest) toRuleInput() application.RuleInput {
	input := application.RuleInput{
		Kind:         strings.TrimSpace(r.Kind),
		SeriesStart:  strings.TrimSpace(r.SeriesStart),
		SeriesEnd:    strings.TrimSpace(r.SeriesEnd),
		IntervalUnit: r.IntervalUnit,
		Weekdays:     r.Weekdays,
		MonthDays:    r.MonthDays,
		ManualDates:  r.ManualDates,
	}
	for _, slot := range r.TimeSlots {
		input.TimeSlots = append(input.TimeSlots, application.TimeSlotInput{Start: slot.Start, End: slot.End})
	}
	return input
}

type classRequest struct {
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	InstructorID string      `json:"instructor_id"`
	RoomID       string      `json:"room_id"`
	Recurrence   ruleRequest `json:"recurrence"`
}

func (r classRequest) toInput() application.ClassInput {
	return application.ClassInput{
		Title:        strings.TrimSpace(r.Title),
		Description:  strings.TrimSpace(r.Description),
		InstructorID: strings.TrimSpace(r.InstructorID),
		RoomID:       strings.TrimSpace(r.RoomID),
		Recurrence:   r.Recurrence.toRuleInput(),
	}
}

type detachRequest struct {
	SessionID    string `json:"session_id"`
	Title        string `json:"title"`
	InstructorID string `json:"instructor_id"`
	RoomID       string `json:"room_id"`
	NewStart     string `json:"new_start"`
	NewEnd       string `json:"new_end"`
	Reason       string `json:"reason"`
}

func (r detachRequest) toParams(classID string) (application.DetachSessionParams, error) {
	params := application.DetachSessionParams{
		ClassID:      classID,
		SessionID:    strings.TrimSpace(r.SessionID),
		Title:        strings.TrimSpace(r.Title),
		InstructorID: strings.TrimSpace(r.InstructorID),
		RoomID:       strings.TrimSpace(r.RoomID),
		Reason:       strings.TrimSpace(r.Reason),
	}
	if params.SessionID == "" {
		return params, errInvalidSessionID
	}
	if r.NewStart != "" {
		t, err := time.Parse(time.RFC3339, r.NewStart)
		if err != nil {
			return params, fmt.Errorf("new_start %q is not a valid RFC 3339 timestamp", r.NewStart)
		}
		params.NewStart = &t
	}
	if r.NewEnd != "" {
		t, err := time.Parse(time.RFC3339, r.NewEnd)
		if err != nil {
			return params, fmt.Errorf("new_end %q is not a valid RFC 3339 timestamp", r.NewEnd)
		}
		params.NewEnd = &t
	}
	return params, nil
}

type classResponse struct {
	Class classDTO `json:"class"`
}

type listClassesResponse struct {
	Classes []classDTO `json:"classes"`
}

type previewResponse struct {
	Sessions []previewDTO `json:"sessions"`
}

type timeSlotDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type recurrenceDTO struct {
	Kind         string        `json:"kind"`
	SeriesStart  string        `json:"series_start"`
	SeriesEnd    *string       `json:"series_end,omitempty"`
	IntervalUnit int           `json:"interval_unit"`
	Weekdays     []int         `json:"weekdays,omitempty"`
	MonthDays    []int         `json:"month_days,omitempty"`
	ManualDates  []string      `json:"manual_dates,omitempty"`
	TimeSlots    []timeSlotDTO `json:"time_slots"`
}

type sessionDTO struct {
	ID    string `json:"id"`
	Start string `json:"start"`
	End   string `json:"end"`
}

type exceptionDTO struct {
	ID        string  `json:"id"`
	Anchor    string  `json:"anchor"`
	Status    string  `json:"status"`
	Reason    string  `json:"reason,omitempty"`
	NewStart  *string `json:"new_start,omitempty"`
	NewEnd    *string `json:"new_end,omitempty"`
	CreatedAt string  `json:"created_at"`
}

type previewDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type classDTO struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Description  string         `json:"description,omitempty"`
	InstructorID string         `json:"instructor_id"`
	RoomID       string         `json:"room_id"`
	Recurrence   recurrenceDTO  `json:"recurrence"`
	Sessions     []sessionDTO   `json:"sessions"`
	Exceptions   []exceptionDTO `json:"exceptions,omitempty"`
	CreatedAt    string         `json:"created_at"`
	UpdatedAt    string         `json:"updated_at"`
}

func toClassDTO(class application.Class) classDTO {
	dto := classDTO{
		ID:           class.ID,
		Title:        class.Title,
		Description:  class.Description,
		InstructorID: class.InstructorID,
		RoomID:       class.RoomID,
		Recurrence:   toRecurrenceDTO(class),
		CreatedAt:    class.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:    class.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	for _, session := range class.Sessions {
		dto.Sessions = append(dto.Sessions, sessionDTO{
			ID:    session.ID,
			Start: session.Start.Format(time.RFC3339),
			End:   session.End.Format(time.RFC3339),
		})
	}
	for _, exc := range class.Exceptions {
		dto.Exceptions = append(dto.Exceptions, exceptionDTO{
			ID:        exc.ID,
			Anchor:    exc.Anchor.Format(time.RFC3339),
			Status:    exc.Status,
			Reason:    exc.Reason,
			NewStart:  formatOptionalTime(exc.NewStart),
			NewEnd:    formatOptionalTime(exc.NewEnd),
			CreatedAt: exc.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	return dto
}

func toRecurrenceDTO(class application.Class) recurrenceDTO {
	rule := class.Rule
	dto := recurrenceDTO{
		Kind:         rule.Kind.String(),
		SeriesStart:  rule.SeriesStart.Format("2006-01-02"),
		IntervalUnit: rule.IntervalUnit,
		MonthDays:    rule.MonthDays,
		ManualDates:  rule.ManualDates,
	}
	if rule.SeriesEnd != nil {
		end := rule.SeriesEnd.Format("2006-01-02")
		dto.SeriesEnd = &end
	}
	for _, day := range rule.Weekdays {
		dto.Weekdays = append(dto.Weekdays, int(day))
	}
	for _, slot := range rule.TimeSlots {
		dto.TimeSlots = append(dto.TimeSlots, timeSlotDTO{Start: slot.Start, End: slot.End})
	}
	return dto
}

func toClassDTOs(classes []application.Class) []classDTO {
	if len(classes) == 0 {
		return nil
	}
	out := make([]classDTO, 0, len(classes))
	for _, class := range classes {
		out = append(out, toClassDTO(class))
	}
	return out
}

func toPreviewDTOs(previews []application.SessionPreview) []previewDTO {
	if len(previews) == 0 {
		return nil
	}
	out := make([]previewDTO, 0, len(previews))
	for _, preview := range previews {
		out = append(out, previewDTO{
			Start: preview.Start.Format(time.RFC3339),
			End:   preview.End.Format(time.RFC3339),
		})
	}
	return out
}

func formatOptionalTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := t.Format(time.RFC3339)
	return &formatted
}
