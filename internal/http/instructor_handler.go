package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/class-scheduler/internal/application"
)

type instructorService interface {
	CreateInstructor(ctx context.Context, input application.InstructorInput) (application.Instructor, error)
	UpdateInstructor(ctx context.Context, id string, input application.InstructorInput) (application.Instructor, error)
	GetInstructor(ctx context.Context, id string) (application.Instructor, error)
	ListInstructors(ctx context.Context) ([]application.Instructor, error)
	DeleteInstructor(ctx context.Context, id string) error
}

type InstructorHandler struct {
	service   instructorService
	responder responder
	logger    *slog.Logger
}

func NewInstructorHandler(service instructorService, logger *slog.Logger) *InstructorHandler {
	base := defaultLogger(logger)
	return &InstructorHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *InstructorHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "InstructorHandler", operation, attrs...)
}

func (h *InstructorHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req instructorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode instructor request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create")

	instructor, err := h.service.CreateInstructor(r.Context(), req.toInput())
	if err != nil {
		logger.ErrorContext(r.Context(), "instructor creation failed", "error", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("instructor_id", instructor.ID).InfoContext(r.Context(), "instructor created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, instructorResponse{Instructor: toInstructorDTO(instructor)})
}

func (h *InstructorHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	instructorID, ok := InstructorIDFromContext(r.Context())
	if !ok || strings.TrimSpace(instructorID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidInstructorID)
		return
	}

	var req instructorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "instructor_id", instructorID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode instructor update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "instructor_id", instructorID)

	instructor, err := h.service.UpdateInstructor(r.Context(), instructorID, req.toInput())
	if err != nil {
		logger.ErrorContext(r.Context(), "instructor update failed", "error", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "instructor updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, instructorResponse{Instructor: toInstructorDTO(instructor)})
}

func (h *InstructorHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	instructorID, ok := InstructorIDFromContext(r.Context())
	if !ok || strings.TrimSpace(instructorID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidInstructorID)
		return
	}

	instructor, err := h.service.GetInstructor(r.Context(), instructorID)
	if err != nil {
		h.log(r.Context(), "Get", "instructor_id", instructorID).ErrorContext(r.Context(), "instructor lookup failed", "error", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, instructorResponse{Instructor: toInstructorDTO(instructor)})
}

func (h *InstructorHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	logger := h.log(r.Context(), "List")
	instructors, err := h.service.ListInstructors(r.Context())
	if err != nil {
		logger.ErrorContext(r.Context(), "instructor list failed", "error", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(instructors)).InfoContext(r.Context(), "instructors listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listInstructorsResponse{Instructors: toInstructorDTOs(instructors)})
}

func (h *InstructorHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	instructorID, ok := InstructorIDFromContext(r.Context())
	if !ok || strings.TrimSpace(instructorID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidInstructorID)
		return
	}

	logger := h.log(r.Context(), "Delete", "instructor_id", instructorID)
	if err := h.service.DeleteInstructor(r.Context(), instructorID); err != nil {
		logger.ErrorContext(r.Context(), "instructor delete failed", "error", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "instructor deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type instructorRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (r instructorRequest) toInput() application.InstructorInput {
	return application.InstructorInput{
		Name:  strings.TrimSpace(r.Name),
		Email: strings.TrimSpace(r.Email),
	}
}

type instructorResponse struct {
	Instructor instructorDTO `json:"instructor"`
}

type listInstructorsResponse struct {
	Instructors []instructorDTO `json:"instructors"`
}

type instructorDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toInstructorDTO(instructor application.Instructor) instructorDTO {
	return instructorDTO{
		ID:        instructor.ID,
		Name:      instructor.Name,
		Email:     instructor.Email,
		CreatedAt: instructor.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt: instructor.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toInstructorDTOs(instructors []application.Instructor) []instructorDTO {
	if len(instructors) == 0 {
		return nil
	}
	out := make([]instructorDTO, 0, len(instructors))
	for _, instructor := range instructors {
		out = append(out, toInstructorDTO(instructor))
	}
	return out
}
