package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/paneladmin/apiserver/internal/services"
	"github.com/paneladmin/apiserver/types"
	"go.uber.org/zap"
)

const (
	msgInvalidRequest = "Request data is invalid."
	msgInternalError  = "Internal server error."
	userIDParam       = "userID"
)

// UserHandler provides HTTP handlers for panel users.
type UserHandler struct {
	userService *services.UserService
	logger      *zap.Logger
}

// NewUserHandler constructs a handler with the provided service.
func NewUserHandler(userService *services.UserService, logger *zap.Logger) *UserHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserHandler{
		userService: userService,
		logger:      logger,
	}
}

// UserRouter registers panel user routes on the given router.
func UserRouter(r chi.Router, userService *services.UserService, logger *zap.Logger) {
	handler := NewUserHandler(userService, logger)

	r.Get("/", handler.ListUsers)
	r.Post("/", handler.CreateUser)
	r.Route("/{userID}", func(r chi.Router) {
		r.Put("/", handler.EditUser)
		r.Delete("/", handler.DeleteUser)
	})
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.List(r.Context())
	if err != nil {
		h.fail(r, "failed to list users", err)
		writeMessage(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	writeJSON(w, http.StatusOK, types.Views(users))
}

func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	input, err := parseCreateUser(w, r)
	if err != nil {
		h.reject(r, err)
		writeMessage(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	user, err := h.userService.Create(r.Context(), input)
	if err != nil {
		h.reject(r, err)
		writeMessage(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	writeMessage(w, http.StatusOK, fmt.Sprintf("New User has been added successfully with id %d", user.ID))
}

func (h *UserHandler) EditUser(w http.ResponseWriter, r *http.Request) {
	id, raw, ok := parseUserID(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, "No User found for id"+raw)
		return
	}

	user, err := h.userService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "No User found for id"+strconv.Itoa(id))
			return
		}
		h.fail(r, "failed to load user", err)
		writeMessage(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	fields, err := parseEditUser(w, r)
	if err != nil {
		h.reject(r, err)
		writeMessage(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	updated, err := h.userService.Edit(r.Context(), user, fields)
	if err != nil {
		h.reject(r, err)
		writeMessage(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	writeMessage(w, http.StatusOK, fmt.Sprintf("User with id: %d has been edited successfully.", updated.ID))
}

func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, raw, ok := parseUserID(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, "No User found for id "+raw)
		return
	}

	if err := h.userService.Delete(r.Context(), id); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "No User found for id "+strconv.Itoa(id))
			return
		}
		h.fail(r, "failed to delete user", err)
		writeMessage(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	writeMessage(w, http.StatusOK, fmt.Sprintf("Deleted a User successfully with id %d", id))
}

// parseUserID returns the path id. A segment that is not a positive integer
// can never name a user and is reported as not found by the callers.
func parseUserID(r *http.Request) (int, string, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, userIDParam))
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, raw, false
	}
	return id, raw, true
}

func (h *UserHandler) reject(r *http.Request, err error) {
	h.logger.Warn("rejected user request",
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
}

func (h *UserHandler) fail(r *http.Request, msg string, err error) {
	h.logger.Error(msg,
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
}
