package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/bankrest/cardtransfer/internal/apperr"
	"github.com/bankrest/cardtransfer/internal/models"
	"github.com/bankrest/cardtransfer/internal/service"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

var validate = validator.New()

// ValidationError describes one rejected request field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Handler exposes the transfer-requester capability over HTTP. It
// deliberately has no access to confirmation or compensation.
type Handler struct {
	svc service.Requester
}

// NewHandler initializes a new handler
func NewHandler(svc service.Requester) *Handler {
	return &Handler{svc: svc}
}

// CreateTransfer handles POST /transfers
func (h *Handler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req models.MoneyTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if details := validateRequest(req); details != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "validation failed",
			"details": details,
		})
		return
	}

	transferID, err := h.svc.CreateTransferRequest(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"transfer_id": transferID})
}

// GetTransfer handles GET /transfers/{id}
func (h *Handler) GetTransfer(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid transfer id"})
		return
	}

	transfer, err := h.svc.TransferByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transfer)
}

func validateRequest(req models.MoneyTransferRequest) []ValidationError {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var details []ValidationError
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []ValidationError{{Field: "", Message: "invalid request", Type: "invalid"}}
	}
	for _, fe := range verrs {
		details = append(details, ValidationError{
			Field:   fe.Field(),
			Message: validationMessage(fe),
			Type:    fe.Tag(),
		})
	}
	return details
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "required_without":
		return "Either this field or " + fe.Param() + " must be set"
	default:
		return "Invalid value"
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperr.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, apperr.ErrAuthorization):
		status = http.StatusForbidden
	case errors.Is(err, apperr.ErrStateConflict):
		status = http.StatusConflict
	case errors.Is(err, apperr.ErrNotFound):
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
