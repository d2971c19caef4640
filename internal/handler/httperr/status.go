// Package httperr maps domain errors onto HTTP responses.
package httperr

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/zhouzirui/persona-lab/backend/internal/dataset"
	"github.com/zhouzirui/persona-lab/backend/internal/model/persona"
	"github.com/zhouzirui/persona-lab/backend/internal/service/ai"
	chatService "github.com/zhouzirui/persona-lab/backend/internal/service/chat"
	"github.com/zhouzirui/persona-lab/backend/internal/service/generator"
	"github.com/zhouzirui/persona-lab/backend/pkg/utils"
)

// Status returns the HTTP status for err.
func Status(err error) int {
	switch {
	case errors.Is(err, persona.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, persona.ErrNotFound),
		errors.Is(err, generator.ErrSessionNotFound),
		errors.Is(err, chatService.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, generator.ErrNoDraft),
		errors.Is(err, ai.ErrTurnInProgress):
		return http.StatusConflict
	case errors.Is(err, ai.ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, persona.ErrInvalidID),
		errors.Is(err, dataset.ErrSampleSize),
		errors.Is(err, generator.ErrEmptyPrompt),
		errors.Is(err, generator.ErrTurnOutOfRange),
		errors.Is(err, ai.ErrEmptyMessage),
		errors.Is(err, ai.ErrUnknownModel),
		errors.Is(err, chatService.ErrPersonaRequired):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Respond writes err as a JSON error body with the mapped status.
func Respond(w http.ResponseWriter, err error) {
	status := Status(err)
	if status == http.StatusInternalServerError {
		log.Printf("[http] internal error: %v", err)
	}
	utils.RespondError(w, status, err.Error())
}
