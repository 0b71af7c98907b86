package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/example/message-intake/internal/intake"
)

// handleIntake processes one inbound business message.
func (s *Server) handleIntake(w http.ResponseWriter, r *http.Request) {
	reqCtx := s.requestContext(r)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, int64(s.cfg.MaxBodyBytes)))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.logger.Error().
				Str("request_id", reqCtx.RequestID).
				Int64("limit", tooLarge.Limit).
				Msg("request body exceeds configured limit")
			s.writeResponse(w, http.StatusBadRequest, response{
				RequestID: reqCtx.RequestID,
				Status:    statusRejected,
				Message:   "Message body too large",
			})
			return
		}
		s.logger.Error().
			Str("request_id", reqCtx.RequestID).
			Err(err).
			Msg("failed to read request body")
		s.writeResponse(w, http.StatusInternalServerError, response{
			RequestID: reqCtx.RequestID,
			Status:    statusError,
			Message:   "Unexpected server error",
		})
		return
	}

	if perr := s.pipeline.Process(r.Context(), reqCtx, body, r.Header.Get("Content-Type")); perr != nil {
		message := perr.Message
		if perr.Class == intake.ClassUnexpected {
			message = "Unexpected server error: " + perr.Message
		}
		s.writeResponse(w, intake.HTTPStatus(perr.Class), response{
			RequestID: reqCtx.RequestID,
			Status:    statusLabel(perr.Class),
			Message:   message,
		})
		return
	}

	s.writeResponse(w, http.StatusOK, response{
		RequestID: reqCtx.RequestID,
		Status:    statusOK,
		Message:   "Request was received",
	})
}

// handleHealthy answers liveness probes.
func (s *Server) handleHealthy(w http.ResponseWriter, r *http.Request) {
	s.writeResponse(w, http.StatusOK, response{
		RequestID: s.requestContext(r).RequestID,
		Status:    statusOK,
	})
}
