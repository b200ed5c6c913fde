package httpapi

import (
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/straycare/internal/domain"
)

// Стабильные коды ошибок API.
const (
	codeValidation          = "validation_failed"
	codeNoFields            = "no_fields"
	codeUnauthenticated     = "unauthenticated"
	codeInvalidCredentials  = "invalid_credentials"
	codeTokenExpired        = "token_expired"
	codeInvalidToken        = "invalid_token"
	codeForbidden           = "forbidden"
	codeNotFound            = "not_found"
	codeConflict            = "username_taken"
	codeProviderError       = "payment_provider_error"
	codeProviderTimeout     = "payment_provider_timeout"
	codeProviderUnavailable = "payment_provider_unavailable"
	codeInternal            = "internal_error"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// writeError переводит ошибку в HTTP-ответ. Текст ошибок хранилища клиенту не отдаётся.
func writeError(w http.ResponseWriter, r *http.Request, logger *log.Entry, err error) {
	status, detail := classify(err)
	entry := logger.WithError(err).WithFields(log.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"status": status,
		"code":   detail.Code,
	})
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}
	writeJSON(w, status, errorBody{Error: detail})
}

func classify(err error) (int, errorDetail) {
	var (
		verr *domain.ValidationError
		aerr *domain.AuthorizationError
		perr *domain.PaymentProviderError
	)

	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, errorDetail{Code: codeValidation, Message: verr.Message, Fields: verr.Fields}
	case errors.Is(err, domain.ErrEmptyPatch):
		return http.StatusBadRequest, errorDetail{Code: codeNoFields, Message: "No fields to update"}
	case errors.As(err, &aerr):
		return classifyAuth(aerr)
	case errors.Is(err, domain.ErrUsernameTaken):
		return http.StatusConflict, errorDetail{Code: codeConflict, Message: "Username already exists"}
	case domain.IsNotFound(err):
		return http.StatusNotFound, errorDetail{Code: codeNotFound, Message: err.Error()}
	case errors.As(err, &perr):
		return classifyProvider(perr)
	default:
		return http.StatusInternalServerError, errorDetail{Code: codeInternal, Message: "Internal server error"}
	}
}

func classifyAuth(aerr *domain.AuthorizationError) (int, errorDetail) {
	switch {
	case errors.Is(aerr, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorDetail{Code: codeInvalidCredentials, Message: "Invalid credentials"}
	case errors.Is(aerr, domain.ErrTokenExpired):
		return http.StatusUnauthorized, errorDetail{Code: codeTokenExpired, Message: "Token has expired"}
	case errors.Is(aerr, domain.ErrTokenInvalid):
		return http.StatusForbidden, errorDetail{Code: codeInvalidToken, Message: "Invalid access token"}
	case aerr.Forbidden:
		return http.StatusForbidden, errorDetail{Code: codeForbidden, Message: "Access denied. Admin privileges required."}
	default:
		return http.StatusUnauthorized, errorDetail{Code: codeUnauthenticated, Message: "Access token is missing"}
	}
}

func classifyProvider(perr *domain.PaymentProviderError) (int, errorDetail) {
	switch {
	case errors.Is(perr, domain.ErrProviderUnavailable):
		return http.StatusBadGateway, errorDetail{Code: codeProviderUnavailable, Message: domain.ErrProviderUnavailable.Error()}
	case perr.Timeout:
		return http.StatusGatewayTimeout, errorDetail{Code: codeProviderTimeout, Message: "Payment provider did not respond in time"}
	}

	msg := perr.Message
	if msg == "" {
		msg = perr.Name
	}
	if msg == "" {
		msg = "Payment provider request failed"
	}
	detail := errorDetail{Code: codeProviderError, Message: msg}
	if perr.Name != "" && perr.Message != "" {
		detail.Fields = map[string]string{"provider_error": perr.Name}
	}
	return http.StatusBadGateway, detail
}
