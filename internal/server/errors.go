package server

import (
	"errors"
	"net/http"
	"strings"

	accountdomain "github.com/fanstack/fanstack/internal/account/domain"
	contentdomain "github.com/fanstack/fanstack/internal/content/domain"
	creatordomain "github.com/fanstack/fanstack/internal/creator/domain"
	gatewaydomain "github.com/fanstack/fanstack/internal/gateway/domain"
	ledgerdomain "github.com/fanstack/fanstack/internal/ledger/domain"
	messagingdomain "github.com/fanstack/fanstack/internal/messaging/domain"
	payoutdomain "github.com/fanstack/fanstack/internal/payout/domain"
	subscriptiondomain "github.com/fanstack/fanstack/internal/subscription/domain"
	tipdomain "github.com/fanstack/fanstack/internal/tip/domain"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	var gwErr *gatewaydomain.Error
	if errors.As(err, &gwErr) {
		return http.StatusBadGateway, errorPayload{
			Type:    "payment_gateway_error",
			Message: gwErr.Message,
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case isForbiddenError(err):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: forbiddenMessage(err),
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, subscriptiondomain.ErrConsistencyViolation):
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	case errors.Is(err, ErrInternal):
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return true
	case isAccountValidationError(err),
		isCreatorValidationError(err),
		isSubscriptionValidationError(err),
		isTipValidationError(err),
		isPayoutValidationError(err),
		isLedgerValidationError(err),
		isContentValidationError(err),
		isMessagingValidationError(err):
		return true
	default:
		return false
	}
}

func isAccountValidationError(err error) bool {
	switch {
	case errors.Is(err, accountdomain.ErrInvalidEmail),
		errors.Is(err, accountdomain.ErrInvalidUserName),
		errors.Is(err, accountdomain.ErrInvalidAccountType),
		errors.Is(err, accountdomain.ErrInvalidUser):
		return true
	default:
		return false
	}
}

func isCreatorValidationError(err error) bool {
	switch {
	case errors.Is(err, creatordomain.ErrInvalidCreator),
		errors.Is(err, creatordomain.ErrInvalidPrice),
		errors.Is(err, creatordomain.ErrInvalidDisplayName):
		return true
	default:
		return false
	}
}

func isSubscriptionValidationError(err error) bool {
	switch {
	case errors.Is(err, subscriptiondomain.ErrInvalidSubscriber),
		errors.Is(err, subscriptiondomain.ErrInvalidCreator),
		errors.Is(err, subscriptiondomain.ErrInvalidSubscription),
		errors.Is(err, subscriptiondomain.ErrInvalidOperation):
		return true
	default:
		return false
	}
}

func isTipValidationError(err error) bool {
	switch {
	case errors.Is(err, tipdomain.ErrInvalidTip),
		errors.Is(err, tipdomain.ErrInvalidAmount),
		errors.Is(err, tipdomain.ErrTipsNotAccepted),
		errors.Is(err, tipdomain.ErrInvalidOperation):
		return true
	default:
		return false
	}
}

func isPayoutValidationError(err error) bool {
	switch {
	case errors.Is(err, payoutdomain.ErrInvalidPayout),
		errors.Is(err, payoutdomain.ErrInvalidOperation):
		return true
	default:
		return false
	}
}

func isLedgerValidationError(err error) bool {
	switch {
	case errors.Is(err, ledgerdomain.ErrInvalidAmount),
		errors.Is(err, ledgerdomain.ErrInvalidSourceRef),
		errors.Is(err, ledgerdomain.ErrInvalidEarning),
		errors.Is(err, ledgerdomain.ErrInvalidCreator):
		return true
	default:
		return false
	}
}

func isContentValidationError(err error) bool {
	switch {
	case errors.Is(err, contentdomain.ErrInvalidPost),
		errors.Is(err, contentdomain.ErrInvalidComment):
		return true
	default:
		return false
	}
}

func isMessagingValidationError(err error) bool {
	switch {
	case errors.Is(err, messagingdomain.ErrInvalidConversation),
		errors.Is(err, messagingdomain.ErrInvalidMessage),
		errors.Is(err, messagingdomain.ErrMessagingDisabled):
		return true
	default:
		return false
	}
}

func isForbiddenError(err error) bool {
	switch {
	case errors.Is(err, ErrForbidden),
		errors.Is(err, contentdomain.ErrContentLocked),
		errors.Is(err, contentdomain.ErrNotPostOwner),
		errors.Is(err, creatordomain.ErrNotProfileOwner),
		errors.Is(err, messagingdomain.ErrSubscriptionRequired):
		return true
	default:
		return false
	}
}

func forbiddenMessage(err error) string {
	switch {
	case errors.Is(err, contentdomain.ErrContentLocked):
		return "content requires an active subscription"
	case errors.Is(err, messagingdomain.ErrSubscriptionRequired):
		return "messaging requires an active subscription"
	default:
		return "forbidden"
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, accountdomain.ErrDuplicateAccount),
		errors.Is(err, creatordomain.ErrDuplicateProfile),
		errors.Is(err, subscriptiondomain.ErrDuplicateSubscription),
		errors.Is(err, contentdomain.ErrAlreadyLiked),
		errors.Is(err, payoutdomain.ErrOverlappingPeriod):
		return true
	default:
		return false
	}
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, subscriptiondomain.ErrDuplicateSubscription):
		return "subscription already exists"
	case errors.Is(err, contentdomain.ErrAlreadyLiked):
		return "already liked"
	default:
		return "conflict"
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, accountdomain.ErrUserNotFound),
		errors.Is(err, creatordomain.ErrCreatorNotFound),
		errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound),
		errors.Is(err, tipdomain.ErrTipNotFound),
		errors.Is(err, payoutdomain.ErrPayoutNotFound),
		errors.Is(err, contentdomain.ErrPostNotFound),
		errors.Is(err, messagingdomain.ErrConversationNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	default:
		return err.Error()
	}
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	default:
		return "invalid value"
	}
}

// classifyErrorForLog feeds the request logger an error type and code
// without rendering a response body.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	switch {
	case status >= http.StatusInternalServerError:
		return "server_error", code
	case status == http.StatusTooManyRequests:
		return "rate_limited", code
	default:
		return "client_error", code
	}
}
