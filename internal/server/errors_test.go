package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	accountdomain "github.com/fanstack/fanstack/internal/account/domain"
	contentdomain "github.com/fanstack/fanstack/internal/content/domain"
	creatordomain "github.com/fanstack/fanstack/internal/creator/domain"
	gatewaydomain "github.com/fanstack/fanstack/internal/gateway/domain"
	payoutdomain "github.com/fanstack/fanstack/internal/payout/domain"
	subscriptiondomain "github.com/fanstack/fanstack/internal/subscription/domain"
	tipdomain "github.com/fanstack/fanstack/internal/tip/domain"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		status   int
		typeName string
	}{
		{"validation", tipdomain.ErrInvalidAmount, http.StatusBadRequest, "validation_error"},
		{"wrapped validation", fmt.Errorf("create: %w", subscriptiondomain.ErrInvalidOperation), http.StatusBadRequest, "validation_error"},
		{"unauthorized", ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{"forbidden locked content", contentdomain.ErrContentLocked, http.StatusForbidden, "forbidden"},
		{"forbidden profile owner", creatordomain.ErrNotProfileOwner, http.StatusForbidden, "forbidden"},
		{"conflict duplicate subscription", subscriptiondomain.ErrDuplicateSubscription, http.StatusConflict, "conflict"},
		{"conflict duplicate account", accountdomain.ErrDuplicateAccount, http.StatusConflict, "conflict"},
		{"conflict already liked", contentdomain.ErrAlreadyLiked, http.StatusConflict, "conflict"},
		{"not found", payoutdomain.ErrPayoutNotFound, http.StatusNotFound, "not_found"},
		{"consistency violation", subscriptiondomain.ErrConsistencyViolation, http.StatusInternalServerError, "internal_error"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, payload := mapError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.typeName, payload.Type)
		})
	}
}

func TestMapError_GatewayErrorCarriesUpstreamMessage(t *testing.T) {
	err := fmt.Errorf("charge: %w", &gatewaydomain.Error{
		Op:      "create_charge",
		Message: "card declined",
	})

	status, payload := mapError(err)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "payment_gateway_error", payload.Type)
	assert.Equal(t, "card declined", payload.Message)
}

func TestMapError_ValidationPayload(t *testing.T) {
	status, payload := mapError(creatordomain.ErrInvalidPrice)
	assert.Equal(t, http.StatusBadRequest, status)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "invalid_subscription_price", payload.Errors[0].Code)
	assert.Equal(t, "subscription_price", payload.Errors[0].Field)
}

func TestErrorHandlingMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandlingMiddleware())
	r.GET("/boom", func(c *gin.Context) {
		AbortWithError(c, subscriptiondomain.ErrSubscriptionNotFound)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "not_found", body.Error.Type)
}

func TestErrorHandlingMiddleware_LeavesWrittenResponses(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandlingMiddleware())
	r.GET("/ok", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
