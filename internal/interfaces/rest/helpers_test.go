package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/auth"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
	appErrors "github.com/tfxTanoli/nextperience-crm-sub001/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newContext(method, target, body string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", constants.ContentTypeJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	c.Request = req
	return c, w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestRespondAppError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{
			name:    "not found",
			err:     appErrors.NewNotFoundError("Lead", "l1"),
			status:  http.StatusNotFound,
			code:    "NOT_FOUND",
			message: "Lead with ID 'l1' not found",
		},
		{
			name:   "validation",
			err:    appErrors.NewValidationError("email", "is required"),
			status: http.StatusBadRequest,
			code:   "VALIDATION_ERROR",
		},
		{
			name:    "internal error hides cause",
			err:     appErrors.NewInternalError("failed to save", errors.New("dial tcp 10.0.0.1:4000")),
			status:  http.StatusInternalServerError,
			code:    "INTERNAL_ERROR",
			message: internalErrorMessage,
		},
		{
			name:    "plain error hides message",
			err:     errors.New("Error 1146: Table 'crm.x' doesn't exist"),
			status:  http.StatusInternalServerError,
			code:    "UNKNOWN_ERROR",
			message: internalErrorMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newContext(http.MethodGet, "/x", "")
			RespondAppError(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			body := decode(t, w)
			assert.Equal(t, tt.code, body["code"])
			assert.Equal(t, body[constants.ResponseError], body[constants.FieldMessage])
			assert.Nil(t, body["data"])
			if tt.message != "" {
				assert.Equal(t, tt.message, body[constants.FieldMessage])
			}
		})
	}
}

func TestRespondAppErrorRecordsServerErrors(t *testing.T) {
	c, _ := newContext(http.MethodGet, "/x", "")
	RespondAppError(c, errors.New("boom"))
	require.Len(t, c.Errors, 1)

	c, _ = newContext(http.MethodGet, "/x", "")
	RespondAppError(c, appErrors.NewNotFoundError("Lead", "l1"))
	assert.Empty(t, c.Errors)
}

func TestBindJSON(t *testing.T) {
	var req LoginRequest

	c, w := newContext(http.MethodPost, "/login", `{"email":"a@b.co"}`)
	assert.False(t, BindJSON(c, &req))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, _ = newContext(http.MethodPost, "/login", `{"email":"a@b.co","password":"secret"}`)
	assert.True(t, BindJSON(c, &req))
	assert.Equal(t, "secret", req.Password)
}

func TestBindOptionalJSON(t *testing.T) {
	var input struct {
		Title string `json:"title"`
	}
	c, _ := newContext(http.MethodPost, "/convert", "")
	assert.True(t, bindOptionalJSON(c, &input))
	assert.Empty(t, input.Title)

	c, _ = newContext(http.MethodPost, "/convert", `{"title":"Gala"}`)
	assert.True(t, bindOptionalJSON(c, &input))
	assert.Equal(t, "Gala", input.Title)
}

func TestGetUserFromContext(t *testing.T) {
	c, _ := newContext(http.MethodGet, "/x", "")
	assert.Nil(t, GetUserFromContext(c))

	c.Set(constants.ContextKeyUser, auth.UserSession{ID: "u1", CompanyID: "c1"})
	user := GetUserFromContext(c)
	require.NotNil(t, user)
	assert.Equal(t, "c1", user.CompanyID)
}

func TestRequireUserWritesUnauthorized(t *testing.T) {
	c, w := newContext(http.MethodGet, "/x", "")
	assert.Nil(t, requireUser(c))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPageParams(t *testing.T) {
	tests := []struct {
		query  string
		limit  int
		offset int
	}{
		{query: "", limit: constants.DefaultLimit, offset: 0},
		{query: "?limit=10&offset=20", limit: 10, offset: 20},
		{query: "?limit=5000", limit: constants.MaxLimit, offset: 0},
		{query: "?limit=-1&offset=-5", limit: constants.DefaultLimit, offset: 0},
		{query: "?limit=abc", limit: constants.DefaultLimit, offset: 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			c, _ := newContext(http.MethodGet, "/leads"+tt.query, "")
			limit, offset := pageParams(c)
			assert.Equal(t, tt.limit, limit)
			assert.Equal(t, tt.offset, offset)
		})
	}
}

func TestDateParam(t *testing.T) {
	c, _ := newContext(http.MethodGet, "/dashboard?from=2026-03-01&to=2026-03-31T23:59:59Z&bad=03/01/2026", "")

	from, err := dateParam(c, "from")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), *from)

	to, err := dateParam(c, "to")
	require.NoError(t, err)
	assert.Equal(t, 31, to.Day())

	missing, err := dateParam(c, "missing")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = dateParam(c, "bad")
	assert.True(t, appErrors.IsValidation(err))
}

func TestHandleListEnvelope(t *testing.T) {
	c, w := newContext(http.MethodGet, "/leads", "")
	HandleListEnvelope(c, func() (interface{}, int, error) {
		return []string{"a", "b"}, 7, nil
	})

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(7), body["total"])
	assert.Len(t, body["data"], 2)
}

func TestHandleWriteEnvelope(t *testing.T) {
	c, w := newContext(http.MethodPost, "/leads", "")
	HandleWriteEnvelope(c, http.StatusCreated, "lead", "Lead created successfully", func() (interface{}, error) {
		return map[string]string{"id": "l1"}, nil
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Lead created successfully", body[constants.FieldMessage])
	assert.Equal(t, "l1", body["lead"].(map[string]interface{})["id"])
}
