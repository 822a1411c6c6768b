package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/notebins/notebins/internal/apperror"
	"github.com/stretchr/testify/require"
)

func serveError(t *testing.T, dev bool, err error) (int, map[string]interface{}) {
	t.Helper()
	r := gin.New()
	r.Use(ErrorHandler(dev))
	r.GET("/e", func(c *gin.Context) { _ = c.Error(err) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/e", nil))
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestErrorHandler_Kinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{apperror.BadRequest("Content is required"), http.StatusBadRequest, "Content is required"},
		{apperror.NotFoundf("Note with ID %s not found", "x"), http.StatusNotFound, "Note with ID x not found"},
		{apperror.Unauthorizedf("Invalid password"), http.StatusUnauthorized, "Invalid password"},
		{fmt.Errorf("load: %w", apperror.NotFoundf("gone")), http.StatusNotFound, "gone"},
		{errors.New("mongo exploded"), http.StatusInternalServerError, "Internal Server Error"},
		{apperror.Wrap(errors.New("redis down"), "Rate limit check failed"), http.StatusInternalServerError, "Internal Server Error"},
	}
	for _, tc := range cases {
		status, body := serveError(t, false, tc.err)
		require.Equal(t, tc.status, status, tc.err.Error())
		require.Equal(t, false, body["success"])
		require.Equal(t, tc.msg, body["message"])
		require.NotContains(t, body, "stack")
	}
}

func TestErrorHandler_DevStack(t *testing.T) {
	_, body := serveError(t, true, fmt.Errorf("save: %w", errors.New("disk full")))
	require.Equal(t, "Internal Server Error", body["message"])
	require.Contains(t, body["stack"], "disk full")
}

func TestErrorHandler_BindingErrors(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler(false))
	r.POST("/b", func(c *gin.Context) {
		var req struct {
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			_ = c.Error(err)
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	rq := httptest.NewRequest(http.MethodPost, "/b", strings.NewReader(`{}`))
	rq.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, rq)
	require.Equal(t, http.StatusBadRequest, w.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "Validation Error", body.Message)
	require.Len(t, body.Errors, 1)
	require.Equal(t, "password", body.Errors[0].Field)
	require.Equal(t, "password is required", body.Errors[0].Message)

	w = httptest.NewRecorder()
	rq = httptest.NewRequest(http.MethodPost, "/b", strings.NewReader(`{"password":`))
	rq.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, rq)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "Invalid request body")
}

func TestNotFound(t *testing.T) {
	r := gin.New()
	r.NoRoute(NotFound)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
	require.JSONEq(t, `{"success":false,"message":"Not Found - /nope","errors":null}`, w.Body.String())
}
