package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/notebins/notebins/internal/apperror"
	"github.com/notebins/notebins/pkg/logger"
)

var jsonNamesOnce sync.Once

// useJSONFieldNames makes gin's validator report fields by their json names,
// the same names service validation errors use.
func useJSONFieldNames() {
	jsonNamesOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

type errorBody struct {
	Success bool                  `json:"success"`
	Message string                `json:"message"`
	Errors  []apperror.FieldError `json:"errors"`
	Stack   string                `json:"stack,omitempty"`
}

// ErrorHandler renders the last error attached with c.Error as the JSON error
// envelope. dev adds the error chain as "stack".
func ErrorHandler(dev bool) gin.HandlerFunc {
	useJSONFieldNames()
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		status, body := describe(err)
		if status >= http.StatusInternalServerError {
			logger.Errorf("%s %s - %v", c.Request.Method, c.Request.URL.Path, err)
		} else {
			logger.Warnf("%s %s - %d %v", c.Request.Method, c.Request.URL.Path, status, err)
		}
		if dev {
			body.Stack = chain(err)
		}
		c.JSON(status, body)
	}
}

func describe(err error) (int, errorBody) {
	body := errorBody{Success: false, Message: "Internal Server Error"}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		body.Message = "Validation Error"
		for _, fe := range ve {
			body.Errors = append(body.Errors, apperror.FieldError{Field: fieldName(fe), Message: fieldMessage(fe)})
		}
		return http.StatusBadRequest, body
	}
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		body.Message = "Request body too large"
		return http.StatusRequestEntityTooLarge, body
	}
	var se *json.SyntaxError
	var te *json.UnmarshalTypeError
	if errors.As(err, &se) || errors.As(err, &te) || errors.Is(err, io.ErrUnexpectedEOF) {
		body.Message = "Invalid request body"
		return http.StatusBadRequest, body
	}

	if apperror.KindOf(err) == apperror.Internal {
		return http.StatusInternalServerError, body
	}
	var ae *apperror.Error
	errors.As(err, &ae)
	body.Message = ae.Message
	body.Errors = ae.Fields
	return ae.Kind.Status(), body
}

func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	if ns == "" {
		return fe.Field()
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

// chain renders err and each wrapped cause, one per line.
func chain(err error) string {
	var b strings.Builder
	for e := err; e != nil; e = errors.Unwrap(e) {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(e.Error())
	}
	return b.String()
}

// NotFound answers unmatched routes.
func NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, errorBody{Success: false, Message: "Not Found - " + c.Request.URL.Path})
}
