package pkg

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/simp-lee/rentadmin/internal/domain"
)

// Response is the standard JSON envelope for API responses.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// Success sends a 200 JSON response with the given data.
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

// Error sends a JSON error response carrying data. The status comes from
// domain.HTTPStatusCode and the message from SafeMessage.
func Error(c *gin.Context, err error, data any) {
	status := domain.HTTPStatusCode(err)
	c.JSON(status, Response{
		Code:    status,
		Message: SafeMessage(err, "internal error"),
		Data:    data,
	})
}

// SafeMessage extracts a user-safe message from an AppError. Internal errors
// and errors without a message yield fallback so technical details do not
// leak to the dashboard.
func SafeMessage(err error, fallback string) string {
	var appErr *domain.AppError
	if errors.As(err, &appErr) && appErr.Message != "" && appErr.Code != domain.CodeInternal {
		return appErr.Message
	}
	return fallback
}

// Bind binds the request body to obj and validates it. A failure is
// returned as a validation AppError naming the first offending field by its
// JSON name, so handlers can report it like any other domain error:
//
//	if err := pkg.Bind(c, &req); err != nil { ... }
func Bind(c *gin.Context, obj any) error {
	err := c.ShouldBind(obj)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return domain.NewAppError(domain.CodeValidation, "bad request", err)
	}
	fe := ve[0]
	name, ok := jsonTagMap(obj)[fe.StructField()]
	if !ok {
		name = strings.ToLower(fe.Field())
	}
	return domain.NewAppError(domain.CodeValidation, name+": "+fieldMessage(fe), err)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "min", "gte":
		return "Must be at least " + fe.Param()
	case "max", "lte":
		return "Must be at most " + fe.Param()
	case "oneof":
		return "Must be one of: " + fe.Param()
	}
	if fe.Param() != "" {
		return "Invalid value (" + fe.Tag() + "=" + fe.Param() + ")"
	}
	return "Invalid value (" + fe.Tag() + ")"
}

// jsonTagMap maps struct field names of obj to their JSON names.
func jsonTagMap(obj any) map[string]string {
	if obj == nil {
		return nil
	}
	t := reflect.TypeOf(obj)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	m := make(map[string]string, t.NumField())
	for i := range t.NumField() {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name != "" && name != "-" {
			m[f.Name] = name
		}
	}
	return m
}
