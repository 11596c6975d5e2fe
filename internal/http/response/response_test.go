package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/urbanwatch/urbanwatch-backend/internal/platform/apierr"
)

func record(t *testing.T, fn func(c *gin.Context)) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	fn(c)

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return w, body
}

func TestOKEnvelope(t *testing.T) {
	w, body := record(t, func(c *gin.Context) {
		OK(c, "Concern created.", gin.H{"id": "abc"})
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body["success"] != true || body["message"] != "Concern created." {
		t.Fatalf("body = %v", body)
	}
	if data, ok := body["data"].(map[string]any); !ok || data["id"] != "abc" {
		t.Fatalf("data = %v", body["data"])
	}
}

func TestCreatedOmitsNilData(t *testing.T) {
	w, body := record(t, func(c *gin.Context) {
		Created(c, "Device registered.", nil)
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d", w.Code)
	}
	if _, present := body["data"]; present {
		t.Fatalf("nil data should be omitted: %v", body)
	}
}

func TestErrorDomainState(t *testing.T) {
	w, body := record(t, func(c *gin.Context) {
		Error(c, apierr.DomainState("Only pending concerns can be edited."))
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if body["success"] != false || body["message"] != "Only pending concerns can be edited." {
		t.Fatalf("body = %v", body)
	}
}

func TestErrorValidationCarriesDetails(t *testing.T) {
	w, body := record(t, func(c *gin.Context) {
		Error(c, apierr.Validation(errors.New("title is required")))
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", w.Code)
	}
	if body["message"] != "Validation failed." {
		t.Fatalf("message = %v", body["message"])
	}
	errs, ok := body["errors"].([]any)
	if !ok || len(errs) != 1 || errs[0] != "title is required" {
		t.Fatalf("errors = %v", body["errors"])
	}
}

func TestErrorHidesInternals(t *testing.T) {
	w, body := record(t, func(c *gin.Context) {
		Error(c, errors.New("pq: connection refused"))
	})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if body["message"] != "Something went wrong. Please try again later." {
		t.Fatalf("internal detail leaked: %v", body)
	}
}

func TestErrorNotFoundPassthrough(t *testing.T) {
	w, body := record(t, func(c *gin.Context) {
		Error(c, apierr.NotFound("Concern not found."))
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	if body["message"] != "Concern not found." {
		t.Fatalf("body = %v", body)
	}
}

func TestBadRequest(t *testing.T) {
	w, body := record(t, func(c *gin.Context) {
		BadRequest(c, "Invalid request body.")
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if body["success"] != false || body["message"] != "Invalid request body." {
		t.Fatalf("body = %v", body)
	}
}
