package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/geocoder89/medportal/internal/domain/user"
	"github.com/geocoder89/medportal/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	adminID   = "0b7f3c1e-1111-4a4a-8b8b-000000000001"
	doctorID  = "0b7f3c1e-2222-4a4a-8b8b-000000000002"
	patientID = "0b7f3c1e-3333-4a4a-8b8b-000000000003"
	recordID  = "6a1e2d3c-4b5a-4f6e-9d8c-7b6a5f4e3d2c"
	otherID   = "6a1e2d3c-4b5a-4f6e-9d8c-000000000099"
)

// as stands in for RequireAuth in handler tests.
func as(role user.Role, id string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middlewares.CtxUserID, id)
		c.Set(middlewares.CtxRole, role)
		c.Set(middlewares.CtxEmail, string(role)+"@example.com")
		c.Next()
	}
}

func doRequest(t *testing.T, r http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			rd = bytes.NewBufferString(b)
		default:
			raw, err := json.Marshal(b)
			if err != nil {
				t.Fatalf("marshal body: %v", err)
			}
			rd = bytes.NewReader(raw)
		}
	}

	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details struct {
			Fields []struct {
				Field string `json:"field"`
				Rule  string `json:"rule"`
			} `json:"fields"`
		} `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()

	var env errorEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error envelope: %v body=%s", err, w.Body.String())
	}
	return env
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()

	if w.Code != want {
		t.Fatalf("status = %d, want %d, body=%s", w.Code, want, w.Body.String())
	}
}

func expectCode(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()

	expectStatus(t, w, status)
	if got := decodeError(t, w).Error.Code; got != code {
		t.Fatalf("error code = %q, want %q", got, code)
	}
}

func ptr[T any](v T) *T { return &v }
