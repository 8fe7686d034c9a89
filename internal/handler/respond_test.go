package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/dukerupert/giftlink/internal/model"
)

func TestStatusFor(t *testing.T) {
	tests := map[model.Reason]int{
		model.ReasonValidation:        http.StatusBadRequest,
		model.ReasonNotFound:          http.StatusNotFound,
		model.ReasonChildUnavailable:  http.StatusConflict,
		model.ReasonInvalidTransition: http.StatusConflict,
		model.ReasonTokenInvalid:      http.StatusUnauthorized,
	}
	for reason, want := range tests {
		if got := statusFor(reason); got != want {
			t.Errorf("statusFor(%q) = %d, want %d", reason, got, want)
		}
	}
}

func TestDecodeJSON(t *testing.T) {
	var v struct {
		Email string `json:"email"`
	}

	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"email":"a@example.com"}`))
	if err := decodeJSON(httptest.NewRecorder(), req, &v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.Email != "a@example.com" {
		t.Errorf("email = %q", v.Email)
	}

	req = httptest.NewRequest("POST", "/", strings.NewReader(`{"email":`))
	if err := decodeJSON(httptest.NewRecorder(), req, &v); err == nil || err.Error() != "invalid JSON" {
		t.Errorf("err = %v, want invalid JSON", err)
	}

	big := `{"email":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	req = httptest.NewRequest("POST", "/", strings.NewReader(big))
	if err := decodeJSON(httptest.NewRecorder(), req, &v); err == nil || err.Error() != "request body too large" {
		t.Errorf("err = %v, want too large", err)
	}

	req = httptest.NewRequest("POST", "/", nil)
	req.ContentLength = -1
	if err := decodeJSON(httptest.NewRecorder(), req, &v); !errors.Is(err, errEmptyBody) {
		t.Errorf("err = %v, want empty body", err)
	}
}

func TestVerifyTokenSources(t *testing.T) {
	req := httptest.NewRequest("POST", "/auth/magic-link/verify", strings.NewReader(`{"token":"abc"}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	if got, err := verifyToken(httptest.NewRecorder(), req); err != nil || got != "abc" {
		t.Errorf("json token = %q, %v", got, err)
	}

	form := url.Values{"token": {"def"}}
	req = httptest.NewRequest("POST", "/auth/magic-link/verify", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if got, err := verifyToken(httptest.NewRecorder(), req); err != nil || got != "def" {
		t.Errorf("form token = %q, %v", got, err)
	}
}

func TestWriteErrorShape(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, http.StatusNotFound, "Reservation not found.")

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if body := rec.Body.String(); !strings.Contains(body, `"success":false`) || !strings.Contains(body, "Reservation not found.") {
		t.Errorf("body = %q", body)
	}
}
