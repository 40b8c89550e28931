package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zebramusic/cloackroom-app-sub001/internal/model"
)

// TestWriteErrorResponse_WritesUnifiedFormat は統一エラーフォーマットでレスポンスが書き込まれることを検証する。
func TestWriteErrorResponse_WritesUnifiedFormat(t *testing.T) {
	w := httptest.NewRecorder()

	WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("ticketCode is required."))

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if body.Code != model.ErrCodeValidation {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeValidation)
	}
	if body.Message != "ticketCode is required." {
		t.Errorf("message = %q", body.Message)
	}
	if body.Category != "validation" || body.Action == "" {
		t.Errorf("category/action = %q/%q", body.Category, body.Action)
	}
}

// TestWriteErrorResponse_Hint はログイン失敗時のヒントが出力され、空の場合は省略されることを検証する。
func TestWriteErrorResponse_Hint(t *testing.T) {
	w := httptest.NewRecorder()
	WriteErrorResponse(w, http.StatusUnauthorized, model.NewInvalidCredentialsError(model.RoleAdmin))

	var withHint map[string]any
	if err := json.NewDecoder(w.Body).Decode(&withHint); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if withHint["hint"] != "admin" {
		t.Errorf("hint = %v, want admin", withHint["hint"])
	}

	w = httptest.NewRecorder()
	WriteErrorResponse(w, http.StatusUnauthorized, model.NewInvalidCredentialsError(""))

	var noHint map[string]any
	if err := json.NewDecoder(w.Body).Decode(&noHint); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if _, ok := noHint["hint"]; ok {
		t.Errorf("hint should be omitted, got %v", noHint["hint"])
	}
}

func TestWriteInternalServerError(t *testing.T) {
	w := httptest.NewRecorder()

	WriteInternalServerError(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if body.Code != model.ErrCodeInternal || body.Category != "system" {
		t.Errorf("body = %+v", body)
	}
}
