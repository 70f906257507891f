package participant

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/agora/backend/internal/model/participant"
)

func TestListParticipants(t *testing.T) {
	r := chi.NewRouter()
	New(participant.MustRegistry(participant.Seed())).RegisterRoutes(r)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/participants", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var body []map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if len(body) != len(participant.Seed()) {
		t.Fatalf("expected %d participants, got %d", len(participant.Seed()), len(body))
	}
	if body[0]["name"] != "Albert Einstein" {
		t.Fatalf("unexpected first participant: %v", body[0])
	}
	if _, leaked := body[0]["directive"]; leaked {
		t.Fatal("directive must not be exposed")
	}
}
