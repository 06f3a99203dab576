package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jmerrifield20/starnotary/internal/chain"
	"github.com/jmerrifield20/starnotary/internal/ledgerstore"
	"github.com/jmerrifield20/starnotary/internal/notary/handler"
	"github.com/jmerrifield20/starnotary/internal/notary/service"
	"github.com/jmerrifield20/starnotary/internal/story"
	"github.com/jmerrifield20/starnotary/internal/validation"
)

// stubVerifier accepts exactly the signature "good".
type stubVerifier struct{}

func (stubVerifier) Verify(_, _, signature string) (bool, error) {
	return signature == "good", nil
}

func setupRouter(t *testing.T) (*gin.Engine, *ledgerstore.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := ledgerstore.NewMemoryStore()
	ch, err := chain.New(context.Background(), store, zap.NewNop())
	if err != nil {
		t.Fatalf("chain.New: %v", err)
	}
	reg := validation.New(5*time.Minute, zap.NewNop())
	svc := service.New(reg, ch, story.NewCodec(0, story.Truncate), stubVerifier{}, zap.NewNop())

	r := gin.New()
	r.Use(handler.RequestID())
	handler.NewNotaryHandler(svc, zap.NewNop()).Register(r)
	return r, store
}

func do(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

var starBody = map[string]any{
	"address": "1Abc",
	"star": map[string]string{
		"ra":    "16h 29m 1.0s",
		"dec":   "-26° 29' 24.9",
		"story": "Found star using https://www.google.com/sky/",
	},
}

func registerStar(t *testing.T, r *gin.Engine) chain.Block {
	t.Helper()
	if w := do(t, r, http.MethodPost, "/requestValidation", map[string]string{"address": "1Abc"}); w.Code != http.StatusOK {
		t.Fatalf("requestValidation: %d %s", w.Code, w.Body.String())
	}
	w := do(t, r, http.MethodPost, "/message-signature/validate", map[string]string{"address": "1Abc", "signature": "good"})
	if w.Code != http.StatusOK {
		t.Fatalf("validate: %d %s", w.Code, w.Body.String())
	}
	w = do(t, r, http.MethodPost, "/block", starBody)
	if w.Code != http.StatusOK {
		t.Fatalf("block: %d %s", w.Code, w.Body.String())
	}
	return decode[chain.Block](t, w)
}

func TestRequestValidation_200(t *testing.T) {
	r, _ := setupRouter(t)

	w := do(t, r, http.MethodPost, "/requestValidation", map[string]string{"address": "1Abc"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode[service.Challenge](t, w)
	if resp.Address != "1Abc" {
		t.Errorf("address = %q", resp.Address)
	}
	if want := "1Abc:" + resp.RequestTimeStamp + ":starRegistry"; resp.Message != want {
		t.Errorf("message = %q, want %q", resp.Message, want)
	}
	if resp.ValidationWindow <= 0 || resp.ValidationWindow > 300 {
		t.Errorf("validationWindow = %v", resp.ValidationWindow)
	}
	if w.Header().Get(handler.RequestIDHeader) == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestRequestValidation_400_missingAddress(t *testing.T) {
	r, _ := setupRouter(t)
	w := do(t, r, http.MethodPost, "/requestValidation", map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestValidateSignature_404_noRequest(t *testing.T) {
	r, _ := setupRouter(t)
	w := do(t, r, http.MethodPost, "/message-signature/validate", map[string]string{"address": "1Abc", "signature": "good"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestValidateSignature_400_missingSignature(t *testing.T) {
	r, _ := setupRouter(t)
	w := do(t, r, http.MethodPost, "/message-signature/validate", map[string]string{"address": "1Abc"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestValidateSignature_responseShape(t *testing.T) {
	r, _ := setupRouter(t)
	do(t, r, http.MethodPost, "/requestValidation", map[string]string{"address": "1Abc"})

	w := do(t, r, http.MethodPost, "/message-signature/validate", map[string]string{"address": "1Abc", "signature": "bad"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := decode[map[string]any](t, w)
	if resp["registerStar"] != false {
		t.Errorf("registerStar = %v", resp["registerStar"])
	}
	status, ok := resp["status"].(map[string]any)
	if !ok {
		t.Fatalf("missing status object: %s", w.Body.String())
	}
	for _, k := range []string{"address", "requestTimeStamp", "message", "validationWindow", "messageSignature"} {
		if _, ok := status[k]; !ok {
			t.Errorf("status missing %q", k)
		}
	}
	if status["messageSignature"] != "invalid" {
		t.Errorf("messageSignature = %v", status["messageSignature"])
	}
}

func TestRegisterStar_fullFlow(t *testing.T) {
	r, _ := setupRouter(t)
	b := registerStar(t, r)

	if b.Height != 1 || b.Body.Address != "1Abc" {
		t.Fatalf("unexpected block: %+v", b)
	}
	if b.Body.Star.StoryDecoded != "Found star using https://www.google.com/sky/" {
		t.Errorf("storyDecoded = %q", b.Body.Star.StoryDecoded)
	}

	w := do(t, r, http.MethodPost, "/block", starBody)
	if w.Code != http.StatusForbidden {
		t.Fatalf("second register: expected 403, got %d", w.Code)
	}
}

func TestRegisterStar_403_withoutValidation(t *testing.T) {
	r, _ := setupRouter(t)
	w := do(t, r, http.MethodPost, "/block", starBody)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestRegisterStar_400_invalidStar(t *testing.T) {
	tests := []struct {
		name string
		body any
	}{
		{"missing star", map[string]any{"address": "1Abc"}},
		{"non ascii story", map[string]any{"address": "1Abc", "star": map[string]string{"ra": "r", "dec": "d", "story": "é"}}},
		{"missing ra", map[string]any{"address": "1Abc", "star": map[string]string{"dec": "d", "story": "s"}}},
		{"missing address", map[string]any{"star": map[string]string{"ra": "r", "dec": "d", "story": "s"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := setupRouter(t)
			do(t, r, http.MethodPost, "/requestValidation", map[string]string{"address": "1Abc"})
			do(t, r, http.MethodPost, "/message-signature/validate", map[string]string{"address": "1Abc", "signature": "good"})

			w := do(t, r, http.MethodPost, "/block", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestGetBlock(t *testing.T) {
	r, _ := setupRouter(t)
	registered := registerStar(t, r)

	tests := []struct {
		path string
		want int
	}{
		{"/block/0", http.StatusOK},
		{"/block/1", http.StatusOK},
		{"/block/2", http.StatusNotFound},
		{"/block/-1", http.StatusNotFound},
		{"/block/abc", http.StatusNotFound},
	}
	for _, tt := range tests {
		w := do(t, r, http.MethodGet, tt.path, nil)
		if w.Code != tt.want {
			t.Errorf("GET %s: expected %d, got %d", tt.path, tt.want, w.Code)
		}
	}

	b := decode[chain.Block](t, do(t, r, http.MethodGet, "/block/1", nil))
	if b.Hash != registered.Hash {
		t.Errorf("hash = %q, want %q", b.Hash, registered.Hash)
	}
}

func TestSearchStars(t *testing.T) {
	r, _ := setupRouter(t)
	registered := registerStar(t, r)

	for _, path := range []string{"/stars/address/1Abc", "/stars/address:1Abc"} {
		w := do(t, r, http.MethodGet, path, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("GET %s: %d", path, w.Code)
		}
		blocks := decode[[]chain.Block](t, w)
		if len(blocks) != 1 || blocks[0].Hash != registered.Hash {
			t.Errorf("GET %s: unexpected blocks %+v", path, blocks)
		}
	}

	for _, path := range []string{"/stars/hash/" + registered.Hash, "/stars/hash:" + registered.Hash} {
		w := do(t, r, http.MethodGet, path, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("GET %s: %d", path, w.Code)
		}
		if b := decode[chain.Block](t, w); b.Height != 1 {
			t.Errorf("GET %s: height %d", path, b.Height)
		}
	}

	w := do(t, r, http.MethodGet, "/stars/address/1Nobody", nil)
	if w.Code != http.StatusOK || w.Body.String() != "[]" {
		t.Errorf("unknown address: %d %s", w.Code, w.Body.String())
	}
	if w := do(t, r, http.MethodGet, "/stars/hash/deadbeef", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown hash: expected 404, got %d", w.Code)
	}
	if w := do(t, r, http.MethodGet, "/stars/name/vega", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown query: expected 404, got %d", w.Code)
	}
}

func TestLegacyRoutes(t *testing.T) {
	r, _ := setupRouter(t)
	registered := registerStar(t, r)

	w := do(t, r, http.MethodGet, "/star/address:1Abc", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /star/address:1Abc: %d", w.Code)
	}
	if blocks := decode[[]chain.Block](t, w); len(blocks) != 1 || blocks[0].Hash != registered.Hash {
		t.Errorf("GET /star/address:1Abc: unexpected blocks %+v", blocks)
	}

	w = do(t, r, http.MethodGet, "/star/hash:"+registered.Hash, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /star/hash: %d", w.Code)
	}
	if b := decode[chain.Block](t, w); b.Height != 1 || b.Body.Star == nil || b.Body.Star.StoryDecoded == "" {
		t.Errorf("GET /star/hash: unexpected block %+v", b)
	}

	if w := do(t, r, http.MethodGet, "/star/hash:deadbeef", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown hash: expected 404, got %d", w.Code)
	}

	w = do(t, r, http.MethodGet, "/getchain", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /getchain: %d", w.Code)
	}
	if blocks := decode[[]chain.Block](t, w); len(blocks) != 2 || blocks[1].Hash != registered.Hash {
		t.Errorf("GET /getchain: unexpected chain %+v", blocks)
	}
}

func TestGetChain_andVerify(t *testing.T) {
	r, store := setupRouter(t)
	registerStar(t, r)

	blocks := decode[[]chain.Block](t, do(t, r, http.MethodGet, "/chain", nil))
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}

	resp := decode[map[string]any](t, do(t, r, http.MethodGet, "/chain/verify", nil))
	if resp["valid"] != true {
		t.Fatalf("expected valid chain, got %v", resp)
	}

	// Rewrite block 1 underneath the running chain.
	raw, err := store.Get(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	var stored map[string]any
	if err := json.Unmarshal(raw, &stored); err != nil {
		t.Fatal(err)
	}
	stored["timestamp"] = 1
	tampered, _ := json.Marshal(stored)
	if err := store.Put(context.Background(), 1, tampered); err != nil {
		t.Fatal(err)
	}

	resp = decode[map[string]any](t, do(t, r, http.MethodGet, "/chain/verify", nil))
	if resp["valid"] != false || resp["kind"] != string(chain.HashMismatch) {
		t.Fatalf("expected hash mismatch, got %v", resp)
	}
}

func TestSplitStarQueryRejectsNestedPaths(t *testing.T) {
	r, _ := setupRouter(t)
	if w := do(t, r, http.MethodGet, "/stars/address/1Abc/extra", nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}
