package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jmerrifield20/starnotary/internal/chain"
	"github.com/jmerrifield20/starnotary/internal/ledgerstore"
	"github.com/jmerrifield20/starnotary/internal/notary/handler"
	"github.com/jmerrifield20/starnotary/internal/notary/service"
	"github.com/jmerrifield20/starnotary/internal/sigverify"
	"github.com/jmerrifield20/starnotary/internal/story"
	"github.com/jmerrifield20/starnotary/internal/validation"
	"github.com/jmerrifield20/starnotary/pkg/client"
)

// ── Test server ─────────────────────────────────────────────────────────

func notaryServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ch, err := chain.New(context.Background(), ledgerstore.NewMemoryStore(), zap.NewNop())
	if err != nil {
		t.Fatalf("chain.New: %v", err)
	}
	svc := service.New(
		validation.New(5*time.Minute, zap.NewNop()),
		ch,
		story.NewCodec(0, story.Truncate),
		sigverify.NewBitcoinVerifier(&chaincfg.MainNetParams),
		zap.NewNop(),
	)
	r := gin.New()
	handler.NewNotaryHandler(svc, zap.NewNop()).Register(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

// ── Tests ───────────────────────────────────────────────────────────────

func TestNew_invalidURL(t *testing.T) {
	if _, err := client.New("not a url"); err == nil {
		t.Fatal("expected error for invalid URL")
	}
	if _, err := client.New("http://localhost", client.WithTimeout(0)); err == nil {
		t.Fatal("expected error for zero timeout")
	}
}

func TestNotarizeFlow(t *testing.T) {
	srv := notaryServer(t)
	c := client.MustNew(srv.URL)
	ctx := context.Background()

	key, _, address, err := sigverify.NewKey(&chaincfg.MainNetParams)
	if err != nil {
		t.Fatal(err)
	}

	challenge, err := c.RequestValidation(ctx, address)
	if err != nil {
		t.Fatalf("RequestValidation: %v", err)
	}
	if challenge.Address != address {
		t.Errorf("challenge address = %q", challenge.Address)
	}

	sig, err := sigverify.SignMessage(key, challenge.Message, true)
	if err != nil {
		t.Fatal(err)
	}
	res, err := c.ValidateSignature(ctx, address, sig)
	if err != nil {
		t.Fatalf("ValidateSignature: %v", err)
	}
	if !res.RegisterStar || res.Status.MessageSignature != "valid" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Status.Message != challenge.Message {
		t.Errorf("status message = %q, want %q", res.Status.Message, challenge.Message)
	}

	b, err := c.RegisterStar(ctx, address, client.Star{RA: "16h 29m 1.0s", Dec: "-26° 29' 24.9", Story: "Found star"})
	if err != nil {
		t.Fatalf("RegisterStar: %v", err)
	}
	if b.Height != 1 || b.Body.Star.StoryDecoded != "Found star" {
		t.Errorf("unexpected block: %+v", b)
	}

	got, err := c.Block(ctx, 1)
	if err != nil || got.Hash != b.Hash {
		t.Errorf("Block(1) = %+v, %v", got, err)
	}
	byHash, err := c.StarByHash(ctx, b.Hash)
	if err != nil || byHash.Height != 1 {
		t.Errorf("StarByHash = %+v, %v", byHash, err)
	}
	mine, err := c.StarsByAddress(ctx, address)
	if err != nil || len(mine) != 1 {
		t.Errorf("StarsByAddress = %+v, %v", mine, err)
	}
	all, err := c.Chain(ctx)
	if err != nil || len(all) != 2 {
		t.Errorf("Chain = %d blocks, %v", len(all), err)
	}
	v, err := c.VerifyChain(ctx)
	if err != nil || !v.Valid || v.Height != 1 {
		t.Errorf("VerifyChain = %+v, %v", v, err)
	}

	_, err = c.RegisterStar(ctx, address, client.Star{RA: "r", Dec: "d", Story: "again"})
	if !errors.Is(err, client.ErrNotAuthorized) {
		t.Errorf("second RegisterStar: expected ErrNotAuthorized, got %v", err)
	}
}

func TestErrors(t *testing.T) {
	srv := notaryServer(t)
	c := client.MustNew(srv.URL)
	ctx := context.Background()

	_, err := c.Block(ctx, 42)
	if !errors.Is(err, client.ErrNotFound) {
		t.Errorf("Block(42): expected ErrNotFound, got %v", err)
	}

	_, err = c.ValidateSignature(ctx, "1Nobody", "sig")
	if !errors.Is(err, client.ErrNotFound) {
		t.Errorf("ValidateSignature: expected ErrNotFound, got %v", err)
	}

	_, err = c.RequestValidation(ctx, "")
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("RequestValidation(\"\"): expected 400 APIError, got %v", err)
	}
	if !errors.Is(err, client.ErrBadRequest) {
		t.Errorf("expected ErrBadRequest, got %v", err)
	}
}

func TestUserAgent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := client.MustNew(srv.URL, client.WithUserAgent("starctl/test"))
	if _, err := c.Chain(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got != "starctl/test" {
		t.Errorf("User-Agent = %q", got)
	}
}
