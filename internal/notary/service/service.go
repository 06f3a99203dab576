// Package service implements the star notary workflow: an address proves
// ownership by signing a challenge, then spends that proof on exactly one
// ledger entry.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jmerrifield20/starnotary/internal/chain"
	"github.com/jmerrifield20/starnotary/internal/story"
	"github.com/jmerrifield20/starnotary/internal/validation"
)

// Sentinel errors returned by Service. Handlers map them to HTTP statuses.
var (
	ErrInvalidAddress   = errors.New("address is required")
	ErrInvalidStarData  = errors.New("invalid star data")
	ErrNotAuthorized    = errors.New("address is not authorized to register a star")
	ErrNoPendingRequest = errors.New("no validation request for address")
)

// Verification verdicts reported to clients.
const (
	SignatureValid   = "valid"
	SignatureInvalid = "invalid"
)

// Verifier checks a signed message. *sigverify.BitcoinVerifier satisfies it.
type Verifier interface {
	Verify(message, address, signature string) (bool, error)
}

// Challenge is what a client must sign, and how long it has to do so.
type Challenge struct {
	Address          string  `json:"address"`
	RequestTimeStamp string  `json:"requestTimeStamp"`
	Message          string  `json:"message"`
	ValidationWindow float64 `json:"validationWindow"`
}

// SignatureStatus echoes the challenge with the verdict on the signature.
type SignatureStatus struct {
	Address          string  `json:"address"`
	RequestTimeStamp string  `json:"requestTimeStamp"`
	Message          string  `json:"message"`
	ValidationWindow float64 `json:"validationWindow"`
	MessageSignature string  `json:"messageSignature"`
}

// SignatureResult is the response to a submitted signature.
type SignatureResult struct {
	RegisterStar bool            `json:"registerStar"`
	Status       SignatureStatus `json:"status"`
}

// Service coordinates the validation registry, the chain and the verifier.
type Service struct {
	registry *validation.Registry
	chain    *chain.Chain
	codec    story.Codec
	verifier Verifier
	logger   *zap.Logger
}

// New creates a Service.
func New(registry *validation.Registry, ch *chain.Chain, codec story.Codec, verifier Verifier, logger *zap.Logger) *Service {
	return &Service{
		registry: registry,
		chain:    ch,
		codec:    codec,
		verifier: verifier,
		logger:   logger,
	}
}

// Registry exposes the validation registry for housekeeping and metrics.
func (s *Service) Registry() *validation.Registry { return s.registry }

func timestamp(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// BeginChallenge issues, or re-issues while still live, the challenge for
// address.
func (s *Service) BeginChallenge(address string) (*Challenge, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, ErrInvalidAddress
	}
	req, _ := s.registry.RequestChallenge(address)
	return &Challenge{
		Address:          req.Address,
		RequestTimeStamp: timestamp(req.IssuedAt),
		Message:          req.Message(),
		ValidationWindow: validation.Seconds(req.Remaining(s.registry.Now())),
	}, nil
}

// SubmitSignature checks signature against the challenge for address and
// records the outcome. An invalid or late signature is not an error; it is
// reported through the result.
func (s *Service) SubmitSignature(ctx context.Context, address, signature string) (*SignatureResult, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, ErrInvalidAddress
	}
	req, ok := s.registry.Lookup(address)
	if !ok {
		return nil, ErrNoPendingRequest
	}

	valid := s.safeVerify(req.Message(), address, signature)
	out, err := s.registry.RecordSignatureResult(req, valid)
	if err != nil {
		if errors.Is(err, validation.ErrNoRequest) {
			return nil, ErrNoPendingRequest
		}
		return nil, err
	}

	// A signature over a replaced challenge says nothing about the current one.
	verdict := SignatureInvalid
	if valid && !out.Superseded {
		verdict = SignatureValid
	}
	s.logger.Info("signature checked",
		zap.String("address", address),
		zap.String("result", verdict),
		zap.Bool("authorized", out.Authorized),
		zap.Duration("remaining", out.Remaining),
	)

	return &SignatureResult{
		RegisterStar: out.Authorized,
		Status: SignatureStatus{
			Address:          out.Request.Address,
			RequestTimeStamp: timestamp(out.Request.IssuedAt),
			Message:          out.Request.Message(),
			ValidationWindow: validation.Seconds(out.Remaining),
			MessageSignature: verdict,
		},
	}, nil
}

// safeVerify turns verifier errors and panics into an invalid verdict.
func (s *Service) safeVerify(message, address, signature string) (valid bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("signature verifier panicked",
				zap.String("address", address),
				zap.Any("panic", r),
			)
			valid = false
		}
	}()
	ok, err := s.verifier.Verify(message, address, signature)
	if err != nil {
		s.logger.Debug("signature rejected", zap.String("address", address), zap.Error(err))
		return false
	}
	return ok
}

// RegisterStar appends a block for address if it holds an authorization,
// consuming it. If the append fails the authorization is put back.
func (s *Service) RegisterStar(ctx context.Context, address string, star chain.Star) (*chain.Block, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, ErrInvalidAddress
	}
	if !s.registry.IsAuthorized(address) {
		return nil, ErrNotAuthorized
	}
	if strings.TrimSpace(star.RA) == "" || strings.TrimSpace(star.Dec) == "" {
		return nil, fmt.Errorf("%w: ra and dec are required", ErrInvalidStarData)
	}

	encoded, err := s.codec.Prepare(star.Story)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidStarData, err)
	}

	grant, ok := s.registry.ConsumeAuthorization(address)
	if !ok {
		return nil, ErrNotAuthorized
	}

	b, err := s.chain.AddBlock(ctx, address, chain.Star{RA: star.RA, Dec: star.Dec, Story: encoded})
	if err != nil {
		s.registry.Reinstate(grant)
		s.logger.Error("register star", zap.String("address", address), zap.Error(err))
		return nil, err
	}

	s.logger.Info("star registered",
		zap.String("address", address),
		zap.Uint64("height", b.Height),
		zap.String("hash", b.Hash),
	)
	return s.decorate(b), nil
}

// Block returns the block at height.
func (s *Service) Block(ctx context.Context, height uint64) (*chain.Block, error) {
	b, err := s.chain.GetBlock(ctx, height)
	if err != nil {
		return nil, err
	}
	return s.decorate(b), nil
}

// BlockByHash returns the block with the given hash.
func (s *Service) BlockByHash(ctx context.Context, hash string) (*chain.Block, error) {
	b, err := s.chain.SearchByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	return s.decorate(b), nil
}

// StarsByAddress returns every block registered by address, oldest first.
func (s *Service) StarsByAddress(ctx context.Context, address string) ([]*chain.Block, error) {
	if address == "" {
		// Only genesis has an empty address, and it holds no star.
		return []*chain.Block{}, nil
	}
	blocks, err := s.chain.SearchByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	return s.decorateAll(blocks), nil
}

// Chain returns the whole ledger, genesis first.
func (s *Service) Chain(ctx context.Context) ([]*chain.Block, error) {
	blocks, err := s.chain.GetChain(ctx)
	if err != nil {
		return nil, err
	}
	return s.decorateAll(blocks), nil
}

// Height returns the tip height and whether the ledger has any block.
func (s *Service) Height() (uint64, bool) {
	return s.chain.Height()
}

// VerifyChain self-validates the ledger. It returns nil, an
// *chain.IntegrityError or a storage error.
func (s *Service) VerifyChain(ctx context.Context) error {
	err := s.chain.Verify(ctx)
	var ie *chain.IntegrityError
	if errors.As(err, &ie) {
		s.logger.Warn("ledger integrity check failed",
			zap.Uint64("height", ie.Height),
			zap.String("kind", string(ie.Kind)),
		)
	}
	return err
}

// decorate attaches the decoded story to b, which must be a private copy.
func (s *Service) decorate(b *chain.Block) *chain.Block {
	if b.Body.Star == nil {
		return b
	}
	decoded, err := story.Decode(b.Body.Star.Story)
	if err != nil {
		s.logger.Warn("undecodable story",
			zap.Uint64("height", b.Height),
			zap.Error(err),
		)
		return b
	}
	b.Body.Star.StoryDecoded = decoded
	return b
}

func (s *Service) decorateAll(blocks []*chain.Block) []*chain.Block {
	for _, b := range blocks {
		s.decorate(b)
	}
	return blocks
}
