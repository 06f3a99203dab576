package chain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Star is the payload a wallet owner registers.
type Star struct {
	RA    string `json:"ra"`
	Dec   string `json:"dec"`
	Story string `json:"story"` // hex-encoded, see package story

	// StoryDecoded is attached on read paths only. It is never stored or hashed.
	StoryDecoded string `json:"storyDecoded,omitempty"`
}

// Body binds the authorizing address to its star. Genesis has neither.
type Body struct {
	Address string `json:"address"`
	Star    *Star  `json:"star,omitempty"`
}

// Block is a single immutable ledger entry.
type Block struct {
	Hash         string `json:"hash"`
	Height       uint64 `json:"height"`
	Body         Body   `json:"body"`
	Timestamp    int64  `json:"timestamp"` // seconds since epoch
	PreviousHash string `json:"previousHash"`
}

// canonical* mirror Block without the hash and the decoded story. Field order
// is the serialization order and must not change.
type canonicalStar struct {
	RA    string `json:"ra"`
	Dec   string `json:"dec"`
	Story string `json:"story"`
}

type canonicalBody struct {
	Address string         `json:"address"`
	Star    *canonicalStar `json:"star,omitempty"`
}

type canonicalBlock struct {
	Height       uint64        `json:"height"`
	Timestamp    int64         `json:"timestamp"`
	Body         canonicalBody `json:"body"`
	PreviousHash string        `json:"previousHash"`
}

// storedBlock is the on-disk form: the canonical fields plus the hash.
type storedBlock struct {
	canonicalBlock
	Hash string `json:"hash"`
}

func (b *Block) canonical() canonicalBlock {
	cb := canonicalBlock{
		Height:       b.Height,
		Timestamp:    b.Timestamp,
		Body:         canonicalBody{Address: b.Body.Address},
		PreviousHash: b.PreviousHash,
	}
	if s := b.Body.Star; s != nil {
		cb.Body.Star = &canonicalStar{RA: s.RA, Dec: s.Dec, Story: s.Story}
	}
	return cb
}

// CanonicalBytes returns the bytes the block hash is computed over.
func (b *Block) CanonicalBytes() ([]byte, error) {
	data, err := json.Marshal(b.canonical())
	if err != nil {
		return nil, fmt.Errorf("marshal canonical block: %w", err)
	}
	return data, nil
}

// ComputeHash returns the lowercase hex SHA-256 of the canonical bytes.
func (b *Block) ComputeHash() (string, error) {
	data, err := b.CanonicalBytes()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Clone returns a deep copy so callers can decorate a block freely.
func (b *Block) Clone() *Block {
	cp := *b
	if b.Body.Star != nil {
		s := *b.Body.Star
		cp.Body.Star = &s
	}
	return &cp
}

func encodeBlock(b *Block) ([]byte, error) {
	data, err := json.Marshal(storedBlock{canonicalBlock: b.canonical(), Hash: b.Hash})
	if err != nil {
		return nil, fmt.Errorf("marshal block %d: %w", b.Height, err)
	}
	return data, nil
}

func decodeBlock(data []byte) (*Block, error) {
	var sb storedBlock
	if err := json.Unmarshal(data, &sb); err != nil {
		return nil, fmt.Errorf("unmarshal block: %w", err)
	}
	b := &Block{
		Hash:         sb.Hash,
		Height:       sb.Height,
		Body:         Body{Address: sb.Body.Address},
		Timestamp:    sb.Timestamp,
		PreviousHash: sb.PreviousHash,
	}
	if s := sb.Body.Star; s != nil {
		b.Body.Star = &Star{RA: s.RA, Dec: s.Dec, Story: s.Story}
	}
	return b, nil
}
