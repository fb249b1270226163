// Package cursor implements signed, opaque pagination tokens.
//
// A token is base64(field1,field2,...) + "." + lowercase hex of
// HMAC-SHA256(secret, base64 payload). Decoding verifies the signature
// before trusting anything inside the payload, so a token that decodes
// successfully is byte-identical to one this process (or a peer sharing
// the secret) produced.
package cursor

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Separator joins fields inside the payload. The field kinds guarantee it
// cannot appear inside a value; free-text fields must never be placed in
// a cursor.
const Separator = ","

// Decoding and construction errors.
var (
	// ErrInvalidFormat covers structural problems: wrong part count,
	// non-base64 payload, wrong field count.
	ErrInvalidFormat = errors.New("invalid cursor format")
	// ErrInvalidSignature covers all tampering and wrong-secret cases.
	ErrInvalidSignature = errors.New("invalid cursor signature")
	// ErrInvalidField covers structurally valid tokens whose fields fail
	// semantic validation.
	ErrInvalidField = errors.New("invalid cursor field value")

	ErrEmptySecret = errors.New("cursor secret cannot be empty")
	ErrEmptySchema = errors.New("cursor schema cannot be empty")
)

// Kind is the type of a cursor field.
type Kind int

const (
	KindTime Kind = iota
	KindUUID
	KindInt
	KindFloat
)

// Field is one typed position in a cursor schema.
type Field struct {
	Name string
	Kind Kind
}

// Schema is the ordered field layout of a cursor. Together the fields form
// a total order matching the query's ORDER BY.
type Schema []Field

// Schemas used by the listing endpoints.
var (
	// TimeUUID orders by creation time then row id (feeds, comment and
	// like listings).
	TimeUUID = Schema{
		{Name: "created_at", Kind: KindTime},
		{Name: "id", Kind: KindUUID},
	}
	// ScoreUUID orders by points then user id (leaderboard).
	ScoreUUID = Schema{
		{Name: "points", Kind: KindInt},
		{Name: "user_id", Kind: KindUUID},
	}
)

// Codec encodes and decodes tokens for one schema under one secret.
// It is safe for concurrent use.
type Codec struct {
	secret []byte
	schema Schema
}

// New creates a Codec. The secret is process-wide configuration; an empty
// secret is refused so a misconfigured process fails at startup, not at
// request time.
func New(secret string, schema Schema) (*Codec, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if len(schema) == 0 {
		return nil, ErrEmptySchema
	}
	return &Codec{secret: []byte(secret), schema: schema}, nil
}

// Encode serializes a position into a token. Values must line up with the
// schema and pass its per-kind validation. Encoding is deterministic: the
// same values and secret always produce the same token bytes.
func (c *Codec) Encode(values ...string) (string, error) {
	if len(values) != len(c.schema) {
		return "", fmt.Errorf("%w: got %d values for %d fields", ErrInvalidField, len(values), len(c.schema))
	}
	for i, v := range values {
		if err := validateField(c.schema[i], v); err != nil {
			return "", err
		}
	}

	payload := base64.StdEncoding.EncodeToString([]byte(strings.Join(values, Separator)))
	return payload + "." + c.sign(payload), nil
}

// Decode verifies and parses a token back into its field values.
// The token is attacker-controlled input; every failure maps to one of the
// typed errors above and never panics.
func (c *Codec) Decode(token string) ([]string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, ErrInvalidFormat
	}
	payload, signature := parts[0], parts[1]

	// Signature first: nothing in the payload is trusted until it matches.
	expected := c.sign(payload)
	if subtle.ConstantTimeCompare([]byte(signature), []byte(expected)) != 1 {
		return nil, ErrInvalidSignature
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, ErrInvalidFormat
	}

	values := strings.Split(string(raw), Separator)
	if len(values) != len(c.schema) {
		return nil, ErrInvalidFormat
	}
	for i, v := range values {
		if err := validateField(c.schema[i], v); err != nil {
			return nil, err
		}
	}
	return values, nil
}

// sign returns the lowercase hex HMAC-SHA256 of the payload.
func (c *Codec) sign(payload string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// FormatTime renders a timestamp the way cursor payloads expect.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTime parses a KindTime field value.
func ParseTime(v string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, v)
}

func validateField(f Field, v string) error {
	if v == "" || strings.Contains(v, Separator) {
		return fmt.Errorf("%w: %s", ErrInvalidField, f.Name)
	}
	switch f.Kind {
	case KindTime:
		if _, err := time.Parse(time.RFC3339Nano, v); err != nil {
			return fmt.Errorf("%w: %s is not a timestamp", ErrInvalidField, f.Name)
		}
	case KindUUID:
		if !isCanonicalUUID(v) {
			return fmt.Errorf("%w: %s is not a uuid", ErrInvalidField, f.Name)
		}
	case KindInt:
		if _, err := strconv.ParseInt(v, 10, 64); err != nil {
			return fmt.Errorf("%w: %s is not an integer", ErrInvalidField, f.Name)
		}
	case KindFloat:
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return fmt.Errorf("%w: %s is not a number", ErrInvalidField, f.Name)
		}
	default:
		return fmt.Errorf("%w: %s has unknown kind", ErrInvalidField, f.Name)
	}
	return nil
}

// isCanonicalUUID accepts only the 36-character hyphenated form,
// case-insensitively. uuid.Parse alone is too permissive (it also accepts
// braced, URN and bare-hex forms that never appear in our rows).
func isCanonicalUUID(v string) bool {
	if len(v) != 36 {
		return false
	}
	_, err := uuid.Parse(v)
	return err == nil
}
