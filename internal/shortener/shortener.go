package shortener

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
)

const (
	// DefaultLength is the length of generated short codes.
	DefaultLength = 6

	// DefaultMaxAttempts bounds how many codes Allocate draws before giving up.
	DefaultMaxAttempts = 10
)

// DefaultAlphabet is the case-insensitive alphanumeric alphabet, in the lowercase
// form codes are stored and compared in.
const DefaultAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// ErrGenerationExhausted is returned when every attempt collided with an existing code.
var ErrGenerationExhausted = errors.New("short code generation exhausted")

// Generator draws random short codes and claims them against a store.
type Generator struct {
	alphabet    string
	length      int
	maxAttempts int
	random      io.Reader
	onCollision func(code string, attempt int)
	reserved    map[string]struct{}
}

// Option configures a Generator.
type Option func(g *Generator)

// WithAlphabet replaces the default alphabet. It is lowercased and must not be empty.
func WithAlphabet(alphabet string) Option {
	return func(g *Generator) {
		g.alphabet = strings.ToLower(alphabet)
	}
}

// WithLength sets the generated code length.
func WithLength(length int) Option {
	return func(g *Generator) {
		g.length = length
	}
}

// WithMaxAttempts sets the retry ceiling used by Allocate.
func WithMaxAttempts(n int) Option {
	return func(g *Generator) {
		g.maxAttempts = n
	}
}

// WithRandom sets the randomness source. Tests only; production code keeps crypto/rand.
func WithRandom(r io.Reader) Option {
	return func(g *Generator) {
		g.random = r
	}
}

// WithCollisionHook registers fn to be called after every taken code.
func WithCollisionHook(fn func(code string, attempt int)) Option {
	return func(g *Generator) {
		g.onCollision = fn
	}
}

// WithReserved excludes codes that collide with fixed routes. Reserved codes
// count as collisions in Allocate.
func WithReserved(codes ...string) Option {
	return func(g *Generator) {
		if g.reserved == nil {
			g.reserved = make(map[string]struct{}, len(codes))
		}
		for _, code := range codes {
			g.reserved[Normalize(code)] = struct{}{}
		}
	}
}

// NewGenerator returns a Generator with crypto/rand, DefaultAlphabet,
// DefaultLength and DefaultMaxAttempts unless overridden.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		alphabet:    DefaultAlphabet,
		length:      DefaultLength,
		maxAttempts: DefaultMaxAttempts,
		random:      rand.Reader,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.alphabet == "" {
		g.alphabet = DefaultAlphabet
	}
	if g.length < 1 {
		g.length = DefaultLength
	}
	if g.maxAttempts < 1 {
		g.maxAttempts = DefaultMaxAttempts
	}
	return g
}

// Length returns the configured code length.
func (g *Generator) Length() int {
	return g.length
}

// MaxAttempts returns the configured retry ceiling.
func (g *Generator) MaxAttempts() int {
	return g.maxAttempts
}

// Next returns one random code. It does not check for collisions.
func (g *Generator) Next() (string, error) {
	code := make([]byte, g.length)
	alphabetLength := big.NewInt(int64(len(g.alphabet)))

	for i := range code {
		num, err := rand.Int(g.random, alphabetLength)
		if err != nil {
			return "", fmt.Errorf("draw random index: %w", err)
		}
		code[i] = g.alphabet[num.Int64()]
	}
	return string(code), nil
}

// ClaimFunc tries to take ownership of code, typically by inserting a record
// under a unique constraint. It reports false when the code is already taken.
type ClaimFunc func(ctx context.Context, code string) (bool, error)

// Allocate draws codes until claim accepts one or the attempts run out.
// A claim error aborts immediately; only a false result is retried.
func (g *Generator) Allocate(ctx context.Context, claim ClaimFunc) (string, error) {
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		code, err := g.Next()
		if err != nil {
			return "", err
		}

		if _, taken := g.reserved[code]; !taken {
			ok, err := claim(ctx, code)
			if err != nil {
				return "", err
			}
			if ok {
				return code, nil
			}
		}

		if g.onCollision != nil {
			g.onCollision(code, attempt)
		}
	}
	return "", fmt.Errorf("%w after %d attempts", ErrGenerationExhausted, g.maxAttempts)
}

// Valid reports whether code has the generator's length and only uses its
// alphabet. Callers lowercase input first.
func (g *Generator) Valid(code string) bool {
	if len(code) != g.length {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(g.alphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}

// Normalize lowercases and trims a user supplied code.
func Normalize(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
