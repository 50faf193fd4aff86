// Package base62 maps 64-bit integers to compact alphanumeric strings and back.
//
// The alphabet ordering is part of every issued code, so alphabets are versioned:
// a new ordering gets a new version and old codes keep decoding with the old one.
package base62

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

const (
	base = 62

	// DefaultMinWidth is the shortest string Encode produces.
	DefaultMinWidth = 6

	// MaxWidth is the longest encoding of a uint64.
	MaxWidth = 11
)

// AlphabetV1 orders digits, then lowercase, then uppercase.
const AlphabetV1 = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// CurrentVersion is the alphabet version used for new codes.
const CurrentVersion = 1

var alphabets = map[int]string{
	1: AlphabetV1,
}

var (
	ErrInvalidCharacter = errors.New("invalid base62 character")
	ErrOverflow         = errors.New("base62 value overflows uint64")
	ErrEmpty            = errors.New("empty base62 string")
	ErrInvalidAlphabet  = errors.New("alphabet must contain 62 unique ASCII characters")
	ErrUnknownVersion   = errors.New("unknown alphabet version")
)

// DecodeError describes where decoding failed.
type DecodeError struct {
	Err      error
	Input    string
	Position int
	Char     rune
}

func (e *DecodeError) Error() string {
	if errors.Is(e.Err, ErrInvalidCharacter) {
		return fmt.Sprintf("%s %q at position %d in %q", e.Err, e.Char, e.Position, e.Input)
	}

	return fmt.Sprintf("%s: %q", e.Err, e.Input)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Lookup returns the alphabet registered under version.
func Lookup(version int) (string, error) {
	a, ok := alphabets[version]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownVersion, version)
	}

	return a, nil
}

// Codec encodes and decodes with a fixed alphabet and minimum width.
type Codec struct {
	alphabet string
	index    [256]int8
	minWidth int
}

// Option configures a Codec.
type Option func(*Codec)

// WithAlphabet overrides the alphabet.
func WithAlphabet(alphabet string) Option {
	return func(c *Codec) {
		c.alphabet = alphabet
	}
}

// WithMinWidth sets the left-padding width. Values below 1 disable padding.
func WithMinWidth(width int) Option {
	return func(c *Codec) {
		c.minWidth = width
	}
}

// New creates a codec using AlphabetV1 and DefaultMinWidth unless overridden.
func New(opts ...Option) (*Codec, error) {
	c := &Codec{
		alphabet: AlphabetV1,
		minWidth: DefaultMinWidth,
	}

	for _, opt := range opts {
		opt(c)
	}

	if err := c.buildIndex(); err != nil {
		return nil, err
	}

	if c.minWidth < 1 {
		c.minWidth = 1
	}

	if c.minWidth > MaxWidth {
		c.minWidth = MaxWidth
	}

	return c, nil
}

// MustNew is New that panics, for package-level defaults.
func MustNew(opts ...Option) *Codec {
	c, err := New(opts...)
	if err != nil {
		panic(err)
	}

	return c
}

func (c *Codec) buildIndex() error {
	if len(c.alphabet) != base {
		return ErrInvalidAlphabet
	}

	for i := range c.index {
		c.index[i] = -1
	}

	for i := 0; i < base; i++ {
		ch := c.alphabet[i]
		if ch >= 0x80 || c.index[ch] != -1 {
			return ErrInvalidAlphabet
		}

		c.index[ch] = int8(i)
	}

	return nil
}

// Alphabet returns the codec's alphabet.
func (c *Codec) Alphabet() string {
	return c.alphabet
}

// MinWidth returns the padding width.
func (c *Codec) MinWidth() int {
	return c.minWidth
}

// Encode converts n to its base62 form, most significant digit first.
func (c *Codec) Encode(n uint64) string {
	var buf [MaxWidth]byte

	i := len(buf)

	for n > 0 {
		i--
		buf[i] = c.alphabet[n%base]
		n /= base
	}

	for len(buf)-i < c.minWidth {
		i--
		buf[i] = c.alphabet[0]
	}

	return string(buf[i:])
}

// Decode converts s back to an integer. Leading zero symbols are accepted.
func (c *Codec) Decode(s string) (uint64, error) {
	if s == "" {
		return 0, &DecodeError{Err: ErrEmpty, Input: s}
	}

	var n uint64

	for pos, r := range s {
		if r >= 0x80 || c.index[r] < 0 {
			return 0, &DecodeError{Err: ErrInvalidCharacter, Input: s, Position: pos, Char: r}
		}

		digit := uint64(c.index[r])

		if n > (math.MaxUint64-digit)/base {
			return 0, &DecodeError{Err: ErrOverflow, Input: s}
		}

		n = n*base + digit
	}

	return n, nil
}

// Valid reports whether every character of s belongs to the alphabet.
func (c *Codec) Valid(s string) bool {
	if s == "" {
		return false
	}

	return strings.IndexFunc(s, func(r rune) bool {
		return r >= 0x80 || c.index[r] < 0
	}) == -1
}
