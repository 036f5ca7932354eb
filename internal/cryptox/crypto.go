// Package cryptox implements the salted password digests stored on accounts.
//
// Digests use argon2id and are encoded together with their parameters so
// that parameters can change without invalidating existing accounts:
//
//	argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>
//
// salt and key are unpadded standard base64.
package cryptox

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/digitalmira/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	variant = "argon2id"
	version = "v=19"

	// Upper bounds accepted from a stored digest.
	maxMemory     = 1024 * 1024
	maxIterations = 10
)

var errInvalidDigest = errors.New("invalid password digest")

// Params are the argon2id cost parameters.
type Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams are the production cost parameters (64 MiB, one pass).
var DefaultParams = Params{
	Memory:      64 * 1024,
	Iterations:  1,
	Parallelism: 4,
	SaltLength:  16,
	KeyLength:   32,
}

// Hasher hashes and verifies passwords.
type Hasher interface {
	Hash(password []byte) (string, error)
	Verify(password []byte, digest string) bool
}

// Argon2Hasher is the argon2id Hasher.
type Argon2Hasher struct {
	params Params
}

// NewArgon2Hasher returns a hasher using p.
func NewArgon2Hasher(p Params) (*Argon2Hasher, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &Argon2Hasher{params: p}, nil
}

// DefaultHasher returns a hasher using DefaultParams.
func DefaultHasher() *Argon2Hasher {
	return &Argon2Hasher{params: DefaultParams}
}

func (p Params) validate() error {
	switch {
	case p.Memory < 8:
		return errors.New("argon2: memory must be at least 8 KiB")
	case p.Iterations == 0:
		return errors.New("argon2: iterations must be positive")
	case p.Parallelism == 0:
		return errors.New("argon2: parallelism must be positive")
	case p.SaltLength < 8:
		return errors.New("argon2: salt must be at least 8 bytes")
	case p.KeyLength < 16:
		return errors.New("argon2: key must be at least 16 bytes")
	}
	return nil
}

// DeriveKey stretches password with salt using p.
func DeriveKey(password, salt []byte, p Params) []byte {
	return argon2.IDKey(password, salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLength)
}

// Hash returns the encoded digest of password under a fresh random salt.
func (h *Argon2Hasher) Hash(password []byte) (string, error) {
	if len(password) == 0 {
		return "", errors.New("argon2: empty password")
	}

	salt := common.GenerateRandByteArray(int(h.params.SaltLength))
	key := DeriveKey(password, salt, h.params)

	return strings.Join([]string{
		variant,
		version,
		fmt.Sprintf("m=%d,t=%d,p=%d", h.params.Memory, h.params.Iterations, h.params.Parallelism),
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	}, "$"), nil
}

// Verify reports whether password matches digest. Malformed digests never
// match.
func (h *Argon2Hasher) Verify(password []byte, digest string) bool {
	if len(password) == 0 || digest == "" {
		return false
	}

	p, salt, want, err := decode(digest)
	if err != nil {
		return false
	}

	got := DeriveKey(password, salt, p)
	return subtle.ConstantTimeCompare(got, want) == 1
}

func decode(digest string) (Params, []byte, []byte, error) {
	parts := strings.Split(digest, "$")
	if len(parts) != 5 || parts[0] != variant || parts[1] != version {
		return Params{}, nil, nil, errInvalidDigest
	}

	var p Params
	for _, kv := range strings.Split(parts[2], ",") {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return Params{}, nil, nil, errInvalidDigest
		}
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return Params{}, nil, nil, fmt.Errorf("%w: %s: %v", errInvalidDigest, name, err)
		}
		switch name {
		case "m":
			p.Memory = uint32(n)
		case "t":
			p.Iterations = uint32(n)
		case "p":
			if n > 255 {
				return Params{}, nil, nil, errInvalidDigest
			}
			p.Parallelism = uint8(n)
		default:
			return Params{}, nil, nil, errInvalidDigest
		}
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return Params{}, nil, nil, errInvalidDigest
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return Params{}, nil, nil, errInvalidDigest
	}

	p.SaltLength = uint32(len(salt))
	p.KeyLength = uint32(len(key))
	if p.Memory > maxMemory || p.Iterations > maxIterations {
		return Params{}, nil, nil, errInvalidDigest
	}
	if err := p.validate(); err != nil {
		return Params{}, nil, nil, errInvalidDigest
	}

	return p, salt, key, nil
}
