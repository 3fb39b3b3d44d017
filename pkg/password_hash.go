package pkg

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"hash"
	"math/big"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

// Stored hashes use the "pbkdf2:<digest>:<iterations>$<salt>$<hex key>" layout,
// so hashes produced by the old werkzeug based site keep verifying.
const (
	DefaultPasswordHashIterations = 600_000
	// werkzeug default when the method carries no iteration count
	legacyPasswordHashIterations = 260_000
	maxPasswordHashIterations    = 10_000_000
	passwordSaltLength           = 16
	saltChars                    = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var pbkdf2Digests = map[string]func() hash.Hash{
	"sha256": sha256.New,
	"sha512": sha512.New,
}

func HashPassword(password string) (string, error) {
	return HashPasswordWithIterations(password, DefaultPasswordHashIterations)
}

func HashPasswordWithIterations(password string, iterations int) (string, error) {
	if iterations <= 0 || iterations > maxPasswordHashIterations {
		return "", fmt.Errorf("invalid iterations count: %d", iterations)
	}

	salt, err := generateSalt(passwordSaltLength)
	if err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := pbkdf2.Key([]byte(password), []byte(salt), iterations, sha256.Size, sha256.New)
	return fmt.Sprintf("pbkdf2:sha256:%d$%s$%s", iterations, salt, hex.EncodeToString(key)), nil
}

// CheckPasswordHash reports whether password matches the stored hash.
// Malformed hashes never match.
func CheckPasswordHash(password, passwordHash string) bool {
	if strings.HasPrefix(passwordHash, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)) == nil
	}

	parts := strings.SplitN(passwordHash, "$", 3)
	if len(parts) != 3 {
		return false
	}
	method, salt, expectedHex := parts[0], parts[1], parts[2]

	digest, iterations, ok := parsePbkdf2Method(method)
	if !ok {
		return false
	}

	expected, err := hex.DecodeString(expectedHex)
	if err != nil || len(expected) == 0 {
		return false
	}

	key := pbkdf2.Key([]byte(password), []byte(salt), iterations, len(expected), digest)
	return subtle.ConstantTimeCompare(key, expected) == 1
}

func parsePbkdf2Method(method string) (func() hash.Hash, int, bool) {
	methodParts := strings.Split(method, ":")
	if len(methodParts) < 2 || len(methodParts) > 3 || methodParts[0] != "pbkdf2" {
		return nil, 0, false
	}

	digest, ok := pbkdf2Digests[methodParts[1]]
	if !ok {
		return nil, 0, false
	}

	iterations := legacyPasswordHashIterations
	if len(methodParts) == 3 {
		var err error
		iterations, err = strconv.Atoi(methodParts[2])
		if err != nil || iterations <= 0 || iterations > maxPasswordHashIterations {
			return nil, 0, false
		}
	}

	return digest, iterations, true
}

func generateSalt(length int) (string, error) {
	var sb strings.Builder
	sb.Grow(length)
	limit := big.NewInt(int64(len(saltChars)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		sb.WriteByte(saltChars[n.Int64()])
	}
	return sb.String(), nil
}
