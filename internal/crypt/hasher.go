/*******************************************************************************
* Copyright 2023 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

// Package crypt provides password hashing, secure random secret generation,
// and the breached-password oracle client used by the password field kind.
package crypt

import (
	"crypto/md5" //nolint:gosec // RFC 2307 {MD5}/{SMD5} schemes, kept for interop with directories seeded by older tooling
	"crypto/rand"
	"crypto/sha1" //nolint:gosec // RFC 2307 {SHA}/{SSHA} schemes, same interop rationale
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher hashes plaintext passwords into the string that gets stored
// in the directory attribute, and checks a plaintext against a stored hash
// for bind-time verification.
type PasswordHasher interface {
	HashPassword(plaintext string) (string, error)
	CheckPasswordHash(plaintext, hash string) bool
}

// BcryptHasher is the production PasswordHasher. bcrypt embeds a random salt
// in every call, which is exactly the "two hashes of the same plaintext are
// distinct" property the password field's write strategy relies on.
type BcryptHasher struct {
	Cost int
}

func NewBcryptHasher(cost int) BcryptHasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return BcryptHasher{Cost: cost}
}

func (h BcryptHasher) HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.Cost)
	if err != nil {
		return "", fmt.Errorf("cannot hash password: %w", err)
	}
	return string(hash), nil
}

func (h BcryptHasher) CheckPasswordHash(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// HasherByName resolves a password field's configured `hashing` value to the
// scheme it names, so two fields configured with different schemes actually
// get different hashing instead of silently sharing one. "" defaults to
// bcrypt. The RFC 2307 SHA-1/MD5 schemes exist for interoperability with
// directories whose userPassword values were seeded by older tooling that
// only speaks those formats; bcrypt is the scheme new deployments should
// configure.
func HasherByName(name string) (PasswordHasher, error) {
	switch name {
	case "", "bcrypt":
		return NewBcryptHasher(0), nil
	case "ssha":
		return SaltedSHA1Hasher{}, nil
	case "sha":
		return SHA1Hasher{}, nil
	case "smd5":
		return SaltedMD5Hasher{}, nil
	case "md5":
		return MD5Hasher{}, nil
	default:
		return nil, fmt.Errorf("unknown hashing scheme %q", name)
	}
}

const saltLength = 8

func saltedDigest(sum func([]byte) []byte, plaintext string, salt []byte) []byte {
	return sum(append([]byte(plaintext), salt...))
}

func encodeSalted(sum func([]byte) []byte, prefix, plaintext string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("cannot generate salt: %w", err)
	}
	digest := saltedDigest(sum, plaintext, salt)
	return prefix + base64.StdEncoding.EncodeToString(append(digest, salt...)), nil
}

func checkSalted(sum func([]byte) []byte, digestSize int, prefix, plaintext, hash string) bool {
	encoded, ok := strings.CutPrefix(hash, prefix)
	if !ok {
		return false
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(raw) <= digestSize {
		return false
	}
	digest, salt := raw[:digestSize], raw[digestSize:]
	want := saltedDigest(sum, plaintext, salt)
	return subtle.ConstantTimeCompare(digest, want) == 1
}

func encodeUnsalted(sum func([]byte) []byte, prefix, plaintext string) string {
	return prefix + base64.StdEncoding.EncodeToString(sum([]byte(plaintext)))
}

func checkUnsalted(sum func([]byte) []byte, prefix, plaintext, hash string) bool {
	want := encodeUnsalted(sum, prefix, plaintext)
	return subtle.ConstantTimeCompare([]byte(want), []byte(hash)) == 1
}

func sumSHA1(data []byte) []byte {
	sum := sha1.Sum(data) //nolint:gosec
	return sum[:]
}

func sumMD5(data []byte) []byte {
	sum := md5.Sum(data) //nolint:gosec
	return sum[:]
}

// SaltedSHA1Hasher implements the RFC 2307 {SSHA} scheme.
type SaltedSHA1Hasher struct{}

func (SaltedSHA1Hasher) HashPassword(plaintext string) (string, error) {
	return encodeSalted(sumSHA1, "{SSHA}", plaintext)
}

func (SaltedSHA1Hasher) CheckPasswordHash(plaintext, hash string) bool {
	return checkSalted(sumSHA1, sha1.Size, "{SSHA}", plaintext, hash)
}

// SHA1Hasher implements the RFC 2307 {SHA} scheme (unsalted).
type SHA1Hasher struct{}

func (SHA1Hasher) HashPassword(plaintext string) (string, error) {
	return encodeUnsalted(sumSHA1, "{SHA}", plaintext), nil
}

func (SHA1Hasher) CheckPasswordHash(plaintext, hash string) bool {
	return checkUnsalted(sumSHA1, "{SHA}", plaintext, hash)
}

// SaltedMD5Hasher implements the RFC 2307 {SMD5} scheme.
type SaltedMD5Hasher struct{}

func (SaltedMD5Hasher) HashPassword(plaintext string) (string, error) {
	return encodeSalted(sumMD5, "{SMD5}", plaintext)
}

func (SaltedMD5Hasher) CheckPasswordHash(plaintext, hash string) bool {
	return checkSalted(sumMD5, md5.Size, "{SMD5}", plaintext, hash)
}

// MD5Hasher implements the RFC 2307 {MD5} scheme (unsalted).
type MD5Hasher struct{}

func (MD5Hasher) HashPassword(plaintext string) (string, error) {
	return encodeUnsalted(sumMD5, "{MD5}", plaintext), nil
}

func (MD5Hasher) CheckPasswordHash(plaintext, hash string) bool {
	return checkUnsalted(sumMD5, "{MD5}", plaintext, hash)
}

// NoopHasher is a test double that stores plaintexts with a marker prefix.
type NoopHasher struct{}

const noopPrefix = "{PLAINTEXT}"

func (NoopHasher) HashPassword(plaintext string) (string, error) {
	return noopPrefix + plaintext, nil
}

func (NoopHasher) CheckPasswordHash(plaintext, hash string) bool {
	return hash == noopPrefix+plaintext
}

const secretAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789"

// GenerateSecurePassword produces a cryptographically random secret of the
// given length, drawn from an alphabet that avoids visually ambiguous
// characters. Panics on randomness failure: a broken system RNG is not a
// recoverable condition for a security-sensitive code path.
func GenerateSecurePassword(length int) string {
	if length <= 0 {
		length = 24
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("crypto/rand.Read failed: %s", err.Error()))
	}
	out := make([]byte, length)
	for i, b := range buf {
		out[i] = secretAlphabet[int(b)%len(secretAlphabet)]
	}
	return string(out)
}

// GenerateRandomKey returns length cryptographically random bytes, used for
// signing-key material and anti-spam token salts.
func GenerateRandomKey(length int) []byte {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("crypto/rand.Read failed: %s", err.Error()))
	}
	return buf
}
