package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashing. Version suffix enables future
// algorithm migration.
const (
	DomainSpec = "example-models/spec/v1"
	DomainData = "example-models/data/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SpecHash computes the content hash of a compiled model spec. Two specs
// hash equal exactly when their compiled forms are identical, regardless of
// CUE file formatting. Stored on every fit record so a run can be tied back
// to the model it saw.
func SpecHash(spec *ModelSpec) (string, error) {
	canonical, err := MarshalCanonical(spec)
	if err != nil {
		return "", fmt.Errorf("SpecHash: %w", err)
	}
	return hashWithDomain(DomainSpec, canonical), nil
}

// DataHash computes the content hash of an engine data payload. A fit
// records this so that re-running with the same seed and data is detectable
// as an exact replay.
func DataHash(payload DataPayload) (string, error) {
	canonical, err := MarshalCanonical(payload)
	if err != nil {
		return "", fmt.Errorf("DataHash: %w", err)
	}
	return hashWithDomain(DomainData, canonical), nil
}

// MustSpecHash is like SpecHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustSpecHash(spec *ModelSpec) string {
	h, err := SpecHash(spec)
	if err != nil {
		panic(err)
	}
	return h
}

// MustDataHash is like DataHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustDataHash(payload DataPayload) string {
	h, err := DataHash(payload)
	if err != nil {
		panic(err)
	}
	return h
}
