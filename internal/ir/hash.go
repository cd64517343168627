package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainEvent   = "loom/event/v1"
	DomainBinding = "loom/binding/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte prevents
// domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// EventID computes the content-addressed ID for an action event.
// Stable given the same round, action, payloads, and seq.
func EventID(round, actionURI string, input, output Object, seq int64) (string, error) {
	obj := Object{
		"round":      String(round),
		"action_uri": String(actionURI),
		"input":      input,
		"output":     output,
		"seq":        Int(seq),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("EventID: marshal: %w", err)
	}
	return hashWithDomain(DomainEvent, canonical), nil
}

// BindingHash computes the identity of a binding set, keyed by symbol
// name. Used by the firing ledger: a (sync, binding hash) pair fires at
// most once per round.
func BindingHash(bindings Object) (string, error) {
	canonical, err := MarshalCanonical(bindings)
	if err != nil {
		return "", fmt.Errorf("BindingHash: marshal: %w", err)
	}
	return hashWithDomain(DomainBinding, canonical), nil
}

// MustBindingHash is like BindingHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustBindingHash(bindings Object) string {
	hash, err := BindingHash(bindings)
	if err != nil {
		panic(err)
	}
	return hash
}
