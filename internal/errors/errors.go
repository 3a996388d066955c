// Package errors holds the sentinel errors shared by every TPMPass package.
//
// Callers match them with errors.Is; packages wrap them with context using
// fmt.Errorf("...: %w", err). None of the messages carry secret material.
package errors

import "errors"

// Artifact errors describe problems with files on disk.
var (
	// ErrNotFound indicates the requested artifact file does not exist.
	ErrNotFound = errors.New("file not found")

	// ErrInvalidData indicates an artifact is malformed or too short to be an envelope.
	ErrInvalidData = errors.New("invalid data")
)

// Cryptographic errors.
var (
	// ErrCryptographic covers protect, unprotect, memory cipher and hash failures.
	// Wrong user, wrong machine, tampered ciphertext and a corrupt identity all end here.
	ErrCryptographic = errors.New("cryptographic failure")
)

// Usage errors indicate the caller did something the API does not allow.
var (
	// ErrArgument indicates an invalid input such as an empty plaintext.
	ErrArgument = errors.New("invalid argument")

	// ErrDisposed indicates a protected buffer was used after release.
	ErrDisposed = errors.New("object disposed")

	// ErrNotInitialized indicates a core operation ran before the master identity was loaded.
	ErrNotInitialized = errors.New("Master Key not initialized")
)

// ErrScanFailed indicates the caller process did not pass the malware scan gate.
var ErrScanFailed = errors.New("process scan failed")
