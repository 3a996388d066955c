package tpmpass

import tperrors "github.com/muhammetozeski/TPMPass/internal/errors"

// Errors returned by the vault. Match them with errors.Is.
var (
	ErrNotFound       = tperrors.ErrNotFound
	ErrInvalidData    = tperrors.ErrInvalidData
	ErrCryptographic  = tperrors.ErrCryptographic
	ErrArgument       = tperrors.ErrArgument
	ErrDisposed       = tperrors.ErrDisposed
	ErrNotInitialized = tperrors.ErrNotInitialized
	ErrScanFailed     = tperrors.ErrScanFailed
)
