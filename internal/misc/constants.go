package misc

import "os"

const (
	// DefaultFormatVersion is the version byte written by the data protection layer
	DefaultFormatVersion = 1

	// Sizes in bytes
	IdentitySize    = 32
	SaltSize        = 32
	DerivedKeySize  = 32
	ConstantSize    = 16
	MemoryBlockSize = 16 // block granularity of the memory cipher
	MemoryKeySize   = 64 // AES-256-XTS uses two 256-bit keys

	FilePermissions os.FileMode = 0600 // user read + write
	DirPermissions  os.FileMode = 0700

	IdentityFileName = "master.identity"
	WarningFileName  = "README-DO-NOT-DELETE.txt"
	AuditFileName    = "audit.jsonl"

	// FileExtension is the conventional extension for encrypted artifacts
	FileExtension = ".tpmPassword"
)

// The constants below are compiled into the binary. They are not secret; they
// separate this application's keys from any other user of the same primitives.
var (
	derivationConstant = [ConstantSize]byte{
		0x54, 0x50, 0x4d, 0x50, 0x61, 0x73, 0x73, 0x2d,
		0x6b, 0x64, 0x66, 0x2d, 0x76, 0x31, 0x9e, 0x3b,
	}
	identityEntropy = [ConstantSize]byte{
		0x54, 0x50, 0x4d, 0x50, 0x61, 0x73, 0x73, 0x2d,
		0x69, 0x64, 0x2d, 0x76, 0x31, 0x00, 0xc7, 0x52,
	}
)

// DerivationConstant returns a copy of the static prefix hashed into every file key.
func DerivationConstant() []byte {
	c := derivationConstant
	return c[:]
}

// IdentityEntropy returns a copy of the auxiliary entropy used to wrap the master identity.
func IdentityEntropy() []byte {
	e := identityEntropy
	return e[:]
}

// WarningText is written next to the identity file on every initialization.
const WarningText = `TPMPass master identity
=======================

The file "` + IdentityFileName + `" in this directory is the root key for every
file you encrypted with TPMPass on this machine and user account.

  * Do NOT delete, move or edit it.
  * It is bound to this user profile and machine; copying it elsewhere does not work.
  * Reinstalling the operating system or recreating the user profile makes it unreadable.

If it is lost or becomes unreadable, a new identity is generated and every
existing ` + FileExtension + ` file becomes permanently unrecoverable.
There is no recovery mechanism and no backup.
`
