package misc

const (
	// ArgonTime Sealing-key derivation parameters (argon2id)
	ArgonTime    uint32 = 4
	ArgonMemory  uint32 = 128 * 1024
	ArgonThreads uint8  = 4
	ArgonKeyLen  uint32 = 32
	SaltSize            = 16

	// SeedIterations BIP-39 seed derivation (PBKDF2-SHA512)
	SeedIterations = 2048
	SeedSize       = 64

	FilePermissions = 0600 // user read + write
	DirPermissions  = 0700
)
