package consts

// Character sets
const (
	Number        = "0123456789"                   // Numbers
	Lowercase     = "abcdefghijklmnopqrstuvwxyz"   // Lowercase letters
	Uppercase     = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"   // Uppercase letters
	NumLower      = Number + Lowercase             // Numbers + Lowercase letters
	NumUpper      = Number + Uppercase             // Numbers + Uppercase letters
	NumLowerUpper = Number + Lowercase + Uppercase // Numbers + Lowercase + Uppercase letters
)

const (
	PrimaryKey     = NumLowerUpper
	PrimaryKeySize = 16

	// BackupCode is the alphabet for human-enterable backup codes.
	// Uppercase plus digits keeps codes unambiguous when read aloud.
	BackupCode     = NumUpper
	BackupCodeSize = 10
)
