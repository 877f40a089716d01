// Package nanoid generates short random identifiers over the shared
// alphabets in consts.
package nanoid

import (
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/nebulium/authcore/consts"
)

const defaultSize = 16

func getSize(l ...int) int {
	size := defaultSize
	if len(l) > 0 {
		size = l[0]
	}
	return size
}

// String generate optional length nanoid, use const by default
func String(l ...int) string {
	size := getSize(l...)
	return gonanoid.MustGenerate(consts.NumLowerUpper, size)
}

// Number generate optional length nanoid, use const by default
func Number(l ...int) string {
	size := getSize(l...)
	return gonanoid.MustGenerate(consts.Number, size)
}

// PrimaryKey generates a record identifier.
func PrimaryKey() string {
	return gonanoid.MustGenerate(consts.PrimaryKey, consts.PrimaryKeySize)
}

// BackupCode generates one human-enterable recovery code.
func BackupCode() string {
	return gonanoid.MustGenerate(consts.BackupCode, consts.BackupCodeSize)
}
