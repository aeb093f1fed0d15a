package booking

import (
	"strings"

	"github.com/google/uuid"
)

// CodeGenerator returns a new unique booking code.
type CodeGenerator func() string

// UUIDCodes generates codes like "BK-3F2A9C41D07B" from random UUIDs.
func UUIDCodes(prefix string) CodeGenerator {
	return func() string {
		id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
		return prefix + "-" + id[:12]
	}
}
