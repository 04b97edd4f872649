package utils

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// GenerateReferenceID returns a unique human-scannable reference for a
// settlement or recharge record, tagged with the initiating user id.
func GenerateReferenceID(userID uint) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("TSK-%s-%d", id[:20], userID)
}
