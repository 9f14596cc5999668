package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// newTransactionRef builds COURSE_{COURSE}_{user}_{unix}_{suffix}. The random suffix keeps two
// submissions from the same user in the same second apart.
func newTransactionRef(courseType, userID string, at time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("COURSE_%s_%s_%d_%s", strings.ToUpper(courseType), userID, at.Unix(), suffix)
}
