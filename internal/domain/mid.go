package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewMID returns a fresh message id: the publish time in Unix
// milliseconds joined with a random suffix. Collision-resistant per
// publisher; carries no global ordering.
func NewMID() MessageID {
	return MessageID(fmt.Sprintf("%d-%.8s", time.Now().UnixMilli(), uuid.NewString()))
}
