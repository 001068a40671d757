package common

import (
	"github.com/google/uuid"
)

// NewWorkerID generates a unique worker ID with the given stage prefix
// Format: <stage>_<uuid fragment>
func NewWorkerID(stage string) string {
	return stage + "_" + uuid.New().String()[:8]
}
