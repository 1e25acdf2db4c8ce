package artifact

import (
	"fmt"
	"time"

	"genepool/internal/policy"
)

// LoadPolicyWithRetry reads a policy artifact, retrying on transient read
// failure with a fixed backoff. Artifacts are written by other workers, so a
// reader may observe a short-lived lock or partial write; this is the only
// retried operation in the engine. Attempts are bounded and the last error
// surfaces past the bound.
func LoadPolicyWithRetry(path string, attempts int, backoff time.Duration) (*policy.Network, error) {
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff)
		}
		network, err := policy.Load(path)
		if err == nil {
			return network, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("load policy %s after %d attempts: %w", path, attempts, lastErr)
}
