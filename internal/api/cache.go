package api

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ctp-wound-eligibility-server/internal/domain"
)

// verdictCache memoizes pre-eligibility verdicts by request digest. The
// engine is deterministic, so identical inputs always yield the same
// verdict and re-running the full check chain is wasted work.
type verdictCache struct {
	entries *lru.Cache[string, *domain.PreEligibilityCheckResult]
}

func newVerdictCache(size int) (*verdictCache, error) {
	if size <= 0 {
		size = 512
	}
	entries, err := lru.New[string, *domain.PreEligibilityCheckResult](size)
	if err != nil {
		return nil, fmt.Errorf("creating LRU cache: %w", err)
	}
	return &verdictCache{entries: entries}, nil
}

// digest produces the cache key for a request payload.
func (vc *verdictCache) digest(payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("hashing request: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

func (vc *verdictCache) get(key string) (*domain.PreEligibilityCheckResult, bool) {
	return vc.entries.Get(key)
}

func (vc *verdictCache) add(key string, result *domain.PreEligibilityCheckResult) {
	vc.entries.Add(key, result)
}
