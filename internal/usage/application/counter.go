package application

import (
	"context"
	"errors"
	"time"

	usage "agromet-cloud/internal/usage/domain"
)

// Capacity read details, surfaced for logging and metrics.
const (
	DetailNoLimits = "no_limits"
	DetailNoStats  = "no_stats"
	DetailChecked  = "checked"
)

// DocumentRepository persists per-credential usage documents.
type DocumentRepository interface {
	// Update runs fn on the credential's document as one atomic unit
	// under an exclusive lock, lazily creating an empty document on
	// first use.
	Update(ctx context.Context, credentialID int64, fn func(*usage.Document) error) error
	// Get returns the latest persisted document without locking, or nil
	// when the credential has never been used.
	Get(ctx context.Context, credentialID int64) (*usage.Document, error)
}

// Counter tracks request usage per credential. Writes go through the
// repository's row lock; reads are lock-free and may observe slightly
// stale counts, which is acceptable for gating.
type Counter struct {
	repo DocumentRepository
}

// NewCounter constructs a Counter.
func NewCounter(repo DocumentRepository) (*Counter, error) {
	if repo == nil {
		return nil, errors.New("usage counter: nil repository")
	}
	return &Counter{repo: repo}, nil
}

// RecordUse applies one request to the credential's document and returns
// the post-update snapshot. Safe for concurrent callers on the same
// credential; the repository lock serializes them.
func (c *Counter) RecordUse(ctx context.Context, credentialID int64, limits map[string]int, now time.Time) (usage.Document, error) {
	if c == nil || c.repo == nil {
		return usage.Document{}, errors.New("usage counter: nil")
	}
	var snapshot usage.Document
	err := c.repo.Update(ctx, credentialID, func(doc *usage.Document) error {
		doc.Record(now, limits)
		snapshot = *doc
		return nil
	})
	if err != nil {
		return usage.Document{}, err
	}
	return snapshot, nil
}

// ReadCapacity reports whether the credential has spare capacity against
// the provider's configured limits. Never-used credentials are assumed
// usable; expired sliding windows read as zero without a write.
func (c *Counter) ReadCapacity(ctx context.Context, credentialID int64, limits map[string]int, now time.Time) (bool, string, error) {
	if c == nil || c.repo == nil {
		return false, "", errors.New("usage counter: nil")
	}
	if len(limits) == 0 {
		return true, DetailNoLimits, nil
	}
	doc, err := c.repo.Get(ctx, credentialID)
	if err != nil {
		return false, "", err
	}
	if doc == nil {
		return true, DetailNoStats, nil
	}
	return doc.HasCapacity(limits, now), DetailChecked, nil
}
