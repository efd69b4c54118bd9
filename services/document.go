package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/signalbymoza/sbm-trading-channel-ytgkmn-sub000/common"
)

// DocumentService resolves a stored document reference to a fresh
// time-limited signed URL. Signed URLs expire, so the stored reference is
// only an identity; every read mints a new URL.
type DocumentService struct {
	subs   SubscriptionStore
	store  ObjectStore
	ttl    time.Duration
	logger *slog.Logger
}

// NewDocumentService creates a new document access service
func NewDocumentService(subs SubscriptionStore, store ObjectStore, ttl time.Duration) *DocumentService {
	return &DocumentService{
		subs:   subs,
		store:  store,
		ttl:    ttl,
		logger: slog.With("service", "DocumentService"),
	}
}

// ExtractStorageKey recovers the object key from a document reference that
// may be either a raw key or a previously issued signed URL. The URL
// detection (scheme or query string present) is best-effort: an unusual
// raw key containing "://" would be misread as a URL, which is accepted as
// a known ambiguity.
func ExtractStorageKey(reference, bucket string) string {
	if !strings.Contains(reference, "://") && !strings.Contains(reference, "?") {
		return reference
	}

	u, err := url.Parse(reference)
	if err != nil {
		return reference
	}

	key := strings.TrimPrefix(u.Path, "/")
	// Path-style S3 URLs carry the bucket as the first path segment.
	if bucket != "" {
		key = strings.TrimPrefix(key, bucket+"/")
	}
	return key
}

// FreshDocumentURL returns a newly signed URL for the subscription's
// identity document.
func (s *DocumentService) FreshDocumentURL(ctx context.Context, subscriptionID string) (string, error) {
	sub, err := s.subs.GetByID(ctx, subscriptionID)
	if err != nil {
		return "", err
	}

	if sub.DocumentRef == "" {
		return "", fmt.Errorf("%w: subscription %s has no document reference", common.ErrNotFound, subscriptionID)
	}

	key := ExtractStorageKey(sub.DocumentRef, s.store.Bucket())
	signed, err := s.store.PresignedGetURL(ctx, key, s.ttl)
	if err != nil {
		s.logger.Error("Failed to sign document URL", "error", err, "subscription_id", subscriptionID, "key", key)
		return "", fmt.Errorf("%w: could not sign document URL", common.ErrStorage)
	}

	return signed, nil
}
