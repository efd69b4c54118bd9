package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/signalbymoza/sbm-trading-channel-ytgkmn-sub000/common"
	"github.com/signalbymoza/sbm-trading-channel-ytgkmn-sub000/models"
	"github.com/signalbymoza/sbm-trading-channel-ytgkmn-sub000/services"
	"github.com/signalbymoza/sbm-trading-channel-ytgkmn-sub000/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractStorageKey(t *testing.T) {
	cases := []struct {
		name      string
		reference string
		bucket    string
		want      string
	}{
		{
			name:      "raw key passes through",
			reference: "id-documents/abc123_passport.jpg",
			bucket:    "docs-bucket",
			want:      "id-documents/abc123_passport.jpg",
		},
		{
			name:      "virtual-hosted url",
			reference: "https://docs-bucket.s3.amazonaws.com/id-documents/abc123_passport.jpg",
			bucket:    "docs-bucket",
			want:      "id-documents/abc123_passport.jpg",
		},
		{
			name:      "path-style url strips bucket segment",
			reference: "https://s3.us-east-1.amazonaws.com/docs-bucket/id-documents/abc123_passport.jpg",
			bucket:    "docs-bucket",
			want:      "id-documents/abc123_passport.jpg",
		},
		{
			name:      "stale presigned url drops query",
			reference: "https://docs-bucket.s3.amazonaws.com/id-documents/abc123.jpg?X-Amz-Expires=900&X-Amz-Signature=deadbeef",
			bucket:    "docs-bucket",
			want:      "id-documents/abc123.jpg",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, services.ExtractStorageKey(tc.reference, tc.bucket))
		})
	}
}

func newDocumentFixture(t *testing.T, documentRef string) (*services.DocumentService, *testutil.FakeObjectStore) {
	t.Helper()
	subs := testutil.NewInMemorySubscriptionStore()
	require.NoError(t, subs.Create(context.Background(), &models.Subscription{
		ID:          "sub-1",
		Name:        "Jamie Rivera",
		Email:       "jamie@example.com",
		DocumentRef: documentRef,
	}))
	store := &testutil.FakeObjectStore{BucketName: "docs-bucket"}
	return services.NewDocumentService(subs, store, 15*time.Minute), store
}

func TestFreshDocumentURL(t *testing.T) {
	svc, store := newDocumentFixture(t, "https://docs-bucket.s3.amazonaws.com/id-documents/abc123.jpg?X-Amz-Signature=old")

	url, err := svc.FreshDocumentURL(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.Contains(t, url, "id-documents/abc123.jpg")
	assert.Equal(t, []string{"id-documents/abc123.jpg"}, store.Keys)

	// Each call signs anew rather than returning the stored reference.
	_, err = svc.FreshDocumentURL(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.Len(t, store.Keys, 2)
}

func TestFreshDocumentURLUnknownSubscription(t *testing.T) {
	svc, _ := newDocumentFixture(t, "id-documents/abc123.jpg")

	_, err := svc.FreshDocumentURL(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestFreshDocumentURLNoReference(t *testing.T) {
	svc, _ := newDocumentFixture(t, "")

	_, err := svc.FreshDocumentURL(context.Background(), "sub-1")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestFreshDocumentURLSigningFailure(t *testing.T) {
	svc, store := newDocumentFixture(t, "id-documents/abc123.jpg")
	store.Err = errors.New("s3: access denied")

	_, err := svc.FreshDocumentURL(context.Background(), "sub-1")
	assert.ErrorIs(t, err, common.ErrStorage)
}
