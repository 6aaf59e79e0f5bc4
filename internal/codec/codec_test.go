package codec

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"testing"
)

type fakeBlobStore struct {
	blobs   map[string][]byte
	puts    int
	gets    int
	getErr  error
	nextKey int
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{blobs: map[string][]byte{}}
}

func (f *fakeBlobStore) Put(ctx context.Context, data []byte) (string, error) {
	f.puts++
	f.nextKey++
	key := fmt.Sprintf("schemes/blob-%d", f.nextKey)
	f.blobs[key] = data
	return key, nil
}

func (f *fakeBlobStore) Get(ctx context.Context, handle string) ([]byte, error) {
	f.gets++
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.blobs[handle]
	if !ok {
		return nil, fmt.Errorf("no such blob %q", handle)
	}
	return data, nil
}

type testDoc struct {
	Subject string   `json:"subject"`
	Notes   []string `json:"notes"`
}

func TestCodec_InlineRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newFakeBlobStore()
	c := New(store, 0)

	in := testDoc{Subject: "Mathematics", Notes: []string{"a", "b"}}
	payload, err := c.Encode(ctx, in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if payload.Encoding != EncodingInline {
		t.Fatalf("expected inline encoding, got %q", payload.Encoding)
	}
	if store.puts != 0 {
		t.Fatalf("inline payload must not touch blob storage, saw %d puts", store.puts)
	}

	var out testDoc
	if err := c.Decode(ctx, payload.Field(), &out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Subject != in.Subject || len(out.Notes) != 2 {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestCodec_LargePayloadGoesExternal(t *testing.T) {
	ctx := context.Background()
	store := newFakeBlobStore()
	c := New(store, DefaultInlineLimit)

	// pseudo-random hex keeps the compressed size well past the limit
	var b strings.Builder
	seed := uint64(1)
	for i := 0; i < 40000; i++ {
		seed = seed*6364136223846793005 + 1442695040888963407
		fmt.Fprintf(&b, "%016x", seed)
	}
	big := testDoc{Subject: b.String(), Notes: []string{"oversized"}}

	payload, err := c.Encode(ctx, big)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if payload.Encoding != EncodingExternal {
		t.Fatalf("expected external encoding, got %q", payload.Encoding)
	}
	if store.puts != 1 {
		t.Fatalf("expected exactly one blob upload, saw %d", store.puts)
	}
	field := payload.Field()
	if !strings.HasPrefix(field, ExternalPrefix) {
		t.Fatalf("persisted field must carry the external tag, got %q", field[:20])
	}

	var out testDoc
	if err := c.Decode(ctx, field, &out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Subject != big.Subject || len(out.Notes) != len(big.Notes) {
		t.Fatalf("round trip mismatch: subject %d chars, %d notes", len(out.Subject), len(out.Notes))
	}
}

func TestCodec_NoBlobStoreRejectsOversized(t *testing.T) {
	c := New(nil, 10)
	_, err := c.Encode(context.Background(), testDoc{Subject: "far beyond ten characters"})
	if err == nil || !strings.Contains(err.Error(), "no blob store is configured") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCodec_DecodeLegacyRawJSON(t *testing.T) {
	c := New(nil, 0)
	var out testDoc
	if err := c.Decode(context.Background(), `{"subject":"History","notes":["x"]}`, &out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Subject != "History" {
		t.Fatalf("unexpected doc: %+v", out)
	}

	var arr []int
	if err := c.Decode(context.Background(), `[1,2,3]`, &arr); err != nil {
		t.Fatalf("Decode array: %v", err)
	}
	if len(arr) != 3 {
		t.Fatalf("unexpected array: %v", arr)
	}
}

func TestCodec_DecodeInlineTaggedValue(t *testing.T) {
	ctx := context.Background()
	c := New(nil, 0)
	payload, err := c.Encode(ctx, testDoc{Subject: "Science"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var out testDoc
	if err := c.Decode(ctx, "inline:"+payload.InlineValue, &out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Subject != "Science" {
		t.Fatalf("unexpected doc: %+v", out)
	}
}

func TestCodec_CorruptValueIsDecodeError(t *testing.T) {
	c := New(nil, 0)
	var out testDoc

	err := c.Decode(context.Background(), "%%%not-base64%%%", &out)
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DecodeError, got %T: %v", err, err)
	}

	// valid base64 of bytes that are not a gzip stream
	garbage := base64.StdEncoding.EncodeToString([]byte("plainly not gzip"))
	err = c.Decode(context.Background(), garbage, &out)
	if !errors.As(err, &de) {
		t.Fatalf("expected *DecodeError, got %T: %v", err, err)
	}
}

func TestCodec_MissingBlobIsStorageFetchError(t *testing.T) {
	store := newFakeBlobStore()
	c := New(store, 0)
	var out testDoc

	err := c.Decode(context.Background(), ExternalPrefix+"schemes/gone", &out)
	var sfe *StorageFetchError
	if !errors.As(err, &sfe) {
		t.Fatalf("expected *StorageFetchError, got %T: %v", err, err)
	}
	if sfe.Handle != "schemes/gone" {
		t.Fatalf("unexpected handle %q", sfe.Handle)
	}
}

func TestCodec_ExternalWithoutStoreIsStorageFetchError(t *testing.T) {
	c := New(nil, 0)
	var out testDoc
	err := c.Decode(context.Background(), ExternalPrefix+"schemes/x", &out)
	var sfe *StorageFetchError
	if !errors.As(err, &sfe) {
		t.Fatalf("expected *StorageFetchError, got %T: %v", err, err)
	}
}
