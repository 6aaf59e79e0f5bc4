package codec

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

type Encoding string

const (
	EncodingInline   Encoding = "inline"
	EncodingExternal Encoding = "external"
)

// ExternalPrefix tags a persisted field whose value lives in blob storage.
// The format is self-describing; no side channel records which path was used.
const ExternalPrefix = "external:"

// inlineTag is accepted on decode for fields written by older tooling that
// tagged compressed values explicitly.
const inlineTag = "inline:"

// DefaultInlineLimit is the platform cap on inline field size, in characters
// of the encoded string. Treated as configuration, not a constant of the
// design.
const DefaultInlineLimit = 100000

type PersistedPayload struct {
	Encoding    Encoding `json:"encoding"`
	InlineValue string   `json:"inline_value,omitempty"`
	ExternalRef string   `json:"external_ref,omitempty"`
}

// Field is the string the caller actually persists.
func (p PersistedPayload) Field() string {
	if p.Encoding == EncodingExternal {
		return ExternalPrefix + p.ExternalRef
	}
	return p.InlineValue
}

// BlobStore is the codec's only external dependency, used for payloads past
// the inline limit.
type BlobStore interface {
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, handle string) ([]byte, error)
}

// StorageFetchError wraps a failed blob fetch. Propagated, never retried
// here.
type StorageFetchError struct {
	Handle string
	Err    error
}

func (e *StorageFetchError) Error() string {
	return fmt.Sprintf("fetch blob %q: %v", e.Handle, e.Err)
}
func (e *StorageFetchError) Unwrap() error { return e.Err }

// DecodeError means the stored value is corrupt or truncated. Fatal to the
// read; callers must not default.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode payload: %s: %v", e.Reason, e.Err)
	}
	return "decode payload: " + e.Reason
}
func (e *DecodeError) Unwrap() error { return e.Err }

type Codec struct {
	blobs       BlobStore
	inlineLimit int
}

func New(blobs BlobStore, inlineLimit int) *Codec {
	if inlineLimit <= 0 {
		inlineLimit = DefaultInlineLimit
	}
	return &Codec{blobs: blobs, inlineLimit: inlineLimit}
}

// Encode serializes doc to canonical JSON, compresses it and base64-encodes
// the result. Values at or under the inline limit stay inline; larger ones
// are offloaded to blob storage and referenced by an external: tag.
func (c *Codec) Encode(ctx context.Context, doc any) (PersistedPayload, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return PersistedPayload{}, fmt.Errorf("marshal document: %w", err)
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return PersistedPayload{}, fmt.Errorf("compress document: %w", err)
	}
	if err := zw.Close(); err != nil {
		return PersistedPayload{}, fmt.Errorf("compress document: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(buf.Bytes())

	if len(encoded) <= c.inlineLimit {
		return PersistedPayload{Encoding: EncodingInline, InlineValue: encoded}, nil
	}

	if c.blobs == nil {
		return PersistedPayload{}, fmt.Errorf("payload exceeds inline limit (%d chars) and no blob store is configured", c.inlineLimit)
	}
	handle, err := c.blobs.Put(ctx, []byte(encoded))
	if err != nil {
		return PersistedPayload{}, fmt.Errorf("upload payload blob: %w", err)
	}
	return PersistedPayload{Encoding: EncodingExternal, ExternalRef: handle}, nil
}

// Decode routes a stored field value to exactly one of three paths, checked
// in fixed order: external tag, compressed/opaque, legacy raw JSON. The raw
// JSON path exists for rows written before the codec did; compressed output
// is byte-incompatible with a leading { or [ so the checks are exclusive.
func (c *Codec) Decode(ctx context.Context, field string, out any) error {
	if strings.HasPrefix(field, ExternalPrefix) {
		handle := strings.TrimPrefix(field, ExternalPrefix)
		if c.blobs == nil {
			return &StorageFetchError{Handle: handle, Err: fmt.Errorf("no blob store configured")}
		}
		data, err := c.blobs.Get(ctx, handle)
		if err != nil {
			return &StorageFetchError{Handle: handle, Err: err}
		}
		return c.decodeCompressed(string(data), out)
	}

	if strings.HasPrefix(field, inlineTag) {
		return c.decodeCompressed(strings.TrimPrefix(field, inlineTag), out)
	}

	if strings.HasPrefix(field, "{") || strings.HasPrefix(field, "[") {
		if err := json.Unmarshal([]byte(field), out); err != nil {
			return &DecodeError{Reason: "legacy raw JSON", Err: err}
		}
		return nil
	}

	return c.decodeCompressed(field, out)
}

func (c *Codec) decodeCompressed(encoded string, out any) error {
	compressed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return &DecodeError{Reason: "base64", Err: err}
	}
	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return &DecodeError{Reason: "gzip header", Err: err}
	}
	raw, err := io.ReadAll(zr)
	if err != nil {
		return &DecodeError{Reason: "gzip body", Err: err}
	}
	if err := zr.Close(); err != nil {
		return &DecodeError{Reason: "gzip close", Err: err}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &DecodeError{Reason: "json", Err: err}
	}
	return nil
}
