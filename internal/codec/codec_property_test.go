package codec

import (
	"context"
	"testing"

	"pgregory.net/rapid"
)

// TestProperty_EncodeDecodeRoundTrip verifies that any document survives the
// encode/decode cycle bit-exact, regardless of which side of the inline limit
// it lands on.
func TestProperty_EncodeDecodeRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		limit := rapid.IntRange(64, 4096).Draw(t, "inline_limit")
		c := New(newFakeBlobStore(), limit)

		in := testDoc{
			Subject: rapid.String().Draw(t, "subject"),
			Notes:   rapid.SliceOfN(rapid.String(), 0, 200).Draw(t, "notes"),
		}

		payload, err := c.Encode(ctx, in)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}

		var out testDoc
		if err := c.Decode(ctx, payload.Field(), &out); err != nil {
			t.Fatalf("Decode (%s): %v", payload.Encoding, err)
		}
		if out.Subject != in.Subject {
			t.Fatalf("subject mismatch: %q != %q", out.Subject, in.Subject)
		}
		if len(out.Notes) != len(in.Notes) {
			t.Fatalf("notes length mismatch: %d != %d", len(out.Notes), len(in.Notes))
		}
		for i := range in.Notes {
			if out.Notes[i] != in.Notes[i] {
				t.Fatalf("notes[%d] mismatch: %q != %q", i, out.Notes[i], in.Notes[i])
			}
		}
	})
}
