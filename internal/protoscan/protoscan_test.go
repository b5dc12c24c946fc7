package protoscan

import (
	"bytes"
	"errors"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

func appendStringField(buf []byte, num protowire.Number, s string) []byte {
	buf = protowire.AppendTag(buf, num, protowire.BytesType)
	return protowire.AppendBytes(buf, []byte(s))
}

func TestExtract_FirstOccurrenceWins(t *testing.T) {
	var buf []byte
	buf = appendStringField(buf, 1, "a")
	buf = appendStringField(buf, 3, "b")
	buf = appendStringField(buf, 1, "c")

	got, err := Extract(buf, 1)
	if err != nil {
		t.Fatalf("extract field 1: %v", err)
	}
	if string(got) != "a" {
		t.Fatalf("expected first occurrence %q, got %q", "a", got)
	}
}

func TestExtract_FieldAbsent(t *testing.T) {
	var buf []byte
	buf = appendStringField(buf, 1, "a")
	buf = appendStringField(buf, 3, "b")

	if _, err := Extract(buf, 5); !errors.Is(err, ErrFieldNotFound) {
		t.Fatalf("expected ErrFieldNotFound, got %v", err)
	}
}

func TestExtract_SkipsOtherWireTypes(t *testing.T) {
	var buf []byte
	buf = protowire.AppendTag(buf, 2, protowire.VarintType)
	buf = protowire.AppendVarint(buf, 42)
	buf = protowire.AppendTag(buf, 4, protowire.Fixed64Type)
	buf = protowire.AppendFixed64(buf, 7)
	buf = protowire.AppendTag(buf, 5, protowire.Fixed32Type)
	buf = protowire.AppendFixed32(buf, 9)
	buf = appendStringField(buf, 6, "payload")

	got, err := Extract(buf, 6)
	if err != nil {
		t.Fatalf("extract field 6: %v", err)
	}
	if string(got) != "payload" {
		t.Fatalf("expected %q, got %q", "payload", got)
	}
}

func TestExtract_MalformedInput(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
	}{
		{name: "truncated varint tag", buf: []byte{0x80}},
		{name: "truncated varint value", buf: []byte{0x08, 0xFF}},
		{name: "length exceeds buffer", buf: []byte{0x0A, 0x7F, 0x01}},
		{name: "truncated fixed64", buf: []byte{0x09, 0x01, 0x02}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract(tt.buf, 1)
			if err == nil {
				t.Fatal("expected decode error, got nil")
			}
			if errors.Is(err, ErrFieldNotFound) {
				t.Fatalf("malformed input must not report not-found: %v", err)
			}
		})
	}
}

func TestExtract_EmptyBuffer(t *testing.T) {
	if _, err := Extract(nil, 1); !errors.Is(err, ErrFieldNotFound) {
		t.Fatalf("empty buffer should be not-found, got %v", err)
	}
}

func TestExtractPath_Nested(t *testing.T) {
	inner := appendStringField(nil, 3, "refresh-token")
	middle := protowire.AppendTag(nil, 2, protowire.BytesType)
	middle = protowire.AppendBytes(middle, inner)
	outer := protowire.AppendTag(nil, 6, protowire.BytesType)
	outer = protowire.AppendBytes(outer, middle)

	got, err := ExtractPath(outer, 6, 2, 3)
	if err != nil {
		t.Fatalf("extract path: %v", err)
	}
	if !bytes.Equal(got, []byte("refresh-token")) {
		t.Fatalf("expected refresh-token, got %q", got)
	}
}

func TestExtractPath_MissingHop(t *testing.T) {
	outer := appendStringField(nil, 6, "not a message with field 9")

	// Hop 1 asks for field 9 inside a payload that decodes but lacks it,
	// or fails to decode at all; either way the path must not resolve.
	if _, err := ExtractPath(outer, 6, 9); err == nil {
		t.Fatal("expected error for unresolvable path")
	}
}
