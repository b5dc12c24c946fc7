// Package protoscan extracts length-delimited fields out of opaque protobuf
// wire data without a schema. The IDE login state we import from was never
// published as a .proto file, so the field numbers below are the only
// contract we have; anything beyond "skip unwanted fields, return the bytes
// of the one we asked for" is deliberately out of scope.
package protoscan

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrFieldNotFound is returned when the buffer decodes cleanly but the
// requested field number never appears. Callers treat this as a normal
// branch (try the next format), not as corruption.
var ErrFieldNotFound = errors.New("protoscan: field not found")

// Extract scans top-level fields of buf and returns the payload bytes of the
// first length-delimited occurrence of field. Varint and fixed-width fields
// with other numbers are skipped; malformed wire data yields an error, never
// a panic.
func Extract(buf []byte, field protowire.Number) ([]byte, error) {
	rest := buf
	for len(rest) > 0 {
		num, typ, n := protowire.ConsumeTag(rest)
		if n < 0 {
			return nil, fmt.Errorf("protoscan: bad tag: %w", protowire.ParseError(n))
		}
		rest = rest[n:]

		switch typ {
		case protowire.VarintType:
			if _, n = protowire.ConsumeVarint(rest); n < 0 {
				return nil, fmt.Errorf("protoscan: field %d: bad varint: %w", num, protowire.ParseError(n))
			}
		case protowire.BytesType:
			payload, m := protowire.ConsumeBytes(rest)
			if m < 0 {
				return nil, fmt.Errorf("protoscan: field %d: bad length-delimited payload: %w", num, protowire.ParseError(m))
			}
			if num == field {
				return payload, nil
			}
			n = m
		case protowire.Fixed64Type:
			if _, n = protowire.ConsumeFixed64(rest); n < 0 {
				return nil, fmt.Errorf("protoscan: field %d: truncated fixed64: %w", num, protowire.ParseError(n))
			}
		case protowire.Fixed32Type:
			if _, n = protowire.ConsumeFixed32(rest); n < 0 {
				return nil, fmt.Errorf("protoscan: field %d: truncated fixed32: %w", num, protowire.ParseError(n))
			}
		default:
			return nil, fmt.Errorf("protoscan: field %d: unsupported wire type %d", num, typ)
		}
		rest = rest[n:]
	}
	return nil, ErrFieldNotFound
}

// ExtractPath chains Extract across nested messages: the payload returned for
// path[0] is scanned for path[1], and so on. The error reports which hop
// failed so a bad blob can be diagnosed without a debugger.
func ExtractPath(buf []byte, path ...protowire.Number) ([]byte, error) {
	payload := buf
	for i, field := range path {
		inner, err := Extract(payload, field)
		if err != nil {
			return nil, fmt.Errorf("protoscan: path %v at hop %d (field %d): %w", path, i, field, err)
		}
		payload = inner
	}
	return payload, nil
}
