package secure

import (
	"crypto/tls"
	"encoding/binary"
	"fmt"
)

// TLS record layer
const (
	recordHeaderSize = 5

	recordTypeAlert           = 21
	recordTypeApplicationData = 23

	// maxRecordCiphertext is the TLS 1.2 limit on one record's fragment.
	maxRecordCiphertext = maxRecordPlaintext + 2048
)

// checkRecords verifies that body is a run of whole TLS 1.2 data or alert
// records. Bodies that fail never reach the tls.Conn, so a truncated or
// garbled frame cannot leave partial input behind for the next one.
func checkRecords(body []byte) error {
	if len(body) == 0 {
		return ErrIncompleteRecord
	}
	for len(body) > 0 {
		if len(body) < recordHeaderSize {
			return fmt.Errorf("%w: %d trailing bytes", ErrIncompleteRecord, len(body))
		}
		typ := body[0]
		version := binary.BigEndian.Uint16(body[1:3])
		length := int(binary.BigEndian.Uint16(body[3:5]))

		if typ != recordTypeApplicationData && typ != recordTypeAlert {
			return fmt.Errorf("%w: content type %d", ErrMalformedRecord, typ)
		}
		if version != tls.VersionTLS12 {
			return fmt.Errorf("%w: record version 0x%04x", ErrMalformedRecord, version)
		}
		if length == 0 || length > maxRecordCiphertext {
			return fmt.Errorf("%w: record length %d", ErrMalformedRecord, length)
		}
		if len(body) < recordHeaderSize+length {
			return fmt.Errorf("%w: record needs %d bytes, got %d", ErrIncompleteRecord, recordHeaderSize+length, len(body))
		}
		body = body[recordHeaderSize+length:]
	}
	return nil
}
