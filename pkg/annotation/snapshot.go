package annotation

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// EncodeSnapshot serialises the document, job status included, as msgpack.
// Snapshots load much faster than XML for large exports.
func EncodeSnapshot(d *Document) ([]byte, error) {
	data, err := msgpack.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot restores a document written by EncodeSnapshot
func DecodeSnapshot(data []byte) (*Document, error) {
	var d Document
	if err := msgpack.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &d, nil
}
