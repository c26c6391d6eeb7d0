package docintel

import (
	"encoding/base64"
	"fmt"
)

// EncodeDocument encodes raw document bytes for the base64Source request field
func EncodeDocument(document []byte) string {
	return base64.StdEncoding.EncodeToString(document)
}

// DecodeDocument reverses EncodeDocument
func DecodeDocument(encoded string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding base64 document: %w", err)
	}
	return data, nil
}
