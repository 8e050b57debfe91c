package backup

import (
	"encoding/base64"
	"errors"
	"strings"
)

// EncodeDataURI renders a self-contained, serializable encoding of binary
// data that survives outside the current session.
func EncodeDataURI(mime string, data []byte) string {
	if mime == "" {
		mime = "application/octet-stream"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURI reverses EncodeDataURI. Only base64 payloads are accepted;
// that is the only form the codec ever writes.
func DecodeDataURI(s string) (mime string, data []byte, err error) {
	if !strings.HasPrefix(s, "data:") {
		return "", nil, errors.New("not a data URI")
	}
	head, payload, ok := strings.Cut(s[len("data:"):], ",")
	if !ok {
		return "", nil, errors.New("malformed data URI")
	}
	mime, enc, _ := strings.Cut(head, ";")
	if enc != "base64" {
		return "", nil, errors.New("unsupported data URI encoding")
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, err
	}
	return mime, data, nil
}

// IsDataURI and IsRemoteURL classify portable reference strings.
func IsDataURI(s string) bool { return strings.HasPrefix(s, "data:") }

func IsRemoteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
