package image

import (
	"encoding/base64"
	"errors"
	"strings"
)

// ErrNotDataURL indicates the reference is not a base64 data URL.
var ErrNotDataURL = errors.New("not a base64 data URL")

// IsDataURL reports whether ref is an inline data: reference.
func IsDataURL(ref string) bool {
	return strings.HasPrefix(ref, "data:")
}

// ParseDataURL decodes a "data:<mime>;base64,<payload>" reference and
// returns the media type and raw bytes. Only base64 payloads are accepted.
func ParseDataURL(ref string) (string, []byte, error) {
	if !IsDataURL(ref) {
		return "", nil, ErrNotDataURL
	}

	meta, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok {
		return "", nil, ErrNotDataURL
	}

	mediaType, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, ErrNotDataURL
	}
	if mediaType == "" {
		mediaType = "text/plain"
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, err
	}
	return mediaType, data, nil
}

// DataURL encodes data as a base64 data URL with the given media type.
func DataURL(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
