package image

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/jmylchreest/swatch/internal/colour"
)

// EncodeDataURL renders data as a base64 data URL.
func EncodeDataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL parses a base64 data URL ("data:image/png;base64,...") and
// returns its media type and payload. A bare base64 string is also accepted
// and reported with an empty media type.
func DecodeDataURL(s string) (string, []byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil, fmt.Errorf("%w: empty data URL", colour.ErrInvalidImage)
	}

	mime := ""
	payload := s
	if strings.HasPrefix(s, "data:") {
		header, body, ok := strings.Cut(s[len("data:"):], ",")
		if !ok {
			return "", nil, fmt.Errorf("%w: malformed data URL", colour.ErrInvalidImage)
		}
		params := strings.Split(header, ";")
		if params[len(params)-1] != "base64" {
			return "", nil, fmt.Errorf("%w: data URL must be base64 encoded", colour.ErrInvalidImage)
		}
		mime = params[0]
		payload = body
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Some encoders drop padding.
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return "", nil, fmt.Errorf("%w: invalid base64 payload: %v", colour.ErrInvalidImage, err)
		}
	}
	return mime, data, nil
}
