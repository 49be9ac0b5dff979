package imaging

import (
	"encoding/base64"
	"fmt"
	"strings"

	"stagesmart/internal/domain"
)

// Payload is a decoded image: raw bytes plus the declared media type.
// Payloads are value types and are never mutated after construction.
type Payload struct {
	Bytes     []byte
	MediaType string
}

// allowedMediaTypes is the closed set of media types accepted on the wire.
var allowedMediaTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
	"image/gif":  {},
}

const dataURIPrefix = "data:"

// Decode parses the self-describing wire form "data:<mediaType>;base64,<payload>"
// into a Payload. It fails with domain.ErrMalformedImage when the tag is
// missing, the media type is not on the allow-list, or the byte payload does
// not decode.
func Decode(wire string) (Payload, error) {
	if !strings.HasPrefix(wire, dataURIPrefix) {
		return Payload{}, fmt.Errorf("%w: missing data URI prefix", domain.ErrMalformedImage)
	}
	rest := wire[len(dataURIPrefix):]
	meta, encoded, ok := strings.Cut(rest, ",")
	if !ok {
		return Payload{}, fmt.Errorf("%w: missing payload separator", domain.ErrMalformedImage)
	}
	mediaType, found := strings.CutSuffix(meta, ";base64")
	if !found {
		return Payload{}, fmt.Errorf("%w: payload is not base64 tagged", domain.ErrMalformedImage)
	}
	if _, ok := allowedMediaTypes[mediaType]; !ok {
		return Payload{}, fmt.Errorf("%w: unsupported media type %q", domain.ErrMalformedImage, mediaType)
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: decode base64: %v", domain.ErrMalformedImage, err)
	}
	if len(data) == 0 {
		return Payload{}, fmt.Errorf("%w: empty payload", domain.ErrMalformedImage)
	}
	return Payload{Bytes: data, MediaType: mediaType}, nil
}

// Encode is the inverse of Decode and always succeeds for a well-formed
// Payload.
func Encode(p Payload) string {
	return fmt.Sprintf("data:%s;base64,%s", p.MediaType, base64.StdEncoding.EncodeToString(p.Bytes))
}

// Valid reports whether the payload carries bytes and an allowed media type.
func Valid(p Payload) bool {
	if len(p.Bytes) == 0 {
		return false
	}
	_, ok := allowedMediaTypes[p.MediaType]
	return ok
}
