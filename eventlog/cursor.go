package eventlog

import (
	"encoding/base64"
	"fmt"

	"github.com/forestrie/go-dwn/dwnerr"
)

// encodeCursor renders a watermark as the opaque cursor string EventsGet and
// MessagesQuery callers pass back on their next page request.
func encodeCursor(w uint64) string {
	return base64.RawURLEncoding.EncodeToString([]byte(fmt.Sprintf("%d", w)))
}

func decodeCursor(s string) (uint64, error) {
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return 0, dwnerr.Wrapf(dwnerr.KindInvalid, "InvalidCursor", "eventlog: decoding cursor: %v", err)
	}
	var w uint64
	if _, err := fmt.Sscanf(string(data), "%d", &w); err != nil {
		return 0, dwnerr.Wrapf(dwnerr.KindInvalid, "InvalidCursor", "eventlog: parsing cursor: %v", err)
	}
	return w, nil
}
