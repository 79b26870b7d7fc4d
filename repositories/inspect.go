package repositories

import (
	"chat-relay/internal"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// InspectMapper renders message and user rows for the debug inspector.
// Password hashes are never shown.
func InspectMapper(key string, val []byte) internal.InspectRow {
	row := internal.DefaultMapper(key, val)

	switch {
	case strings.HasPrefix(key, messagePrefix):
		var m DiskMessage
		if err := cbor.Unmarshal(val, &m); err != nil {
			return row
		}
		row.Type = "BROADCAST"
		to := "*"
		if m.Receiver != nil {
			row.Type = "DIRECT"
			to = *m.Receiver
		}
		row.EntityID = strconv.FormatUint(m.ID, 10)
		row.Timestamp = time.Unix(0, m.At).UTC().Format(time.RFC3339Nano)
		row.Detail = fmt.Sprintf("%s -> %s: %q", m.Sender, to, m.Text)

	case strings.HasPrefix(key, userPrefix):
		var u User
		if err := cbor.Unmarshal(val, &u); err != nil {
			return row
		}
		row.Type = "USER"
		row.EntityID = u.ID
		row.Timestamp = u.CreatedAt.Format(time.RFC3339)
		row.Detail = fmt.Sprintf("%s roles=%v", u.Email, u.Roles)
	}
	return row
}
