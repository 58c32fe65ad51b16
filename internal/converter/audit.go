package converter

import (
	"time"

	"github.com/noah-isme/fieldsync/internal/models"
)

const (
	fieldUser            = "user"
	fieldUserID          = "id"
	fieldUserDisplayName = "displayName"
	fieldClientTimestamp = "clientTimestamp"
	fieldServerTimestamp = "serverTimestamp"
)

// auditInfoToFields writes audit metadata in remote form. The server
// timestamp is omitted when unknown; the remote store fills it in.
func auditInfoToFields(info models.AuditInfo) map[string]interface{} {
	fields := map[string]interface{}{
		fieldUser: map[string]interface{}{
			fieldUserID:          info.User.ID,
			fieldUserDisplayName: info.User.DisplayName,
		},
		fieldClientTimestamp: info.ClientTime.UnixMilli(),
	}
	if info.ServerTime != nil {
		fields[fieldServerTimestamp] = info.ServerTime.UnixMilli()
	}
	return fields
}

// auditInfoFromFields tolerates partially populated audit objects; missing
// pieces fall back to zero values rather than failing the read.
func auditInfoFromFields(raw interface{}) models.AuditInfo {
	fields, ok := raw.(map[string]interface{})
	if !ok {
		return models.FallbackAuditInfo()
	}
	info := models.AuditInfo{}
	if user, ok := fields[fieldUser].(map[string]interface{}); ok {
		info.User.ID, _ = user[fieldUserID].(string)
		info.User.DisplayName, _ = user[fieldUserDisplayName].(string)
	}
	if millis, ok := asInt64(fields[fieldClientTimestamp]); ok {
		info.ClientTime = time.UnixMilli(millis).UTC()
	}
	if millis, ok := asInt64(fields[fieldServerTimestamp]); ok {
		serverTime := time.UnixMilli(millis).UTC()
		info.ServerTime = &serverTime
	}
	return info
}

// asInt64 accepts both int64 and the float64 that JSON decoding produces.
func asInt64(raw interface{}) (int64, bool) {
	switch v := raw.(type) {
	case int64:
		return v, true
	case float64:
		return int64(v), true
	case int:
		return int64(v), true
	}
	return 0, false
}
