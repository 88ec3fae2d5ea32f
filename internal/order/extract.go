package order

import (
	"encoding/json"
	"regexp"
	"strings"
)

// tagPrefix is the literal marker the model is instructed to emit in front of
// the order JSON. Case-sensitive by contract.
const tagPrefix = "ORDER_DATA:"

// tagPattern matches the tag plus the first lazily-closed JSON object after
// it. The tag is always the final element of a confirming reply, so matching
// up to the first closing brace is sufficient; nested objects are not part of
// the wire contract.
var tagPattern = regexp.MustCompile(`(?s)ORDER_DATA:\s*(\{.*?\})`)

// Order is a finalized order decoded from a model reply.
type Order struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Items   string `json:"items"`
	Total   string `json:"total"`
}

// Extract looks for the order tag in a model reply. On a successful decode it
// returns the reply with the tag stripped plus the order. If the tag is
// absent, or present but its payload does not decode, the full reply is
// returned unmodified and no order is produced — a malformed tag stays
// visible to the customer rather than being silently dropped.
func Extract(reply string) (string, *Order) {
	m := tagPattern.FindStringSubmatchIndex(reply)
	if m == nil {
		return reply, nil
	}

	payload := strings.TrimSpace(reply[m[2]:m[3]])
	var o Order
	if err := json.Unmarshal([]byte(payload), &o); err != nil {
		return reply, nil
	}

	visible := strings.TrimSpace(reply[:m[0]] + reply[m[1]:])
	return visible, &o
}

// SanitizeForHistory removes the tag and everything after it from an
// assistant reply before it enters the session history, so later model calls
// never see a stale confirmation tag and re-confirm an old order. Applied
// unconditionally — even a malformed tag must not survive into history.
func SanitizeForHistory(reply string) string {
	if i := strings.Index(reply, tagPrefix); i >= 0 {
		return strings.TrimSpace(reply[:i])
	}
	return reply
}
