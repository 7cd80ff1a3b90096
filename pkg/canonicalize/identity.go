package canonicalize

// volatileFields are payload keys that vary per generation run without
// changing what the command means. They are stripped before identity
// hashing so two generators proposing the same operation group together.
var volatileFields = map[string]struct{}{
	"timestamp":      {},
	"issued_at":      {},
	"correlation_id": {},
	"id":             {},
	"request_id":     {},
	"created_at":     {},
}

// CommandIdentity hashes a candidate command's (action, target, payload)
// triple with volatile payload fields removed. The input payload is not
// modified.
func CommandIdentity(action, target string, payload map[string]any) (string, error) {
	stable := make(map[string]any, len(payload))
	for k, v := range payload {
		if _, volatile := volatileFields[k]; volatile {
			continue
		}
		stable[k] = v
	}
	return CanonicalHash(struct {
		Action  string         `json:"action"`
		Target  string         `json:"target"`
		Payload map[string]any `json:"payload"`
	}{Action: action, Target: target, Payload: stable})
}
