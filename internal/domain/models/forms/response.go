package forms

// ResponseRecord is one submitted response collected locally
type ResponseRecord struct {
	ID          string         `json:"id"`
	SubmittedAt int64          `json:"submittedAt"` // epoch ms
	Data        map[string]any `json:"data"`
}
