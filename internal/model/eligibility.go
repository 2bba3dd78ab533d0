package model

type EligibilityRequest struct {
	// Image is base64, optionally prefixed with a data URI header.
	Image string `json:"image" binding:"required"`
}

type Verdict string

const (
	VerdictYes Verdict = "yes"
	VerdictNo  Verdict = "no"
)

type EligibilityResult struct {
	Eligible        Verdict           `json:"eligible"`
	Reason          string            `json:"reason,omitempty"`
	ExtractedFields map[string]string `json:"extracted_fields"`
}
