package entity

// SynthesisResult is the best-effort answer assembled from the ledger when a
// session ends without a planner-issued Terminate.
type SynthesisResult struct {
	Answer        string  `json:"answer"`
	Justification string  `json:"justification"`
	Citations     []int   `json:"citations"`
	Confidence    float64 `json:"confidence"`
}

type SynthesisCriteria struct {
	Question     string
	Observations []Observation
	Reason       string
}
