package transfer

type HashtagLadder struct {
	Broad    []string `json:"broad"`
	Niche    []string `json:"niche"`
	Specific []string `json:"specific"`
}

// AnalysisResponse is the structured verdict of the AI on a candidate grid row.
// SuggestedOrder is 0-based left-to-right.
type AnalysisResponse struct {
	SuggestedOrder     []int           `json:"suggested_order"`
	Captions           []string        `json:"captions"`
	IndividualScores   []int           `json:"individual_scores"`
	Hashtags           []HashtagLadder `json:"hashtags"`
	CoherenceScore     int             `json:"coherence_score"`
	CoherenceReasoning string          `json:"coherence_reasoning"`
	CommonThreadFR     string          `json:"common_thread_fr"`
	CommonThreadEN     string          `json:"common_thread_en"`
}

type RegenerateRequest struct {
	ImageBase64       string   `json:"image_base64"`
	CommonContext     string   `json:"common_context"`
	IndividualContext string   `json:"individual_context"`
	CaptionsHistory   []string `json:"captions_history"`
	CommonThreadFR    string   `json:"common_thread_fr"`
	CommonThreadEN    string   `json:"common_thread_en"`
	AIProvider        string   `json:"ai_provider"`
}

type RegenerateResponse struct {
	Caption string `json:"caption"`
}
