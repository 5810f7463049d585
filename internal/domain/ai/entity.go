package ai

// ChatTurn is one entry of caller-owned conversation history.
// The server forwards history as-is and never stores it.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AnalysisInput is what the analysis backend gets to see of a document.
type AnalysisInput struct {
	FileName string
	Text     string
	Pages    int
}

// Analysis is the result schema requested from every backend.
type Analysis struct {
	Summary         string   `json:"summary"`
	DocumentType    string   `json:"documentType"`
	KeyFindings     []string `json:"keyFindings"`
	Recommendations []string `json:"recommendations"`
	WordCount       int      `json:"wordCount"`
	PageCount       int      `json:"pageCount"`
	Degraded        bool     `json:"degraded"`
}
