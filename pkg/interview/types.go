// Package interview drives the mock-interview flow around the live audio
// session: profile analysis before the call, phase orchestration during it,
// and report generation from the committed transcript afterwards.
package interview

// InterviewData is the user-supplied setup input for one interview.
type InterviewData struct {
	JobDescription string `json:"jobDescription"`
	CandidateCV    string `json:"candidateCV"`
	CompanyCulture string `json:"companyCulture"`
}

// AnalysisResult is the structured output of the profile analysis call.
// SystemInstruction becomes the interviewer persona for the live session.
type AnalysisResult struct {
	SystemInstruction  string   `json:"systemInstruction"`
	InterviewFocus     []string `json:"interviewFocus"`
	CandidateStrengths []string `json:"candidateStrengths"`
	InitialGreeting    string   `json:"initialGreeting"`
}

// Recommendation is the hiring verdict in a generated report.
type Recommendation string

const (
	RecommendStrongHire Recommendation = "STRONG_HIRE"
	RecommendHire       Recommendation = "HIRE"
	RecommendMaybe      Recommendation = "MAYBE"
	RecommendNoHire     Recommendation = "NO_HIRE"
)

// ReportData is the structured evaluation produced from a finished
// interview transcript.
type ReportData struct {
	Score          int            `json:"score"`
	Summary        string         `json:"summary"`
	Strengths      []string       `json:"strengths"`
	Weaknesses     []string       `json:"weaknesses"`
	Recommendation Recommendation `json:"recommendation"`
	Details        string         `json:"details"`
}
