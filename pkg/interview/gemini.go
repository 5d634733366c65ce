package interview

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/intervox-ai/intervox/pkg/transcript"
)

// Service runs the two structured-JSON calls around the live session:
// profile analysis before it and report generation after it. The client
// is constructed by the caller and shared with the live transport.
type Service struct {
	client *genai.Client
	model  string
}

// NewService wraps a caller-owned client. model selects the text model
// used for both calls.
func NewService(client *genai.Client, model string) *Service {
	return &Service{client: client, model: model}
}

// AnalyzeProfile inspects the job description and CV and produces the
// interviewer persona configuration for the live session.
func (s *Service) AnalyzeProfile(ctx context.Context, data InterviewData) (*AnalysisResult, error) {
	resp, err := s.client.Models.GenerateContent(ctx, s.model,
		genai.Text(analysisPrompt(data)),
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   analysisSchema(),
		})
	if err != nil {
		return nil, NewUpstreamError("profile analysis failed", err)
	}
	text := resp.Text()
	if text == "" {
		return nil, NewUpstreamError("profile analysis returned no content", nil)
	}
	result, err := parseAnalysis([]byte(text))
	if err != nil {
		return nil, NewUpstreamError("profile analysis returned malformed JSON", err)
	}
	return result, nil
}

// GenerateReport evaluates the committed transcript against the original
// job description.
func (s *Service) GenerateReport(ctx context.Context, history []transcript.Item, data InterviewData) (*ReportData, error) {
	resp, err := s.client.Models.GenerateContent(ctx, s.model,
		genai.Text(reportPrompt(data, RenderTranscript(history))),
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   reportSchema(),
		})
	if err != nil {
		return nil, NewUpstreamError("report generation failed", err)
	}
	text := resp.Text()
	if text == "" {
		return nil, NewUpstreamError("report generation returned no content", nil)
	}
	report, err := parseReport([]byte(text))
	if err != nil {
		return nil, NewUpstreamError("report generation returned malformed JSON", err)
	}
	return report, nil
}

// RenderTranscript flattens committed items into role-tagged lines for
// the report prompt.
func RenderTranscript(items []transcript.Item) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, fmt.Sprintf("%s: %s", strings.ToUpper(string(item.Role)), item.Text))
	}
	return strings.Join(lines, "\n")
}

func analysisPrompt(data InterviewData) string {
	return fmt.Sprintf(`You are a senior recruiter and hiring manager. Analyze the job description and candidate CV below to prepare for a live interview.

Company culture: %s

---
JOB DESCRIPTION:
%s
---
CANDIDATE CV:
%s
---

Return JSON with:
1. systemInstruction: a detailed instruction for an AI interviewer. It must cover the persona (tone matching the company culture), the context (interviewing this candidate for this position), and the conduct: ask short questions one at a time, listen to each answer before asking the next, and probe deeper into experience where warranted. Speak Vietnamese.
2. interviewFocus: 3-5 topics to focus on, based on gaps in the CV or critical requirements of the job.
3. candidateStrengths: 3 strengths in the CV that match the job.
4. initialGreeting: an opening line introducing the AI interviewer and inviting the candidate to begin.`,
		data.CompanyCulture, data.JobDescription, data.CandidateCV)
}

func reportPrompt(data InterviewData, conversation string) string {
	return fmt.Sprintf(`Evaluate the candidate for the position described below based on this interview transcript. Be strict and fair.

JOB DESCRIPTION:
%s

TRANSCRIPT:
%s`, data.JobDescription, conversation)
}

func analysisSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"systemInstruction":  {Type: genai.TypeString},
			"interviewFocus":     {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
			"candidateStrengths": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
			"initialGreeting":    {Type: genai.TypeString},
		},
		Required: []string{"systemInstruction", "interviewFocus", "candidateStrengths", "initialGreeting"},
	}
}

func reportSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"score":          {Type: genai.TypeNumber, Description: "Score out of 100"},
			"summary":        {Type: genai.TypeString, Description: "Executive summary of the interview performance"},
			"strengths":      {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
			"weaknesses":     {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
			"recommendation": {Type: genai.TypeString, Enum: []string{"STRONG_HIRE", "HIRE", "MAYBE", "NO_HIRE"}},
			"details":        {Type: genai.TypeString, Description: "Detailed analysis of technical and soft skills"},
		},
		Required: []string{"score", "summary", "strengths", "weaknesses", "recommendation", "details"},
	}
}

func parseAnalysis(raw []byte) (*AnalysisResult, error) {
	var result AnalysisResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, err
	}
	if result.SystemInstruction == "" {
		return nil, fmt.Errorf("missing systemInstruction")
	}
	return &result, nil
}

func parseReport(raw []byte) (*ReportData, error) {
	// The model may emit the score as a float.
	var wire struct {
		Score          float64        `json:"score"`
		Summary        string         `json:"summary"`
		Strengths      []string       `json:"strengths"`
		Weaknesses     []string       `json:"weaknesses"`
		Recommendation Recommendation `json:"recommendation"`
		Details        string         `json:"details"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, err
	}
	switch wire.Recommendation {
	case RecommendStrongHire, RecommendHire, RecommendMaybe, RecommendNoHire:
	default:
		return nil, fmt.Errorf("unknown recommendation %q", wire.Recommendation)
	}
	return &ReportData{
		Score:          int(wire.Score),
		Summary:        wire.Summary,
		Strengths:      wire.Strengths,
		Weaknesses:     wire.Weaknesses,
		Recommendation: wire.Recommendation,
		Details:        wire.Details,
	}, nil
}
