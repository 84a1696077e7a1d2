package classify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// maxBodyChars bounds how much of the email body is sent to the Oracle.
const maxBodyChars = 2000

// maxPromptCompanies bounds how many known company names are listed in the
// prompt; the matcher handles the long tail locally.
const maxPromptCompanies = 100

// Request carries one email plus the canonical company names the Oracle may
// match against.
type Request struct {
	Sender         string
	Subject        string
	Body           string
	KnownCompanies []string
}

// Oracle is the external text-understanding capability, treated as a black
// box that either returns a structured Judgement or fails. Implementations
// must never invent a Judgement on failure.
type Oracle interface {
	Classify(ctx context.Context, req Request) (Judgement, error)
}

// LLMOracle classifies emails through an OpenAI-compatible chat completion
// endpoint in JSON mode.
type LLMOracle struct {
	model   llms.Model
	timeout time.Duration
}

// NewLLMOracle builds the production Oracle. baseURL may be empty for the
// default endpoint; timeout bounds every Classify call.
func NewLLMOracle(apiKey, baseURL, model string, timeout time.Duration) (*LLMOracle, error) {
	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create oracle client: %w", err)
	}
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &LLMOracle{model: llm, timeout: timeout}, nil
}

// Classify sends one email to the completion endpoint and parses the
// structured judgement. Transport failures and timeouts map to
// ErrUnavailable, unusable responses to ErrMalformed; neither is retried
// within a scan pass.
func (o *LLMOracle) Classify(ctx context.Context, req Request) (Judgement, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := llms.GenerateFromSinglePrompt(ctx, o.model, buildPrompt(req),
		llms.WithTemperature(0.1),
		llms.WithJSONMode(),
	)
	if err != nil {
		return Judgement{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return ParseJudgement(resp)
}

func buildPrompt(req Request) string {
	body := req.Body
	if r := []rune(body); len(r) > maxBodyChars {
		body = string(r[:maxBodyChars])
	}

	companies := req.KnownCompanies
	more := 0
	if len(companies) > maxPromptCompanies {
		more = len(companies) - maxPromptCompanies
		companies = companies[:maxPromptCompanies]
	}
	companyList := strings.Join(companies, ", ")
	if more > 0 {
		companyList += fmt.Sprintf(" ... and %d more companies", more)
	}

	var b strings.Builder
	b.WriteString("Analyze this email about a job application. Be logical and consistent.\n\n")
	fmt.Fprintf(&b, "Email Details:\nFrom: %s\nSubject: %s\nContent: %s\n\n", req.Sender, req.Subject, body)
	fmt.Fprintf(&b, "My Applications Companies:\n%s\n\n", companyList)
	b.WriteString(`CRITICAL RULES:

1. Job-Related Classification: if the email references the reader's
application, interest, or candidacy in ANY way it IS job-related. That
includes "thank you for your interest in [Company]", "unable to employ",
"unable to sponsor visas", and "pursuing other candidates".

2. Status Determination:
- "unable to employ", "unable to sponsor", "cannot hire" -> "Rejected"
- "pursuing other candidates", "not moving forward" -> "Rejected"
- "unfortunately" plus any employment-related statement -> "Rejected"
- Do NOT use "Other" for clear rejections.

3. Company Matching: extract the company name from the email and match it
flexibly against the list. Ignore spaces, hyphens, dots and legal suffixes
(Inc, LLC, Corp, Ltd); "m3usa" matches "M3 USA Corporation", "Google"
matches "Google LLC". If a listed company looks like a match with different
formatting, return it as company_match anyway.

4. Confidence: clear rejection language 0.8-0.9, ambiguous 0.5-0.7, very
unclear 0.3-0.4.

Respond in JSON:
{
  "is_job_related": true/false,
  "company_extracted": "company name from email or null",
  "company_match": "match from list or null",
  "status": "Rejected|Interview Scheduled|Interviewed|Offered|Assessment|Accepted|Declined|Follow-up Required|Applied|Other",
  "confidence": 0.1-1.0,
  "interview_date": null,
  "reasoning": "explanation"
}`)
	return b.String()
}
