package classify

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors making up the Oracle failure taxonomy. Both mean "no
// evidence for this email": the caller skips the message and counts the
// failure, never defaulting it into a status.
var (
	// ErrUnavailable covers network failures and timeouts reaching the
	// Oracle.
	ErrUnavailable = errors.New("oracle unavailable")
	// ErrMalformed covers responses that are not a usable Judgement:
	// invalid JSON, missing critical fields, or provider error payloads.
	ErrMalformed = errors.New("oracle response malformed")
)

// Judgement is the Oracle's structured opinion about one email. Status is
// the raw guess as an open string ("Other" included); it is narrowed into
// the tracker's closed enum only at selection time.
type Judgement struct {
	JobRelated       bool    `json:"is_job_related"`
	CompanyExtracted string  `json:"company_extracted"`
	CompanyMatch     string  `json:"company_match"`
	Status           string  `json:"status"`
	Confidence       float64 `json:"confidence"`
	InterviewDate    string  `json:"interview_date"`
	Reasoning        string  `json:"reasoning"`
}

// ParseJudgement converts a raw Oracle completion into a Judgement. The
// provider returns many shapes in practice: clean JSON, JSON wrapped in
// markdown fences, error payloads dressed up as results. Everything that is
// not a usable Judgement maps to ErrMalformed; an error-shaped payload is
// never coerced into a result.
func ParseJudgement(raw string) (Judgement, error) {
	raw = stripFences(raw)
	if strings.TrimSpace(raw) == "" {
		return Judgement{}, fmt.Errorf("%w: empty response", ErrMalformed)
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return Judgement{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	// Provider error payloads arrive as {"action":"error",...} or with a
	// numeric HTTP-style status field.
	if action, _ := fields["action"].(string); action == "error" {
		return Judgement{}, fmt.Errorf("%w: provider error payload", ErrMalformed)
	}
	if _, isNum := fields["status"].(float64); isNum {
		return Judgement{}, fmt.Errorf("%w: numeric status code in response", ErrMalformed)
	}

	if _, ok := fields["is_job_related"]; !ok {
		return Judgement{}, fmt.Errorf("%w: missing is_job_related", ErrMalformed)
	}
	if _, ok := fields["status"]; !ok {
		return Judgement{}, fmt.Errorf("%w: missing status", ErrMalformed)
	}

	j := Judgement{
		JobRelated:       boolField(fields, "is_job_related"),
		CompanyExtracted: stringField(fields, "company_extracted"),
		CompanyMatch:     stringField(fields, "company_match"),
		Status:           stringField(fields, "status"),
		Confidence:       floatField(fields, "confidence", 0.5),
		InterviewDate:    stringField(fields, "interview_date"),
		Reasoning:        stringField(fields, "reasoning"),
	}

	// Some completions report their own parse trouble instead of failing.
	if strings.EqualFold(j.Reasoning, "JSON parsing failed") {
		return Judgement{}, fmt.Errorf("%w: oracle reported parse failure", ErrMalformed)
	}

	return j, nil
}

// stripFences removes a surrounding markdown code fence, if present.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func stringField(fields map[string]any, key string) string {
	v, ok := fields[key].(string)
	if !ok {
		return ""
	}
	v = strings.TrimSpace(v)
	// Models occasionally spell out the null.
	if strings.EqualFold(v, "none") || strings.EqualFold(v, "null") {
		return ""
	}
	return v
}

func boolField(fields map[string]any, key string) bool {
	switch v := fields[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	default:
		return false
	}
}

func floatField(fields map[string]any, key string, def float64) float64 {
	switch v := fields[key].(type) {
	case float64:
		return v
	case string:
		var f float64
		if _, err := fmt.Sscanf(v, "%g", &f); err == nil {
			return f
		}
	}
	return def
}
