package inbox

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var tagRe = regexp.MustCompile(`<[^>]+>`)

// stripHTMLSimple removes tags without parsing, for markup goquery rejects.
func stripHTMLSimple(html string) string {
	return tagRe.ReplaceAllString(html, " ")
}

// CleanText lowercases text and collapses all runs of whitespace to single
// spaces. HTML markup is stripped first. Total on any input; malformed markup
// degrades to a regex strip instead of failing.
func CleanText(text string) string {
	if looksLikeHTML(text) {
		text = stripHTML(text)
	}
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

func looksLikeHTML(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "<html") ||
		strings.Contains(lower, "<body") ||
		strings.Contains(lower, "<div") ||
		strings.Contains(lower, "<p>") ||
		strings.Contains(lower, "<br") ||
		strings.Contains(lower, "<td")
}

func stripHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return stripHTMLSimple(html)
	}
	doc.Find("script, style").Remove()
	return doc.Text()
}

// Text returns the message body for classification: the plain part when
// present, otherwise the HTML part stripped to text. Always cleaned.
func (m Message) Text() string {
	if strings.TrimSpace(m.Body) != "" {
		return CleanText(m.Body)
	}
	return CleanText(m.HTMLBody)
}

// SenderName returns the display name when set, otherwise the address.
func (m Message) SenderName() string {
	if m.FromName != "" {
		return m.FromName
	}
	return m.From
}

// FallbackCompany derives a company name when classification extracted none.
// Recruiting platforms put the company in predictable places: a " - Company"
// subject suffix, or the display name of applytojob.com senders
// ("uShip <recruiting+...@applytojob.com>").
func FallbackCompany(subject, senderName, senderAddr string) string {
	if strings.Contains(subject, " - ") {
		parts := strings.Split(subject, " - ")
		if len(parts) >= 2 {
			if company := strings.TrimSpace(parts[len(parts)-1]); company != "" {
				return company
			}
		}
	}

	if strings.Contains(strings.ToLower(senderAddr), "applytojob.com") {
		name := strings.TrimSpace(senderName)
		switch strings.ToLower(name) {
		case "", "recruiting", "noreply", "no-reply":
			return ""
		}
		return name
	}

	return ""
}
