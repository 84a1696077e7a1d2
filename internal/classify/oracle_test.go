package classify

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestBuildPromptTruncatesBody(t *testing.T) {
	req := Request{
		Sender:  "jobs@acme.com",
		Subject: "Update on your application",
		Body:    strings.Repeat("é", maxBodyChars+100),
	}

	prompt := buildPrompt(req)
	if !utf8.ValidString(prompt) {
		t.Error("prompt with truncated body is not valid UTF-8")
	}
	if got := strings.Count(prompt, "é"); got != maxBodyChars {
		t.Errorf("body truncated to %d characters, want %d", got, maxBodyChars)
	}
}
