package inbox

import "testing"

func TestCleanText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "lowercase and collapse whitespace",
			input: "Thank You  for\n\nYour   Application",
			want:  "thank you for your application",
		},
		{
			name:  "strips html",
			input: "<html><body><p>We regret to <b>inform</b> you</p></body></html>",
			want:  "we regret to inform you",
		},
		{
			name:  "strips script and style",
			input: "<html><head><style>p{color:red}</style></head><body><p>Status Update</p></body></html>",
			want:  "status update",
		},
		{
			name:  "plain text with angle bracket is untouched",
			input: "confidence > 0.6 required",
			want:  "confidence > 0.6 required",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanText(tt.input); got != tt.want {
				t.Errorf("CleanText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestMessageText(t *testing.T) {
	m := Message{Body: "Plain Part", HTMLBody: "<p>HTML Part</p>"}
	if got := m.Text(); got != "plain part" {
		t.Errorf("plain part should win, got %q", got)
	}

	m = Message{HTMLBody: "<div>Only <br>HTML</div>"}
	if got := m.Text(); got != "only html" {
		t.Errorf("html fallback failed, got %q", got)
	}
}

func TestFallbackCompany(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		from    string
		addr    string
		want    string
	}{
		{"subject suffix", "Your Application - Acme Inc.", "", "jobs@acme.com", "Acme Inc."},
		{"last suffix wins", "Update - Software Engineer - Globex", "", "noreply@x.com", "Globex"},
		{"applytojob display name", "Thanks for applying", "uShip", "recruiting+abc@applytojob.com", "uShip"},
		{"applytojob generic name skipped", "Thanks", "Recruiting", "recruiting@applytojob.com", ""},
		{"no signal", "Thanks for applying", "Jane Doe", "jane@corp.com", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FallbackCompany(tt.subject, tt.from, tt.addr); got != tt.want {
				t.Errorf("FallbackCompany(%q, %q, %q) = %q, want %q", tt.subject, tt.from, tt.addr, got, tt.want)
			}
		})
	}
}
