package ingest

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/hitoshi/writeuptracker/internal/model"
)

func newTestValidator() *Validator {
	return NewValidator(nil)
}

func TestValidate_AppliesDefaults(t *testing.T) {
	v := newTestValidator()

	record, err := v.Validate(json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if record.Links == nil || len(record.Links) != 0 {
		t.Errorf("expected empty Links, got %v", record.Links)
	}
	if record.Authors == nil || record.Programs == nil || record.Bugs == nil {
		t.Error("expected name arrays to default to empty slices")
	}
	if record.Bounty != model.AbsentValue {
		t.Errorf("expected Bounty %q, got %q", model.AbsentValue, record.Bounty)
	}
	if record.PublicationDate != model.AbsentValue || record.AddedDate != model.AbsentValue {
		t.Errorf("expected dates to default to %q, got %q / %q",
			model.AbsentValue, record.PublicationDate, record.AddedDate)
	}
}

func TestValidate_KeepsProvidedValues(t *testing.T) {
	v := newTestValidator()
	raw := `{
		"Links": [{"Title": "IDOR in billing", "Link": " https://example.com/a "}],
		"Authors": ["alice"],
		"Programs": ["Acme"],
		"Bugs": ["IDOR"],
		"Bounty": "$500",
		"PublicationDate": "2023-05-01",
		"AddedDate": "2023-05-02",
		"Extra": 1
	}`

	record, err := v.Validate(json.RawMessage(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := record.PrimaryLink(); got.Title != "IDOR in billing" || got.Link != "https://example.com/a" {
		t.Errorf("unexpected primary link: %+v", got)
	}
	if record.Bounty != "$500" {
		t.Errorf("expected raw bounty to be kept, got %q", record.Bounty)
	}
	if len(record.Authors) != 1 || record.Authors[0] != "alice" {
		t.Errorf("unexpected authors: %v", record.Authors)
	}
}

func TestValidate_KeepsTitleMarkupVerbatim(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name  string
		title string
		want  string
	}{
		{name: "svg payload", title: "Stored XSS via <svg onload=alert(1)>", want: "Stored XSS via <svg onload=alert(1)>"},
		{name: "only markup", title: "<img src=x onerror=alert(1)>", want: "<img src=x onerror=alert(1)>"},
		{name: "tag mid sentence", title: "Bypassing the <iframe> sandbox", want: "Bypassing the <iframe> sandbox"},
		{name: "redacted host", title: "XSS on <redacted>.com", want: "XSS on <redacted>.com"},
		{name: "entities kept", title: "Tom &amp; Jerry", want: "Tom &amp; Jerry"},
		{name: "surrounding space trimmed", title: "  IDOR  in billing \n", want: "IDOR  in billing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(map[string]any{
				"Links": []map[string]string{{"Title": tt.title, "Link": "https://example.com/a"}},
			})
			if err != nil {
				t.Fatalf("failed to build record: %v", err)
			}

			records, invalid := v.ValidateBatch([]json.RawMessage{raw})
			if invalid != 0 || len(records) != 1 {
				t.Fatalf("expected 1 valid record, got %d valid / %d invalid", len(records), invalid)
			}
			if got := records[0].PrimaryLink().Title; got != tt.want {
				t.Errorf("title = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidate_RejectsMalformedRecords(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name string
		raw  string
	}{
		{name: "not an object", raw: `"hello"`},
		{name: "links not array", raw: `{"Links": "https://example.com"}`},
		{name: "link missing field", raw: `{"Links": [{"Title": "x"}]}`},
		{name: "empty author", raw: `{"Authors": [""]}`},
		{name: "numeric bounty", raw: `{"Bounty": 500}`},
		{name: "trailing content", raw: `{} {}`},
		{name: "broken json", raw: `{"Links": [`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := v.Validate(json.RawMessage(tt.raw)); err == nil {
				t.Errorf("expected validation error for %s", tt.raw)
			}
		})
	}
}

func TestValidateBatch_DropsInvalidRecords(t *testing.T) {
	v := newTestValidator()
	raws := []json.RawMessage{
		json.RawMessage(`{"Links": [{"Title": "a", "Link": "https://example.com/a"}]}`),
		json.RawMessage(`{"Authors": "alice"}`),
		json.RawMessage(`{"Links": [{"Title": "b", "Link": "https://example.com/b"}]}`),
	}

	records, invalid := v.ValidateBatch(raws)

	if len(records) != 2 {
		t.Fatalf("expected 2 valid records, got %d", len(records))
	}
	if invalid != 1 {
		t.Errorf("expected 1 invalid record, got %d", invalid)
	}
	if records[1].PrimaryLink().Link != "https://example.com/b" {
		t.Errorf("expected input order to be preserved, got %+v", records)
	}
}

func TestDecodeBatch(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    int
		wantErr error
	}{
		{name: "array", body: `[{}, {}]`, want: 2},
		{name: "feed document", body: `{"data": [{}, {}, {}]}`, want: 3},
		{name: "empty array", body: `[]`, want: 0},
		{name: "document without data", body: `{"items": []}`, wantErr: ErrNoRecords},
		{name: "scalar", body: `42`, wantErr: ErrNoRecords},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeBatch([]byte(tt.body))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("expected %d records, got %d", tt.want, len(got))
			}
		})
	}
}

func TestDecodeBatch_RejectsEmptyAndBrokenPayload(t *testing.T) {
	for _, body := range []string{"", "   ", "[{", `{"data": 1}`} {
		if _, err := DecodeBatch([]byte(body)); err == nil {
			t.Errorf("expected error for payload %q", body)
		}
	}
}
