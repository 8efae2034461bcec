package dnschallenge

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestParseChallenge(t *testing.T) {
	tests := []struct {
		name      string
		output    string
		wantName  string
		wantValue string
		wantNil   bool
	}{
		{
			name:      "single challenge line",
			output:    "[Mon] Add the following TXT record:\n_acme-challenge.example.com TXT value: abc123\n[Mon] Please be aware that you prepend _acme-challenge.",
			wantName:  "_acme-challenge.example.com",
			wantValue: "abc123",
		},
		{
			name:      "first match wins",
			output:    "_acme-challenge.example.com TXT value: first\n_acme-challenge.example.com TXT value: second",
			wantName:  "_acme-challenge.example.com",
			wantValue: "first",
		},
		{
			name:      "quoted host in surrounding text",
			output:    "Domain: '_acme-challenge.foo.org'\n_acme-challenge.foo.org TXT value: xyz-789_A\n",
			wantName:  "_acme-challenge.foo.org",
			wantValue: "xyz-789_A",
		},
		{
			name:      "CRLF line endings",
			output:    "_acme-challenge.example.com TXT value: abc123\r\nnext line",
			wantName:  "_acme-challenge.example.com",
			wantValue: "abc123",
		},
		{
			name:    "no challenge line",
			output:  "some unrelated output\nerror: rate limited",
			wantNil: true,
		},
		{
			name:    "marker without value pattern",
			output:  "found _acme-challenge.example.com in zone",
			wantNil: true,
		},
		{
			name:    "empty output",
			output:  "",
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseChallenge(tt.output)
			if tt.wantNil {
				if got != nil {
					t.Errorf("ParseChallenge() = %+v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatal("ParseChallenge() = nil, want record")
			}
			if got.Name != tt.wantName || got.Value != tt.wantValue {
				t.Errorf("ParseChallenge() = {%s %s}, want {%s %s}", got.Name, got.Value, tt.wantName, tt.wantValue)
			}
		})
	}
}

func TestMatchTXT(t *testing.T) {
	tests := []struct {
		name    string
		records []string
		value   string
		want    bool
	}{
		{
			name:    "verbatim match",
			records: []string{"abc123"},
			value:   "abc123",
			want:    true,
		},
		{
			name:    "quoted live record matches bare expected",
			records: []string{`"abc123"`},
			value:   "abc123",
			want:    true,
		},
		{
			name:    "quoted expected matches bare live record",
			records: []string{"abc123"},
			value:   `"abc123"`,
			want:    true,
		},
		{
			name:    "substring match for concatenating providers",
			records: []string{"prefix-abc123-suffix"},
			value:   "abc123",
			want:    true,
		},
		{
			name:    "no match",
			records: []string{"other", "values"},
			value:   "abc123",
			want:    false,
		},
		{
			name:    "empty record set",
			records: nil,
			value:   "abc123",
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchTXT(tt.records, tt.value); got != tt.want {
				t.Errorf("MatchTXT(%v, %q) = %v, want %v", tt.records, tt.value, got, tt.want)
			}
		})
	}
}

func TestVerifyPropagation(t *testing.T) {
	r := NewResolver(nil, time.Second)

	r.lookupTXT = func(ctx context.Context, fqdn string) ([]string, error) {
		if fqdn != "_acme-challenge.example.com." {
			t.Errorf("unexpected fqdn: %s", fqdn)
		}
		return []string{`"abc123"`}, nil
	}
	if !r.VerifyPropagation(context.Background(), "_acme-challenge.example.com", "abc123") {
		t.Error("expected propagation to be confirmed")
	}

	r.lookupTXT = func(ctx context.Context, fqdn string) ([]string, error) {
		return nil, errors.New("SERVFAIL")
	}
	if r.VerifyPropagation(context.Background(), "_acme-challenge.example.com", "abc123") {
		t.Error("lookup failure must report not propagated")
	}
}
