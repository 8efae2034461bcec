package dnschallenge

import (
	"context"
	"regexp"
	"strings"
	"time"

	legodns "github.com/go-acme/lego/v4/challenge/dns01"
	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

// TXTRecord is a DNS-01 challenge record extracted from acme.sh output
type TXTRecord struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// txtLinePattern matches the acme.sh manual-mode output line:
//   Domain: '_acme-challenge.example.com'  ->  "_acme-challenge.example.com TXT value: abc123"
var txtLinePattern = regexp.MustCompile(`(_acme-challenge\.[^\s]+)\s+TXT\s+value:\s+(.+)`)

// ParseChallenge scans tool output line by line and returns the first
// challenge host/value pair, or nil when the output carries none.
func ParseChallenge(output string) *TXTRecord {
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, "_acme-challenge.") {
			continue
		}
		if m := txtLinePattern.FindStringSubmatch(line); m != nil {
			return &TXTRecord{
				Name:  strings.TrimSpace(m[1]),
				Value: strings.TrimRight(strings.TrimSpace(m[2]), "\r"),
			}
		}
	}
	return nil
}

// Resolver performs live TXT lookups against public resolvers
type Resolver struct {
	nameservers []string
	timeout     time.Duration

	// lookupTXT is replaceable in tests
	lookupTXT func(ctx context.Context, fqdn string) ([]string, error)
}

// NewResolver creates a resolver querying the given nameservers in order.
// Nameservers use host:port form, e.g. "8.8.8.8:53".
func NewResolver(nameservers []string, timeout time.Duration) *Resolver {
	if len(nameservers) == 0 {
		nameservers = []string{"8.8.8.8:53", "1.1.1.1:53"}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	r := &Resolver{
		nameservers: nameservers,
		timeout:     timeout,
	}
	r.lookupTXT = r.queryTXT
	return r
}

// VerifyPropagation checks whether the TXT record for host is visible and
// carries the expected value. No retry or backoff here: retry is user-driven
// via repeated verify operations.
func (r *Resolver) VerifyPropagation(ctx context.Context, host, value string) bool {
	records, err := r.lookupTXT(ctx, legodns.ToFqdn(host))
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"host": host,
			"err":  err,
		}).Warn("TXT lookup failed")
		return false
	}

	return MatchTXT(records, value)
}

// MatchTXT reports whether any live record matches the expected value.
// Matches verbatim, with surrounding quotes stripped, or as a substring of
// the stripped value (some providers wrap or concatenate TXT values).
func MatchTXT(records []string, value string) bool {
	expected := strings.Trim(value, `"`)
	for _, txt := range records {
		if txt == value || txt == expected || strings.Contains(txt, expected) {
			return true
		}
	}
	return false
}

// queryTXT asks each configured nameserver in order and returns the first
// successful answer set.
func (r *Resolver) queryTXT(ctx context.Context, fqdn string) ([]string, error) {
	client := &dns.Client{Timeout: r.timeout}

	m := new(dns.Msg)
	m.SetQuestion(fqdn, dns.TypeTXT)
	m.RecursionDesired = true

	var lastErr error
	for _, ns := range r.nameservers {
		in, _, err := client.ExchangeContext(ctx, m, ns)
		if err != nil {
			lastErr = err
			continue
		}

		var records []string
		for _, rr := range in.Answer {
			if txt, ok := rr.(*dns.TXT); ok {
				// Long TXT values come back as multiple character strings
				records = append(records, strings.Join(txt.Txt, ""))
			}
		}
		return records, nil
	}

	return nil, lastErr
}
