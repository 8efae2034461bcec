package format

import (
	"strings"
	"testing"

	"tg_certbot/internal/model"
)

func TestStatusMessageDNSWaitRedisplaysTXT(t *testing.T) {
	f := New("/srv/ssl")
	order := &model.CertOrder{
		Domain:   "example.com",
		CertType: model.CertTypeRoot,
		Status:   model.OrderStatusDNSWait,
		TxtHost:  "_acme-challenge.example.com",
		TxtValue: "abc123",
	}

	msg := f.StatusMessage(order, false)
	if !strings.Contains(msg, "_acme-challenge.example.com") {
		t.Error("dns_wait status must re-display the TXT host")
	}
	if !strings.Contains(msg, "abc123") {
		t.Error("dns_wait status must re-display the TXT value")
	}
}

func TestStatusMessageBlankOrder(t *testing.T) {
	f := New("/srv/ssl")
	order := &model.CertOrder{Status: model.OrderStatusCreated}

	msg := f.StatusMessage(order, false)
	if !strings.Contains(msg, "（未提交域名）") {
		t.Error("blank order should render the no-domain placeholder")
	}
	if !strings.Contains(msg, "（未选择）") {
		t.Error("blank order should render the no-type placeholder")
	}
}

func TestOrderCardNextActions(t *testing.T) {
	f := New("/srv/ssl")

	tests := []struct {
		name         string
		status       string
		wantButtons  bool
		wantCallback string
	}{
		{
			name:        "created has no actions",
			status:      model.OrderStatusCreated,
			wantButtons: false,
		},
		{
			name:         "dns_wait offers verify",
			status:       model.OrderStatusDNSWait,
			wantButtons:  true,
			wantCallback: "verify:5",
		},
		{
			name:         "dns_verified offers verify",
			status:       model.OrderStatusDNSVerified,
			wantButtons:  true,
			wantCallback: "verify:5",
		},
		{
			name:         "issued offers info and download",
			status:       model.OrderStatusIssued,
			wantButtons:  true,
			wantCallback: "download:5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := &model.CertOrder{Domain: "example.com", CertType: model.CertTypeRoot, Status: tt.status}
			order.ID = 5
			card := f.OrderCard(order)
			if tt.wantButtons != (len(card.Keyboard) > 0) {
				t.Fatalf("keyboard presence = %v, want %v", len(card.Keyboard) > 0, tt.wantButtons)
			}
			if tt.wantCallback == "" {
				return
			}
			found := false
			for _, row := range card.Keyboard {
				for _, b := range row {
					if b.CallbackData == tt.wantCallback {
						found = true
					}
				}
			}
			if !found {
				t.Errorf("expected a button with callback %q, keyboard: %+v", tt.wantCallback, card.Keyboard)
			}
		})
	}
}

func TestDownloadFilesMessage(t *testing.T) {
	f := New("/srv/ssl")
	order := &model.CertOrder{Domain: "example.com", Status: model.OrderStatusIssued}

	msg := f.DownloadFilesMessage(order)
	for _, want := range []string{"/srv/ssl/example.com/cert.pem", "/srv/ssl/example.com/privkey.pem", "/srv/ssl/example.com/fullchain.pem"} {
		if !strings.Contains(msg, want) {
			t.Errorf("download message missing %s:\n%s", want, msg)
		}
	}
}
