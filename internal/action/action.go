package action

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind enumerates callback actions carried in Telegram callback data
type Kind string

const (
	KindType     Kind = "type"     // choose certificate type, carries cert type
	KindVerify   Kind = "verify"   // user claims the TXT record is in place
	KindLater    Kind = "later"    // defer verification, no state change
	KindDownload Kind = "download" // show export artifact paths
	KindInfo     Kind = "info"     // show certificate info
	KindMenu     Kind = "menu"     // navigation, carries a target instead of an order id
)

// Action is the decoded form of the colon-delimited callback data
// "<action>:[<type>:]<orderId>".
type Action struct {
	Kind     Kind
	CertType string // only for KindType
	OrderID  int    // zero for KindMenu
	Target   string // only for KindMenu, e.g. "orders"
}

// Encode renders the action back to callback data
func (a Action) Encode() string {
	switch a.Kind {
	case KindType:
		return fmt.Sprintf("type:%s:%d", a.CertType, a.OrderID)
	case KindMenu:
		return "menu:" + a.Target
	default:
		return fmt.Sprintf("%s:%d", a.Kind, a.OrderID)
	}
}

// Decode parses and validates callback data
func Decode(data string) (Action, error) {
	parts := strings.Split(data, ":")
	if len(parts) < 2 {
		return Action{}, fmt.Errorf("malformed callback data: %q", data)
	}

	kind := Kind(parts[0])
	switch kind {
	case KindType:
		if len(parts) != 3 {
			return Action{}, fmt.Errorf("type action needs cert type and order id: %q", data)
		}
		certType := parts[1]
		if certType != "root" && certType != "wildcard" {
			return Action{}, fmt.Errorf("unknown cert type: %q", certType)
		}
		id, err := parseOrderID(parts[2])
		if err != nil {
			return Action{}, err
		}
		return Action{Kind: kind, CertType: certType, OrderID: id}, nil

	case KindMenu:
		return Action{Kind: kind, Target: parts[1]}, nil

	case KindVerify, KindLater, KindDownload, KindInfo:
		id, err := parseOrderID(parts[1])
		if err != nil {
			return Action{}, err
		}
		return Action{Kind: kind, OrderID: id}, nil

	default:
		return Action{}, fmt.Errorf("unknown callback action: %q", parts[0])
	}
}

func parseOrderID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid order id: %q", s)
	}
	return id, nil
}
