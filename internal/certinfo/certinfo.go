package certinfo

import (
	"crypto/x509"
	"encoding/pem"
	"os"
)

// ExpiresAt reads a PEM certificate file and returns its notAfter time
// formatted for display. Returns "" when the file is missing or unparsable;
// certificate metadata is cosmetic and never fails an operation.
func ExpiresAt(certPath string) string {
	data, err := os.ReadFile(certPath)
	if err != nil {
		return ""
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return ""
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return ""
	}

	return cert.NotAfter.Format("2006-01-02 15:04:05")
}
