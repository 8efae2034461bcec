package acmetool

import (
	"context"
	"path/filepath"
)

// Result carries the outcome of one acme.sh invocation. Output is opaque
// diagnostic text except for DryRun, whose output feeds the challenge parser.
type Result struct {
	Success bool
	Output  string
}

// Orchestrator is the contract the order core requires from the external
// issuance tool.
type Orchestrator interface {
	// DryRun computes the DNS-01 challenge for the domain set without
	// finalizing issuance.
	DryRun(ctx context.Context, domains []string) Result

	// Renew finalizes issuance once the TXT records are in place.
	Renew(ctx context.Context, domains []string) Result

	// InstallCert exports the issued certificate artifacts for the
	// primary domain.
	InstallCert(ctx context.Context, domain string) Result
}

// ExportPaths holds the artifact layout for an issued order:
// <export-root>/<domain>/{cert.pem, privkey.pem, fullchain.pem}
type ExportPaths struct {
	Dir       string
	Cert      string
	Key       string
	Fullchain string
}

// ExportLayout computes the artifact paths for a domain under the export root
func ExportLayout(exportRoot, domain string) ExportPaths {
	dir := filepath.Join(exportRoot, domain)
	return ExportPaths{
		Dir:       dir,
		Cert:      filepath.Join(dir, "cert.pem"),
		Key:       filepath.Join(dir, "privkey.pem"),
		Fullchain: filepath.Join(dir, "fullchain.pem"),
	}
}
