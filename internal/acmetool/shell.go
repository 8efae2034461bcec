package acmetool

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"time"

	"github.com/sirupsen/logrus"
)

// acme.sh exits with this code in dns manual mode when the TXT records still
// need to be added; for a dry-run that is the expected successful outcome.
const exitCodeManualModePending = 3

// ShellConfig configures the acme.sh shell adapter
type ShellConfig struct {
	Path       string // acme.sh binary path
	Server     string // ACME server shortname, e.g. "letsencrypt"
	ExportRoot string
	Timeout    time.Duration
}

// ShellClient drives acme.sh in dns manual mode
type ShellClient struct {
	cfg ShellConfig
}

// NewShellClient creates an acme.sh adapter
func NewShellClient(cfg ShellConfig) *ShellClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	return &ShellClient{cfg: cfg}
}

// DryRun runs --issue in dns manual mode to obtain the TXT challenge
func (c *ShellClient) DryRun(ctx context.Context, domains []string) Result {
	args := []string{"--issue", "--dns", "--server", c.cfg.Server}
	for _, d := range domains {
		args = append(args, "-d", d)
	}
	args = append(args, "--yes-I-know-dns-manual-mode-enough-go-ahead-please")

	res, code := c.run(ctx, args)
	if !res.Success && code == exitCodeManualModePending {
		res.Success = true
	}
	return res
}

// Renew finalizes issuance after the TXT records are published
func (c *ShellClient) Renew(ctx context.Context, domains []string) Result {
	args := []string{"--renew", "--server", c.cfg.Server}
	for _, d := range domains {
		args = append(args, "-d", d)
	}
	args = append(args, "--yes-I-know-dns-manual-mode-enough-go-ahead-please")

	res, _ := c.run(ctx, args)
	return res
}

// InstallCert exports the certificate artifacts to the export layout
func (c *ShellClient) InstallCert(ctx context.Context, domain string) Result {
	paths := ExportLayout(c.cfg.ExportRoot, domain)
	if err := os.MkdirAll(paths.Dir, 0o755); err != nil {
		return Result{Success: false, Output: "create export dir: " + err.Error()}
	}

	args := []string{
		"--install-cert", "-d", domain,
		"--cert-file", paths.Cert,
		"--key-file", paths.Key,
		"--fullchain-file", paths.Fullchain,
	}

	res, _ := c.run(ctx, args)
	return res
}

// run executes acme.sh with a timeout and returns combined output plus the
// process exit code (-1 when the process did not run or was killed).
func (c *ShellClient) run(ctx context.Context, args []string) (Result, int) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.cfg.Path, args...)
	out, err := cmd.CombinedOutput()

	code := 0
	success := err == nil
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
	}

	logrus.WithFields(logrus.Fields{
		"cmd":     c.cfg.Path,
		"args":    args,
		"exit":    code,
		"success": success,
	}).Info("acme.sh invocation")

	output := string(out)
	if err != nil && output == "" {
		output = err.Error()
	}

	return Result{Success: success, Output: output}, code
}
