package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ksyq12/nginxtls/internal/certs"
	"github.com/ksyq12/nginxtls/internal/config"
	"github.com/ksyq12/nginxtls/internal/configurator"
	"github.com/ksyq12/nginxtls/internal/output"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the nginx installation and diagnose issues",
	Long: `Run diagnostic checks on the nginx installation and this tool's state.

Checks:
  - nginx binary, version and TLS capability
  - Configuration tree parses
  - Shared TLS options and DH parameter files
  - Work directory lock
  - Deployed certificates (files present, not expired)

Examples:
  nginxtls doctor
  nginxtls doctor --json`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

// CheckResult represents a single diagnostic check result
type CheckResult struct {
	Status  string `json:"status"` // "success", "warning", "error"
	Message string `json:"message"`
}

// VHostStatus represents the certificate state of one server block
type VHostStatus struct {
	Names  []string      `json:"names"`
	File   string        `json:"file"`
	Checks []CheckResult `json:"checks"`
}

// DoctorReport contains all diagnostic results
type DoctorReport struct {
	Binary        []CheckResult `json:"binary"`
	Configuration []CheckResult `json:"configuration"`
	Certificates  []VHostStatus `json:"certificates"`
}

func runDoctor(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	eng := deps.EngineFactory.Create(settings)

	report := &DoctorReport{}
	report.Binary = checkBinary(eng)
	report.Configuration = checkConfiguration(eng, settings)
	report.Certificates = checkCertificates(eng)

	if jsonOutput {
		if err := output.JSON(report); err != nil {
			return err
		}
	} else {
		displayDoctorResults(report)
	}

	if n := countFailures(report); n > 0 {
		return fmt.Errorf("%d diagnostic check(s) failed", n)
	}
	return nil
}

func countFailures(report *DoctorReport) int {
	n := countErrors(report.Binary) + countErrors(report.Configuration)
	for _, vhost := range report.Certificates {
		n += countErrors(vhost.Checks)
	}
	return n
}

func countErrors(checks []CheckResult) int {
	n := 0
	for _, check := range checks {
		if check.Status == "error" {
			n++
		}
	}
	return n
}

func checkBinary(eng *configurator.Configurator) []CheckResult {
	results := []CheckResult{}

	d, err := eng.Probe()
	if err != nil {
		results = append(results, CheckResult{
			Status:  "error",
			Message: err.Error(),
		})
		return results
	}

	msg := fmt.Sprintf("%s %s with TLS support", d.Product, d.Version)
	if d.OpenSSL != "" {
		msg = fmt.Sprintf("%s (OpenSSL %s)", msg, d.OpenSSL)
	}
	results = append(results, CheckResult{Status: "success", Message: msg})
	return results
}

func checkConfiguration(eng *configurator.Configurator, settings *config.Settings) []CheckResult {
	results := []CheckResult{}

	// Configuration tree
	if err := eng.Load(); err != nil {
		results = append(results, CheckResult{
			Status:  "error",
			Message: fmt.Sprintf("configuration does not parse: %v", err),
		})
	} else {
		tree := eng.Tree()
		results = append(results, CheckResult{
			Status: "success",
			Message: fmt.Sprintf("configuration parsed (%d files, %d server blocks)",
				len(tree.FilePaths()), len(tree.VHosts())),
		})
		for _, path := range tree.FilePaths() {
			if tree.Files[path].Unparsable {
				results = append(results, CheckResult{
					Status:  "warning",
					Message: fmt.Sprintf("included file does not parse and will be skipped: %s", path),
				})
			}
		}
	}

	// Shared TLS options file
	if _, err := os.Stat(settings.TLSOptionsPath); err == nil {
		results = append(results, CheckResult{
			Status:  "success",
			Message: fmt.Sprintf("TLS options file present (%s)", settings.TLSOptionsPath),
		})
	} else {
		results = append(results, CheckResult{
			Status:  "warning",
			Message: "TLS options file not installed yet (written on first deploy)",
		})
	}

	// DH parameters
	if settings.DHParamPath != "" {
		if _, err := os.Stat(settings.DHParamPath); err == nil {
			results = append(results, CheckResult{
				Status:  "success",
				Message: fmt.Sprintf("DH parameters present (%s)", settings.DHParamPath),
			})
		} else {
			results = append(results, CheckResult{
				Status:  "warning",
				Message: fmt.Sprintf("DH parameters configured but missing: %s", settings.DHParamPath),
			})
		}
	}

	// Work directory lock
	if err := eng.CheckLock(); err != nil {
		results = append(results, CheckResult{
			Status:  "error",
			Message: fmt.Sprintf("work directory lock: %v", err),
		})
	} else {
		results = append(results, CheckResult{
			Status:  "success",
			Message: fmt.Sprintf("work directory writable and lock obtainable (%s)", settings.WorkDir),
		})
	}

	// Webroot for validation files
	if settings.Webroot == "" && len(settings.WebrootMap) == 0 {
		results = append(results, CheckResult{
			Status:  "warning",
			Message: "no webroot configured; challenge write will fail",
		})
	}

	return results
}

func checkCertificates(eng *configurator.Configurator) []VHostStatus {
	statuses := []VHostStatus{}
	if eng.Tree() == nil {
		return statuses
	}

	now := time.Now()
	for _, vh := range eng.Tree().VHosts() {
		cert := vh.Node.FindFirst("ssl_certificate")
		if cert == nil || len(cert.Args) == 0 {
			continue
		}

		status := VHostStatus{
			Names:  vh.Names,
			File:   vh.FilePath,
			Checks: []CheckResult{},
		}

		if key := vh.Node.FindFirst("ssl_certificate_key"); key != nil && len(key.Args) > 0 {
			if _, err := os.Stat(key.Args[0]); os.IsNotExist(err) {
				status.Checks = append(status.Checks, CheckResult{
					Status:  "error",
					Message: fmt.Sprintf("key file missing: %s", key.Args[0]),
				})
			}
		}

		bundle, err := certs.LoadBundle(cert.Args[0])
		switch {
		case err != nil:
			status.Checks = append(status.Checks, CheckResult{
				Status:  "error",
				Message: fmt.Sprintf("certificate unreadable: %s", cert.Args[0]),
			})
		case bundle.CheckValidity(now) != nil:
			status.Checks = append(status.Checks, CheckResult{
				Status:  "error",
				Message: fmt.Sprintf("certificate not valid: %v", bundle.CheckValidity(now)),
			})
		default:
			if left, soon := bundle.ExpiresSoon(now); soon {
				status.Checks = append(status.Checks, CheckResult{
					Status:  "warning",
					Message: fmt.Sprintf("certificate expires in %d days", int(left.Hours()/24)),
				})
			} else {
				status.Checks = append(status.Checks, CheckResult{
					Status:  "success",
					Message: fmt.Sprintf("certificate valid until %s", bundle.Leaf.NotAfter.Format("2006-01-02")),
				})
			}
		}

		statuses = append(statuses, status)
	}

	return statuses
}

func displayDoctorResults(report *DoctorReport) {
	output.Print("Checking nginx binary...")
	for _, check := range report.Binary {
		displayCheck(check)
	}
	output.Print("")

	output.Print("Checking configuration...")
	for _, check := range report.Configuration {
		displayCheck(check)
	}
	output.Print("")

	if len(report.Certificates) > 0 {
		output.Print("Checking deployed certificates...")
		for _, vhost := range report.Certificates {
			names := strings.Join(vhost.Names, " ")
			if names == "" {
				names = "(no server_name)"
			}
			for _, check := range vhost.Checks {
				switch check.Status {
				case "success":
					output.Success("%s - %s", names, check.Message)
				case "warning":
					output.Warn("%s - %s", names, check.Message)
				case "error":
					output.Error("%s - %s", names, check.Message)
				}
			}
		}
	} else {
		output.Print("No deployed certificates found")
	}
}

func displayCheck(check CheckResult) {
	switch check.Status {
	case "success":
		output.Success("%s", check.Message)
	case "warning":
		output.Warn("%s", check.Message)
	case "error":
		output.Error("%s", check.Message)
	}
}
