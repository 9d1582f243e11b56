package cli

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ksyq12/nginxtls/internal/configurator"
	"github.com/ksyq12/nginxtls/internal/executor"
)

// writeTestCert creates a self-signed certificate for the names and
// validity window and writes <base>.pem and <base>.key into dir.
func writeTestCert(t *testing.T, dir, base string, names []string, notBefore, notAfter time.Time) (certPath, keyPath string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: names[0]},
		DNSNames:     names,
		NotBefore:    notBefore,
		NotAfter:     notAfter,
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("creating certificate: %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("marshaling key: %v", err)
	}
	certPath = filepath.Join(dir, base+".pem")
	keyPath = filepath.Join(dir, base+".key")
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	if err := os.WriteFile(certPath, certPEM, 0o644); err != nil {
		t.Fatalf("writing certificate: %v", err)
	}
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		t.Fatalf("writing key: %v", err)
	}
	return certPath, keyPath
}

func hasCheck(results []CheckResult, status, substr string) bool {
	for _, r := range results {
		if r.Status == status && strings.Contains(r.Message, substr) {
			return true
		}
	}
	return false
}

func TestCheckBinary(t *testing.T) {
	root := writeServerRoot(t, nil)
	eng := configurator.New(testSettings(root), nginxExec())

	results := checkBinary(eng)
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Status != "success" {
		t.Fatalf("status = %q: %s", results[0].Status, results[0].Message)
	}
	if !strings.Contains(results[0].Message, "nginx 1.24.0 with TLS support") {
		t.Errorf("message = %q, want version and TLS capability", results[0].Message)
	}
	if !strings.Contains(results[0].Message, "OpenSSL 3.0.11") {
		t.Errorf("message = %q, want OpenSSL version", results[0].Message)
	}
}

func TestCheckBinaryUndetectable(t *testing.T) {
	root := writeServerRoot(t, nil)
	eng := configurator.New(testSettings(root), &executor.MockExecutor{})

	results := checkBinary(eng)
	if len(results) != 1 || results[0].Status != "error" {
		t.Fatalf("results = %+v, want one error", results)
	}
	if !strings.Contains(results[0].Message, "unable to find nginx version") {
		t.Errorf("message = %q, want detection failure", results[0].Message)
	}
}

func TestCheckConfiguration(t *testing.T) {
	root := writeServerRoot(t, map[string]string{
		"sites-enabled/example.conf": siteConf,
	})
	settings := testSettings(root)
	eng := configurator.New(settings, nginxExec())

	results := checkConfiguration(eng, settings)

	if !hasCheck(results, "success", "configuration parsed") {
		t.Errorf("missing parse success in %+v", results)
	}
	if !hasCheck(results, "warning", "TLS options file not installed") {
		t.Errorf("missing TLS options warning in %+v", results)
	}
	if !hasCheck(results, "warning", "DH parameters configured but missing") {
		t.Errorf("missing DH parameters warning in %+v", results)
	}
	if !hasCheck(results, "success", "lock obtainable") {
		t.Errorf("missing lock success in %+v", results)
	}
	if !hasCheck(results, "warning", "no webroot configured") {
		t.Errorf("missing webroot warning in %+v", results)
	}
}

func TestCheckConfigurationAllPresent(t *testing.T) {
	root := writeServerRoot(t, map[string]string{
		"sites-enabled/example.conf": siteConf,
	})
	settings := testSettings(root)
	settings.Webroot = filepath.Join(root, "webroot")
	if err := os.WriteFile(settings.TLSOptionsPath, []byte("ssl_protocols TLSv1.2 TLSv1.3;\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(settings.DHParamPath, []byte("-----BEGIN DH PARAMETERS-----\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	eng := configurator.New(settings, nginxExec())

	results := checkConfiguration(eng, settings)

	for _, r := range results {
		if r.Status != "success" {
			t.Errorf("unexpected %s: %s", r.Status, r.Message)
		}
	}
}

func TestCheckCertificates(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	certPath, keyPath := writeTestCert(t, dir, "good", []string{"good.example.com"},
		now.Add(-time.Hour), now.Add(90*24*time.Hour))
	expiredPath, expiredKey := writeTestCert(t, dir, "expired", []string{"old.example.com"},
		now.Add(-48*time.Hour), now.Add(-24*time.Hour))

	root := writeServerRoot(t, map[string]string{
		"sites-enabled/good.conf": fmt.Sprintf(`server {
    listen 5001 ssl;
    server_name good.example.com;
    ssl_certificate %s;
    ssl_certificate_key %s;
}
`, certPath, keyPath),
		"sites-enabled/expired.conf": fmt.Sprintf(`server {
    listen 5001 ssl;
    server_name old.example.com;
    ssl_certificate %s;
    ssl_certificate_key %s;
}
`, expiredPath, expiredKey),
		"sites-enabled/broken.conf": `server {
    listen 5001 ssl;
    server_name broken.example.com;
    ssl_certificate /nonexistent/fullchain.pem;
    ssl_certificate_key /nonexistent/key.pem;
}
`,
		"sites-enabled/plain.conf": siteConf,
	})
	eng := configurator.New(testSettings(root), nginxExec())
	if err := eng.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	statuses := checkCertificates(eng)
	if len(statuses) != 3 {
		t.Fatalf("got %d vhost statuses, want 3 (plain HTTP block skipped)", len(statuses))
	}

	byName := map[string]VHostStatus{}
	for _, s := range statuses {
		byName[s.Names[0]] = s
	}

	good := byName["good.example.com"]
	if !hasCheck(good.Checks, "success", "certificate valid until") {
		t.Errorf("good.example.com checks = %+v", good.Checks)
	}

	expired := byName["old.example.com"]
	if !hasCheck(expired.Checks, "error", "certificate not valid") {
		t.Errorf("old.example.com checks = %+v", expired.Checks)
	}

	broken := byName["broken.example.com"]
	if !hasCheck(broken.Checks, "error", "certificate unreadable") {
		t.Errorf("broken.example.com checks = %+v", broken.Checks)
	}
	if !hasCheck(broken.Checks, "error", "key file missing") {
		t.Errorf("broken.example.com checks = %+v", broken.Checks)
	}
}

func TestCheckCertificatesExpiringSoon(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	certPath, keyPath := writeTestCert(t, dir, "soon", []string{"soon.example.com"},
		now.Add(-time.Hour), now.Add(10*24*time.Hour))

	root := writeServerRoot(t, map[string]string{
		"sites-enabled/soon.conf": fmt.Sprintf(`server {
    listen 5001 ssl;
    server_name soon.example.com;
    ssl_certificate %s;
    ssl_certificate_key %s;
}
`, certPath, keyPath),
	})
	eng := configurator.New(testSettings(root), nginxExec())
	if err := eng.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	statuses := checkCertificates(eng)
	if len(statuses) != 1 {
		t.Fatalf("got %d vhost statuses, want 1", len(statuses))
	}
	if !hasCheck(statuses[0].Checks, "warning", "certificate expires in") {
		t.Errorf("checks = %+v", statuses[0].Checks)
	}
}

func TestRunDoctor(t *testing.T) {
	root := writeServerRoot(t, map[string]string{
		"sites-enabled/example.conf": siteConf,
	})
	setupCommand(t, root, nginxExec())

	if err := runDoctor(nil, nil); err != nil {
		t.Fatalf("runDoctor: %v", err)
	}
}

func TestRunDoctorFailureExit(t *testing.T) {
	root := writeServerRoot(t, map[string]string{
		"sites-enabled/example.conf": siteConf,
	})
	setupCommand(t, root, &executor.MockExecutor{})

	err := runDoctor(nil, nil)
	if err == nil || !strings.Contains(err.Error(), "diagnostic check(s) failed") {
		t.Errorf("error = %v, want failed checks", err)
	}
}

func TestRunDoctorJSON(t *testing.T) {
	root := writeServerRoot(t, map[string]string{
		"sites-enabled/example.conf": siteConf,
	})
	setupCommand(t, root, nginxExec())
	jsonOutput = true
	t.Cleanup(func() { jsonOutput = false })

	if err := runDoctor(nil, nil); err != nil {
		t.Fatalf("runDoctor: %v", err)
	}
}
