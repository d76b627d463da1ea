package secure

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/tsabaia/headunit-revived-sub000/internal/config"
	"github.com/tsabaia/headunit-revived-sub000/internal/logging"
	"go.uber.org/zap"
)

// CertificateError represents a certificate-related error (loading, generation, writing).
type CertificateError struct {
	// Operation describes what certificate operation failed
	Operation string
	// Path is the certificate file path (if applicable)
	Path string
	// Underlying error
	Err error
}

func (e *CertificateError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("certificate error during %s (file: %s): %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("certificate error during %s: %v", e.Operation, e.Err)
}

func (e *CertificateError) Unwrap() error {
	return e.Err
}

// CertParams holds parameters for generating the head unit client certificate.
type CertParams struct {
	// CommonName is the CN field
	CommonName string
	// Organization is the O field
	Organization string
	// ValidDays is certificate validity in days
	ValidDays int
}

// DefaultCertParams returns the parameters used when no certificate is configured.
func DefaultCertParams() CertParams {
	return CertParams{
		CommonName:   "Headunit",
		Organization: "Headunit Revived",
		ValidDays:    3650,
	}
}

// Identity is the certificate the head unit presents to the phone.
type Identity struct {
	Certificate tls.Certificate
	Leaf        *x509.Certificate
	CertPEM     []byte
	KeyPEM      []byte
}

// GenerateIdentity creates a self-signed client certificate:
//   - RSA 2048-bit key
//   - SHA-256 signature
//   - Key usage: digitalSignature, keyEncipherment
//   - Extended key usage: clientAuth
func GenerateIdentity(params CertParams) (*Identity, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, &CertificateError{Operation: "generate_key", Err: err}
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, &CertificateError{Operation: "generate_serial", Err: err}
	}

	notBefore := time.Now().Add(-time.Hour)
	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{params.Organization},
			CommonName:   params.CommonName,
		},
		NotBefore: notBefore,
		NotAfter:  notBefore.AddDate(0, 0, params.ValidDays),

		KeyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},

		BasicConstraintsValid: true,
		IsCA:                  false,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return nil, &CertificateError{Operation: "create_certificate", Err: err}
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	keyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	})
	return identityFromPEM(certPEM, keyPEM, "")
}

// LoadIdentity reads a PEM certificate and key from disk.
func LoadIdentity(certPath, keyPath string) (*Identity, error) {
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return nil, &CertificateError{Operation: "load", Path: certPath, Err: err}
	}
	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, &CertificateError{Operation: "load", Path: keyPath, Err: err}
	}
	return identityFromPEM(certPEM, keyPEM, certPath)
}

func identityFromPEM(certPEM, keyPEM []byte, path string) (*Identity, error) {
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, &CertificateError{Operation: "parse_key_pair", Path: path, Err: err}
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return nil, &CertificateError{Operation: "parse_certificate", Path: path, Err: err}
	}
	cert.Leaf = leaf
	return &Identity{Certificate: cert, Leaf: leaf, CertPEM: certPEM, KeyPEM: keyPEM}, nil
}

// IdentityFromSettings loads the configured certificate, or generates an
// in-memory one when none is configured.
func IdentityFromSettings(sec config.Security) (*Identity, error) {
	if sec.CertPath != "" {
		id, err := LoadIdentity(sec.CertPath, sec.KeyPath)
		if err != nil {
			return nil, err
		}
		logging.Info("Loaded head unit certificate",
			zap.String("cert", sec.CertPath),
			zap.String("subject", id.Leaf.Subject.CommonName),
			zap.Time("not_after", id.Leaf.NotAfter),
		)
		return id, nil
	}

	params := DefaultCertParams()
	id, err := GenerateIdentity(params)
	if err != nil {
		return nil, err
	}
	logging.Info("Generated head unit certificate (in-memory)",
		zap.String("CN", params.CommonName),
		zap.Int("valid_days", params.ValidDays),
	)
	return id, nil
}

// WriteFiles stores the certificate and key as cert.pem and key.pem in dir.
func (id *Identity) WriteFiles(dir string) (certPath, keyPath string, err error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", "", &CertificateError{Operation: "write", Path: dir, Err: err}
	}
	certPath = filepath.Join(dir, "cert.pem")
	keyPath = filepath.Join(dir, "key.pem")
	if err := os.WriteFile(certPath, id.CertPEM, 0o644); err != nil {
		return "", "", &CertificateError{Operation: "write", Path: certPath, Err: err}
	}
	if err := os.WriteFile(keyPath, id.KeyPEM, 0o600); err != nil {
		return "", "", &CertificateError{Operation: "write", Path: keyPath, Err: err}
	}
	return certPath, keyPath, nil
}
