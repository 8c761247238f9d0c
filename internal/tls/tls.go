// Package tls builds the server's *tls.Config from files, a certificate
// directory, or a self-signed certificate generated on first start.
package tls

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	tlsCaCrt = "tls_ca.crt"
	tlsCrt   = "tls.crt"
	tlsKey   = "tls.key"
)

// Config is the [server.tls] section.
type Config struct {
	Enabled      bool       `mapstructure:"enabled" toml:"enabled"`
	CertFile     string     `mapstructure:"cert_file" toml:"cert_file"`
	KeyFile      string     `mapstructure:"key_file" toml:"key_file"`
	Dir          string     `mapstructure:"dir" toml:"dir"`
	AutoGenerate bool       `mapstructure:"auto_generate" toml:"auto_generate"`
	MinVersion   string     `mapstructure:"min_version" toml:"min_version"`
	MaxVersion   string     `mapstructure:"max_version" toml:"max_version"`
	AutoGen      AutoGenTLS `mapstructure:"auto_gen" toml:"auto_gen"`
}

// AutoGenTLS controls the generated self-signed certificate.
type AutoGenTLS struct {
	CommonName   string   `mapstructure:"common_name" toml:"common_name"`
	Organization string   `mapstructure:"organization" toml:"organization"`
	DNSNames     []string `mapstructure:"dns_names" toml:"dns_names"`
	IPAddresses  []string `mapstructure:"ip_addresses" toml:"ip_addresses"`
	ValidDays    int      `mapstructure:"valid_days" toml:"valid_days"`
}

// ParseVersion maps "1.2"/"1.3" (optionally "tls" prefixed) to a TLS
// version. Empty selects 1.2.
func ParseVersion(ver string) (uint16, error) {
	v := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ver)), "tls")
	switch v {
	case "", "default", "1.2":
		return tls.VersionTLS12, nil
	case "1.3":
		return tls.VersionTLS13, nil
	}
	return 0, fmt.Errorf("unsupported TLS version %q", ver)
}

// Setup returns nil when TLS is disabled. Certificates are read on each
// handshake, so replaced files take effect without a restart.
func Setup(cfg Config) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	minVer, err := ParseVersion(cfg.MinVersion)
	if err != nil {
		return nil, err
	}
	maxVer := uint16(tls.VersionTLS13)
	if cfg.MaxVersion != "" {
		if maxVer, err = ParseVersion(cfg.MaxVersion); err != nil {
			return nil, err
		}
	}
	if maxVer < minVer {
		return nil, fmt.Errorf("tls max_version below min_version")
	}

	certPath, keyPath := cfg.CertFile, cfg.KeyFile
	switch {
	case certPath != "" && keyPath != "":
	case cfg.Dir != "":
		certPath = filepath.Join(cfg.Dir, tlsCrt)
		keyPath = filepath.Join(cfg.Dir, tlsKey)
		if cfg.AutoGenerate && !certificatesExist(certPath, keyPath) {
			if err := generateCertificate(cfg.AutoGen, cfg.Dir); err != nil {
				return nil, fmt.Errorf("certificate generation failed: %w", err)
			}
		}
	default:
		return nil, errors.New("TLS enabled but neither cert_file/key_file nor dir is set")
	}

	// fail at startup rather than on the first handshake
	if _, err := loadPair(certPath, keyPath); err != nil {
		return nil, err
	}
	return &tls.Config{
		GetCertificate: func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
			return loadPair(certPath, keyPath)
		},
		MinVersion: minVer,
		MaxVersion: maxVer,
	}, nil
}

func loadPair(certPath, keyPath string) (*tls.Certificate, error) {
	cert, err := tls.LoadX509KeyPair(filepath.Clean(certPath), filepath.Clean(keyPath))
	if err != nil {
		return nil, fmt.Errorf("load TLS key pair: %w", err)
	}
	return &cert, nil
}

func certificatesExist(certPath, keyPath string) bool {
	_, certErr := os.Stat(certPath)
	_, keyErr := os.Stat(keyPath)
	return certErr == nil && keyErr == nil
}

func generateCertificate(ag AutoGenTLS, destDir string) error {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}
	validDays := ag.ValidDays
	if validDays <= 0 {
		validDays = 365
	}
	return GenerateSelfSignedCert(CertConfig{
		CommonName:   orDefault(ag.CommonName, "localhost"),
		Organization: orDefault(ag.Organization, "curator"),
		DNSNames:     orDefaultSlice(ag.DNSNames, []string{"localhost"}),
		IPAddresses:  orDefaultSlice(ag.IPAddresses, []string{"127.0.0.1", "::1"}),
		NotAfter:     time.Now().AddDate(0, 0, validDays),
		CertPath:     filepath.Join(destDir, tlsCrt),
		KeyPath:      filepath.Join(destDir, tlsKey),
		CACertPath:   filepath.Join(destDir, tlsCaCrt),
	})
}

func orDefault(value, def string) string {
	if value == "" {
		return def
	}
	return value
}

func orDefaultSlice(value, def []string) []string {
	if len(value) == 0 {
		return def
	}
	return value
}
