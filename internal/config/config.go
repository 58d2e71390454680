package config

import (
	"fmt"
	"strconv"
	"strings"

	cmmeta "github.com/cert-manager/cert-manager/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/webhook"
)

// IngressTLSWebhook is the full configuration of the webhook binary.
type IngressTLSWebhook struct {
	WebhookServer WebhookServerConfig

	// CertManager configures the cert-manager annotations written by the
	// mutating webhook. Nil disables them.
	CertManager *CertManagerConfig

	// TraefikMiddleware names the Traefik Middleware resource that redirects
	// HTTP to HTTPS, as NAME or NAMESPACE/NAME. The namespace defaults to the
	// namespace of the Ingress being mutated.
	TraefikMiddleware string
}

// WebhookServerConfig is the listen address and serving certificate location
// of the webhook HTTPS server.
type WebhookServerConfig struct {
	// Host is the address that the server will listen on.
	Host string

	// Port is the port number that the server will serve.
	Port int

	// TLS locates the serving certificate and key. The folder is expected to
	// be a Kubernetes secret mount; renewals are picked up without a restart.
	TLS TLSConfig
}

type TLSConfig struct {
	// CertDir is the directory that contains the server key and certificate.
	CertDir string

	// CertName is the server certificate file name within CertDir.
	CertName string

	// KeyName is the server private key file name within CertDir.
	KeyName string
}

func (c *WebhookServerConfig) Options() webhook.Options {
	return webhook.Options{
		Host:     c.Host,
		Port:     c.Port,
		CertDir:  c.TLS.CertDir,
		CertName: c.TLS.CertName,
		KeyName:  c.TLS.KeyName,
	}
}

// IssuerScope distinguishes namespaced issuers from cluster-scoped ones. The
// scope selects which cert-manager annotation receives the issuer name.
type IssuerScope string

const (
	IssuerScopeNamespaced IssuerScope = "namespaced"
	IssuerScopeClustered  IssuerScope = "clustered"
)

// CertManagerConfig identifies the issuer the mutating webhook points managed
// objects at.
type CertManagerConfig struct {
	// IssuerRef carries the issuer name, and optionally its kind and group for
	// external issuers.
	IssuerRef cmmeta.ObjectReference

	Scope IssuerScope
}

// ParseListenAddress splits a HOST:PORT listen address.
func ParseListenAddress(address string) (string, int, error) {
	host, portString, found := strings.Cut(address, ":")
	if !found {
		return "", 0, fmt.Errorf("invalid listen address %q, expected HOST:PORT", address)
	}
	port, err := strconv.ParseUint(portString, 10, 16)
	if err != nil {
		return "", 0, fmt.Errorf("invalid listen port %q: %w", portString, err)
	}
	return host, int(port), nil
}

// ParseIssuer parses a TYPE:VALUE issuer flag, where TYPE is namespaced or
// clustered, case-insensitively.
func ParseIssuer(issuer string) (IssuerScope, string, error) {
	scope, name, found := strings.Cut(issuer, ":")
	if !found {
		return "", "", fmt.Errorf("invalid issuer %q, expected TYPE:VALUE", issuer)
	}
	switch strings.ToLower(scope) {
	case string(IssuerScopeNamespaced):
		return IssuerScopeNamespaced, name, nil
	case string(IssuerScopeClustered):
		return IssuerScopeClustered, name, nil
	default:
		return "", "", fmt.Errorf("invalid issuer type %q", scope)
	}
}
