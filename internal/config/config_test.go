package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseListenAddress(t *testing.T) {
	tests := []struct {
		name         string
		address      string
		expectedHost string
		expectedPort int
		expectErr    bool
	}{
		{name: "wildcard host", address: "0.0.0.0:443", expectedHost: "0.0.0.0", expectedPort: 443},
		{name: "empty host", address: ":8443", expectedHost: "", expectedPort: 8443},
		{name: "missing port", address: "0.0.0.0", expectErr: true},
		{name: "non-numeric port", address: "0.0.0.0:https", expectErr: true},
		{name: "port out of range", address: "0.0.0.0:70000", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, port, err := ParseListenAddress(tt.address)
			if tt.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedHost, host)
			assert.Equal(t, tt.expectedPort, port)
		})
	}
}

func TestParseIssuer(t *testing.T) {
	tests := []struct {
		name          string
		issuer        string
		expectedScope IssuerScope
		expectedName  string
		expectErr     bool
	}{
		{name: "namespaced", issuer: "namespaced:letsencrypt", expectedScope: IssuerScopeNamespaced, expectedName: "letsencrypt"},
		{name: "clustered", issuer: "clustered:letsencrypt", expectedScope: IssuerScopeClustered, expectedName: "letsencrypt"},
		{name: "case insensitive type", issuer: "Clustered:letsencrypt", expectedScope: IssuerScopeClustered, expectedName: "letsencrypt"},
		{name: "missing separator", issuer: "letsencrypt", expectErr: true},
		{name: "unknown type", issuer: "global:letsencrypt", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scope, name, err := ParseIssuer(tt.issuer)
			if tt.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedScope, scope)
			assert.Equal(t, tt.expectedName, name)
		})
	}
}

func TestWebhookServerOptions(t *testing.T) {
	cfg := WebhookServerConfig{
		Host: "0.0.0.0",
		Port: 8443,
		TLS: TLSConfig{
			CertDir:  "/var/run/tls",
			CertName: "tls.crt",
			KeyName:  "tls.key",
		},
	}

	opts := cfg.Options()
	assert.Equal(t, "0.0.0.0", opts.Host)
	assert.Equal(t, 8443, opts.Port)
	assert.Equal(t, "/var/run/tls", opts.CertDir)
	assert.Equal(t, "tls.crt", opts.CertName)
	assert.Equal(t, "tls.key", opts.KeyName)
}
