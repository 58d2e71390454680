// SPDX-License-Identifier: AGPL-3.0-only

package policy

import (
	"strings"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"go.magiclouds.cn/ingress-tls-webhook/internal/config"
)

// Annotation keys recognized on input and written on mutation. Keys written by
// mutators are never overwritten if already present.
const (
	// SkipAnnotation opts an object out of all TLS policy when set to "true".
	SkipAnnotation = "ingress-tls.magiclouds.cn/skip"

	externalDNSHostnameAnnotation = "external-dns.alpha.kubernetes.io/hostname"

	issuerAnnotation        = "cert-manager.io/issuer"
	clusterIssuerAnnotation = "cert-manager.io/cluster-issuer"
	issuerKindAnnotation    = "cert-manager.io/issuer-kind"
	issuerGroupAnnotation   = "cert-manager.io/issuer-group"

	traefikMiddlewareAnnotation     = "traefik.ingress.kubernetes.io/router.middlewares"
	nginxForceSSLRedirectAnnotation = "nginx.ingress.kubernetes.io/force-ssl-redirect"
)

// skipValue returns the skip annotation value and whether the annotation is
// present at all.
func skipValue(obj metav1.Object) (string, bool) {
	value, ok := obj.GetAnnotations()[SkipAnnotation]
	return value, ok
}

// checkSkip is the first predicate of every pipeline: a literal "true" skip
// annotation allows the object outright, any other value moves on.
func checkSkip(obj metav1.Object) *Decision {
	value, ok := skipValue(obj)
	if !ok {
		return nil
	}
	if value == "true" {
		return allowed()
	}
	return moveOn()
}

// externalDNSHostnames returns the comma-separated hostnames from the
// external-dns annotation. A leading dot marks a suffix in external-dns
// practice; it is turned into a wildcard hostname here.
func externalDNSHostnames(obj metav1.Object) []string {
	raw, ok := obj.GetAnnotations()[externalDNSHostnameAnnotation]
	if !ok {
		return nil
	}
	hostnames := strings.Split(raw, ",")
	for i, hostname := range hostnames {
		if strings.HasPrefix(hostname, ".") {
			hostnames[i] = "*" + hostname
		}
	}
	return hostnames
}

func insertIfAbsent(annotations map[string]string, key, value string) {
	if _, ok := annotations[key]; !ok {
		annotations[key] = value
	}
}

// patchCertManagerAnnotations inserts the issuer annotations that let
// cert-manager pick the object up, without overwriting anything already set.
func patchCertManagerAnnotations(annotations map[string]string, certManager *config.CertManagerConfig) {
	if certManager == nil {
		return
	}
	if certManager.IssuerRef.Group != "" {
		insertIfAbsent(annotations, issuerGroupAnnotation, certManager.IssuerRef.Group)
	}
	if certManager.IssuerRef.Kind != "" {
		insertIfAbsent(annotations, issuerKindAnnotation, certManager.IssuerRef.Kind)
	}
	switch certManager.Scope {
	case config.IssuerScopeNamespaced:
		insertIfAbsent(annotations, issuerAnnotation, certManager.IssuerRef.Name)
	case config.IssuerScopeClustered:
		insertIfAbsent(annotations, clusterIssuerAnnotation, certManager.IssuerRef.Name)
	}
}

// uniqueStrings deduplicates while preserving first occurrence order.
func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	unique := make([]string, 0, len(values))
	for _, value := range values {
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		unique = append(unique, value)
	}
	return unique
}
