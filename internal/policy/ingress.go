// SPDX-License-Identifier: AGPL-3.0-only

package policy

import (
	"context"
	"fmt"
	"strings"

	networkingv1 "k8s.io/api/networking/v1"
	logf "sigs.k8s.io/controller-runtime/pkg/log"

	"go.magiclouds.cn/ingress-tls-webhook/internal/config"
)

// Supported Ingress classes. Each gets its own HTTP to HTTPS redirect annotation;
// anything else is left without one.
const (
	ingressClassTraefik = "traefik"
	ingressClassNginx   = "nginx"
)

// IngressPolicy enforces the TLS-correct shape on Ingress objects: a TLS
// section covering every routable hostname, plus the annotations that make
// cert-manager and the ingress controller do the rest.
type IngressPolicy struct {
	Config config.IngressTLSWebhook
}

// Validate runs the Ingress check pipeline.
func (p *IngressPolicy) Validate(ctx context.Context, ingress *networkingv1.Ingress) Decision {
	return p.checks().Run(ctx, ingress)
}

func (p *IngressPolicy) checks() Checks[*networkingv1.Ingress] {
	return Checks[*networkingv1.Ingress]{
		func(_ context.Context, ingress *networkingv1.Ingress) (*Decision, error) {
			return checkSkip(ingress), nil
		},
		func(_ context.Context, ingress *networkingv1.Ingress) (*Decision, error) {
			if len(ingress.Spec.TLS) == 0 {
				return denied(&DenyReason{Code: DenyIngressNoTLS}), nil
			}
			return moveOn(), nil
		},
	}
}

// Mutate validates, and when the Ingress merely lacks TLS, computes the patch
// that adds a TLS section covering all hostnames plus the cert-manager and
// redirect annotations. Any other validation outcome passes through verbatim.
func (p *IngressPolicy) Mutate(ctx context.Context, ingress *networkingv1.Ingress) Decision {
	decision := p.Validate(ctx, ingress)
	if !decision.DeniedWith(DenyIngressNoTLS) {
		return decision
	}

	if ingress.Name == "" || ingress.Namespace == "" ||
		ingress.Spec.IngressClassName == nil || ingress.Spec.Rules == nil {
		return insufficientInput()
	}

	var hosts []string
	for _, rule := range ingress.Spec.Rules {
		if rule.Host != "" {
			hosts = append(hosts, rule.Host)
		}
	}
	hosts = append(hosts, externalDNSHostnames(ingress)...)
	hosts = uniqueStrings(hosts)
	if len(hosts) == 0 {
		return *invalid("The Ingress does not contain hosts information")
	}

	target := ingress.DeepCopy()
	target.Spec.TLS = []networkingv1.IngressTLS{
		{
			Hosts:      hosts,
			SecretName: fmt.Sprintf("%s-tls", ingress.Name),
		},
	}

	annotations := target.Annotations
	if annotations == nil {
		annotations = map[string]string{}
	}
	patchCertManagerAnnotations(annotations, p.Config.CertManager)
	p.patchRedirectAnnotation(ctx, annotations, *ingress.Spec.IngressClassName, ingress.Namespace)
	target.Annotations = annotations

	ops, err := diff(ingress, target)
	if err != nil {
		return deniedInternal(err)
	}
	return *patched(ops)
}

// patchRedirectAnnotation inserts the class-specific annotation that turns
// plain HTTP into a redirect. Unrecognized classes are logged and skipped; the
// TLS section is still worth patching for them.
func (p *IngressPolicy) patchRedirectAnnotation(ctx context.Context, annotations map[string]string, ingressClassName, ingressNamespace string) {
	switch strings.ToLower(ingressClassName) {
	case ingressClassTraefik:
		if p.Config.TraefikMiddleware == "" {
			return
		}
		namespace, name, found := strings.Cut(p.Config.TraefikMiddleware, "/")
		if !found {
			namespace, name = ingressNamespace, p.Config.TraefikMiddleware
		}
		insertIfAbsent(annotations, traefikMiddlewareAnnotation, fmt.Sprintf("%s-%s@kubernetescrd", namespace, name))
	case ingressClassNginx:
		insertIfAbsent(annotations, nginxForceSSLRedirectAnnotation, "true")
	default:
		logf.FromContext(ctx).Info("unsupported ingress class, skipping redirect annotation",
			"ingressClassName", ingressClassName)
	}
}
