// SPDX-License-Identifier: AGPL-3.0-only

package policy

import (
	"context"
	"fmt"

	"k8s.io/utils/ptr"
	"sigs.k8s.io/controller-runtime/pkg/client"
	gatewayv1 "sigs.k8s.io/gateway-api/apis/v1"

	"go.magiclouds.cn/ingress-tls-webhook/internal/config"
	gatewayutil "go.magiclouds.cn/ingress-tls-webhook/internal/util/gateway"
)

// GatewayPolicy enforces the TLS-correct shape on Gateways: HTTP listeners may
// only carry redirect routes, and at least one HTTPS listener must terminate
// TLS.
type GatewayPolicy struct {
	Client client.Reader
	Config config.IngressTLSWebhook
}

// Validate runs the Gateway check pipeline.
//
// Non-redirect routes on HTTP listeners are checked before the missing-TLS
// condition: they are the more actionable problem, and usually imply it.
func (p *GatewayPolicy) Validate(ctx context.Context, gateway *gatewayv1.Gateway) Decision {
	return p.checks().Run(ctx, gateway)
}

func (p *GatewayPolicy) checks() Checks[*gatewayv1.Gateway] {
	return Checks[*gatewayv1.Gateway]{
		func(_ context.Context, gateway *gatewayv1.Gateway) (*Decision, error) {
			return checkSkip(gateway), nil
		},
		func(ctx context.Context, gateway *gatewayv1.Gateway) (*Decision, error) {
			bad, ok, err := badRoutesForGateway(ctx, p.Client, gateway)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, nil
			}
			if len(bad) > 0 {
				return denied(&DenyReason{
					Code:         DenyGatewayNonRedirectHTTPRouteAttachedToHTTPListener,
					BadListeners: bad,
				}), nil
			}
			return moveOn(), nil
		},
		func(_ context.Context, gateway *gatewayv1.Gateway) (*Decision, error) {
			// An HTTPS listener without tls is invalid and will not be
			// programmed, so the protocol alone is a sufficient signal.
			if gatewayutil.HasListenerWithProtocol(gateway.Spec.Listeners, gatewayv1.HTTPSProtocolType) {
				return moveOn(), nil
			}
			return denied(&DenyReason{Code: DenyGatewayNoTLSListener}), nil
		},
	}
}

// Mutate validates and dispatches on the deny reason: a Gateway without any
// TLS listener gets HTTPS listeners appended; a Gateway whose HTTP listeners
// carry real traffic gets those listeners converted in place when that can be
// done unambiguously.
func (p *GatewayPolicy) Mutate(ctx context.Context, gateway *gatewayv1.Gateway) Decision {
	decision := p.Validate(ctx, gateway)
	switch {
	case decision.DeniedWith(DenyGatewayNoTLSListener):
		return p.mutateAddListeners(gateway)
	case decision.DeniedWith(DenyGatewayNonRedirectHTTPRouteAttachedToHTTPListener):
		return p.mutateConvertListeners(gateway, decision.Reason.BadListeners)
	default:
		return decision
	}
}

// mutateAddListeners appends one terminating HTTPS listener per known
// hostname. Hostnames are guessed from the existing listeners and the
// external-dns annotation; the certificate secret is left for cert-manager to
// fill in.
func (p *GatewayPolicy) mutateAddListeners(gateway *gatewayv1.Gateway) Decision {
	if gateway.Name == "" || gateway.Namespace == "" {
		return insufficientInput()
	}

	port := gatewayutil.HTTPSPortFor(gateway.Spec.GatewayClassName)

	var hostnames []string
	for _, listener := range gateway.Spec.Listeners {
		if listener.Hostname != nil {
			hostnames = append(hostnames, string(*listener.Hostname))
		}
	}
	hostnames = append(hostnames, externalDNSHostnames(gateway)...)
	hostnames = uniqueStrings(hostnames)

	target := gateway.DeepCopy()
	for _, hostname := range hostnames {
		target.Spec.Listeners = append(target.Spec.Listeners, gatewayv1.Listener{
			Name:     gatewayv1.SectionName(fmt.Sprintf("%s-https", gateway.Name)),
			Port:     port,
			Protocol: gatewayv1.HTTPSProtocolType,
			Hostname: ptr.To(gatewayv1.Hostname(hostname)),
			AllowedRoutes: &gatewayv1.AllowedRoutes{
				Namespaces: &gatewayv1.RouteNamespaces{
					From: ptr.To(gatewayv1.NamespacesFromSame),
				},
			},
			TLS: &gatewayv1.GatewayTLSConfig{
				Mode: ptr.To(gatewayv1.TLSModeTerminate),
				CertificateRefs: []gatewayv1.SecretObjectReference{
					{
						Name:      gatewayv1.ObjectName(fmt.Sprintf("%s-https-tls", gateway.Name)),
						Namespace: ptr.To(gatewayv1.Namespace(gateway.Namespace)),
					},
				},
			},
		})
	}

	annotations := target.Annotations
	if annotations == nil {
		annotations = map[string]string{}
	}
	patchCertManagerAnnotations(annotations, p.Config.CertManager)
	target.Annotations = annotations

	ops, err := diff(gateway, target)
	if err != nil {
		return deniedInternal(err)
	}
	return *patched(ops)
}

// mutateConvertListeners turns offending HTTP listeners into terminating HTTPS
// listeners in place. A listener is convertible only when no redirect route
// shares it and it names a hostname; if any offending listener is not, the
// automation declines to guess and re-emits the denial.
func (p *GatewayPolicy) mutateConvertListeners(gateway *gatewayv1.Gateway, badListeners []ListenerRoutes) Decision {
	if gateway.Name == "" || gateway.Namespace == "" {
		return insufficientInput()
	}

	port := gatewayutil.HTTPSPortFor(gateway.Spec.GatewayClassName)
	target := gateway.DeepCopy()

	var convertible []ListenerRoutes
	for _, lr := range badListeners {
		listener := gatewayutil.GetListenerByName(target.Spec.Listeners, lr.Listener.Name)
		if len(lr.Routes.Good) > 0 || listener == nil ||
			listener.Hostname == nil || *listener.Hostname == "" {
			return *denied(&DenyReason{
				Code:         DenyGatewayNonRedirectHTTPRouteAttachedToHTTPListener,
				BadListeners: badListeners,
			})
		}
		convertible = append(convertible, lr)
	}

	for _, lr := range convertible {
		listener := gatewayutil.GetListenerByName(target.Spec.Listeners, lr.Listener.Name)
		listener.Protocol = gatewayv1.HTTPSProtocolType
		listener.Port = port
		listener.TLS = &gatewayv1.GatewayTLSConfig{
			Mode: ptr.To(gatewayv1.TLSModeTerminate),
			CertificateRefs: []gatewayv1.SecretObjectReference{
				{
					Name:      gatewayv1.ObjectName(fmt.Sprintf("%s-%s-tls", gateway.Name, listener.Name)),
					Namespace: ptr.To(gatewayv1.Namespace(gateway.Namespace)),
				},
			},
		}
	}

	ops, err := diff(gateway, target)
	if err != nil {
		return deniedInternal(err)
	}
	return *patched(ops)
}
