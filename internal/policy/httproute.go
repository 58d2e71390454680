// SPDX-License-Identifier: AGPL-3.0-only

package policy

import (
	"context"
	"slices"

	apiequality "k8s.io/apimachinery/pkg/api/equality"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/controller-runtime/pkg/client"
	gatewayv1 "sigs.k8s.io/gateway-api/apis/v1"
)

// HTTPRoutePolicy keeps real-traffic HTTPRoutes off HTTP listeners: only
// redirect (or empty) routes may attach there.
type HTTPRoutePolicy struct {
	Client client.Reader
}

// Validate runs the HTTPRoute check pipeline.
func (p *HTTPRoutePolicy) Validate(ctx context.Context, route *gatewayv1.HTTPRoute) Decision {
	return p.checks().Run(ctx, route)
}

func (p *HTTPRoutePolicy) checks() Checks[*gatewayv1.HTTPRoute] {
	return Checks[*gatewayv1.HTTPRoute]{
		func(_ context.Context, route *gatewayv1.HTTPRoute) (*Decision, error) {
			return checkSkip(route), nil
		},
		func(_ context.Context, route *gatewayv1.HTTPRoute) (*Decision, error) {
			if isRedirectOrNoRule(route) {
				return allowed(), nil
			}
			return moveOn(), nil
		},
		func(_ context.Context, route *gatewayv1.HTTPRoute) (*Decision, error) {
			// A route that is not attached anywhere yet cannot break a
			// listener.
			if route.Spec.ParentRefs == nil {
				return allowed(), nil
			}
			return moveOn(), nil
		},
		func(ctx context.Context, route *gatewayv1.HTTPRoute) (*Decision, error) {
			if route.Namespace == "" {
				return nil, nil
			}
			attachments, err := httpListenerAttachments(ctx, p.Client, route)
			if err != nil {
				return nil, err
			}
			if len(attachments) == 0 {
				return allowed(), nil
			}
			return denied(&DenyReason{
				Code:       DenyHTTPRouteNonRedirectAttachedToHTTPListener,
				BadParents: attachments,
			}), nil
		},
	}
}

// Mutate validates and, when the route is attached to HTTP listeners, rewrites
// the offending parent refs to point at the owning Gateways' HTTPS listeners
// instead. The target listener is chosen when it is the only HTTPS listener,
// or by hostname when all involved hostnames are covered; otherwise the
// denial is re-emitted.
func (p *HTTPRoutePolicy) Mutate(ctx context.Context, route *gatewayv1.HTTPRoute) Decision {
	decision := p.Validate(ctx, route)
	if !decision.DeniedWith(DenyHTTPRouteNonRedirectAttachedToHTTPListener) {
		return decision
	}
	attachments := decision.Reason.BadParents

	target := route.DeepCopy()
	if target.Spec.ParentRefs != nil {
		kept := target.Spec.ParentRefs[:0]
		for _, ref := range target.Spec.ParentRefs {
			bad := false
			for _, attachment := range attachments {
				if apiequality.Semantic.DeepEqual(ref, attachment.Ref) {
					bad = true
					break
				}
			}
			if !bad {
				kept = append(kept, ref)
			}
		}
		target.Spec.ParentRefs = kept
	}

	for _, attachment := range attachments {
		gateway := attachment.Gateway
		if gateway.Name == "" || gateway.Namespace == "" {
			return insufficientInput()
		}

		var hostnames []string
		for _, hostname := range route.Spec.Hostnames {
			hostnames = append(hostnames, string(hostname))
		}
		for _, i := range attachment.Listeners {
			if h := gateway.Spec.Listeners[i].Hostname; h != nil {
				hostnames = append(hostnames, string(*h))
			}
		}
		hostnames = uniqueStrings(hostnames)

		var candidates []gatewayv1.Listener
		for _, listener := range gateway.Spec.Listeners {
			if listener.Protocol == gatewayv1.HTTPSProtocolType {
				candidates = append(candidates, listener)
			}
		}

		if target.Spec.ParentRefs == nil {
			target.Spec.ParentRefs = []gatewayv1.ParentReference{}
		}

		if len(candidates) == 1 {
			target.Spec.ParentRefs = append(target.Spec.ParentRefs,
				httpsParentRef(&gateway, &candidates[0]))
			continue
		}

		if !hostnamesCovered(hostnames, candidates) {
			return *denied(&DenyReason{
				Code:       DenyHTTPRouteNonRedirectAttachedToHTTPListener,
				BadParents: attachments,
			})
		}
		for i := range candidates {
			candidate := &candidates[i]
			if candidate.Hostname == nil || *candidate.Hostname == "" {
				continue
			}
			if slices.Contains(hostnames, string(*candidate.Hostname)) {
				target.Spec.ParentRefs = append(target.Spec.ParentRefs,
					httpsParentRef(&gateway, candidate))
			}
		}
	}

	ops, err := diff(route, target)
	if err != nil {
		return deniedInternal(err)
	}
	return *patched(ops)
}

func httpsParentRef(gateway *gatewayv1.Gateway, listener *gatewayv1.Listener) gatewayv1.ParentReference {
	return gatewayv1.ParentReference{
		Kind:        ptr.To(gatewayv1.Kind("Gateway")),
		Name:        gatewayv1.ObjectName(gateway.Name),
		Namespace:   ptr.To(gatewayv1.Namespace(gateway.Namespace)),
		Port:        ptr.To(listener.Port),
		SectionName: ptr.To(listener.Name),
	}
}

// hostnamesCovered reports whether every hostname is served by some candidate
// listener.
func hostnamesCovered(hostnames []string, candidates []gatewayv1.Listener) bool {
	for _, hostname := range hostnames {
		covered := false
		for _, candidate := range candidates {
			if candidate.Hostname != nil && string(*candidate.Hostname) == hostname {
				covered = true
				break
			}
		}
		if !covered {
			return false
		}
	}
	return true
}
