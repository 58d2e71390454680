// SPDX-License-Identifier: AGPL-3.0-only

package policy

import (
	"context"

	"sigs.k8s.io/controller-runtime/pkg/client"
	gatewayv1 "sigs.k8s.io/gateway-api/apis/v1"
)

// parentRefMatchesListener reports whether a parent ref of a route in
// routeNamespace selects the given listener of the named Gateway. An absent
// sectionName or port matches any listener.
func parentRefMatchesListener(ref gatewayv1.ParentReference, listener *gatewayv1.Listener, gatewayName, gatewayNamespace, routeNamespace string) bool {
	if ref.Kind == nil || *ref.Kind != "Gateway" {
		return false
	}
	if string(ref.Name) != gatewayName {
		return false
	}

	refNamespace := routeNamespace
	if ref.Namespace != nil {
		refNamespace = string(*ref.Namespace)
	}
	if refNamespace != gatewayNamespace {
		return false
	}

	if ref.SectionName != nil && *ref.SectionName != listener.Name {
		return false
	}
	if ref.Port != nil && *ref.Port != listener.Port {
		return false
	}
	return true
}

// allowedNamespaces resolves the namespaces a listener accepts routes from.
// The second return is false when from=Selector but no selector is present;
// that listener is then skipped by the caller.
func allowedNamespaces(ctx context.Context, reader client.Reader, listener *gatewayv1.Listener, gatewayNamespace string) (namespaceScope, bool, error) {
	from := gatewayv1.NamespacesFromSame
	var selector *gatewayv1.RouteNamespaces
	if listener.AllowedRoutes != nil && listener.AllowedRoutes.Namespaces != nil {
		selector = listener.AllowedRoutes.Namespaces
		if selector.From != nil {
			from = *selector.From
		}
	}

	switch from {
	case gatewayv1.NamespacesFromAll:
		return allNamespaces(), true, nil
	case gatewayv1.NamespacesFromSelector:
		if selector == nil || selector.Selector == nil {
			return namespaceScope{}, false, nil
		}
		names, err := selectNamespaces(ctx, reader, selector.Selector)
		if err != nil {
			return namespaceScope{}, false, err
		}
		return someNamespaces(names...), true, nil
	default:
		// Same, or anything unrecognized. Route namespace equality is enforced
		// again by parentRefMatchesListener.
		return someNamespaces(gatewayNamespace), true, nil
	}
}

// routesForListener lists the HTTPRoutes attached to the listener: routes in
// the allowed namespaces whose every parent ref matches it. Routes without
// parent refs are not attached to anything.
func routesForListener(ctx context.Context, reader client.Reader, listener *gatewayv1.Listener, gatewayName, gatewayNamespace string) ([]gatewayv1.HTTPRoute, bool, error) {
	scope, ok, err := allowedNamespaces(ctx, reader, listener, gatewayNamespace)
	if err != nil || !ok {
		return nil, ok, err
	}

	routes, err := listHTTPRoutes(ctx, reader, scope)
	if err != nil {
		return nil, false, err
	}

	var attached []gatewayv1.HTTPRoute
	for _, route := range routes {
		if route.Namespace == "" || route.Spec.ParentRefs == nil {
			continue
		}
		matchesAll := true
		for _, ref := range route.Spec.ParentRefs {
			if !parentRefMatchesListener(ref, listener, gatewayName, gatewayNamespace, route.Namespace) {
				matchesAll = false
				break
			}
		}
		if matchesAll {
			attached = append(attached, route)
		}
	}
	return attached, true, nil
}

// badRoutesForGateway audits every HTTP listener of the Gateway and returns
// the listeners that have at least one non-redirect route attached, paired
// with the good/bad partition of their routes. The second return is false
// when the Gateway lacks a name or namespace.
func badRoutesForGateway(ctx context.Context, reader client.Reader, gateway *gatewayv1.Gateway) ([]ListenerRoutes, bool, error) {
	if gateway.Name == "" || gateway.Namespace == "" {
		return nil, false, nil
	}

	var bad []ListenerRoutes
	for i := range gateway.Spec.Listeners {
		listener := &gateway.Spec.Listeners[i]
		if listener.Protocol != gatewayv1.HTTPProtocolType {
			continue
		}

		routes, ok, err := routesForListener(ctx, reader, listener, gateway.Name, gateway.Namespace)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			continue
		}

		var parted Parted[gatewayv1.HTTPRoute]
		for _, route := range routes {
			if isRedirectOrNoRule(&route) {
				parted.Good = append(parted.Good, route)
			} else {
				parted.Bad = append(parted.Bad, route)
			}
		}
		if len(parted.Bad) > 0 {
			bad = append(bad, ListenerRoutes{Listener: *listener, Routes: parted})
		}
	}
	return bad, true, nil
}

// httpListenerAttachments audits each Gateway parent ref of a route and
// returns the refs that select HTTP listeners, paired with the owning Gateway
// and the indices of the matched listeners. Refs to Gateways that do not
// exist, or that match no HTTP listener, are not reported.
func httpListenerAttachments(ctx context.Context, reader client.Reader, route *gatewayv1.HTTPRoute) ([]ParentAttachment, error) {
	var attachments []ParentAttachment
	for _, ref := range route.Spec.ParentRefs {
		if ref.Kind == nil || *ref.Kind != "Gateway" {
			continue
		}

		namespace := route.Namespace
		if ref.Namespace != nil {
			namespace = string(*ref.Namespace)
		}
		gateway, err := getGateway(ctx, reader, namespace, string(ref.Name))
		if err != nil {
			return nil, err
		}
		if gateway == nil || gateway.Name == "" || gateway.Namespace == "" {
			continue
		}

		var matched []int
		for i := range gateway.Spec.Listeners {
			listener := &gateway.Spec.Listeners[i]
			if listener.Protocol == gatewayv1.HTTPProtocolType &&
				parentRefMatchesListener(ref, listener, gateway.Name, gateway.Namespace, route.Namespace) {
				matched = append(matched, i)
			}
		}
		if len(matched) > 0 {
			attachments = append(attachments, ParentAttachment{Ref: ref, Gateway: *gateway, Listeners: matched})
		}
	}
	return attachments, nil
}
