// SPDX-License-Identifier: AGPL-3.0-only

package policy

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"
	gatewayv1 "sigs.k8s.io/gateway-api/apis/v1"
)

// namespaceScope is the set of namespaces a listener accepts routes from:
// either every namespace, or an explicit list.
type namespaceScope struct {
	all   bool
	names []string
}

func allNamespaces() namespaceScope {
	return namespaceScope{all: true}
}

func someNamespaces(names ...string) namespaceScope {
	return namespaceScope{names: names}
}

// getGateway fetches a Gateway, returning nil without error when it does not
// exist.
func getGateway(ctx context.Context, reader client.Reader, namespace, name string) (*gatewayv1.Gateway, error) {
	var gateway gatewayv1.Gateway
	if err := reader.Get(ctx, types.NamespacedName{Namespace: namespace, Name: name}, &gateway); err != nil {
		if apierrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching gateway %s/%s: %w", namespace, name, err)
	}
	return &gateway, nil
}

// listHTTPRoutes lists every HTTPRoute within the scope.
func listHTTPRoutes(ctx context.Context, reader client.Reader, scope namespaceScope) ([]gatewayv1.HTTPRoute, error) {
	if scope.all {
		var list gatewayv1.HTTPRouteList
		if err := reader.List(ctx, &list); err != nil {
			return nil, fmt.Errorf("listing httproutes: %w", err)
		}
		return list.Items, nil
	}

	var routes []gatewayv1.HTTPRoute
	for _, namespace := range scope.names {
		var list gatewayv1.HTTPRouteList
		if err := reader.List(ctx, &list, client.InNamespace(namespace)); err != nil {
			return nil, fmt.Errorf("listing httproutes in %s: %w", namespace, err)
		}
		routes = append(routes, list.Items...)
	}
	return routes, nil
}

// selectNamespaces resolves a label selector to the names of the matching
// namespaces. Malformed selectors (such as an In expression without values)
// fail the request rather than silently matching nothing.
func selectNamespaces(ctx context.Context, reader client.Reader, selector *metav1.LabelSelector) ([]string, error) {
	sel, err := metav1.LabelSelectorAsSelector(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid namespace selector: %w", err)
	}

	var list corev1.NamespaceList
	if err := reader.List(ctx, &list, client.MatchingLabelsSelector{Selector: sel}); err != nil {
		return nil, fmt.Errorf("listing namespaces: %w", err)
	}

	names := make([]string, 0, len(list.Items))
	for _, namespace := range list.Items {
		names = append(names, namespace.Name)
	}
	return names, nil
}
