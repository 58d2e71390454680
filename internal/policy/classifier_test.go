// SPDX-License-Identifier: AGPL-3.0-only

package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"k8s.io/utils/ptr"
	gatewayv1 "sigs.k8s.io/gateway-api/apis/v1"
)

func TestIsRedirectOrNoRule(t *testing.T) {
	tests := []struct {
		name     string
		route    *gatewayv1.HTTPRoute
		expected bool
	}{
		{
			name:     "no rules",
			route:    newHTTPRoute("test", "empty"),
			expected: true,
		},
		{
			name: "canonical redirect rule",
			route: newHTTPRoute("test", "redirect", func(route *gatewayv1.HTTPRoute) {
				route.Spec.Rules = []gatewayv1.HTTPRouteRule{redirectRule()}
			}),
			expected: true,
		},
		{
			name: "backend rule",
			route: newHTTPRoute("test", "backend", func(route *gatewayv1.HTTPRoute) {
				route.Spec.Rules = []gatewayv1.HTTPRouteRule{backendRule()}
			}),
			expected: false,
		},
		{
			name: "redirect rule with extra rule",
			route: newHTTPRoute("test", "redirect-and-backend", func(route *gatewayv1.HTTPRoute) {
				route.Spec.Rules = []gatewayv1.HTTPRouteRule{redirectRule(), backendRule()}
			}),
			expected: false,
		},
		{
			name: "redirect to http scheme",
			route: newHTTPRoute("test", "wrong-scheme", func(route *gatewayv1.HTTPRoute) {
				rule := redirectRule()
				rule.Filters[0].RequestRedirect.Scheme = ptr.To("http")
				route.Spec.Rules = []gatewayv1.HTTPRouteRule{rule}
			}),
			expected: false,
		},
		{
			name: "redirect with permanent status",
			route: newHTTPRoute("test", "wrong-status", func(route *gatewayv1.HTTPRoute) {
				rule := redirectRule()
				rule.Filters[0].RequestRedirect.StatusCode = ptr.To(301)
				route.Spec.Rules = []gatewayv1.HTTPRouteRule{rule}
			}),
			expected: false,
		},
		{
			name: "redirect on a sub path",
			route: newHTTPRoute("test", "wrong-path", func(route *gatewayv1.HTTPRoute) {
				rule := redirectRule()
				rule.Matches[0].Path.Value = ptr.To("/admin")
				route.Spec.Rules = []gatewayv1.HTTPRouteRule{rule}
			}),
			expected: false,
		},
		{
			name: "redirect with backend attached",
			route: newHTTPRoute("test", "redirect-with-backend", func(route *gatewayv1.HTTPRoute) {
				rule := redirectRule()
				rule.BackendRefs = backendRule().BackendRefs
				route.Spec.Rules = []gatewayv1.HTTPRouteRule{rule}
			}),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isRedirectOrNoRule(tt.route))
		})
	}
}
