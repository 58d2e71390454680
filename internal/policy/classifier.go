// SPDX-License-Identifier: AGPL-3.0-only

package policy

import (
	apiequality "k8s.io/apimachinery/pkg/api/equality"
	"k8s.io/utils/ptr"
	gatewayv1 "sigs.k8s.io/gateway-api/apis/v1"
)

// redirectRule is the canonical HTTP to HTTPS redirect rule: match every path,
// answer with a 302 to the https scheme, and nothing else.
func redirectRule() gatewayv1.HTTPRouteRule {
	return gatewayv1.HTTPRouteRule{
		Matches: []gatewayv1.HTTPRouteMatch{
			{
				Path: &gatewayv1.HTTPPathMatch{
					Type:  ptr.To(gatewayv1.PathMatchPathPrefix),
					Value: ptr.To("/"),
				},
			},
		},
		Filters: []gatewayv1.HTTPRouteFilter{
			{
				Type: gatewayv1.HTTPRouteFilterRequestRedirect,
				RequestRedirect: &gatewayv1.HTTPRequestRedirectFilter{
					Scheme:     ptr.To("https"),
					StatusCode: ptr.To(302),
				},
			},
		},
	}
}

// isRedirectOrNoRule reports whether the route imposes no substantive
// data-plane behavior: no rules at all, or a single rule structurally equal to
// the canonical redirect rule. Such routes may safely stay on HTTP listeners.
func isRedirectOrNoRule(route *gatewayv1.HTTPRoute) bool {
	rules := route.Spec.Rules
	if len(rules) == 0 {
		return true
	}
	if len(rules) != 1 {
		return false
	}
	return apiequality.Semantic.DeepEqual(rules[0], redirectRule())
}
