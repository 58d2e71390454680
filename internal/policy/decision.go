// SPDX-License-Identifier: AGPL-3.0-only

package policy

import (
	"fmt"
	"strings"

	"gomodules.xyz/jsonpatch/v2"
	gatewayv1 "sigs.k8s.io/gateway-api/apis/v1"
)

// Verdict is the outcome category of an admission decision.
type Verdict int

const (
	// VerdictMoveOn means no check claimed the object; the transport layer
	// treats it as allowed.
	VerdictMoveOn Verdict = iota
	VerdictAllowed
	VerdictDenied
	VerdictInvalid
	VerdictPatched
)

// Decision is the result of running an object through a validator or mutator.
// Exactly one of Reason, Message, or Patches is meaningful, selected by Verdict.
type Decision struct {
	Verdict Verdict
	Reason  *DenyReason
	Message string
	Patches []jsonpatch.Operation
}

func moveOn() *Decision {
	return &Decision{Verdict: VerdictMoveOn}
}

func allowed() *Decision {
	return &Decision{Verdict: VerdictAllowed}
}

func denied(reason *DenyReason) *Decision {
	return &Decision{Verdict: VerdictDenied, Reason: reason}
}

func invalid(message string) *Decision {
	return &Decision{Verdict: VerdictInvalid, Message: message}
}

func patched(ops []jsonpatch.Operation) *Decision {
	return &Decision{Verdict: VerdictPatched, Patches: ops}
}

const insufficientInputMessage = "Input does not contain enough information"

func insufficientInput() Decision {
	return Decision{Verdict: VerdictInvalid, Message: insufficientInputMessage}
}

func deniedInternal(err error) Decision {
	return Decision{Verdict: VerdictDenied, Reason: &DenyReason{Code: DenyInternalError, Err: err}}
}

// DeniedWith reports whether the decision is a denial carrying the given code.
func (d Decision) DeniedWith(code DenyCode) bool {
	return d.Verdict == VerdictDenied && d.Reason != nil && d.Reason.Code == code
}

// DenyCode enumerates the reasons an object can be denied.
type DenyCode int

const (
	DenyInternalError DenyCode = iota
	DenyIngressNoTLS
	DenyGatewayNoTLSListener
	DenyGatewayNonRedirectHTTPRouteAttachedToHTTPListener
	DenyHTTPRouteNonRedirectAttachedToHTTPListener
	// DenyCannotInferenceMutation is reserved for mutation branches that may
	// decline to guess in the future. Nothing produces it today.
	DenyCannotInferenceMutation
)

// DenyReason is a deny code plus the structured context a mutator needs to
// repair the object without re-querying the cluster. BadListeners is set for
// DenyGatewayNonRedirectHTTPRouteAttachedToHTTPListener, BadParents for
// DenyHTTPRouteNonRedirectAttachedToHTTPListener, Err for DenyInternalError.
type DenyReason struct {
	Code         DenyCode
	Err          error
	BadListeners []ListenerRoutes
	BadParents   []ParentAttachment
}

// Parted is a partition of a list by a predicate.
type Parted[T any] struct {
	Good []T
	Bad  []T
}

// ListenerRoutes pairs an HTTP listener with the HTTPRoutes attached to it,
// partitioned into redirect-or-empty (good) and real-traffic (bad) routes.
type ListenerRoutes struct {
	Listener gatewayv1.Listener
	Routes   Parted[gatewayv1.HTTPRoute]
}

// ParentAttachment records that a parent ref of an HTTPRoute points at HTTP
// listeners of a Gateway. Listeners holds indices into Gateway.Spec.Listeners
// so the pair stays valid however it is copied around.
type ParentAttachment struct {
	Ref       gatewayv1.ParentReference
	Gateway   gatewayv1.Gateway
	Listeners []int
}

// clusteredNamespace is substituted for absent namespaces in user-visible
// messages.
const clusteredNamespace = "CLUSTERED"

func namespacedName(namespace, name string) string {
	if namespace == "" {
		namespace = clusteredNamespace
	}
	return fmt.Sprintf("%s/%s", namespace, name)
}

// Message renders the human-readable form of the reason, used verbatim in the
// admission response status.
func (r *DenyReason) Message() string {
	switch r.Code {
	case DenyInternalError:
		return fmt.Sprintf("Internal Error occurred.\n%v", r.Err)
	case DenyIngressNoTLS:
		return "The Ingress does not contain a TLS configuration."
	case DenyGatewayNoTLSListener:
		return "The Gateway does not contain a TLS configuration."
	case DenyGatewayNonRedirectHTTPRouteAttachedToHTTPListener:
		routes := uniqueBadRoutes(r.BadListeners)
		lines := make([]string, 0, len(routes))
		for _, route := range routes {
			lines = append(lines, namespacedName(route.Namespace, route.Name))
		}
		return fmt.Sprintf(
			"There are %d non-redirect HTTPRoutes (listed below) attaching to HTTP listeners of this Gateway.\n%s",
			len(routes), strings.Join(lines, "\n"))
	case DenyHTTPRouteNonRedirectAttachedToHTTPListener:
		lines := make([]string, 0, len(r.BadParents))
		for _, attachment := range r.BadParents {
			lines = append(lines, namespacedName(attachment.Gateway.Namespace, attachment.Gateway.Name))
		}
		return fmt.Sprintf(
			"This non-redirect HTTPRoute is attaching to HTTP listeners of Gateways: %s",
			strings.Join(lines, "\n"))
	case DenyCannotInferenceMutation:
		return "There is not enough information to make the mutation"
	}
	return ""
}

// uniqueBadRoutes flattens the bad partitions of all listeners, deduplicated
// by namespace/name in first-seen order.
func uniqueBadRoutes(listeners []ListenerRoutes) []gatewayv1.HTTPRoute {
	seen := map[string]struct{}{}
	var routes []gatewayv1.HTTPRoute
	for _, lr := range listeners {
		for _, route := range lr.Routes.Bad {
			key := route.Namespace + "/" + route.Name
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			routes = append(routes, route)
		}
	}
	return routes
}
