// SPDX-License-Identifier: AGPL-3.0-only

package webhook

import (
	"context"
	"fmt"
	"net/http"

	admissionv1 "k8s.io/api/admission/v1"
	networkingv1 "k8s.io/api/networking/v1"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/webhook/admission"
	gatewayv1 "sigs.k8s.io/gateway-api/apis/v1"

	"go.magiclouds.cn/ingress-tls-webhook/internal/policy"
)

// resourceHandler dispatches an admission request by kind to the matching
// policy. The same dispatch serves both endpoints; only the policy entry
// point differs.
type resourceHandler struct {
	decoder   admission.Decoder
	ingress   *policy.IngressPolicy
	gateway   *policy.GatewayPolicy
	httpRoute *policy.HTTPRoutePolicy
}

// Validator handles POST /validate.
type Validator struct {
	resourceHandler
}

var _ admission.Handler = &Validator{}

func (v *Validator) Handle(ctx context.Context, req admission.Request) admission.Response {
	return v.handle(ctx, req, false)
}

// Mutator handles POST /mutate.
type Mutator struct {
	resourceHandler
}

var _ admission.Handler = &Mutator{}

func (m *Mutator) Handle(ctx context.Context, req admission.Request) admission.Response {
	return m.handle(ctx, req, true)
}

func (h *resourceHandler) handle(ctx context.Context, req admission.Request, mutate bool) admission.Response {
	log := logf.FromContext(ctx).WithValues(
		"kind", req.Kind.Kind, "namespace", req.Namespace, "name", req.Name)
	log.Info("processing admission request")

	if len(req.Object.Raw) == 0 {
		return deny(req, "No object passed")
	}

	var decision policy.Decision
	switch req.Kind.Kind {
	case "Ingress":
		var ingress networkingv1.Ingress
		if err := h.decoder.Decode(req, &ingress); err != nil {
			return admission.Errored(http.StatusBadRequest, err)
		}
		if mutate {
			decision = h.ingress.Mutate(ctx, &ingress)
		} else {
			decision = h.ingress.Validate(ctx, &ingress)
		}
	case "Gateway":
		var gateway gatewayv1.Gateway
		if err := h.decoder.Decode(req, &gateway); err != nil {
			return admission.Errored(http.StatusBadRequest, err)
		}
		if mutate {
			decision = h.gateway.Mutate(ctx, &gateway)
		} else {
			decision = h.gateway.Validate(ctx, &gateway)
		}
	case "HTTPRoute":
		var route gatewayv1.HTTPRoute
		if err := h.decoder.Decode(req, &route); err != nil {
			return admission.Errored(http.StatusBadRequest, err)
		}
		if mutate {
			decision = h.httpRoute.Mutate(ctx, &route)
		} else {
			decision = h.httpRoute.Validate(ctx, &route)
		}
	default:
		// This webhook is only registered for the three kinds above; being
		// called with anything else is a configuration error, not a decision.
		return admission.Errored(http.StatusInternalServerError,
			fmt.Errorf("unsupported kind %q", req.Kind.Kind))
	}

	log.Info("admission decision computed", "verdict", decision.Verdict)
	return response(req, decision)
}

// response converts an engine decision into the admission response sent back
// to the API server.
func response(req admission.Request, decision policy.Decision) admission.Response {
	switch decision.Verdict {
	case policy.VerdictAllowed, policy.VerdictMoveOn:
		return admission.Allowed("")
	case policy.VerdictDenied:
		return deny(req, decision.Reason.Message())
	case policy.VerdictInvalid:
		return deny(req, decision.Message)
	case policy.VerdictPatched:
		return admission.Response{
			Patches: decision.Patches,
			AdmissionResponse: admissionv1.AdmissionResponse{
				Allowed: true,
			},
		}
	}
	return admission.Errored(http.StatusInternalServerError,
		fmt.Errorf("unhandled decision verdict %d", decision.Verdict))
}

func deny(req admission.Request, message string) admission.Response {
	return admission.Denied(fmt.Sprintf("%s/%s: %s", req.Namespace, req.Name, message))
}
