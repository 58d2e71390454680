// SPDX-License-Identifier: AGPL-3.0-only

package webhook

import (
	"k8s.io/apimachinery/pkg/runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/webhook"
	"sigs.k8s.io/controller-runtime/pkg/webhook/admission"

	"go.magiclouds.cn/ingress-tls-webhook/internal/config"
	"go.magiclouds.cn/ingress-tls-webhook/internal/policy"
)

// Register wires the validating and mutating endpoints onto the webhook
// server. Both share one handler per kind; the reader performs live reads of
// cluster state during Gateway and HTTPRoute admission.
func Register(server webhook.Server, reader client.Reader, scheme *runtime.Scheme, cfg config.IngressTLSWebhook) {
	handler := resourceHandler{
		decoder:   admission.NewDecoder(scheme),
		ingress:   &policy.IngressPolicy{Config: cfg},
		gateway:   &policy.GatewayPolicy{Client: reader, Config: cfg},
		httpRoute: &policy.HTTPRoutePolicy{Client: reader},
	}

	server.Register("/validate", &admission.Webhook{Handler: &Validator{handler}})
	server.Register("/mutate", &admission.Webhook{Handler: &Mutator{handler}})
}
