// SPDX-License-Identifier: AGPL-3.0-only

package policy

import (
	"encoding/json"
	"testing"

	jsonpatchapply "github.com/evanphx/json-patch/v5"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
	gatewayv1 "sigs.k8s.io/gateway-api/apis/v1"
)

func newTestScheme(t *testing.T) *runtime.Scheme {
	t.Helper()
	testScheme := runtime.NewScheme()
	require.NoError(t, scheme.AddToScheme(testScheme))
	require.NoError(t, gatewayv1.Install(testScheme))
	return testScheme
}

func newFakeReader(t *testing.T, objects ...client.Object) client.Reader {
	t.Helper()
	return fake.NewClientBuilder().
		WithScheme(newTestScheme(t)).
		WithObjects(objects...).
		Build()
}

func newIngress(namespace, name string, mutators ...func(*networkingv1.Ingress)) *networkingv1.Ingress {
	ingress := &networkingv1.Ingress{
		ObjectMeta: metav1.ObjectMeta{
			Namespace: namespace,
			Name:      name,
		},
		Spec: networkingv1.IngressSpec{
			IngressClassName: ptr.To("traefik"),
			Rules: []networkingv1.IngressRule{
				{Host: "app.example.com"},
			},
		},
	}
	for _, mutate := range mutators {
		mutate(ingress)
	}
	return ingress
}

func annotate(key, value string) func(*networkingv1.Ingress) {
	return func(ingress *networkingv1.Ingress) {
		if ingress.Annotations == nil {
			ingress.Annotations = map[string]string{}
		}
		ingress.Annotations[key] = value
	}
}

func newGateway(namespace, name string, mutators ...func(*gatewayv1.Gateway)) *gatewayv1.Gateway {
	gateway := &gatewayv1.Gateway{
		ObjectMeta: metav1.ObjectMeta{
			Namespace: namespace,
			Name:      name,
		},
		Spec: gatewayv1.GatewaySpec{
			GatewayClassName: "traefik",
			Listeners: []gatewayv1.Listener{
				{
					Name:     "web",
					Port:     80,
					Protocol: gatewayv1.HTTPProtocolType,
					Hostname: ptr.To(gatewayv1.Hostname("app.example.com")),
				},
			},
		},
	}
	for _, mutate := range mutators {
		mutate(gateway)
	}
	return gateway
}

func newHTTPRoute(namespace, name string, mutators ...func(*gatewayv1.HTTPRoute)) *gatewayv1.HTTPRoute {
	route := &gatewayv1.HTTPRoute{
		ObjectMeta: metav1.ObjectMeta{
			Namespace: namespace,
			Name:      name,
		},
	}
	for _, mutate := range mutators {
		mutate(route)
	}
	return route
}

func newNamespace(name string, labels map[string]string) *corev1.Namespace {
	return &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{
			Name:   name,
			Labels: labels,
		},
	}
}

// backendRule is a minimal rule that forwards traffic, i.e. anything but a
// redirect.
func backendRule() gatewayv1.HTTPRouteRule {
	return gatewayv1.HTTPRouteRule{
		BackendRefs: []gatewayv1.HTTPBackendRef{
			{
				BackendRef: gatewayv1.BackendRef{
					BackendObjectReference: gatewayv1.BackendObjectReference{
						Name: "app",
						Port: ptr.To(gatewayv1.PortNumber(8080)),
					},
				},
			},
		},
	}
}

func gatewayParentRef(namespace, name string, mutators ...func(*gatewayv1.ParentReference)) gatewayv1.ParentReference {
	ref := gatewayv1.ParentReference{
		Kind: ptr.To(gatewayv1.Kind("Gateway")),
		Name: gatewayv1.ObjectName(name),
	}
	if namespace != "" {
		ref.Namespace = ptr.To(gatewayv1.Namespace(namespace))
	}
	for _, mutate := range mutators {
		mutate(&ref)
	}
	return ref
}

// applyPatches round-trips source through the decision's JSON Patch into out,
// so tests exercise the patch exactly the way the API server will.
func applyPatches(t *testing.T, decision Decision, source, out any) {
	t.Helper()
	require.Equal(t, VerdictPatched, decision.Verdict)

	patchJSON, err := json.Marshal(decision.Patches)
	require.NoError(t, err)
	patch, err := jsonpatchapply.DecodePatch(patchJSON)
	require.NoError(t, err)

	sourceJSON, err := json.Marshal(source)
	require.NoError(t, err)
	patchedJSON, err := patch.Apply(sourceJSON)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(patchedJSON, out))
}
