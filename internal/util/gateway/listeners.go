package gateway

import (
	gatewayv1 "sigs.k8s.io/gateway-api/apis/v1"
)

const (
	DefaultHTTPSPort = 443

	// TraefikHTTPSPort is the HTTPS entrypoint Traefik exposes by default when
	// running unprivileged.
	TraefikHTTPSPort = 8443

	TraefikGatewayClassName = "traefik"
)

// HTTPSPortFor picks the HTTPS port to program on a Gateway of the given
// class.
func HTTPSPortFor(gatewayClassName gatewayv1.ObjectName) gatewayv1.PortNumber {
	if string(gatewayClassName) == TraefikGatewayClassName {
		return TraefikHTTPSPort
	}
	return DefaultHTTPSPort
}

// GetListenerByName returns a pointer into listeners, or nil when no listener
// carries the name.
func GetListenerByName(listeners []gatewayv1.Listener, name gatewayv1.SectionName) *gatewayv1.Listener {
	for i, l := range listeners {
		if l.Name == name {
			return &listeners[i]
		}
	}
	return nil
}

// HasListenerWithProtocol reports whether any listener speaks the protocol.
func HasListenerWithProtocol(listeners []gatewayv1.Listener, protocol gatewayv1.ProtocolType) bool {
	for _, l := range listeners {
		if l.Protocol == protocol {
			return true
		}
	}
	return false
}
