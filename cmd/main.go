package main

import (
	"flag"
	"os"

	// Import all Kubernetes client auth plugins (e.g. Azure, GCP, OIDC, etc.)
	// to ensure that exec-entrypoint and run can make use of them.
	_ "k8s.io/client-go/plugin/pkg/client/auth"

	"golang.org/x/sync/errgroup"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	ctrlwebhook "sigs.k8s.io/controller-runtime/pkg/webhook"
	gatewayv1 "sigs.k8s.io/gateway-api/apis/v1"

	"go.magiclouds.cn/ingress-tls-webhook/internal/config"
	"go.magiclouds.cn/ingress-tls-webhook/internal/webhook"
)

var (
	scheme   = runtime.NewScheme()
	setupLog = ctrl.Log.WithName("setup")
)

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(gatewayv1.Install(scheme))
}

func main() {
	var listenAddress string
	var tlsFolder string
	var tlsCertificateFileName string
	var tlsPrivateKeyFileName string
	var issuer string
	var issuerKind string
	var issuerGroup string
	var traefikMiddleware string

	flag.StringVar(&listenAddress, "listen-address", "0.0.0.0:443",
		"The address the webhook server listens on, in HOST:PORT format.")
	flag.StringVar(&tlsFolder, "tls-folder", "",
		"Folder containing the webhook serving certificate and key. "+
			"Renewals in a Kubernetes secret mount are picked up without a restart.")
	flag.StringVar(&tlsCertificateFileName, "tls-certificate-file-name", "",
		"File name of the serving certificate within the TLS folder.")
	flag.StringVar(&tlsPrivateKeyFileName, "tls-private-key-file-name", "",
		"File name of the serving private key within the TLS folder.")
	flag.StringVar(&issuer, "issuer", "",
		"cert-manager issuer written to mutated objects, in TYPE:VALUE format "+
			"where TYPE is namespaced or clustered. Empty disables cert-manager annotations.")
	flag.StringVar(&issuerKind, "kind", "",
		"Kind of the cert-manager issuer, for external issuers.")
	flag.StringVar(&issuerGroup, "group", "",
		"API group of the cert-manager issuer, for external issuers.")
	flag.StringVar(&traefikMiddleware, "traefik-ingress-redirect-resource-name", "",
		"Traefik Middleware redirecting HTTP to HTTPS, as NAME or NAMESPACE/NAME.")

	opts := zap.Options{
		Development: true,
	}
	opts.BindFlags(flag.CommandLine)
	flag.Parse()

	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))

	host, port, err := config.ParseListenAddress(listenAddress)
	if err != nil {
		setupLog.Error(err, "unable to parse listen address")
		os.Exit(1)
	}

	serverConfig := config.IngressTLSWebhook{
		WebhookServer: config.WebhookServerConfig{
			Host: host,
			Port: port,
			TLS: config.TLSConfig{
				CertDir:  tlsFolder,
				CertName: tlsCertificateFileName,
				KeyName:  tlsPrivateKeyFileName,
			},
		},
		TraefikMiddleware: traefikMiddleware,
	}

	if issuer != "" {
		scope, name, err := config.ParseIssuer(issuer)
		if err != nil {
			setupLog.Error(err, "unable to parse issuer")
			os.Exit(1)
		}
		certManager := &config.CertManagerConfig{Scope: scope}
		certManager.IssuerRef.Name = name
		certManager.IssuerRef.Kind = issuerKind
		certManager.IssuerRef.Group = issuerGroup
		serverConfig.CertManager = certManager
	}

	// Admission decisions need live reads of Gateways, HTTPRoutes and
	// Namespaces; an uncached client avoids serving stale state.
	kubeClient, err := client.New(ctrl.GetConfigOrDie(), client.Options{Scheme: scheme})
	if err != nil {
		setupLog.Error(err, "unable to create kubernetes client")
		os.Exit(1)
	}

	webhookServer := ctrlwebhook.NewServer(serverConfig.WebhookServer.Options())
	webhook.Register(webhookServer, kubeClient, scheme, serverConfig)

	ctx := ctrl.SetupSignalHandler()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		setupLog.Info("starting webhook server", "host", host, "port", port)
		return webhookServer.Start(ctx)
	})

	if err := g.Wait(); err != nil {
		setupLog.Error(err, "problem running webhook server")
		os.Exit(1)
	}
}
