package app

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"

	"github.com/go-kit/kit/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/Aussie-Nomad/MacForge-sub002/builder"
	"github.com/Aussie-Nomad/MacForge-sub002/version"
)

func makeHTTPHandler(logger log.Logger, sm *serviceManager) http.Handler {
	httpLogger := log.With(logger, "component", "http")

	builderHandler := builder.ServiceHandler(sm.BuilderService, httpLogger)

	var handler http.Handler
	mux := http.NewServeMux()
	mux.Handle("/v1/", builderHandler)
	mux.Handle("/_metrics", promhttp.Handler())
	mux.Handle("/_version", version.Handler())
	handler = mux

	if len(sm.Server.CORSOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins:   sm.Server.CORSOrigins,
			AllowCredentials: true,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE"},
		}).Handler(mux)
	}

	return handler
}

func serveHTTP(logger log.Logger, h http.Handler, tlsEnabled bool, httpAddr, keyPath, certPath string) error {
	if tlsEnabled {
		if err := verifyTLSCerts(certPath, keyPath); err != nil {
			return err
		}

		logger.Log("msg", "serving https", "addr", httpAddr)
		return http.ListenAndServeTLS(httpAddr, certPath, keyPath, h)
	} else {
		logger.Log("msg", "serving http", "addr", httpAddr)
		return http.ListenAndServe(httpAddr, h)
	}
}

func verifyTLSCerts(certPath, keyPath string) error {
	chain, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return fmt.Errorf("serve: failed to load TLS cert or private key: %s", err)
	}

	cert, err := x509.ParseCertificate(chain.Certificate[0]) // Leaf is always the first entry
	if err != nil {
		return fmt.Errorf("server: error parsing TLS certificate: %s", err)
	}

	if _, err := cert.Verify(x509.VerifyOptions{}); err != nil {
		switch e := err.(type) {
		case x509.CertificateInvalidError:
			switch e.Reason {
			case x509.Expired:
				return fmt.Errorf("server certificate has expired: %s", err)
			default:
				return err
			}
		}
	}
	return nil
}
