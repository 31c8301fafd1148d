// Package security builds the TLS settings of the kalikit HTTP API.
//
//	cfg := security.TLSConfig{
//	    CertFile:     "/etc/kalikit/tls/cert.pem",
//	    KeyFile:      "/etc/kalikit/tls/key.pem",
//	    ClientCAFile: "/etc/kalikit/tls/clients.pem", // optional, enables mTLS
//	}
//	tlsConfig, err := cfg.Build()
package security
