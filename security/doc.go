// Package security builds the TLS configuration of the HTTP server.
//
// Setting a certificate and key serves HTTPS. Setting a client CA as well
// requires clients to present a certificate signed by it.
//
//	http:
//	  tls:
//	    cert_file: /etc/smokedb/tls.crt
//	    key_file: /etc/smokedb/tls.key
//	    client_ca_file: /etc/smokedb/clients.crt
package security
