// Package somfy is a typed client for the local REST API of a Somfy
// TaHoma (Overkiz) gateway.
//
// # Commands
//
// Every API operation is a Command[R]: a small value that knows how to
// build its HTTP request and how to decode the response body into R.
// Execute runs any command and returns the matching type:
//
//	client := somfy.NewGatewayClient("1234-5678-9012", apiKey)
//	devices, err := somfy.Execute[[]somfy.Device](ctx, client, somfy.GetDevicesCommand{})
//
// The Client also has one method per built-in command:
//
//	version, err := client.GetVersion(ctx)
//
// Callers can define their own commands by implementing Command; use
// NewRequest or NewJSONRequest to build the request, EscapeSegment for
// path segments, and DecodeJSON or DecodeList in ParseResponse.
//
// # Trust
//
// The gateway serves a certificate signed by the vendor's private root.
// With DefaultCert the root is downloaded once into ~/.somfy_sdk/cert.crt
// (see package certstore); ProvidedCert uses a file you supply. The
// system trust store is never consulted.
//
// # Errors
//
// Failures are *RequestError values classified by Kind. Match them with
// errors.Is against ErrAuth, ErrNotFound, ErrCert, ErrBody and the other
// sentinels:
//
//	if errors.Is(err, somfy.ErrCert) {
//	    // remove the cached certificate and retry the bootstrap
//	}
//
// # Concurrency
//
// A Client is immutable and safe for concurrent use. Each call builds its
// own HTTP client; there are no retries and no internal timeouts, so
// apply a deadline to ctx when needed.
package somfy
