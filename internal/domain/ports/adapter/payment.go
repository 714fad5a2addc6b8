package adapter

// SignatureVerifier authenticates a raw webhook body against the header value.
type SignatureVerifier interface {
	Verify(rawBody []byte, signature string) bool
}
