package signatures

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// GenerateKeypair creates a new RSA keypair for a local identity.
func GenerateKeypair() (*rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("failed to generate rsa key: %w", err)
	}

	return key, nil
}

// EncodePublicKeyPEM serializes an RSA public key to PKIX PEM, the format
// actors publish in their `publicKeyPem` field.
func EncodePublicKeyPEM(key *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %w", err)
	}

	block := &pem.Block{Type: "PUBLIC KEY", Bytes: der}

	return string(pem.EncodeToMemory(block)), nil
}

// EncodePrivateKeyPEM serializes an RSA private key to PKCS#8 PEM.
func EncodePrivateKeyPEM(key *rsa.PrivateKey) (string, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return "", fmt.Errorf("failed to marshal private key: %w", err)
	}

	block := &pem.Block{Type: "PRIVATE KEY", Bytes: der}

	return string(pem.EncodeToMemory(block)), nil
}

// DecodePublicKeyPEM parses a PEM-encoded RSA public key. Both PKIX and
// PKCS#1 encodings are seen in the wild.
func DecodePublicKeyPEM(data string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(data))
	if block == nil {
		return nil, fmt.Errorf("%w: no pem block in public key", ErrVerificationFormat)
	}

	if key, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: public key is not rsa", ErrVerificationFormat)
		}

		return rsaKey, nil
	}

	key, err := x509.ParsePKCS1PublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: unparseable public key: %v", ErrVerificationFormat, err)
	}

	return key, nil
}

// DecodePrivateKeyPEM parses a PEM-encoded RSA private key (PKCS#8 or PKCS#1).
func DecodePrivateKeyPEM(data string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(data))
	if block == nil {
		return nil, fmt.Errorf("no pem block in private key")
	}

	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("private key is not rsa")
		}

		return rsaKey, nil
	}

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("unparseable private key: %w", err)
	}

	return key, nil
}
