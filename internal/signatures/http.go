package signatures

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// signedHeaderSet is the header set this server signs with, in order. Remote
// servers may sign a different set; verification follows whatever the
// Signature header lists.
const signedHeaderSet = "(request-target) host date digest content-type"

// maxDateSkew is the acceptable clock difference between the Date header and
// local time.
const maxDateSkew = 5 * time.Minute

// SignatureDetails is the parsed form of a draft-cavage Signature header.
type SignatureDetails struct {
	KeyID     string
	Algorithm string
	Headers   []string
	Signature []byte
}

// ParseSignatureHeader parses a `keyId=...,headers=...,signature=...`
// Signature header. A missing or malformed part is a format error.
func ParseSignatureHeader(header string) (*SignatureDetails, error) {
	if header == "" {
		return nil, fmt.Errorf("%w: no signature header", ErrVerificationFormat)
	}

	parts := map[string]string{}
	for _, item := range strings.Split(header, ",") {
		name, value, found := strings.Cut(item, "=")
		if !found {
			return nil, fmt.Errorf("%w: unparseable signature part %q", ErrVerificationFormat, item)
		}
		parts[strings.ToLower(strings.TrimSpace(name))] = strings.Trim(value, `"`)
	}

	for _, required := range []string{"keyid", "headers", "signature", "algorithm"} {
		if parts[required] == "" {
			return nil, fmt.Errorf(
				"%w: signature header missing %q parameter",
				ErrVerificationFormat,
				required,
			)
		}
	}

	signature, err := base64.StdEncoding.DecodeString(parts["signature"])
	if err != nil {
		return nil, fmt.Errorf("%w: undecodable signature value: %v", ErrVerificationFormat, err)
	}

	return &SignatureDetails{
		KeyID:     parts["keyid"],
		Algorithm: parts["algorithm"],
		Headers:   strings.Fields(parts["headers"]),
		Signature: signature,
	}, nil
}

// VerifyRequest validates the Digest header against body and the Signature
// header against publicKey, reconstructing the signed string from the header
// names the signature declares. When skipDate is false, a Date header outside
// the allowed skew window fails verification.
func VerifyRequest(r *http.Request, body []byte, publicKey *rsa.PublicKey, skipDate bool) error {
	digest := r.Header.Get("Digest")
	if digest == "" {
		return fmt.Errorf("%w: no digest header", ErrVerificationFormat)
	}
	if digest != digestBody(body) {
		return fmt.Errorf("%w: digest does not match body", ErrVerification)
	}

	details, err := ParseSignatureHeader(r.Header.Get("Signature"))
	if err != nil {
		return err
	}

	if details.Algorithm != "rsa-sha256" {
		return fmt.Errorf("%w: unknown signature algorithm %q", ErrVerification, details.Algorithm)
	}

	if !skipDate {
		date, err := http.ParseTime(r.Header.Get("Date"))
		if err != nil {
			return fmt.Errorf("%w: unparseable date header: %v", ErrVerificationFormat, err)
		}
		if skew := time.Since(date); skew > maxDateSkew || skew < -maxDateSkew {
			return fmt.Errorf("%w: date header is too far from now", ErrVerification)
		}
	}

	signed, err := signedString(r, details.Headers)
	if err != nil {
		return err
	}

	hashed := sha256.Sum256([]byte(signed))
	if err := rsa.VerifyPKCS1v15(publicKey, crypto.SHA256, hashed[:], details.Signature); err != nil {
		return fmt.Errorf("%w: %v", ErrVerification, err)
	}

	return nil
}

// NewSignedRequest builds a POST request for uri carrying body, with Date,
// Digest and Signature headers over the standard header set.
func NewSignedRequest(
	ctx context.Context,
	uri string,
	body []byte,
	privateKey *rsa.PrivateKey,
	keyID string,
) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uri, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/activity+json")
	req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	req.Header.Set("Digest", digestBody(body))

	signed, err := signedString(req, strings.Fields(signedHeaderSet))
	if err != nil {
		return nil, err
	}

	hashed := sha256.Sum256([]byte(signed))
	signature, err := rsa.SignPKCS1v15(rand.Reader, privateKey, crypto.SHA256, hashed[:])
	if err != nil {
		return nil, fmt.Errorf("failed to sign request: %w", err)
	}

	req.Header.Set("Signature", fmt.Sprintf(
		`keyId="%s",headers="%s",signature="%s",algorithm="rsa-sha256"`,
		keyID,
		signedHeaderSet,
		base64.StdEncoding.EncodeToString(signature),
	))

	return req, nil
}

// signedString reconstructs the exact string the signature covers, joining
// the listed headers in order.
func signedString(r *http.Request, headerNames []string) (string, error) {
	lines := make([]string, 0, len(headerNames))
	for _, name := range headerNames {
		var value string
		switch strings.ToLower(name) {
		case "(request-target)":
			value = strings.ToLower(r.Method) + " " + r.URL.Path
		case "host":
			value = r.Host
			if value == "" {
				value = r.URL.Host
			}
		default:
			value = r.Header.Get(name)
		}
		if value == "" {
			return "", fmt.Errorf("%w: signed header %q is absent", ErrVerificationFormat, name)
		}
		lines = append(lines, strings.ToLower(name)+": "+value)
	}

	return strings.Join(lines, "\n"), nil
}

func digestBody(body []byte) string {
	hash := sha256.Sum256(body)

	return "SHA-256=" + base64.StdEncoding.EncodeToString(hash[:])
}
