package signatures

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

const identityContext = "https://w3id.org/identity/v1"

// CreateSignature produces an RsaSignature2017 block for document, signed
// with privateKey. The block is not attached to the document; callers set it
// as document["signature"].
func CreateSignature(
	document map[string]any,
	privateKey *rsa.PrivateKey,
	keyID string,
) (map[string]any, error) {
	options := map[string]any{
		"@context": identityContext,
		"creator":  keyID,
		"created":  time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
	}

	payload, err := signaturePayload(options, document)
	if err != nil {
		return nil, err
	}

	hashed := sha256.Sum256(payload)
	signature, err := rsa.SignPKCS1v15(rand.Reader, privateKey, crypto.SHA256, hashed[:])
	if err != nil {
		return nil, fmt.Errorf("failed to sign document: %w", err)
	}

	return map[string]any{
		"@context":       identityContext,
		"type":           "RsaSignature2017",
		"creator":        options["creator"],
		"created":        options["created"],
		"signatureValue": base64.StdEncoding.EncodeToString(signature),
	}, nil
}

// VerifySignature checks the document's embedded RsaSignature2017 block
// against publicKey. On success the signature stays on the document so it can
// be forwarded; on failure it is removed, leaving the document as if it had
// arrived unsigned.
func VerifySignature(document map[string]any, publicKey *rsa.PublicKey) error {
	raw, ok := document["signature"]
	if !ok {
		return fmt.Errorf("%w: no signature section", ErrVerificationFormat)
	}
	delete(document, "signature")

	section, ok := raw.(map[string]any)
	if !ok {
		return fmt.Errorf("%w: signature section is not an object", ErrVerificationFormat)
	}

	sigType, _ := section["type"].(string)
	if !strings.EqualFold(sigType, "RsaSignature2017") {
		return fmt.Errorf("%w: unknown signature type %q", ErrVerificationFormat, sigType)
	}

	creator, creatorOK := section["creator"].(string)
	created, createdOK := section["created"].(string)
	value, valueOK := section["signatureValue"].(string)
	if !creatorOK || !createdOK || !valueOK {
		return fmt.Errorf("%w: invalid signature section", ErrVerificationFormat)
	}

	signature, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return fmt.Errorf("%w: undecodable signatureValue: %v", ErrVerificationFormat, err)
	}

	options := map[string]any{
		"@context": identityContext,
		"creator":  creator,
		"created":  created,
	}

	payload, err := signaturePayload(options, document)
	if err != nil {
		return err
	}

	hashed := sha256.Sum256(payload)
	if err := rsa.VerifyPKCS1v15(publicKey, crypto.SHA256, hashed[:], signature); err != nil {
		return fmt.Errorf("%w: signature mismatch", ErrVerification)
	}

	document["signature"] = section

	return nil
}

// signaturePayload builds the signed byte string: the hex SHA-256 of the
// canonicalized options concatenated with the hex SHA-256 of the
// canonicalized document.
func signaturePayload(options, document map[string]any) ([]byte, error) {
	optionsHash, err := normalizedHash(options)
	if err != nil {
		return nil, err
	}

	documentHash, err := normalizedHash(document)
	if err != nil {
		return nil, err
	}

	return append(optionsHash, documentHash...), nil
}

func normalizedHash(document map[string]any) ([]byte, error) {
	quads, err := normalize(document)
	if err != nil {
		return nil, err
	}

	hash := sha256.Sum256([]byte(quads))

	return []byte(hex.EncodeToString(hash[:])), nil
}
