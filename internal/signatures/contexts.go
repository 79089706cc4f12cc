package signatures

import (
	"encoding/json"
	"fmt"

	"github.com/piprate/json-gold/ld"
)

// Canonicalization must never hit the network: remote peers control which
// context IRIs appear in their documents. The loader below serves a fixed
// set of embedded contexts and rejects everything else.
//
// The ActivityStreams context is reduced to a vocabulary mapping so every
// term in an activity document lands in the AS namespace and participates in
// canonicalization; dropped terms would silently fall out of the signature.
var embeddedContexts = map[string]string{
	"https://www.w3.org/ns/activitystreams": `{
		"@context": {
			"@vocab": "https://www.w3.org/ns/activitystreams#",
			"xsd": "http://www.w3.org/2001/XMLSchema#",
			"id": "@id",
			"type": "@type",
			"actor": {"@id": "https://www.w3.org/ns/activitystreams#actor", "@type": "@id"},
			"object": {"@id": "https://www.w3.org/ns/activitystreams#object", "@type": "@id"},
			"published": {"@id": "https://www.w3.org/ns/activitystreams#published", "@type": "xsd:dateTime"}
		}
	}`,
	"https://w3id.org/identity/v1": `{
		"@context": {
			"@vocab": "https://w3id.org/identity#",
			"xsd": "http://www.w3.org/2001/XMLSchema#",
			"dc": "http://purl.org/dc/terms/",
			"sec": "https://w3id.org/security#",
			"id": "@id",
			"type": "@type",
			"creator": {"@id": "dc:creator", "@type": "@id"},
			"created": {"@id": "dc:created", "@type": "xsd:dateTime"},
			"signature": "sec:signature",
			"signatureValue": "sec:signatureValue"
		}
	}`,
	"https://w3id.org/security/v1": `{
		"@context": {
			"@vocab": "https://w3id.org/security#",
			"xsd": "http://www.w3.org/2001/XMLSchema#",
			"dc": "http://purl.org/dc/terms/",
			"id": "@id",
			"type": "@type",
			"creator": {"@id": "dc:creator", "@type": "@id"},
			"created": {"@id": "dc:created", "@type": "xsd:dateTime"},
			"publicKey": {"@id": "https://w3id.org/security#publicKey", "@type": "@id"},
			"publicKeyPem": "https://w3id.org/security#publicKeyPem",
			"signature": "https://w3id.org/security#signature",
			"signatureValue": "https://w3id.org/security#signatureValue"
		}
	}`,
	"http://litepub.social/ns": `{
		"@context": {
			"@vocab": "http://litepub.social/ns#",
			"id": "@id",
			"type": "@type"
		}
	}`,
}

type embeddedDocumentLoader struct{}

func (embeddedDocumentLoader) LoadDocument(u string) (*ld.RemoteDocument, error) {
	raw, ok := embeddedContexts[u]
	if !ok {
		return nil, ld.NewJsonLdError(
			ld.LoadingDocumentFailed,
			fmt.Sprintf("refusing to load remote context %q", u),
		)
	}

	var document any
	if err := json.Unmarshal([]byte(raw), &document); err != nil {
		return nil, ld.NewJsonLdError(ld.LoadingDocumentFailed, err)
	}

	return &ld.RemoteDocument{DocumentURL: u, Document: document}, nil
}

// normalize canonicalizes a JSON-LD document to N-Quads via URDNA2015.
func normalize(document map[string]any) (string, error) {
	processor := ld.NewJsonLdProcessor()
	options := ld.NewJsonLdOptions("")
	options.Format = "application/n-quads"
	options.Algorithm = ld.AlgorithmURDNA2015
	options.DocumentLoader = embeddedDocumentLoader{}

	normalized, err := processor.Normalize(document, options)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNormalization, err)
	}

	quads, ok := normalized.(string)
	if !ok {
		return "", fmt.Errorf("%w: unexpected normalization result %T", ErrNormalization, normalized)
	}

	return quads, nil
}
