package signature

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/atinyakov/LinkKeeper/internal/models"
)

// Fields excluded from both digests. The encrypted blob changes with
// every re-encryption and the schema version is transport plumbing;
// neither is a user-visible change.
const (
	fieldSchemaVersion   = "schemaVersion"
	fieldEncryptedConfig = "encryptedSensitiveConfig"
)

// Per-link telemetry fields excluded from the business digest only.
var telemetryFields = []string{"adminClicks", "adminLastClickedAt"}

// Build computes the business and full digests of a payload.
//
// Both digests strip the schema version and the encrypted sensitive
// blob, sort favicon cache entries by hostname, and redact the AI API
// key to empty, so the key can never perturb or appear in a signature.
// The business digest additionally strips per-link click telemetry.
func Build(p *models.SyncPayload) (models.SignaturePair, error) {
	m, err := payloadMap(p)
	if err != nil {
		return models.SignaturePair{}, err
	}
	normalize(m)

	full, err := digest(m)
	if err != nil {
		return models.SignaturePair{}, err
	}

	stripTelemetry(m)
	business, err := digest(m)
	if err != nil {
		return models.SignaturePair{}, err
	}

	return models.SignaturePair{Business: business, Full: full}, nil
}

// payloadMap converts the payload to its generic JSON form so the
// normalization below matches what actually travels on the wire.
func payloadMap(p *models.SyncPayload) (map[string]any, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("signature: encode payload: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("signature: decode payload: %w", err)
	}
	return m, nil
}

// normalize applies the digest-neutral transformations shared by the
// business and full signatures.
func normalize(m map[string]any) {
	delete(m, fieldSchemaVersion)
	delete(m, fieldEncryptedConfig)

	if ai, ok := m["aiConfig"].(map[string]any); ok {
		ai["apiKey"] = ""
	}

	if cache, ok := m["customFaviconCache"].(map[string]any); ok {
		if entries, ok := cache["entries"].([]any); ok {
			sort.SliceStable(entries, func(i, j int) bool {
				return faviconHostname(entries[i]) < faviconHostname(entries[j])
			})
		}
	}
}

func faviconHostname(entry any) string {
	m, ok := entry.(map[string]any)
	if !ok {
		return ""
	}
	host, _ := m["hostname"].(string)
	return host
}

// stripTelemetry removes per-link click counters and timestamps.
func stripTelemetry(m map[string]any) {
	links, ok := m["links"].([]any)
	if !ok {
		return
	}
	for _, l := range links {
		link, ok := l.(map[string]any)
		if !ok {
			continue
		}
		for _, f := range telemetryFields {
			delete(link, f)
		}
	}
}

// digest canonicalizes v and hashes the result.
func digest(v any) (string, error) {
	s, err := Canonicalize(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:]), nil
}
