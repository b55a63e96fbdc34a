// Package models defines the core data structures for the bookmark
// dashboard and its cloud synchronization protocol.
package models

// Role identifies the capability level of the current session.
type Role string

const (
	// RoleAdmin may push local changes to the cloud and resolve conflicts.
	RoleAdmin Role = "admin"
	// RoleUser receives cloud data read-only and never pushes.
	RoleUser Role = "user"
)

// AuthStatus is the result of refreshing sync authentication.
type AuthStatus struct {
	// Role is the capability level granted to this session.
	Role Role `json:"role"`
	// Protected reports whether the remote document is passphrase protected.
	Protected bool `json:"protected"`
}

// Link is a single bookmark card on the dashboard.
type Link struct {
	// ID is the unique identifier of the link.
	ID string `json:"id"`
	// Title is the display name shown on the card.
	Title string `json:"title"`
	// URL is the bookmark target.
	URL string `json:"url"`
	// Icon is an optional icon reference (emoji, URL or favicon key).
	Icon string `json:"icon,omitempty"`
	// CategoryID assigns the link to a category.
	CategoryID string `json:"categoryId,omitempty"`
	// Order is the manual sort position inside its category.
	Order int `json:"order,omitempty"`
	// Private hides the link unless the privacy vault is unlocked.
	Private bool `json:"private,omitempty"`
	// AdminClicks counts clicks made by the admin. Telemetry only:
	// excluded from the business signature.
	AdminClicks int `json:"adminClicks,omitempty"`
	// AdminLastClickedAt is the unix-millisecond timestamp of the last
	// admin click. Telemetry only.
	AdminLastClickedAt int64 `json:"adminLastClickedAt,omitempty"`
}

// Category groups links on the dashboard.
type Category struct {
	// ID is the unique identifier of the category.
	ID string `json:"id"`
	// Name is the display name.
	Name string `json:"name"`
	// Icon is an optional icon reference.
	Icon string `json:"icon,omitempty"`
	// Order is the manual sort position.
	Order int `json:"order,omitempty"`
}

// Countdown is a dashboard countdown widget.
type Countdown struct {
	// ID is the unique identifier of the countdown.
	ID string `json:"id"`
	// Title is the display name.
	Title string `json:"title"`
	// Target is the unix-millisecond timestamp counted down to.
	Target int64 `json:"target"`
}

// SearchConfig holds the search-bar configuration.
type SearchConfig struct {
	// DefaultEngine names the engine used when none is selected.
	DefaultEngine string `json:"defaultEngine,omitempty"`
	// Engines lists the enabled engine identifiers.
	Engines []string `json:"engines,omitempty"`
	// OpenInNewTab controls link target behavior.
	OpenInNewTab bool `json:"openInNewTab,omitempty"`
}

// AIConfig holds the AI assistant configuration.
//
// APIKey is a device-local secret: it never syncs in plaintext and is
// redacted to empty before any change signature is computed. Its
// encrypted form travels in SyncPayload.EncryptedSensitiveConfig.
type AIConfig struct {
	// Provider names the AI backend.
	Provider string `json:"provider,omitempty"`
	// Model names the model to use.
	Model string `json:"model,omitempty"`
	// BaseURL overrides the provider endpoint.
	BaseURL string `json:"baseUrl,omitempty"`
	// APIKey is the plaintext provider credential.
	APIKey string `json:"apiKey,omitempty"`
}

// SiteSettings holds general appearance and behavior settings.
type SiteSettings struct {
	// Title is the dashboard page title.
	Title string `json:"title,omitempty"`
	// Subtitle is shown under the title.
	Subtitle string `json:"subtitle,omitempty"`
	// Background is a background image reference.
	Background string `json:"background,omitempty"`
	// ShowClock toggles the clock widget.
	ShowClock bool `json:"showClock,omitempty"`
}

// PrivacyConfig controls the privacy vault behavior.
type PrivacyConfig struct {
	// Enabled toggles the vault feature.
	Enabled bool `json:"enabled,omitempty"`
	// AutoLockMinutes locks the vault after inactivity; 0 disables.
	AutoLockMinutes int `json:"autoLockMinutes,omitempty"`
}

// FaviconEntry is one cached favicon keyed by hostname.
type FaviconEntry struct {
	// Hostname is the cache key.
	Hostname string `json:"hostname"`
	// IconURL is the resolved favicon location.
	IconURL string `json:"iconUrl,omitempty"`
	// FetchedAt is the unix-millisecond fetch timestamp.
	FetchedAt int64 `json:"fetchedAt,omitempty"`
}

// FaviconCache is the cross-device favicon cache. Entry order is not
// meaningful; signature computation sorts entries by hostname.
type FaviconCache struct {
	// Entries holds the cached favicons.
	Entries []FaviconEntry `json:"entries"`
	// UpdatedAt is the unix-millisecond timestamp of the last change.
	UpdatedAt int64 `json:"updatedAt,omitempty"`
}

// SyncPayload is the document body exchanged with the cloud.
//
// Every field except Links and Categories is optional. On apply, an
// absent optional field means "leave the local value untouched", never
// "clear it".
type SyncPayload struct {
	Links                    []Link         `json:"links"`
	Categories               []Category     `json:"categories"`
	Countdowns               []Countdown    `json:"countdowns,omitempty"`
	SearchConfig             *SearchConfig  `json:"searchConfig,omitempty"`
	AIConfig                 *AIConfig      `json:"aiConfig,omitempty"`
	SiteSettings             *SiteSettings  `json:"siteSettings,omitempty"`
	PrivateVault             *string        `json:"privateVault,omitempty"`
	PrivacyConfig            *PrivacyConfig `json:"privacyConfig,omitempty"`
	ThemeMode                string         `json:"themeMode,omitempty"`
	EncryptedSensitiveConfig string         `json:"encryptedSensitiveConfig,omitempty"`
	CustomFaviconCache       *FaviconCache  `json:"customFaviconCache,omitempty"`
	SchemaVersion            int            `json:"schemaVersion,omitempty"`
}

// Usable reports whether the payload carries remote data worth applying.
// A document lacking both links and categories is treated as "no remote
// data yet" and ignored.
func (p *SyncPayload) Usable() bool {
	return p != nil && p.Links != nil && p.Categories != nil
}

// SyncMeta is the server-assigned provenance of a SyncDocument.
type SyncMeta struct {
	// UpdatedAt is the unix-millisecond timestamp of the last write.
	UpdatedAt int64 `json:"updatedAt"`
	// DeviceID identifies the device that produced the last write.
	DeviceID string `json:"deviceId"`
	// Version is the server-assigned monotonic document version.
	Version int64 `json:"version"`
}

// SyncDocument is a SyncPayload together with its sync metadata.
type SyncDocument struct {
	SyncPayload
	// Meta carries provenance for conflict display and version checks.
	Meta SyncMeta `json:"meta"`
}

// SignaturePair holds the two change-detection digests of a payload.
// The strings are opaque and meaningful only under equality comparison.
type SignaturePair struct {
	// Business covers user-visible content only.
	Business string
	// Full additionally covers per-link click telemetry.
	Full string
}

// SyncConflict is a two-sided version conflict awaiting user resolution.
// Both sides carry full metadata for provenance display.
type SyncConflict struct {
	// LocalData is the local state captured at conflict-detection time,
	// paired with the stored local meta.
	LocalData SyncDocument `json:"localData"`
	// RemoteData is the pulled cloud document.
	RemoteData SyncDocument `json:"remoteData"`
}

// ConflictChoice selects which side of a SyncConflict wins.
type ConflictChoice string

const (
	// KeepLocal pushes the captured local payload as a forced write.
	KeepLocal ConflictChoice = "local"
	// KeepRemote applies the remote payload locally.
	KeepRemote ConflictChoice = "remote"
)
