// Package storage implements the on-device dashboard store: link and
// category CRUD, click recording, persisted sync metadata, and the
// apply side of cloud synchronization.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atinyakov/LinkKeeper/internal/models"
	"github.com/atinyakov/LinkKeeper/internal/secure"
)

// state is the persisted document. Field names match the sync payload
// so a local file is readable next to a cloud document.
type state struct {
	Links         []models.Link         `json:"links"`
	Categories    []models.Category     `json:"categories"`
	Countdowns    []models.Countdown    `json:"countdowns,omitempty"`
	SearchConfig  *models.SearchConfig  `json:"searchConfig,omitempty"`
	AIConfig      *models.AIConfig      `json:"aiConfig,omitempty"`
	SiteSettings  *models.SiteSettings  `json:"siteSettings,omitempty"`
	PrivateVault  *string               `json:"privateVault,omitempty"`
	PrivacyConfig *models.PrivacyConfig `json:"privacyConfig,omitempty"`
	ThemeMode     string                `json:"themeMode,omitempty"`
	FaviconCache  *models.FaviconCache  `json:"customFaviconCache,omitempty"`
	DeviceID      string                `json:"deviceId"`
	Meta          *models.SyncMeta      `json:"meta,omitempty"`
}

// Store is the local persistent dashboard store. It satisfies the sync
// engine's LocalState contract.
type Store struct {
	mu         sync.Mutex
	path       string
	log        *zap.Logger
	passphrase string
	state      state
}

// Open loads the store from path, initializing an empty dashboard with
// a fresh device id on first run.
func Open(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{path: path, log: log}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		s.state = state{
			Links:      []models.Link{},
			Categories: []models.Category{},
			DeviceID:   uuid.NewString(),
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}
	if err := json.Unmarshal(raw, &s.state); err != nil {
		return nil, fmt.Errorf("decode store: %w", err)
	}
	if s.state.Links == nil {
		s.state.Links = []models.Link{}
	}
	if s.state.Categories == nil {
		s.state.Categories = []models.Category{}
	}
	if s.state.DeviceID == "" {
		s.state.DeviceID = uuid.NewString()
	}
	return s, nil
}

// Save writes the store to disk.
func (s *Store) Save() error {
	s.mu.Lock()
	raw, err := json.MarshalIndent(&s.state, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0600); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	return nil
}

// SetPassphrase records the sync passphrase used to decrypt the
// sensitive field of applied cloud documents.
func (s *Store) SetPassphrase(passphrase string) {
	s.mu.Lock()
	s.passphrase = passphrase
	s.mu.Unlock()
}

// DeviceID returns the stable identifier of this device.
func (s *Store) DeviceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.DeviceID
}

// AddLink appends a link, assigning an id when absent.
func (s *Store) AddLink(l models.Link) models.Link {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	s.state.Links = append(s.state.Links, l)
	return l
}

// UpdateLink replaces the link with the same id. It reports whether the
// link was found.
func (s *Store) UpdateLink(l models.Link) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.state.Links {
		if s.state.Links[i].ID == l.ID {
			s.state.Links[i] = l
			return true
		}
	}
	return false
}

// DeleteLink removes a link by id.
func (s *Store) DeleteLink(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.state.Links {
		if s.state.Links[i].ID == id {
			s.state.Links = append(s.state.Links[:i], s.state.Links[i+1:]...)
			return true
		}
	}
	return false
}

// RecordClick bumps the admin click counter and timestamp of a link.
// This is telemetry: the sync engine batches it separately from edits.
func (s *Store) RecordClick(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.state.Links {
		if s.state.Links[i].ID == id {
			s.state.Links[i].AdminClicks++
			s.state.Links[i].AdminLastClickedAt = time.Now().UnixMilli()
			return true
		}
	}
	return false
}

// AddCategory appends a category, assigning an id when absent.
func (s *Store) AddCategory(c models.Category) models.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	s.state.Categories = append(s.state.Categories, c)
	return c
}

// DeleteCategory removes a category by id. Links keep their category
// reference; the UI treats a dangling reference as uncategorized.
func (s *Store) DeleteCategory(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.state.Categories {
		if s.state.Categories[i].ID == id {
			s.state.Categories = append(s.state.Categories[:i], s.state.Categories[i+1:]...)
			return true
		}
	}
	return false
}

// SetAIConfig replaces the AI assistant configuration.
func (s *Store) SetAIConfig(c *models.AIConfig) {
	s.mu.Lock()
	s.state.AIConfig = c
	s.mu.Unlock()
}

// SetSiteSettings replaces the general settings.
func (s *Store) SetSiteSettings(c *models.SiteSettings) {
	s.mu.Lock()
	s.state.SiteSettings = c
	s.mu.Unlock()
}

// SetThemeMode sets the theme.
func (s *Store) SetThemeMode(mode string) {
	s.mu.Lock()
	s.state.ThemeMode = mode
	s.mu.Unlock()
}

// GetLocalSyncMeta returns a copy of the stored sync metadata, or nil
// when this device has never synced.
func (s *Store) GetLocalSyncMeta() *models.SyncMeta {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Meta == nil {
		return nil
	}
	meta := *s.state.Meta
	return &meta
}

// SetSyncMeta records server-assigned sync metadata after a successful
// push or apply.
func (s *Store) SetSyncMeta(meta models.SyncMeta) {
	s.mu.Lock()
	s.state.Meta = &meta
	s.mu.Unlock()
	if err := s.Save(); err != nil {
		s.log.Warn("persist sync meta failed", zap.Error(err))
	}
}

// BuildLocalSyncPayload serializes current state into a sync payload.
// The encrypted sensitive field is never included here; the engine
// attaches it when a push actually fires.
func (s *Store) BuildLocalSyncPayload() *models.SyncPayload {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := &models.SyncPayload{
		Links:      append([]models.Link{}, s.state.Links...),
		Categories: append([]models.Category{}, s.state.Categories...),
		ThemeMode:  s.state.ThemeMode,
	}
	if s.state.Countdowns != nil {
		p.Countdowns = append([]models.Countdown{}, s.state.Countdowns...)
	}
	if s.state.SearchConfig != nil {
		c := *s.state.SearchConfig
		p.SearchConfig = &c
	}
	if s.state.AIConfig != nil {
		c := *s.state.AIConfig
		p.AIConfig = &c
	}
	if s.state.SiteSettings != nil {
		c := *s.state.SiteSettings
		p.SiteSettings = &c
	}
	if s.state.PrivateVault != nil {
		v := *s.state.PrivateVault
		p.PrivateVault = &v
	}
	if s.state.PrivacyConfig != nil {
		c := *s.state.PrivacyConfig
		p.PrivacyConfig = &c
	}
	if s.state.FaviconCache != nil {
		c := models.FaviconCache{
			Entries:   append([]models.FaviconEntry{}, s.state.FaviconCache.Entries...),
			UpdatedAt: s.state.FaviconCache.UpdatedAt,
		}
		p.CustomFaviconCache = &c
	}
	return p
}

// ApplyCloudData writes a remote document into local state. Links and
// categories are always replaced; every optional field is applied only
// when present, so absence leaves the local value untouched. The
// encrypted sensitive field is decrypted with the stored passphrase;
// decryption failure keeps the existing key and is non-fatal.
func (s *Store) ApplyCloudData(doc *models.SyncDocument, role models.Role) {
	if doc == nil || !doc.SyncPayload.Usable() {
		return
	}

	s.mu.Lock()
	s.state.Links = append([]models.Link{}, doc.Links...)
	s.state.Categories = append([]models.Category{}, doc.Categories...)

	if doc.Countdowns != nil {
		s.state.Countdowns = append([]models.Countdown{}, doc.Countdowns...)
	}
	if doc.SearchConfig != nil {
		c := *doc.SearchConfig
		s.state.SearchConfig = &c
	}
	if doc.AIConfig != nil {
		c := *doc.AIConfig
		if c.APIKey == "" && s.state.AIConfig != nil {
			// The plaintext key never syncs; keep the device-local one
			// unless the encrypted blob below replaces it.
			c.APIKey = s.state.AIConfig.APIKey
		}
		s.state.AIConfig = &c
	}
	if doc.SiteSettings != nil {
		c := *doc.SiteSettings
		s.state.SiteSettings = &c
	}
	if doc.PrivateVault != nil {
		v := *doc.PrivateVault
		s.state.PrivateVault = &v
	}
	if doc.PrivacyConfig != nil {
		c := *doc.PrivacyConfig
		s.state.PrivacyConfig = &c
	}
	if doc.ThemeMode != "" {
		s.state.ThemeMode = doc.ThemeMode
	}
	if doc.CustomFaviconCache != nil {
		c := models.FaviconCache{
			Entries:   append([]models.FaviconEntry{}, doc.CustomFaviconCache.Entries...),
			UpdatedAt: doc.CustomFaviconCache.UpdatedAt,
		}
		s.state.FaviconCache = &c
	}

	if doc.EncryptedSensitiveConfig != "" && role == models.RoleAdmin && s.passphrase != "" {
		if key, err := secure.Decrypt(s.passphrase, doc.EncryptedSensitiveConfig); err != nil {
			s.log.Warn("sensitive field decryption failed, keeping local key", zap.Error(err))
		} else {
			if s.state.AIConfig == nil {
				s.state.AIConfig = &models.AIConfig{}
			}
			s.state.AIConfig.APIKey = key
		}
	}

	meta := doc.Meta
	s.state.Meta = &meta
	s.mu.Unlock()

	if err := s.Save(); err != nil {
		s.log.Warn("persist applied cloud data failed", zap.Error(err))
	}
}
