package signature_test

import (
	"testing"

	"github.com/atinyakov/LinkKeeper/internal/models"
	"github.com/atinyakov/LinkKeeper/internal/signature"
)

func basePayload() *models.SyncPayload {
	return &models.SyncPayload{
		Links: []models.Link{
			{ID: "l1", Title: "Docs", URL: "https://docs.example.com", AdminClicks: 3, AdminLastClickedAt: 1700000000000},
			{ID: "l2", Title: "Mail", URL: "https://mail.example.com"},
		},
		Categories: []models.Category{
			{ID: "c1", Name: "Work"},
		},
		ThemeMode: "dark",
	}
}

func TestBuild_StableForEqualPayloads(t *testing.T) {
	a, err := signature.Build(basePayload())
	if err != nil {
		t.Fatalf("Build error = %v", err)
	}
	b, err := signature.Build(basePayload())
	if err != nil {
		t.Fatalf("Build error = %v", err)
	}
	if a != b {
		t.Fatalf("equal payloads produced different pairs: %+v vs %+v", a, b)
	}
	if a.Business == "" || a.Full == "" {
		t.Fatalf("empty digest in pair %+v", a)
	}
}

func TestBuild_TelemetryOnlyChange(t *testing.T) {
	before, err := signature.Build(basePayload())
	if err != nil {
		t.Fatalf("Build error = %v", err)
	}

	p := basePayload()
	p.Links[0].AdminClicks++
	p.Links[0].AdminLastClickedAt = 1700000099000
	after, err := signature.Build(p)
	if err != nil {
		t.Fatalf("Build error = %v", err)
	}

	if after.Business != before.Business {
		t.Fatalf("click telemetry changed the business digest")
	}
	if after.Full == before.Full {
		t.Fatalf("click telemetry did not change the full digest")
	}
}

func TestBuild_BusinessChangeMovesBothDigests(t *testing.T) {
	before, err := signature.Build(basePayload())
	if err != nil {
		t.Fatalf("Build error = %v", err)
	}

	p := basePayload()
	p.Links[0].Title = "Documentation"
	after, err := signature.Build(p)
	if err != nil {
		t.Fatalf("Build error = %v", err)
	}

	if after.Business == before.Business {
		t.Fatalf("title edit did not change the business digest")
	}
	if after.Full == before.Full {
		t.Fatalf("title edit did not change the full digest")
	}
}

func TestBuild_IgnoresSchemaVersionAndEncryptedBlob(t *testing.T) {
	before, err := signature.Build(basePayload())
	if err != nil {
		t.Fatalf("Build error = %v", err)
	}

	p := basePayload()
	p.SchemaVersion = 4
	p.EncryptedSensitiveConfig = "c2FsdA=="
	after, err := signature.Build(p)
	if err != nil {
		t.Fatalf("Build error = %v", err)
	}

	if after != before {
		t.Fatalf("transport fields perturbed the signature: %+v vs %+v", after, before)
	}
}

func TestBuild_RedactsAPIKey(t *testing.T) {
	a := basePayload()
	a.AIConfig = &models.AIConfig{Provider: "openai", Model: "gpt-4o", APIKey: "sk-live-1"}
	pa, err := signature.Build(a)
	if err != nil {
		t.Fatalf("Build error = %v", err)
	}

	b := basePayload()
	b.AIConfig = &models.AIConfig{Provider: "openai", Model: "gpt-4o", APIKey: "sk-live-2"}
	pb, err := signature.Build(b)
	if err != nil {
		t.Fatalf("Build error = %v", err)
	}

	if pa != pb {
		t.Fatalf("API key leaked into the signature: %+v vs %+v", pa, pb)
	}

	// But the rest of the AI config still counts.
	c := basePayload()
	c.AIConfig = &models.AIConfig{Provider: "openai", Model: "gpt-4.1", APIKey: "sk-live-1"}
	pc, err := signature.Build(c)
	if err != nil {
		t.Fatalf("Build error = %v", err)
	}
	if pc == pa {
		t.Fatalf("model change did not move the signature")
	}
}

func TestBuild_FaviconEntryOrderIrrelevant(t *testing.T) {
	a := basePayload()
	a.CustomFaviconCache = &models.FaviconCache{Entries: []models.FaviconEntry{
		{Hostname: "b.example.com", IconURL: "https://b.example.com/favicon.ico"},
		{Hostname: "a.example.com", IconURL: "https://a.example.com/favicon.ico"},
	}}
	pa, err := signature.Build(a)
	if err != nil {
		t.Fatalf("Build error = %v", err)
	}

	b := basePayload()
	b.CustomFaviconCache = &models.FaviconCache{Entries: []models.FaviconEntry{
		{Hostname: "a.example.com", IconURL: "https://a.example.com/favicon.ico"},
		{Hostname: "b.example.com", IconURL: "https://b.example.com/favicon.ico"},
	}}
	pb, err := signature.Build(b)
	if err != nil {
		t.Fatalf("Build error = %v", err)
	}

	if pa != pb {
		t.Fatalf("favicon entry order perturbed the signature")
	}
}
