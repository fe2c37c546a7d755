package services

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clearlens/governance-backend/internal/domain"
	"github.com/clearlens/governance-backend/internal/platform/apierr"
	"github.com/clearlens/governance-backend/internal/platform/dbctx"
	"github.com/clearlens/governance-backend/internal/repos"
)

func newCardFixture(tb testing.TB) (ModelCardService, *gorm.DB) {
	tb.Helper()
	gdb := newTestDB(tb)
	log := testLogger()
	svc := NewModelCardService(gdb, log, repos.NewModelCardRepo(gdb, log), repos.NewAuditLogRepo(gdb, log))
	return svc, gdb
}

func createCard(tb testing.TB, svc ModelCardService, dbc dbctx.Context) *domain.ModelCard {
	tb.Helper()
	card, err := svc.Create(dbc, CreateModelCardInput{
		Name:      "credit scorer",
		ModelType: "classification",
		RiskLevel: "high",
	})
	if err != nil {
		tb.Fatalf("Create: %v", err)
	}
	return card
}

func TestModelCardCreateDefaults(t *testing.T) {
	svc, _ := newCardFixture(t)
	dbc := testDBC(uuid.New(), uuid.Nil)

	card := createCard(t, svc, dbc)
	if card.Status != "draft" {
		t.Fatalf("status: want=draft got=%s", card.Status)
	}

	entries, total, err := svc.AuditLog(dbc, card.ID, 0, 10)
	if err != nil {
		t.Fatalf("AuditLog: %v", err)
	}
	if total != 1 || len(entries) != 1 {
		t.Fatalf("audit entries after create: want=1 got=%d", total)
	}
	if entries[0].Action != "model_card.created" {
		t.Fatalf("audit action: want=model_card.created got=%s", entries[0].Action)
	}
}

func TestModelCardUpdateRejectsUnknownField(t *testing.T) {
	svc, _ := newCardFixture(t)
	dbc := testDBC(uuid.New(), uuid.Nil)
	card := createCard(t, svc, dbc)

	_, err := svc.Update(dbc, card.ID, map[string]any{"owner_user_id": uuid.New().String()})
	if code := apierr.CodeOf(err); code != "unknown_field" {
		t.Fatalf("code: want=unknown_field got=%q err=%v", code, err)
	}

	updated, err := svc.Update(dbc, card.ID, map[string]any{"description": "scores retail credit"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Description != "scores retail credit" {
		t.Fatalf("description: got=%q", updated.Description)
	}

	_, total, err := svc.AuditLog(dbc, card.ID, 0, 10)
	if err != nil {
		t.Fatalf("AuditLog: %v", err)
	}
	if total != 2 {
		t.Fatalf("audit entries after update: want=2 got=%d", total)
	}
}

func TestModelVersionCurrentInvariant(t *testing.T) {
	svc, _ := newCardFixture(t)
	dbc := testDBC(uuid.New(), uuid.Nil)
	card := createCard(t, svc, dbc)

	v1, err := svc.CreateVersion(dbc, card.ID, CreateModelVersionInput{Version: "1.0.0", MakeCurrent: true})
	if err != nil {
		t.Fatalf("CreateVersion 1.0.0: %v", err)
	}
	v2, err := svc.CreateVersion(dbc, card.ID, CreateModelVersionInput{Version: "1.1.0", MakeCurrent: true})
	if err != nil {
		t.Fatalf("CreateVersion 1.1.0: %v", err)
	}
	v3, err := svc.CreateVersion(dbc, card.ID, CreateModelVersionInput{Version: "2.0.0-rc1"})
	if err != nil {
		t.Fatalf("CreateVersion 2.0.0-rc1: %v", err)
	}

	assertSingleCurrent := func(wantCurrent uuid.UUID) {
		t.Helper()
		versions, err := svc.ListVersions(dbc, card.ID)
		if err != nil {
			t.Fatalf("ListVersions: %v", err)
		}
		current := 0
		for _, v := range versions {
			if v.IsCurrent {
				current++
				if v.ID != wantCurrent {
					t.Fatalf("current version: want=%s got=%s", wantCurrent, v.ID)
				}
			}
		}
		if current != 1 {
			t.Fatalf("current count: want=1 got=%d", current)
		}
	}

	assertSingleCurrent(v2.ID)

	if _, err := svc.SetCurrentVersion(dbc, card.ID, v3.ID); err != nil {
		t.Fatalf("SetCurrentVersion: %v", err)
	}
	assertSingleCurrent(v3.ID)

	if _, err := svc.SetCurrentVersion(dbc, card.ID, v1.ID); err != nil {
		t.Fatalf("SetCurrentVersion back: %v", err)
	}
	assertSingleCurrent(v1.ID)
}

func TestSetCurrentVersionRejectsForeignVersion(t *testing.T) {
	svc, _ := newCardFixture(t)
	dbc := testDBC(uuid.New(), uuid.Nil)
	cardA := createCard(t, svc, dbc)

	cardB, err := svc.Create(dbc, CreateModelCardInput{Name: "churn model"})
	if err != nil {
		t.Fatalf("Create second card: %v", err)
	}
	foreign, err := svc.CreateVersion(dbc, cardB.ID, CreateModelVersionInput{Version: "1.0.0"})
	if err != nil {
		t.Fatalf("CreateVersion: %v", err)
	}

	_, err = svc.SetCurrentVersion(dbc, cardA.ID, foreign.ID)
	if err == nil {
		t.Fatal("expected error for version of another card")
	}
	if !apierr.IsKind(err, apierr.KindValidation) && !apierr.IsKind(err, apierr.KindNotFound) {
		t.Fatalf("kind: got=%v", apierr.KindOf(err))
	}
}

func TestModelCardDeleteKeepsAuditTrail(t *testing.T) {
	svc, _ := newCardFixture(t)
	dbc := testDBC(uuid.New(), uuid.Nil)
	card := createCard(t, svc, dbc)

	if err := svc.Delete(dbc, card.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(dbc, card.ID); !apierr.IsKind(err, apierr.KindNotFound) {
		t.Fatalf("Get after delete: want=not_found got=%v", err)
	}

	entries, total, err := svc.AuditLog(dbc, card.ID, 0, 10)
	if err != nil {
		t.Fatalf("AuditLog after delete: %v", err)
	}
	if total != 2 {
		t.Fatalf("audit entries: want=2 got=%d", total)
	}
	last := entries[0]
	if last.Action != "model_card.deleted" && entries[len(entries)-1].Action != "model_card.deleted" {
		t.Fatalf("missing model_card.deleted entry: got=%v", entries)
	}
}

func TestModelCardAccessScopedByOrganization(t *testing.T) {
	svc, _ := newCardFixture(t)
	org := uuid.New()
	dbc := testDBC(uuid.New(), org)
	card := createCard(t, svc, dbc)

	// A colleague in the same organization can read it.
	if _, err := svc.Get(testDBC(uuid.New(), org), card.ID); err != nil {
		t.Fatalf("same-org Get: %v", err)
	}
	// A stranger in another organization cannot.
	if _, err := svc.Get(testDBC(uuid.New(), uuid.New()), card.ID); !apierr.IsKind(err, apierr.KindAccessDenied) {
		t.Fatalf("cross-org Get: want=access_denied got=%v", err)
	}
}
