package recordstore

import (
	"testing"

	"github.com/starford/tramite/internal/models"
)

func TestUpsert_DuplicateMergesFieldByField(t *testing.T) {
	s := New()
	first := &models.Record{
		ID:      "121/000001",
		Type:    "Proyecto de ley",
		Subject: "Ley de aguas",
		Author:  "Gobierno",
		Related: []string{"121/000002"},
	}
	second := &models.Record{
		ID:      "121/000001",
		Subject: "Ley de aguas continentales",
		Status:  "Comisión",
	}
	if merged := s.Upsert(first); merged {
		t.Fatal("first insert reported merge")
	}
	if merged := s.Upsert(second); !merged {
		t.Fatal("second insert did not report merge")
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}
	got, ok := s.Get("121/000001")
	if !ok {
		t.Fatal("record missing")
	}
	if got.Subject != "Ley de aguas continentales" {
		t.Errorf("Subject = %q, later value should win", got.Subject)
	}
	if got.Author != "Gobierno" || got.Type != "Proyecto de ley" {
		t.Errorf("unprovided fields overwritten: %+v", got)
	}
	if got.Status != "Comisión" {
		t.Errorf("Status = %q", got.Status)
	}
	if len(got.Related) != 1 {
		t.Errorf("Related = %v, empty later list should not clear", got.Related)
	}
}

func TestAll_InsertionOrder(t *testing.T) {
	s := New()
	for _, id := range []string{"c", "a", "b", "a"} {
		s.Upsert(&models.Record{ID: id, Subject: id})
	}
	ids := s.IDs()
	want := []string{"c", "a", "b"}
	if len(ids) != len(want) {
		t.Fatalf("IDs = %v", ids)
	}
	for i := range want {
		if ids[i] != want[i] || s.All()[i].ID != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, ids[i], want[i])
		}
	}
	if !s.Has("b") || s.Has("z") {
		t.Error("Has mismatch")
	}
}
