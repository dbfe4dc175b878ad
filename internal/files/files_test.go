package files

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func TestSaveAndRecent(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	defer db.Close()

	s, err := NewStore(db, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	base := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	s.now = func() time.Time { return base }
	if err := s.Save(ctx, &File{UserID: "u1", TelegramID: "AgAD1", Kind: KindPhoto, Size: 2048, Caption: "sunset"}); err != nil {
		t.Fatal(err)
	}
	s.now = func() time.Time { return base.Add(time.Minute) }
	doc := &File{UserID: "u1", TelegramID: "BQAD2", Kind: KindDocument, Name: "plan.pdf", MimeType: "application/pdf"}
	if err := s.Save(ctx, doc); err != nil {
		t.Fatal(err)
	}
	if doc.ID == "" {
		t.Error("Save did not assign an ID")
	}

	got, err := s.Recent(ctx, "u1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Kind != KindDocument || got[1].Caption != "sunset" {
		t.Errorf("Recent = %+v", got)
	}

	if n, err := s.DeleteForUser(ctx, "u1"); err != nil || n != 2 {
		t.Errorf("DeleteForUser = %d, %v", n, err)
	}
}
