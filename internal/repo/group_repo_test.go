package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/growhub/instabulk/internal/domain"
)

func newGroupRepoDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("group_repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := db.AutoMigrate(&domain.Group{}, &domain.GroupAccount{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func memberIDs(g *domain.Group) []string {
	out := make([]string, 0, len(g.Accounts))
	for _, a := range g.Accounts {
		out = append(out, a.AccountID)
	}
	return out
}

func TestCreateGroup_PersistsMembersInOrder(t *testing.T) {
	db := newGroupRepoDB(t)

	g, err := CreateGroup(context.Background(), db, "fashion", []string{"b", "a", "c"})
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	got, err := GetGroupByName(context.Background(), db, "fashion")
	if err != nil {
		t.Fatalf("GetGroupByName: %v", err)
	}
	if got.ID != g.ID {
		t.Fatalf("id mismatch: %s vs %s", got.ID, g.ID)
	}
	ids := memberIDs(got)
	if len(ids) != 3 || ids[0] != "b" || ids[1] != "a" || ids[2] != "c" {
		t.Fatalf("members out of order: %v", ids)
	}
}

func TestCreateGroup_DuplicateName(t *testing.T) {
	db := newGroupRepoDB(t)

	if _, err := CreateGroup(context.Background(), db, "fashion", []string{"a"}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := CreateGroup(context.Background(), db, "fashion", []string{"b"}); !errors.Is(err, ErrDuplicateGroup) {
		t.Fatalf("duplicate create: got %v, want ErrDuplicateGroup", err)
	}
}

func TestGetGroupByName_NotFound(t *testing.T) {
	db := newGroupRepoDB(t)
	if _, err := GetGroupByName(context.Background(), db, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestReplaceGroupMembers_SwapsFullList(t *testing.T) {
	db := newGroupRepoDB(t)

	g, err := CreateGroup(context.Background(), db, "travel", []string{"a", "b"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := ReplaceGroupMembers(context.Background(), db, g.ID, []string{"x", "y", "z"}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	got, _ := GetGroupByName(context.Background(), db, "travel")
	ids := memberIDs(got)
	if len(ids) != 3 || ids[0] != "x" || ids[2] != "z" {
		t.Fatalf("members after replace: %v", ids)
	}

	// Replacing with an empty list empties the group.
	if err := ReplaceGroupMembers(context.Background(), db, g.ID, nil); err != nil {
		t.Fatalf("replace empty: %v", err)
	}
	got, _ = GetGroupByName(context.Background(), db, "travel")
	if len(got.Accounts) != 0 {
		t.Fatalf("expected empty membership, got %v", memberIDs(got))
	}
}

func TestReplaceGroupMembers_UnknownGroup(t *testing.T) {
	db := newGroupRepoDB(t)
	if err := ReplaceGroupMembers(context.Background(), db, "missing", []string{"a"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestDeleteGroup_RemovesGroupAndMembers(t *testing.T) {
	db := newGroupRepoDB(t)

	g, err := CreateGroup(context.Background(), db, "food", []string{"a", "b"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := DeleteGroup(context.Background(), db, g.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := GetGroupByName(context.Background(), db, "food"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("group still present: %v", err)
	}
	var members int64
	if err := db.Model(&domain.GroupAccount{}).Where("group_id = ?", g.ID).Count(&members).Error; err != nil {
		t.Fatalf("count members: %v", err)
	}
	if members != 0 {
		t.Fatalf("expected 0 members after delete, got %d", members)
	}

	if err := DeleteGroup(context.Background(), db, g.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: got %v, want ErrNotFound", err)
	}
}

func TestListGroups_SortedByName(t *testing.T) {
	db := newGroupRepoDB(t)

	for _, name := range []string{"zeta", "alpha", "mid"} {
		if _, err := CreateGroup(context.Background(), db, name, []string{"a"}); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}
	groups, err := ListGroups(context.Background(), db)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(groups) != 3 || groups[0].Name != "alpha" || groups[2].Name != "zeta" {
		t.Fatalf("unexpected order: %+v", groups)
	}
}
