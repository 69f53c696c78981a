// Package services: account groups
//
// Groups are operator-named sets of destination accounts. This file
// provides their CRUD operations and the expansion used during post
// composition: explicit accounts first, then each selected group's members
// in stored order, duplicates dropped on first-seen order.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/growhub/instabulk/internal/domain"
	"github.com/growhub/instabulk/internal/repo"
)

// GroupRepo defines the repository contract required by Groups.
type GroupRepo interface {
	Create(ctx context.Context, db *gorm.DB, name string, accountIDs []string) (*domain.Group, error)
	List(ctx context.Context, db *gorm.DB) ([]domain.Group, error)
	GetByName(ctx context.Context, db *gorm.DB, name string) (*domain.Group, error)
	ReplaceMembers(ctx context.Context, db *gorm.DB, groupID string, accountIDs []string) error
	Delete(ctx context.Context, db *gorm.DB, groupID string) error
}

// Groups provides group management and group-to-account expansion.
type Groups struct {
	DB   *gorm.DB
	Repo GroupRepo
}

// NewGroups constructs a Groups service over db.
func NewGroups(db *gorm.DB) *Groups {
	return &Groups{DB: db, Repo: groupRepoShim{}}
}

// Create stores a new group. The name is trimmed and must be non-empty and
// unused; members are deduplicated preserving order.
func (g *Groups) Create(ctx context.Context, name string, accountIDs []string) (*domain.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyGroupName
	}
	created, err := g.Repo.Create(ctx, g.DB, name, dedupeFirstSeen(accountIDs))
	if err != nil {
		if errors.Is(err, repo.ErrDuplicateGroup) {
			return nil, ErrGroupExists
		}
		return nil, err
	}
	return created, nil
}

// List returns all groups, members preloaded in stored order.
func (g *Groups) List(ctx context.Context) ([]domain.Group, error) {
	return g.Repo.List(ctx, g.DB)
}

// Replace swaps a group's full member list.
func (g *Groups) Replace(ctx context.Context, groupID string, accountIDs []string) error {
	err := g.Repo.ReplaceMembers(ctx, g.DB, groupID, dedupeFirstSeen(accountIDs))
	if errors.Is(err, repo.ErrNotFound) {
		return ErrGroupNotFound
	}
	return err
}

// Delete removes a group and its memberships.
func (g *Groups) Delete(ctx context.Context, groupID string) error {
	err := g.Repo.Delete(ctx, g.DB, groupID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrGroupNotFound
	}
	return err
}

// Expand merges explicit account IDs with the members of each named group,
// preserving first-seen order across the whole selection. An unknown group
// name fails the expansion with ErrGroupNotFound: silently publishing to a
// partial selection would be worse than rejecting the compose.
func (g *Groups) Expand(ctx context.Context, explicit []string, groupNames []string) ([]string, error) {
	merged := make([]string, 0, len(explicit))
	merged = append(merged, explicit...)
	for _, name := range groupNames {
		grp, err := g.Repo.GetByName(ctx, g.DB, strings.TrimSpace(name))
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, ErrGroupNotFound
			}
			return nil, err
		}
		for _, m := range grp.Accounts {
			merged = append(merged, m.AccountID)
		}
	}
	return dedupeFirstSeen(merged), nil
}

// groupRepoShim adapts the repo free functions to the GroupRepo interface.
type groupRepoShim struct{}

func (groupRepoShim) Create(ctx context.Context, db *gorm.DB, name string, accountIDs []string) (*domain.Group, error) {
	return repo.CreateGroup(ctx, db, name, accountIDs)
}

func (groupRepoShim) List(ctx context.Context, db *gorm.DB) ([]domain.Group, error) {
	return repo.ListGroups(ctx, db)
}

func (groupRepoShim) GetByName(ctx context.Context, db *gorm.DB, name string) (*domain.Group, error) {
	return repo.GetGroupByName(ctx, db, name)
}

func (groupRepoShim) ReplaceMembers(ctx context.Context, db *gorm.DB, groupID string, accountIDs []string) error {
	return repo.ReplaceGroupMembers(ctx, db, groupID, accountIDs)
}

func (groupRepoShim) Delete(ctx context.Context, db *gorm.DB, groupID string) error {
	return repo.DeleteGroup(ctx, db, groupID)
}
