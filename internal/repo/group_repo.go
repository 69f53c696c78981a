// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for account groups.
//
// Groups are a simple keyed-set store: a unique name mapping to an ordered
// list of destination account identifiers. Membership updates replace the
// full member list; there is no incremental add/remove.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/growhub/instabulk/internal/domain"
)

// ErrDuplicateGroup is returned when creating a group whose name already exists.
var ErrDuplicateGroup = errors.New("group name already exists")

// CreateGroup inserts a new group with the given member account IDs, in
// order. Returns ErrDuplicateGroup when the name is taken.
func CreateGroup(ctx context.Context, db *gorm.DB, name string, accountIDs []string) (*domain.Group, error) {
	g := &domain.Group{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	for i, id := range accountIDs {
		g.Accounts = append(g.Accounts, domain.GroupAccount{
			ID:        uuid.NewString(),
			GroupID:   g.ID,
			AccountID: id,
			Position:  i,
		})
	}
	if err := db.WithContext(ctx).Create(g).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateGroup
		}
		return nil, err
	}
	return g, nil
}

// ListGroups returns every group with members preloaded in position order.
func ListGroups(ctx context.Context, db *gorm.DB) ([]domain.Group, error) {
	var out []domain.Group
	err := db.WithContext(ctx).
		Preload("Accounts", func(tx *gorm.DB) *gorm.DB { return tx.Order("position asc") }).
		Order("name asc").
		Find(&out).Error
	return out, err
}

// GetGroupByName fetches one group with members in position order, or
// ErrNotFound when the name is unknown.
func GetGroupByName(ctx context.Context, db *gorm.DB, name string) (*domain.Group, error) {
	var g domain.Group
	err := db.WithContext(ctx).
		Preload("Accounts", func(tx *gorm.DB) *gorm.DB { return tx.Order("position asc") }).
		Where("name = ?", name).
		First(&g).Error
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// ReplaceGroupMembers swaps the group's full member list for accountIDs
// (order preserved) inside one transaction.
func ReplaceGroupMembers(ctx context.Context, db *gorm.DB, groupID string, accountIDs []string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.Group{}).Where("id = ?", groupID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		if err := tx.Where("group_id = ?", groupID).Delete(&domain.GroupAccount{}).Error; err != nil {
			return err
		}
		if len(accountIDs) == 0 {
			return nil
		}
		members := make([]domain.GroupAccount, 0, len(accountIDs))
		for i, id := range accountIDs {
			members = append(members, domain.GroupAccount{
				ID:        uuid.NewString(),
				GroupID:   groupID,
				AccountID: id,
				Position:  i,
			})
		}
		return tx.Create(&members).Error
	})
}

// DeleteGroup removes a group and, via the FK cascade, its memberships.
func DeleteGroup(ctx context.Context, db *gorm.DB, groupID string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Delete memberships explicitly as well: SQLite only cascades when
		// foreign_keys is on, and tests may open handles without the PRAGMA.
		if err := tx.Where("group_id = ?", groupID).Delete(&domain.GroupAccount{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", groupID).Delete(&domain.Group{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
