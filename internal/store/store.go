// Package store is the persistence layer. It owns the gorm models and
// translates gorm errors into the shared taxonomy so nothing above it
// ever sees a gorm error.
package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/guildops/rosterlive/pkg/apperr"
	"github.com/guildops/rosterlive/pkg/roster"
)

type Store struct {
	db *gorm.DB
}

// Open connects to Postgres and migrates the schema.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeConnection, err, "open database")
	}
	if err := db.AutoMigrate(&Account{}, &MemberRecord{}, &RosterRecord{}, &SharedRoster{}); err != nil {
		return nil, apperr.Wrap(apperr.CodeConnection, err, "migrate schema")
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing connection, used by tests.
func NewWithDB(db *gorm.DB) *Store { return &Store{db: db} }

func wrapDB(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("%s not found", what)
	}
	return apperr.Wrap(apperr.CodeConnection, err, "query %s", what)
}

// -- accounts --

func (s *Store) CreateAccount(ctx context.Context, a *Account) error {
	err := s.db.WithContext(ctx).Create(a).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.Duplicate("username %q is taken", a.Username)
	}
	return wrapDB(err, "account")
}

func (s *Store) AccountByUsername(ctx context.Context, username string) (*Account, error) {
	var a Account
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&a).Error
	if err != nil {
		return nil, wrapDB(err, "account")
	}
	return &a, nil
}

func (s *Store) AccountByMID(ctx context.Context, mid string) (*Account, error) {
	var a Account
	err := s.db.WithContext(ctx).Where("mid = ?", mid).First(&a).Error
	if err != nil {
		return nil, wrapDB(err, "account")
	}
	return &a, nil
}

func (s *Store) UsernameExists(ctx context.Context, username string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&Account{}).Where("username = ?", username).Count(&n).Error
	return n > 0, wrapDB(err, "account")
}

func (s *Store) MIDExists(ctx context.Context, mid string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&Account{}).Where("mid = ?", mid).Count(&n).Error
	return n > 0, wrapDB(err, "account")
}

func (s *Store) TouchLogin(ctx context.Context, mid string, at time.Time) error {
	err := s.db.WithContext(ctx).Model(&Account{}).Where("mid = ?", mid).
		Update("last_login_at", at).Error
	return wrapDB(err, "account")
}

// -- members --

func (s *Store) MembersByAlliance(ctx context.Context, allianceID string) ([]roster.Member, error) {
	var recs []MemberRecord
	err := s.db.WithContext(ctx).
		Where("alliance_id = ?", allianceID).
		Order("name asc").
		Find(&recs).Error
	if err != nil {
		return nil, wrapDB(err, "members")
	}
	out := make([]roster.Member, len(recs))
	for i, r := range recs {
		out[i] = roster.Member{Name: r.Name, Role: r.Role, Linked: r.Linked}
	}
	return out, nil
}

// LinkMember marks name as linked in the alliance, creating the member
// row if signup introduced a new name. Every completed signup links, so
// mid may be empty for anonymous members; a known account id is recorded
// and never overwritten by an anonymous follow-up. Idempotent.
func (s *Store) LinkMember(ctx context.Context, allianceID, name, mid string) error {
	var rec MemberRecord
	err := s.db.WithContext(ctx).
		Where("alliance_id = ? AND name = ?", allianceID, name).
		First(&rec).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		rec = MemberRecord{AllianceID: allianceID, Name: name, Linked: true, LinkedMID: mid}
		return wrapDB(s.db.WithContext(ctx).Create(&rec).Error, "member")
	case err != nil:
		return wrapDB(err, "member")
	}
	if rec.Linked && (mid == "" || rec.LinkedMID == mid) {
		return nil
	}
	rec.Linked = true
	if mid != "" {
		rec.LinkedMID = mid
	}
	return wrapDB(s.db.WithContext(ctx).Save(&rec).Error, "member")
}

// -- authored rosters --

func (s *Store) SaveRoster(ctx context.Context, r *RosterRecord) error {
	return wrapDB(s.db.WithContext(ctx).Save(r).Error, "roster")
}

func (s *Store) RosterByID(ctx context.Context, id string) (*RosterRecord, error) {
	var r RosterRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&r).Error
	if err != nil {
		return nil, wrapDB(err, "roster")
	}
	return &r, nil
}

func (s *Store) RostersByAlliance(ctx context.Context, allianceID string) ([]RosterRecord, error) {
	var recs []RosterRecord
	err := s.db.WithContext(ctx).
		Where("alliance_id = ?", allianceID).
		Order("updated_at desc").
		Find(&recs).Error
	return recs, wrapDB(err, "rosters")
}

func (s *Store) DeleteRoster(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&RosterRecord{})
	if res.Error != nil {
		return wrapDB(res.Error, "roster")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("roster not found")
	}
	return nil
}

// -- shared rosters --

// SaveSharedDocument writes the document under shareID at version. The
// roster encoding is canonical, legacy aliases are shed on the way in.
func (s *Store) SaveSharedDocument(ctx context.Context, shareID string, version uint64, d *roster.Document) error {
	payload, err := roster.MarshalDocument(*d)
	if err != nil {
		return apperr.Wrap(apperr.CodeConnection, err, "encode document")
	}
	rec := SharedRoster{
		ShareID:    shareID,
		AllianceID: d.AllianceID,
		Version:    version,
		Document:   datatypes.JSON(payload),
	}
	return wrapDB(s.db.WithContext(ctx).Save(&rec).Error, "shared roster")
}

// SharedDocument loads the document and its version for shareID.
func (s *Store) SharedDocument(ctx context.Context, shareID string) (*roster.Document, uint64, error) {
	var rec SharedRoster
	err := s.db.WithContext(ctx).Where("share_id = ?", shareID).First(&rec).Error
	if err != nil {
		return nil, 0, wrapDB(err, "shared roster")
	}
	d, err := roster.UnmarshalDocument([]byte(rec.Document))
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.CodeConnection, err, "decode document")
	}
	return &d, rec.Version, nil
}

func (s *Store) SharedRostersByAlliance(ctx context.Context, allianceID string) ([]SharedRoster, error) {
	var recs []SharedRoster
	err := s.db.WithContext(ctx).
		Where("alliance_id = ?", allianceID).
		Order("updated_at desc").
		Find(&recs).Error
	return recs, wrapDB(err, "shared rosters")
}

func (s *Store) DeleteSharedRoster(ctx context.Context, shareID string) error {
	res := s.db.WithContext(ctx).Where("share_id = ?", shareID).Delete(&SharedRoster{})
	if res.Error != nil {
		return wrapDB(res.Error, "shared roster")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("shared roster not found")
	}
	return nil
}
