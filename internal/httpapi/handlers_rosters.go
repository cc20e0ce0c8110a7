package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"gorm.io/datatypes"

	"github.com/guildops/rosterlive/internal/store"
	"github.com/guildops/rosterlive/pkg/apperr"
	"github.com/guildops/rosterlive/pkg/roster"
)

type rosterRequest struct {
	Name    string          `json:"name" validate:"required,max=128"`
	Entries []rosterEntryIn `json:"entries" validate:"max=200,dive"`
}

type rosterEntryIn struct {
	Role       string `json:"role" validate:"max=64"`
	Weapon     string `json:"weapon" validate:"max=64"`
	PlayerName string `json:"playerName" validate:"max=64"`
	Head       string `json:"head" validate:"max=64"`
	Chest      string `json:"chest" validate:"max=64"`
	Boots      string `json:"boots" validate:"max=64"`
	Notes      string `json:"notes" validate:"max=512"`
}

type rosterResponse struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	OwnerMID  string          `json:"ownerMid"`
	Document  roster.Document `json:"document"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func (req rosterRequest) toDocument(allianceID string) roster.Document {
	entries := make([]roster.Entry, len(req.Entries))
	for i, e := range req.Entries {
		entries[i] = roster.Entry{
			Role: e.Role, Weapon: e.Weapon, PlayerName: e.PlayerName,
			Head: e.Head, Chest: e.Chest, Boots: e.Boots, Notes: e.Notes,
		}
	}
	return roster.Document{Name: req.Name, AllianceID: allianceID, Entries: entries}
}

func (s *Server) toRosterResponse(rec *store.RosterRecord) (rosterResponse, error) {
	doc, err := roster.UnmarshalDocument([]byte(rec.Document))
	if err != nil {
		return rosterResponse{}, apperr.Wrap(apperr.CodeConnection, err, "decode roster")
	}
	return rosterResponse{
		ID: rec.ID, Name: rec.Name, OwnerMID: rec.OwnerMID,
		Document: doc, UpdatedAt: rec.UpdatedAt,
	}, nil
}

func (s *Server) listRosters(w http.ResponseWriter, r *http.Request) {
	id, ok := requireAccount(r)
	if !ok {
		s.writeErr(w, apperr.Forbidden("login required"))
		return
	}
	acct, err := s.store.AccountByMID(r.Context(), id.MID)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	recs, err := s.store.RostersByAlliance(r.Context(), acct.AllianceID)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	out := make([]rosterResponse, 0, len(recs))
	for i := range recs {
		resp, err := s.toRosterResponse(&recs[i])
		if err != nil {
			s.writeErr(w, err)
			return
		}
		out = append(out, resp)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) createRoster(w http.ResponseWriter, r *http.Request) {
	id, ok := requireAccount(r)
	if !ok {
		s.writeErr(w, apperr.Forbidden("login required"))
		return
	}
	var req rosterRequest
	if err := s.decode(r, &req); err != nil {
		s.writeErr(w, err)
		return
	}
	acct, err := s.store.AccountByMID(r.Context(), id.MID)
	if err != nil {
		s.writeErr(w, err)
		return
	}

	now := time.Now()
	doc := req.toDocument(acct.AllianceID)
	doc.DateCreated = &now

	rec := &store.RosterRecord{
		ID:         roster.NewRosterID(now),
		AllianceID: acct.AllianceID,
		OwnerMID:   id.MID,
		Name:       req.Name,
	}
	if rec.Document, err = encodeDocument(doc); err != nil {
		s.writeErr(w, err)
		return
	}
	if err := s.store.SaveRoster(r.Context(), rec); err != nil {
		s.writeErr(w, err)
		return
	}
	resp, err := s.toRosterResponse(rec)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) getRoster(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAccount(r); !ok {
		s.writeErr(w, apperr.Forbidden("login required"))
		return
	}
	rec, err := s.store.RosterByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	resp, err := s.toRosterResponse(rec)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) updateRoster(w http.ResponseWriter, r *http.Request) {
	id, ok := requireAccount(r)
	if !ok {
		s.writeErr(w, apperr.Forbidden("login required"))
		return
	}
	rec, err := s.store.RosterByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	if !s.gate.CanEditRoster(id, rec.OwnerMID) {
		s.writeErr(w, apperr.Forbidden("not your roster"))
		return
	}
	var req rosterRequest
	if err := s.decode(r, &req); err != nil {
		s.writeErr(w, err)
		return
	}

	doc := req.toDocument(rec.AllianceID)
	now := time.Now()
	doc.DateModified = &now
	doc.LastEditedBy = id.Username

	rec.Name = req.Name
	if rec.Document, err = encodeDocument(doc); err != nil {
		s.writeErr(w, err)
		return
	}
	if err := s.store.SaveRoster(r.Context(), rec); err != nil {
		s.writeErr(w, err)
		return
	}
	resp, err := s.toRosterResponse(rec)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) deleteRoster(w http.ResponseWriter, r *http.Request) {
	id, ok := requireAccount(r)
	if !ok {
		s.writeErr(w, apperr.Forbidden("login required"))
		return
	}
	rec, err := s.store.RosterByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	if !s.gate.CanDeleteRoster(id, rec.OwnerMID) {
		s.writeErr(w, apperr.Forbidden("not your roster"))
		return
	}
	if err := s.store.DeleteRoster(r.Context(), rec.ID); err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// copyRoster duplicates an existing roster for the caller, shedding
// assignments and bookkeeping so the copy starts clean.
func (s *Server) copyRoster(w http.ResponseWriter, r *http.Request) {
	id, ok := requireAccount(r)
	if !ok {
		s.writeErr(w, apperr.Forbidden("login required"))
		return
	}
	src, err := s.store.RosterByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	doc, err := roster.UnmarshalDocument([]byte(src.Document))
	if err != nil {
		s.writeErr(w, apperr.Wrap(apperr.CodeConnection, err, "decode roster"))
		return
	}

	now := time.Now()
	copyDoc := doc.Clone()
	copyDoc.Name = doc.Name + " (Copy)"
	copyDoc.Signups = nil
	copyDoc.Locked = nil
	copyDoc.DateCreated = &now
	copyDoc.DateModified = nil
	copyDoc.DateShared = nil
	copyDoc.SharedByUsername = ""
	copyDoc.LastEditedBy = ""
	for i := range copyDoc.Entries {
		copyDoc.Entries[i].PlayerName = ""
		copyDoc.Entries[i].LastEditedAt = nil
		copyDoc.Entries[i].EditedBy = ""
	}

	rec := &store.RosterRecord{
		ID:         roster.NewRosterID(now),
		AllianceID: src.AllianceID,
		OwnerMID:   id.MID,
		Name:       copyDoc.Name,
	}
	if rec.Document, err = encodeDocument(copyDoc); err != nil {
		s.writeErr(w, err)
		return
	}
	if err := s.store.SaveRoster(r.Context(), rec); err != nil {
		s.writeErr(w, err)
		return
	}
	resp, err := s.toRosterResponse(rec)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, resp)
}

// shareRoster publishes a roster under a fresh share id. Sharing stamps
// dateShared and sharedByUsername, which together drive the lock clock
// and the sharer's standing edit rights.
func (s *Server) shareRoster(w http.ResponseWriter, r *http.Request) {
	id, ok := requireAccount(r)
	if !ok {
		s.writeErr(w, apperr.Forbidden("login required"))
		return
	}
	src, err := s.store.RosterByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	doc, err := roster.UnmarshalDocument([]byte(src.Document))
	if err != nil {
		s.writeErr(w, apperr.Wrap(apperr.CodeConnection, err, "decode roster"))
		return
	}

	now := time.Now()
	shared := doc.Clone()
	shared.ShareID = roster.NewShareID(now)
	shared.DateShared = &now
	shared.SharedByUsername = id.Username

	if err := s.store.SaveSharedDocument(r.Context(), shared.ShareID, 0, &shared); err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{
		"shareId": shared.ShareID,
		"url":     "/shared/" + shared.ShareID,
	})
}

func encodeDocument(d roster.Document) (datatypes.JSON, error) {
	raw, err := roster.MarshalDocument(d)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeConnection, err, "encode roster")
	}
	return datatypes.JSON(raw), nil
}
