// Package auth holds the caller identity model and the permission gate.
// All role comparisons live here; callers ask the gate yes/no questions
// and never compare numbers themselves.
package auth

import (
	"strings"

	"github.com/guildops/rosterlive/internal/config"
)

// Identity is the authenticated (or anonymous) caller. Role is the
// numeric rank carried by the account; Member is the in-game name the
// account is linked to, empty when unlinked.
type Identity struct {
	MID      string
	Username string
	Role     int
	Member   string
}

// Anonymous is the zero identity used for unauthenticated viewers.
var Anonymous = Identity{}

func (id Identity) IsAnonymous() bool { return id.MID == "" }

// Gate evaluates permission predicates against configured role
// thresholds.
type Gate struct {
	admin       int
	moderator   int
	user        int
	rosterAdmin int
}

func NewGate(cfg *config.Config) *Gate {
	return &Gate{
		admin:       cfg.AdminRoleThreshold,
		moderator:   cfg.ModeratorRoleThreshold,
		user:        cfg.UserRoleThreshold,
		rosterAdmin: cfg.RosterAdminThreshold,
	}
}

func (g *Gate) IsAdmin(id Identity) bool     { return !id.IsAnonymous() && id.Role >= g.admin }
func (g *Gate) IsModerator(id Identity) bool { return !id.IsAnonymous() && id.Role >= g.moderator }
func (g *Gate) IsUser(id Identity) bool      { return !id.IsAnonymous() && id.Role >= g.user }

// CanToggleLock: moderators may lock or unlock any shared roster, and
// the user who published the share may always manage their own.
func (g *Gate) CanToggleLock(id Identity, sharedBy string) bool {
	if g.IsModerator(id) {
		return true
	}
	return sharedBy != "" && id.Username == sharedBy
}

// CanEditEntries: assigning players and editing slot fields follows the
// same criteria as locking. Lock enforcement is separate; an editor on a
// locked roster is still rejected, just with a different error.
func (g *Gate) CanEditEntries(id Identity, sharedBy string) bool {
	return g.CanToggleLock(id, sharedBy)
}

// CanRemoveSignup: anyone may withdraw their own signup; moderators may
// remove anyone's. Matching is case-insensitive because signup names
// come from free-form input.
func (g *Gate) CanRemoveSignup(id Identity, target string) bool {
	if g.IsModerator(id) {
		return true
	}
	if id.Member != "" && strings.EqualFold(id.Member, target) {
		return true
	}
	return strings.EqualFold(id.Username, target)
}

// CanEditRoster / CanDeleteRoster gate the authoring side: owners always
// may, others need the roster-admin rank.
func (g *Gate) CanEditRoster(id Identity, ownerMID string) bool {
	if id.IsAnonymous() {
		return false
	}
	return id.MID == ownerMID || id.Role >= g.rosterAdmin
}

func (g *Gate) CanDeleteRoster(id Identity, ownerMID string) bool {
	return g.CanEditRoster(id, ownerMID)
}
