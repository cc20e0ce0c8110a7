package roster

import (
	"encoding/json"
	"time"
)

// Documents written by older clients carry duck-typed field variants
// (entry.weapon vs entry.Weapon vs entry.mainHand). Normalization happens
// once at the store boundary: reads resolve the fallback chain into the
// canonical shape, and writes only ever emit canonical field names, so the
// legacy variants are shed the first time a document is rewritten.

var entryAliases = map[string][]string{
	"role":       {"role", "Role", "class", "Class"},
	"weapon":     {"weapon", "Weapon", "mainHand"},
	"playerName": {"playerName", "PlayerName", "assignedPlayer"},
	"head":       {"head", "Head", "helmet"},
	"chest":      {"chest", "Chest", "armor"},
	"boots":      {"boots", "Boots", "shoes"},
	"notes":      {"notes", "Notes", "comment"},
}

func pickString(m map[string]any, keys []string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func pickTime(m map[string]any, keys ...string) *time.Time {
	for _, k := range keys {
		s, ok := m[k].(string)
		if !ok {
			continue
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return &t
		}
	}
	return nil
}

func normalizeEntry(m map[string]any) Entry {
	e := Entry{
		Role:       pickString(m, entryAliases["role"]),
		Weapon:     pickString(m, entryAliases["weapon"]),
		PlayerName: pickString(m, entryAliases["playerName"]),
		Head:       pickString(m, entryAliases["head"]),
		Chest:      pickString(m, entryAliases["chest"]),
		Boots:      pickString(m, entryAliases["boots"]),
		Notes:      pickString(m, entryAliases["notes"]),
		EditedBy:   pickString(m, []string{"editedBy"}),
	}
	e.LastEditedAt = pickTime(m, "lastEditedAt")
	return e
}

// UnmarshalDocument decodes a stored or received document, resolving every
// legacy field alias into the canonical shape. Business logic never sees
// more than one candidate name per field.
func UnmarshalDocument(raw []byte) (Document, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return Document{}, err
	}

	d := Document{
		ShareID:          pickString(m, []string{"shareId"}),
		Name:             pickString(m, []string{"name"}),
		AllianceID:       pickString(m, []string{"allianceId", "MID"}),
		SharedByUsername: pickString(m, []string{"sharedByUsername"}),
		LastEditedBy:     pickString(m, []string{"lastEditedBy"}),
		DateShared:       pickTime(m, "dateShared"),
		DateCreated:      pickTime(m, "dateCreated"),
		DateModified:     pickTime(m, "dateModified"),
	}

	// Only a literal true counts as manually locked; anything else is
	// treated as the field being absent.
	if locked, ok := m["locked"].(bool); ok && locked {
		d.Locked = &locked
	}

	if entries, ok := m["entries"].([]any); ok {
		d.Entries = make([]Entry, 0, len(entries))
		for _, raw := range entries {
			if em, ok := raw.(map[string]any); ok {
				d.Entries = append(d.Entries, normalizeEntry(em))
			}
		}
	}

	if signups, ok := m["signups"].([]any); ok {
		d.Signups = make([]Signup, 0, len(signups))
		for _, raw := range signups {
			sm, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			s := Signup{Name: pickString(sm, []string{"name"})}
			if t := pickTime(sm, "signedUpAt"); t != nil {
				s.SignedUpAt = *t
			}
			if ws, ok := sm["weapons"].([]any); ok {
				for _, w := range ws {
					if v, ok := w.(string); ok {
						s.Weapons = append(s.Weapons, v)
					}
				}
			}
			d.Signups = append(d.Signups, s)
		}
	}

	return d, nil
}

// MarshalDocument emits the canonical representation. Legacy aliases do
// not survive a write.
func MarshalDocument(d Document) ([]byte, error) {
	return json.Marshal(d)
}
