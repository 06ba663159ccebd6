// Package credstore persists the single reusable vendor test identity shared
// by every test module of a run, together with the modules that used it.
package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// ErrUnavailable is returned when the backing medium cannot be read or written.
var ErrUnavailable = errors.New("credential store unavailable")

// Origin records how the identity came to be.
type Origin string

const (
	OriginCreated  Origin = "created"
	OriginExisting Origin = "existing"
	OriginReused   Origin = "reused"
)

// Identity is the reusable test account and its usage history.
type Identity struct {
	Email     string
	Password  string
	Origin    Origin
	CreatedAt time.Time
	UsedBy    []string
}

// Store holds at most one Identity. Get returns nil without error when no
// usable record exists.
type Store interface {
	Get(ctx context.Context) (*Identity, error)
	Save(ctx context.Context, email, password string, origin Origin, module string) (Identity, error)
	RecordUsage(ctx context.Context, module string) error
	Clear(ctx context.Context) error
}

// UsedByModule reports whether module already appears in UsedBy.
func (i Identity) UsedByModule(module string) bool {
	return slices.Contains(i.UsedBy, module)
}

// Summary renders the identity for humans. The password is never included.
func (i Identity) Summary() string {
	var b strings.Builder
	b.WriteString("current session\n")
	fmt.Fprintf(&b, "  email:   %s\n", i.Email)
	fmt.Fprintf(&b, "  type:    %s\n", i.Origin)
	fmt.Fprintf(&b, "  created: %s\n", i.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "  used by: %s\n", strings.Join(i.UsedBy, ", "))
	return b.String()
}

// record is the persisted document layout shared by the file and redis stores.
type record struct {
	Email     string   `json:"email"`
	Password  string   `json:"password"`
	Origin    Origin   `json:"account_type"`
	CreatedAt string   `json:"created_at"`
	UsedBy    []string `json:"used_by_modules"`
}

// created_at has been written both with and without a zone offset.
var createdAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

func newIdentity(email, password string, origin Origin, module string, now time.Time) Identity {
	id := Identity{Email: email, Password: password, Origin: origin, CreatedAt: now}
	if module != "" {
		id.UsedBy = []string{module}
	} else {
		id.UsedBy = []string{}
	}
	return id
}

func encode(id Identity) ([]byte, error) {
	rec := record{
		Email:     id.Email,
		Password:  id.Password,
		Origin:    id.Origin,
		CreatedAt: id.CreatedAt.Format(time.RFC3339Nano),
		UsedBy:    id.UsedBy,
	}
	if rec.UsedBy == nil {
		rec.UsedBy = []string{}
	}
	return json.MarshalIndent(rec, "", "  ")
}

// decode returns nil for anything that is not a usable identity.
func decode(raw []byte) *Identity {
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil
	}
	if rec.Email == "" || rec.Password == "" {
		return nil
	}
	id := &Identity{
		Email:    rec.Email,
		Password: rec.Password,
		Origin:   rec.Origin,
		UsedBy:   rec.UsedBy,
	}
	if id.Origin == "" {
		id.Origin = OriginExisting
	}
	if id.UsedBy == nil {
		id.UsedBy = []string{}
	}
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, rec.CreatedAt); err == nil {
			id.CreatedAt = t
			break
		}
	}
	return id
}

// appendUsage returns false when module is already recorded.
func appendUsage(id *Identity, module string) bool {
	if module == "" || id.UsedByModule(module) {
		return false
	}
	id.UsedBy = append(id.UsedBy, module)
	return true
}
