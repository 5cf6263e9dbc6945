package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"marketplace-api/internal/apperr"
)

// Role is a closed enumeration. The numeric value is the role level.
type Role int

const (
	RoleClient Role = 1
	RoleSeller Role = 2
	RoleAdmin  Role = 3
)

const authorityPrefix = "ROLE_"

var roleNames = map[Role]string{
	RoleClient: "CLIENT",
	RoleSeller: "SELLER",
	RoleAdmin:  "ADMIN",
}

func AllRoles() []Role {
	return []Role{RoleClient, RoleSeller, RoleAdmin}
}

func (r Role) Level() int {
	return int(r)
}

func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// Authority is the granted-authority form carried in issued tokens, e.g. ROLE_ADMIN.
func (r Role) Authority() string {
	return authorityPrefix + r.String()
}

// ParseRole accepts "ADMIN" or "ROLE_ADMIN", case-insensitively.
func ParseRole(s string) (Role, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	name = strings.TrimPrefix(name, authorityPrefix)
	for role, n := range roleNames {
		if n == name {
			return role, nil
		}
	}
	return 0, apperr.InvalidArgument("unknown role %q", s)
}

func (r Role) MarshalJSON() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid role %d", int(r))
	}
	return json.Marshal(r.String())
}

func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

type RoleSet map[Role]struct{}

func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

func (s RoleSet) Has(r Role) bool {
	_, ok := s[r]
	return ok
}

func (s RoleSet) Intersects(other RoleSet) bool {
	small, large := s, other
	if len(small) > len(large) {
		small, large = large, small
	}
	for r := range small {
		if large.Has(r) {
			return true
		}
	}
	return false
}

// Slice returns the roles ordered by level.
func (s RoleSet) Slice() []Role {
	out := make([]Role, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s RoleSet) Authorities() []string {
	out := make([]string, 0, len(s))
	for _, r := range s.Slice() {
		out = append(out, r.Authority())
	}
	return out
}

func (s RoleSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Slice())
}

func (s *RoleSet) UnmarshalJSON(data []byte) error {
	var roles []Role
	if err := json.Unmarshal(data, &roles); err != nil {
		return err
	}
	*s = NewRoleSet(roles...)
	return nil
}
