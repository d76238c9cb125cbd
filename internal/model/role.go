package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// RoleType is the authorization discriminator of a principal. Role names are
// display-only; every decision switches on the type.
type RoleType int

const (
	RoleUnknown RoleType = iota
	RoleDoctor
	RoleScientist
	RoleTechnician
	RoleAdministrator
	RoleNurse
	RoleSuper
	roleTypeCount
)

// Action is a case operation a role may be permitted to perform.
type Action uint16

const (
	ActionView Action = 1 << iota
	ActionList
	ActionCreate
	ActionEdit
	ActionDelete
	ActionAssign
	ActionComplete
	ActionExport
)

var actionNames = map[Action]string{
	ActionView:     "view",
	ActionList:     "list",
	ActionCreate:   "create",
	ActionEdit:     "edit",
	ActionDelete:   "delete",
	ActionAssign:   "assign",
	ActionComplete: "complete",
	ActionExport:   "export",
}

func (a Action) String() string {
	if n, ok := actionNames[a]; ok {
		return n
	}
	return fmt.Sprintf("action(%d)", uint16(a))
}

// Track names one of the per-role status fields of a case.
type Track int

const (
	TrackNone Track = iota
	TrackTechnician
	TrackScientist
	TrackDoctor
)

// Field returns the case column backing the track.
func (t Track) Field() string {
	switch t {
	case TrackTechnician:
		return FieldTechnicianStatus
	case TrackScientist:
		return FieldScientistStatus
	case TrackDoctor:
		return FieldDoctorStatus
	}
	return ""
}

type roleEntry struct {
	name      string
	dashboard string
	login     string
	track     Track
	actions   Action
}

const (
	allCaseActions = ActionView | ActionList | ActionCreate | ActionEdit | ActionDelete | ActionAssign | ActionComplete | ActionExport
	readActions    = ActionView | ActionList
)

var roleTable = [...]roleEntry{
	RoleUnknown:       {name: "unknown", dashboard: "/", login: "/login"},
	RoleDoctor:        {name: "doctor", dashboard: "/doctor/dashboard", login: "/login", track: TrackDoctor, actions: readActions | ActionComplete | ActionExport},
	RoleScientist:     {name: "scientist", dashboard: "/scientist/dashboard", login: "/login", track: TrackScientist, actions: readActions | ActionEdit | ActionAssign | ActionComplete | ActionExport},
	RoleTechnician:    {name: "technician", dashboard: "/technician/dashboard", login: "/login", track: TrackTechnician, actions: readActions | ActionCreate | ActionEdit | ActionAssign | ActionComplete | ActionExport},
	RoleAdministrator: {name: "administrator", dashboard: "/administrator/dashboard", login: "/login", actions: allCaseActions},
	RoleNurse:         {name: "nurse", dashboard: "/administrator/dashboard", login: "/login", actions: readActions},
	RoleSuper:         {name: "super", dashboard: "/system/dashboard", login: "/system/login"},
}

// Both bounds fail to compile if a role constant is added without a table entry.
var (
	_ [len(roleTable) - int(roleTypeCount)]struct{}
	_ [int(roleTypeCount) - len(roleTable)]struct{}
)

var roleAliases = map[string]RoleType{
	"doctor":        RoleDoctor,
	"scientist":     RoleScientist,
	"technician":    RoleTechnician,
	"administrator": RoleAdministrator,
	"admin":         RoleAdministrator,
	"nurse":         RoleNurse,
	"super":         RoleSuper,
	"superadmin":    RoleSuper,
	"super_admin":   RoleSuper,
	"system":        RoleSuper,
}

// ParseRoleType maps a role string (case-insensitive, common aliases
// accepted) to a supported role type.
func ParseRoleType(s string) (RoleType, bool) {
	rt, ok := roleAliases[strings.ToLower(strings.TrimSpace(s))]
	return rt, ok
}

// AllRoleTypes lists the supported role types in table order.
func AllRoleTypes() []RoleType {
	out := make([]RoleType, 0, int(roleTypeCount)-1)
	for rt := RoleDoctor; rt < roleTypeCount; rt++ {
		out = append(out, rt)
	}
	return out
}

func (r RoleType) entry() roleEntry {
	if r <= RoleUnknown || r >= roleTypeCount {
		return roleTable[RoleUnknown]
	}
	return roleTable[r]
}

func (r RoleType) String() string { return r.entry().name }

// Valid reports whether r is one of the supported roles.
func (r RoleType) Valid() bool { return r > RoleUnknown && r < roleTypeCount }

// IsSystem reports whether the role belongs to the system tier (no hospital).
func (r RoleType) IsSystem() bool { return r == RoleSuper }

// DashboardRoute is where the role lands after login. Unknown roles go home.
func (r RoleType) DashboardRoute() string { return r.entry().dashboard }

// LoginRoute is where the role is sent when its session is invalidated.
func (r RoleType) LoginRoute() string { return r.entry().login }

// Track returns the case status field this role works on, if any.
func (r RoleType) Track() Track { return r.entry().track }

// Can reports whether the role may perform action on cases.
func (r RoleType) Can(action Action) bool { return r.entry().actions&action != 0 }

func (r RoleType) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *RoleType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	rt, ok := ParseRoleType(s)
	if !ok {
		return fmt.Errorf("unsupported role type %q", s)
	}
	*r = rt
	return nil
}

// Scan implements sql.Scanner for the roles.type column.
func (r *RoleType) Scan(src interface{}) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	case nil:
		*r = RoleUnknown
		return nil
	default:
		return fmt.Errorf("cannot scan %T into RoleType", src)
	}
	rt, ok := ParseRoleType(s)
	if !ok {
		*r = RoleUnknown
		return nil
	}
	*r = rt
	return nil
}

// Value implements driver.Valuer.
func (r RoleType) Value() (driver.Value, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid role type %d", int(r))
	}
	return r.String(), nil
}

// Role is reference data; Type drives authorization and Name is for display.
type Role struct {
	ID   int64    `db:"id" json:"id"`
	Type RoleType `db:"type" json:"type"`
	Name string   `db:"name" json:"name"`
}
