package auth

import (
	"fmt"
	"sort"

	"civicdesk/internal/config"
)

const (
	PermDirectoryWrite   = "directory.write"
	PermDirectoryRead    = "directory.read"
	PermGrievanceCreate  = "grievance.create"
	PermGrievanceRead    = "grievance.read"
	PermGrievanceResolve = "grievance.resolve"
	PermGrievanceReopen  = "grievance.reopen"
	PermFileCreate       = "file.create"
	PermFileMove         = "file.move"
	PermFileRead         = "file.read"
	PermFIRSubmit        = "fir.submit"
	PermFIRUpdate        = "fir.update"
	PermFIRRead          = "fir.read"
	PermMessageSend      = "message.send"
	PermMessageRead      = "message.read"
	PermEventsRead       = "events.read"
	PermAPIKeyManage     = "apikey.manage"
	PermGoalWrite        = "goal.write"
	PermGoalRead         = "goal.read"
	PermGoalProgress     = "goal.progress"
)

// ForbiddenError indicates missing permission.
type ForbiddenError struct {
	Permission string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("permission %s required", e.Permission)
}

// Policy resolves role names into permissions.
type Policy struct {
	roles map[string]map[string]struct{}
}

// NewPolicy builds a Policy from the configured RBAC roles.
func NewPolicy(cfg *config.Config) Policy {
	p := Policy{roles: map[string]map[string]struct{}{}}
	if cfg == nil {
		return p
	}
	for roleID, role := range cfg.Auth.RBAC.Roles {
		perms := make(map[string]struct{}, len(role.Permissions))
		for _, perm := range role.Permissions {
			perms[perm] = struct{}{}
		}
		p.roles[roleID] = perms
	}
	return p
}

// Permissions returns the sorted union of permissions granted by roles.
func (p Policy) Permissions(roles []string) []string {
	set := map[string]struct{}{}
	for _, r := range roles {
		for perm := range p.roles[r] {
			set[perm] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for perm := range set {
		out = append(out, perm)
	}
	sort.Strings(out)
	return out
}

// KnownRole reports whether role is configured.
func (p Policy) KnownRole(role string) bool {
	_, ok := p.roles[role]
	return ok
}

// Require returns ForbiddenError unless one of the granted permissions matches perm.
func Require(granted []string, perm string) error {
	for _, g := range granted {
		if g == perm {
			return nil
		}
	}
	return ForbiddenError{Permission: perm}
}
