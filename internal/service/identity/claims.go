package identity

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/megcare/caseflow/internal/model"
)

// explicitRoleClaims are checked in order; the first non-empty one decides.
var explicitRoleClaims = []string{"userType", "role", "user_type", "custom_role"}

// groupVocabulary is matched against the words of each group name, split
// on anything that is not a letter. Multi-word terms must appear as
// consecutive words. The system tier is only granted on explicit names;
// "super" alone, as in "Nurse Supervisors", never matches.
var groupVocabulary = []struct {
	words []string
	role  model.RoleType
}{
	{[]string{"superadmin"}, model.RoleSuper},
	{[]string{"super", "admin"}, model.RoleSuper},
	{[]string{"super", "administrator"}, model.RoleSuper},
	{[]string{"system", "admin"}, model.RoleSuper},
	{[]string{"administrator"}, model.RoleAdministrator},
	{[]string{"administrators"}, model.RoleAdministrator},
	{[]string{"admin"}, model.RoleAdministrator},
	{[]string{"admins"}, model.RoleAdministrator},
	{[]string{"doctor"}, model.RoleDoctor},
	{[]string{"doctors"}, model.RoleDoctor},
	{[]string{"scientist"}, model.RoleScientist},
	{[]string{"scientists"}, model.RoleScientist},
	{[]string{"technician"}, model.RoleTechnician},
	{[]string{"technicians"}, model.RoleTechnician},
	{[]string{"nurse"}, model.RoleNurse},
	{[]string{"nurses"}, model.RoleNurse},
}

// Assertion is what the identity provider told us about a principal.
type Assertion struct {
	Subject string
	Email   string
	Name    string
	Groups  []string
	// Claims are the verified ID token claims.
	Claims map[string]interface{}
}

// ResolveRole picks the principal's role: an explicit role claim first, then
// group membership, then the role requested in the signed state. An explicit
// claim naming an unsupported role rejects the login outright.
func ResolveRole(a Assertion, requested string) (model.RoleType, error) {
	for _, key := range explicitRoleClaims {
		raw, ok := stringClaim(a.Claims, key)
		if !ok {
			continue
		}
		role, ok := model.ParseRoleType(raw)
		if !ok {
			return model.RoleUnknown, fmt.Errorf("%w: %s=%q", ErrRoleUnsupported, key, raw)
		}
		return role, nil
	}

	if role, ok := roleFromGroups(a.Groups); ok {
		return role, nil
	}

	if requested != "" {
		if role, ok := model.ParseRoleType(requested); ok {
			return role, nil
		}
	}
	return model.RoleUnknown, ErrRoleUnsupported
}

func roleFromGroups(groups []string) (model.RoleType, bool) {
	split := make([][]string, len(groups))
	for i, g := range groups {
		split[i] = groupWords(g)
	}
	for _, v := range groupVocabulary {
		for _, words := range split {
			if containsRun(words, v.words) {
				return v.role, true
			}
		}
	}
	return model.RoleUnknown, false
}

// groupWords lower-cases name and splits it on every non-letter.
func groupWords(name string) []string {
	return strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}

// containsRun reports whether run appears in words as consecutive entries.
func containsRun(words, run []string) bool {
	for i := 0; i+len(run) <= len(words); i++ {
		match := true
		for j, w := range run {
			if words[i+j] != w {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func stringClaim(claims map[string]interface{}, key string) (string, bool) {
	v, ok := claims[key].(string)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

// stringsClaim reads a claim that providers send either as a list or as a
// single string.
func stringsClaim(claims map[string]interface{}, key string) []string {
	switch v := claims[key].(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// NewAssertion builds an assertion from verified token claims, filling gaps
// from userinfo when the token omits them.
func NewAssertion(claims, userinfo map[string]interface{}) Assertion {
	a := Assertion{Claims: claims}
	a.Subject, _ = stringClaim(claims, "sub")
	a.Email, _ = stringClaim(claims, "email")
	a.Name, _ = stringClaim(claims, "name")
	a.Groups = stringsClaim(claims, "groups")

	if a.Email == "" {
		a.Email, _ = stringClaim(userinfo, "email")
	}
	if a.Name == "" {
		a.Name, _ = stringClaim(userinfo, "name")
	}
	if len(a.Groups) == 0 {
		a.Groups = stringsClaim(userinfo, "groups")
	}
	a.Email = strings.ToLower(a.Email)
	if a.Name == "" {
		a.Name = a.Email
	}
	return a
}
