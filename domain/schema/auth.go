package schema

// Policy is the system entity granting per-verb access to schemas.
// Each allow list holds sref values.
type Policy struct {
	Base
	Profile

	ReadAllowed   []string `json:"readAllowed"`
	CreateAllowed []string `json:"createAllowed"`
	UpdateAllowed []string `json:"updateAllowed"`
	DeleteAllowed []string `json:"deleteAllowed"`
}

// AuthInfo is the resolved authorization state of a bearer token: the
// account identity plus the union of the ACLs of its policies.
type AuthInfo struct {
	Realm    string   `json:"realm"`
	Username string   `json:"username"`
	Admin    bool     `json:"admin"`
	Policy   []string `json:"policy"`

	ReadAllowed   []string `json:"readAllowed"`
	CreateAllowed []string `json:"createAllowed"`
	UpdateAllowed []string `json:"updateAllowed"`
	DeleteAllowed []string `json:"deleteAllowed"`
}

// CheckRealm reports whether the token belongs to the given tenant.
func (a *AuthInfo) CheckRealm(realm string) bool { return a.Realm == realm }

// CheckUsername reports whether the token belongs to the given user.
func (a *AuthInfo) CheckUsername(username string) bool { return a.Username == username }

// CheckAccount reports whether the token matches both tenant and user.
func (a *AuthInfo) CheckAccount(realm, username string) bool {
	return a.Realm == realm && a.Username == username
}

// CheckAdmin reports whether the token carries the admin role.
func (a *AuthInfo) CheckAdmin() bool { return a.Admin }

// CheckPolicy reports whether the token holds the named policy.
func (a *AuthInfo) CheckPolicy(name string) bool {
	return contains(a.Policy, name)
}

// CheckRead reports whether reads on sref are granted.
func (a *AuthInfo) CheckRead(sref string) bool { return contains(a.ReadAllowed, sref) }

// CheckCreate reports whether creates on sref are granted.
func (a *AuthInfo) CheckCreate(sref string) bool { return contains(a.CreateAllowed, sref) }

// CheckUpdate reports whether updates on sref are granted.
func (a *AuthInfo) CheckUpdate(sref string) bool { return contains(a.UpdateAllowed, sref) }

// CheckDelete reports whether deletes on sref are granted.
func (a *AuthInfo) CheckDelete(sref string) bool { return contains(a.DeleteAllowed, sref) }

func contains(list []string, want string) bool {
	for _, have := range list {
		if have == want {
			return true
		}
	}
	return false
}
