package schema

// CRUD is the bitmask of operations enabled for a schema.
type CRUD uint8

const (
	Create CRUD = 1 << iota
	Read
	Update
	Delete

	CRUDAll = Create | Read | Update | Delete
)

// CanCreate reports whether create is enabled.
func (c CRUD) CanCreate() bool { return c&Create != 0 }

// CanRead reports whether read is enabled.
func (c CRUD) CanRead() bool { return c&Read != 0 }

// CanUpdate reports whether update is enabled.
func (c CRUD) CanUpdate() bool { return c&Update != 0 }

// CanDelete reports whether delete is enabled.
func (c CRUD) CanDelete() bool { return c&Delete != 0 }

// Layer is the bitmask of storage tiers a schema participates in.
type Layer uint8

const (
	LayerDatabase Layer = 1 << iota
	LayerSearch
	LayerCache

	LayerSD  = LayerSearch | LayerDatabase
	LayerCD  = LayerCache | LayerDatabase
	LayerCS  = LayerCache | LayerSearch
	LayerCSD = LayerCache | LayerSearch | LayerDatabase
)

// HasDatabase reports whether the durable database tier participates.
func (l Layer) HasDatabase() bool { return l&LayerDatabase != 0 }

// HasSearch reports whether the search tier participates.
func (l Layer) HasSearch() bool { return l&LayerSearch != 0 }

// HasCache reports whether the cache tier participates.
func (l Layer) HasCache() bool { return l&LayerCache != 0 }

// AuthLevel is the required authorization level of a schema's routes.
type AuthLevel int

const (
	// Free routes take no credentials.
	Free AuthLevel = iota
	// A requires a resolvable bearer token.
	A
	// AA additionally requires an ACL grant (or admin) for the verb.
	AA
	// AAA additionally requires the caller to own the row.
	AAA
)

// RequiresToken reports whether a bearer token must be presented.
func (a AuthLevel) RequiresToken() bool { return a >= A }

// RequiresACL reports whether the per-verb allow-set is enforced.
func (a AuthLevel) RequiresACL() bool { return a >= AA }

// RequiresOwner reports whether row ownership is enforced.
func (a AuthLevel) RequiresOwner() bool { return a >= AAA }

// Seconds helpers for tier TTL options.
const (
	SecondsMinute = 60
	SecondsHour   = 3600
	SecondsDay    = 86400
	SecondsWeek   = 604800
)
