package remodel

// DiscriminatorMode controls whether values carry their type id.
type DiscriminatorMode int

const (
	// DiscriminatorNone neither writes nor reads discriminators. Types are static.
	DiscriminatorNone DiscriminatorMode = iota

	// DiscriminatorInline writes the type id as the first property of an object and
	// resolves the concrete type from it when reading.
	DiscriminatorInline
)

func (m DiscriminatorMode) String() string {
	if m == DiscriminatorInline {
		return "inline"
	}

	return "none"
}

type Formatting int

const (
	Compact Formatting = iota
	Indented
)

func (f Formatting) String() string {
	if f == Indented {
		return "indented"
	}

	return "compact"
}

// UnknownFieldPolicy controls properties a type without extra attribute bag does not declare.
type UnknownFieldPolicy int

const (
	UnknownFieldsIgnore UnknownFieldPolicy = iota
	UnknownFieldsFail
)

func (p UnknownFieldPolicy) String() string {
	if p == UnknownFieldsFail {
		return "fail"
	}

	return "ignore"
}

// Profile bundles the policies a Mapper applies. Profiles hold no per-type state.
type Profile struct {
	Name          string
	Discriminator DiscriminatorMode
	Formatting    Formatting
	UnknownFields UnknownFieldPolicy

	// AllowComments accepts comments when reading. Comments are never written.
	AllowComments bool

	// RequireMeta rejects top-level struct values without a registered Meta.
	RequireMeta bool

	// TagImplicit writes discriminators for unregistered struct types as well.
	TagImplicit bool
}

var (
	bootstrap = Profile{
		Name:          "bootstrap",
		Discriminator: DiscriminatorInline,
		Formatting:    Indented,
		UnknownFields: UnknownFieldsFail,
		TagImplicit:   true,
	}

	config = Profile{
		Name:          "config",
		Discriminator: DiscriminatorNone,
		Formatting:    Indented,
		UnknownFields: UnknownFieldsIgnore,
		AllowComments: true,
	}

	typed = Profile{
		Name:          "typed",
		Discriminator: DiscriminatorInline,
		Formatting:    Compact,
		UnknownFields: UnknownFieldsFail,
		RequireMeta:   true,
	}

	prettyPrint = Profile{
		Name:          "pretty",
		Discriminator: DiscriminatorInline,
		Formatting:    Indented,
		UnknownFields: UnknownFieldsIgnore,
	}
)

// BootstrapProfile reads and writes metadata before any Meta is registered.
func BootstrapProfile() Profile { return bootstrap }

// ConfigProfile reads application configuration. It tolerates comments and unknown keys.
func ConfigProfile() Profile { return config }

// TypedProfile is used for runtime traffic between registered models and text.
func TypedProfile() Profile { return typed }

// PrettyPrintProfile renders any value for humans.
func PrettyPrintProfile() Profile { return prettyPrint }

// Profiles returns the four fixed profiles.
func Profiles() []Profile {
	return []Profile{bootstrap, config, typed, prettyPrint}
}

// ProfileByName returns the profile with the given name.
func ProfileByName(name string) (Profile, bool) {
	for _, profile := range Profiles() {
		if profile.Name == name {
			return profile, true
		}
	}

	return Profile{}, false
}

func (p Profile) inline() bool {
	return p.Discriminator == DiscriminatorInline
}

func (p Profile) String() string {
	return p.Name
}
