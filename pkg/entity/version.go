package entity

// VersionType classifies a published version.
type VersionType string

const (
	VersionTypeRelease  VersionType = "release"
	VersionTypeSnapshot VersionType = "snapshot"
	VersionTypeOldBeta  VersionType = "old_beta"
	VersionTypeOldAlpha VersionType = "old_alpha"
)

// Artifact describes one downloadable file: where it lives, how big it is
// and the SHA-1 it must hash to.
type Artifact struct {
	Path string `json:"path,omitempty"`
	SHA1 string `json:"sha1,omitempty"`
	Size int64  `json:"size,omitempty"`
	URL  string `json:"url"`
}

// Downloads holds the primary executable payloads of a version.
type Downloads struct {
	Client *Artifact `json:"client,omitempty"`
	Server *Artifact `json:"server,omitempty"`
}

// RuleAction is the decision a matching rule contributes.
type RuleAction string

const (
	ActionAllow    RuleAction = "allow"
	ActionDisallow RuleAction = "disallow"
)

// OSPredicate narrows a rule to an OS family and optionally an architecture.
// An empty field is a wildcard.
type OSPredicate struct {
	Name string `json:"name,omitempty"`
	Arch string `json:"arch,omitempty"`
}

// Rule makes a library entry conditional on the platform or on feature
// flags. Rules evaluate left to right, the last matching rule wins.
type Rule struct {
	Action   RuleAction      `json:"action"`
	OS       *OSPredicate    `json:"os,omitempty"`
	Features map[string]bool `json:"features,omitempty"`
}

// LibraryDownloads carries the generic artifact of a library plus its
// per-classifier native artifacts.
type LibraryDownloads struct {
	Artifact    *Artifact            `json:"artifact,omitempty"`
	Classifiers map[string]*Artifact `json:"classifiers,omitempty"`
}

// ExtractPolicy lists entry-name prefixes that must not be extracted from a
// native archive.
type ExtractPolicy struct {
	Exclude []string `json:"exclude,omitempty"`
}

// LibraryEntry is one dependency of a version. An entry with Natives but no
// generic artifact is native-only; one with both is on the classpath and
// extracted.
type LibraryEntry struct {
	Name      string            `json:"name"`
	Downloads *LibraryDownloads `json:"downloads,omitempty"`
	Natives   map[string]string `json:"natives,omitempty"`
	Rules     []Rule            `json:"rules,omitempty"`
	Extract   *ExtractPolicy    `json:"extract,omitempty"`
}

// AssetIndexRef points at the asset index document of a version.
type AssetIndexRef struct {
	ID        string `json:"id"`
	SHA1      string `json:"sha1,omitempty"`
	Size      int64  `json:"size,omitempty"`
	TotalSize int64  `json:"totalSize,omitempty"`
	URL       string `json:"url"`
}

// Arguments is the launch argument template of a version.
type Arguments struct {
	Game []string `json:"game,omitempty"`
	JVM  []string `json:"jvm,omitempty"`
}

// JavaVersion is the runtime requirement declared by a version.
type JavaVersion struct {
	Component    string `json:"component,omitempty"`
	MajorVersion int    `json:"majorVersion"`
}

// VersionDescriptor is the raw per-version record as published. A descriptor
// may inherit from a parent; it is only directly usable once the chain has
// been resolved into a NormalizedVersion.
type VersionDescriptor struct {
	ID           string         `json:"id"`
	Type         VersionType    `json:"type,omitempty"`
	InheritsFrom string         `json:"inheritsFrom,omitempty"`
	ReleaseTime  string         `json:"releaseTime,omitempty"`
	MainClass    string         `json:"mainClass,omitempty"`
	JavaVersion  *JavaVersion   `json:"javaVersion,omitempty"`
	Downloads    *Downloads     `json:"downloads,omitempty"`
	Libraries    []LibraryEntry `json:"libraries,omitempty"`
	AssetIndex   *AssetIndexRef `json:"assetIndex,omitempty"`
	Arguments    *Arguments     `json:"arguments,omitempty"`
}

// NormalizedVersion is the flat, chain-resolved manifest of one version. It
// never references a parent; everything a downloader needs is inlined.
type NormalizedVersion struct {
	ID          string
	Type        VersionType
	ReleaseTime string
	JavaVersion int
	MainClass   string
	Client      *Artifact
	Server      *Artifact
	AssetIndex  *AssetIndexRef
	Libraries   []LibraryEntry
	Arguments   Arguments

	// Raw is the published descriptor document of the child-most version,
	// persisted under versions/<id>/<id>.json for later offline launches.
	Raw []byte
}
