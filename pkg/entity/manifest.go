package entity

// ManifestEntry is one row of the top-level version manifest: it maps a
// version id to the URL of its descriptor document.
type ManifestEntry struct {
	ID          string      `json:"id"`
	Type        VersionType `json:"type"`
	URL         string      `json:"url"`
	SHA1        string      `json:"sha1,omitempty"`
	ReleaseTime string      `json:"releaseTime,omitempty"`
}

// LatestVersions names the most recent release and snapshot ids.
type LatestVersions struct {
	Release  string `json:"release"`
	Snapshot string `json:"snapshot"`
}

// VersionManifest is the id to descriptor-url mapping for all known
// versions, fetched once per resolution from a fixed origin.
type VersionManifest struct {
	Latest   LatestVersions  `json:"latest"`
	Versions []ManifestEntry `json:"versions"`
}

// Entry returns the manifest row for a version id, or nil when unknown.
func (m *VersionManifest) Entry(id string) *ManifestEntry {
	for i := range m.Versions {
		if m.Versions[i].ID == id {
			return &m.Versions[i]
		}
	}

	return nil
}

// AssetObject is one entry of an asset index: the content hash and size of a
// logical asset name.
type AssetObject struct {
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

// AssetIndexDoc is the dereferenced asset index document.
type AssetIndexDoc struct {
	Objects map[string]AssetObject `json:"objects"`
}
