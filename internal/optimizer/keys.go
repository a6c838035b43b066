package optimizer

// Keys names the metadata entries kept per asset under one namespace.
type Keys struct {
	Prefix       string
	OriginalPath string
	Savings      string
	Attempts     string
	Failed       string
}

// NewKeys returns the key set for namespace, e.g. "webp" gives
// _webp_original_path.
func NewKeys(namespace string) Keys {
	prefix := "_" + namespace + "_"
	return Keys{
		Prefix:       prefix,
		OriginalPath: prefix + "original_path",
		Savings:      prefix + "savings",
		Attempts:     prefix + "attempts",
		Failed:       prefix + "failed",
	}
}

// SelectionExcludes lists the keys whose presence removes an asset from
// batch selection.
func (k Keys) SelectionExcludes() []string {
	return []string{k.OriginalPath, k.Failed}
}
