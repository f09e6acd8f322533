package configs

// HugepageLimit structure corresponds to limiting kernel hugepages
type HugepageLimit struct {
	// which type of hugepage to limit, e.g. '2MB', '1GB'
	Pagesize string `json:"page_size"`

	// usage limit for hugepage
	Limit uint64 `json:"limit"`
}
