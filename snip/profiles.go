package snip

// Profile pattern tables. Each profile covers the legacy mangled,
// mangled-inside-impl, and demangled spellings of the Rust symbols it
// targets; v0 mangling demangles before it reaches the name section, so
// the demangled forms cover it too.

var rustFmtPatterns = []string{
	`.*4core3fmt.*`,
	`.*3std3fmt.*`,
	`.*core\.\.fmt\.\..*`,
	`.*std\.\.fmt\.\..*`,
	`.*core::fmt::.*`,
	`.*std::fmt::.*`,
}

var rustPanickingPatterns = []string{
	`.*4core9panicking.*`,
	`.*3std9panicking.*`,
	`.*core\.\.panicking\.\..*`,
	`.*std\.\.panicking\.\..*`,
	`.*core::panicking::.*`,
	`.*std::panicking::.*`,
}

// profilePatterns expands the profile flags into their pattern lists.
func profilePatterns(cfg Config) []string {
	var patterns []string
	if cfg.SnipRustFmtCode {
		patterns = append(patterns, rustFmtPatterns...)
	}
	if cfg.SnipRustPanickingCode {
		patterns = append(patterns, rustPanickingPatterns...)
	}
	return patterns
}
