package analyzer

// Report describes how the env files have drifted from the discovered variables
type Report struct {
	Discovered         int      // Number of variables referenced in code
	MissingFromEnv     []string // Referenced in code but absent from the env file
	MissingFromExample []string // Referenced in code but absent from the example file
	Unused             []string // Present in the env file but no longer referenced
}

// InSync reports whether both files hold every discovered variable
func (r Report) InSync() bool {
	return len(r.MissingFromEnv) == 0 && len(r.MissingFromExample) == 0
}
