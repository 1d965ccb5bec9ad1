package binder

// Dependencies tracks what the generated code uses.
type Dependencies struct {
	Imports map[string]struct{}
	// Native types that were filtered out but referenced, and lowered.
	Filtered map[string]struct{}
	// Whether some record needs the noCopy marker type.
	NoCopy bool
}

func NewDependencies() *Dependencies {
	return &Dependencies{
		Imports:  make(map[string]struct{}),
		Filtered: make(map[string]struct{}),
	}
}

func (deps *Dependencies) MarkImport(path string) {
	deps.Imports[path] = struct{}{}
}

func (deps *Dependencies) MarkFiltered(name string) {
	deps.Filtered[name] = struct{}{}
}
