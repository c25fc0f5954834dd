// Package federation wires remote modules into the shell's module
// federation runtime.
package federation

// Remote is a remote module entry point as the runtime understands it.
type Remote struct {
	Name  string `json:"name"`
	Entry string `json:"entry"`
}

// Instance is one federation runtime instance.
type Instance interface {
	Name() string
	// RegisterRemotes adds remotes; with force, existing remotes with the
	// same name are replaced.
	RegisterRemotes(remotes []Remote, force bool) error
}

// Runtime is the host's late-initializing runtime handle. It is not
// owned by the shell; instances may appear at any time after startup.
type Runtime interface {
	Instances() []Instance
}
