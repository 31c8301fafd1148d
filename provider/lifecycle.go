package provider

import "context"

// Initializable is optionally implemented by providers that need setup
// before handling requests (e.g., create a cgroup parent, check a binary).
// The Manager calls Init() automatically when initializing providers.
type Initializable interface {
	Init(ctx context.Context) error
}
