// Package capability probes which host facilities exist in the current
// execution environment. Detection runs once at context creation and the
// snapshot is never refreshed; callers check flags before use instead of
// handling "API missing" errors at call sites.
package capability

// Runtime identifies the browser family behind the DevTools endpoint.
type Runtime string

const (
	RuntimeChrome  Runtime = "chrome"
	RuntimeFirefox Runtime = "firefox"
	RuntimeUnknown Runtime = "unknown"
)

// Snapshot is the one-shot result of capability detection. A false flag is
// never an error condition; absent facilities degrade the features that
// need them to no-ops.
type Snapshot struct {
	Runtime       Runtime
	Notifications bool
	Commands      bool
	StorageLocal  bool
	StorageSync   bool
	DocumentPiP   bool
}

// Probe answers the individual host lookups Detect is built from. Each
// method reports whether the facility responded; implementations are free
// to panic on broken hosts, Detect treats that as absent.
type Probe interface {
	// FirefoxEndpoint reports whether a Firefox-style remote debugging
	// endpoint is reachable.
	FirefoxEndpoint() bool
	// ChromeEndpoint reports whether a Chrome-style DevTools endpoint is
	// reachable.
	ChromeEndpoint() bool
	// Notifier reports whether a system notification sink exists.
	Notifier() bool
	// CommandSource reports whether a platform command (hotkey) source is
	// wired up.
	CommandSource() bool
	// LocalStore reports whether the local settings area is writable.
	LocalStore() bool
	// SyncStore reports whether a synchronized settings area is available.
	SyncStore() bool
	// DocumentPiP reports whether the endpoint supports detached
	// document picture-in-picture windows.
	DocumentPiP() bool
}

// Detect produces a capability snapshot from the probe. A Firefox-style
// endpoint wins the runtime classification even when a Chrome-compatible
// endpoint is also present. Every sub-API flag additionally requires the
// owning endpoint to exist, and a probe failure of any kind counts as
// absent, never as an error.
func Detect(p Probe) Snapshot {
	hasFirefox := safe(p.FirefoxEndpoint)
	hasChrome := safe(p.ChromeEndpoint)

	runtime := RuntimeUnknown
	switch {
	case hasFirefox:
		runtime = RuntimeFirefox
	case hasChrome:
		runtime = RuntimeChrome
	}

	hasEndpoint := hasFirefox || hasChrome

	return Snapshot{
		Runtime:       runtime,
		Notifications: hasEndpoint && safe(p.Notifier),
		Commands:      hasEndpoint && safe(p.CommandSource),
		StorageLocal:  hasEndpoint && safe(p.LocalStore),
		StorageSync:   hasEndpoint && safe(p.SyncStore),
		DocumentPiP:   safe(p.DocumentPiP),
	}
}

// safe runs one probe lookup, converting a panic into "absent".
func safe(f func() bool) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return f()
}
