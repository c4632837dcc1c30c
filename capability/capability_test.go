package capability

import "testing"

// stubProbe answers every lookup from fixed flags; a true panics entry
// makes the corresponding lookup blow up instead.
type stubProbe struct {
	firefox, chrome bool
	notifier        bool
	commands        bool
	local, sync     bool
	docPiP          bool
	panics          map[string]bool
}

func (p *stubProbe) answer(name string, v bool) bool {
	if p.panics[name] {
		panic("probe " + name + " broke")
	}
	return v
}

func (p *stubProbe) FirefoxEndpoint() bool { return p.answer("firefox", p.firefox) }
func (p *stubProbe) ChromeEndpoint() bool  { return p.answer("chrome", p.chrome) }
func (p *stubProbe) Notifier() bool        { return p.answer("notifier", p.notifier) }
func (p *stubProbe) CommandSource() bool   { return p.answer("commands", p.commands) }
func (p *stubProbe) LocalStore() bool      { return p.answer("local", p.local) }
func (p *stubProbe) SyncStore() bool       { return p.answer("sync", p.sync) }
func (p *stubProbe) DocumentPiP() bool     { return p.answer("docpip", p.docPiP) }

func TestDetectRuntimeClassification(t *testing.T) {
	cases := []struct {
		name            string
		firefox, chrome bool
		want            Runtime
	}{
		{"chrome only", false, true, RuntimeChrome},
		{"firefox only", true, false, RuntimeFirefox},
		{"firefox wins over chrome", true, true, RuntimeFirefox},
		{"no endpoint", false, false, RuntimeUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			snap := Detect(&stubProbe{firefox: tc.firefox, chrome: tc.chrome})
			if snap.Runtime != tc.want {
				t.Errorf("runtime = %s, want %s", snap.Runtime, tc.want)
			}
		})
	}
}

func TestDetectSubAPIsRequireEndpoint(t *testing.T) {
	// Every facility present but no endpoint at all.
	snap := Detect(&stubProbe{notifier: true, commands: true, local: true, sync: true})
	if snap.Notifications || snap.Commands || snap.StorageLocal || snap.StorageSync {
		t.Errorf("sub-APIs without endpoint = %+v", snap)
	}

	snap = Detect(&stubProbe{chrome: true, notifier: true, local: true})
	if !snap.Notifications || !snap.StorageLocal {
		t.Errorf("sub-APIs with endpoint = %+v", snap)
	}
	if snap.Commands || snap.StorageSync {
		t.Errorf("absent facilities reported present: %+v", snap)
	}
}

func TestDetectTreatsPanicAsAbsent(t *testing.T) {
	snap := Detect(&stubProbe{
		chrome:   true,
		notifier: true,
		commands: true,
		panics:   map[string]bool{"notifier": true},
	})
	if snap.Notifications {
		t.Error("panicking lookup reported present")
	}
	if !snap.Commands {
		t.Error("one broken lookup poisoned the others")
	}
	if snap.Runtime != RuntimeChrome {
		t.Errorf("runtime = %s", snap.Runtime)
	}
}

func TestDetectDocumentPiPIndependentOfEndpointFlags(t *testing.T) {
	snap := Detect(&stubProbe{docPiP: true})
	if !snap.DocumentPiP {
		t.Error("document pip lost without endpoint flags")
	}
}
