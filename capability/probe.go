package capability

import (
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// HostProbe is the production Probe: it inspects the DevTools endpoint the
// daemon is configured against and the local machine.
type HostProbe struct {
	// DevToolsURL is the remote debugging endpoint, e.g.
	// "http://127.0.0.1:9222". Empty means no endpoint configured.
	DevToolsURL string
	// SettingsPath is the settings database location used for the
	// writability check.
	SettingsPath string
	// CommandAddr is the listen address of the command route; non-empty
	// means platform hotkeys can reach us.
	CommandAddr string

	client *http.Client
}

func (h *HostProbe) httpClient() *http.Client {
	if h.client == nil {
		h.client = &http.Client{Timeout: 2 * time.Second}
	}
	return h.client
}

// browserVersion fetches the /json/version document of the endpoint and
// returns the reported browser product string, or "" when unreachable.
func (h *HostProbe) browserVersion() string {
	if h.DevToolsURL == "" {
		return ""
	}
	resp, err := h.httpClient().Get(strings.TrimSuffix(h.DevToolsURL, "/") + "/json/version")
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	buf := make([]byte, 4096)
	n, _ := resp.Body.Read(buf)
	return string(buf[:n])
}

func (h *HostProbe) FirefoxEndpoint() bool {
	return strings.Contains(strings.ToLower(h.browserVersion()), "firefox")
}

func (h *HostProbe) ChromeEndpoint() bool {
	v := strings.ToLower(h.browserVersion())
	return strings.Contains(v, "chrome") || strings.Contains(v, "chromium")
}

func (h *HostProbe) Notifier() bool {
	_, err := exec.LookPath("notify-send")
	return err == nil
}

func (h *HostProbe) CommandSource() bool {
	return h.CommandAddr != ""
}

func (h *HostProbe) LocalStore() bool {
	if h.SettingsPath == "" {
		return false
	}
	dir := filepath.Dir(h.SettingsPath)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return false
	}
	probe := filepath.Join(dir, ".capability-probe")
	f, err := os.Create(probe)
	if err != nil {
		return false
	}
	f.Close()
	os.Remove(probe)
	return true
}

func (h *HostProbe) SyncStore() bool {
	// No synchronized settings backend exists in the daemon deployment.
	return false
}

func (h *HostProbe) DocumentPiP() bool {
	// Document picture-in-picture windows are a Chromium facility; the
	// page agent opens them through CDP.
	return h.ChromeEndpoint()
}
