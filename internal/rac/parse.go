// -----------------------------------------------------------------------
// Administration Client - Output Parsing
// -----------------------------------------------------------------------
//
// The administration client prints records as blocks of "name : value"
// lines. Parsing is regex based and tolerant: unknown fields are ignored,
// and missing host/port values fall back to sentinel defaults.
//
// Worker-process fields are paired positionally: the i-th process id is
// matched with the i-th host and the i-th port found in the output.
//
// -----------------------------------------------------------------------

package rac

import (
	"regexp"

	"github.com/google/uuid"
)

// Defaults reported when a worker-process record carries no host or port.
const (
	DefaultProcessHost = "unknown"
	DefaultProcessPort = "1560"
)

var (
	clusterPattern = regexp.MustCompile(`cluster\s*:\s*([a-f0-9-]+)`)
	processPattern = regexp.MustCompile(`process\s*:\s*([a-f0-9-]+)`)
	hostPattern    = regexp.MustCompile(`host\s*:\s*(\S+)`)
	portPattern    = regexp.MustCompile(`port\s*:\s*(\d+)`)
	sessionPattern = regexp.MustCompile(`session\s*:\s*[a-f0-9-]+`)
)

// WorkerProcess describes one worker process of a cluster.
type WorkerProcess struct {
	ID   string `json:"{#RPHOST_ID}"`
	Host string `json:"{#RPHOST_HOST}"`
	Port string `json:"{#RPHOST_PORT}"`
}

// ParseClusters returns cluster ids in order of appearance.
func ParseClusters(out []byte) []string {
	ids := submatches(clusterPattern, out)
	for _, id := range ids {
		if err := uuid.Validate(id); err != nil {
			// Kept as-is; the id is opaque to us and only echoed back.
			logger().Debug("cluster id is not a uuid", "cluster", id, "err", err)
		}
	}
	return ids
}

// ParseWorkerProcesses pairs process ids with hosts and ports by index.
func ParseWorkerProcesses(out []byte) []WorkerProcess {
	ids := submatches(processPattern, out)
	hosts := submatches(hostPattern, out)
	ports := submatches(portPattern, out)

	procs := make([]WorkerProcess, 0, len(ids))
	for i, id := range ids {
		p := WorkerProcess{ID: id, Host: DefaultProcessHost, Port: DefaultProcessPort}
		if i < len(hosts) {
			p.Host = hosts[i]
		}
		if i < len(ports) {
			p.Port = ports[i]
		}
		procs = append(procs, p)
	}
	return procs
}

// ParseSessionCount counts session records.
func ParseSessionCount(out []byte) int {
	return len(sessionPattern.FindAllIndex(out, -1))
}

func submatches(re *regexp.Regexp, out []byte) []string {
	matches := re.FindAllSubmatch(out, -1)
	vals := make([]string, 0, len(matches))
	for _, m := range matches {
		vals = append(vals, string(m[1]))
	}
	return vals
}
