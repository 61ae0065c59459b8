package action

import (
	"regexp"
	"strconv"
)

// Uptime is the parsed output of uptime(1).
type Uptime struct {
	// Clock is the current time of day on the host.
	Clock string

	// Up is how long the host has been running, as printed ("3 days,  4:05").
	Up string

	// Users is the number of logged-in users, or -1 when not printed.
	Users int

	// Load holds the 1, 5 and 15 minute load averages.
	Load [3]float64
}

// Matches procps, BusyBox and BSD formats:
//
//	14:02:11 up 3 days,  4:05,  2 users,  load average: 0.00, 0.01, 0.05
//	14:02:11 up  4:05,  load average: 0.00, 0.01, 0.05
//	14:02  up 5 days, 3:01, 2 users, load averages: 1.20 1.31 1.42
var uptimePattern = regexp.MustCompile(
	`^\s*(\S+)\s+up\s+(.*?),\s+(?:(\d+)\s+users?,\s+)?load averages?:\s+([\d.]+),?\s+([\d.]+),?\s+([\d.]+)\s*$`,
)

// ParseUptime parses a single uptime(1) line.
func ParseUptime(s string) (Uptime, bool) {
	m := uptimePattern.FindStringSubmatch(s)
	if m == nil {
		return Uptime{}, false
	}

	up := Uptime{Clock: m[1], Up: m[2], Users: -1}
	if m[3] != "" {
		n, err := strconv.Atoi(m[3])
		if err != nil {
			return Uptime{}, false
		}
		up.Users = n
	}
	for i := range up.Load {
		f, err := strconv.ParseFloat(m[4+i], 64)
		if err != nil {
			return Uptime{}, false
		}
		up.Load[i] = f
	}
	return up, true
}
