package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseUptime(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		want  Uptime
		valid bool
	}{
		{
			name:  "procps days",
			in:    " 14:02:11 up 3 days,  4:05,  2 users,  load average: 0.00, 0.01, 0.05",
			want:  Uptime{Clock: "14:02:11", Up: "3 days,  4:05", Users: 2, Load: [3]float64{0, 0.01, 0.05}},
			valid: true,
		},
		{
			name:  "procps minutes single user",
			in:    "09:15:00 up 12 min,  1 user,  load average: 0.10, 0.20, 0.30",
			want:  Uptime{Clock: "09:15:00", Up: "12 min", Users: 1, Load: [3]float64{0.1, 0.2, 0.3}},
			valid: true,
		},
		{
			name:  "busybox without users",
			in:    " 14:02:11 up  4:05,  load average: 0.00, 0.01, 0.05",
			want:  Uptime{Clock: "14:02:11", Up: "4:05", Users: -1, Load: [3]float64{0, 0.01, 0.05}},
			valid: true,
		},
		{
			name:  "bsd",
			in:    "14:02  up 5 days, 3:01, 2 users, load averages: 1.20 1.31 1.42",
			want:  Uptime{Clock: "14:02", Up: "5 days, 3:01", Users: 2, Load: [3]float64{1.2, 1.31, 1.42}},
			valid: true,
		},
		{name: "garbage", in: "command not found"},
		{name: "empty", in: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseUptime(tt.in)
			assert.Equal(t, tt.valid, ok)
			if tt.valid {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
