package notification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPtBRFormatter(t *testing.T) {
	tests := []struct {
		name string
		loc  *time.Location
		in   time.Time
		want string
	}{
		{
			name: "utc by default",
			in:   time.Date(2030, 3, 5, 9, 0, 0, 0, time.UTC),
			want: "dia 05 de março, às 9:00h",
		},
		{
			name: "afternoon",
			in:   time.Date(2030, 12, 24, 16, 0, 0, 0, time.UTC),
			want: "dia 24 de dezembro, às 16:00h",
		},
		{
			name: "local zone crosses midnight",
			loc:  time.FixedZone("BRT", -3*3600),
			in:   time.Date(2030, 1, 1, 1, 0, 0, 0, time.UTC),
			want: "dia 31 de dezembro, às 22:00h",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := PtBRFormatter{Location: tt.loc}
			assert.Equal(t, tt.want, f.FormatSlot(tt.in))
		})
	}
}
