package notification

import (
	"fmt"
	"time"
)

var monthsPtBR = [...]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

// PtBRFormatter renders slots the way provider notifications read in
// Portuguese, e.g. "dia 05 de março, às 9:00h".
type PtBRFormatter struct {
	Location *time.Location
}

func (f PtBRFormatter) FormatSlot(t time.Time) string {
	loc := f.Location
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return fmt.Sprintf("dia %02d de %s, às %d:%02dh", t.Day(), monthsPtBR[t.Month()-1], t.Hour(), t.Minute())
}
