package grid

// ChangeLog lists every cell written during a run in write order. First[t] is
// the position in Cells where tick t started.
type ChangeLog struct {
	Cells []int
	First []int
}

func NewChangeLog() *ChangeLog {
	return &ChangeLog{First: []int{0}}
}

func (l *ChangeLog) Reset() {
	l.Cells = l.Cells[:0]
	l.First = append(l.First[:0], 0)
}

func (l *ChangeLog) Add(i int) {
	l.Cells = append(l.Cells, i)
}

// EndTick marks the start of the next tick.
func (l *ChangeLog) EndTick() {
	l.First = append(l.First, len(l.Cells))
}

// Since returns the cells written from the start of tick t onward.
func (l *ChangeLog) Since(t int) []int {
	if t < 0 || t >= len(l.First) {
		return nil
	}
	return l.Cells[l.First[t]:]
}

// Tick returns the cells written during tick t.
func (l *ChangeLog) Tick(t int) []int {
	if t < 0 || t >= len(l.First) {
		return nil
	}
	end := len(l.Cells)
	if t+1 < len(l.First) {
		end = l.First[t+1]
	}
	return l.Cells[l.First[t]:end]
}
