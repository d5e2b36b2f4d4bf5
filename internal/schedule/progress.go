package schedule

import "github.com/scigolib/mdr/internal/utils"

// Progress records, per level, how many leading planes earlier scheduling
// calls have already selected. It is created once per field and passed to
// every tier's Schedule call in tier order; values only grow.
type Progress struct {
	cursor []int
}

// NewProgress returns all-zero progress for levels levels.
func NewProgress(levels int) *Progress {
	return &Progress{cursor: make([]int, levels)}
}

// RestoreProgress rebuilds progress from saved cursors.
func RestoreProgress(cursor []int) (*Progress, error) {
	for i, c := range cursor {
		if c < 0 {
			return nil, utils.ConfigErrorf("progress", "level %d cursor %d is negative", i, c)
		}
	}
	return &Progress{cursor: append([]int(nil), cursor...)}, nil
}

// Levels returns the number of levels tracked.
func (p *Progress) Levels() int {
	return len(p.cursor)
}

// Level returns the number of planes of level i selected so far.
func (p *Progress) Level(i int) int {
	return p.cursor[i]
}

// Snapshot returns a copy of the cursors.
func (p *Progress) Snapshot() []int {
	return append([]int(nil), p.cursor...)
}

func (p *Progress) advance(level int) int {
	plane := p.cursor[level]
	p.cursor[level]++
	return plane
}
