package dashboard

import (
	"time"

	"statusboard/internal/config"
	"statusboard/internal/model"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a message for the user about the last action.
type Notice struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

func success(msg string) Notice { return Notice{Level: LevelSuccess, Message: msg} }
func warning(msg string) Notice { return Notice{Level: LevelWarning, Message: msg} }
func failure(msg string) Notice { return Notice{Level: LevelError, Message: msg} }

// MilestoneRow is a milestone in display order. Index is what remove
// requests refer to.
type MilestoneRow struct {
	Index int        `json:"index"`
	Date  model.Date `json:"date"`
	Desc  string     `json:"desc"`
}

type FormView struct {
	ProjectID             string               `json:"project_id"`
	Name                  string               `json:"name"`
	NarrativeEnabled      bool                 `json:"narrative_enabled"`
	Record                *model.ProjectRecord `json:"record"`
	Milestones            []MilestoneRow       `json:"milestones"`
	MilestonesPlaceholder string               `json:"milestones_placeholder,omitempty"`
	Dirty                 bool                 `json:"dirty"`
	Notices               []Notice             `json:"notices,omitempty"`
}

// Tile is one project on the summary view.
type Tile struct {
	ProjectID             string         `json:"project_id"`
	Name                  string         `json:"name"`
	Headline              string         `json:"headline"`
	MetricValue           float64        `json:"metric_value"`
	MetricDelta           float64        `json:"metric_delta"`
	Milestones            []MilestoneRow `json:"milestones"`
	MilestonesPlaceholder string         `json:"milestones_placeholder,omitempty"`
	Risk                  string         `json:"risk"`
	LastUpdated           *time.Time     `json:"last_updated,omitempty"`
	Warning               string         `json:"warning,omitempty"`
}

type SummaryView struct {
	GeneratedAt time.Time `json:"generated_at"`
	Projects    []Tile    `json:"projects"`
}

func newTile(p config.Project, rec *model.ProjectRecord) Tile {
	rows, placeholder := milestoneRows(rec.Milestones)
	headline := rec.UpdateSummary
	if headline == "" {
		headline = rec.UpdateBullets
	}
	t := Tile{
		ProjectID:             p.ID,
		Name:                  p.Name,
		Headline:              headline,
		MetricValue:           rec.MetricValue,
		MetricDelta:           rec.MetricDelta,
		Milestones:            rows,
		MilestonesPlaceholder: placeholder,
		Risk:                  rec.Risk,
	}
	if !rec.LastUpdated.IsZero() {
		ts := rec.LastUpdated
		t.LastUpdated = &ts
	}
	return t
}

func milestoneRows(m model.Milestones) ([]MilestoneRow, string) {
	if len(m) == 0 {
		return []MilestoneRow{}, model.EmptyMilestonesPlaceholder
	}
	sorted := m.Sorted()
	rows := make([]MilestoneRow, len(sorted))
	for i, ms := range sorted {
		rows[i] = MilestoneRow{Index: i, Date: ms.Date, Desc: ms.Desc}
	}
	return rows, ""
}
