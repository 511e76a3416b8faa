package model

import "time"

// ProjectRecord is the persisted status of one workstream. A project with no
// stored row is equivalent to NewProjectRecord(id).
type ProjectRecord struct {
	ProjectID     string     `json:"project_id"`
	UpdateBullets string     `json:"update_bullets"`
	UpdateSummary string     `json:"update_summary"`
	MetricValue   float64    `json:"metric_value"`
	MetricDelta   float64    `json:"metric_delta"`
	Risk          string     `json:"risk"`
	Milestones    Milestones `json:"milestones"`
	LastUpdated   time.Time  `json:"last_updated"`
}

// NewProjectRecord returns the all-defaults record for id.
func NewProjectRecord(id string) *ProjectRecord {
	return &ProjectRecord{
		ProjectID:  id,
		Milestones: Milestones{},
	}
}

// Clone returns a copy that shares no milestone storage with r.
func (r *ProjectRecord) Clone() *ProjectRecord {
	c := *r
	c.Milestones = append(Milestones{}, r.Milestones...)
	return &c
}
