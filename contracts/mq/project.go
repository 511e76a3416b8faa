package mq

import "time"

const RoutingKeyProjectUpdated = "project.updated"

// ProjectUpdatedPayload is published after a project record is saved.
type ProjectUpdatedPayload struct {
	ProjectID      string    `json:"project_id"`
	MetricValue    float64   `json:"metric_value"`
	MetricDelta    float64   `json:"metric_delta"`
	MilestoneCount int       `json:"milestone_count"`
	LastUpdated    time.Time `json:"last_updated"`
}
