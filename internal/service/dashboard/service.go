// Package dashboard implements the project forms and the summary view on top
// of the record store. Every operation takes the caller's session, mutates
// it, and returns the view to render next; the caller persists the session.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	mqcontract "statusboard/contracts/mq"
	"statusboard/internal/config"
	"statusboard/internal/model"
	"statusboard/internal/narrative"
	"statusboard/internal/session"
	"statusboard/pkg/logger"
	"statusboard/pkg/mq"
)

var (
	ErrUnknownProject    = errors.New("unknown project")
	ErrValidation        = errors.New("invalid input")
	ErrNarrativeDisabled = errors.New("narrative generation is not available")
	ErrNarrativeFailed   = errors.New("narrative generation failed")
	ErrSaveFailed        = errors.New("save failed")
)

// ProjectStore is implemented by repository.ProjectRepository.
type ProjectStore interface {
	Load(ctx context.Context, projectID string) (*model.ProjectRecord, error)
	Save(ctx context.Context, rec *model.ProjectRecord) (*model.ProjectRecord, error)
}

// Generator is implemented by narrative.Client.
type Generator interface {
	Generate(ctx context.Context, prompt, apiToken string) (string, error)
}

type Service struct {
	projects  []config.Project
	byID      map[string]config.Project
	store     ProjectStore
	generator Generator
	apiToken  string
	publisher mq.EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(
	projects []config.Project,
	store ProjectStore,
	generator Generator,
	apiToken string,
	publisher mq.EventPublisher,
	logger *zap.Logger,
) *Service {
	byID := make(map[string]config.Project, len(projects))
	for _, p := range projects {
		byID[p.ID] = p
	}
	if publisher == nil {
		publisher = mq.NopPublisher{}
	}
	return &Service{
		projects:  projects,
		byID:      byID,
		store:     store,
		generator: generator,
		apiToken:  apiToken,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Projects returns the configured projects in display order.
func (s *Service) Projects() []config.Project {
	return append([]config.Project(nil), s.projects...)
}

// Open returns the form for projectID, loading it into the session on first
// visit. A load failure shows defaults with a warning and is retried on the
// next visit.
func (s *Service) Open(ctx context.Context, sess *session.Session, projectID string) (*FormView, error) {
	p, err := s.project(projectID)
	if err != nil {
		return nil, err
	}
	d, notices := s.draft(ctx, sess, p)
	return s.formView(p, d, notices), nil
}

func (s *Service) AddMilestone(ctx context.Context, sess *session.Session, projectID string, date model.Date, desc string) (*FormView, error) {
	p, err := s.project(projectID)
	if err != nil {
		return nil, err
	}
	d, notices := s.draft(ctx, sess, p)

	if err := d.Record.Milestones.Add(date, desc); err != nil {
		notices = append(notices, warning("Please enter a description for the milestone."))
		return s.formView(p, d, notices), fmt.Errorf("%w: %w", ErrValidation, err)
	}
	d.Dirty = true
	sess.SetDraft(p.ID, d)

	notices = append(notices, success("Added milestone: "+strings.TrimSpace(desc)))
	return s.formView(p, d, notices), nil
}

// RemoveMilestones removes the milestones at the given display positions in
// one batch.
func (s *Service) RemoveMilestones(ctx context.Context, sess *session.Session, projectID string, displayIndices []int) (*FormView, error) {
	p, err := s.project(projectID)
	if err != nil {
		return nil, err
	}
	d, notices := s.draft(ctx, sess, p)

	if len(displayIndices) == 0 {
		notices = append(notices, warning("Select at least one milestone to remove."))
		return s.formView(p, d, notices), fmt.Errorf("%w: no milestones selected", ErrValidation)
	}
	if err := d.Record.Milestones.RemoveDisplayed(displayIndices...); err != nil {
		notices = append(notices, warning("That milestone no longer exists; the list has been refreshed."))
		return s.formView(p, d, notices), fmt.Errorf("%w: %w", ErrValidation, err)
	}
	d.Dirty = true
	sess.SetDraft(p.ID, d)

	notices = append(notices, success("Milestone(s) removed."))
	return s.formView(p, d, notices), nil
}

// GenerateNarrative stores bullets in the draft and asks the model to turn
// them into prose. The bullets are kept whatever the outcome; the summary is
// only replaced on success.
func (s *Service) GenerateNarrative(ctx context.Context, sess *session.Session, projectID, bullets string) (*FormView, error) {
	p, err := s.project(projectID)
	if err != nil {
		return nil, err
	}
	d, notices := s.draft(ctx, sess, p)
	log := logger.WithTrace(ctx, s.logger).With(zap.String("project_id", p.ID))

	if !s.narrativeEnabled(p) {
		notices = append(notices, warning(fmt.Sprintf("Narrative generation is not available for %s.", p.Name)))
		return s.formView(p, d, notices), ErrNarrativeDisabled
	}

	d.Record.UpdateBullets = bullets
	d.Dirty = true
	sess.SetDraft(p.ID, d)

	if strings.TrimSpace(bullets) == "" {
		d.Record.UpdateSummary = ""
		notices = append(notices, warning("Please enter some update points to generate an update."))
		return s.formView(p, d, notices), fmt.Errorf("%w: update points are empty", ErrValidation)
	}

	text, err := s.generator.Generate(ctx, narrative.BuildPrompt(p.Name, bullets), s.apiToken)
	if err != nil {
		log.Warn("Narrative generation failed", zap.Error(err))
		notices = append(notices, failure("Update generation failed: "+err.Error()))
		return s.formView(p, d, notices), fmt.Errorf("%w: %w", ErrNarrativeFailed, err)
	}

	d.Record.UpdateSummary = strings.TrimSpace(text)
	if d.Record.UpdateSummary == "" {
		notices = append(notices, warning("The model returned an empty update."))
	} else {
		notices = append(notices, success("Update generated!"))
	}
	return s.formView(p, d, notices), nil
}

// FormInput is the submitted form.
type FormInput struct {
	UpdateBullets string  `json:"update_bullets"`
	MetricValue   float64 `json:"metric_value"`
	MetricDelta   float64 `json:"metric_delta"`
	Risk          string  `json:"risk"`
}

// Submit applies the form to the draft and saves it. On failure the draft
// keeps the submitted values and stays dirty.
func (s *Service) Submit(ctx context.Context, sess *session.Session, projectID string, in FormInput) (*FormView, error) {
	p, err := s.project(projectID)
	if err != nil {
		return nil, err
	}
	d, notices := s.draft(ctx, sess, p)
	log := logger.WithTrace(ctx, s.logger).With(zap.String("project_id", p.ID))

	d.Record.UpdateBullets = in.UpdateBullets
	d.Record.MetricValue = in.MetricValue
	d.Record.MetricDelta = in.MetricDelta
	d.Record.Risk = in.Risk
	d.Dirty = true
	sess.SetDraft(p.ID, d)

	saved, err := s.store.Save(ctx, d.Record)
	if err != nil {
		log.Error("Failed to save project", zap.Error(err))
		notices = append(notices, failure(fmt.Sprintf("Could not save %s data: %v", p.Name, err)))
		return s.formView(p, d, notices), fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}

	d = &session.Draft{Record: saved}
	sess.SetDraft(p.ID, d)
	notices = append(notices, success(fmt.Sprintf("%s data updated successfully!", p.Name)))

	event := mqcontract.ProjectUpdatedPayload{
		ProjectID:      saved.ProjectID,
		MetricValue:    saved.MetricValue,
		MetricDelta:    saved.MetricDelta,
		MilestoneCount: len(saved.Milestones),
		LastUpdated:    saved.LastUpdated,
	}
	if err := s.publisher.Publish(ctx, mqcontract.RoutingKeyProjectUpdated, event); err != nil {
		log.Warn("Failed to publish project.updated", zap.Error(err))
	}

	return s.formView(p, d, notices), nil
}

// Summary reads every configured project from the store.
func (s *Service) Summary(ctx context.Context) *SummaryView {
	view := &SummaryView{
		GeneratedAt: s.now().UTC(),
		Projects:    make([]Tile, 0, len(s.projects)),
	}
	for _, p := range s.projects {
		rec, err := s.load(ctx, p.ID)
		tile := newTile(p, rec)
		if err != nil {
			logger.WithTrace(ctx, s.logger).Warn("Summary load degraded",
				zap.String("project_id", p.ID),
				zap.Error(err),
			)
			tile.Warning = fmt.Sprintf("Could not load saved data for %s; showing defaults.", p.Name)
		}
		view.Projects = append(view.Projects, tile)
	}
	return view
}

func (s *Service) project(id string) (config.Project, error) {
	p, ok := s.byID[id]
	if !ok {
		return config.Project{}, fmt.Errorf("%w: %q", ErrUnknownProject, id)
	}
	return p, nil
}

// load never returns a nil record.
func (s *Service) load(ctx context.Context, projectID string) (*model.ProjectRecord, error) {
	rec, err := s.store.Load(ctx, projectID)
	if rec == nil {
		rec = model.NewProjectRecord(projectID)
	}
	return rec, err
}

func (s *Service) narrativeEnabled(p config.Project) bool {
	return p.Narrative && s.apiToken != "" && s.generator != nil
}

// draft returns the session's working copy of p, loading it when absent. A
// draft loaded with errors is not kept in the session until it is mutated.
func (s *Service) draft(ctx context.Context, sess *session.Session, p config.Project) (*session.Draft, []Notice) {
	if d := sess.Draft(p.ID); d != nil && d.Record != nil {
		return d, nil
	}

	rec, err := s.load(ctx, p.ID)
	d := &session.Draft{Record: rec}
	if err != nil {
		logger.WithTrace(ctx, s.logger).Warn("Loading project degraded to defaults",
			zap.String("project_id", p.ID),
			zap.Error(err),
		)
		return d, []Notice{warning(fmt.Sprintf("Could not load saved data for %s; showing defaults. (%v)", p.Name, err))}
	}
	sess.SetDraft(p.ID, d)
	return d, nil
}

func (s *Service) formView(p config.Project, d *session.Draft, notices []Notice) *FormView {
	rows, placeholder := milestoneRows(d.Record.Milestones)
	return &FormView{
		ProjectID:             p.ID,
		Name:                  p.Name,
		NarrativeEnabled:      s.narrativeEnabled(p),
		Record:                d.Record,
		Milestones:            rows,
		MilestonesPlaceholder: placeholder,
		Dirty:                 d.Dirty,
		Notices:               notices,
	}
}
