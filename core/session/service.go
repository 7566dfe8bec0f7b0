package session

import (
	"context"
	"fmt"
	"net/mail"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/avamec/salas/core"
	"github.com/avamec/salas/core/monitor"
	"github.com/avamec/salas/core/presence"
	"github.com/avamec/salas/core/roster"
	"github.com/avamec/salas/core/summary"
)

var (
	// errors
	ErrNotFound      = errors.New("session not found")
	ErrKeyExists     = errors.New("a session with this key already exists")
	ErrNoRecipients  = errors.New("no alert recipients")
	errUnknownCohort = "unknown cohort"
)

// nowFunc is mockable in tests.
var nowFunc = func() time.Time { return time.Now().UTC() }

type (
	// Repository persists sessions.
	Repository interface {
		CreateSession(ctx context.Context, s Session) (Session, error)
		GetSession(ctx context.Context, key string) (Session, error) // ErrNotFound
		UpdateSession(ctx context.Context, s Session) (Session, error)
		DeleteSession(ctx context.Context, key string) error
	}

	ServiceInterface interface {
		Create(ctx context.Context) (Session, error)
		GetOrCreate(ctx context.Context, key string) (Session, error)
		Get(ctx context.Context, key string) (Session, error)
		Delete(ctx context.Context, key string) error
		LoadRoster(ctx context.Context, key string, in RosterInput) (roster.LoadResult, error)
		RecordPresence(ctx context.Context, key string, in PresenceInput) (presence.Snapshot, error)
		Rooms(ctx context.Context, key string, cohort roster.Cohort) (monitor.Report, error)
		Stats(ctx context.Context, key string, cohort roster.Cohort) (monitor.Stats, error)
		Problems(ctx context.Context, key string, cohort roster.Cohort) ([]monitor.ParticipantStatus, error)
		Analyze(ctx context.Context, key string, cohort roster.Cohort) (summary.Analysis, error)
		SendAlerts(ctx context.Context, key string, cohort roster.Cohort) ([]string, error)
	}

	Service struct {
		repo       Repository
		loader     *roster.Loader
		validate   *validator.Validate
		analyzer   *summary.Analyzer
		mailSvc    core.EmailService
		logger     core.Logger
		sampleSize int
		recipients []mail.Address

		mu sync.Mutex // serializes read-modify-write of sessions
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(
	conf *core.Config,
	repo Repository,
	validate *validator.Validate,
	analyzer *summary.Analyzer,
	mailSvc core.EmailService,
	logger core.Logger,
) *Service {
	recipients := make([]mail.Address, 0, len(conf.AlertRecipients))
	for _, r := range conf.AlertRecipients {
		if addr, err := mail.ParseAddress(r); err == nil {
			recipients = append(recipients, *addr)
		} else {
			logger.Warn(fmt.Sprintf("session: ignoring alert recipient %q: %v", r, err))
		}
	}

	return &Service{
		repo:       repo,
		loader:     roster.NewLoader(roster.Options{NumRooms: conf.Monitor.NumRooms, Cohorts: roster.ParseCohorts(conf.Monitor.Cohorts)}, validate, logger),
		validate:   validate,
		analyzer:   analyzer,
		mailSvc:    mailSvc,
		logger:     logger,
		sampleSize: conf.Monitor.ProblemSampleSize,
		recipients: recipients,
	}
}

// Create starts a session under a fresh random key.
func (svc *Service) Create(ctx context.Context) (Session, error) {
	return svc.repo.CreateSession(ctx, New(uuid.NewString(), nowFunc()))
}

// GetOrCreate returns the session stored under key, creating it when missing.
func (svc *Service) GetOrCreate(ctx context.Context, key string) (Session, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.getOrCreate(ctx, key)
}

func (svc *Service) getOrCreate(ctx context.Context, key string) (Session, error) {
	if err := svc.validate.Var(key, "notblank"); err != nil {
		return Session{}, core.NewFieldError("key", "this field cannot be blank")
	}
	s, err := svc.repo.GetSession(ctx, key)
	if errors.Cause(err) == ErrNotFound {
		return svc.repo.CreateSession(ctx, New(key, nowFunc()))
	}
	return s, err
}

func (svc *Service) Get(ctx context.Context, key string) (Session, error) {
	return svc.repo.GetSession(ctx, key)
}

func (svc *Service) Delete(ctx context.Context, key string) error {
	return svc.repo.DeleteSession(ctx, key)
}

// LoadRoster replaces the roster of the session. A missing required column leaves the session untouched.
func (svc *Service) LoadRoster(ctx context.Context, key string, in RosterInput) (roster.LoadResult, error) {
	if err := svc.validate.Struct(in); err != nil {
		return roster.LoadResult{}, err
	}
	res, err := svc.loader.Load(in.Table())
	if err != nil {
		return roster.LoadResult{}, err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	s, err := svc.getOrCreate(ctx, key)
	if err != nil {
		return roster.LoadResult{}, errors.Wrap(err, "getting session")
	}
	now := nowFunc()
	s.Roster = res.Roster
	s.Columns = res.Columns
	s.Skipped = res.Skipped
	if s.Skipped == nil {
		s.Skipped = []roster.SkippedRow{}
	}
	s.RosterLoadedAt = null.TimeFrom(now)
	s.UpdatedAt = now
	if _, err = svc.repo.UpdateSession(ctx, s); err != nil {
		return roster.LoadResult{}, errors.Wrap(err, "saving roster")
	}
	return res, nil
}

// RecordPresence replaces the presence snapshot of the session. When any room lacks
// its cohort, cohorts are inferred from the session roster.
func (svc *Service) RecordPresence(ctx context.Context, key string, in PresenceInput) (presence.Snapshot, error) {
	if err := svc.validate.Struct(in); err != nil {
		return nil, err
	}
	for _, r := range in.Rooms {
		if r.Cohort.Known() && !svc.knownCohort(r.Cohort) {
			return nil, svc.cohortError(r.Cohort)
		}
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	s, err := svc.getOrCreate(ctx, key)
	if err != nil {
		return nil, errors.Wrap(err, "getting session")
	}
	var snap presence.Snapshot
	if in.cohortAware() {
		snap = presence.Build(in.byRoomKey())
	} else {
		snap = presence.BuildFromRooms(in.byRoom(), s.Roster)
	}
	now := nowFunc()
	s.Presence = snap
	s.PresenceRecordedAt = null.TimeFrom(now)
	s.UpdatedAt = now
	if _, err = svc.repo.UpdateSession(ctx, s); err != nil {
		return nil, errors.Wrap(err, "saving presence")
	}
	return snap, nil
}

func (svc *Service) knownCohort(c roster.Cohort) bool {
	for _, known := range svc.loader.Options().Cohorts {
		if known == c {
			return true
		}
	}
	return false
}

func (svc *Service) cohortError(c roster.Cohort) error {
	return core.NewFieldError("cohort", "%s %q", errUnknownCohort, c)
}

func (svc *Service) reconcile(ctx context.Context, key string, cohort roster.Cohort) (monitor.Report, error) {
	if cohort.Known() && !svc.knownCohort(cohort) {
		return nil, svc.cohortError(cohort)
	}
	s, err := svc.repo.GetSession(ctx, key)
	if err != nil {
		return nil, err
	}
	return monitor.Reconcile(s.Roster, s.Presence, cohort), nil
}

// Rooms reconciles the session, optionally restricted to one cohort.
func (svc *Service) Rooms(ctx context.Context, key string, cohort roster.Cohort) (monitor.Report, error) {
	return svc.reconcile(ctx, key, cohort)
}

func (svc *Service) Stats(ctx context.Context, key string, cohort roster.Cohort) (monitor.Stats, error) {
	report, err := svc.reconcile(ctx, key, cohort)
	if err != nil {
		return monitor.Stats{}, err
	}
	return monitor.Aggregate(report, cohort), nil
}

func (svc *Service) Problems(ctx context.Context, key string, cohort roster.Cohort) ([]monitor.ParticipantStatus, error) {
	report, err := svc.reconcile(ctx, key, cohort)
	if err != nil {
		return nil, err
	}
	return report.Problems(), nil
}

// Analyze narrates the session state. Summarizer failures degrade to the template analysis.
func (svc *Service) Analyze(ctx context.Context, key string, cohort roster.Cohort) (summary.Analysis, error) {
	report, err := svc.reconcile(ctx, key, cohort)
	if err != nil {
		return summary.Analysis{}, err
	}
	d := summary.NewDigest(report, monitor.Aggregate(report, cohort), svc.sampleSize)
	return svc.analyzer.Analyze(ctx, d), nil
}

// SendAlerts e-mails the alert digest of the session to the configured recipients
// and returns the alert lines.
func (svc *Service) SendAlerts(ctx context.Context, key string, cohort roster.Cohort) ([]string, error) {
	report, err := svc.reconcile(ctx, key, cohort)
	if err != nil {
		return nil, err
	}
	alerts := summary.Alerts(report.Problems())
	if len(svc.recipients) == 0 {
		return alerts, ErrNoRecipients
	}
	svc.mailSvc.SendMessages(summary.AlertDigestEmail(monitor.Aggregate(report, cohort), alerts, svc.recipients...))
	svc.logger.Info(fmt.Sprintf("session: sent %d alerts to %d recipients", len(alerts), len(svc.recipients)),
		core.Actor{ID: key})
	return alerts, nil
}
