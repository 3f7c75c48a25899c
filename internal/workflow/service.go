// Package workflow is the orchestrator: every editorial intent resolves the
// caller's roles, checks permission, applies the change and appends the
// activity entry inside a single atomic unit.
package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"journalflow.org/internal/activity"
	"journalflow.org/internal/audit"
	"journalflow.org/internal/obs"
	"journalflow.org/internal/policy"
	"journalflow.org/internal/roles"
)

const (
	defaultStoreTimeout = 10 * time.Second
	defaultDownloadTTL  = 15 * time.Minute
	// SystemActor marks activity performed by the scheduler.
	SystemActor = "system"
)

// ServiceOption configures Service.
type ServiceOption func(*Service) error

// Service exposes the editorial intents.
type Service struct {
	store       Store
	now         func() time.Time
	timeout     time.Duration
	downloadTTL time.Duration
	cache       UsersCache
	scheduler   PublishScheduler
	objects     ObjectStorage
	feed        *activity.Feed
	publisher   ActivityPublisher
	log         zerolog.Logger
}

func New(store Store, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("workflow: store is required")
	}
	s := &Service{
		store:       store,
		now:         func() time.Time { return time.Now().UTC() },
		timeout:     defaultStoreTimeout,
		downloadTTL: defaultDownloadTTL,
		log:         obs.Logger().With().Str("component", "workflow").Logger(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.publisher == nil && s.feed != nil {
		s.publisher = localFeed{s.feed}
	}
	return s, nil
}

// WithClock overrides the time source used for transitions and validation.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) error {
		if now == nil {
			return errors.New("workflow: clock is nil")
		}
		s.now = func() time.Time { return now().UTC() }
		return nil
	}
}

// WithStoreTimeout bounds every intent. Zero disables the bound.
func WithStoreTimeout(d time.Duration) ServiceOption {
	return func(s *Service) error {
		if d < 0 {
			return errors.New("workflow: negative store timeout")
		}
		s.timeout = d
		return nil
	}
}

func WithUsersCache(c UsersCache) ServiceOption {
	return func(s *Service) error {
		s.cache = c
		return nil
	}
}

func WithScheduler(p PublishScheduler) ServiceOption {
	return func(s *Service) error {
		s.scheduler = p
		return nil
	}
}

func WithObjectStorage(o ObjectStorage, downloadTTL time.Duration) ServiceOption {
	return func(s *Service) error {
		s.objects = o
		if downloadTTL > 0 {
			s.downloadTTL = downloadTTL
		}
		return nil
	}
}

// WithFeed serves live subscribers from f. Unless WithActivityPublisher is
// also given, committed entries are published straight into f.
func WithFeed(f *activity.Feed) ServiceOption {
	return func(s *Service) error {
		s.feed = f
		return nil
	}
}

// WithActivityPublisher routes committed entries through p instead of the
// local feed, e.g. to reach subscribers in other processes.
func WithActivityPublisher(p ActivityPublisher) ServiceOption {
	return func(s *Service) error {
		s.publisher = p
		return nil
	}
}

func WithLogger(l zerolog.Logger) ServiceOption {
	return func(s *Service) error {
		s.log = l.With().Str("component", "workflow").Logger()
		return nil
	}
}

// Now returns the service clock.
func (s *Service) Now() time.Time { return s.now() }

// run bounds fn by the store timeout, maps its error into the taxonomy and
// records the outcome.
func (s *Service) run(ctx context.Context, intent string, fn func(ctx context.Context) error) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	err := s.classify(ctx, intent, fn(ctx))
	outcome := "ok"
	if err != nil {
		outcome = string(KindOf(err))
	}
	obs.ObserveIntent(intent, outcome)
	return err
}

// authorize resolves actor's roles in pctx and evaluates action against them.
func (s *Service) authorize(ctx context.Context, r Repos, actor string, action policy.Action, pctx policy.Context) error {
	held, err := s.rolesIn(ctx, r, actor, pctx.ID)
	if err != nil {
		return err
	}
	if !policy.CanPerform(held, action, pctx) {
		return newError(KindForbidden, "you are not allowed to %s", describe(action))
	}
	return nil
}

// rolesIn resolves the roles actor holds in contextID, site-wide ones included.
func (s *Service) rolesIn(ctx context.Context, r Repos, actor, contextID string) (roles.Set, error) {
	if actor == "" {
		return nil, newError(KindForbidden, "authentication required")
	}
	assignments, err := r.Roles().ListForUser(ctx, actor)
	if err != nil {
		return nil, err
	}
	return roles.EffectiveIn(assignments, contextID), nil
}

func describe(a policy.Action) string {
	switch a {
	case policy.ManageUsers:
		return "manage users in this journal"
	case policy.ViewUsers:
		return "view users in this journal"
	case policy.PublishSubmission:
		return "publish this version"
	case policy.SchedulePublication:
		return "schedule this version"
	case policy.CreateVersion:
		return "create publication versions"
	case policy.CreateSubmission:
		return "submit to this journal"
	case policy.ViewActivity:
		return "view this activity log"
	case policy.EditLibraryFile:
		return "edit library files"
	case policy.ViewLibraryFile:
		return "view library files"
	case policy.CreateJournal:
		return "create journals"
	case policy.EditJournalSettings:
		return "edit journal settings"
	case policy.DeleteJournal:
		return "delete this journal"
	case policy.EditSubmissionFiles, policy.AuthorSubmissionFiles:
		return "access this submission's files"
	}
	return string(a)
}

// appendEntry writes e through r, stamping actor and time.
func (s *Service) appendEntry(ctx context.Context, r Repos, actor string, e activity.Entry) (activity.Entry, error) {
	e.ActorID = actor
	e.CreatedAt = s.now()
	if err := e.Validate(); err != nil {
		return activity.Entry{}, err
	}
	out, err := r.Activity().Append(ctx, e)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return activity.Entry{}, err
		}
		return activity.Entry{}, errors.Join(activity.ErrWriteFailure, err)
	}
	return out, nil
}

// committed runs post-commit side effects for an entry.
func (s *Service) committed(ctx context.Context, event string, e activity.Entry, fields map[string]any) {
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, e); err != nil {
			s.log.Warn().Err(err).Int64("sequence", e.Sequence).Msg("activity fan-out failed")
		}
	}
	if fields == nil {
		fields = map[string]any{}
	}
	fields["context_id"] = e.ContextID
	fields["activity_sequence"] = e.Sequence
	if e.SubmissionID != "" {
		fields["submission_id"] = e.SubmissionID
	}
	_ = audit.LogEvent(ctx, event, fields)
}

func (s *Service) invalidateUsers(ctx context.Context, contextID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, contextID); err != nil {
		s.log.Warn().Err(err).Str("context_id", contextID).Msg("users cache invalidation failed")
	}
}
