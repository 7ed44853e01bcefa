package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"competition-service/internal/domain"
	"competition-service/internal/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Settings are the competition rules loaded once at process start.
type Settings struct {
	Window                  domain.Window
	WarningThreshold        int
	TrustClientWarningCount bool
	EnforceSubmitDeadline   bool
}

// Option customizes a CompetitionService.
type Option func(*CompetitionService)

// WithLocker serializes mutating operations per user through l.
func WithLocker(l Locker) Option {
	return func(s *CompetitionService) { s.locker = l }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *CompetitionService) { s.logger = l }
}

func WithMetrics(m *metrics.Collector) Option {
	return func(s *CompetitionService) { s.metrics = m }
}

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *CompetitionService) { s.now = now }
}

// CompetitionService is the participation state machine:
// not started -> active -> completed | disqualified.
type CompetitionService struct {
	settings       Settings
	participations ParticipationStore
	activity       ActivityLogStore
	questions      QuestionSource
	locker         Locker
	ledger         AnswerLedger
	monitor        *ActivityMonitor
	metrics        *metrics.Collector
	logger         *zap.Logger
	now            func() time.Time
}

func NewCompetitionService(settings Settings, participations ParticipationStore, activity ActivityLogStore, questions QuestionSource, opts ...Option) *CompetitionService {
	s := &CompetitionService{
		settings:       settings,
		participations: participations,
		activity:       activity,
		questions:      questions,
		locker:         noopLocker{},
		logger:         zap.NewNop(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.monitor = NewActivityMonitor(activity, settings.WarningThreshold, settings.TrustClientWarningCount, s.logger)
	return s
}

// WindowConfig describes the window as seen at the current instant.
func (s *CompetitionService) WindowConfig() WindowView {
	w := s.settings.Window
	now := s.now()
	return WindowView{
		StartTime:                 w.Start,
		EntranceDeadline:          w.EntranceDeadline(),
		AbsoluteEndTime:           w.AbsoluteEnd(),
		Length:                    int64(w.Length / time.Second),
		EntranceDuration:          int64(w.EntranceDuration / time.Second),
		Phase:                     w.PhaseAt(now),
		Now:                       now,
		SecondsUntilStart:         int64(w.Start.Sub(now) / time.Second),
		SecondsUntilEntranceClose: int64(w.EntranceDeadline().Sub(now) / time.Second),
		SecondsUntilEnd:           int64(w.AbsoluteEnd().Sub(now) / time.Second),
	}
}

// Status reports the user's lifecycle state and recomputed remaining time.
func (s *CompetitionService) Status(ctx context.Context, userID string) (StatusView, error) {
	p, err := s.participations.FindActiveOrFinished(ctx, userID)
	if err != nil {
		return StatusView{}, s.storageErr("find participation", userID, err)
	}
	return s.statusOf(p, s.now()), nil
}

// Progress is Status plus the ledger. Remaining time is always recomputed.
func (s *CompetitionService) Progress(ctx context.Context, userID string) (ProgressView, error) {
	p, err := s.participations.FindActiveOrFinished(ctx, userID)
	if err != nil {
		return ProgressView{}, s.storageErr("find participation", userID, err)
	}
	view := ProgressView{
		StatusView: s.statusOf(p, s.now()),
		Answers:    []domain.AnswerEntry{},
	}
	view.RemainingFormatted = domain.FormatSeconds(view.RemainingSeconds)
	if p != nil {
		view.Answers = append(view.Answers, p.Answers...)
		view.AnsweredCount = len(p.Answers)
		view.Notes = p.Notes
	}
	return view, nil
}

// Join starts the user's single attempt. A duplicate join while active returns
// the existing session together with domain.ErrAlreadyActive.
func (s *CompetitionService) Join(ctx context.Context, userID string) (JoinResult, error) {
	unlock, err := s.lock(ctx, userID)
	if err != nil {
		return JoinResult{}, err
	}
	defer unlock()

	now := s.now()
	existing, err := s.participations.FindActiveOrFinished(ctx, userID)
	if err != nil {
		return JoinResult{}, s.storageErr("find participation", userID, err)
	}
	if existing != nil {
		return s.rejectJoin(ctx, existing, now)
	}

	if phase := s.settings.Window.PhaseAt(now); phase != domain.PhaseEnterable {
		s.metrics.Join("window_closed")
		return JoinResult{}, fmt.Errorf("%w: competition is %s", domain.ErrWindowNotJoinable, phase)
	}

	questions, err := s.publicQuestions(ctx)
	if err != nil {
		return JoinResult{}, err
	}

	remaining := s.settings.Window.RemainingSeconds(now, now)
	p := &domain.Participation{
		ID:            uuid.NewString(),
		UserID:        userID,
		StartTime:     now,
		Status:        domain.StatusActive,
		Answers:       []domain.AnswerEntry{},
		TimeRemaining: &remaining,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.participations.Create(ctx, p); err != nil {
		if errors.Is(err, domain.ErrAlreadyActive) {
			// lost a create race; report whatever the winner stored
			winner, findErr := s.participations.FindActiveOrFinished(ctx, userID)
			if findErr != nil {
				return JoinResult{}, s.storageErr("find participation", userID, findErr)
			}
			if winner != nil {
				return s.rejectJoin(ctx, winner, now)
			}
			s.metrics.Join("already_active")
			return JoinResult{}, domain.ErrAlreadyActive
		}
		return JoinResult{}, s.storageErr("create participation", userID, err)
	}

	s.metrics.Join("ok")
	s.logger.Info("participant joined",
		zap.String("user_id", userID),
		zap.String("participation_id", p.ID),
		zap.Int64("remaining_seconds", remaining))
	return JoinResult{
		ParticipationID:  p.ID,
		StartTime:        p.StartTime,
		EndTime:          s.settings.Window.UserEndTime(p.StartTime),
		RemainingSeconds: remaining,
		Questions:        questions,
	}, nil
}

func (s *CompetitionService) rejectJoin(ctx context.Context, existing *domain.Participation, now time.Time) (JoinResult, error) {
	if existing.Status.Terminal() {
		s.metrics.Join("already_attempted")
		return JoinResult{}, domain.ErrAlreadyAttempted
	}
	s.metrics.Join("already_active")
	result := JoinResult{
		ParticipationID:  existing.ID,
		StartTime:        existing.StartTime,
		EndTime:          s.settings.Window.UserEndTime(existing.StartTime),
		RemainingSeconds: s.settings.Window.RemainingSeconds(existing.StartTime, now),
	}
	if questions, err := s.publicQuestions(ctx); err == nil {
		result.Questions = questions
	}
	return result, domain.ErrAlreadyActive
}

// Submit upserts the answer for questionID. By default late answers are accepted
// for as long as the participation is active; Settings.EnforceSubmitDeadline
// rejects them once the participant's effective deadline has passed.
func (s *CompetitionService) Submit(ctx context.Context, userID, questionID, rawAnswer string) (domain.AnswerEntry, error) {
	unlock, err := s.lock(ctx, userID)
	if err != nil {
		return domain.AnswerEntry{}, err
	}
	defer unlock()

	now := s.now()
	p, err := s.participations.FindActiveOrFinished(ctx, userID)
	if err != nil {
		return domain.AnswerEntry{}, s.storageErr("find participation", userID, err)
	}
	if p == nil {
		return domain.AnswerEntry{}, domain.ErrNoActiveSession
	}
	if p.Status.Terminal() {
		return domain.AnswerEntry{}, domain.ErrAlreadyAttempted
	}

	questions, err := s.loadQuestions(ctx)
	if err != nil {
		return domain.AnswerEntry{}, err
	}
	question, ok := findQuestion(questions, questionID)
	if !ok {
		return domain.AnswerEntry{}, domain.ErrQuestionNotFound
	}

	if s.settings.EnforceSubmitDeadline && !now.Before(s.settings.Window.UserEndTime(p.StartTime)) {
		return domain.AnswerEntry{}, domain.ErrSubmissionClosed
	}

	entry, err := s.ledger.Upsert(p, question, rawAnswer, now)
	if err != nil {
		return domain.AnswerEntry{}, err
	}
	s.touch(p, now)
	if err := s.participations.Save(ctx, p); err != nil {
		return domain.AnswerEntry{}, s.storageErr("save answer", userID, err)
	}

	s.metrics.Answer()
	s.logger.Debug("answer recorded",
		zap.String("user_id", userID),
		zap.String("question_id", questionID))
	return entry, nil
}

// LogActivity records an anomaly report and auto-submits the active session once
// the warning count exceeds the threshold. Recording is best-effort; only a
// failure to persist the auto-submission is reported.
func (s *CompetitionService) LogActivity(ctx context.Context, userID string, report ActivityReport) (ActivityAck, error) {
	if !report.Type.Valid() {
		return ActivityAck{}, fmt.Errorf("%w: unknown type %q", domain.ErrInvalidActivity, report.Type)
	}

	unlock, err := s.lock(ctx, userID)
	if err != nil {
		return ActivityAck{}, err
	}
	defer unlock()

	now := s.now()
	active, err := s.participations.FindActive(ctx, userID)
	if err != nil {
		s.logger.Warn("active participation lookup failed, logging without session",
			zap.String("user_id", userID),
			zap.Error(err))
		active = nil
	}

	entry := s.monitor.Record(ctx, userID, active, report, now)
	s.metrics.Activity(string(report.Type))
	ack := ActivityAck{Acknowledged: true, WarningCount: entry.WarningCount}

	if !s.monitor.EnforceThreshold(active, entry.WarningCount, now) {
		return ack, nil
	}

	s.touch(active, now)
	if err := s.participations.Save(ctx, active); err != nil {
		return ack, s.storageErr("auto-submit participation", userID, err)
	}
	ack.AutoSubmitted = true
	s.metrics.AutoSubmission()
	s.metrics.Finish("activity_threshold")
	s.logger.Warn("participation auto-submitted",
		zap.String("user_id", userID),
		zap.String("participation_id", active.ID),
		zap.Int("warning_count", entry.WarningCount))
	return ack, nil
}

// Finish completes the user's active session. A second call is rejected with
// domain.ErrAlreadyAttempted and leaves the first end time untouched.
func (s *CompetitionService) Finish(ctx context.Context, userID string) (FinishResult, error) {
	unlock, err := s.lock(ctx, userID)
	if err != nil {
		return FinishResult{}, err
	}
	defer unlock()

	now := s.now()
	p, err := s.participations.FindActiveOrFinished(ctx, userID)
	if err != nil {
		return FinishResult{}, s.storageErr("find participation", userID, err)
	}
	if p == nil {
		return FinishResult{}, domain.ErrNoActiveSession
	}
	if p.Status.Terminal() {
		return FinishResult{}, domain.ErrAlreadyAttempted
	}

	s.complete(p, now, "")
	if err := s.participations.Save(ctx, p); err != nil {
		return FinishResult{}, s.storageErr("finish participation", userID, err)
	}
	s.metrics.Finish("user")
	s.logger.Info("participant finished",
		zap.String("user_id", userID),
		zap.String("participation_id", p.ID))
	return FinishResult{EndTime: *p.EndTime}, nil
}

// Results reports the user's answers against the canonical question list.
func (s *CompetitionService) Results(ctx context.Context, userID string) (ResultsView, error) {
	p, err := s.participations.FindActiveOrFinished(ctx, userID)
	if err != nil {
		return ResultsView{}, s.storageErr("find participation", userID, err)
	}
	if p == nil {
		return ResultsView{}, domain.ErrNoParticipationFound
	}

	questions, err := s.loadQuestions(ctx)
	if err != nil {
		return ResultsView{}, err
	}
	public, err := PublicQuestions(questions)
	if err != nil {
		return ResultsView{}, err
	}
	results := s.ledger.ResultsFor(p, questions)

	now := s.now()
	spentUntil := now
	endTime := s.settings.Window.UserEndTime(p.StartTime)
	if p.EndTime != nil {
		spentUntil = *p.EndTime
		endTime = *p.EndTime
	}
	spent := int64(spentUntil.Sub(p.StartTime) / time.Minute)
	if spent < 0 {
		spent = 0
	}

	return ResultsView{
		TotalQuestions:   len(questions),
		Questions:        public,
		UserAnswers:      results,
		AnsweredCount:    answeredCount(results),
		StartTime:        p.StartTime,
		EndTime:          endTime,
		SubmissionTime:   p.UpdatedAt,
		TimeSpentMinutes: spent,
		Status:           p.Status,
		Notes:            p.Notes,
	}, nil
}

// Reset removes every participation and activity entry. Admin only.
func (s *CompetitionService) Reset(ctx context.Context, caller domain.Identity) error {
	if !caller.IsAdmin() {
		return domain.ErrUnauthorized
	}
	if err := s.participations.Reset(ctx); err != nil {
		return s.storageErr("reset participations", caller.UserID, err)
	}
	if err := s.activity.Reset(ctx); err != nil {
		return s.storageErr("reset activity logs", caller.UserID, err)
	}
	s.logger.Warn("competition data reset", zap.String("admin_id", caller.UserID))
	return nil
}

// Disqualify ends the target user's active session as disqualified. Admin only.
func (s *CompetitionService) Disqualify(ctx context.Context, caller domain.Identity, targetUserID, reason string) (domain.Participation, error) {
	if !caller.IsAdmin() {
		return domain.Participation{}, domain.ErrUnauthorized
	}

	unlock, err := s.lock(ctx, targetUserID)
	if err != nil {
		return domain.Participation{}, err
	}
	defer unlock()

	now := s.now()
	p, err := s.participations.FindActive(ctx, targetUserID)
	if err != nil {
		return domain.Participation{}, s.storageErr("find active participation", targetUserID, err)
	}
	if p == nil {
		return domain.Participation{}, domain.ErrNoActiveSession
	}

	end := now
	p.Status = domain.StatusDisqualified
	p.EndTime = &end
	if reason == "" {
		reason = "no reason given"
	}
	p.Notes = fmt.Sprintf("Disqualified by %s: %s", caller.UserID, reason)
	s.touch(p, now)
	if err := s.participations.Save(ctx, p); err != nil {
		return domain.Participation{}, s.storageErr("disqualify participation", targetUserID, err)
	}
	s.metrics.Finish("disqualified")
	s.logger.Warn("participant disqualified",
		zap.String("user_id", targetUserID),
		zap.String("admin_id", caller.UserID))
	return *p, nil
}

// FinishExpired completes every active participation whose effective deadline
// has passed. It is an operator action; nothing schedules it.
func (s *CompetitionService) FinishExpired(ctx context.Context) (int, error) {
	active, err := s.participations.ListActive(ctx)
	if err != nil {
		return 0, s.storageErr("list active participations", "", err)
	}

	finished := 0
	for _, candidate := range active {
		if s.settings.Window.RemainingSeconds(candidate.StartTime, s.now()) > 0 {
			continue
		}
		done, err := s.finishIfExpired(ctx, candidate.UserID)
		if err != nil {
			return finished, err
		}
		if done {
			finished++
		}
	}
	return finished, nil
}

func (s *CompetitionService) finishIfExpired(ctx context.Context, userID string) (bool, error) {
	unlock, err := s.lock(ctx, userID)
	if err != nil {
		return false, err
	}
	defer unlock()

	now := s.now()
	p, err := s.participations.FindActive(ctx, userID)
	if err != nil {
		return false, s.storageErr("find active participation", userID, err)
	}
	if p == nil || s.settings.Window.RemainingSeconds(p.StartTime, now) > 0 {
		return false, nil
	}
	s.complete(p, now, "Finished by operator after the time limit passed")
	if err := s.participations.Save(ctx, p); err != nil {
		return false, s.storageErr("finish expired participation", userID, err)
	}
	s.metrics.Finish("sweep")
	return true, nil
}

func (s *CompetitionService) complete(p *domain.Participation, now time.Time, notes string) {
	end := now
	p.Status = domain.StatusCompleted
	p.EndTime = &end
	if notes != "" {
		p.Notes = notes
	}
	s.touch(p, now)
}

// touch refreshes the bookkeeping fields written with every save.
func (s *CompetitionService) touch(p *domain.Participation, now time.Time) {
	remaining := int64(0)
	if p.Status == domain.StatusActive {
		remaining = s.settings.Window.RemainingSeconds(p.StartTime, now)
	}
	p.TimeRemaining = &remaining
	p.UpdatedAt = now
}

func (s *CompetitionService) statusOf(p *domain.Participation, now time.Time) StatusView {
	if p == nil {
		return StatusView{Status: domain.StatusNotStarted}
	}
	start := p.StartTime
	view := StatusView{Status: p.Status, StartTime: &start}
	if p.Status == domain.StatusActive {
		end := s.settings.Window.UserEndTime(p.StartTime)
		view.EndTime = &end
		view.RemainingSeconds = s.settings.Window.RemainingSeconds(p.StartTime, now)
		return view
	}
	if p.EndTime != nil {
		end := *p.EndTime
		view.EndTime = &end
	}
	return view
}

func (s *CompetitionService) loadQuestions(ctx context.Context) ([]domain.Question, error) {
	questions, err := s.questions.Questions(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrQuestionBankEmpty) {
			return nil, err
		}
		return nil, s.storageErr("load questions", "", err)
	}
	if len(questions) == 0 {
		return nil, domain.ErrQuestionBankEmpty
	}
	return questions, nil
}

func (s *CompetitionService) publicQuestions(ctx context.Context) ([]domain.PublicQuestion, error) {
	questions, err := s.loadQuestions(ctx)
	if err != nil {
		return nil, err
	}
	return PublicQuestions(questions)
}

func (s *CompetitionService) lock(ctx context.Context, userID string) (func(), error) {
	unlock, err := s.locker.Lock(ctx, userID)
	if err != nil {
		return nil, s.storageErr("acquire user lock", userID, err)
	}
	return unlock, nil
}

// storageErr logs a persistence fault with context and wraps it as
// domain.ErrStorageFailure. Conflicts keep their own kind.
func (s *CompetitionService) storageErr(op, userID string, err error) error {
	if errors.Is(err, domain.ErrConcurrentUpdate) {
		s.logger.Warn("concurrent participation update",
			zap.String("op", op),
			zap.String("user_id", userID))
		return err
	}
	s.logger.Error("storage failure",
		zap.String("op", op),
		zap.String("user_id", userID),
		zap.Error(err))
	if errors.Is(err, domain.ErrStorageFailure) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorageFailure, err)
}
