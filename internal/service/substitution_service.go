package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitution-api/internal/dto"
	"github.com/noah-isme/sma-substitution-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitution-api/pkg/errors"
	"github.com/noah-isme/sma-substitution-api/pkg/jobs"
	"github.com/noah-isme/sma-substitution-api/pkg/logger"
)

// LedgerSyncJobKey identifies the background ledger write-back job.
const LedgerSyncJobKey = "ledger-sync"

type scheduleSource interface {
	ReadDay(ctx context.Context, day string) (models.SheetTable, error)
}

type ledgerSource interface {
	Read(ctx context.Context) (models.SheetTable, error)
	Write(ctx context.Context, ledger models.Ledger) error
}

type writeRetrier interface {
	Enqueue(job jobs.Job) error
}

// SubstitutionConfig governs planning and settlement.
type SubstitutionConfig struct {
	Days           []string
	Rules          models.EligibilityRules
	ScheduleLayout models.ScheduleLayout
	LedgerLayout   models.LedgerLayout
	Policy         SettlementPolicy
	PlanTTL        time.Duration
	SourceTimeout  time.Duration
}

// SubstitutionService runs the plan, reshuffle, override and confirm flow and
// owns the in-memory ledger.
type SubstitutionService struct {
	schedules scheduleSource
	ledgers   ledgerSource
	plans     PlanStore
	metrics   *MetricsService
	retrier   writeRetrier
	validator *validator.Validate
	logger    *zap.Logger
	cfg       SubstitutionConfig

	mu     sync.RWMutex
	ledger models.Ledger
	loaded bool
	stale  bool

	now  func() time.Time
	seed func() int64
}

// NewSubstitutionService wires the substitution flow.
func NewSubstitutionService(
	schedules scheduleSource,
	ledgers ledgerSource,
	plans PlanStore,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg SubstitutionConfig,
) *SubstitutionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if plans == nil {
		plans = NewMemoryPlanStore()
	}
	if cfg.PlanTTL <= 0 {
		cfg.PlanTTL = 30 * time.Minute
	}
	if cfg.SourceTimeout <= 0 {
		cfg.SourceTimeout = 10 * time.Second
	}
	if cfg.Rules.WorkloadCap <= 0 {
		cfg.Rules.WorkloadCap = 6
	}
	if cfg.Rules.FairnessCap <= 0 {
		cfg.Rules.FairnessCap = 4
	}
	return &SubstitutionService{
		schedules: schedules,
		ledgers:   ledgers,
		plans:     plans,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
		seed:      func() int64 { return time.Now().UnixNano() },
	}
}

// UseWriteRetrier schedules failed ledger write-backs on r.
func (s *SubstitutionService) UseWriteRetrier(r writeRetrier) {
	s.retrier = r
}

// Init loads the ledger from its source. The service refuses to plan until
// this has succeeded.
func (s *SubstitutionService) Init(ctx context.Context) error {
	table, err := s.readLedger(ctx)
	if err != nil {
		return err
	}
	ledger, err := LoadLedger(table, s.cfg.LedgerLayout)
	if err != nil {
		return err
	}
	ledger.Version = 1

	s.mu.Lock()
	s.ledger = ledger
	s.loaded = true
	s.stale = false
	s.mu.Unlock()

	s.metrics.SetLedgerVersion(ledger.Version)
	s.logger.Info("ledger loaded", zap.Int("teachers", len(ledger.Entries)), zap.Int("ledger_version", ledger.Version))
	return nil
}

// Ready reports whether the ledger has been loaded.
func (s *SubstitutionService) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Days lists the selectable days.
func (s *SubstitutionService) Days() []string {
	days := make([]string, len(s.cfg.Days))
	copy(days, s.cfg.Days)
	return days
}

// Schedule returns the parsed schedule of day.
func (s *SubstitutionService) Schedule(ctx context.Context, day string) (*dto.DayScheduleResponse, error) {
	schedule, err := s.loadSchedule(ctx, day)
	if err != nil {
		return nil, err
	}
	resp := &dto.DayScheduleResponse{
		Day:      schedule.Day,
		Sessions: schedule.Sessions,
		Teachers: make([]dto.ScheduleTeacherView, 0, len(schedule.Teachers)),
	}
	for _, teacher := range schedule.Teachers {
		free := make([]string, 0)
		for _, session := range schedule.Sessions {
			if schedule.IsFreeAt(teacher.Name, session) {
				free = append(free, session)
			}
		}
		resp.Teachers = append(resp.Teachers, dto.ScheduleTeacherView{
			Name:         teacher.Name,
			Role:         teacher.Role,
			Workload:     schedule.Workload(teacher.Name),
			FreeSessions: free,
			Cells:        teacher.Cells,
		})
	}
	return resp, nil
}

// CreatePlan builds and stores a new plan for the requested day.
func (s *SubstitutionService) CreatePlan(ctx context.Context, req dto.CreatePlanRequest) (*dto.PlanResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid plan payload")
	}
	ledger, err := s.ledgerForPlanning()
	if err != nil {
		return nil, err
	}
	schedule, err := s.loadSchedule(ctx, req.Day)
	if err != nil {
		return nil, err
	}

	seed := s.seed()
	if req.Seed != nil {
		seed = *req.Seed
	}
	plan, err := BuildPlan(schedule, ledger, req.AbsentTeachers, seed, s.cfg.Rules)
	if err != nil {
		return nil, err
	}
	plan.ID = uuid.NewString()
	plan.CreatedAt = s.now()

	if err := s.savePlan(ctx, plan); err != nil {
		return nil, err
	}
	s.metrics.RecordPlan("create", len(plan.Slots)-plan.Unfilled(), plan.Unfilled())
	s.logPlan(ctx, "plan built", plan)
	return s.planView(plan), nil
}

// GetPlan returns an unconfirmed plan.
func (s *SubstitutionService) GetPlan(ctx context.Context, id string) (*dto.PlanResponse, error) {
	plan, err := s.findPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.planView(plan), nil
}

// ReshufflePlan recomputes the plan from its snapshots with another seed,
// dropping any manual overrides.
func (s *SubstitutionService) ReshufflePlan(ctx context.Context, id string, req dto.ReshufflePlanRequest) (*dto.PlanResponse, error) {
	plan, err := s.findPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	seed := plan.Seed + 1
	if req.Seed != nil {
		seed = *req.Seed
	}
	next, err := Reshuffle(plan, seed)
	if err != nil {
		return nil, err
	}
	if err := s.savePlan(ctx, next); err != nil {
		return nil, err
	}
	s.metrics.RecordPlan("reshuffle", len(next.Slots)-next.Unfilled(), next.Unfilled())
	s.logPlan(ctx, "plan reshuffled", next)
	return s.planView(next), nil
}

// OverrideSlot replaces the substitute of one slot.
func (s *SubstitutionService) OverrideSlot(ctx context.Context, id string, req dto.OverrideSlotRequest) (*dto.PlanResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid override payload")
	}
	plan, err := s.findPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := Override(plan, strings.TrimSpace(req.AbsentTeacher), strings.TrimSpace(req.Session), req.Substitute)
	if err != nil {
		return nil, err
	}
	if err := s.savePlan(ctx, next); err != nil {
		return nil, err
	}
	s.metrics.RecordOverride()
	s.log(ctx).Info("plan slot overridden",
		zap.String("plan_id", next.ID),
		zap.String("absent_teacher", req.AbsentTeacher),
		zap.String("session", req.Session),
		zap.String("substitute", req.Substitute),
	)
	return s.planView(next), nil
}

// DiscardPlan drops an unconfirmed plan. The ledger is left untouched.
func (s *SubstitutionService) DiscardPlan(ctx context.Context, id string) error {
	if _, err := s.findPlan(ctx, id); err != nil {
		return err
	}
	if err := s.plans.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to discard plan")
	}
	s.log(ctx).Info("plan discarded", zap.String("plan_id", id))
	return nil
}

// ConfirmPlan settles the plan into the ledger and writes the result back.
// A failed write is reported as a warning: the new ledger stays in memory,
// is flagged stale and can be pushed again with SyncLedger.
func (s *SubstitutionService) ConfirmPlan(ctx context.Context, id string) (*dto.SettlementResponse, *appErrors.Error, error) {
	plan, err := s.findPlan(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return nil, nil, appErrors.Clone(appErrors.ErrSourceUnavailable, "ledger has not been loaded")
	}
	if plan.LedgerVersion != s.ledger.Version || plan.Ledger.Fingerprint() != s.ledger.Fingerprint() {
		return nil, nil, appErrors.Clone(appErrors.ErrPlanStale,
			fmt.Sprintf("plan was built from ledger version %d but the ledger has changed since (now version %d); rebuild the plan", plan.LedgerVersion, s.ledger.Version))
	}

	previous := s.ledger
	next, err := Settle(previous, plan.Schedule, plan.AbsentTeachers, plan, s.cfg.Policy)
	if err != nil {
		return nil, nil, err
	}
	s.ledger = next

	if err := s.plans.Delete(ctx, plan.ID); err != nil {
		s.log(ctx).Warn("failed to drop confirmed plan", zap.String("plan_id", plan.ID), zap.Error(err))
	}

	var warning *appErrors.Error
	persisted := true
	if err := s.writeLedger(ctx, next); err != nil {
		persisted = false
		s.stale = true
		warning = appErrors.Wrap(err, appErrors.ErrLedgerWriteFailed.Code, appErrors.ErrLedgerWriteFailed.Status, appErrors.ErrLedgerWriteFailed.Message)
		s.log(ctx).Error("ledger write-back failed", zap.String("plan_id", plan.ID), zap.Int("ledger_version", next.Version), zap.Error(err))
		s.scheduleRetry("confirm " + plan.ID)
	} else {
		s.stale = false
	}

	s.metrics.RecordSettlement(persisted, next.Version)
	s.log(ctx).Info("plan confirmed",
		zap.String("plan_id", plan.ID),
		zap.String("day", plan.Day),
		zap.Int("ledger_version", next.Version),
		zap.Bool("persisted", persisted),
	)

	resp := &dto.SettlementResponse{
		PlanID:    plan.ID,
		Persisted: persisted,
		Ledger:    ledgerView(next, s.stale),
		Changes:   ledgerChanges(previous, next),
	}
	return resp, warning, nil
}

// Ledger returns the current ledger snapshot.
func (s *SubstitutionService) Ledger(_ context.Context) (*dto.LedgerResponse, error) {
	ledger, stale, err := s.LedgerSnapshot()
	if err != nil {
		return nil, err
	}
	view := ledgerView(ledger, stale)
	return &view, nil
}

// LedgerSnapshot returns a copy of the current ledger and whether it still
// has to be written back.
func (s *SubstitutionService) LedgerSnapshot() (models.Ledger, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		return models.Ledger{}, false, appErrors.Clone(appErrors.ErrSourceUnavailable, "ledger has not been loaded")
	}
	return s.ledger.Clone(), s.stale, nil
}

// SyncLedger writes the in-memory ledger to the source again.
func (s *SubstitutionService) SyncLedger(ctx context.Context) (*dto.LedgerResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return nil, appErrors.Clone(appErrors.ErrSourceUnavailable, "ledger has not been loaded")
	}
	if err := s.writeLedger(ctx, s.ledger); err != nil {
		s.stale = true
		return nil, appErrors.Wrap(err, appErrors.ErrSourceUnavailable.Code, appErrors.ErrSourceUnavailable.Status, "failed to write ledger")
	}
	s.stale = false
	s.logger.Info("ledger synced", zap.Int("ledger_version", s.ledger.Version))
	view := ledgerView(s.ledger, false)
	return &view, nil
}

// FlushLedger writes the ledger only when the last write-back failed. It is
// the handler of the background retry job.
func (s *SubstitutionService) FlushLedger(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded || !s.stale {
		return nil
	}
	if err := s.writeLedger(ctx, s.ledger); err != nil {
		return err
	}
	s.stale = false
	s.logger.Info("ledger write-back recovered", zap.Int("ledger_version", s.ledger.Version))
	return nil
}

func (s *SubstitutionService) scheduleRetry(reason string) {
	if s.retrier == nil {
		return
	}
	if err := s.retrier.Enqueue(jobs.Job{Key: LedgerSyncJobKey, Reason: reason}); err != nil {
		s.logger.Warn("failed to schedule ledger write-back retry", zap.Error(err))
	}
}

func (s *SubstitutionService) ledgerForPlanning() (models.Ledger, error) {
	ledger, _, err := s.LedgerSnapshot()
	return ledger, err
}

func (s *SubstitutionService) resolveDay(day string) (string, error) {
	day = strings.TrimSpace(day)
	if len(s.cfg.Days) == 0 {
		if day == "" {
			return "", appErrors.Clone(appErrors.ErrValidation, "day is required")
		}
		return day, nil
	}
	for _, d := range s.cfg.Days {
		if strings.EqualFold(d, day) {
			return d, nil
		}
	}
	return "", appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("unknown day %q", day))
}

func (s *SubstitutionService) loadSchedule(ctx context.Context, day string) (models.DaySchedule, error) {
	resolved, err := s.resolveDay(day)
	if err != nil {
		return models.DaySchedule{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.SourceTimeout)
	defer cancel()

	start := time.Now()
	table, err := s.schedules.ReadDay(ctx, resolved)
	s.metrics.ObserveSourceCall("read_schedule", time.Since(start), err)
	if err != nil {
		return models.DaySchedule{}, appErrors.Wrap(err, appErrors.ErrSourceUnavailable.Code, appErrors.ErrSourceUnavailable.Status,
			fmt.Sprintf("failed to read %s schedule", resolved))
	}
	return LoadDaySchedule(resolved, table, s.cfg.ScheduleLayout)
}

func (s *SubstitutionService) readLedger(ctx context.Context) (models.SheetTable, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.SourceTimeout)
	defer cancel()

	start := time.Now()
	table, err := s.ledgers.Read(ctx)
	s.metrics.ObserveSourceCall("read_ledger", time.Since(start), err)
	if err != nil {
		return models.SheetTable{}, appErrors.Wrap(err, appErrors.ErrSourceUnavailable.Code, appErrors.ErrSourceUnavailable.Status, "failed to read ledger")
	}
	return table, nil
}

func (s *SubstitutionService) writeLedger(ctx context.Context, ledger models.Ledger) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.SourceTimeout)
	defer cancel()

	start := time.Now()
	err := s.ledgers.Write(ctx, ledger)
	s.metrics.ObserveSourceCall("write_ledger", time.Since(start), err)
	return err
}

func (s *SubstitutionService) findPlan(ctx context.Context, id string) (models.Plan, error) {
	if strings.TrimSpace(id) == "" {
		return models.Plan{}, appErrors.Clone(appErrors.ErrValidation, "plan id is required")
	}
	plan, err := s.plans.Get(ctx, id)
	if err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			s.metrics.RecordPlanLookup(false)
			return models.Plan{}, appErrors.Clone(appErrors.ErrNotFound, "plan not found or expired")
		}
		return models.Plan{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load plan")
	}
	s.metrics.RecordPlanLookup(true)
	return plan, nil
}

func (s *SubstitutionService) savePlan(ctx context.Context, plan models.Plan) error {
	if err := s.plans.Save(ctx, plan, s.cfg.PlanTTL); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store plan")
	}
	return nil
}

func (s *SubstitutionService) log(ctx context.Context) *zap.Logger {
	return logger.WithRequest(ctx, s.logger)
}

func (s *SubstitutionService) logPlan(ctx context.Context, msg string, plan models.Plan) {
	s.log(ctx).Info(msg,
		zap.String("plan_id", plan.ID),
		zap.String("day", plan.Day),
		zap.Int64("seed", plan.Seed),
		zap.Int("slots", len(plan.Slots)),
		zap.Int("unfilled", plan.Unfilled()),
		zap.Int("ledger_version", plan.LedgerVersion),
	)
	if len(plan.Unresolved) > 0 {
		s.log(ctx).Warn("schedule teachers missing from ledger", zap.String("day", plan.Day), zap.Strings("teachers", plan.Unresolved))
	}
}

func (s *SubstitutionService) planView(plan models.Plan) *dto.PlanResponse {
	resp := &dto.PlanResponse{
		ID:             plan.ID,
		Day:            plan.Day,
		AbsentTeachers: plan.AbsentTeachers,
		Seed:           plan.Seed,
		WorkloadCap:    plan.Rules.WorkloadCap,
		FairnessCap:    plan.Rules.FairnessCap,
		LedgerVersion:  plan.LedgerVersion,
		Slots:          make([]dto.PlanSlotView, 0, len(plan.Slots)),
		Unfilled:       plan.Unfilled(),
		Unresolved:     plan.Unresolved,
		CreatedAt:      plan.CreatedAt,
		ExpiresAt:      s.now().Add(s.cfg.PlanTTL),
	}
	resp.Filled = len(plan.Slots) - resp.Unfilled
	for _, slot := range plan.Slots {
		eligible := slot.Eligible
		if eligible == nil {
			eligible = []string{}
		}
		alternatives := Alternatives(plan, slot.AbsentTeacher, slot.Session)
		if alternatives == nil {
			alternatives = []string{}
		}
		resp.Slots = append(resp.Slots, dto.PlanSlotView{
			AbsentTeacher: slot.AbsentTeacher,
			Session:       slot.Session,
			Substitute:    slot.Substitute,
			NoCandidate:   !slot.Filled(),
			Overridden:    slot.Overridden,
			Eligible:      eligible,
			Alternatives:  alternatives,
		})
	}
	return resp
}

func ledgerView(ledger models.Ledger, stale bool) dto.LedgerResponse {
	view := dto.LedgerResponse{
		Version:  ledger.Version,
		Stale:    stale,
		Balances: make([]dto.LedgerBalanceView, 0, len(ledger.Entries)),
	}
	for _, b := range ledger.Balances() {
		view.Balances = append(view.Balances, dto.LedgerBalanceView{Name: b.Name, Debit: b.Debit, Credit: b.Credit, Net: b.Net})
	}
	return view
}

func ledgerChanges(previous, next models.Ledger) []dto.LedgerChange {
	changes := make([]dto.LedgerChange, 0)
	for _, entry := range next.Entries {
		before, _ := previous.Lookup(entry.Name)
		debit := entry.Debit - before.Debit
		credit := entry.Credit - before.Credit
		if debit == 0 && credit == 0 {
			continue
		}
		changes = append(changes, dto.LedgerChange{Name: entry.Name, DebitDelta: debit, CreditDelta: credit})
	}
	return changes
}
