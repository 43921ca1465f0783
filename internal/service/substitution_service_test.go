package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitution-api/internal/dto"
	"github.com/noah-isme/sma-substitution-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitution-api/pkg/errors"
	"github.com/noah-isme/sma-substitution-api/pkg/jobs"
)

type scheduleSourceStub struct {
	tables map[string]models.SheetTable
	err    error
	calls  int
}

func (s *scheduleSourceStub) ReadDay(_ context.Context, day string) (models.SheetTable, error) {
	s.calls++
	if s.err != nil {
		return models.SheetTable{}, s.err
	}
	table, ok := s.tables[day]
	if !ok {
		return models.SheetTable{}, errors.New("sheet not found")
	}
	return table, nil
}

type ledgerSourceStub struct {
	mu       sync.Mutex
	table    models.SheetTable
	readErr  error
	writeErr error
	written  []models.Ledger
}

func (s *ledgerSourceStub) Read(context.Context) (models.SheetTable, error) {
	return s.table, s.readErr
}

func (s *ledgerSourceStub) Write(_ context.Context, ledger models.Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.written = append(s.written, ledger.Clone())
	return nil
}

type substitutionFixture struct {
	svc       *SubstitutionService
	schedules *scheduleSourceStub
	ledgers   *ledgerSourceStub
}

func newSubstitutionFixture(t *testing.T) substitutionFixture {
	t.Helper()
	schedules := &scheduleSourceStub{tables: map[string]models.SheetTable{
		"Monday": scheduleTable(
			[]string{"Teacher_Name", "Role", "P1", "P2"},
			[]string{"A", "Teacher", "Math", "Physics"},
			[]string{"B", "Teacher", "Free", "Free"},
			[]string{"C", "Teacher", "Free", "Chem"},
		),
	}}
	ledgers := &ledgerSourceStub{table: models.SheetTable{Rows: [][]string{
		{"Teacher_Name", "Debit", "Credit"},
		{"A", "0", "0"},
		{"B", "0", "0"},
		{"C", "0", "0"},
	}}}
	svc := NewSubstitutionService(schedules, ledgers, NewMemoryPlanStore(), NewMetricsService(), nil, zap.NewNop(), SubstitutionConfig{
		Days:           []string{"Sunday", "Monday"},
		Rules:          defaultRules,
		ScheduleLayout: testScheduleLayout,
		LedgerLayout:   testLedgerLayout,
		PlanTTL:        time.Minute,
	})
	svc.now = func() time.Time { return time.Date(2024, 3, 4, 7, 0, 0, 0, time.UTC) }
	svc.seed = func() int64 { return 99 }
	require.NoError(t, svc.Init(context.Background()))
	return substitutionFixture{svc: svc, schedules: schedules, ledgers: ledgers}
}

func TestSubstitutionServiceInitFailsWhenSourceDown(t *testing.T) {
	svc := NewSubstitutionService(&scheduleSourceStub{}, &ledgerSourceStub{readErr: errors.New("dial tcp: refused")}, nil, nil, nil, nil, SubstitutionConfig{LedgerLayout: testLedgerLayout})

	err := svc.Init(context.Background())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSourceUnavailable.Code, appErrors.FromError(err).Code)
	assert.False(t, svc.Ready())

	_, err = svc.CreatePlan(context.Background(), dto.CreatePlanRequest{Day: "Monday", AbsentTeachers: []string{"A"}})
	require.Error(t, err)
}

func TestSubstitutionServiceInitRejectsMalformedLedger(t *testing.T) {
	ledgers := &ledgerSourceStub{table: models.SheetTable{Rows: [][]string{{"Name", "Debit", "Credit"}}}}
	svc := NewSubstitutionService(&scheduleSourceStub{}, ledgers, nil, nil, nil, nil, SubstitutionConfig{LedgerLayout: testLedgerLayout})

	err := svc.Init(context.Background())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrLedgerFormat.Code, appErrors.FromError(err).Code)
}

func TestSubstitutionServiceSchedule(t *testing.T) {
	f := newSubstitutionFixture(t)

	resp, err := f.svc.Schedule(context.Background(), "monday")
	require.NoError(t, err)
	assert.Equal(t, "Monday", resp.Day)
	assert.Equal(t, []string{"P1", "P2"}, resp.Sessions)
	require.Len(t, resp.Teachers, 3)
	assert.Equal(t, 2, resp.Teachers[0].Workload)
	assert.Equal(t, []string{"P1", "P2"}, resp.Teachers[1].FreeSessions)
	assert.Equal(t, []string{"P1"}, resp.Teachers[2].FreeSessions)

	_, err = f.svc.Schedule(context.Background(), "Friday")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSubstitutionServiceScheduleSourceDown(t *testing.T) {
	f := newSubstitutionFixture(t)
	f.schedules.err = errors.New("timeout")

	_, err := f.svc.Schedule(context.Background(), "Monday")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSourceUnavailable.Code, appErrors.FromError(err).Code)
}

func TestSubstitutionServicePlanLifecycle(t *testing.T) {
	f := newSubstitutionFixture(t)
	ctx := context.Background()

	plan, err := f.svc.CreatePlan(ctx, dto.CreatePlanRequest{Day: "Monday", AbsentTeachers: []string{"A"}})
	require.NoError(t, err)
	assert.NotEmpty(t, plan.ID)
	assert.Equal(t, int64(99), plan.Seed)
	assert.Equal(t, 1, plan.LedgerVersion)
	require.Len(t, plan.Slots, 2)
	assert.Equal(t, 2, plan.Filled)
	assert.Equal(t, "B", plan.Slots[1].Substitute)

	fetched, err := f.svc.GetPlan(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.Slots, fetched.Slots)

	reshuffled, err := f.svc.ReshufflePlan(ctx, plan.ID, dto.ReshufflePlanRequest{})
	require.NoError(t, err)
	assert.Equal(t, plan.ID, reshuffled.ID)
	assert.Equal(t, int64(100), reshuffled.Seed)

	explicit := int64(7)
	reshuffled, err = f.svc.ReshufflePlan(ctx, plan.ID, dto.ReshufflePlanRequest{Seed: &explicit})
	require.NoError(t, err)
	assert.Equal(t, int64(7), reshuffled.Seed)

	// P1 has B and C eligible; B holds P2 so it may also take P1.
	p1 := reshuffled.Slots[0]
	target := "C"
	if p1.Substitute == "C" {
		target = "B"
	}
	overridden, err := f.svc.OverrideSlot(ctx, plan.ID, dto.OverrideSlotRequest{AbsentTeacher: "A", Session: "P1", Substitute: target})
	require.NoError(t, err)
	assert.Equal(t, target, overridden.Slots[0].Substitute)
	assert.True(t, overridden.Slots[0].Overridden)

	result, warning, err := f.svc.ConfirmPlan(ctx, plan.ID)
	require.NoError(t, err)
	assert.Nil(t, warning)
	assert.True(t, result.Persisted)
	assert.Equal(t, 2, result.Ledger.Version)
	assert.False(t, result.Ledger.Stale)
	assert.Contains(t, result.Changes, dto.LedgerChange{Name: "A", DebitDelta: 2})

	require.Len(t, f.ledgers.written, 1)
	a, _ := f.ledgers.written[0].Lookup("A")
	assert.Equal(t, 2, a.Debit)
	b, _ := f.ledgers.written[0].Lookup("B")
	c, _ := f.ledgers.written[0].Lookup("C")
	assert.Equal(t, 2, b.Credit+c.Credit)

	_, err = f.svc.GetPlan(ctx, plan.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSubstitutionServiceCreatePlanValidation(t *testing.T) {
	f := newSubstitutionFixture(t)

	_, err := f.svc.CreatePlan(context.Background(), dto.CreatePlanRequest{Day: "Monday"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = f.svc.CreatePlan(context.Background(), dto.CreatePlanRequest{Day: "Monday", AbsentTeachers: []string{"Nobody"}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSubstitutionServiceStalePlan(t *testing.T) {
	f := newSubstitutionFixture(t)
	ctx := context.Background()

	first, err := f.svc.CreatePlan(ctx, dto.CreatePlanRequest{Day: "Monday", AbsentTeachers: []string{"A"}})
	require.NoError(t, err)
	second, err := f.svc.CreatePlan(ctx, dto.CreatePlanRequest{Day: "Monday", AbsentTeachers: []string{"C"}})
	require.NoError(t, err)

	_, _, err = f.svc.ConfirmPlan(ctx, first.ID)
	require.NoError(t, err)

	_, _, err = f.svc.ConfirmPlan(ctx, second.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPlanStale.Code, appErrors.FromError(err).Code)

	ledger, err := f.svc.Ledger(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, ledger.Version)
}

func TestSubstitutionServiceStalePlanSurvivesRestart(t *testing.T) {
	f := newSubstitutionFixture(t)
	ctx := context.Background()
	plans := NewMemoryPlanStore()
	f.svc.plans = plans

	first, err := f.svc.CreatePlan(ctx, dto.CreatePlanRequest{Day: "Monday", AbsentTeachers: []string{"A"}})
	require.NoError(t, err)
	second, err := f.svc.CreatePlan(ctx, dto.CreatePlanRequest{Day: "Monday", AbsentTeachers: []string{"A"}})
	require.NoError(t, err)

	_, _, err = f.svc.ConfirmPlan(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, f.ledgers.written, 1)

	restarted := NewSubstitutionService(f.schedules, &ledgerSourceStub{table: ledgerSheet(f.ledgers.written[0])}, plans, nil, nil, zap.NewNop(), f.svc.cfg)
	require.NoError(t, restarted.Init(ctx))

	_, _, err = restarted.ConfirmPlan(ctx, second.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPlanStale.Code, appErrors.FromError(err).Code)

	ledger, _, err := restarted.LedgerSnapshot()
	require.NoError(t, err)
	entry, ok := ledger.Lookup("A")
	require.True(t, ok)
	assert.Equal(t, 2, entry.Debit)

	fresh, err := restarted.CreatePlan(ctx, dto.CreatePlanRequest{Day: "Monday", AbsentTeachers: []string{"C"}})
	require.NoError(t, err)
	_, _, err = restarted.ConfirmPlan(ctx, fresh.ID)
	require.NoError(t, err)
}

func ledgerSheet(ledger models.Ledger) models.SheetTable {
	rows := [][]string{{"Teacher_Name", "Debit", "Credit"}}
	for _, e := range ledger.Entries {
		rows = append(rows, []string{e.Name, strconv.Itoa(e.Debit), strconv.Itoa(e.Credit)})
	}
	return models.SheetTable{Rows: rows}
}

func TestSubstitutionServiceWriteFailureIsSoft(t *testing.T) {
	f := newSubstitutionFixture(t)
	ctx := context.Background()
	f.ledgers.writeErr = errors.New("sheet locked")

	plan, err := f.svc.CreatePlan(ctx, dto.CreatePlanRequest{Day: "Monday", AbsentTeachers: []string{"A"}})
	require.NoError(t, err)

	result, warning, err := f.svc.ConfirmPlan(ctx, plan.ID)
	require.NoError(t, err)
	require.NotNil(t, warning)
	assert.Equal(t, appErrors.ErrLedgerWriteFailed.Code, warning.Code)
	assert.False(t, result.Persisted)
	assert.True(t, result.Ledger.Stale)
	assert.Equal(t, 2, result.Ledger.Version)

	_, err = f.svc.SyncLedger(ctx)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSourceUnavailable.Code, appErrors.FromError(err).Code)

	f.ledgers.writeErr = nil
	synced, err := f.svc.SyncLedger(ctx)
	require.NoError(t, err)
	assert.False(t, synced.Stale)
	assert.Equal(t, 2, synced.Version)
	require.Len(t, f.ledgers.written, 1)
	assert.Equal(t, 2, f.ledgers.written[0].Version)
}

func TestSubstitutionServiceDiscardPlan(t *testing.T) {
	f := newSubstitutionFixture(t)
	ctx := context.Background()

	plan, err := f.svc.CreatePlan(ctx, dto.CreatePlanRequest{Day: "Monday", AbsentTeachers: []string{"A"}})
	require.NoError(t, err)
	require.NoError(t, f.svc.DiscardPlan(ctx, plan.ID))

	_, _, err = f.svc.ConfirmPlan(ctx, plan.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	ledger, err := f.svc.Ledger(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, ledger.Version)
	assert.Empty(t, f.ledgers.written)

	err = f.svc.DiscardPlan(ctx, "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSubstitutionServicePlanExpires(t *testing.T) {
	f := newSubstitutionFixture(t)
	store := NewMemoryPlanStore()
	current := time.Date(2024, 3, 4, 7, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }
	f.svc.plans = store

	plan, err := f.svc.CreatePlan(context.Background(), dto.CreatePlanRequest{Day: "Monday", AbsentTeachers: []string{"A"}})
	require.NoError(t, err)

	current = current.Add(2 * time.Minute)
	_, err = f.svc.GetPlan(context.Background(), plan.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSubstitutionServiceDays(t *testing.T) {
	f := newSubstitutionFixture(t)
	days := f.svc.Days()
	assert.Equal(t, []string{"Sunday", "Monday"}, days)
	days[0] = "changed"
	assert.Equal(t, "Sunday", f.svc.Days()[0])
}

type retrierStub struct {
	jobs []jobs.Job
}

func (r *retrierStub) Enqueue(job jobs.Job) error {
	r.jobs = append(r.jobs, job)
	return nil
}

func TestSubstitutionServiceSchedulesWriteRetry(t *testing.T) {
	f := newSubstitutionFixture(t)
	ctx := context.Background()
	retrier := &retrierStub{}
	f.svc.UseWriteRetrier(retrier)

	require.NoError(t, f.svc.FlushLedger(ctx))
	assert.Empty(t, f.ledgers.written)

	f.ledgers.writeErr = errors.New("sheet locked")
	plan, err := f.svc.CreatePlan(ctx, dto.CreatePlanRequest{Day: "Monday", AbsentTeachers: []string{"A"}})
	require.NoError(t, err)
	_, warning, err := f.svc.ConfirmPlan(ctx, plan.ID)
	require.NoError(t, err)
	require.NotNil(t, warning)
	require.Len(t, retrier.jobs, 1)
	assert.Equal(t, LedgerSyncJobKey, retrier.jobs[0].Key)

	require.Error(t, f.svc.FlushLedger(ctx))

	f.ledgers.writeErr = nil
	require.NoError(t, f.svc.FlushLedger(ctx))
	require.Len(t, f.ledgers.written, 1)
	ledger, err := f.svc.Ledger(ctx)
	require.NoError(t, err)
	assert.False(t, ledger.Stale)
}
