package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/audit"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/metrics"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/pkg/model"
	"go.uber.org/zap"
)

type mockMedicationSource struct {
	mock.Mock
}

func (m *mockMedicationSource) Today(ctx context.Context) []model.Medication {
	return m.Called(ctx).Get(0).([]model.Medication)
}

func (m *mockMedicationSource) Stats(ctx context.Context) model.MedicationStats {
	return m.Called(ctx).Get(0).(model.MedicationStats)
}

func (m *mockMedicationSource) MarkAsTaken(ctx context.Context, id model.FlexID, notes string) error {
	return m.Called(ctx, id.String(), notes).Error(0)
}

func (m *mockMedicationSource) Add(ctx context.Context, input model.MedicationInput) (model.Medication, error) {
	args := m.Called(ctx, input)
	return args.Get(0).(model.Medication), args.Error(1)
}

func (m *mockMedicationSource) Update(ctx context.Context, id model.FlexID, input model.MedicationInput) (model.Medication, error) {
	args := m.Called(ctx, id.String(), input)
	return args.Get(0).(model.Medication), args.Error(1)
}

func (m *mockMedicationSource) Delete(ctx context.Context, id model.FlexID) error {
	return m.Called(ctx, id.String()).Error(0)
}

func med(id string, remaining int, status model.MedicationStatus) model.Medication {
	return model.Medication{ID: model.NewFlexID(id), Name: "Med " + id, Remaining: remaining, Status: status}
}

func validInput() model.MedicationInput {
	return model.MedicationInput{
		Name:         "Lisinopril",
		Instructions: "One tablet in the morning",
		NextDose:     "08:00",
		RefillDate:   "2025-07-01",
		Remaining:    "30",
	}
}

func newBoard(source MedicationSource) (*MedicationBoard, *audit.Logger) {
	auditLogger := audit.NewLogger(zap.NewNop(), 50)
	return NewMedicationBoard(source, auditLogger, nil, zap.NewNop()), auditLogger
}

func TestMedicationBoard_MarkAsTakenChangesOnlyThatRecord(t *testing.T) {
	source := &mockMedicationSource{}
	source.On("Today", mock.Anything).Return([]model.Medication{
		med("1", 1, model.MedicationStatusUpcoming),
		med("2", 5, model.MedicationStatusUpcoming),
	})
	source.On("MarkAsTaken", mock.Anything, "1", "").Return(nil)

	board, auditLogger := newBoard(source)
	var changes []Change
	board.OnChange(func(c Change) { changes = append(changes, c) })

	ctx := audit.WithSessionID(context.Background(), "s1")
	board.Load(ctx)

	updated, err := board.MarkAsTaken(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, 0, updated.Remaining)
	assert.Equal(t, model.MedicationStatusCompleted, updated.Status)

	items := board.Items()
	assert.Equal(t, 0, items[0].Remaining)
	assert.Equal(t, model.MedicationStatusCompleted, items[0].Status)
	assert.Equal(t, med("2", 5, model.MedicationStatusUpcoming), items[1])
	assert.Equal(t, []Change{ChangeMedications}, changes)

	logs := auditLogger.GetAuditLogs("s1", 0)
	require.Len(t, logs, 1)
	assert.Equal(t, audit.ResourceMedicationDose, logs[0].ResourceType)

	_, err = board.MarkAsTaken(ctx, "1")
	assert.ErrorIs(t, err, ErrMedicationCompleted)
	source.AssertNumberOfCalls(t, "MarkAsTaken", 1)
}

func TestMedicationBoard_MarkAsTakenFailureLeavesStateUnchanged(t *testing.T) {
	source := &mockMedicationSource{}
	source.On("Today", mock.Anything).Return([]model.Medication{med("7", 3, model.MedicationStatusUpcoming)})
	source.On("MarkAsTaken", mock.Anything, "7", "").Return(errors.New("backend returned status 500"))

	board, _ := newBoard(source)
	board.Load(context.Background())

	_, err := board.MarkAsTaken(context.Background(), "7")
	require.Error(t, err)
	assert.Equal(t, med("7", 3, model.MedicationStatusUpcoming), board.Items()[0])

	_, err = board.MarkAsTaken(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrMedicationNotFound)
}

func TestMedicationBoard_WritesBeforeLoadReadTheListFirst(t *testing.T) {
	source := &mockMedicationSource{}
	source.On("Today", mock.Anything).Return([]model.Medication{
		med("3", 4, model.MedicationStatusUpcoming),
		med("4", 2, model.MedicationStatusUpcoming),
	}).Once()
	source.On("MarkAsTaken", mock.Anything, "3", "").Return(nil)

	board, _ := newBoard(source)
	updated, err := board.MarkAsTaken(context.Background(), "3")
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Remaining)
	assert.True(t, board.Loaded())

	fresh, _ := newBoard(source)
	source.On("Today", mock.Anything).Return([]model.Medication{med("4", 2, model.MedicationStatusUpcoming)}).Once()
	source.On("Delete", mock.Anything, "4").Return(nil)
	require.NoError(t, fresh.Delete(context.Background(), "4"))
	assert.Empty(t, fresh.Items())
	source.AssertNumberOfCalls(t, "Today", 2)
}

func TestMedicationBoard_AddValidatesBeforeSending(t *testing.T) {
	source := &mockMedicationSource{}
	board, _ := newBoard(source)

	_, err := board.Add(context.Background(), model.MedicationInput{Name: "Aspirin"})
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	source.AssertNotCalled(t, "Add", mock.Anything, mock.Anything)
}

func TestMedicationBoard_AddReloads(t *testing.T) {
	source := &mockMedicationSource{}
	source.On("Add", mock.Anything, validInput()).Return(med("9", 30, model.MedicationStatusUpcoming), nil)
	source.On("Today", mock.Anything).Return([]model.Medication{med("9", 30, model.MedicationStatusUpcoming)})

	board, _ := newBoard(source)
	created, err := board.Add(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, "9", created.ID.String())
	assert.Len(t, board.Items(), 1)
	source.AssertNumberOfCalls(t, "Today", 1)
}

func TestMedicationBoard_UpdateAndDelete(t *testing.T) {
	source := &mockMedicationSource{}
	source.On("Today", mock.Anything).Return([]model.Medication{
		med("1", 10, model.MedicationStatusUpcoming),
		med("2", 10, model.MedicationStatusUpcoming),
	}).Once()
	board, _ := newBoard(source)
	board.Load(context.Background())

	source.On("Update", mock.Anything, "1", validInput()).Return(med("1", 30, model.MedicationStatusUpcoming), nil)
	source.On("Today", mock.Anything).Return([]model.Medication{
		med("1", 30, model.MedicationStatusUpcoming),
		med("2", 10, model.MedicationStatusUpcoming),
	})

	_, err := board.Update(context.Background(), "1", validInput())
	require.NoError(t, err)
	assert.Equal(t, 30, board.Items()[0].Remaining)

	source.On("Delete", mock.Anything, "2").Return(errors.New("backend returned status 409")).Once()
	require.Error(t, board.Delete(context.Background(), "2"))
	assert.Len(t, board.Items(), 2)

	source.On("Delete", mock.Anything, "2").Return(nil).Once()
	require.NoError(t, board.Delete(context.Background(), "2"))
	require.Len(t, board.Items(), 1)
	assert.Equal(t, "1", board.Items()[0].ID.String())

	assert.ErrorIs(t, board.Delete(context.Background(), "2"), ErrMedicationNotFound)
}

func TestMedicationBoard_ReadFailureDegradesToEmpty(t *testing.T) {
	source := &mockMedicationSource{}
	source.On("Today", mock.Anything).Return([]model.Medication{})
	source.On("Stats", mock.Anything).Return(model.MedicationStats{})

	board, _ := newBoard(source)
	assert.Empty(t, board.Load(context.Background()))
	assert.True(t, board.Loaded())
	assert.Equal(t, model.MedicationStats{}, board.Stats(context.Background()))
}

// gatedSource hands every Today call to the test, which answers it when it likes
type gatedSource struct {
	mockMedicationSource
	calls chan chan []model.Medication
	marks chan error
}

func newGatedSource() *gatedSource {
	return &gatedSource{calls: make(chan chan []model.Medication), marks: make(chan error)}
}

func (g *gatedSource) Today(context.Context) []model.Medication {
	reply := make(chan []model.Medication)
	g.calls <- reply
	return <-reply
}

func (g *gatedSource) MarkAsTaken(context.Context, model.FlexID, string) error {
	return <-g.marks
}

const staleMedicationsMetric = `
# HELP patient_portal_state_stale_responses_dropped_total Responses discarded because a newer request for the same target was issued
# TYPE patient_portal_state_stale_responses_dropped_total counter
patient_portal_state_stale_responses_dropped_total{component="medications"} 1
`

func TestMedicationBoard_SupersededLoadIsDropped(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewPortalMetrics(reg)
	source := newGatedSource()
	board := NewMedicationBoard(source, nil, m, zap.NewNop())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); board.Load(context.Background()) }()
	older := <-source.calls
	go func() { defer wg.Done(); board.Load(context.Background()) }()
	newer := <-source.calls

	// the newer load answers first, the older one arrives late
	newer <- []model.Medication{med("new", 1, model.MedicationStatusUpcoming)}
	older <- []model.Medication{med("old", 1, model.MedicationStatusUpcoming)}
	wg.Wait()

	items := board.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "new", items[0].ID.String())
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(staleMedicationsMetric),
		"patient_portal_state_stale_responses_dropped_total"))
}

func TestMedicationBoard_LoadKeepsRecordsWrittenMeanwhile(t *testing.T) {
	source := newGatedSource()
	board := NewMedicationBoard(source, nil, nil, zap.NewNop())

	loaded := make(chan struct{})
	go func() { board.Load(context.Background()); close(loaded) }()
	(<-source.calls) <- []model.Medication{med("1", 2, model.MedicationStatusUpcoming), med("2", 2, model.MedicationStatusUpcoming)}
	<-loaded

	markDone := make(chan error, 1)
	go func() {
		_, err := board.MarkAsTaken(context.Background(), "1")
		markDone <- err
	}()

	reloaded := make(chan struct{})
	go func() { board.Load(context.Background()); close(reloaded) }()
	reload := <-source.calls

	// the mark completes while the reload is still outstanding
	source.marks <- nil
	require.NoError(t, <-markDone)

	// the reload shows the count from before the mark
	reload <- []model.Medication{med("1", 2, model.MedicationStatusUpcoming), med("2", 7, model.MedicationStatusUpcoming)}
	<-reloaded

	items := board.Items()
	require.Len(t, items, 2)
	assert.Equal(t, 1, items[0].Remaining, "record written after the load was issued keeps its local value")
	assert.Equal(t, 7, items[1].Remaining, "other records take the loaded value")
}

// Marking a dose only ever touches the marked record
func TestProperty_MarkAsTakenIsolatesRecords(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("other records are unchanged", prop.ForAll(
		func(counts []int, pick int) bool {
			if len(counts) == 0 {
				return true
			}
			list := make([]model.Medication, len(counts))
			for i, n := range counts {
				list[i] = med(string(rune('a'+i)), n, model.MedicationStatusUpcoming)
			}
			target := list[pick%len(list)]

			source := &mockMedicationSource{}
			source.On("Today", mock.Anything).Return(list)
			source.On("MarkAsTaken", mock.Anything, target.ID.String(), "").Return(nil)
			board := NewMedicationBoard(source, nil, nil, zap.NewNop())
			board.Load(context.Background())

			if _, err := board.MarkAsTaken(context.Background(), target.ID.String()); err != nil {
				return false
			}
			for i, item := range board.Items() {
				if item.ID.Equal(target.ID) {
					want := target
					want.ApplyTaken()
					if !assert.ObjectsAreEqual(want, item) {
						return false
					}
					continue
				}
				if !assert.ObjectsAreEqual(list[i], item) {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(8, gen.IntRange(1, 50)),
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}
