package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"body-metrics/internal/coordinator"
	"body-metrics/internal/models"
	"body-metrics/internal/tracker"
)

// 服务层测试直接拼装 BodyMetricsService 结构体，
// 避免 NewBodyMetricsService 建立真实的数据库/Redis/MQTT 连接

type stubReader struct {
	mu     sync.Mutex
	states map[string]models.SensorState
}

func (r *stubReader) Read(ref string) models.SensorState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if state, ok := r.states[ref]; ok {
		return state
	}
	return models.SensorState{Status: models.SensorStatusMissing}
}

func (r *stubReader) set(ref, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[ref] = models.SensorState{Status: models.SensorStatusOK, RawValue: value}
}

type stubEventSink struct{}

func (stubEventSink) PublishMeasurement(ctx context.Context, event *models.MeasurementEvent) error {
	return nil
}

type stubStateSink struct{}

func (stubStateSink) PublishPerson(entryID, slug string, snapshot *models.MetricsSnapshot, guest bool) error {
	return nil
}

func (stubStateSink) ClearPerson(entryID, slug string) error { return nil }

func (stubStateSink) SaveSnapshots(ctx context.Context, entryID string, snapshots map[string]*models.MetricsSnapshot) error {
	return nil
}

func (stubStateSink) LoadSnapshots(ctx context.Context, entryID string) (map[string]*models.MetricsSnapshot, error) {
	return map[string]*models.MetricsSnapshot{}, nil
}

type stubHistoryStore struct{}

func (stubHistoryStore) Load(ctx context.Context) (map[string][]models.HistoryEntry, error) {
	return map[string][]models.HistoryEntry{}, nil
}

func (stubHistoryStore) Save(ctx context.Context, histories map[string][]models.HistoryEntry) error {
	return nil
}

func newStubCoordinator(entryID string, reader *stubReader, interval time.Duration) *coordinator.Coordinator {
	entry := models.ScaleEntry{
		EntryID:     entryID,
		Name:        entryID,
		WeightTopic: "scale/" + entryID + "/weight",
	}
	profiles := []models.PersonProfile{
		{
			PersonID:       "p-" + entryID,
			EntryID:        entryID,
			Name:           "Alex",
			Slug:           "alex",
			HeightCM:       175,
			Age:            30,
			Sex:            models.SexMale,
			ExpectedWeight: 70,
			Tolerance:      8,
		},
	}
	tr := tracker.NewTracker(stubHistoryStore{}, time.Hour, tracker.DefaultHistoryLimit, zap.NewNop())
	return coordinator.NewCoordinator(entry, profiles, reader, tr,
		stubEventSink{}, stubStateSink{}, interval, 10, zap.NewNop())
}

func newStubService(coordinators map[string]*coordinator.Coordinator) *BodyMetricsService {
	entries := make([]models.ScaleEntry, 0, len(coordinators))
	for _, coord := range coordinators {
		entries = append(entries, coord.Entry())
	}
	return &BodyMetricsService{
		logger:       zap.NewNop(),
		entries:      entries,
		coordinators: coordinators,
	}
}

func TestReassignGuest_NoEntriesConfigured(t *testing.T) {
	s := newStubService(map[string]*coordinator.Coordinator{})

	err := s.ReassignGuest(context.Background(), "Alex", "")
	assert.ErrorIs(t, err, models.ErrNoEntries)
}

func TestReassignGuest_UnknownEntryScope(t *testing.T) {
	reader := &stubReader{states: make(map[string]models.SensorState)}
	s := newStubService(map[string]*coordinator.Coordinator{
		"bathroom": newStubCoordinator("bathroom", reader, time.Hour),
	})

	err := s.ReassignGuest(context.Background(), "Alex", "garage")
	assert.ErrorIs(t, err, models.ErrEntryNotFound)
}

func TestReassignGuest_NoGuestSampleAnywhere(t *testing.T) {
	reader := &stubReader{states: make(map[string]models.SensorState)}
	s := newStubService(map[string]*coordinator.Coordinator{
		"bathroom": newStubCoordinator("bathroom", reader, time.Hour),
		"bedroom":  newStubCoordinator("bedroom", reader, time.Hour),
	})

	// 无实体范围：没有任何访客读数
	err := s.ReassignGuest(context.Background(), "Alex", "")
	assert.ErrorIs(t, err, models.ErrNoGuestSample)

	// 指定实体：错误来自该协调器
	err = s.ReassignGuest(context.Background(), "Alex", "bathroom")
	assert.ErrorIs(t, err, models.ErrNoGuestSample)
}

func TestReassignGuest_PicksEntryWithGuestSample(t *testing.T) {
	reader := &stubReader{states: make(map[string]models.SensorState)}
	bathroom := newStubCoordinator("bathroom", reader, 10*time.Millisecond)
	bedroom := newStubCoordinator("bedroom", reader, time.Hour)
	s := newStubService(map[string]*coordinator.Coordinator{
		"bathroom": bathroom,
		"bedroom":  bedroom,
	})

	// 浴室秤读到一个未匹配读数（85 kg 距期望 70 超出容差）
	reader.set("scale/bathroom/weight", "85")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = bathroom.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		_, ok := bathroom.GuestSampleTime()
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	// 等待测量循环完全退出，避免与改派操作交错
	cancel()
	<-done

	// 未指定实体时选中持有访客读数的浴室秤
	require.NoError(t, s.ReassignGuest(context.Background(), "Alex", ""))

	snapshots, err := s.Snapshots("bathroom")
	require.NoError(t, err)
	assert.Contains(t, snapshots, "alex")
	assert.NotContains(t, snapshots, models.GuestSlug)
}

func TestDirectory_UnknownEntry(t *testing.T) {
	reader := &stubReader{states: make(map[string]models.SensorState)}
	s := newStubService(map[string]*coordinator.Coordinator{
		"bathroom": newStubCoordinator("bathroom", reader, time.Hour),
	})

	_, err := s.Snapshots("garage")
	assert.ErrorIs(t, err, models.ErrEntryNotFound)

	_, err = s.History("garage", "alex")
	assert.ErrorIs(t, err, models.ErrEntryNotFound)

	_, err = s.Profiles("garage")
	assert.ErrorIs(t, err, models.ErrEntryNotFound)
}

func TestDirectory_EntriesReturnsCopy(t *testing.T) {
	reader := &stubReader{states: make(map[string]models.SensorState)}
	s := newStubService(map[string]*coordinator.Coordinator{
		"bathroom": newStubCoordinator("bathroom", reader, time.Hour),
	})

	entries := s.Entries()
	require.Len(t, entries, 1)
	entries[0].EntryID = "mutated"

	assert.Equal(t, "bathroom", s.Entries()[0].EntryID)
}
