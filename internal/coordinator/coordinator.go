package coordinator

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"body-metrics/internal/bodycomp"
	"body-metrics/internal/matcher"
	"body-metrics/internal/models"
	"body-metrics/internal/tracker"
)

// SensorReader 传感器读取接口，实现方保证非阻塞
type SensorReader interface {
	Read(ref string) models.SensorState
}

// EventSink 测量事件出口
type EventSink interface {
	PublishMeasurement(ctx context.Context, event *models.MeasurementEvent) error
}

// StateSink 状态面出口（保留消息与快照镜像）
type StateSink interface {
	PublishPerson(entryID, slug string, snapshot *models.MetricsSnapshot, guest bool) error
	ClearPerson(entryID, slug string) error
	SaveSnapshots(ctx context.Context, entryID string, snapshots map[string]*models.MetricsSnapshot) error
	LoadSnapshots(ctx context.Context, entryID string) (map[string]*models.MetricsSnapshot, error)
}

// Metrics 测量循环监控指标
type Metrics struct {
	mu sync.RWMutex

	TicksProcessed  int64 // 采样循环执行次数
	SamplesMatched  int64 // 匹配到人员的读数
	SamplesGuest    int64 // 归入访客的读数
	SamplesIgnored  int64 // 低于噪声下限被忽略的读数
	EventsPublished int64 // 发布的测量事件数

	LastMatchTime time.Time // 最后一次匹配时间
	StartTime     time.Time
}

// GetSnapshot 获取指标快照（线程安全）
func (m *Metrics) GetSnapshot() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Metrics{
		TicksProcessed:  m.TicksProcessed,
		SamplesMatched:  m.SamplesMatched,
		SamplesGuest:    m.SamplesGuest,
		SamplesIgnored:  m.SamplesIgnored,
		EventsPublished: m.EventsPublished,
		LastMatchTime:   m.LastMatchTime,
		StartTime:       m.StartTime,
	}
}

// IncrementTicks 增加循环计数
func (m *Metrics) IncrementTicks() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TicksProcessed++
}

// IncrementMatched 增加匹配计数
func (m *Metrics) IncrementMatched() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SamplesMatched++
	m.LastMatchTime = time.Now()
}

// IncrementGuest 增加访客计数
func (m *Metrics) IncrementGuest() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SamplesGuest++
}

// IncrementIgnored 增加忽略计数
func (m *Metrics) IncrementIgnored() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SamplesIgnored++
}

// IncrementEvents 增加事件计数
func (m *Metrics) IncrementEvents() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EventsPublished++
}

// Coordinator 单个秤实体的测量协调器
// 固定间隔读取传感器，匹配人员，平滑并计算指标，维护快照与事件
type Coordinator struct {
	entry   models.ScaleEntry
	reader  SensorReader
	tracker *tracker.Tracker
	events  EventSink
	state   StateSink

	mu              sync.RWMutex
	profiles        []models.PersonProfile
	snapshots       map[string]*models.MetricsSnapshot
	guestSample     *models.RawSample
	lastGuestWeight *float64

	interval       time.Duration
	guestMinWeight float64
	logger         *zap.Logger
	metrics        *Metrics
}

// NewCoordinator 创建测量协调器
func NewCoordinator(
	entry models.ScaleEntry,
	profiles []models.PersonProfile,
	reader SensorReader,
	weightTracker *tracker.Tracker,
	events EventSink,
	state StateSink,
	interval time.Duration,
	guestMinWeight float64,
	logger *zap.Logger,
) *Coordinator {
	return &Coordinator{
		entry:          entry,
		profiles:       profiles,
		reader:         reader,
		tracker:        weightTracker,
		events:         events,
		state:          state,
		snapshots:      make(map[string]*models.MetricsSnapshot),
		interval:       interval,
		guestMinWeight: guestMinWeight,
		logger:         logger,
		metrics: &Metrics{
			StartTime: time.Now(),
		},
	}
}

// Entry 返回协调的秤实体
func (c *Coordinator) Entry() models.ScaleEntry {
	return c.entry
}

// Start 启动测量循环
func (c *Coordinator) Start(ctx context.Context) error {
	c.restore(ctx)

	c.logger.Info("Coordinator started",
		zap.String("entry_id", c.entry.EntryID),
		zap.String("weight_topic", c.entry.WeightTopic),
		zap.Duration("interval", c.interval),
	)

	// 启动指标报告协程
	metricsCtx, metricsCancel := context.WithCancel(ctx)
	defer metricsCancel()
	go c.reportMetrics(metricsCtx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.tick(ctx, time.Now().UTC())
		}
	}
}

// restore 恢复体重历史与快照镜像，失败时从空状态继续
func (c *Coordinator) restore(ctx context.Context) {
	if err := c.tracker.Load(ctx); err != nil {
		c.logger.Warn("Failed to restore weight history",
			zap.String("entry_id", c.entry.EntryID),
			zap.Error(err),
		)
	}

	restored, err := c.state.LoadSnapshots(ctx, c.entry.EntryID)
	if err != nil {
		c.logger.Warn("Failed to restore snapshots",
			zap.String("entry_id", c.entry.EntryID),
			zap.Error(err),
		)
		return
	}

	if len(restored) > 0 {
		c.mu.Lock()
		for slug, snapshot := range restored {
			c.snapshots[slug] = snapshot
		}
		c.mu.Unlock()
		c.logger.Info("Restored snapshots",
			zap.String("entry_id", c.entry.EntryID),
			zap.Int("count", len(restored)),
		)
	}
}

// Stop 停止协调器，落盘未保存的历史与快照
func (c *Coordinator) Stop(ctx context.Context) error {
	c.tracker.Flush()

	c.mu.RLock()
	snapshots := c.copySnapshotsLocked()
	c.mu.RUnlock()

	if len(snapshots) > 0 {
		if err := c.state.SaveSnapshots(ctx, c.entry.EntryID, snapshots); err != nil {
			c.logger.Error("Failed to save snapshots on shutdown",
				zap.String("entry_id", c.entry.EntryID),
				zap.Error(err),
			)
		}
	}

	c.logger.Info("Coordinator stopped", zap.String("entry_id", c.entry.EntryID))
	return nil
}

// UpdateProfiles 替换人员档案（配置重载）
func (c *Coordinator) UpdateProfiles(profiles []models.PersonProfile) {
	c.mu.Lock()
	c.profiles = profiles
	c.mu.Unlock()

	c.logger.Info("Profiles updated",
		zap.String("entry_id", c.entry.EntryID),
		zap.Int("count", len(profiles)),
	)
}

// Profiles 返回当前人员档案副本
func (c *Coordinator) Profiles() []models.PersonProfile {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.PersonProfile, len(c.profiles))
	copy(out, c.profiles)
	return out
}

// Snapshots 返回全部人员快照的深拷贝
func (c *Coordinator) Snapshots() map[string]*models.MetricsSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.copySnapshotsLocked()
}

// History 返回某人的体重历史副本
func (c *Coordinator) History(slug string) []models.HistoryEntry {
	return c.tracker.History(slug)
}

// Histories 返回全部体重历史副本
func (c *Coordinator) Histories() map[string][]models.HistoryEntry {
	return c.tracker.Histories()
}

// GuestSampleTime 返回保留中的访客读数时间
func (c *Coordinator) GuestSampleTime() (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.guestSample == nil {
		return time.Time{}, false
	}
	return c.guestSample.ObservedAt, true
}

// GetMetrics 返回测量循环指标快照
func (c *Coordinator) GetMetrics() Metrics {
	return c.metrics.GetSnapshot()
}

// ReassignGuest 把保留的访客读数改派给指定人员
// 读数按原始观测时间重放完整的匹配后流程，然后清空访客状态
func (c *Coordinator) ReassignGuest(ctx context.Context, personKey string) error {
	c.mu.RLock()
	sample := c.guestSample
	c.mu.RUnlock()

	if sample == nil {
		return models.ErrNoGuestSample
	}

	targetSlug := models.Slugify(personKey)

	c.mu.RLock()
	var target *models.PersonProfile
	for i := range c.profiles {
		if c.profiles[i].Slug == targetSlug {
			target = &c.profiles[i]
			break
		}
	}
	c.mu.RUnlock()

	if target == nil {
		return models.ErrPersonNotFound
	}

	score := matcher.Score(*sample, target)
	c.updatePerson(ctx, target, *sample, score, sample.ObservedAt)

	c.mu.Lock()
	c.guestSample = nil
	c.lastGuestWeight = nil
	delete(c.snapshots, models.GuestSlug)
	snapshots := c.copySnapshotsLocked()
	c.mu.Unlock()

	if err := c.state.ClearPerson(c.entry.EntryID, models.GuestSlug); err != nil {
		c.logger.Error("Failed to clear guest state",
			zap.String("entry_id", c.entry.EntryID),
			zap.Error(err),
		)
	}
	if err := c.state.SaveSnapshots(ctx, c.entry.EntryID, snapshots); err != nil {
		c.logger.Error("Failed to save snapshots",
			zap.String("entry_id", c.entry.EntryID),
			zap.Error(err),
		)
	}

	c.logger.Info("Guest sample reassigned",
		zap.String("entry_id", c.entry.EntryID),
		zap.String("person", target.Slug),
		zap.Float64("weight", sample.Weight),
	)

	return nil
}

// tick 执行一次采样循环
func (c *Coordinator) tick(ctx context.Context, now time.Time) {
	c.metrics.IncrementTicks()

	if c.entry.WeightTopic == "" {
		return
	}

	weightState := c.reader.Read(c.entry.WeightTopic)
	if weightState.Status != models.SensorStatusOK {
		return
	}

	weight, ok := parseNumber(weightState.RawValue)
	if !ok {
		c.logger.Debug("Cannot parse weight state",
			zap.String("entry_id", c.entry.EntryID),
			zap.String("value", weightState.RawValue),
		)
		return
	}

	// 阻抗尽力而为：不可用或解析失败只丢弃阻抗，不中断本轮
	var impedance *float64
	if c.entry.ImpedanceTopic != "" {
		impedanceState := c.reader.Read(c.entry.ImpedanceTopic)
		if impedanceState.Status == models.SensorStatusOK {
			if v, ok := parseNumber(impedanceState.RawValue); ok {
				impedance = &v
			} else {
				c.logger.Debug("Cannot parse impedance state",
					zap.String("entry_id", c.entry.EntryID),
					zap.String("value", impedanceState.RawValue),
				)
			}
		}
	}

	sample := models.RawSample{Weight: weight, Impedance: impedance, ObservedAt: now}

	c.mu.RLock()
	profiles := c.profiles
	c.mu.RUnlock()

	best, bestScore := matcher.Match(sample, profiles)
	if best == nil {
		c.handleUnmatched(ctx, sample)
		return
	}

	c.metrics.IncrementMatched()
	c.updatePerson(ctx, best, sample, bestScore, now)
}

// updatePerson 匹配成功后的完整处理：平滑、派生指标、检测新测量、发布
// 访客改派复用同一路径
func (c *Coordinator) updatePerson(ctx context.Context, p *models.PersonProfile, sample models.RawSample, score float64, now time.Time) {
	smoothedWeight, smoothedImpedance := c.tracker.Smooth(p.Slug, sample)

	height := float64(p.HeightCM)
	confidence := round1(matcher.Confidence(score))
	bmi := bodycomp.BMI(smoothedWeight, height)
	bmr := bodycomp.BMR(smoothedWeight, height, p.Age, p.Sex)
	ideal := bodycomp.IdealWeight(height, p.Sex)

	snapshot := &models.MetricsSnapshot{
		Weight:      round2(smoothedWeight),
		Confidence:  &confidence,
		BMI:         &bmi,
		BMR:         &bmr,
		IdealWeight: &ideal,
	}
	if smoothedImpedance != nil {
		v := round1(*smoothedImpedance)
		snapshot.Impedance = &v
	}

	// 身体成分需要阻抗，缺失时留空
	if smoothedImpedance != nil {
		fat := bodycomp.BodyFatPct(smoothedWeight, height, p.Age, p.Sex, *smoothedImpedance)
		muscle := bodycomp.MuscleMass(smoothedWeight, height, p.Age, p.Sex, *smoothedImpedance)
		water := bodycomp.WaterPct(smoothedWeight, height, p.Age, p.Sex, *smoothedImpedance)
		bone := bodycomp.BoneMass(smoothedWeight, height, p.Age, p.Sex, *smoothedImpedance)
		visceral := bodycomp.VisceralFat(smoothedWeight, height, p.Age, p.Sex)
		bodyType := bodycomp.BodyType(fat, muscle, smoothedWeight, p.Sex)

		snapshot.BodyFat = &fat
		snapshot.MuscleMass = &muscle
		snapshot.WaterPct = &water
		snapshot.BoneMass = &bone
		snapshot.VisceralFat = &visceral
		snapshot.BodyType = &bodyType
	}

	// 事件携带检测时刻的指标，不含最近测量时间与趋势
	if c.tracker.RecordIfNew(p.Slug, smoothedWeight, now) {
		event := &models.MeasurementEvent{
			EventType: models.EventTypeMeasurement,
			EntryID:   c.entry.EntryID,
			Person:    p.Slug,
			Timestamp: now,
			Metrics:   *snapshot.Clone(),
		}
		if err := c.events.PublishMeasurement(ctx, event); err != nil {
			c.logger.Error("Failed to publish measurement event",
				zap.String("slug", p.Slug),
				zap.Error(err),
			)
		} else {
			c.metrics.IncrementEvents()
		}
	}

	measuredAt := now
	snapshot.LastMeasurement = &measuredAt
	snapshot.WeightTrendWeek = c.tracker.Trend(p.Slug, smoothedWeight, 7, now)
	snapshot.WeightTrendMonth = c.tracker.Trend(p.Slug, smoothedWeight, 30, now)

	c.mu.Lock()
	c.snapshots[p.Slug] = snapshot
	snapshots := c.copySnapshotsLocked()
	c.mu.Unlock()

	c.publishState(ctx, p.Slug, snapshot, false, snapshots)
}

// handleUnmatched 处理未匹配读数：低于噪声下限忽略，否则归入访客
func (c *Coordinator) handleUnmatched(ctx context.Context, sample models.RawSample) {
	if sample.Weight <= c.guestMinWeight {
		c.metrics.IncrementIgnored()
		return
	}

	c.metrics.IncrementGuest()

	snapshot := &models.MetricsSnapshot{
		Weight: round2(sample.Weight),
	}
	if sample.Impedance != nil {
		v := round1(*sample.Impedance)
		snapshot.Impedance = &v
	}

	// 访客事件与人员同样按 0.1 kg 去抖
	c.mu.Lock()
	newMeasurement := c.lastGuestWeight == nil || math.Abs(sample.Weight-*c.lastGuestWeight) > 0.1
	if newMeasurement {
		w := sample.Weight
		c.lastGuestWeight = &w
	}
	c.mu.Unlock()

	if newMeasurement {
		event := &models.MeasurementEvent{
			EventType: models.EventTypeGuestMeasurement,
			EntryID:   c.entry.EntryID,
			Person:    models.GuestSlug,
			Timestamp: sample.ObservedAt,
			Metrics:   *snapshot.Clone(),
		}
		if err := c.events.PublishMeasurement(ctx, event); err != nil {
			c.logger.Error("Failed to publish guest measurement event", zap.Error(err))
		} else {
			c.metrics.IncrementEvents()
		}
	}

	measuredAt := sample.ObservedAt
	snapshot.LastMeasurement = &measuredAt

	c.mu.Lock()
	retained := sample
	c.guestSample = &retained
	c.snapshots[models.GuestSlug] = snapshot
	snapshots := c.copySnapshotsLocked()
	c.mu.Unlock()

	c.publishState(ctx, models.GuestSlug, snapshot, true, snapshots)
}

// publishState 发布人员状态并更新快照镜像
func (c *Coordinator) publishState(ctx context.Context, slug string, snapshot *models.MetricsSnapshot, guest bool, snapshots map[string]*models.MetricsSnapshot) {
	if err := c.state.PublishPerson(c.entry.EntryID, slug, snapshot, guest); err != nil {
		c.logger.Error("Failed to publish person state",
			zap.String("slug", slug),
			zap.Error(err),
		)
	}

	if err := c.state.SaveSnapshots(ctx, c.entry.EntryID, snapshots); err != nil {
		c.logger.Error("Failed to save snapshots",
			zap.String("entry_id", c.entry.EntryID),
			zap.Error(err),
		)
	}
}

// reportMetrics 定期报告指标（每60秒）
func (c *Coordinator) reportMetrics(ctx context.Context) {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snapshot := c.metrics.GetSnapshot()
			uptime := time.Since(snapshot.StartTime)

			c.logger.Info("Coordinator metrics report",
				zap.String("entry_id", c.entry.EntryID),
				zap.Int64("ticks_processed", snapshot.TicksProcessed),
				zap.Int64("samples_matched", snapshot.SamplesMatched),
				zap.Int64("samples_guest", snapshot.SamplesGuest),
				zap.Int64("samples_ignored", snapshot.SamplesIgnored),
				zap.Int64("events_published", snapshot.EventsPublished),
				zap.Duration("uptime", uptime),
			)
		}
	}
}

func (c *Coordinator) copySnapshotsLocked() map[string]*models.MetricsSnapshot {
	copied := make(map[string]*models.MetricsSnapshot, len(c.snapshots))
	for slug, snapshot := range c.snapshots {
		copied[slug] = snapshot.Clone()
	}
	return copied
}

var numberPattern = regexp.MustCompile(`^\s*([-+]?\d*\.?\d+)`)

// parseNumber 解析可能带单位的数值（如 "70.2 kg"）
func parseNumber(value string) (float64, bool) {
	match := numberPattern.FindStringSubmatch(value)
	if match == nil {
		return 0, false
	}

	v, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
