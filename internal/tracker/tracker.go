// Package tracker 维护每个人员的体重平滑状态与历史记录。
// 平滑状态仅存活于进程内（重启后用首个采样重新播种）；
// 历史记录通过防抖写入持久化存储。
package tracker

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"body-metrics/internal/models"
)

const (
	// DefaultAlpha 指数移动平均的固定平滑系数
	DefaultAlpha = 0.2

	// DefaultHistoryLimit 每人保留的历史条目上限
	DefaultHistoryLimit = 365

	// newMeasurementDelta 平滑体重变化超过该值（严格大于）才算一次新测量
	newMeasurementDelta = 0.1
)

// SmoothingState 单个人员的平滑状态
type SmoothingState struct {
	Weight    float64
	Impedance *float64
}

// Tracker 按人员 slug 管理平滑状态、最近匹配体重与体重历史
type Tracker struct {
	mu          sync.RWMutex
	alpha       float64
	limit       int
	smoothed    map[string]*SmoothingState
	lastMatched map[string]float64
	history     map[string][]models.HistoryEntry
	store       HistoryStore
	saver       *debouncedSaver
	logger      *zap.Logger
}

// NewTracker 创建 Tracker
// saveDelay 为历史写入的防抖静默期；historyLimit 非正时取默认值
func NewTracker(store HistoryStore, saveDelay time.Duration, historyLimit int, logger *zap.Logger) *Tracker {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	t := &Tracker{
		alpha:       DefaultAlpha,
		limit:       historyLimit,
		smoothed:    make(map[string]*SmoothingState),
		lastMatched: make(map[string]float64),
		history:     make(map[string][]models.HistoryEntry),
		store:       store,
		logger:      logger,
	}
	t.saver = newDebouncedSaver(saveDelay, t.persist)
	return t
}

// Load 从持久化存储加载历史（首次运行时为空）
func (t *Tracker) Load(ctx context.Context) error {
	histories, err := t.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load weight history: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if histories != nil {
		t.history = histories
	}
	return nil
}

// Smooth 更新指定人员的平滑状态并返回平滑后的值
// 首次观察到该人员时直接以原始值播种；
// 本次采样缺失阻抗时返回的阻抗为空（即使存在历史平滑值）
func (t *Tracker) Smooth(slug string, sample models.RawSample) (float64, *float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.smoothed[slug]
	if !ok {
		st = &SmoothingState{Weight: sample.Weight}
		if sample.Impedance != nil {
			v := *sample.Impedance
			st.Impedance = &v
		}
		t.smoothed[slug] = st
		return st.Weight, cloneFloat(st.Impedance)
	}

	st.Weight = t.alpha*sample.Weight + (1-t.alpha)*st.Weight

	if sample.Impedance == nil {
		return st.Weight, nil
	}
	if st.Impedance == nil {
		v := *sample.Impedance
		st.Impedance = &v
	} else {
		v := t.alpha**sample.Impedance + (1-t.alpha)**st.Impedance
		st.Impedance = &v
	}
	return st.Weight, cloneFloat(st.Impedance)
}

// RecordIfNew 检测新测量：相对上次记录的平滑体重变化严格大于 0.1 才算
// 检测到时记录历史（时间戳 + 保留两位小数的体重）、裁剪到上限并调度防抖保存
func (t *Tracker) RecordIfNew(slug string, smoothedWeight float64, now time.Time) bool {
	t.mu.Lock()

	prev, ok := t.lastMatched[slug]
	if ok && math.Abs(smoothedWeight-prev) <= newMeasurementDelta {
		t.mu.Unlock()
		return false
	}

	t.lastMatched[slug] = smoothedWeight
	entries := append(t.history[slug], models.HistoryEntry{
		Timestamp: now.UTC(),
		Weight:    round2(smoothedWeight),
	})
	if len(entries) > t.limit {
		entries = entries[len(entries)-t.limit:]
	}
	t.history[slug] = entries
	t.mu.Unlock()

	t.saver.Request()
	return true
}

// Trend 计算指定天数窗口的体重变化
// 取时间上最接近 now-days 的历史条目；没有条目、或最近条目距今不足
// 半个窗口（不足以代表完整周期）时返回 nil
func (t *Tracker) Trend(slug string, currentWeight float64, days int, now time.Time) *float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entries := t.history[slug]
	if len(entries) == 0 {
		return nil
	}

	target := now.Add(-time.Duration(days) * 24 * time.Hour)
	var best *models.HistoryEntry
	bestDelta := time.Duration(math.MaxInt64)

	for i := range entries {
		delta := entries[i].Timestamp.Sub(target)
		if delta < 0 {
			delta = -delta
		}
		if delta < bestDelta {
			bestDelta = delta
			best = &entries[i]
		}
	}

	if now.Sub(best.Timestamp) < time.Duration(days)*12*time.Hour {
		return nil
	}

	v := round1(currentWeight - best.Weight)
	return &v
}

// History 返回指定人员历史的副本
func (t *Tracker) History(slug string) []models.HistoryEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entries := t.history[slug]
	out := make([]models.HistoryEntry, len(entries))
	copy(out, entries)
	return out
}

// Histories 返回全部历史的深拷贝（防抖保存的生产函数）
func (t *Tracker) Histories() map[string][]models.HistoryEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string][]models.HistoryEntry, len(t.history))
	for slug, entries := range t.history {
		cp := make([]models.HistoryEntry, len(entries))
		copy(cp, entries)
		out[slug] = cp
	}
	return out
}

// Flush 立即执行挂起的防抖保存（服务停止前调用，避免丢失最后的记录）
func (t *Tracker) Flush() {
	t.saver.Flush()
}

func (t *Tracker) persist() {
	histories := t.Histories()
	if err := t.store.Save(context.Background(), histories); err != nil {
		t.logger.Error("Failed to save weight history", zap.Error(err))
		return
	}
	t.logger.Debug("Weight history saved", zap.Int("people", len(histories)))
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
