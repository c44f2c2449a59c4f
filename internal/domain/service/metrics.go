// Package service holds the domain services of the token engine: the two caches,
// the strategy registry, the stock claims generator, the verification policy and
// the token lifecycle service that ties them together.
package service

import (
	"time"
)

// Metrics defines the interface for collecting business metrics.
// This abstraction allows the domain to remain independent of the specific monitoring implementation (e.g., Prometheus).
// Metrics 定义了收集业务指标的接口。
// 这种抽象使领域层能够独立于具体的监控实现（例如 Prometheus）。
type Metrics interface {
	// RecordTokenIssue records metrics related to the token issuance process.
	// RecordTokenIssue 记录与令牌颁发过程相关的指标。
	RecordTokenIssue(clientID string, success bool, duration time.Duration, errorKind string)

	// RecordTokenVerify records a verification and its outcome.
	// RecordTokenVerify 记录令牌验证及其结果。
	RecordTokenVerify(clientID, outcome string, duration time.Duration)

	// RecordTokenRefresh records a refresh attempt.
	// RecordTokenRefresh 记录刷新令牌的尝试。
	RecordTokenRefresh(clientID string, success bool, errorKind string)

	// RecordCacheAccess records a cache hit or miss.
	// RecordCacheAccess 记录缓存命中或未命中。
	RecordCacheAccess(cacheType string, hit bool)

	// RecordStoreRead records a read against the backing configuration store.
	// RecordStoreRead 记录对后端配置存储的一次读取。
	RecordStoreRead(store string, duration time.Duration, err error)

	// RecordBlacklistChange records a blacklist mutation.
	// RecordBlacklistChange 记录黑名单变更。
	RecordBlacklistChange(clientID string, blocked bool)
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) RecordTokenIssue(string, bool, time.Duration, string) {}
func (NoopMetrics) RecordTokenVerify(string, string, time.Duration)      {}
func (NoopMetrics) RecordTokenRefresh(string, bool, string)              {}
func (NoopMetrics) RecordCacheAccess(string, bool)                       {}
func (NoopMetrics) RecordStoreRead(string, time.Duration, error)         {}
func (NoopMetrics) RecordBlacklistChange(string, bool)                   {}
