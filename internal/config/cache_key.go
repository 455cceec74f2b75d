package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// TestMonitorChannel returns the Redis PubSub channel name for a test's
// participant lifecycle events.
func (r *CacheKeyStruct) TestMonitorChannel(testID string) string {
	return fmt.Sprintf("test:%s:monitor", testID)
}

// EssayGradingLockKey returns the key guarding a single essay answer while a
// worker grades it, so a requeued duplicate is not graded twice at once.
func (r *CacheKeyStruct) EssayGradingLockKey(answerID string) string {
	return fmt.Sprintf("answer:%s:grading", answerID)
}

var CacheKey = NewCacheKeyStruct()
