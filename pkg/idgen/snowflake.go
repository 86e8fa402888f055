package idgen

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// 雪花算法 ID 生成器
//
//   0 - 41位时间戳 - 10位机器ID - 12位序列号
//
// 同一毫秒内序列号用完时自旋等待下一毫秒。

const (
	epoch          = int64(1704067200000) // 起始时间戳（2024-01-01 00:00:00 UTC）
	workerIDBits   = 10                   // 机器ID位数
	sequenceBits   = 12                   // 序列号位数
	maxWorkerID    = -1 ^ (-1 << workerIDBits)
	maxSequence    = -1 ^ (-1 << sequenceBits)
	workerIDShift  = sequenceBits
	timestampShift = sequenceBits + workerIDBits
)

// Snowflake 雪花算法ID生成器
type Snowflake struct {
	mu        sync.Mutex
	timestamp int64
	workerID  int64
	sequence  int64
}

var (
	defaultGenerator *Snowflake
	once             sync.Once
)

// Init 初始化默认ID生成器
func Init(workerID int64) {
	once.Do(func() {
		if workerID < 0 || workerID > maxWorkerID {
			logrus.Fatalf("workerID 必须在 0-%d 之间", maxWorkerID)
		}
		defaultGenerator = &Snowflake{
			workerID:  workerID,
			timestamp: 0,
			sequence:  0,
		}
	})
}

// NextID 生成下一个ID
func NextID() int64 {
	Init(1) // 未显式初始化时使用 workerID = 1
	return defaultGenerator.Generate()
}

// Generate 生成ID
func (s *Snowflake) Generate() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()

	if now == s.timestamp {
		// 同一毫秒内，序列号递增
		s.sequence = (s.sequence + 1) & maxSequence
		if s.sequence == 0 {
			// 序列号用完，等待下一毫秒
			for now <= s.timestamp {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		// 不同毫秒，序列号重置
		s.sequence = 0
	}

	s.timestamp = now

	// 组装ID
	id := ((now - epoch) << timestampShift) |
		(s.workerID << workerIDShift) |
		s.sequence

	return id
}

// generateNo 前缀 + UTC 日期 + 19 位雪花 ID，完整保留 ID 保证唯一
func generateNo(prefix string) string {
	id := NextID()
	return fmt.Sprintf("%s%s%019d", prefix, time.Now().UTC().Format("20060102"), id)
}

// GenerateWithdrawalNo 生成提现单号，例如 WDR202604010123456789012345678
func GenerateWithdrawalNo() string {
	return generateNo("WDR")
}

// GenerateTransactionNo 生成积分流水号
func GenerateTransactionNo() string {
	return generateNo("PTX")
}
