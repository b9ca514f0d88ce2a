package idgen

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sony/sonyflake"
)

// EpochLayout 纪元配置格式
const EpochLayout = "2006-01-02"

// DefaultEpoch 副本 ID 的默认纪元，多个副本节点必须使用同一个纪元
var DefaultEpoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// instanceIDs 多节点部署时的副本 ID 生成器，节点之间以机器 ID 区分
type instanceIDs struct {
	sf      *sonyflake.Sonyflake
	machine uint16
}

// NewSonyflake 创建基于 Sonyflake 的副本 ID 生成器
//
// epoch 为零值时使用 DefaultEpoch，不能晚于当前时间。
func NewSonyflake(machineID uint16, epoch time.Time) (Generator, error) {
	if epoch.IsZero() {
		epoch = DefaultEpoch
	}
	sf, err := sonyflake.New(sonyflake.Settings{
		StartTime: epoch,
		MachineID: func() (uint16, error) {
			return machineID, nil
		},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "create sonyflake generator for machine %d", machineID)
	}
	return &instanceIDs{sf: sf, machine: machineID}, nil
}

func (g *instanceIDs) NextID() (int64, error) {
	id, err := g.sf.NextID()
	if err != nil {
		return 0, errors.Wrapf(err, "generate instance id on machine %d", g.machine)
	}
	return int64(id), nil
}
