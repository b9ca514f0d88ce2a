package manager

import "github.com/cockroachdb/errors"

var (
	// ErrMapUnavailable 地图定义不存在
	ErrMapUnavailable = errors.New("map unavailable")
	// ErrAdmissionDenied 非分区所有者尝试进入私有分区
	ErrAdmissionDenied = errors.New("admission denied")
	// ErrPartitionClosed 分区已关闭
	ErrPartitionClosed = errors.New("partition closed")
	// ErrPlayerRegistered 玩家已有登记的副本
	ErrPlayerRegistered = errors.New("player already has an instance")
	// ErrRegistryFull 副本数量已达上限
	ErrRegistryFull = errors.New("instance registry full")
	// ErrPlayerOffline 玩家不在线
	ErrPlayerOffline = errors.New("player offline")
)
