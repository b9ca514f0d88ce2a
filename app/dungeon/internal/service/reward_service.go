package service

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/manager"
	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/model"
	"github.com/lk2023060901/xdooria-dungeon/pkg/config"
	"github.com/lk2023060901/xdooria-dungeon/pkg/logger"
)

// AnyRegion 匹配所有区服的奖励规则
const AnyRegion = "*"

// BonusRule 额外奖励规则，命中概率为 Numerator/Denominator
type BonusRule struct {
	Region      string `mapstructure:"region" validate:"required"`
	ItemID      int32  `mapstructure:"item_id" validate:"gt=0"`
	Count       int32  `mapstructure:"count" validate:"gte=0"`
	Numerator   int32  `mapstructure:"numerator" validate:"gte=0,ltefield=Denominator"`
	Denominator int32  `mapstructure:"denominator" validate:"gt=0"`
}

// RewardConfig 波次奖励配置
type RewardConfig struct {
	// ItemID 基础奖励道具
	ItemID int32 `mapstructure:"item_id" validate:"gt=0"`
	// BaseCount 第 1 波奖励数量
	BaseCount int32 `mapstructure:"base_count" validate:"gt=0"`
	// CountStep 每多一波增加的数量
	CountStep int32 `mapstructure:"count_step" validate:"gte=0"`
	// BonusRules 按区服配置的额外奖励，精确匹配优先于 "*"
	BonusRules []BonusRule `mapstructure:"bonus_rules" validate:"dive"`
}

// DefaultRewardConfig 默认配置
func DefaultRewardConfig() *RewardConfig {
	return &RewardConfig{
		ItemID:    5001,
		BaseCount: 1,
		CountStep: 1,
		BonusRules: []BonusRule{
			{Region: AnyRegion, ItemID: 5100, Count: 1, Numerator: 1, Denominator: 10},
		},
	}
}

// RewardService 波次奖励服务，实现 manager.RewardIssuer
type RewardService struct {
	cfg    *RewardConfig
	logger logger.Logger

	mu        sync.Mutex
	rand      *rand.Rand
	inventory map[int64]map[int32]int64 // playerID -> itemID -> 数量
}

var _ manager.RewardIssuer = (*RewardService)(nil)

// NewRewardService 创建奖励服务
func NewRewardService(cfg *RewardConfig, l logger.Logger) (*RewardService, error) {
	newCfg, err := config.MergeConfig(DefaultRewardConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to merge reward config: %w", err)
	}
	if err := config.Validate(newCfg); err != nil {
		return nil, err
	}

	return &RewardService{
		cfg:       newCfg,
		logger:    l.Named("service.reward"),
		rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
		inventory: make(map[int64]map[int32]int64),
	}, nil
}

// SetRand 替换随机源
func (s *RewardService) SetRand(r *rand.Rand) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rand = r
}

// IssueWaveReward 发放第 wave 波的奖励
func (s *RewardService) IssueWaveReward(ctx context.Context, owner model.Player, wave int) ([]model.RewardGrant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if wave < 1 {
		wave = 1
	}

	grants := []model.RewardGrant{{
		ItemID: s.cfg.ItemID,
		Count:  s.cfg.BaseCount + int32(wave-1)*s.cfg.CountStep,
	}}

	s.mu.Lock()
	if rule, ok := s.ruleFor(owner.Region); ok && s.rand.Int31n(rule.Denominator) < rule.Numerator {
		count := rule.Count
		if count <= 0 {
			count = 1
		}
		grants = append(grants, model.RewardGrant{ItemID: rule.ItemID, Count: count, Bonus: true})
	}

	bag, ok := s.inventory[owner.ID]
	if !ok {
		bag = make(map[int32]int64)
		s.inventory[owner.ID] = bag
	}
	for _, g := range grants {
		bag[g.ItemID] += int64(g.Count)
	}
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "wave reward issued",
		"player_id", owner.ID,
		"wave", wave,
		"grants", len(grants),
	)
	return grants, nil
}

// ruleFor 查找区服对应的额外奖励规则
func (s *RewardService) ruleFor(region string) (BonusRule, bool) {
	var fallback *BonusRule
	for i := range s.cfg.BonusRules {
		r := &s.cfg.BonusRules[i]
		if r.Region == region {
			return *r, true
		}
		if r.Region == AnyRegion && fallback == nil {
			fallback = r
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return BonusRule{}, false
}

// Inventory 玩家累计获得的道具
func (s *RewardService) Inventory(playerID int64) map[int32]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[int32]int64, len(s.inventory[playerID]))
	for id, n := range s.inventory[playerID] {
		out[id] = n
	}
	return out
}
