package service

import (
	"context"
	"math/rand"
	"testing"

	"github.com/lk2023060901/xdooria-dungeon/app/dungeon/internal/model"
	"github.com/lk2023060901/xdooria-dungeon/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRewardServiceRegionRules(t *testing.T) {
	svc, err := NewRewardService(&RewardConfig{
		BonusRules: []BonusRule{
			{Region: AnyRegion, ItemID: 6100, Count: 1, Numerator: 0, Denominator: 1},
			{Region: "eu", ItemID: 6000, Count: 2, Numerator: 1, Denominator: 1},
		},
	}, logger.NewNoop())
	require.NoError(t, err)
	svc.SetRand(rand.New(rand.NewSource(7)))

	tests := []struct {
		name   string
		player model.Player
		wave   int
		want   []model.RewardGrant
	}{
		{
			name:   "exact region wins over wildcard",
			player: model.Player{ID: 1, Region: "eu"},
			wave:   1,
			want: []model.RewardGrant{
				{ItemID: 5001, Count: 1},
				{ItemID: 6000, Count: 2, Bonus: true},
			},
		},
		{
			name:   "wildcard with zero odds",
			player: model.Player{ID: 2, Region: "na"},
			wave:   3,
			want:   []model.RewardGrant{{ItemID: 5001, Count: 3}},
		},
		{
			name:   "wave below one clamps",
			player: model.Player{ID: 3, Region: "na"},
			wave:   0,
			want:   []model.RewardGrant{{ItemID: 5001, Count: 1}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grants, err := svc.IssueWaveReward(context.Background(), tt.player, tt.wave)
			require.NoError(t, err)
			assert.Equal(t, tt.want, grants)
		})
	}

	assert.Equal(t, map[int32]int64{5001: 1, 6000: 2}, svc.Inventory(1))
	assert.Equal(t, map[int32]int64{5001: 3}, svc.Inventory(2))
	assert.Empty(t, svc.Inventory(99))
}

func TestRewardServiceNoMatchingRule(t *testing.T) {
	svc, err := NewRewardService(&RewardConfig{
		BonusRules: []BonusRule{{Region: "eu", ItemID: 6000, Count: 1, Numerator: 1, Denominator: 1}},
	}, logger.NewNoop())
	require.NoError(t, err)

	grants, err := svc.IssueWaveReward(context.Background(), model.Player{ID: 1, Region: "asia"}, 2)
	require.NoError(t, err)
	assert.Equal(t, []model.RewardGrant{{ItemID: 5001, Count: 2}}, grants)
}

func TestRewardServiceCanceledContext(t *testing.T) {
	svc, err := NewRewardService(nil, logger.NewNoop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.IssueWaveReward(ctx, model.Player{ID: 1}, 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, svc.Inventory(1))
}

func TestRewardConfigValidation(t *testing.T) {
	_, err := NewRewardService(&RewardConfig{
		BonusRules: []BonusRule{{Region: "eu", ItemID: 6000, Numerator: 3, Denominator: 2}},
	}, logger.NewNoop())
	assert.Error(t, err)
}
