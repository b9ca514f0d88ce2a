package model

// RewardGrant 发放的奖励
type RewardGrant struct {
	ItemID int32 `json:"item_id"`
	Count  int32 `json:"count"`
	Bonus  bool  `json:"bonus"` // 额外概率奖励
}
