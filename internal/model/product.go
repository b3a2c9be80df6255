package model

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"
)

// PriceTier は数量と価格の組を表す。
// 価格は数量に対する階段関数として扱われる。
type PriceTier struct {
	Count int
	Price decimal.Decimal
}

// Product は販売商品を表す。
type Product struct {
	ID       string
	Title    string
	IsActive bool
	ImageRef string
	Tiers    []PriceTier // Count昇順
}

// SortTiers はTiersをCount昇順に並べ替える。PriceForとTierCountsはこの順序を前提とする。
func (p *Product) SortTiers() {
	slices.SortFunc(p.Tiers, func(a, b PriceTier) int {
		return cmp.Compare(a.Count, b.Count)
	})
}

// TierCounts は定義済みの数量一覧を昇順で返す。
func (p *Product) TierCounts() []int {
	counts := make([]int, len(p.Tiers))
	for i, t := range p.Tiers {
		counts[i] = t.Count
	}
	return counts
}

// PriceFor はcount以下で最大の数量を持つ段の価格を返す。
// 該当する段がない場合はゼロを返す。
func (p *Product) PriceFor(count int) decimal.Decimal {
	price := decimal.Zero
	for _, t := range p.Tiers {
		if count >= t.Count {
			price = t.Price
		}
	}
	return price
}
