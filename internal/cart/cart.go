// Package cart は価格段に沿って数量を増減させるカートを扱う。
//
// カートは商品IDから数量へのマップで、数量は常にその商品の価格段のいずれかの値をとる。
// 追加は次の段へ進み、最後の段の次は最初の段に戻る。
package cart

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/shoppybot/internal/model"
)

// ProductFinder は商品の取得インターフェース。
type ProductFinder interface {
	FindByID(ctx context.Context, id string) (*model.Product, error)
}

// Line はカート内の1商品分の明細。
type Line struct {
	ProductID string
	Title     string
	Count     int
	Subtotal  decimal.Decimal
}

// Description は商品カードの表示に必要な情報。
type Description struct {
	Title    string
	Tiers    []model.PriceTier
	Count    int
	Subtotal decimal.Decimal
}

// Engine はカート操作を提供する。
type Engine struct {
	products ProductFinder
	logger   *slog.Logger
}

// NewEngine はEngineを生成する。
func NewEngine(products ProductFinder, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{products: products, logger: logger}
}

// Add は商品の数量を次の価格段に進める。
// カートにない場合は最小の段の数量を設定する。最後の段からは最初の段に戻る。
// 価格段が未定義の商品はUnknownProductErrorになる。
func (e *Engine) Add(ctx context.Context, cart map[string]int, productID string) error {
	product, err := e.product(ctx, productID)
	if err != nil {
		return err
	}
	counts := tierCounts(product)
	if len(counts) == 0 {
		return model.NewUnknownProductError(productID)
	}

	current, ok := cart[productID]
	if !ok {
		cart[productID] = counts[0]
		return nil
	}

	next, err := Next(counts, current)
	if err != nil {
		delete(cart, productID)
		return model.NewInvalidCartStateError(productID, current)
	}
	cart[productID] = next
	return nil
}

// Remove は商品の数量を前の価格段に戻す。
// 最初の段にある場合はカートから削除する。カートにない場合は何もしない。
func (e *Engine) Remove(ctx context.Context, cart map[string]int, productID string) error {
	current, ok := cart[productID]
	if !ok {
		return nil
	}

	product, err := e.product(ctx, productID)
	if err != nil {
		delete(cart, productID)
		return err
	}

	prev, err := Prev(tierCounts(product), current)
	if err != nil {
		delete(cart, productID)
		return model.NewInvalidCartStateError(productID, current)
	}
	if prev == 0 {
		delete(cart, productID)
		return nil
	}
	cart[productID] = prev
	return nil
}

// Subtotal はカート内の商品の小計を返す。
// カートにない商品、または最小の段より少ない数量の場合はゼロを返す。
func (e *Engine) Subtotal(ctx context.Context, cart map[string]int, productID string) (decimal.Decimal, error) {
	count, ok := cart[productID]
	if !ok {
		return decimal.Zero, nil
	}
	product, err := e.product(ctx, productID)
	if err != nil {
		return decimal.Zero, err
	}
	return product.PriceFor(count), nil
}

// Total はカート全体の合計を返す。
// 壊れた明細はLinesと同様にカートから取り除かれ、合計に含まれない。
func (e *Engine) Total(ctx context.Context, cart map[string]int) (decimal.Decimal, error) {
	lines, err := e.Lines(ctx, cart)
	if err != nil {
		return decimal.Zero, err
	}
	return SumLines(lines), nil
}

// IsNonEmpty はカートに1件以上の商品があるかを返す。
func IsNonEmpty(cart map[string]int) bool {
	return len(cart) > 0
}

// Describe は商品カード用にタイトル・価格段・現在の数量と小計を返す。
func (e *Engine) Describe(ctx context.Context, cart map[string]int, productID string) (*Description, error) {
	product, err := e.product(ctx, productID)
	if err != nil {
		return nil, err
	}
	count := cart[productID]
	return &Description{
		Title:    product.Title,
		Tiers:    product.Tiers,
		Count:    count,
		Subtotal: product.PriceFor(count),
	}, nil
}

// Lines はカートの明細を商品タイトル順に返す。
// 存在しなくなった商品や価格段に一致しない数量の明細はカートから取り除き、警告ログを出す。
// リポジトリの障害はエラーとして返す。
func (e *Engine) Lines(ctx context.Context, cart map[string]int) ([]Line, error) {
	lines := make([]Line, 0, len(cart))
	for productID, count := range cart {
		product, err := e.products.FindByID(ctx, productID)
		if err != nil {
			return nil, fmt.Errorf("failed to find product %s: %w", productID, err)
		}
		if product == nil {
			e.logger.Warn("カートから存在しない商品を削除しました",
				slog.String("product_id", productID),
				slog.String("error_code", model.ErrCodeUnknownProduct),
			)
			delete(cart, productID)
			continue
		}
		if !containsCount(tierCounts(product), count) {
			e.logger.Warn("カートから価格段に一致しない明細を削除しました",
				slog.String("product_id", productID),
				slog.Int("count", count),
				slog.String("error_code", model.ErrCodeInvalidCartState),
			)
			delete(cart, productID)
			continue
		}
		lines = append(lines, Line{
			ProductID: productID,
			Title:     product.Title,
			Count:     count,
			Subtotal:  product.PriceFor(count),
		})
	}

	sort.Slice(lines, func(i, j int) bool {
		if lines[i].Title != lines[j].Title {
			return lines[i].Title < lines[j].Title
		}
		return lines[i].ProductID < lines[j].ProductID
	})
	return lines, nil
}

// SumLines は明細の小計の合計を返す。
func SumLines(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal)
	}
	return total
}

// product は商品を取得する。存在しない場合はUnknownProductErrorを返す。
func (e *Engine) product(ctx context.Context, productID string) (*model.Product, error) {
	product, err := e.products.FindByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to find product %s: %w", productID, err)
	}
	if product == nil {
		return nil, model.NewUnknownProductError(productID)
	}
	return product, nil
}

func tierCounts(p *model.Product) []int {
	counts := p.TierCounts()
	sort.Ints(counts)
	return counts
}

func containsCount(counts []int, count int) bool {
	_, ok := indexOf(counts, count)
	return ok
}
