package cart

import "errors"

// errCountNotInTiers は数量が価格段に一致しないことを表す。
var errCountNotInTiers = errors.New("count is not one of the tier counts")

// Next は昇順の数量一覧counts上でcurrentの次の数量を返す。
// 最後の数量の次は最初の数量に戻る。
func Next(counts []int, current int) (int, error) {
	i, ok := indexOf(counts, current)
	if !ok {
		return 0, errCountNotInTiers
	}
	return counts[(i+1)%len(counts)], nil
}

// Prev は昇順の数量一覧counts上でcurrentの前の数量を返す。
// currentが最初の数量の場合は0（カートから削除）を返す。
func Prev(counts []int, current int) (int, error) {
	i, ok := indexOf(counts, current)
	if !ok {
		return 0, errCountNotInTiers
	}
	if i == 0 {
		return 0, nil
	}
	return counts[i-1], nil
}

func indexOf(counts []int, count int) (int, bool) {
	for i, c := range counts {
		if c == count {
			return i, true
		}
	}
	return 0, false
}
