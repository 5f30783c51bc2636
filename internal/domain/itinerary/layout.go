package itinerary

import (
	"slices"
	"strconv"
)

// 座席配置の上限（座席表の生成が要求ごとに行われるため）
const (
	maxRows    = 200
	maxColumns = 26
	maxSeats   = maxRows * maxColumns
)

// Layout は座席配置を表す
// Rows×Columns のグリッドか、明示的なラベル一覧のどちらか一方を持つ
type Layout struct {
	Rows     int
	Columns  int
	Explicit []string
	RowWidth int // 明示ラベルを座席表で折り返す幅（0 なら1行）
}

// GridLayout はグリッド配置を作成する
func GridLayout(rows, columns int) Layout {
	return Layout{Rows: rows, Columns: columns}
}

// ExplicitLayout は明示ラベル配置を作成する
func ExplicitLayout(labels []string, rowWidth int) Layout {
	return Layout{Explicit: slices.Clone(labels), RowWidth: rowWidth}
}

// IsExplicit は明示ラベル配置かを返す
func (l Layout) IsExplicit() bool {
	return len(l.Explicit) > 0
}

// Labels は座席ラベルを決定的な順序で返す
// 例: 2行×2列 → 1A, 1B, 2A, 2B
func (l Layout) Labels() []string {
	if l.IsExplicit() {
		return slices.Clone(l.Explicit)
	}
	labels := make([]string, 0, l.Size())
	for r := 1; r <= l.Rows; r++ {
		for c := 0; c < l.Columns; c++ {
			labels = append(labels, gridLabel(r, c))
		}
	}
	return labels
}

// Grid は座席ラベルを表示用の行に分割して返す
func (l Layout) Grid() [][]string {
	labels := l.Labels()
	width := l.Columns
	if l.IsExplicit() {
		width = l.RowWidth
	}
	if width <= 0 {
		return [][]string{labels}
	}
	rows := make([][]string, 0, (len(labels)+width-1)/width)
	for start := 0; start < len(labels); start += width {
		end := min(start+width, len(labels))
		rows = append(rows, labels[start:end])
	}
	return rows
}

// Size は座席数を返す
func (l Layout) Size() int {
	if l.IsExplicit() {
		return len(l.Explicit)
	}
	return l.Rows * l.Columns
}

// Contains は座席ラベルが配置に含まれるかを返す
func (l Layout) Contains(label string) bool {
	if label == "" {
		return false
	}
	if l.IsExplicit() {
		return slices.Contains(l.Explicit, label)
	}
	for r := 1; r <= l.Rows; r++ {
		for c := 0; c < l.Columns; c++ {
			if gridLabel(r, c) == label {
				return true
			}
		}
	}
	return false
}

// Equal は配置が同一かを返す
func (l Layout) Equal(other Layout) bool {
	return l.Rows == other.Rows && l.Columns == other.Columns &&
		l.RowWidth == other.RowWidth && slices.Equal(l.Explicit, other.Explicit)
}

// Validate は配置の検証を行う
func (l Layout) Validate() error {
	if l.IsExplicit() {
		if l.Rows != 0 || l.Columns != 0 {
			return ErrAmbiguousLayout
		}
		if l.RowWidth < 0 || len(l.Explicit) > maxSeats {
			return ErrInvalidLayout
		}
		seen := make(map[string]struct{}, len(l.Explicit))
		for _, label := range l.Explicit {
			if label == "" {
				return ErrInvalidLayout
			}
			if _, dup := seen[label]; dup {
				return ErrDuplicateSeatLabel
			}
			seen[label] = struct{}{}
		}
		return nil
	}
	if l.Rows <= 0 || l.Rows > maxRows || l.Columns <= 0 || l.Columns > maxColumns {
		return ErrInvalidLayout
	}
	return nil
}

func gridLabel(row, column int) string {
	return strconv.Itoa(row) + string(rune('A'+column))
}
