package seat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_IsOccupied(t *testing.T) {
	tests := []struct {
		name     string
		status   Status
		expected bool
	}{
		{"空席", StatusFree, false},
		{"仮押さえ", StatusHeld, true},
		{"販売済み", StatusSold, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.status.IsOccupied())
		})
	}
}

func TestBuildMap(t *testing.T) {
	grid := [][]string{{"1A", "1B"}, {"2A", "2B"}}

	t.Run("スナップショットの状態が重なる", func(t *testing.T) {
		m := BuildMap("itin-1", grid, 4, map[string]Status{
			"1A": StatusSold,
			"2B": StatusHeld,
		})

		require.Len(t, m.Rows, 2)
		assert.Equal(t, Seat{Label: "1A", Status: StatusSold}, m.Rows[0][0])
		assert.Equal(t, Seat{Label: "1B", Status: StatusFree}, m.Rows[0][1])
		assert.Equal(t, Seat{Label: "2B", Status: StatusHeld}, m.Rows[1][1])
		assert.Equal(t, 2, m.Occupied)
		assert.Equal(t, 2, m.Available())
		assert.Equal(t, []string{"1B", "2A"}, m.FreeLabels())
	})

	t.Run("配置にないラベルは無視される", func(t *testing.T) {
		m := BuildMap("itin-1", grid, 4, map[string]Status{"9Z": StatusSold})

		assert.Equal(t, 0, m.Occupied)
		assert.Len(t, m.FreeLabels(), 4)
	})

	t.Run("容量に達すると空席数は0", func(t *testing.T) {
		m := BuildMap("itin-1", grid, 1, map[string]Status{"1A": StatusHeld})

		assert.Equal(t, 0, m.Available())
		assert.Len(t, m.FreeLabels(), 3)
	})

	t.Run("同じ入力からは同じ座席集合", func(t *testing.T) {
		a := BuildMap("itin-1", grid, 4, nil)
		b := BuildMap("itin-1", grid, 4, map[string]Status{"1A": StatusHeld})

		var la, lb []string
		for _, row := range a.Rows {
			for _, s := range row {
				la = append(la, s.Label)
			}
		}
		for _, row := range b.Rows {
			for _, s := range row {
				lb = append(lb, s.Label)
			}
		}
		assert.Equal(t, la, lb)
	})
}

func TestMap_Find(t *testing.T) {
	m := BuildMap("itin-1", [][]string{{"1A"}}, 1, map[string]Status{"1A": StatusHeld})

	s, ok := m.Find("1A")
	require.True(t, ok)
	assert.Equal(t, StatusHeld, s.Status)
	assert.False(t, s.IsAvailable())

	_, ok = m.Find("2A")
	assert.False(t, ok)
}
