package seat

// Status は座席の状態を表す
type Status string

const (
	StatusFree Status = "FREE"
	StatusHeld Status = "HELD"
	StatusSold Status = "SOLD"
)

// IsOccupied は座席が HELD か SOLD かを返す
func (s Status) IsOccupied() bool {
	return s == StatusHeld || s == StatusSold
}

// Seat は座席表の1席を表す
type Seat struct {
	Label  string
	Status Status
}

// IsAvailable は座席が予約可能かを返す
func (s Seat) IsAvailable() bool {
	return s.Status == StatusFree
}

// Map は旅程の座席表（配置と占有状況の合成）を表す
type Map struct {
	ItineraryID string
	Rows        [][]Seat
	Capacity    int
	Occupied    int
}

// BuildMap は座席配置の行にスナップショットの状態を重ねて座席表を作る
// スナップショットにないラベルは FREE として扱う
func BuildMap(itineraryID string, grid [][]string, capacity int, snapshot map[string]Status) *Map {
	m := &Map{
		ItineraryID: itineraryID,
		Rows:        make([][]Seat, len(grid)),
		Capacity:    capacity,
	}
	for i, row := range grid {
		seats := make([]Seat, len(row))
		for j, label := range row {
			status := StatusFree
			if st, ok := snapshot[label]; ok && st.IsOccupied() {
				status = st
				m.Occupied++
			}
			seats[j] = Seat{Label: label, Status: status}
		}
		m.Rows[i] = seats
	}
	return m
}

// Available は容量の範囲で新たに押さえられる座席数を返す
func (m *Map) Available() int {
	free := m.Capacity - m.Occupied
	if free < 0 {
		return 0
	}
	return free
}

// FreeLabels は FREE の座席ラベルを座席表の順に返す
func (m *Map) FreeLabels() []string {
	var labels []string
	for _, row := range m.Rows {
		for _, s := range row {
			if s.IsAvailable() {
				labels = append(labels, s.Label)
			}
		}
	}
	return labels
}

// Find はラベルの座席を返す
func (m *Map) Find(label string) (Seat, bool) {
	for _, row := range m.Rows {
		for _, s := range row {
			if s.Label == label {
				return s, true
			}
		}
	}
	return Seat{}, false
}
