package scheduling

import (
	"sort"
	"time"

	"github.com/hitoshi/postflow/internal/model"
)

// slotPlan はテンプレートをパースし、曜日区分ごとに時刻順へ並べたもの。
type slotPlan struct {
	workdays []Clock
	weekends []Clock
}

// compilePlan はテンプレートを検証してslotPlanに変換する。
// 時刻は文字列の辞書順でソートする（ゼロ埋めHH:MMでは時刻順と一致する）。
func compilePlan(t model.ScheduleTemplate) (slotPlan, error) {
	if err := ValidateTemplate(t); err != nil {
		return slotPlan{}, err
	}
	return slotPlan{
		workdays: sortedClocks(t.Workdays.Hours),
		weekends: sortedClocks(t.Weekends.Hours),
	}, nil
}

func sortedClocks(hours []string) []Clock {
	sorted := append([]string(nil), hours...)
	sort.Strings(sorted)
	clocks := make([]Clock, 0, len(sorted))
	for _, h := range sorted {
		c, _ := ParseClock(h) // ValidateTemplateで検証済み
		clocks = append(clocks, c)
	}
	return clocks
}

func (p slotPlan) hoursFor(d DayType) []Clock {
	if d == Weekend {
		return p.weekends
	}
	return p.workdays
}

// cursorState はスロット探索の状態。
//
// cursorは直前に確定したスロット（初期値は開始時刻）で、次のスロットは常にこれより後になる。
// dayStartがtrueの状態は日送り直後を表し、その日の00:00ちょうどのスロットも候補に含める。
type cursorState struct {
	cursor   time.Time
	dayType  DayType
	dayStart bool
}

func newCursorState(start time.Time) cursorState {
	return cursorState{cursor: start, dayType: ClassifyDay(start)}
}

// advanceDay は翌日の00:00へ進めた状態を返す。
func (s cursorState) advanceDay() cursorState {
	y, m, d := s.cursor.Date()
	next := time.Date(y, m, d+1, 0, 0, 0, 0, s.cursor.Location())
	return cursorState{cursor: next, dayType: ClassifyDay(next), dayStart: true}
}

// sameDaySlot はカーソルと同じ日の中で選択可能な最初のスロットを返す。
func (s cursorState) sameDaySlot(p slotPlan) (time.Time, bool) {
	for _, c := range p.hoursFor(s.dayType) {
		slot := c.On(s.cursor)
		if slot.After(s.cursor) || (s.dayStart && slot.Equal(s.cursor)) {
			return slot, true
		}
	}
	return time.Time{}, false
}

// take は次のスロットを確定し、そのスロットをカーソルとする新しい状態と共に返す。
// compilePlanが少なくとも一方の曜日区分に時刻があることを保証するため、
// 日送りは最大でも5日（平日が空で月曜から土曜まで進む場合）で止まる。
func (s cursorState) take(p slotPlan) (time.Time, cursorState) {
	for {
		if slot, ok := s.sameDaySlot(p); ok {
			return slot, cursorState{cursor: slot, dayType: s.dayType}
		}
		s = s.advanceDay()
	}
}

// Assign は未予約コンテンツに投稿日時を割り当てる。
//
// itemsは呼び出し元が作成日時の古い順に並べたものを渡す（並べ替えは行わない）。
// 戻り値はitemsと同じ順序・同じ件数で、各日時はテンプレートのスロット上にあり、
// 直前の割り当てより厳密に後になる。itemsが空の場合はテンプレートに関わらず空スライスを返す。
// テンプレートが不正な場合は割り当てを1件も返さずにエラーを返す。
func Assign(t model.ScheduleTemplate, items []model.SchedulableItem, start time.Time) ([]model.ScheduleAssignment, error) {
	if len(items) == 0 {
		return []model.ScheduleAssignment{}, nil
	}

	plan, err := compilePlan(t)
	if err != nil {
		return nil, err
	}

	assignments := make([]model.ScheduleAssignment, 0, len(items))
	state := newCursorState(start)
	for _, item := range items {
		var slot time.Time
		slot, state = state.take(plan)
		assignments = append(assignments, model.ScheduleAssignment{
			ID:          item.ID,
			ScheduledAt: slot,
		})
	}
	return assignments, nil
}
