// Package scheduling はコンテンツの自動予約（投稿スロットへの割り当て）を提供する。
//
// 週次テンプレート（平日/週末ごとの投稿時刻）に従い、未予約コンテンツを
// 作成日時の古い順に、単調増加するカーソルから見て次に空いているスロットへ割り当てる。
// 割り当て計算（Assign）はI/Oを持たない純粋関数で、永続化はServiceが担う。
package scheduling

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/hitoshi/postflow/internal/model"
)

// clockPattern はゼロ埋め24時間表記のHH:MMにのみ一致する。
// 辞書順ソートが時刻順と一致するのはこの固定幅フォーマットの場合に限られる。
var clockPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

// Clock は1日の中の時刻（時・分）を表す。
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock は"HH:MM"形式の文字列をClockに変換する。
func ParseClock(s string) (Clock, error) {
	m := clockPattern.FindStringSubmatch(s)
	if m == nil {
		return Clock{}, fmt.Errorf("invalid time of day %q (want HH:MM)", s)
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	return Clock{Hour: hour, Minute: minute}, nil
}

// String はHH:MM形式の文字列を返す。
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// On は指定日のカレンダー日付とこの時刻を組み合わせた日時を返す。
// 秒以下は0に揃える。
func (c Clock) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, c.Hour, c.Minute, 0, 0, day.Location())
}

// DayType は曜日区分（平日/週末）を表す。
type DayType int

const (
	// Workday は月曜〜金曜。
	Workday DayType = iota
	// Weekend は土曜・日曜。
	Weekend
)

// String はログ出力用の名前を返す。
func (d DayType) String() string {
	if d == Weekend {
		return "weekend"
	}
	return "workday"
}

// ClassifyDay は日時のカレンダー日付を平日/週末に分類する。
func ClassifyDay(t time.Time) DayType {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return Weekend
	default:
		return Workday
	}
}

// DefaultTemplate はテンプレート未保存のユーザーに適用する既定値を返す。
// 平日は09:00、週末は12:00の1枠ずつ。
func DefaultTemplate() model.ScheduleTemplate {
	return model.ScheduleTemplate{
		Workdays: model.DayTypeConfig{Count: 1, Hours: []string{"09:00"}},
		Weekends: model.DayTypeConfig{Count: 1, Hours: []string{"12:00"}},
	}
}

// ValidateTemplate はテンプレートの全時刻がHH:MM形式であること、
// および平日・週末の少なくとも一方に時刻があることを検証する。
// 問題がある場合は*model.APIErrorを返す。
func ValidateTemplate(t model.ScheduleTemplate) error {
	var problems []string
	for _, h := range t.Workdays.Hours {
		if _, err := ParseClock(h); err != nil {
			problems = append(problems, fmt.Sprintf("workdays: %q", h))
		}
	}
	for _, h := range t.Weekends.Hours {
		if _, err := ParseClock(h); err != nil {
			problems = append(problems, fmt.Sprintf("weekends: %q", h))
		}
	}
	if len(problems) > 0 {
		return model.NewInvalidTemplateError(problems)
	}
	if len(t.Workdays.Hours) == 0 && len(t.Weekends.Hours) == 0 {
		return model.NewNoSlotsError()
	}
	return nil
}

// NormalizeTemplate は各曜日区分の時刻を重複除去・昇順ソートし、Countを再計算したコピーを返す。
// 保存前に呼び出すことを想定しており、入力は検証済みであること。
func NormalizeTemplate(t model.ScheduleTemplate) model.ScheduleTemplate {
	return model.ScheduleTemplate{
		Workdays: normalizeDay(t.Workdays),
		Weekends: normalizeDay(t.Weekends),
	}
}

func normalizeDay(c model.DayTypeConfig) model.DayTypeConfig {
	seen := make(map[string]bool, len(c.Hours))
	hours := make([]string, 0, len(c.Hours))
	for _, h := range c.Hours {
		if seen[h] {
			continue
		}
		seen[h] = true
		hours = append(hours, h)
	}
	sort.Strings(hours)
	return model.DayTypeConfig{Count: len(hours), Hours: hours}
}
