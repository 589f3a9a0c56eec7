package model

import (
	"fmt"
	"strings"
)

// ShareText renders the plain-text message used when a user shares an
// event with someone else.
func ShareText(ev Event) string {
	m := ev.Info()
	start, end := ev.Span()

	status := "[진행중]"
	dateRange := start.String()

	switch e := ev.(type) {
	case Personal:
		if e.Completed {
			status = "[완료]"
		}
		if e.Ranged() {
			dateRange = fmt.Sprintf("%s ~ %s%s", start, end, exclusionSuffix(e))
		}
	case Contact:
		if e.PhoneNumber != "" {
			m.Description = strings.TrimSpace(m.Description + "\n연락처: " + e.PhoneNumber)
		}
	case Holiday:
		status = "[공휴일]"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s 일정 안내\n", status)
	fmt.Fprintf(&b, "기간: %s\n", dateRange)
	fmt.Fprintf(&b, "제목: %s", m.Title)
	if m.Description != "" {
		fmt.Fprintf(&b, "\n설명: %s", m.Description)
	}
	return b.String()
}

func exclusionSuffix(p Personal) string {
	switch {
	case p.ExcludeSaturday && p.ExcludeSunday:
		return " (주말 제외)"
	case p.ExcludeSaturday:
		return " (토요일 제외)"
	case p.ExcludeSunday:
		return " (일요일 제외)"
	}
	return ""
}
