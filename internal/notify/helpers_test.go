package notify

import "github.com/sgd-notifier/sgdn/internal/reminder"

func newTestReminderValue() reminder.Reminder {
	return reminder.Reminder{
		ID:        "r-1",
		Message:   "Submit SGD report",
		StartDate: "2024-01-01",
		Time:      "09:00",
		Frequency: reminder.Daily,
		Priority:  reminder.PriorityImportant,
	}
}
