package templates

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	lang := language.English

	// Shared
	message.SetString(lang, "greeting", "Hi %s,")
	message.SetString(lang, "greeting.anonymous", "Hi there,")
	message.SetString(lang, "footer", "You can change which notifications you receive in your settings.")
	message.SetString(lang, "cta.open_app", "Open the app")

	// Session reminder
	message.SetString(lang, "session_reminder.title", "Upcoming session with %s")
	message.SetString(lang, "session_reminder.subject", "Reminder: your session with %s")
	message.SetString(lang, "session_reminder.body", "Your next session with %s is on %s.")

	// Session summary
	message.SetString(lang, "session_summary_posted.title", "New session summary")
	message.SetString(lang, "session_summary_posted.subject", "%s shared your session summary")
	message.SetString(lang, "session_summary_posted.body", "%s posted a summary of your session on %s.")
	message.SetString(lang, "session_summary_posted.body.undated", "%s posted a summary of your latest session.")

	// Resource shared
	message.SetString(lang, "resource_shared.title", "New resource: %s")
	message.SetString(lang, "resource_shared.subject", "%s shared a resource with you")
	message.SetString(lang, "resource_shared.body", "%s shared \"%s\" with you.")

	printer = message.NewPrinter(lang)
}
