package bot

var translations = map[string]map[string]string{
	"en": {
		"case_title":              "Message reported!",
		"case_resolved":           "Report handled",
		"field_moderators_online": "Moderators online",
		"field_channel":           "Channel",
		"field_author":            "Author",
		"field_reporter":          "Reported by",
		"case_content":            "Message content:",
		"track_delete_message":    "For deletion",
		"track_silence_suspect":   "For silencing",
		"track_block_reporter":    "For blocking the reporter",
		"case_sent_at":            "Message sent",
		"case_edited":             "Message edited",
		"case_new_content":        "New content:",
		"case_edited_at":          "Edited",
		"case_deleted":            "Message deleted",
		"case_deleted_at":         "Deleted",
		"button_delete_message":   "Delete message",
		"button_silence_suspect":  "Silence member",
		"button_block_reporter":   "Block reporter",
		"button_show_message":     "Show message",
		"button_retract":          "Undo: %s",
		"button_prev":             "Previous",
		"button_next":             "Next",
		"report_sent":             "The message was reported to the moderators.",
		"report_sent_mod":         "The message was reported to the moderators, <#%s>",
		"report_blocked":          "You have been blocked from reporting messages. Your report was not sent.",
		"report_already":          "This message has already been reported.",
		"report_rate_limited":     "You are reporting too fast, try again later.",
		"report_dm":               "A message of yours was reported to the moderators!",
		"vote_not_case":           "This report no longer exists.",
		"giveaway_winner_count":   "%d winners",
		"giveaway_footer":         "ID: %s | ends at",
		"giveaway_winners":        "Winners: %s",
		"giveaway_nobody":         "Nobody",
		"giveaway_announce":       ":tada: %s won **%s**!",
		"giveaway_announce_none":  ":pensive: **Nobody** won **%s**",
		"giveaway_started":        "Giveaway started in <#%s>",
		"giveaway_start_failed":   "Giveaway failed to be started",
		"giveaway_rerolled":       "Rerolled giveaway",
		"giveaway_ended":          "Giveaway ended in <#%s>",
		"giveaway_already_ended":  "Giveaway has already ended",
		"giveaway_completed":      "Giveaway has already ended and can no longer be edited",
		"giveaway_deleted":        "Giveaway deleted",
		"giveaway_not_found":      "Giveaway not found",
		"giveaway_invalid_value":  "The value must be at least 1",
		"giveaway_edit_duration":  "Duration changed to %d seconds",
		"giveaway_edit_winners":   "Max winners changed to %d",
		"giveaway_list_title":     "Giveaway #%d",
		"giveaway_list_entry":     "Prize: %s\nWinners: %s\nEnds: %s",
		"giveaway_list_empty":     "No giveaways yet",
		"poll_title":              "Vote: %s",
		"poll_author":             "Started by",
		"poll_total":              "Votes",
		"poll_ends_at":            "Ends",
		"poll_ended_at":           "Ended",
		"poll_ended":              "Vote has ended!",
		"poll_placeholder":        "Join the vote!",
		"poll_created":            "Poll started in <#%s>",
		"poll_start_failed":       "The poll could not be started, perhaps the options are too long",
		"poll_too_few":            "Give at least 2 comma separated options",
		"poll_too_many":           "At most 5 options fit on a poll",
		"poll_invalid_duration":   "The duration must be at least 1 second",
		"poll_not_found":          "This poll no longer exists.",
		"poll_closed":             "This poll has already ended.",
		"unsilence_done":          "<@%s> is no longer silenced",
		"activity_title":          "Activity on %s",
		"activity_total":          "Messages",
		"activity_top":            "Most active",
		"activity_none":           "No messages yet",
		"error_failed":            "Something went wrong, try again later.",
		"error_only_guild":        "This command only works in the server.",
		"error_unknown":           "Unknown command.",
	},
	"fi": {
		"case_title":              "Viestistä on tehty ilmoitus!",
		"case_resolved":           "Ilmoitus käsitelty",
		"field_moderators_online": "Arvojäseniä paikalla",
		"field_channel":           "Viestin kanava",
		"field_author":            "Viestin lähettänyt",
		"field_reporter":          "Ilmoituksen tehnyt",
		"case_content":            "Viestin sisältö:",
		"track_delete_message":    "Poistamisen puolesta",
		"track_silence_suspect":   "Hiljennyksen puolesta",
		"track_block_reporter":    "Ilmoittajan estämisen puolesta",
		"case_sent_at":            "Viesti lähetetty",
		"case_edited":             "Viestiä on muokattu",
		"case_new_content":        "Uusi sisältö:",
		"case_edited_at":          "Muokkausajankohta",
		"case_deleted":            "Viesti on poistettu",
		"case_deleted_at":         "Poiston ajankohta",
		"button_delete_message":   "Poista viesti",
		"button_silence_suspect":  "Hiljennä jäsen",
		"button_block_reporter":   "Estä ilmoittaja",
		"button_show_message":     "Näytä viesti",
		"button_retract":          "Peru: %s",
		"button_prev":             "Edellinen",
		"button_next":             "Seuraava",
		"report_sent":             "Viesti on ilmiannettu arvojäsenten neuvostolle",
		"report_sent_mod":         "Viesti on ilmiannettu arvojäsenten neuvostolle, <#%s>",
		"report_blocked":          "Sinut on hyllytetty ilmoitus-ominaisuuden väärinkäytöstä! Ilmoitustasi ei lähetetty.",
		"report_already":          "Viestistä on jo tehty ilmoitus.",
		"report_rate_limited":     "Teet ilmoituksia liian nopeasti, yritä myöhemmin uudelleen.",
		"report_dm":               "Viestistäsi on tehty ilmoitus moderaattoreille!",
		"giveaway_nobody":         "Ei kukaan",
		"poll_title":              "Äänestä: %s",
		"poll_placeholder":        "Osallistu äänestykseen!",
		"poll_ended":              "Äänestys on päättynyt!",
		"error_failed":            "Jokin meni pieleen, yritä myöhemmin uudelleen.",
	},
}

func (b *Bot) t(lang, key string) string {
	if values, ok := translations[lang]; ok {
		if value, ok := values[key]; ok {
			return value
		}
	}
	if value, ok := translations["en"][key]; ok {
		return value
	}
	return key
}

func (b *Bot) lang() string {
	if b.cfg.DefaultLanguage == "" {
		return "en"
	}
	return b.cfg.DefaultLanguage
}
