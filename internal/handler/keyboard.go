// Package handler provides the Telegram command and callback handlers.
package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"github.com/RaneWallin/GameNightBot/internal/dialog"
	"github.com/RaneWallin/GameNightBot/internal/resolver"
)

const (
	// CallbackPrefix is the prefix for all bot callback data.
	CallbackPrefix = "gn_"

	// PageSize is the number of entries per page in listings.
	PageSize = 10
)

// Callback actions.
const (
	ActionPick    = "pick" // pick_<dialogID>_<index>
	ActionToggle  = "tog"  // tog_<dialogID>_<optionID>
	ActionConfirm = "done" // done_<dialogID>
	ActionAddOwn  = "add"  // add_<bggID>
	ActionDelete  = "del"  // del_<sessionID>_<initiatorID>_<yes|no>
	ActionRate    = "rate" // rate_<gameID>_<stars>_<expiresUnix>
	ActionPageMy  = "pgmy" // pgmy_<telegramID>_<page>
	ActionPageSes = "pgse" // pgse_<gameID>_<page>
)

// EncodeCallback encodes an action and its parameters into callback
// data. Parameters must not contain underscores.
func EncodeCallback(action string, params ...string) string {
	if len(params) == 0 {
		return CallbackPrefix + action
	}
	return CallbackPrefix + action + "_" + strings.Join(params, "_")
}

// DecodeCallback decodes callback data into an action and parameters.
func DecodeCallback(data string) (action string, params []string) {
	if !strings.HasPrefix(data, CallbackPrefix) {
		return "", nil
	}
	parts := strings.Split(strings.TrimPrefix(data, CallbackPrefix), "_")
	return parts[0], parts[1:]
}

// BuildPicker builds a one-button-per-candidate keyboard for a pending
// single-select dialog.
func BuildPicker(dialogID string, candidates []resolver.Candidate) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}

	rows := make([][]tele.InlineButton, 0, len(candidates))
	for i, c := range candidates {
		rows = append(rows, []tele.InlineButton{{
			Text: c.Label(),
			Data: EncodeCallback(ActionPick, dialogID, strconv.Itoa(i)),
		}})
	}
	markup.InlineKeyboard = rows
	return markup
}

// BuildMultiSelect builds the toggle keyboard for a pending
// multi-select dialog, with a trailing Done row.
func BuildMultiSelect(dialogID string, options []dialog.Option, selected map[int64]bool) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}

	rows := make([][]tele.InlineButton, 0, len(options)+1)
	for _, opt := range options {
		label := opt.Label
		if selected[opt.ID] {
			label = "✅ " + label
		}
		rows = append(rows, []tele.InlineButton{{
			Text: label,
			Data: EncodeCallback(ActionToggle, dialogID, strconv.FormatInt(opt.ID, 10)),
		}})
	}
	rows = append(rows, []tele.InlineButton{{
		Text: "Done",
		Data: EncodeCallback(ActionConfirm, dialogID),
	}})
	markup.InlineKeyboard = rows
	return markup
}

// BuildAddToCollection builds the follow-up button under a game info
// card.
func BuildAddToCollection(bggID int64) *tele.ReplyMarkup {
	return &tele.ReplyMarkup{
		InlineKeyboard: [][]tele.InlineButton{{{
			Text: "➕ Add to my collection",
			Data: EncodeCallback(ActionAddOwn, strconv.FormatInt(bggID, 10)),
		}}},
	}
}

// BuildDeleteConfirm builds the yes/no confirmation for deleting a
// session. The initiator id rides along so only the asker can confirm.
func BuildDeleteConfirm(sessionID, initiatorID int64) *tele.ReplyMarkup {
	sid := strconv.FormatInt(sessionID, 10)
	uid := strconv.FormatInt(initiatorID, 10)
	return &tele.ReplyMarkup{
		InlineKeyboard: [][]tele.InlineButton{{
			{Text: "🗑 Delete", Data: EncodeCallback(ActionDelete, sid, uid, "yes")},
			{Text: "Cancel", Data: EncodeCallback(ActionDelete, sid, uid, "no")},
		}},
	}
}

// BuildStars builds the 1..5 star row for a rating poll. The expiry
// timestamp rides along so stale polls reject votes.
func BuildStars(gameID int64, expiresUnix int64) *tele.ReplyMarkup {
	gid := strconv.FormatInt(gameID, 10)
	exp := strconv.FormatInt(expiresUnix, 10)

	row := make([]tele.InlineButton, 0, 5)
	for stars := 1; stars <= 5; stars++ {
		row = append(row, tele.InlineButton{
			Text: strings.Repeat("⭐", stars),
			Data: EncodeCallback(ActionRate, gid, strconv.Itoa(stars), exp),
		})
	}
	return &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{row}}
}

// buildPager builds prev/next buttons for a paginated listing. Pages
// are zero-based; buttons only appear for reachable pages.
func buildPager(action string, page, pageCount int, params ...string) *tele.ReplyMarkup {
	var row []tele.InlineButton
	if page > 0 {
		row = append(row, tele.InlineButton{
			Text: "⬅️ Prev",
			Data: EncodeCallback(action, append(append([]string{}, params...), strconv.Itoa(page-1))...),
		})
	}
	if page < pageCount-1 {
		row = append(row, tele.InlineButton{
			Text: "Next ➡️",
			Data: EncodeCallback(action, append(append([]string{}, params...), strconv.Itoa(page+1))...),
		})
	}
	if len(row) == 0 {
		return nil
	}
	return &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{row}}
}

// pageBounds returns the slice bounds and page count for a page of n
// items, clamping the page into range.
func pageBounds(n, page int) (lo, hi, clamped, pageCount int) {
	pageCount = (n + PageSize - 1) / PageSize
	if pageCount == 0 {
		pageCount = 1
	}
	if page < 0 {
		page = 0
	}
	if page >= pageCount {
		page = pageCount - 1
	}
	lo = page * PageSize
	hi = lo + PageSize
	if hi > n {
		hi = n
	}
	return lo, hi, page, pageCount
}

// respond answers a callback with a toast.
func respond(c tele.Context, text string) error {
	return c.Respond(&tele.CallbackResponse{Text: text})
}

// respondAlert answers a callback with a modal alert.
func respondAlert(c tele.Context, text string) error {
	return c.Respond(&tele.CallbackResponse{Text: text, ShowAlert: true})
}

// dialogPickMessage maps a dialog error to its user-facing toast text
// and whether it warrants a modal alert. Internal detail never leaks.
func dialogPickMessage(err error) (text string, alert bool) {
	switch {
	case errors.Is(err, dialog.ErrUnauthorized):
		return "This prompt belongs to someone else.", false
	case errors.Is(err, dialog.ErrExpired), errors.Is(err, dialog.ErrNotFound):
		return "This prompt has expired. Run the command again.", false
	case errors.Is(err, dialog.ErrAlreadyResolved):
		return "Already chosen.", false
	case errors.Is(err, dialog.ErrNoSelection):
		return "Select at least one player first.", false
	case errors.Is(err, dialog.ErrInvalidChoice):
		return "That option is not available.", false
	default:
		return "Something went wrong. Try again later.", true
	}
}

// dialogPickError answers a failed dialog transition with a toast.
func dialogPickError(c tele.Context, err error) error {
	if err == nil {
		return nil
	}
	text, alert := dialogPickMessage(err)
	if alert {
		log.Error().Err(err).Msg("Dialog transition failed")
		return respondAlert(c, text)
	}
	return respond(c, text)
}
