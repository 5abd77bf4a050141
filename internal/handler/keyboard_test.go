package handler

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/RaneWallin/GameNightBot/internal/dialog"
)

func TestEncodeDecodeCallback(t *testing.T) {
	tests := []struct {
		name   string
		action string
		params []string
	}{
		{name: "no params", action: ActionConfirm, params: nil},
		{name: "one param", action: ActionAddOwn, params: []string{"174430"}},
		{name: "three params", action: ActionDelete, params: []string{"42", "99", "yes"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := EncodeCallback(tt.action, tt.params...)
			require.True(t, strings.HasPrefix(data, CallbackPrefix))

			action, params := DecodeCallback(data)
			assert.Equal(t, tt.action, action)
			if len(tt.params) == 0 {
				assert.Empty(t, params)
			} else {
				assert.Equal(t, tt.params, params)
			}
		})
	}
}

func TestDecodeCallbackForeignData(t *testing.T) {
	action, params := DecodeCallback("shop_buy_3")
	assert.Empty(t, action)
	assert.Nil(t, params)
}

// TestEncodeDecodeRoundTripProperty checks that decoding always
// recovers the action and parameters, for any underscore-free params.
func TestEncodeDecodeRoundTripProperty(t *testing.T) {
	param := rapid.StringMatching(`[a-z0-9-]{1,12}`)
	rapid.Check(t, func(t *rapid.T) {
		action := rapid.SampledFrom([]string{
			ActionPick, ActionToggle, ActionConfirm, ActionAddOwn,
			ActionDelete, ActionRate, ActionPageMy, ActionPageSes,
		}).Draw(t, "action")
		params := rapid.SliceOfN(param, 0, 4).Draw(t, "params")

		gotAction, gotParams := DecodeCallback(EncodeCallback(action, params...))
		if gotAction != action {
			t.Fatalf("action round trip failed: want %q, got %q", action, gotAction)
		}
		if len(gotParams) != len(params) {
			t.Fatalf("param count mismatch: want %v, got %v", params, gotParams)
		}
		for i := range params {
			if gotParams[i] != params[i] {
				t.Fatalf("param %d mismatch: want %q, got %q", i, params[i], gotParams[i])
			}
		}
	})
}

func TestDialogPickMessage(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		text  string
		alert bool
	}{
		{name: "unauthorized", err: dialog.ErrUnauthorized, text: "This prompt belongs to someone else."},
		{name: "expired", err: dialog.ErrExpired, text: "This prompt has expired. Run the command again."},
		{name: "not found reads as expired", err: dialog.ErrNotFound, text: "This prompt has expired. Run the command again."},
		{name: "already resolved", err: dialog.ErrAlreadyResolved, text: "Already chosen."},
		{name: "no selection", err: dialog.ErrNoSelection, text: "Select at least one player first."},
		{name: "invalid choice", err: dialog.ErrInvalidChoice, text: "That option is not available."},
		{name: "unknown stays generic", err: errors.New("pool exhausted: conn refused"), text: "Something went wrong. Try again later.", alert: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, alert := dialogPickMessage(tt.err)
			assert.Equal(t, tt.text, text)
			assert.Equal(t, tt.alert, alert)
			// Internal error detail must never reach the toast.
			assert.NotContains(t, text, tt.err.Error())
		})
	}
}

func TestPageBounds(t *testing.T) {
	tests := []struct {
		name      string
		n, page   int
		lo, hi    int
		clamped   int
		pageCount int
	}{
		{name: "empty list", n: 0, page: 0, lo: 0, hi: 0, clamped: 0, pageCount: 1},
		{name: "single page", n: 7, page: 0, lo: 0, hi: 7, clamped: 0, pageCount: 1},
		{name: "exact boundary", n: PageSize, page: 0, lo: 0, hi: PageSize, clamped: 0, pageCount: 1},
		{name: "second page partial", n: 15, page: 1, lo: 10, hi: 15, clamped: 1, pageCount: 2},
		{name: "negative page clamps to first", n: 15, page: -3, lo: 0, hi: 10, clamped: 0, pageCount: 2},
		{name: "overshoot clamps to last", n: 15, page: 9, lo: 10, hi: 15, clamped: 1, pageCount: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, hi, clamped, pageCount := pageBounds(tt.n, tt.page)
			assert.Equal(t, tt.lo, lo)
			assert.Equal(t, tt.hi, hi)
			assert.Equal(t, tt.clamped, clamped)
			assert.Equal(t, tt.pageCount, pageCount)
		})
	}
}

// TestPageBoundsProperty checks the slicing invariants for any list
// size and requested page.
func TestPageBoundsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 500).Draw(t, "n")
		page := rapid.IntRange(-5, 100).Draw(t, "page")

		lo, hi, clamped, pageCount := pageBounds(n, page)

		if pageCount < 1 {
			t.Fatalf("pageCount must be at least 1, got %d", pageCount)
		}
		if clamped < 0 || clamped >= pageCount {
			t.Fatalf("clamped page %d out of range [0, %d)", clamped, pageCount)
		}
		if lo < 0 || hi > n || lo > hi {
			t.Fatalf("bounds [%d, %d) invalid for n=%d", lo, hi, n)
		}
		if n > 0 && hi-lo == 0 {
			t.Fatalf("non-empty list produced an empty page: n=%d page=%d", n, page)
		}
		if hi-lo > PageSize {
			t.Fatalf("page too large: %d items", hi-lo)
		}
	})
}
