// Package notify fans a published need out to the four subscriber
// channels: FCM topics, web push, WhatsApp and email.
package notify

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/givefood/needwatch/internal/needtext"
)

// notificationIcon is the icon path browsers show with push
// notifications.
const notificationIcon = "/static/img/notificationicon.svg"

// Need is the published need a notification describes.
type Need struct {
	ID           uuid.UUID
	FoodbankID   uuid.UUID
	FoodbankName string
	FoodbankSlug string
	NeedText     string
}

// Items returns the need's individual item lines.
func (n Need) Items() []string {
	return needtext.Items(n.NeedText)
}

// Title returns the notification title shown on every channel.
func (n Need) Title() string {
	return fmt.Sprintf("%s needs %d items", n.FoodbankName, needtext.CountItems(n.NeedText))
}

// FoodbankURL returns the food bank's page on the site.
func (n Need) FoodbankURL(siteDomain string) string {
	return siteDomain + "/needs/at/" + n.FoodbankSlug + "/"
}

// packItemsBytes joins items with ", " until adding another item would
// push the UTF-8 byte length over maxBytes. Items are never split.
func packItemsBytes(items []string, maxBytes int) string {
	var body string
	for _, item := range items {
		candidate := item
		if body != "" {
			candidate = body + ", " + item
		}
		if len(candidate) > maxBytes {
			break
		}
		body = candidate
	}
	return body
}

// packItemsChars is packItemsBytes measured in runes rather than bytes.
func packItemsChars(items []string, maxChars int) string {
	var body string
	for _, item := range items {
		candidate := item
		if body != "" {
			candidate = body + ", " + item
		}
		if len([]rune(candidate)) > maxChars {
			break
		}
		body = candidate
	}
	return body
}

// spelledNumbers covers the range news style spells out in prose.
var spelledNumbers = [...]string{"zero", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine"}

// spellCount renders small counts as words and larger ones as digits.
func spellCount(n int) string {
	if n >= 0 && n < len(spelledNumbers) {
		return spelledNumbers[n]
	}
	return strconv.Itoa(n)
}

// firstItems returns up to n items, padding with empty strings so
// positional template parameters always line up.
func firstItems(items []string, n int) []string {
	out := make([]string, n)
	for i := 0; i < n && i < len(items); i++ {
		out[i] = items[i]
	}
	return out
}

// itemLines renders items one per line for plain text bodies.
func itemLines(items []string) string {
	return strings.Join(items, "\n")
}
