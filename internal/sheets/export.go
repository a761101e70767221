package sheets

import (
	"context"
	"fmt"
	"strconv"

	sheetsv4 "google.golang.org/api/sheets/v4"

	"reboot-miniapp/internal/models"
)

const SheetRegistrations = "Registrations"

var registrationHeader = []interface{}{
	"id", "full_name", "email", "phone_number", "age", "weight", "height",
	"horse_riding_experience", "referral_source", "tg_id", "tg_username", "events", "created_at",
}

// ExportUsers replaces the Registrations sheet with one row per user under a
// header row and reports how many users were written.
func (c *Client) ExportUsers(ctx context.Context, users []models.User) (int, error) {
	rng := SheetRegistrations + "!A:Z"
	if _, err := c.srv.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &sheetsv4.ClearValuesRequest{}).
		Context(ctx).
		Do(); err != nil {
		return 0, fmt.Errorf("clear %s: %w", SheetRegistrations, err)
	}

	rows := make([][]interface{}, 0, len(users)+1)
	rows = append(rows, registrationHeader)
	for _, u := range users {
		rows = append(rows, userRow(u))
	}
	vr := &sheetsv4.ValueRange{Values: rows}
	if _, err := c.srv.Spreadsheets.Values.Update(c.spreadsheetID, SheetRegistrations+"!A1", vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do(); err != nil {
		return 0, fmt.Errorf("write %s: %w", SheetRegistrations, err)
	}
	return len(users), nil
}

func userRow(u models.User) []interface{} {
	var tgID, tgUsername string
	if u.TelegramData != nil {
		tgID = strconv.FormatInt(u.TelegramData.ID, 10)
		tgUsername = u.TelegramData.Username
	}
	return []interface{}{
		u.Key(),
		u.FullName,
		u.Email,
		u.PhoneNumber,
		u.Age,
		u.Weight,
		u.Height,
		string(u.HorseRidingExperience),
		u.ReferralSource,
		tgID,
		tgUsername,
		len(u.RegisteredEvents),
		u.CreatedAt,
	}
}
