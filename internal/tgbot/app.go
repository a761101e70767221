package tgbot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"reboot-miniapp/internal/config"
	"reboot-miniapp/internal/models"
	"reboot-miniapp/internal/screens"
)

// Backend is the part of the registration API the bot reads.
type Backend interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	ListEvents(ctx context.Context) ([]models.Event, error)
	GetTicket(ctx context.Context, reference string) (*models.TicketVerification, error)
}

// Exporter copies registrations somewhere admins can read them.
type Exporter interface {
	ExportUsers(ctx context.Context, users []models.User) (int, error)
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
}

type App struct {
	cfg config.Config
	bot *tgbotapi.BotAPI
	out sender
	api Backend
	exp Exporter
	log *zap.SugaredLogger

	// admin flows; only touched from the update loop
	state map[int64]userState
}

type userState struct {
	Flow string
}

// New connects to the Bot API. exp may be nil when no export target is set up.
func New(cfg config.Config, api Backend, exp Exporter, log *zap.SugaredLogger) (*App, error) {
	b, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, err
	}
	b.Debug = false
	a := newApp(cfg, b, api, exp, log)
	a.bot = b
	return a, nil
}

func newApp(cfg config.Config, out sender, api Backend, exp Exporter, log *zap.SugaredLogger) *App {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &App{
		cfg:   cfg,
		out:   out,
		api:   api,
		exp:   exp,
		log:   log,
		state: map[int64]userState{},
	}
}

func (a *App) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := a.bot.GetUpdatesChan(u)
	defer a.bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd := <-updates:
			if upd.Message != nil {
				if err := a.handleMessage(ctx, upd.Message); err != nil {
					a.log.Warnw("handle message", "chat_id", upd.Message.Chat.ID, "err", err)
				}
			} else if upd.CallbackQuery != nil {
				if err := a.handleCallback(ctx, upd.CallbackQuery); err != nil {
					a.log.Warnw("handle callback", "data", upd.CallbackQuery.Data, "err", err)
				}
			}
		}
	}
}

func (a *App) SendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := a.out.Send(msg)
	return err
}

// NotifySignup confirms an event sign-up in the user's chat.
func (a *App) NotifySignup(_ context.Context, who models.Identity, ev models.Event) error {
	name := ev.Name
	if name == "" {
		name = "the event"
	}
	text := fmt.Sprintf("✅ %s, you're signed up for %s.", firstNonEmpty(who.FirstName, "Hi"), name)
	if ev.Date != "" {
		text += "\n📅 " + ev.Date
	}
	if ev.Location != "" {
		text += "\n📍 " + ev.Location
	}
	return a.SendText(who.ID, text)
}

func (a *App) isAdmin(tgID int64) bool {
	return a.cfg.AdminTGIDs[tgID]
}

// ---------- Message handling ----------

func (a *App) handleMessage(ctx context.Context, m *tgbotapi.Message) error {
	if m.From == nil {
		return nil
	}
	tgID := m.From.ID
	txt := strings.TrimSpace(m.Text)

	switch {
	case strings.HasPrefix(txt, "/start"), strings.HasPrefix(txt, "/help"):
		a.state[tgID] = userState{}
		return a.showStart(tgID)
	case strings.HasPrefix(txt, "/events"):
		return a.showEvents(ctx, tgID)
	case strings.HasPrefix(txt, "/ticket"):
		return a.checkTicket(ctx, tgID, strings.TrimSpace(strings.TrimPrefix(txt, "/ticket")))
	case strings.HasPrefix(txt, "/admin"):
		if !a.isAdmin(tgID) {
			return a.SendText(tgID, "Access denied.")
		}
		a.state[tgID] = userState{}
		return a.showAdminMenu(tgID)
	case strings.HasPrefix(txt, "/export"):
		if !a.isAdmin(tgID) {
			return a.SendText(tgID, "Access denied.")
		}
		return a.export(ctx, tgID)
	}

	if st := a.state[tgID]; st.Flow != "" {
		return a.handleFlowInput(ctx, tgID, txt, st)
	}
	return a.showStart(tgID)
}

func (a *App) handleFlowInput(ctx context.Context, tgID int64, txt string, st userState) error {
	switch st.Flow {
	case "admin_broadcast":
		return a.handleAdminBroadcastFlow(ctx, tgID, txt)
	default:
		a.state[tgID] = userState{}
		return a.SendText(tgID, "State reset. Send /start")
	}
}

// ---------- Callback handling ----------

func (a *App) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	tgID := q.From.ID
	data := q.Data

	// ack
	_, _ = a.out.Request(tgbotapi.NewCallback(q.ID, ""))

	switch data {
	case "u:events":
		return a.showEvents(ctx, tgID)
	}
	if strings.HasPrefix(data, "a:") {
		if !a.isAdmin(tgID) {
			return a.SendText(tgID, "Access denied.")
		}
		return a.handleAdminCallback(ctx, tgID, data)
	}
	return nil
}

func (a *App) handleAdminCallback(ctx context.Context, tgID int64, data string) error {
	switch data {
	case "a:menu":
		return a.showAdminMenu(tgID)
	case "a:export":
		return a.export(ctx, tgID)
	case "a:broadcast":
		a.state[tgID] = userState{Flow: "admin_broadcast"}
		return a.SendText(tgID, "Broadcast. Send the message text (it goes to every registered user):")
	}
	return nil
}

// ---------- Screens / Menus ----------

// The library's InlineKeyboardButton has no web_app field, and a plain url
// button opens the page without initData. Buttons that launch the mini app
// are sent through MakeRequest with this wire shape instead.
type webAppInfo struct {
	URL string `json:"url"`
}

type inlineButton struct {
	Text         string      `json:"text"`
	CallbackData string      `json:"callback_data,omitempty"`
	WebApp       *webAppInfo `json:"web_app,omitempty"`
}

type inlineMarkup struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

func webAppButton(text, url string) inlineButton {
	return inlineButton{Text: text, WebApp: &webAppInfo{URL: url}}
}

func dataButton(text, data string) inlineButton {
	return inlineButton{Text: text, CallbackData: data}
}

func (a *App) sendKeyboard(chatID int64, text string, rows ...[]inlineButton) error {
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", chatID)
	params["text"] = text
	if err := params.AddInterface("reply_markup", inlineMarkup{InlineKeyboard: rows}); err != nil {
		return err
	}
	_, err := a.out.MakeRequest("sendMessage", params)
	return err
}

func (a *App) showStart(tgID int64) error {
	return a.sendKeyboard(tgID,
		"🐎 Welcome to Reboot Adventures!\n\nRegister, browse upcoming rides and look through the gallery in the app.",
		[]inlineButton{webAppButton("Open Reboot Adventures", a.cfg.WebAppURL())},
		[]inlineButton{dataButton("📅 Events", "u:events")},
	)
}

func (a *App) showAdminMenu(tgID int64) error {
	msg := tgbotapi.NewMessage(tgID, "🛠 *Admin panel*")
	msg.ParseMode = "Markdown"
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📤 Export registrations", "a:export"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📢 Broadcast", "a:broadcast"),
		),
	)
	_, err := a.out.Send(msg)
	return err
}

func (a *App) showEvents(ctx context.Context, tgID int64) error {
	events, err := a.api.ListEvents(ctx)
	if err != nil {
		a.log.Warnw("bot: list events", "err", err)
		return a.SendText(tgID, "Failed to load events")
	}

	var b strings.Builder
	for _, ev := range events {
		if !ev.IsActive {
			continue
		}
		fmt.Fprintf(&b, "• %s", ev.Name)
		if ev.Date != "" {
			fmt.Fprintf(&b, " (%s)", ev.Date)
		}
		if ev.Location != "" {
			fmt.Fprintf(&b, ", %s", ev.Location)
		}
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		return a.SendText(tgID, "No upcoming events right now.")
	}

	return a.sendKeyboard(tgID, "📅 Upcoming events\n\n"+b.String(),
		[]inlineButton{webAppButton("Sign up in the app", a.cfg.WebAppURL()+"events")},
	)
}

// checkTicket reports the server's view of a ticket; the bot never decides
// validity itself.
func (a *App) checkTicket(ctx context.Context, tgID int64, reference string) error {
	if reference == "" {
		return a.SendText(tgID, "Usage: /ticket <reference>")
	}
	t := screens.NewTicketVerification(ctx, a.api, a.log)
	defer t.Unmount()
	v, err := t.Verify(ctx, reference)
	if err != nil {
		return err
	}

	text := ticketIcon(v.Status) + " " + v.Text()
	if v.Message != "" {
		text += "\n" + v.Message
	}
	if v.Data != nil {
		text += fmt.Sprintf("\n\nReference: %s\nEvent: %s\nHolder: %s",
			v.Data.Ticket.Reference, v.Data.Event.Name, v.Data.User.FullName)
	}
	return a.SendText(tgID, text)
}

func ticketIcon(s screens.VerificationStatus) string {
	switch s {
	case screens.StatusValid:
		return "✅"
	case screens.StatusExpired:
		return "⌛"
	case screens.StatusInvalid:
		return "❌"
	default:
		return "⚠️"
	}
}

func (a *App) export(ctx context.Context, tgID int64) error {
	if a.exp == nil {
		return a.SendText(tgID, "Google Sheets export is not configured.")
	}
	users, err := a.api.ListUsers(ctx)
	if err != nil {
		a.log.Warnw("bot: list users", "err", err)
		return a.SendText(tgID, "Failed to fetch users")
	}
	n, err := a.exp.ExportUsers(ctx, users)
	if err != nil {
		a.log.Errorw("bot: export users", "err", err)
		return a.SendText(tgID, "Export failed: "+err.Error())
	}
	return a.SendText(tgID, fmt.Sprintf("✅ Exported %d registrations.", n))
}

func (a *App) handleAdminBroadcastFlow(ctx context.Context, tgID int64, txt string) error {
	msgText := strings.TrimSpace(txt)
	if msgText == "" {
		return a.SendText(tgID, "The text is empty. Send it again:")
	}
	users, err := a.api.ListUsers(ctx)
	if err != nil {
		return err
	}
	sent := 0
	for _, u := range users {
		if u.TelegramData == nil || u.TelegramData.ID == 0 {
			continue
		}
		if err := a.SendText(u.TelegramData.ID, "📢 From the organizers: "+msgText); err != nil {
			a.log.Debugw("broadcast send", "tg_id", u.TelegramData.ID, "err", err)
			continue
		}
		sent++
		time.Sleep(35 * time.Millisecond) // simple anti-flood
	}
	a.state[tgID] = userState{}
	return a.SendText(tgID, fmt.Sprintf("✅ Broadcast sent to %d users.", sent))
}

func firstNonEmpty(s ...string) string {
	for _, v := range s {
		if v != "" {
			return v
		}
	}
	return ""
}
