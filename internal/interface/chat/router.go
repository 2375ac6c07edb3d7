package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/yanqian/stream-guard-bot/internal/domain/guard"
	apperrors "github.com/yanqian/stream-guard-bot/pkg/errors"
	"github.com/yanqian/stream-guard-bot/pkg/metrics"
)

const (
	commandPrefix       = "!"
	defaultMessageLimit = 500
	faqSeparator        = " | "
	commandTimeout      = 30 * time.Second
)

// Message is one chat line as seen by the router.
type Message struct {
	ID            string
	Channel       string
	User          string
	IsBroadcaster bool
	IsModerator   bool
	Text          string
}

func (m Message) privileged() bool {
	return m.IsBroadcaster || m.IsModerator
}

// Sender posts to chat.
type Sender interface {
	Say(channel, text string)
	Reply(channel, parentID, text string)
}

type commandFunc func(ctx context.Context, msg Message, args string)

type command struct {
	run        commandFunc
	privileged bool
	needsBot   bool
}

// Router dispatches chat messages to channel bots.
type Router struct {
	registry     *Registry
	sender       Sender
	botName      string
	messageLimit int
	recorder     *metrics.Recorder
	logger       *slog.Logger
	commands     map[string]command
}

// NewRouter constructs a router. botName is the bot's own login, whose
// messages are ignored.
func NewRouter(registry *Registry, sender Sender, botName string, messageLimit int, recorder *metrics.Recorder, logger *slog.Logger) *Router {
	if messageLimit <= 0 {
		messageLimit = defaultMessageLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		registry:     registry,
		sender:       sender,
		botName:      strings.ToLower(strings.TrimSpace(botName)),
		messageLimit: messageLimit,
		recorder:     recorder,
		logger:       logger.With("component", "chat.router"),
	}
	r.commands = map[string]command{
		"guard":                {run: r.guard},
		"part":                 {run: r.part},
		"addqa":                {run: r.addQA, privileged: true, needsBot: true},
		"removeqa":             {run: r.removeQA, privileged: true, needsBot: true},
		"updateqa":             {run: r.updateQA, privileged: true, needsBot: true},
		"setresponsethreshold": {run: r.setThreshold, privileged: true, needsBot: true},
		"setmode":              {run: r.setMode, privileged: true, needsBot: true},
		"listfaq":              {run: r.listFAQ, needsBot: true},
		"ask":                  {run: r.ask, needsBot: true},
	}
	return r
}

// Handle processes one chat message. Anything that is not a command is an
// implicit question.
func (r *Router) Handle(ctx context.Context, msg Message) {
	if strings.EqualFold(strings.TrimSpace(msg.User), r.botName) {
		return
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	if !strings.HasPrefix(text, commandPrefix) {
		r.implicitAsk(ctx, msg, text)
		return
	}

	name, args := splitCommand(text)
	cmd, ok := r.commands[strings.ToLower(name)]
	if !ok {
		return
	}
	if cmd.privileged && !msg.privileged() {
		return
	}
	if cmd.needsBot {
		if _, joined := r.registry.Get(msg.Channel); !joined {
			return
		}
	}
	r.recorder.Command(strings.ToLower(name))
	cmd.run(ctx, msg, args)
}

func (r *Router) guard(ctx context.Context, msg Message, _ string) {
	channel := guard.NormalizeChannel(msg.User)
	_, created, err := r.registry.Join(ctx, channel)
	if err != nil {
		r.logger.Error("failed to guard channel", "channel", channel, "error", err)
		r.sender.Reply(msg.Channel, msg.ID, "Could not start guarding "+channel+", please try again later.")
		return
	}
	if !created {
		r.sender.Say(msg.Channel, channel+" is already guarded!")
		return
	}
	r.sender.Say(msg.Channel, channel+" is now guarded!")
}

func (r *Router) part(_ context.Context, msg Message, _ string) {
	channel := guard.NormalizeChannel(msg.User)
	if _, ok := r.registry.Get(channel); !ok {
		return
	}
	r.sender.Say(msg.Channel, "Stream Guard Bot has left "+channel+"'s chat")
	r.registry.Part(channel)
}

func (r *Router) addQA(ctx context.Context, msg Message, args string) {
	parts := parseArgs(args)
	if len(parts) != 2 {
		r.sender.Reply(msg.Channel, msg.ID, `Usage: !addQA "question" "answer"`)
		return
	}
	bot, _ := r.registry.Get(msg.Channel)
	entry, err := bot.AddQA(ctx, parts[0], parts[1])
	if err != nil {
		r.replyError(msg, "add the FAQ entry", err)
		return
	}
	r.sender.Reply(msg.Channel, msg.ID, fmt.Sprintf("Added FAQ #%d.", entry.Position))
}

func (r *Router) removeQA(ctx context.Context, msg Message, args string) {
	position, err := strconv.Atoi(strings.TrimSpace(args))
	if err != nil {
		r.sender.Reply(msg.Channel, msg.ID, "Usage: !removeQA <number>")
		return
	}
	bot, _ := r.registry.Get(msg.Channel)
	entry, err := bot.RemoveQA(ctx, position)
	if err != nil {
		r.replyError(msg, "remove the FAQ entry", err)
		return
	}
	r.sender.Reply(msg.Channel, msg.ID, fmt.Sprintf("Removed FAQ #%d: %s", entry.Position, entry.Question))
}

func (r *Router) updateQA(ctx context.Context, msg Message, args string) {
	parts := parseArgs(args)
	if len(parts) != 2 {
		r.sender.Reply(msg.Channel, msg.ID, `Usage: !updateQA <number> "answer"`)
		return
	}
	position, err := strconv.Atoi(parts[0])
	if err != nil {
		r.sender.Reply(msg.Channel, msg.ID, `Usage: !updateQA <number> "answer"`)
		return
	}
	bot, _ := r.registry.Get(msg.Channel)
	entry, err := bot.UpdateQA(ctx, position, parts[1])
	if err != nil {
		r.replyError(msg, "update the FAQ entry", err)
		return
	}
	r.sender.Reply(msg.Channel, msg.ID, fmt.Sprintf("Updated FAQ #%d.", entry.Position))
}

func (r *Router) setThreshold(ctx context.Context, msg Message, args string) {
	threshold, err := strconv.ParseFloat(strings.TrimSpace(args), 64)
	if err != nil {
		r.sender.Reply(msg.Channel, msg.ID, "Usage: !setResponseThreshold <number between -1 and 1>")
		return
	}
	bot, _ := r.registry.Get(msg.Channel)
	settings, err := bot.SetThreshold(ctx, threshold)
	if err != nil {
		r.replyError(msg, "change the threshold", err)
		return
	}
	r.sender.Reply(msg.Channel, msg.ID, fmt.Sprintf("Response threshold set to %g.", settings.Threshold))
}

func (r *Router) setMode(ctx context.Context, msg Message, args string) {
	mode, ok := guard.ParseMode(args)
	if !ok {
		r.sender.Reply(msg.Channel, msg.ID, "Usage: !setMode <disabled|freeform|retrieval>")
		return
	}
	bot, _ := r.registry.Get(msg.Channel)
	settings, err := bot.SetMode(ctx, mode)
	if err != nil {
		r.replyError(msg, "change the mode", err)
		return
	}
	r.sender.Reply(msg.Channel, msg.ID, fmt.Sprintf("Mode set to %s.", settings.Mode))
}

func (r *Router) listFAQ(_ context.Context, msg Message, _ string) {
	bot, _ := r.registry.Get(msg.Channel)
	entries := bot.ListFAQ()
	if len(entries) == 0 {
		r.sender.Say(msg.Channel, "The FAQ is empty.")
		return
	}
	lines := make([]string, len(entries))
	for i, entry := range entries {
		lines[i] = entry.String()
	}
	for _, chunk := range chunkMessages(lines, faqSeparator, r.messageLimit) {
		r.sender.Say(msg.Channel, chunk)
	}
}

func (r *Router) ask(ctx context.Context, msg Message, args string) {
	if args == "" {
		return
	}
	bot, _ := r.registry.Get(msg.Channel)
	reply, err := bot.Ask(ctx, args)
	if err != nil {
		r.logger.Error("question failed", "channel", bot.Channel(), "error", err)
		if guard.IsProviderError(err) {
			r.sender.Reply(msg.Channel, msg.ID, "Sorry, I can't answer right now.")
		}
		return
	}
	if reply.Text == "" {
		return
	}
	r.postReply(msg, reply.Text)
}

func (r *Router) implicitAsk(ctx context.Context, msg Message, text string) {
	bot, ok := r.registry.Get(msg.Channel)
	if !ok {
		return
	}
	reply, err := bot.Ask(ctx, text)
	if err != nil {
		r.logger.Warn("implicit question failed", "channel", bot.Channel(), "error", err)
		return
	}
	if reply.Outcome != guard.OutcomeAnswered || reply.Text == "" {
		return
	}
	r.postReply(msg, reply.Text)
}

func (r *Router) postReply(msg Message, text string) {
	for _, chunk := range chunkMessages([]string{text}, "", r.messageLimit) {
		r.sender.Reply(msg.Channel, msg.ID, chunk)
	}
}

func (r *Router) replyError(msg Message, action string, err error) {
	switch apperrors.CodeOf(err) {
	case guard.CodeInvalidInput, guard.CodeIndexOutOfRange:
		var appErr *apperrors.AppError
		text := err.Error()
		if errors.As(err, &appErr) {
			text = appErr.Message
		}
		r.sender.Reply(msg.Channel, msg.ID, "Could not "+action+": "+text)
	default:
		r.logger.Error("command failed", "channel", msg.Channel, "action", action, "error", err)
		r.sender.Reply(msg.Channel, msg.ID, "Could not "+action+", please try again later.")
	}
}
