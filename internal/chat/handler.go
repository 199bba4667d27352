package chat

import (
	"strings"

	"github.com/gempir/go-twitch-irc/v4"

	"github.com/kethal/twitch-drops-go/internal/logger"
)

// Handler logs IRC connection events and @mentions of the mining account.
type Handler struct {
	username string
	log      *logger.Logger
}

// NewHandler creates a chat message Handler.
func NewHandler(username string, log *logger.Logger) *Handler {
	return &Handler{
		username: strings.ToLower(username),
		log:      log,
	}
}

// OnPrivateMessage checks incoming chat messages for mentions of the
// mining account.
func (h *Handler) OnPrivateMessage(msg twitch.PrivateMessage) {
	if h.username == "" {
		return
	}
	if strings.Contains(strings.ToLower(msg.Message), "@"+h.username) {
		h.log.Info("💬 Chat mention",
			"nick", msg.User.DisplayName,
			"channel", msg.Channel,
			"message", msg.Message)
	}
}

// OnConnect is called when the IRC client connects.
func (h *Handler) OnConnect() {
	h.log.Debug("Connected to Twitch IRC")
}

// OnReconnect is called when the IRC client reconnects.
func (h *Handler) OnReconnect() {
	h.log.Debug("Reconnected to Twitch IRC")
}

// OnSelfJoinMessage is called when the account joins a channel.
func (h *Handler) OnSelfJoinMessage(msg twitch.UserJoinMessage) {
	h.log.Call("Joined IRC chat", "channel", msg.Channel)
}

// OnSelfPartMessage is called when the account leaves a channel.
func (h *Handler) OnSelfPartMessage(msg twitch.UserPartMessage) {
	h.log.Call("Left IRC chat", "channel", msg.Channel)
}
