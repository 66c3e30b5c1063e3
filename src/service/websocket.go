package service

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/mosaicnetworks/paychan/src/channel"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Event is the JSON form of a ledger event pushed on /ws.
type Event struct {
	Type       string              `json:"type"`
	Channel    channel.Channel     `json:"channel"`
	Payment    *channel.Payment    `json:"payment,omitempty"`
	Commitment *channel.Commitment `json:"commitment,omitempty"`
	Remote     bool                `json:"remote"`
}

func newEvent(ev channel.Event) Event {
	return Event{
		Type:       ev.Type.String(),
		Channel:    ev.Channel,
		Payment:    ev.Payment,
		Commitment: ev.Commitment,
		Remote:     ev.Remote,
	}
}

// Subscribe upgrades the connection to a websocket and pushes every ledger
// event until the client goes away. Anything the client sends is ignored.
func (s *Service) Subscribe(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer ws.Close()

	events, cancel := s.backend.Subscribe()
	defer cancel()

	s.logger.WithField("remote", ws.RemoteAddr().String()).Debug("Websocket client connected")

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := ws.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
					time.Now().Add(writeWait))
				return
			}
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteJSON(newEvent(ev)); err != nil {
				s.logger.WithError(err).Debug("Websocket write failed")
				return
			}
		case <-gone:
			s.logger.WithField("remote", ws.RemoteAddr().String()).Debug("Websocket client disconnected")
			return
		}
	}
}
