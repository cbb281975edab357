package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
)

// latencyColor grades the gateway heartbeat latency.
func latencyColor(d time.Duration) int {
	switch ms := d.Milliseconds(); {
	case ms < 60:
		return 0x00FF00
	case ms < 120:
		return 0xFFFF00
	case ms < 250:
		return 0xFFA500
	default:
		return 0xFF0000
	}
}

// handlePing shows the gateway heartbeat latency
func (h *Handler) handlePing(_ context.Context, _ invocation) (reply, error) {
	var ws time.Duration
	if h.session != nil {
		ws = h.session.HeartbeatLatency()
	}
	embed := &discordgo.MessageEmbed{
		Title: "🚀 Pong!",
		Color: latencyColor(ws),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "⚡ WebSocket", Value: fmt.Sprintf("`%dms`", ws.Milliseconds()), Inline: true},
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}
	return reply{embed: embed, ephemeral: true}, nil
}
