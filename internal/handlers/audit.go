package handlers

import (
	"encoding/json"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/touchstonehq/touchstone/internal/audit"
	"gorm.io/gorm"
)

type AuditHandler struct {
	db  *gorm.DB
	hub *audit.Hub
}

func NewAuditHandler(db *gorm.DB, hub *audit.Hub) *AuditHandler {
	return &AuditHandler{db: db, hub: hub}
}

// parseFilter builds a feed filter from query params. Unrecognized values
// are dropped, never rejected: an invalid filter falls back to "no filter".
func parseFilter(c *fiber.Ctx) audit.Filter {
	var f audit.Filter
	if v := c.Query("user_id"); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			f.UserID = &id
		}
	}
	if v := c.Query("kind"); v != "" {
		if kind, ok := audit.ParseKind(v); ok {
			f.Kind = &kind
		}
	}
	if v := c.Query("table"); v != "" {
		if audit.KnownTable(v) {
			f.Table = &v
		}
	}
	if v := c.Query("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.From = &t
		}
	}
	if v := c.Query("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.To = &t
		}
	}
	return f
}

// GetFeed returns the merged audit feed, newest first, filtered by
// user_id, kind, table, from and to.
func (h *AuditHandler) GetFeed(c *fiber.Ctx) error {
	entries, err := audit.LoadFeed(h.db, parseFilter(c))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to load audit feed",
		})
	}
	return c.JSON(fiber.Map{"events": entries, "total": len(entries)})
}

// GetTables returns the recognized entity table tags and filter option names.
func (h *AuditHandler) GetTables(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"tables":  audit.Tables,
		"kinds":   []audit.Kind{audit.KindCreate, audit.KindUpdate, audit.KindDelete},
		"filters": []string{"user_id", "kind", "table", "from", "to"},
	})
}

// UpgradeCheck is middleware that checks if the request is a websocket upgrade.
func (h *AuditHandler) UpgradeCheck() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

// Stream pushes committed audit events to the client as they happen.
// No replay: the tail starts at the next committed event.
func (h *AuditHandler) Stream() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		events, cancel := h.hub.Subscribe()
		defer cancel()

		// Drain client frames so closes are noticed.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := c.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				payload, err := json.Marshal(ev)
				if err != nil {
					continue
				}
				if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	})
}
