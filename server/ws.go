package server

import (
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

// Upgrader for websocket connections
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// pushMessage is what a viewer sends when the drawing changes on its end.
type pushMessage struct {
	Type         string          `json:"type"`
	RawDocument  json.RawMessage `json:"rawDocument"`
	SelectionIds []string        `json:"selectionIds"`
}

// handleViewerSocket upgrades a viewer connection and attaches it to a
// session's broadcast set.
func (s *Server) handleViewerSocket(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	name := ps.ByName("name")
	if !s.registry.Has(name) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	viewerID := uuid.New().String()
	viewer := newViewerConn(viewerID, conn, s.wsConfig)
	viewer.startTimers()

	if err := s.registry.AddViewer(name, viewer); err != nil {
		// Session was destroyed between the Has check and the upgrade.
		viewer.Close(websocket.CloseGoingAway, "session destroyed")
		return
	}
	defer s.registry.RemoveViewer(name, viewer)
	conn.SetPongHandler(viewer.pongHandler())

	// Read messages from the viewer
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) &&
				!errors.Is(err, net.ErrClosed) {
				log.Printf("Read error from viewer %s: %v", viewerID, err)
			}
			viewer.Close(websocket.CloseNormalClosure, "Viewer disconnected")
			break
		}
		viewer.updateActivity()

		var push pushMessage
		if err := json.Unmarshal(msg, &push); err != nil {
			log.Printf("Dropping malformed message from viewer %s: %v", viewerID, err)
			continue
		}
		if push.Type != "document_pushed" {
			log.Printf("Dropping message of unknown type %q from viewer %s", push.Type, viewerID)
			continue
		}

		if err := s.registry.HandlePush(r.Context(), name, push.RawDocument, push.SelectionIds); err != nil {
			log.Printf("Failed to apply push from viewer %s: %v", viewerID, err)
		}
	}
}
