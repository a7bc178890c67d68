package main

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"image/png"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/elijahnyp/garage_card/card"
	"github.com/elijahnyp/garage_card/editor"
	"github.com/elijahnyp/garage_card/schematic"
	. "github.com/elijahnyp/garage_card/util"
)

//go:embed web/static
var staticFiles embed.FS

var pageTemplate = template.Must(template.ParseFS(staticFiles, "web/static/index.html"))

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// WebSocketMessage represents a message sent over WebSocket
type WebSocketMessage struct {
	Data interface{} `json:"data"`
	Type string      `json:"type"`
}

// WSClient represents a connected WebSocket client
type WSClient struct {
	conn *websocket.Conn
	send chan WebSocketMessage
	hub  *WSHub
}

// WSHub maintains the set of active clients and broadcasts messages. The
// first client to connect attaches the card, the last one to leave detaches
// it.
type WSHub struct {
	clients    map[*WSClient]bool
	broadcast  chan WebSocketMessage
	register   chan *WSClient
	unregister chan *WSClient
	onFirst    func()
	onLast     func()
	count      chan chan int
}

// NewHub creates a new WebSocket hub. onFirst and onLast may be nil.
func NewHub(onFirst, onLast func()) *WSHub {
	return &WSHub{
		clients:    make(map[*WSClient]bool),
		broadcast:  make(chan WebSocketMessage, 16),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		onFirst:    onFirst,
		onLast:     onLast,
		count:      make(chan chan int),
	}
}

func (h *WSHub) drop(client *WSClient) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	AttachedClients.Set(float64(len(h.clients)))
	if len(h.clients) == 0 && h.onLast != nil {
		h.onLast()
	}
}

// Run starts the WebSocket hub
func (h *WSHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			AttachedClients.Set(float64(len(h.clients)))
			Logger.Info().Msg("Client connected to WebSocket")
			if len(h.clients) == 1 && h.onFirst != nil {
				h.onFirst()
			}

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				Logger.Info().Msg("Client disconnected from WebSocket")
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					h.drop(client)
				}
			}

		case reply := <-h.count:
			reply <- len(h.clients)
		}
	}
}

// Clients reports how many browsers are connected.
func (h *WSHub) Clients() int {
	reply := make(chan int)
	h.count <- reply
	return <-reply
}

// BroadcastUpdate sends an update to all connected clients
func (h *WSHub) BroadcastUpdate(messageType string, data interface{}) {
	select {
	case h.broadcast <- WebSocketMessage{Type: messageType, Data: data}:
	default:
		// Channel is full, skip this update
	}
}

// BroadcastView is the card observer: it never blocks.
func (h *WSHub) BroadcastView(vm card.ViewModel) {
	h.BroadcastUpdate("view", vm)
}

// readPump pumps messages from the websocket connection to the hub
func (c *WSClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		if err := c.conn.Close(); err != nil {
			Logger.Debug().Err(err).Msg("Error closing WebSocket connection")
		}
	}()

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *WSClient) writePump() {
	defer func() {
		if err := c.conn.Close(); err != nil {
			Logger.Debug().Err(err).Msg("Error closing WebSocket connection")
		}
	}()

	for message := range c.send {
		if err := c.conn.WriteJSON(message); err != nil {
			return
		}
	}
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
		Logger.Debug().Err(err).Msg("Error writing close message")
	}
}

// ServeWebSocket handles websocket requests from the peer
func ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		Logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &WSClient{
		conn: conn,
		send: make(chan WebSocketMessage, 256),
		hub:  wsHub,
	}
	if vm, ok := widget.View(); ok {
		client.send <- WebSocketMessage{Type: "view", Data: vm}
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		Logger.Error().Err(err).Msg("Error encoding response")
	}
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		http.Error(w, "Bad Request Method", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

type pageData struct {
	Name string
	Card template.HTML
	Size int
}

// HomeHandler serves the dashboard page with the card already rendered.
func HomeHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	fragment, err := widget.HTML()
	if err != nil {
		Logger.Error().Err(err).Msg("Error rendering card")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	data := pageData{Name: card.DefaultName, Card: template.HTML(fragment), Size: widget.CardSize()} //nolint:gosec // fragment is produced by x/net/html which escapes text and attributes
	if cfg := widget.Config(); cfg != nil {
		data.Name = cfg.Name
	}
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		Logger.Error().Err(err).Msg("Error executing page template")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(buf.Bytes()); err != nil {
		Logger.Error().Msgf("Error writing response: %v", err)
	}
}

// CardFragment serves only the card markup.
func CardFragment(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	fragment, err := widget.HTML()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write([]byte(fragment)); err != nil {
		Logger.Error().Msgf("Error writing response: %v", err)
	}
}

// APIView returns the current view model as JSON
func APIView(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	vm, ok := widget.View()
	if !ok {
		http.Error(w, "Card not rendered yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, vm)
}

// APIClick forwards a click on the element named by ?target= to the card.
func APIClick(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	target := r.URL.Query().Get("target")
	if target == "" {
		http.Error(w, "target required", http.StatusBadRequest)
		return
	}
	if !widget.Click(target) {
		http.Error(w, "Unknown target", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// APISize reports the layout size hint
func APISize(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"size": widget.CardSize()})
}

type editorSchemaResponse struct {
	Card   editor.CardInfo        `json:"card"`
	Config map[string]interface{} `json:"config"`
	Schema []editor.Field         `json:"schema"`
}

func currentConfigMap() map[string]interface{} {
	if cfg := widget.Config(); cfg != nil {
		return editor.Apply(cfg.Map(), nil)
	}
	return card.StubConfig()
}

// APIEditorSchema returns the form description and the current config.
func APIEditorSchema(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, editorSchemaResponse{
		Card:   editor.Info,
		Config: currentConfigMap(),
		Schema: editor.Schema(),
	})
}

// APIEditorConfig applies a set of changed options and answers with the
// full replacement config.
func APIEditorConfig(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var changes map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&changes); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	replacement := editor.Apply(currentConfigMap(), changes)
	if err := applyCardConfig(replacement); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, replacement)
}

var errNotRendered = errors.New("card not rendered yet")

// renderSchematic encodes the current view model as a PNG.
func renderSchematic() ([]byte, error) {
	vm, ok := widget.View()
	if !ok {
		return nil, errNotRendered
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, schematic.Draw(vm, Config.GetInt("schematic_scale"))); err != nil {
		return nil, fmt.Errorf("encoding schematic: %w", err)
	}
	return buf.Bytes(), nil
}

// SchematicPNG draws the current view model as a PNG.
func SchematicPNG(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	img, err := renderSchematic()
	if errors.Is(err, errNotRendered) {
		http.Error(w, "Card not rendered yet", http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		http.Error(w, "Error encoding image", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if _, err := w.Write(img); err != nil {
		Logger.Error().Msgf("Error writing image response: %v", err)
	}
}
