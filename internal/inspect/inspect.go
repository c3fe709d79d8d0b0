// Package inspect serves a small web page that shows the server's view of
// the buffer as it changes. It exists to make client/server drift visible.
package inspect

import (
	"embed"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("buffer-language-server.inspect")

// Frame is the state pushed to every connected page.
type Frame struct {
	Version    int      `json:"version"`
	Length     int      `json:"length"`
	Text       string   `json:"text"`
	Candidates []string `json:"candidates"`
}

//go:embed static/*
var staticFiles embed.FS

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

type Inspector struct {
	listener net.Listener
	server   *http.Server
	url      string
	words    func(text string) []string

	stateMu sync.Mutex
	version int
	text    string

	// Each page has a one-slot channel that signals a newer state.
	clientsMu sync.Mutex
	clients   map[*websocket.Conn]chan struct{}
}

// Start listens on addr (":0" picks a free port) and serves the page and
// the websocket in the background. words lists the candidates shown for a
// buffer; it runs only when a frame is built.
func Start(addr string, words func(text string) []string) (*Inspector, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	in := &Inspector{
		listener: l,
		url:      "http://" + l.Addr().String() + "/static/",
		words:    words,
		clients:  make(map[*websocket.Conn]chan struct{}),
	}

	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.FS(staticFiles)))
	mux.HandleFunc("/ws", in.handleWS)
	in.server = &http.Server{Handler: mux}

	go func() {
		if err := in.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("inspector server: %s", err)
		}
	}()

	log.Infof("inspector listening on %s", in.url)
	return in, nil
}

// URL is the address of the inspector page.
func (in *Inspector) URL() string {
	return in.url
}

// Publish records the buffer at version and wakes every page. Frames are
// built by the page writers, so publishing costs no tokenizing. An older
// version than the current one is ignored.
func (in *Inspector) Publish(version int, text string) {
	in.stateMu.Lock()
	if version < in.version {
		in.stateMu.Unlock()
		return
	}
	in.version, in.text = version, text
	in.stateMu.Unlock()

	in.clientsMu.Lock()
	defer in.clientsMu.Unlock()
	for _, wake := range in.clients {
		notify(wake)
	}
}

func notify(wake chan struct{}) {
	select {
	case wake <- struct{}{}:
	default:
	}
}

// Current builds the frame for the last published buffer.
func (in *Inspector) Current() Frame {
	in.stateMu.Lock()
	version, text := in.version, in.text
	in.stateMu.Unlock()

	frame := Frame{Version: version, Length: len(text), Text: text, Candidates: []string{}}
	if in.words != nil {
		if words := in.words(text); words != nil {
			frame.Candidates = words
		}
	}
	return frame
}

func (in *Inspector) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warningf("websocket upgrade: %s", err)
		return
	}

	// Starts signalled, so the first write carries the state current at
	// that moment.
	wake := make(chan struct{}, 1)
	wake <- struct{}{}

	in.clientsMu.Lock()
	in.clients[conn] = wake
	in.clientsMu.Unlock()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		// The page never sends anything; reading detects the close.
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	defer func() {
		in.clientsMu.Lock()
		delete(in.clients, conn)
		in.clientsMu.Unlock()
		conn.Close()
	}()

	for {
		select {
		case <-wake:
			data, err := json.Marshal(in.Current())
			if err != nil {
				log.Errorf("frame marshal: %s", err)
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debugf("websocket write: %s", err)
				return
			}
		case <-closed:
			return
		}
	}
}

// Close stops the HTTP server and disconnects all pages.
func (in *Inspector) Close() error {
	err := in.server.Close()
	in.clientsMu.Lock()
	for conn := range in.clients {
		conn.Close()
	}
	in.clientsMu.Unlock()
	return err
}
